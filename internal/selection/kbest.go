package selection

import (
	"fmt"
	"sort"

	"credit-underwriter/internal/dataset"
	"credit-underwriter/internal/errs"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// fitKBest scores every column with a one-way ANOVA F statistic between
// the two target classes and keeps the k highest scores. Ties resolve to
// the earlier column so the fit is deterministic.
func (s *Selector) fitKBest(X *dataset.Frame, target []int, k int) error {
	names := X.Names()
	s.Scores = make(map[string]float64, len(names))

	type scored struct {
		idx   int
		name  string
		score float64
	}
	all := make([]scored, 0, len(names))
	for idx, name := range names {
		col, ok := X.Column(name)
		if !ok || col.Kind != dataset.Numeric {
			return fmt.Errorf("column %q is not numeric: %w", name, errs.ErrInvalidInput)
		}
		f := fStatistic(col, target)
		s.Scores[name] = f
		all = append(all, scored{idx: idx, name: name, score: f})

		if n := col.Len(); n > 2 {
			p := 1 - distuv.F{D1: 1, D2: float64(n - 2)}.CDF(f)
			log.Debug().Str("feature", name).Float64("f_score", f).Float64("p_value", p).Msg("anova score")
		}
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })
	kept := all[:k]
	sort.Slice(kept, func(i, j int) bool { return kept[i].idx < kept[j].idx })

	s.Selected = make([]string, 0, k)
	for _, sc := range kept {
		s.Selected = append(s.Selected, sc.name)
	}
	return nil
}

// fStatistic computes the two-group ANOVA F value: between-group over
// within-group mean squares. Missing cells count as zero, matching the
// training-time fillna before scoring. Degenerate inputs score zero.
func fStatistic(col *dataset.Column, target []int) float64 {
	vals := make([]float64, col.Len())
	vals0 := make([]float64, 0, col.Len())
	vals1 := make([]float64, 0, col.Len())
	for i := range vals {
		if !col.Missing[i] {
			vals[i] = col.Nums[i]
		}
		if target[i] == 0 {
			vals0 = append(vals0, vals[i])
		} else {
			vals1 = append(vals1, vals[i])
		}
	}
	n, n0, n1 := len(vals), len(vals0), len(vals1)
	if n0 == 0 || n1 == 0 || n <= 2 {
		return 0
	}

	grand := stat.Mean(vals, nil)
	mean0 := stat.Mean(vals0, nil)
	mean1 := stat.Mean(vals1, nil)

	ssb := float64(n0)*(mean0-grand)*(mean0-grand) + float64(n1)*(mean1-grand)*(mean1-grand)
	var ssw float64
	for i, v := range vals {
		m := mean0
		if target[i] == 1 {
			m = mean1
		}
		ssw += (v - m) * (v - m)
	}
	if ssw == 0 {
		return 0
	}
	return ssb / (ssw / float64(n-2))
}
