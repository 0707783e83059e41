package selection

import (
	"fmt"

	"credit-underwriter/internal/dataset"
	"credit-underwriter/internal/errs"

	"github.com/rs/zerolog/log"
)

// validationStride holds out every 4th row for scoring candidate subsets.
// A deterministic split keeps two fits on identical data identical.
const validationStride = 4

// fitSequential greedily adds the feature whose inclusion maximizes the
// classifier's held-out accuracy, until k features are selected. Ties
// resolve to the earlier column. The classifier factory must be set; the
// persisted state it produces is just the selected name list.
func (s *Selector) fitSequential(X *dataset.Frame, target []int, k int) error {
	if s.Factory == nil {
		return fmt.Errorf("sequential selection requires a classifier factory: %w", errs.ErrConfiguration)
	}

	names := X.Names()
	if k == len(names) {
		// Auto with nothing to eliminate; skip the expensive wrapper loop.
		s.Selected = append([]string(nil), names...)
		return nil
	}

	trainIdx, valIdx := strideSplit(X.Rows())
	selected := make([]string, 0, k)
	inSelected := make(map[string]bool, k)

	for len(selected) < k {
		bestName := ""
		bestScore := -1.0
		for _, cand := range names {
			if inSelected[cand] {
				continue
			}
			subset := append(append([]string(nil), selected...), cand)
			ordered := orderedSubset(names, subset)
			score, err := s.scoreSubset(X, target, ordered, trainIdx, valIdx)
			if err != nil {
				return err
			}
			if score > bestScore {
				bestScore = score
				bestName = cand
			}
		}
		selected = append(selected, bestName)
		inSelected[bestName] = true
		log.Debug().Str("feature", bestName).Float64("val_accuracy", bestScore).Int("round", len(selected)).Msg("sequential selection step")
	}

	s.Selected = orderedSubset(names, selected)
	return nil
}

func (s *Selector) scoreSubset(X *dataset.Frame, target []int, subset []string, trainIdx, valIdx []int) (float64, error) {
	sub, err := X.Select(subset)
	if err != nil {
		return 0, err
	}
	trainX, trainY := sliceRows(sub, target, trainIdx)
	valX, valY := sliceRows(sub, target, valIdx)

	clf := s.Factory()
	if err := clf.Fit(trainX, trainY); err != nil {
		return 0, err
	}
	proba, err := clf.PredictProba(valX)
	if err != nil {
		return 0, err
	}

	correct := 0
	for i, p := range proba {
		pred := 0
		if len(p) > 1 && p[1] > p[0] {
			pred = 1
		}
		if pred == valY[i] {
			correct++
		}
	}
	if len(valY) == 0 {
		return 0, nil
	}
	return float64(correct) / float64(len(valY)), nil
}

func strideSplit(rows int) (trainIdx, valIdx []int) {
	for i := 0; i < rows; i++ {
		if i%validationStride == validationStride-1 {
			valIdx = append(valIdx, i)
		} else {
			trainIdx = append(trainIdx, i)
		}
	}
	return trainIdx, valIdx
}

// sliceRows materializes a row subset of the frame and target.
func sliceRows(f *dataset.Frame, target []int, idx []int) (*dataset.Frame, []int) {
	out := dataset.NewFrame(len(idx))
	for _, name := range f.Names() {
		col, _ := f.Column(name)
		nums := make([]float64, len(idx))
		missing := make([]bool, len(idx))
		for i, r := range idx {
			nums[i] = col.Nums[r]
			missing[i] = col.Missing[r]
		}
		_ = out.AddColumn(name, &dataset.Column{Kind: dataset.Numeric, Nums: nums, Missing: missing})
	}
	y := make([]int, len(idx))
	for i, r := range idx {
		y[i] = target[r]
	}
	return out, y
}

// orderedSubset returns subset reordered to the relative order of names.
func orderedSubset(names, subset []string) []string {
	in := make(map[string]bool, len(subset))
	for _, n := range subset {
		in[n] = true
	}
	out := make([]string, 0, len(subset))
	for _, n := range names {
		if in[n] {
			out = append(out, n)
		}
	}
	return out
}
