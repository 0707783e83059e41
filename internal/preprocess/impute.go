package preprocess

import (
	"sort"

	"credit-underwriter/internal/binning"
	"credit-underwriter/internal/dataset"
)

// missingSentinel fills categorical columns whose mode is undefined
// (all-null training column).
const missingSentinel = "missing"

// FitImputer learns fill values from the training frame only: the column
// median for numeric features, the most frequent level for categorical
// ones. The result feeds the binning process so the same values are
// replayed at serving time; the test frame never informs them.
func FitImputer(train *dataset.Frame, categorical, numerical []string) map[string]binning.Imputation {
	out := make(map[string]binning.Imputation, len(categorical)+len(numerical))

	for _, name := range numerical {
		col, ok := train.Column(name)
		if !ok || col.Kind != dataset.Numeric {
			continue
		}
		vals := make([]float64, 0, col.Len())
		for i, v := range col.Nums {
			if !col.Missing[i] {
				vals = append(vals, v)
			}
		}
		if len(vals) == 0 {
			continue // all-null column, leave unimputed; binning routes it to the special bin
		}
		out[name] = binning.Imputation{Num: median(vals)}
	}

	for _, name := range categorical {
		col, ok := train.Column(name)
		if !ok || col.Kind != dataset.Categorical {
			continue
		}
		out[name] = binning.Imputation{Cat: mode(col)}
	}
	return out
}

func median(vals []float64) float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// mode returns the most frequent level, breaking ties on the smaller
// level name so the fit is deterministic.
func mode(col *dataset.Column) string {
	counts := make(map[string]int)
	for i, v := range col.Cats {
		if !col.Missing[i] {
			counts[v]++
		}
	}
	if len(counts) == 0 {
		return missingSentinel
	}
	best := ""
	bestN := -1
	for lv, n := range counts {
		if n > bestN || (n == bestN && lv < best) {
			best = lv
			bestN = n
		}
	}
	return best
}
