// Package binning implements supervised discretization of numeric and
// categorical features against a binary target. Numeric features get a
// monotonic event-rate interval partition; categorical features are grouped
// by target-rate similarity. Every fitted partition reserves a special bin
// that absorbs missing values and unseen category levels, so Transform is
// total over any input.
package binning

import (
	"math"
	"sort"
)

// Partition is the fitted binning of a single feature. All fields are
// exported so the artifact codec can round-trip it.
type Partition struct {
	Feature     string  `json:"feature"`
	Categorical bool    `json:"categorical"`
	// Splits are ascending upper boundaries for numeric bins: bin i holds
	// values <= Splits[i], the last bin holds everything above. len+1 bins.
	Splits []float64 `json:"splits,omitempty"`
	// Groups lists the category levels of each bin.
	Groups [][]string `json:"groups,omitempty"`
	// EventRates and Counts are per-bin training statistics, kept for
	// diagnostics and monotonicity tests.
	EventRates []float64 `json:"event_rates"`
	Counts     []int     `json:"counts"`
	// Imputation fitted on the training column, applied before bin lookup.
	HasImpute  bool    `json:"has_impute"`
	ImputeNum  float64 `json:"impute_num,omitempty"`
	ImputeCat  string  `json:"impute_cat,omitempty"`

	levelIndex map[string]int
}

// NumBins returns the count of regular bins, excluding the special bin.
func (p *Partition) NumBins() int {
	if p.Categorical {
		return len(p.Groups)
	}
	return len(p.Splits) + 1
}

// SpecialBin is the reserved code for missing values and unseen levels.
func (p *Partition) SpecialBin() int {
	return p.NumBins()
}

// rebuild restores the level lookup after deserialization.
func (p *Partition) rebuild() {
	if !p.Categorical {
		return
	}
	p.levelIndex = make(map[string]int)
	for bin, levels := range p.Groups {
		for _, lv := range levels {
			p.levelIndex[lv] = bin
		}
	}
}

// TransformNumeric maps a numeric value (or a missing cell) to a bin code.
func (p *Partition) TransformNumeric(v float64, missing bool) int {
	if missing {
		if p.HasImpute {
			v = p.ImputeNum
		} else {
			return p.SpecialBin()
		}
	}
	if math.IsNaN(v) {
		return p.SpecialBin()
	}
	return sort.SearchFloat64s(p.Splits, v)
}

// TransformCategorical maps a category level (or a missing cell) to a bin
// code. Unseen levels route to the special bin.
func (p *Partition) TransformCategorical(level string, missing bool) int {
	if missing {
		if p.HasImpute {
			level = p.ImputeCat
		} else {
			return p.SpecialBin()
		}
	}
	if p.levelIndex == nil {
		p.rebuild()
	}
	bin, ok := p.levelIndex[level]
	if !ok {
		return p.SpecialBin()
	}
	return bin
}
