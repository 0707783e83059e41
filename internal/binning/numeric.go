package binning

import (
	"fmt"
	"sort"

	"credit-underwriter/internal/errs"
)

type binAgg struct {
	upper float64 // inclusive upper boundary
	n     int
	bad   int
}

func (b binAgg) rate() float64 {
	if b.n == 0 {
		return 0
	}
	return float64(b.bad) / float64(b.n)
}

// fitNumeric discovers a monotonic event-rate partition for one numeric
// feature: quantile pre-binning, small-bin merging, then pooling of
// adjacent monotonicity violators. A single surviving bin is a valid
// degenerate result, not an error.
func fitNumeric(feature string, vals []float64, missing []bool, target []int, opts Options, imp *imputeSpec) (*Partition, error) {
	type sample struct {
		v float64
		y int
	}
	samples := make([]sample, 0, len(vals))
	for i, v := range vals {
		if missing[i] {
			if imp == nil {
				continue
			}
			v = imp.num
		}
		samples = append(samples, sample{v, target[i]})
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("feature %q has no usable values: %w", feature, errs.ErrConfiguration)
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i].v < samples[j].v })
	if samples[0].v == samples[len(samples)-1].v {
		return nil, fmt.Errorf("feature %q has fewer than 2 distinct values: %w", feature, errs.ErrConfiguration)
	}

	// Quantile cut candidates, deduplicated so ties never straddle a
	// boundary.
	prebins := opts.MaxPrebins
	if prebins < 2 {
		prebins = 2
	}
	cuts := make([]float64, 0, prebins-1)
	for q := 1; q < prebins; q++ {
		idx := q * len(samples) / prebins
		c := samples[idx].v
		if len(cuts) == 0 || c > cuts[len(cuts)-1] {
			cuts = append(cuts, c)
		}
	}
	// Drop a trailing cut equal to the maximum, it would create an empty
	// last bin.
	for len(cuts) > 0 && cuts[len(cuts)-1] >= samples[len(samples)-1].v {
		cuts = cuts[:len(cuts)-1]
	}

	bins := make([]binAgg, len(cuts)+1)
	for i, c := range cuts {
		bins[i].upper = c
	}
	bins[len(bins)-1].upper = samples[len(samples)-1].v

	bi := 0
	for _, s := range samples {
		for bi < len(bins)-1 && s.v > bins[bi].upper {
			bi++
		}
		bins[bi].n++
		bins[bi].bad += s.y
	}

	bins = mergeSmall(bins, opts.MinBinFrac, len(samples))
	bins = poolMonotonic(bins, trendIncreasing(bins))

	p := &Partition{Feature: feature, Categorical: false}
	if imp != nil {
		p.HasImpute = true
		p.ImputeNum = imp.num
	}
	for i, b := range bins {
		if i < len(bins)-1 {
			p.Splits = append(p.Splits, b.upper)
		}
		p.EventRates = append(p.EventRates, b.rate())
		p.Counts = append(p.Counts, b.n)
	}
	return p, nil
}

// mergeSmall folds bins under the minimum-size constraint into a neighbor,
// preferring the smaller one.
func mergeSmall(bins []binAgg, minFrac float64, total int) []binAgg {
	minCount := int(minFrac * float64(total))
	for len(bins) > 1 {
		idx := -1
		for i, b := range bins {
			if b.n < minCount {
				idx = i
				break
			}
		}
		if idx < 0 {
			break
		}
		switch {
		case idx == 0:
			bins = mergeAt(bins, 0)
		case idx == len(bins)-1:
			bins = mergeAt(bins, idx-1)
		case bins[idx-1].n <= bins[idx+1].n:
			bins = mergeAt(bins, idx-1)
		default:
			bins = mergeAt(bins, idx)
		}
	}
	return bins
}

// trendIncreasing estimates the risk direction by a count-weighted least
// squares slope of event rate against bin index.
func trendIncreasing(bins []binAgg) bool {
	var sw, swx, swy, swxy, swxx float64
	for i, b := range bins {
		w := float64(b.n)
		x := float64(i)
		y := b.rate()
		sw += w
		swx += w * x
		swy += w * y
		swxy += w * x * y
		swxx += w * x * x
	}
	den := sw*swxx - swx*swx
	if den == 0 {
		return true
	}
	slope := (sw*swxy - swx*swy) / den
	return slope >= 0
}

// poolMonotonic merges adjacent bins until event rates are monotone in the
// chosen direction (pool-adjacent-violators).
func poolMonotonic(bins []binAgg, increasing bool) []binAgg {
	for i := 1; i < len(bins); {
		violates := bins[i].rate() < bins[i-1].rate()
		if !increasing {
			violates = bins[i].rate() > bins[i-1].rate()
		}
		if violates {
			bins = mergeAt(bins, i-1)
			if i > 1 {
				i--
			}
			continue
		}
		i++
	}
	return bins
}

// mergeAt folds bin i+1 into bin i, keeping the right boundary.
func mergeAt(bins []binAgg, i int) []binAgg {
	bins[i].n += bins[i+1].n
	bins[i].bad += bins[i+1].bad
	bins[i].upper = bins[i+1].upper
	return append(bins[:i+1], bins[i+2:]...)
}
