package binning

import (
	"fmt"
	"math"
	"sort"

	"credit-underwriter/internal/errs"
)

type levelAgg struct {
	levels []string
	n      int
	bad    int
}

func (g levelAgg) rate() float64 {
	if g.n == 0 {
		return 0
	}
	return float64(g.bad) / float64(g.n)
}

// fitCategorical groups category levels into bins by event-rate similarity.
// Levels are ordered by training event rate and adjacent groups are merged
// until both the bin-count cap and the minimum-size constraint hold. Unseen
// levels at transform time route to the special bin.
func fitCategorical(feature string, vals []string, missing []bool, target []int, opts Options, imp *imputeSpec) (*Partition, error) {
	type agg struct {
		n, bad int
	}
	byLevel := make(map[string]*agg)
	total := 0
	for i, v := range vals {
		if missing[i] {
			if imp == nil {
				continue
			}
			v = imp.cat
		}
		a := byLevel[v]
		if a == nil {
			a = &agg{}
			byLevel[v] = a
		}
		a.n++
		a.bad += target[i]
		total++
	}
	if len(byLevel) < 2 {
		return nil, fmt.Errorf("feature %q has fewer than 2 distinct levels: %w", feature, errs.ErrConfiguration)
	}

	groups := make([]levelAgg, 0, len(byLevel))
	for lv, a := range byLevel {
		groups = append(groups, levelAgg{levels: []string{lv}, n: a.n, bad: a.bad})
	}
	// Rate order, names break ties so the fit is deterministic.
	sort.Slice(groups, func(i, j int) bool {
		ri, rj := groups[i].rate(), groups[j].rate()
		if ri != rj {
			return ri < rj
		}
		return groups[i].levels[0] < groups[j].levels[0]
	})

	minCount := int(opts.MinBinFrac * float64(total))
	for len(groups) > 1 {
		if len(groups) <= opts.MaxBins && smallestGroup(groups) >= minCount {
			break
		}
		groups = mergeClosest(groups, minCount)
	}

	p := &Partition{Feature: feature, Categorical: true}
	if imp != nil {
		p.HasImpute = true
		p.ImputeCat = imp.cat
	}
	for _, g := range groups {
		sort.Strings(g.levels)
		p.Groups = append(p.Groups, g.levels)
		p.EventRates = append(p.EventRates, g.rate())
		p.Counts = append(p.Counts, g.n)
	}
	p.rebuild()
	return p, nil
}

func smallestGroup(groups []levelAgg) int {
	min := groups[0].n
	for _, g := range groups[1:] {
		if g.n < min {
			min = g.n
		}
	}
	return min
}

// mergeClosest merges the adjacent pair with the smallest event-rate gap.
// Pairs containing an undersized group are considered first, so the
// minimum-size constraint resolves before any bin-count merge.
func mergeClosest(groups []levelAgg, minCount int) []levelAgg {
	best := closestPair(groups, func(i int) bool {
		return groups[i].n < minCount || groups[i+1].n < minCount
	})
	if best < 0 {
		best = closestPair(groups, func(int) bool { return true })
	}
	a, b := groups[best], groups[best+1]
	merged := levelAgg{
		levels: append(append([]string(nil), a.levels...), b.levels...),
		n:      a.n + b.n,
		bad:    a.bad + b.bad,
	}
	out := append(groups[:best], merged)
	return append(out, groups[best+2:]...)
}

// closestPair returns the eligible adjacent pair index with the smallest
// event-rate gap, or -1 when no pair is eligible.
func closestPair(groups []levelAgg, eligible func(int) bool) int {
	best := -1
	bestGap := math.Inf(1)
	for i := 0; i < len(groups)-1; i++ {
		if !eligible(i) {
			continue
		}
		if gap := groups[i+1].rate() - groups[i].rate(); gap < bestGap {
			bestGap = gap
			best = i
		}
	}
	return best
}
