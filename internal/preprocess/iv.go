// Package preprocess hosts the feature-screening stage of the pipeline:
// train-only imputation, Information Value scoring over binned features,
// and the IV/missing-rate survivor filter that decides which features reach
// the joint binning refit.
package preprocess

import (
	"fmt"
	"math"
	"sort"

	"credit-underwriter/internal/errs"
)

// laplaceEps substitutes for a zero good or bad count in a bin so the WoE
// log stays finite.
const laplaceEps = 0.5

// IV computes the Information Value of a binned feature against a binary
// target. Pure and deterministic: rows are grouped by bin code, each
// group's good/bad distribution contributes
// (distGood-distBad)*ln(distGood/distBad). Totals are unsmoothed; only
// zero cell counts are replaced with 0.5.
func IV(binCodes []float64, target []int) (float64, error) {
	if len(binCodes) == 0 || len(binCodes) != len(target) {
		return 0, fmt.Errorf("bin codes length %d, target length %d: %w", len(binCodes), len(target), errs.ErrInvalidInput)
	}

	type cell struct{ good, bad int }
	groups := make(map[float64]*cell)
	var totalGood, totalBad int
	for i, code := range binCodes {
		switch target[i] {
		case 0:
			totalGood++
		case 1:
			totalBad++
		default:
			return 0, fmt.Errorf("target row %d is %d, want 0 or 1: %w", i, target[i], errs.ErrInvalidInput)
		}
		c := groups[code]
		if c == nil {
			c = &cell{}
			groups[code] = c
		}
		if target[i] == 0 {
			c.good++
		} else {
			c.bad++
		}
	}

	if totalGood == 0 || totalBad == 0 {
		return 0, fmt.Errorf("target contains a single class: %w", errs.ErrInvalidInput)
	}

	// Accumulate in bin-code order; float addition is not associative, so
	// summing in map order would make repeated calls differ in the last bits.
	codes := make([]float64, 0, len(groups))
	for code := range groups {
		codes = append(codes, code)
	}
	sort.Float64s(codes)

	iv := 0.0
	for _, code := range codes {
		c := groups[code]
		good := float64(c.good)
		bad := float64(c.bad)
		if good == 0 {
			good = laplaceEps
		}
		if bad == 0 {
			bad = laplaceEps
		}
		distGood := good / float64(totalGood)
		distBad := bad / float64(totalBad)
		iv += (distGood - distBad) * math.Log(distGood/distBad)
	}
	return iv, nil
}
