package preprocess

import (
	"fmt"
	"runtime"
	"sync"

	"credit-underwriter/internal/binning"
	"credit-underwriter/internal/dataset"
	"credit-underwriter/internal/errs"

	"github.com/rs/zerolog/log"
)

// Exclusion reasons recorded by the survivor filter.
const (
	ReasonConstant    = "constant"
	ReasonIVLow       = "iv_below_min"
	ReasonIVHigh      = "iv_above_max"
	ReasonMissingRate = "missing_rate"
)

// FilterConfig bounds the survivor decision.
type FilterConfig struct {
	IVMin          float64
	IVMax          float64
	MaxMissingRate float64
	Workers        int
	BinOpts        binning.Options
	Imputation     map[string]binning.Imputation
}

// Exclusion explains why a candidate feature was dropped.
type Exclusion struct {
	Feature     string
	Reason      string
	IV          float64
	MissingRate float64
}

// FilterResult is the full outcome of the survivor phase. Survivors keep
// the candidate iteration order, so the joint refit and all logging are
// reproducible from this slice alone.
type FilterResult struct {
	IV        map[string]float64
	Survivors []string
	Excluded  []Exclusion
}

type trialOutcome struct {
	iv  float64
	err error
}

// SelectSurvivors runs a single-feature binning trial for every candidate,
// scores each trial with IV, and retains features inside the IV band whose
// missing rate on the original frame is at or under the threshold. Constant
// columns are removed before any fit is attempted, so every entry of the
// candidate list is accounted for in Survivors or Excluded. Trials are
// independent per feature and run on a bounded worker pool; output order is
// that of the candidate list regardless of worker scheduling.
func SelectSurvivors(train *dataset.Frame, candidates []string, categoricalSet map[string]bool, target []int, original *dataset.Frame, cfg FilterConfig) (*FilterResult, error) {
	res := &FilterResult{IV: make(map[string]float64, len(candidates))}

	// Precondition pass: a constant column cannot establish a split, so it
	// never reaches the fitter.
	fittable := make([]string, 0, len(candidates))
	for _, name := range candidates {
		col, ok := train.Column(name)
		if !ok {
			return nil, fmt.Errorf("candidate %q not in training frame: %w", name, errs.ErrConfiguration)
		}
		if col.DistinctCount() < 2 && !hasImputedVariety(col, cfg.Imputation[name]) {
			res.Excluded = append(res.Excluded, Exclusion{Feature: name, Reason: ReasonConstant, MissingRate: missingRate(original, name)})
			continue
		}
		fittable = append(fittable, name)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(fittable) {
		workers = len(fittable)
	}

	outcomes := make([]trialOutcome, len(fittable))
	var wg sync.WaitGroup
	jobs := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				outcomes[idx] = runTrial(train, fittable[idx], categoricalSet, target, cfg)
			}
		}()
	}
	for idx := range fittable {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	for idx, name := range fittable {
		out := outcomes[idx]
		if out.err != nil {
			return nil, fmt.Errorf("trial fit for %q: %w", name, out.err)
		}
		res.IV[name] = out.iv
		missRate := missingRate(original, name)

		switch {
		case out.iv < cfg.IVMin:
			res.Excluded = append(res.Excluded, Exclusion{Feature: name, Reason: ReasonIVLow, IV: out.iv, MissingRate: missRate})
		case out.iv > cfg.IVMax:
			res.Excluded = append(res.Excluded, Exclusion{Feature: name, Reason: ReasonIVHigh, IV: out.iv, MissingRate: missRate})
		case missRate > cfg.MaxMissingRate:
			res.Excluded = append(res.Excluded, Exclusion{Feature: name, Reason: ReasonMissingRate, IV: out.iv, MissingRate: missRate})
		default:
			res.Survivors = append(res.Survivors, name)
		}
	}

	log.Info().
		Int("candidates", len(candidates)).
		Int("survivors", len(res.Survivors)).
		Int("excluded", len(res.Excluded)).
		Msg("survivor filter complete")
	return res, nil
}

func runTrial(train *dataset.Frame, name string, categoricalSet map[string]bool, target []int, cfg FilterConfig) trialOutcome {
	var cats []string
	if categoricalSet[name] {
		cats = []string{name}
	}
	var imp map[string]binning.Imputation
	if v, ok := cfg.Imputation[name]; ok {
		imp = map[string]binning.Imputation{name: v}
	}

	proc := binning.NewProcess([]string{name}, cats, cfg.BinOpts, imp)
	if err := proc.Fit(train, target); err != nil {
		return trialOutcome{err: err}
	}
	binned, err := proc.Transform(train)
	if err != nil {
		return trialOutcome{err: err}
	}
	col, _ := binned.Column(name)
	iv, err := IV(col.Nums, target)
	if err != nil {
		return trialOutcome{err: err}
	}
	return trialOutcome{iv: iv}
}

// missingRate is measured on the original, pre-imputation frame; the
// imputed working copy would always report zero.
func missingRate(original *dataset.Frame, name string) float64 {
	col, ok := original.Column(name)
	if !ok {
		return 1
	}
	return col.MissingRate()
}

// hasImputedVariety reports whether imputation introduces a second distinct
// value into an otherwise constant column (one level plus nulls filled with
// a different level).
func hasImputedVariety(col *dataset.Column, imp binning.Imputation) bool {
	if col.DistinctCount() != 1 || col.MissingRate() == 0 {
		return false
	}
	if col.Kind == dataset.Numeric {
		for i, v := range col.Nums {
			if !col.Missing[i] {
				return v != imp.Num
			}
		}
		return false
	}
	for i, v := range col.Cats {
		if !col.Missing[i] {
			return v != imp.Cat
		}
	}
	return false
}
