package binning

import (
	"fmt"

	"credit-underwriter/internal/dataset"
	"credit-underwriter/internal/errs"
)

// Options bound the shape of fitted partitions.
type Options struct {
	MaxPrebins int     `json:"max_prebins"`
	MaxBins    int     `json:"max_bins"`
	MinBinFrac float64 `json:"min_bin_frac"`
}

// DefaultOptions mirror the pre-binning defaults the pipeline was tuned
// with.
func DefaultOptions() Options {
	return Options{MaxPrebins: 20, MaxBins: 10, MinBinFrac: 0.05}
}

// Imputation carries the train-fitted fill values for one feature.
type Imputation struct {
	Num float64 `json:"num,omitempty"`
	Cat string  `json:"cat,omitempty"`
}

type imputeSpec struct {
	num float64
	cat string
}

// Process fits and applies one partition per requested feature. The same
// type serves both the single-feature trial fits of the survivor phase and
// the final joint fit over survivors; the per-feature algorithm is
// identical. A fitted process is immutable and safe for concurrent
// Transform calls.
type Process struct {
	VariableNames        []string              `json:"variable_names"`
	CategoricalVariables []string              `json:"categorical_variables"`
	Opts                 Options               `json:"options"`
	Imputation           map[string]Imputation `json:"imputation,omitempty"`
	Partitions           map[string]*Partition `json:"partitions,omitempty"`

	categorical map[string]bool
}

// NewProcess prepares an unfitted process over the given features.
// Imputation, when provided for a feature, is applied before every fit and
// transform so training and serving see identical values.
func NewProcess(names, categorical []string, opts Options, imputation map[string]Imputation) *Process {
	p := &Process{
		VariableNames:        append([]string(nil), names...),
		CategoricalVariables: append([]string(nil), categorical...),
		Opts:                 opts,
		Imputation:           imputation,
	}
	p.Rebuild()
	return p
}

// Rebuild restores lookup state after construction or deserialization.
func (p *Process) Rebuild() {
	p.categorical = make(map[string]bool, len(p.CategoricalVariables))
	for _, n := range p.CategoricalVariables {
		p.categorical[n] = true
	}
	for _, part := range p.Partitions {
		part.rebuild()
	}
}

// IsCategorical reports whether the process treats the feature as
// categorical.
func (p *Process) IsCategorical(name string) bool {
	if p.categorical == nil {
		p.Rebuild()
	}
	return p.categorical[name]
}

// Fit learns one partition per variable from the frame and target. Fitting
// is idempotent given identical input and touches nothing but the receiver.
func (p *Process) Fit(f *dataset.Frame, target []int) error {
	if f.Rows() != len(target) {
		return fmt.Errorf("frame has %d rows, target has %d: %w", f.Rows(), len(target), errs.ErrInvalidInput)
	}
	for _, y := range target {
		if y != 0 && y != 1 {
			return fmt.Errorf("target is not binary: %w", errs.ErrInvalidInput)
		}
	}

	parts := make(map[string]*Partition, len(p.VariableNames))
	for _, name := range p.VariableNames {
		col, ok := f.Column(name)
		if !ok {
			return fmt.Errorf("feature %q not in frame: %w", name, errs.ErrConfiguration)
		}

		var imp *imputeSpec
		if iv, ok := p.Imputation[name]; ok {
			imp = &imputeSpec{num: iv.Num, cat: iv.Cat}
		}

		var part *Partition
		var err error
		if p.IsCategorical(name) {
			if col.Kind != dataset.Categorical {
				return fmt.Errorf("feature %q declared categorical but column is numeric: %w", name, errs.ErrConfiguration)
			}
			part, err = fitCategorical(name, col.Cats, col.Missing, target, p.Opts, imp)
		} else {
			if col.Kind != dataset.Numeric {
				return fmt.Errorf("feature %q declared numeric but column is categorical: %w", name, errs.ErrConfiguration)
			}
			part, err = fitNumeric(name, col.Nums, col.Missing, target, p.Opts, imp)
		}
		if err != nil {
			return err
		}
		parts[name] = part
	}
	p.Partitions = parts
	return nil
}

// Transform maps every requested variable of the frame to bin codes. A
// variable absent from the frame yields the special bin for every row, the
// silent-degrade path for request batches missing expected fields.
func (p *Process) Transform(f *dataset.Frame) (*dataset.Frame, error) {
	if p.Partitions == nil {
		return nil, fmt.Errorf("binning process is not fitted: %w", errs.ErrConfiguration)
	}

	out := dataset.NewFrame(f.Rows())
	for _, name := range p.VariableNames {
		part := p.Partitions[name]
		if part == nil {
			return nil, fmt.Errorf("no partition for feature %q: %w", name, errs.ErrConfiguration)
		}

		codes := make([]float64, f.Rows())
		col, ok := f.Column(name)
		for i := 0; i < f.Rows(); i++ {
			var code int
			switch {
			case !ok:
				code = part.SpecialBin()
			case part.Categorical && col.Kind == dataset.Categorical:
				code = part.TransformCategorical(col.Cats[i], col.Missing[i])
			case !part.Categorical && col.Kind == dataset.Numeric:
				code = part.TransformNumeric(col.Nums[i], col.Missing[i])
			default:
				// Column arrived with the wrong dtype; treat every cell
				// as unseen rather than failing the batch.
				code = part.SpecialBin()
			}
			codes[i] = float64(code)
		}
		if err := out.AddColumn(name, dataset.NewNumericColumn(codes)); err != nil {
			return nil, err
		}
	}
	return out, nil
}
