// Package selection reduces the survivor feature set to the final training
// columns. Two interchangeable strategies share one fitted representation:
// a univariate ANOVA F-test keeping the top-k scores, and a greedy forward
// wrapper scored by a classifier's held-out accuracy. Transform always
// emits the selected columns in their original relative order, which is
// what makes serialized replay reproduce training output exactly.
package selection

import (
	"fmt"

	"credit-underwriter/internal/dataset"
	"credit-underwriter/internal/errs"
	"credit-underwriter/internal/model"
)

// Method names accepted by the selector.
const (
	MethodKBest      = "kbest"
	MethodSequential = "sequential"
)

// AutoK retains every input feature, making the selector a pass-through.
const AutoK = 0

// Selector picks k features from a binned matrix. Zero K means auto.
// Factory is only consulted by the sequential method and is not part of
// the persisted state; a deserialized selector replays from Selected alone.
type Selector struct {
	Method   string             `json:"method"`
	K        int                `json:"k"`
	Selected []string           `json:"selected"`
	Scores   map[string]float64 `json:"scores,omitempty"`

	Factory model.Factory `json:"-"`
}

// NewKBest builds an ANOVA F-test selector. k <= 0 means auto.
func NewKBest(k int) *Selector {
	return &Selector{Method: MethodKBest, K: k}
}

// NewSequential builds a forward sequential selector around the classifier
// factory. k <= 0 means auto.
func NewSequential(k int, factory model.Factory) *Selector {
	return &Selector{Method: MethodSequential, K: k, Factory: factory}
}

// Fit scores the input columns against the training target and fixes the
// selected subset. Only the training target is consulted.
func (s *Selector) Fit(X *dataset.Frame, target []int) error {
	names := X.Names()
	if len(names) == 0 {
		return fmt.Errorf("no input features to select from: %w", errs.ErrConfiguration)
	}
	k := s.K
	if k <= AutoK {
		k = len(names)
	}
	if k > len(names) {
		return fmt.Errorf("k=%d exceeds %d input features: %w", k, len(names), errs.ErrConfiguration)
	}
	if X.Rows() != len(target) {
		return fmt.Errorf("frame has %d rows, target has %d: %w", X.Rows(), len(target), errs.ErrInvalidInput)
	}

	switch s.Method {
	case MethodKBest:
		return s.fitKBest(X, target, k)
	case MethodSequential:
		return s.fitSequential(X, target, k)
	default:
		return fmt.Errorf("unknown selection method %q: %w", s.Method, errs.ErrConfiguration)
	}
}

// Transform keeps only the selected columns, preserving their original
// relative order.
func (s *Selector) Transform(X *dataset.Frame) (*dataset.Frame, error) {
	if s.Selected == nil {
		return nil, fmt.Errorf("selector is not fitted: %w", errs.ErrConfiguration)
	}
	keep := make(map[string]struct{}, len(s.Selected))
	for _, n := range s.Selected {
		keep[n] = struct{}{}
	}
	ordered := make([]string, 0, len(s.Selected))
	for _, n := range X.Names() {
		if _, ok := keep[n]; ok {
			ordered = append(ordered, n)
		}
	}
	if len(ordered) != len(s.Selected) {
		return nil, fmt.Errorf("frame is missing %d selected columns: %w", len(s.Selected)-len(ordered), errs.ErrInvalidInput)
	}
	return X.Select(ordered)
}
