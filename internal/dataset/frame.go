// Package dataset provides the column-oriented frame used throughout the
// preprocessing pipeline and the serving path. Columns are either numeric
// or categorical and carry an explicit missing mask, so null handling is
// identical for CSV-loaded training data and JSON request batches.
package dataset

import (
	"fmt"
	"math"

	"credit-underwriter/internal/errs"
)

const (
	// IDColumn identifies application rows and is excluded from modeling.
	IDColumn = "SK_ID_CURR"
	// TargetColumn is the binary label column of the training set.
	TargetColumn = "TARGET"
)

// Kind discriminates column storage.
type Kind int

const (
	Numeric Kind = iota
	Categorical
)

// Column is a single feature column. Numeric columns use Nums, categorical
// columns use Cats; Missing marks null cells for both.
type Column struct {
	Kind    Kind
	Nums    []float64
	Cats    []string
	Missing []bool
}

// NewNumericColumn builds a numeric column from values, treating NaN as missing.
func NewNumericColumn(values []float64) *Column {
	c := &Column{Kind: Numeric, Nums: make([]float64, len(values)), Missing: make([]bool, len(values))}
	for i, v := range values {
		if math.IsNaN(v) {
			c.Missing[i] = true
			continue
		}
		c.Nums[i] = v
	}
	return c
}

// NewCategoricalColumn builds a categorical column; empty strings are kept
// as levels, use the mask for nulls.
func NewCategoricalColumn(values []string, missing []bool) *Column {
	c := &Column{Kind: Categorical, Cats: append([]string(nil), values...)}
	if missing != nil {
		c.Missing = append([]bool(nil), missing...)
	} else {
		c.Missing = make([]bool, len(values))
	}
	return c
}

// EmptyColumn returns an all-missing numeric column of n rows. Used when a
// request batch omits an expected feature.
func EmptyColumn(n int) *Column {
	c := &Column{Kind: Numeric, Nums: make([]float64, n), Missing: make([]bool, n)}
	for i := range c.Missing {
		c.Missing[i] = true
	}
	return c
}

func (c *Column) Len() int {
	if c.Kind == Numeric {
		return len(c.Nums)
	}
	return len(c.Cats)
}

// MissingRate returns the fraction of null cells.
func (c *Column) MissingRate() float64 {
	n := c.Len()
	if n == 0 {
		return 0
	}
	miss := 0
	for _, m := range c.Missing {
		if m {
			miss++
		}
	}
	return float64(miss) / float64(n)
}

// DistinctCount counts distinct non-missing values.
func (c *Column) DistinctCount() int {
	if c.Kind == Numeric {
		seen := make(map[float64]struct{})
		for i, v := range c.Nums {
			if !c.Missing[i] {
				seen[v] = struct{}{}
			}
		}
		return len(seen)
	}
	seen := make(map[string]struct{})
	for i, v := range c.Cats {
		if !c.Missing[i] {
			seen[v] = struct{}{}
		}
	}
	return len(seen)
}

// Clone returns a deep copy of the column.
func (c *Column) Clone() *Column {
	out := &Column{Kind: c.Kind, Missing: append([]bool(nil), c.Missing...)}
	if c.Nums != nil {
		out.Nums = append([]float64(nil), c.Nums...)
	}
	if c.Cats != nil {
		out.Cats = append([]string(nil), c.Cats...)
	}
	return out
}

// Frame is an ordered collection of equal-length columns.
type Frame struct {
	names []string
	cols  map[string]*Column
	rows  int
}

// NewFrame creates an empty frame expecting n rows per column.
func NewFrame(rows int) *Frame {
	return &Frame{cols: make(map[string]*Column), rows: rows}
}

// AddColumn appends a named column. Length must match the frame row count.
func (f *Frame) AddColumn(name string, c *Column) error {
	if _, ok := f.cols[name]; ok {
		return fmt.Errorf("duplicate column %q: %w", name, errs.ErrInvalidInput)
	}
	if c.Len() != f.rows {
		return fmt.Errorf("column %q has %d rows, frame has %d: %w", name, c.Len(), f.rows, errs.ErrInvalidInput)
	}
	f.names = append(f.names, name)
	f.cols[name] = c
	return nil
}

// Column returns the named column.
func (f *Frame) Column(name string) (*Column, bool) {
	c, ok := f.cols[name]
	return c, ok
}

// Names returns the column names in insertion order.
func (f *Frame) Names() []string {
	return append([]string(nil), f.names...)
}

// Rows returns the row count.
func (f *Frame) Rows() int { return f.rows }

// Has reports whether the frame contains the named column.
func (f *Frame) Has(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// Select returns a new frame sharing the named columns, in the given order.
// Unknown names are an error.
func (f *Frame) Select(names []string) (*Frame, error) {
	out := NewFrame(f.rows)
	for _, n := range names {
		c, ok := f.cols[n]
		if !ok {
			return nil, fmt.Errorf("column %q not in frame: %w", n, errs.ErrConfiguration)
		}
		if err := out.AddColumn(n, c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Drop returns a new frame sharing all columns except those named.
func (f *Frame) Drop(names ...string) *Frame {
	skip := make(map[string]struct{}, len(names))
	for _, n := range names {
		skip[n] = struct{}{}
	}
	out := NewFrame(f.rows)
	for _, n := range f.names {
		if _, ok := skip[n]; ok {
			continue
		}
		out.names = append(out.names, n)
		out.cols[n] = f.cols[n]
	}
	return out
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	out := NewFrame(f.rows)
	for _, n := range f.names {
		out.names = append(out.names, n)
		out.cols[n] = f.cols[n].Clone()
	}
	return out
}

// SplitFeatures partitions the frame's columns into categorical and
// numerical name sets, in column order, excluding the ID and target columns.
func SplitFeatures(f *Frame) (categorical, numerical []string) {
	for _, n := range f.names {
		if n == IDColumn || n == TargetColumn {
			continue
		}
		if f.cols[n].Kind == Categorical {
			categorical = append(categorical, n)
		} else {
			numerical = append(numerical, n)
		}
	}
	return categorical, numerical
}

// Target extracts the binary target column as ints. Values other than 0 and
// 1, or missing cells, are invalid input.
func Target(f *Frame) ([]int, error) {
	c, ok := f.Column(TargetColumn)
	if !ok {
		return nil, fmt.Errorf("frame has no %s column: %w", TargetColumn, errs.ErrInvalidInput)
	}
	if c.Kind != Numeric {
		return nil, fmt.Errorf("%s column is not numeric: %w", TargetColumn, errs.ErrInvalidInput)
	}
	out := make([]int, c.Len())
	for i, v := range c.Nums {
		if c.Missing[i] || (v != 0 && v != 1) {
			return nil, fmt.Errorf("%s row %d is not binary: %w", TargetColumn, i, errs.ErrInvalidInput)
		}
		out[i] = int(v)
	}
	return out, nil
}
