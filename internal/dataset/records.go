package dataset

import (
	"encoding/json"
	"fmt"
	"math"

	"credit-underwriter/internal/errs"
)

// FromRecords converts a JSON record batch into a frame covering exactly
// the expected columns. Extra fields are dropped; absent or null fields
// leave the cell missing. Fields named in categoricalSet become categorical
// columns, all others numeric.
func FromRecords(records []map[string]any, expected []string, categoricalSet map[string]bool) (*Frame, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("empty record batch: %w", errs.ErrInvalidInput)
	}

	f := NewFrame(len(records))
	for _, name := range expected {
		if categoricalSet[name] {
			cats := make([]string, len(records))
			missing := make([]bool, len(records))
			for i, rec := range records {
				v, ok := rec[name]
				if !ok || v == nil {
					missing[i] = true
					continue
				}
				s, err := asString(v)
				if err != nil {
					return nil, fmt.Errorf("field %q row %d: %w", name, i, err)
				}
				cats[i] = s
			}
			if err := f.AddColumn(name, NewCategoricalColumn(cats, missing)); err != nil {
				return nil, err
			}
			continue
		}

		nums := make([]float64, len(records))
		missing := make([]bool, len(records))
		for i, rec := range records {
			v, ok := rec[name]
			if !ok || v == nil {
				missing[i] = true
				continue
			}
			x, err := asFloat(v)
			if err != nil {
				return nil, fmt.Errorf("field %q row %d: %w", name, i, err)
			}
			if math.IsNaN(x) {
				missing[i] = true
				continue
			}
			nums[i] = x
		}
		if err := f.AddColumn(name, &Column{Kind: Numeric, Nums: nums, Missing: missing}); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Record extracts row i of the frame as a generic map, nil for missing
// cells. Inverse of FromRecords for round-tripping through the row store.
func Record(f *Frame, i int) map[string]any {
	out := make(map[string]any, len(f.names))
	for _, n := range f.names {
		c := f.cols[n]
		if c.Missing[i] {
			out[n] = nil
			continue
		}
		if c.Kind == Numeric {
			out[n] = c.Nums[i]
		} else {
			out[n] = c.Cats[i]
		}
	}
	return out
}

func asFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case json.Number:
		return x.Float64()
	default:
		return 0, fmt.Errorf("expected number, got %T: %w", v, errs.ErrInvalidInput)
	}
}

func asString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	default:
		return "", fmt.Errorf("expected string, got %T: %w", v, errs.ErrInvalidInput)
	}
}
