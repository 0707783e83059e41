package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// missing cell spellings accepted on load, matching what the upstream
// extractor emits.
var missingTokens = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "NaN": {}, "nan": {}, "null": {},
}

// ReadCSV loads a CSV file into a frame. Column types are inferred: a
// column where every non-missing cell parses as a float becomes numeric,
// anything else is categorical.
func ReadCSV(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.ReuseRecord = false
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("read %s: empty file", path)
	}

	header := rows[0]
	data := rows[1:]
	f := NewFrame(len(data))

	for j, name := range header {
		raw := make([]string, len(data))
		missing := make([]bool, len(data))
		numeric := true
		nums := make([]float64, len(data))
		for i, row := range data {
			cell := ""
			if j < len(row) {
				cell = row[j]
			}
			raw[i] = cell
			if _, miss := missingTokens[cell]; miss {
				missing[i] = true
				continue
			}
			if numeric {
				v, perr := strconv.ParseFloat(cell, 64)
				if perr != nil {
					numeric = false
				} else {
					nums[i] = v
				}
			}
		}

		var col *Column
		if numeric {
			col = &Column{Kind: Numeric, Nums: nums, Missing: missing}
		} else {
			col = NewCategoricalColumn(raw, missing)
			for i, m := range missing {
				if m {
					col.Cats[i] = ""
				}
			}
		}
		if err := f.AddColumn(name, col); err != nil {
			return nil, err
		}
	}

	log.Debug().Str("path", path).Int("rows", f.Rows()).Int("cols", len(header)).Msg("loaded CSV")
	return f, nil
}

// WriteCSV writes the frame to path. Missing cells are written empty.
func WriteCSV(f *Frame, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	names := f.Names()
	if err := w.Write(names); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(names))
	for i := 0; i < f.Rows(); i++ {
		for j, n := range names {
			c, _ := f.Column(n)
			if c.Missing[i] {
				row[j] = ""
				continue
			}
			if c.Kind == Numeric {
				row[j] = strconv.FormatFloat(c.Nums[i], 'g', -1, 64)
			} else {
				row[j] = c.Cats[i]
			}
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	w.Flush()
	return w.Error()
}
