// Package dataset loads and validates the tabular training data.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
)

// ErrMissing indicates the dataset file does not exist.
var ErrMissing = errors.New("dataset file not found")

// ErrInvalid indicates the dataset is present but violates the training
// contract (empty, or required columns absent).
var ErrInvalid = errors.New("dataset invalid")

// RequiredColumns is the training input contract. Training aborts before any
// fitting if one of these is missing.
var RequiredColumns = []string{
	"date", "price", "bedrooms", "bathrooms", "sqft_living", "sqft_lot",
	"floors", "waterfront", "view", "condition", "sqft_above",
	"sqft_basement", "yr_built", "yr_renovated", "city", "statezip", "country",
}

// Table is a rectangular string table: one header row plus data rows.
type Table struct {
	Header []string
	Rows   [][]string

	index map[string]int
}

// Load reads a CSV file into a Table and validates the training contract.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissing, path)
		}
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalid, path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%w: %s has no data rows", ErrInvalid, path)
	}

	t := &Table{Header: records[0], Rows: records[1:]}
	t.index = make(map[string]int, len(t.Header))
	for i, name := range t.Header {
		t.index[name] = i
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := t.index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %v", ErrInvalid, missing)
	}
	return t, nil
}

// HasColumn reports whether the table contains the named column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the values of the named column.
func (t *Table) Column(name string) ([]string, error) {
	idx, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("dataset: no column %q", name)
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }
