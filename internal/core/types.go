// Package core provides the cleaning pipeline for tabular uploads.
// This package has no UI or storage dependencies and can be used by any frontend.
package core

import "time"

// Dataset is a header plus ordered rows of cells aligned positionally with it.
type Dataset struct {
	Header []string
	Rows   [][]string
}

// NumRows returns the number of data rows (the header is not counted).
func (d Dataset) NumRows() int { return len(d.Rows) }

// NumColumns returns the number of header columns.
func (d Dataset) NumColumns() int { return len(d.Header) }

// Clone returns a deep copy so transforms never share backing arrays with the input.
// Nil and empty slices are preserved as such.
func (d Dataset) Clone() Dataset {
	out := Dataset{Header: cloneCells(d.Header)}
	if d.Rows != nil {
		out.Rows = make([][]string, len(d.Rows))
		for i, row := range d.Rows {
			out.Rows[i] = cloneCells(row)
		}
	}
	return out
}

func cloneCells(cells []string) []string {
	if cells == nil {
		return nil
	}
	out := make([]string, len(cells))
	copy(out, cells)
	return out
}

// Validate checks that every row has the same width as the header.
// Returns a *MalformedError for the first offending row.
func (d Dataset) Validate() error {
	width := len(d.Header)
	for i, row := range d.Rows {
		if len(row) != width {
			return &MalformedError{Row: i + 1, Want: width, Got: len(row)}
		}
	}
	return nil
}

// Stats summarises the shape of a dataset before and after cleaning.
type Stats struct {
	RowsBefore    int      `json:"rows_before"`
	RowsAfter     int      `json:"rows_after"`
	ColumnsBefore int      `json:"columns_before"`
	ColumnsAfter  int      `json:"columns_after"`
	Applied       []string `json:"operations"` // Operation names in application order
}

// RowsRemoved returns how many rows the pipeline dropped.
func (s Stats) RowsRemoved() int {
	return s.RowsBefore - s.RowsAfter
}

// ColumnsRemoved returns how many columns the pipeline dropped.
func (s Stats) ColumnsRemoved() int {
	return s.ColumnsBefore - s.ColumnsAfter
}

// RunResult is the outcome of one cleaning request handled by the Service.
type RunResult struct {
	ID       string
	FileName string
	Original Dataset
	Cleaned  Dataset
	Stats    Stats
	Duration time.Duration
}
