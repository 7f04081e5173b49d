package tabular

import (
	"fmt"
	"io"

	"github.com/JonMunkholm/csvcleaner/internal/core"
	"github.com/xuri/excelize/v2"
)

// sheetName is the worksheet name used for downloads.
const sheetName = "Cleaned"

// ReadXLSX reads the first worksheet of a workbook. The first row is the header.
//
// Spreadsheets do not store empty trailing cells, so rows shorter than the
// header are padded with empty strings. Rows wider than the header are kept
// as-is and rejected later by the pipeline.
func ReadXLSX(r io.Reader) (core.Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return core.Dataset{}, fmt.Errorf("invalid xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return core.Dataset{}, ErrEmptyFile
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return core.Dataset{}, fmt.Errorf("invalid xlsx: sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return core.Dataset{}, ErrEmptyFile
	}

	header := rows[0]
	data := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) < len(header) {
			padded := make([]string, len(header))
			copy(padded, row)
			row = padded
		}
		data = append(data, row)
	}

	return core.Dataset{Header: header, Rows: data}, nil
}

// WriteXLSX writes ds to a single-sheet workbook.
func WriteXLSX(w io.Writer, ds core.Dataset) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	if err := writeSheetRow(f, 1, ds.Header); err != nil {
		return err
	}
	for i, row := range ds.Rows {
		if err := writeSheetRow(f, i+2, row); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// writeSheetRow writes cells starting at column A of the given 1-based row.
func writeSheetRow(f *excelize.File, rowNum int, cells []string) error {
	if len(cells) == 0 {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return fmt.Errorf("row %d: %w", rowNum, err)
	}
	values := make([]interface{}, len(cells))
	for i, v := range cells {
		values[i] = v
	}
	if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
		return fmt.Errorf("row %d: %w", rowNum, err)
	}
	return nil
}
