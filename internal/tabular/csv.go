package tabular

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/JonMunkholm/csvcleaner/internal/core"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ReadCSV parses r as delimited text. The first record is the header.
//
// The reader is wrapped so that a UTF-8 or UTF-16 BOM selects its own
// encoding and is dropped; without a BOM the configured encoding applies.
// Invalid sequences decode to U+FFFD instead of failing the upload.
func (c *Codec) ReadCSV(r io.Reader) (core.Dataset, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(c.encoding.NewDecoder()))

	reader := csv.NewReader(decoded)
	reader.Comma = c.delimiter
	reader.FieldsPerRecord = -1 // width is checked by the pipeline

	records, err := reader.ReadAll()
	if err != nil {
		return core.Dataset{}, fmt.Errorf("invalid csv: %w", err)
	}
	if len(records) == 0 {
		return core.Dataset{}, ErrEmptyFile
	}

	return core.Dataset{
		Header: records[0],
		Rows:   records[1:],
	}, nil
}

// WriteCSV writes ds as comma-separated UTF-8 text, header first.
func WriteCSV(w io.Writer, ds core.Dataset) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(ds.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := writer.WriteAll(ds.Rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}
