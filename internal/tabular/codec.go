// Package tabular converts uploaded files to and from core.Dataset values.
//
// Two formats are supported, chosen by file extension:
//
//   - CSV: decoded from the configured text encoding, UTF-8 BOM stripped,
//     invalid byte sequences replaced, then parsed with encoding/csv
//   - XLSX: first worksheet of the workbook, read with excelize
//
// Readers never pad or truncate CSV rows; ragged rows are passed through so
// the cleaning pipeline can reject them as malformed.
package tabular

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/csvcleaner/internal/core"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// Format identifies a supported file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ContentType returns the MIME type used when serving the format.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// ErrUnsupportedType is returned for files that are neither CSV nor XLSX.
var ErrUnsupportedType = errors.New("unsupported file type")

// ErrEmptyFile is returned when a file has no header row.
var ErrEmptyFile = errors.New("empty file")

// Detect picks the format from a file name's extension (case-insensitive).
func Detect(fileName string) (Format, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, filepath.Ext(fileName))
	}
}

// ParseFormat parses a format name such as "csv" or "XLSX".
// An empty name means CSV.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, name)
	}
}

// ReadOptions controls how CSV uploads are decoded.
type ReadOptions struct {
	// Encoding is a WHATWG encoding label, e.g. "utf-8", "windows-1252" (default: utf-8)
	Encoding string
	// Delimiter separates fields (default: ',')
	Delimiter rune
}

// Codec decodes uploads and encodes downloads. It implements core.Decoder.
type Codec struct {
	delimiter rune
	encoding  encoding.Encoding
}

// NewCodec validates opts and returns a ready Codec.
func NewCodec(opts ReadOptions) (*Codec, error) {
	label := opts.Encoding
	if label == "" {
		label = "utf-8"
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("encoding error: unsupported encoding %q: %w", label, err)
	}

	delim := opts.Delimiter
	if delim == 0 {
		delim = ','
	}
	if delim == '"' || delim == '\r' || delim == '\n' {
		return nil, fmt.Errorf("invalid delimiter %q", delim)
	}

	return &Codec{delimiter: delim, encoding: enc}, nil
}

// Decode reads an uploaded file into a Dataset, choosing the format by extension.
func (c *Codec) Decode(fileName string, r io.Reader) (core.Dataset, error) {
	format, err := Detect(fileName)
	if err != nil {
		return core.Dataset{}, err
	}

	switch format {
	case FormatXLSX:
		return ReadXLSX(r)
	default:
		return c.ReadCSV(r)
	}
}

// Encode writes ds in the given format.
func (c *Codec) Encode(w io.Writer, ds core.Dataset, format Format) error {
	switch format {
	case FormatXLSX:
		return WriteXLSX(w, ds)
	default:
		return WriteCSV(w, ds)
	}
}
