package core

// operations.go defines the closed set of cleaning transforms.
//
// Each transform receives a Dataset it owns (already cloned by Clean) and
// returns the transformed Dataset. Transforms are grouped by reach:
//
//   - Cell transforms touch one cell at a time (case, special chars, trim)
//   - Column transforms drop whole columns (remove_empty_columns)
//   - Row transforms drop whole rows (remove_nulls, remove_duplicates)
//
// The application order is fixed by the order of the operations slice below,
// independent of the order the caller asked for them.

import (
	"strconv"
	"strings"
	"unicode"
)

// Operation names accepted by Clean and ParseOperations.
const (
	OpStandardizeCase    = "standardize_case"
	OpRemoveSpecialChars = "remove_special_chars"
	OpTrimWhitespace     = "trim_whitespace"
	OpRemoveEmptyColumns = "remove_empty_columns"
	OpRemoveNulls        = "remove_nulls"
	OpRemoveDuplicates   = "remove_duplicates"
)

// Operation is a named transform from the closed set.
type Operation struct {
	Name        string
	Label       string // Display name: "Remove Duplicates"
	Description string
	Default     bool // Pre-selected in the upload form
	apply       func(Dataset) Dataset
}

// operations lists every supported transform in application order.
// Cell-level rewrites run before trim so no pass can leave untrimmed text,
// and row filters run last so they see final cell values.
var operations = []Operation{
	{
		Name:        OpStandardizeCase,
		Label:       "Standardize Case",
		Description: "Lowercase every cell",
		apply:       mapCells(strings.ToLower),
	},
	{
		Name:        OpRemoveSpecialChars,
		Label:       "Remove Special Characters",
		Description: "Keep only letters, digits and spaces",
		apply:       mapCells(stripSpecialChars),
	},
	{
		Name:        OpTrimWhitespace,
		Label:       "Trim Whitespace",
		Description: "Strip leading and trailing whitespace from every cell",
		Default:     true,
		apply:       mapCells(strings.TrimSpace),
	},
	{
		Name:        OpRemoveEmptyColumns,
		Label:       "Remove Empty Columns",
		Description: "Drop columns where every cell is empty",
		apply:       removeEmptyColumns,
	},
	{
		Name:        OpRemoveNulls,
		Label:       "Remove Nulls",
		Description: "Drop rows with at least one empty cell",
		Default:     true,
		apply:       removeNulls,
	},
	{
		Name:        OpRemoveDuplicates,
		Label:       "Remove Duplicates",
		Description: "Drop rows identical to an earlier row",
		Default:     true,
		apply:       removeDuplicates,
	},
}

// Operations returns all supported operations in application order.
func Operations() []Operation {
	out := make([]Operation, len(operations))
	copy(out, operations)
	return out
}

// LookupOperation returns the operation with the given name.
func LookupOperation(name string) (Operation, bool) {
	for _, op := range operations {
		if op.Name == name {
			return op, true
		}
	}
	return Operation{}, false
}

// ParseOperations validates requested names and returns the matching
// operations in application order. Duplicate names collapse to one.
// Returns an *OperationError for the first unknown name.
func ParseOperations(names []string) ([]Operation, error) {
	requested := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if _, ok := LookupOperation(name); !ok {
			return nil, &OperationError{Name: name}
		}
		requested[name] = true
	}

	ops := make([]Operation, 0, len(requested))
	for _, op := range operations {
		if requested[op.Name] {
			ops = append(ops, op)
		}
	}
	return ops, nil
}

// Labels returns display labels for the named operations, skipping unknown names.
func Labels(names []string) []string {
	labels := make([]string, 0, len(names))
	for _, name := range names {
		if op, ok := LookupOperation(name); ok {
			labels = append(labels, op.Label)
		}
	}
	return labels
}

// isEmptyCell reports whether a cell counts as null: empty after trimming.
func isEmptyCell(s string) bool {
	return strings.TrimSpace(s) == ""
}

// mapCells builds a transform that rewrites every cell in place.
func mapCells(fn func(string) string) func(Dataset) Dataset {
	return func(ds Dataset) Dataset {
		for _, row := range ds.Rows {
			for i, cell := range row {
				row[i] = fn(cell)
			}
		}
		return ds
	}
}

// stripSpecialChars keeps letters, digits and whitespace.
func stripSpecialChars(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, s)
}

// removeEmptyColumns drops columns whose cells are all empty.
// A dataset without rows keeps every column.
func removeEmptyColumns(ds Dataset) Dataset {
	if len(ds.Rows) == 0 {
		return ds
	}

	keep := make([]int, 0, len(ds.Header))
	for col := range ds.Header {
		for _, row := range ds.Rows {
			if !isEmptyCell(row[col]) {
				keep = append(keep, col)
				break
			}
		}
	}
	if len(keep) == len(ds.Header) {
		return ds
	}

	out := Dataset{
		Header: pick(ds.Header, keep),
		Rows:   make([][]string, len(ds.Rows)),
	}
	for i, row := range ds.Rows {
		out.Rows[i] = pick(row, keep)
	}
	return out
}

func pick(cells []string, idx []int) []string {
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = cells[j]
	}
	return out
}

// removeNulls drops every row holding an empty cell, preserving order.
func removeNulls(ds Dataset) Dataset {
	kept := ds.Rows[:0]
	for _, row := range ds.Rows {
		if !hasEmptyCell(row) {
			kept = append(kept, row)
		}
	}
	ds.Rows = kept
	return ds
}

func hasEmptyCell(row []string) bool {
	for _, cell := range row {
		if isEmptyCell(cell) {
			return true
		}
	}
	return false
}

// removeDuplicates keeps the first occurrence of each distinct row.
func removeDuplicates(ds Dataset) Dataset {
	seen := make(map[string]struct{}, len(ds.Rows))
	kept := ds.Rows[:0]
	for _, row := range ds.Rows {
		key := rowKey(row)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, row)
	}
	ds.Rows = kept
	return ds
}

// rowKey encodes a row so that distinct cell sequences never collide.
// Each cell is length-prefixed, which keeps ["a,b"] and ["a","b"] apart.
func rowKey(row []string) string {
	var b strings.Builder
	for _, cell := range row {
		b.WriteString(strconv.Itoa(len(cell)))
		b.WriteByte(':')
		b.WriteString(cell)
	}
	return b.String()
}
