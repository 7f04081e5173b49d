package core

// DefaultPreviewRows is how many leading rows a preview shows.
const DefaultPreviewRows = 20

// PreviewTable is a bounded view of a dataset for display.
type PreviewTable struct {
	Header    []string   `json:"header"`
	Rows      [][]string `json:"rows"`
	TotalRows int        `json:"totalRows"`
	Truncated bool       `json:"truncated"`
}

// Shown returns the number of rows included in the preview.
func (p PreviewTable) Shown() int {
	return len(p.Rows)
}

// Preview returns up to limit leading rows of ds.
// A non-positive limit falls back to DefaultPreviewRows.
// The returned rows alias ds; callers must treat them as read-only.
func Preview(ds Dataset, limit int) PreviewTable {
	if limit <= 0 {
		limit = DefaultPreviewRows
	}

	rows := ds.Rows
	if len(rows) > limit {
		rows = rows[:limit]
	}
	if rows == nil {
		rows = [][]string{}
	}

	return PreviewTable{
		Header:    ds.Header,
		Rows:      rows,
		TotalRows: len(ds.Rows),
		Truncated: len(ds.Rows) > limit,
	}
}
