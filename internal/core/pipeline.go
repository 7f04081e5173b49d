package core

// Clean applies the requested operations to a copy of ds and returns the
// result with before/after statistics.
//
// Operations always run in the fixed order of Operations(), whatever order
// names arrives in. Validation happens before any transform: an unknown name
// fails with an *OperationError and a ragged row fails with a *MalformedError,
// and in both cases nothing is applied. ds itself is never modified.
func Clean(ds Dataset, names []string) (Dataset, Stats, error) {
	ops, err := ParseOperations(names)
	if err != nil {
		return Dataset{}, Stats{}, err
	}
	if err := ds.Validate(); err != nil {
		return Dataset{}, Stats{}, err
	}

	stats := Stats{
		RowsBefore:    ds.NumRows(),
		ColumnsBefore: ds.NumColumns(),
		Applied:       make([]string, 0, len(ops)),
	}

	out := ds.Clone()
	for _, op := range ops {
		out = op.apply(out)
		stats.Applied = append(stats.Applied, op.Name)
	}

	stats.RowsAfter = out.NumRows()
	stats.ColumnsAfter = out.NumColumns()
	return out, stats, nil
}
