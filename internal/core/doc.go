// Package core provides the cleaning pipeline for tabular uploads.
//
// This package is the heart of the CSV cleaner, containing all domain logic
// independent of any UI, storage or transport layer. It can be used by web
// handlers, CLI tools, or tests without modification.
//
// # Pipeline
//
// [Clean] takes a [Dataset] (header plus rows of text cells) and a list of
// operation names, and returns the cleaned dataset with [Stats]:
//
//	cleaned, stats, err := core.Clean(ds, []string{"remove_duplicates", "trim_whitespace"})
//
// Operations come from a closed set (see [Operations]) and always run in the
// same fixed order, whatever order they were requested in:
//
//  1. standardize_case
//  2. remove_special_chars
//  3. trim_whitespace
//  4. remove_empty_columns
//  5. remove_nulls
//  6. remove_duplicates
//
// Clean is a pure function. It never mutates its input, performs no I/O and is
// safe to call from any number of goroutines. Running it twice with the same
// operations yields the same dataset as running it once.
//
// # Service
//
// [Service] wraps the pipeline for the web layer: it bounds concurrent runs
// with an upload limiter, decodes the uploaded file, cleans it, records the
// run in the cleaning history and updates metrics.
//
// # Error Handling
//
// The pipeline fails with [ErrInvalidOperation] or [ErrMalformedDataset]
// (match with errors.Is). Technical errors are mapped to user-friendly
// messages using [MapError]; each category has a code for support reference.
package core
