package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for the two failure kinds of the pipeline.
// Callers match them with errors.Is; the concrete types carry detail.
var (
	ErrInvalidOperation = errors.New("invalid operation")
	ErrMalformedDataset = errors.New("malformed dataset")
)

// OperationError reports an operation name outside the supported set.
type OperationError struct {
	Name string
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("invalid operation %q", e.Name)
}

// Is lets errors.Is(err, ErrInvalidOperation) match.
func (e *OperationError) Is(target error) bool {
	return target == ErrInvalidOperation
}

// MalformedError reports a data row whose width differs from the header.
// Row is 1-based and counts data rows only.
type MalformedError struct {
	Row  int
	Want int
	Got  int
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed dataset: row %d has %d cells, header has %d", e.Row, e.Got, e.Want)
}

// Is lets errors.Is(err, ErrMalformedDataset) match.
func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformedDataset
}
