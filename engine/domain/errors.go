package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the ingestion/retrieval pipeline. Callers match with
// errors.Is; the wrapping DocumentError carries the document context.
var (
	// ErrExtraction covers a missing, unreadable, or unfetchable source
	// (file not found, malformed PDF, network failure, non-2xx status,
	// timeout). Non-fatal in batch mode: the offending document is skipped.
	ErrExtraction = errors.New("extraction failed")

	// ErrStoreWrite means a single insertion failed. Prior insertions in the
	// same batch stand; the missing chunk is picked up on the next run since
	// its ID is still absent from the store.
	ErrStoreWrite = errors.New("store write failed")

	// ErrStoreQuery means the nearest-neighbor query itself failed. This is
	// distinct from an empty match set, which is not an error.
	ErrStoreQuery = errors.New("store query failed")

	ErrInvalidRef = errors.New("invalid document ref")
)

// DocumentError wraps a sentinel with the document and operation it hit.
type DocumentError struct {
	Name    string
	Op      string
	Wrapped error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Name, e.Wrapped)
}

func (e *DocumentError) Unwrap() error { return e.Wrapped }

// NewDocumentError creates a DocumentError.
func NewDocumentError(name, op string, wrapped error) *DocumentError {
	return &DocumentError{Name: name, Op: op, Wrapped: wrapped}
}
