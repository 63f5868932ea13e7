package types

import (
	"errors"
	"fmt"
)

// ValidationError indicates caller input that can never succeed as given:
// an invalid type hierarchy, a cycle, a self-parent, a keeper listed among
// its own merge targets, an out-of-range issue index. Never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// NewValidationError creates a ValidationError with a formatted message
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NotFoundError indicates a referenced activity, entity, or report that
// does not exist (or has been soft-deleted where deleted rows are excluded).
type NotFoundError struct {
	Kind string // "activity", "entity", "report"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// NewNotFoundError creates a NotFoundError for the given kind and id
func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// IsNotFound reports whether err is (or wraps) a NotFoundError
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ItemError records one failed item inside a batch operation. Batch
// operations collect these and keep going; they never abort the whole
// run for a single item.
type ItemError struct {
	ID  string `json:"id"`
	Err string `json:"error"`
}

func (e ItemError) Error() string {
	return fmt.Sprintf("%s: %s", e.ID, e.Err)
}
