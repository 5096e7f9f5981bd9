package shared

import "errors"

// Error taxonomy shared by every domain package. Domain code wraps these with
// context (fmt.Errorf("%w: ...", ErrValidation)) and callers match with errors.Is.
var (
	// ErrValidation indicates malformed input or a rule violated by the input itself.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a uniqueness or compare-and-set race was lost.
	ErrConflict = errors.New("conflict")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrPrecondition indicates the resource is in the wrong state for the operation.
	ErrPrecondition = errors.New("precondition failed")
	// ErrUnauthorized indicates the request carries no acting user.
	ErrUnauthorized = errors.New("unauthorized")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// NewError builds an error with its own message that still matches kind via errors.Is.
func NewError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}
