package feeds

import "errors"

var (
	// ErrNotFound is returned when the addressed entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateSource is returned when a source URL is already registered.
	ErrDuplicateSource = errors.New("RSS source already exists")

	// ErrInvalid marks input validation failures.
	ErrInvalid = errors.New("invalid input")
)

// InputError is a validation failure with a user-facing message. It matches
// ErrInvalid with errors.Is.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

func (e *InputError) Is(target error) bool { return target == ErrInvalid }

func invalid(msg string) error { return &InputError{Msg: msg} }
