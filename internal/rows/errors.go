package rows

import "errors"

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotConfigured = errors.New("database not configured")
	ErrNotFound      = errors.New("not found")
	ErrTooLarge      = errors.New("file too large")
)

// inputError carries a user-facing message and matches ErrInvalidInput, plus
// ErrTooLarge when a size limit was hit.
type inputError struct {
	err      error
	tooLarge bool
}

func invalid(err error) error {
	return inputError{err: err}
}

func tooLarge(err error) error {
	return inputError{err: err, tooLarge: true}
}

func (e inputError) Error() string { return e.err.Error() }

func (e inputError) Unwrap() []error {
	if e.tooLarge {
		return []error{ErrInvalidInput, ErrTooLarge, e.err}
	}
	return []error{ErrInvalidInput, e.err}
}
