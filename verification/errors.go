package verification

import "errors"

var (
	// ErrNotFound is returned when the pointer, attempt, or id index entry does not exist.
	ErrNotFound = errors.New("verification not found")
	// ErrConflict is returned when a conditional write on the pointer row loses.
	ErrConflict = errors.New("verification version conflict")
	// ErrAlreadyVerified is returned by SetVerified when the attempt already carries a verified time.
	ErrAlreadyVerified = errors.New("verification already verified")
	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("verification store unavailable")
	// ErrInvalidPhone is returned for an empty phone key.
	ErrInvalidPhone = errors.New("verification phone key empty")
)
