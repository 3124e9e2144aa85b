package phoneverify

import (
	"errors"
	"fmt"

	"github.com/jakejscott/phoneverify/verification"
)

var (
	// ErrPhoneRequired is returned by Start for an empty phone.
	ErrPhoneRequired = errors.New("phone required")
	// ErrPhoneInvalid is returned by Start when the phone cannot be parsed.
	ErrPhoneInvalid = errors.New("phone invalid")
	// ErrCodeRequired is returned by Check for an empty code.
	ErrCodeRequired = errors.New("code required")
	// ErrNotFound is returned for an unknown verification id.
	ErrNotFound = errors.New("verification not found")
	// ErrAlreadyVerified is returned when the attempt was already verified.
	ErrAlreadyVerified = errors.New("already verified")
	// ErrExpired is returned when the attempt is older than VerificationTTL.
	ErrExpired = errors.New("verification expired")
	// ErrAttemptsExceeded is returned when the attempt used all of its checks.
	ErrAttemptsExceeded = errors.New("attempts exceeded")
	// ErrRateLimited is returned when the phone started too many attempts in the window.
	ErrRateLimited = errors.New("rate limited")
	// ErrInvalidCode is returned for a wrong code. The attempt counter was incremented.
	ErrInvalidCode = errors.New("invalid code")
	// ErrConflict is returned when a version advance was lost and the re-read found nothing usable.
	ErrConflict = errors.New("verification conflict")
	// ErrStoreUnavailable wraps store backend failures.
	ErrStoreUnavailable = errors.New("verification store unavailable")
	// ErrDeliveryFailed is returned by Start only when Delivery.FailOnError is set.
	ErrDeliveryFailed = errors.New("code delivery failed")
	// ErrEngineNotReady is returned by methods on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ErrorKind groups errors by how callers should react.
type ErrorKind uint8

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindPolicy
	KindDependency
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindPolicy:
		return "policy"
	case KindDependency:
		return "dependency"
	default:
		return "internal"
	}
}

// KindOf classifies err. Unknown errors are KindInternal.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrPhoneRequired),
		errors.Is(err, ErrPhoneInvalid),
		errors.Is(err, ErrCodeRequired):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrAlreadyVerified),
		errors.Is(err, ErrExpired),
		errors.Is(err, ErrAttemptsExceeded),
		errors.Is(err, ErrRateLimited),
		errors.Is(err, ErrInvalidCode):
		return KindPolicy
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrDeliveryFailed):
		return KindDependency
	default:
		return KindInternal
	}
}

// storeErr maps store sentinels onto engine errors, keeping the backend
// message for unavailability.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, verification.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, verification.ErrConflict):
		return ErrConflict
	case errors.Is(err, verification.ErrAlreadyVerified):
		return ErrAlreadyVerified
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}
