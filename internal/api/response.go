package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jakejscott/phoneverify"
)

const (
	msgInvalidRequest     = "Invalid request"
	msgPhoneRequired      = "Phone required"
	msgPhoneInvalid       = "Phone invalid"
	msgCodeRequired       = "Code required"
	msgIDInvalid          = "Id invalid"
	msgNotFound           = "Not found"
	msgAlreadyVerified    = "Already verified"
	msgExpired            = "Expired"
	msgAttemptsExceeded   = "Attempts exceeded"
	msgRateLimit          = "Rate limit"
	msgInvalidCode        = "Invalid code"
	msgConflict           = "Conflict"
	msgServiceUnavailable = "Service unavailable"
	msgInternal           = "Internal error"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// errorStatus maps engine errors onto an HTTP status and client message.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, phoneverify.ErrPhoneRequired):
		return http.StatusBadRequest, msgPhoneRequired
	case errors.Is(err, phoneverify.ErrPhoneInvalid):
		return http.StatusBadRequest, msgPhoneInvalid
	case errors.Is(err, phoneverify.ErrCodeRequired):
		return http.StatusBadRequest, msgCodeRequired
	case errors.Is(err, phoneverify.ErrNotFound):
		return http.StatusBadRequest, msgNotFound
	case errors.Is(err, phoneverify.ErrAlreadyVerified):
		return http.StatusBadRequest, msgAlreadyVerified
	case errors.Is(err, phoneverify.ErrExpired):
		return http.StatusBadRequest, msgExpired
	case errors.Is(err, phoneverify.ErrAttemptsExceeded):
		return http.StatusBadRequest, msgAttemptsExceeded
	case errors.Is(err, phoneverify.ErrRateLimited):
		return http.StatusTooManyRequests, msgRateLimit
	case errors.Is(err, phoneverify.ErrInvalidCode):
		return http.StatusBadRequest, msgInvalidCode
	}

	switch phoneverify.KindOf(err) {
	case phoneverify.KindConflict:
		return http.StatusConflict, msgConflict
	case phoneverify.KindDependency:
		return http.StatusServiceUnavailable, msgServiceUnavailable
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

// validationMessage picks the client message for the first failing field.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return msgInvalidRequest
	}

	switch verrs[0].Field() {
	case "Phone":
		return msgPhoneRequired
	case "Code":
		return msgCodeRequired
	case "ID":
		return msgIDInvalid
	default:
		return msgInvalidRequest
	}
}
