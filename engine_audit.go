package phoneverify

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jakejscott/phoneverify/verification"
)

const (
	auditEventStarted        = "verification_started"
	auditEventChecked        = "verification_checked"
	auditEventRateLimited    = "verification_rate_limited"
	auditEventDeliveryFailed = "verification_delivery_failed"
)

// auditErrorCode is the stable code recorded in AuditEvent.Error.
func auditErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPhoneRequired):
		return "phone_required"
	case errors.Is(err, ErrPhoneInvalid):
		return "phone_invalid"
	case errors.Is(err, ErrCodeRequired):
		return "code_required"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyVerified):
		return "already_verified"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrAttemptsExceeded):
		return "attempts_exceeded"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrDeliveryFailed):
		return "delivery_failed"
	default:
		return "internal"
	}
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, rec *verification.Record, err error, metadata map[string]string) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		RequestID: RequestIDFromContext(ctx),
		IP:        ClientIPFromContext(ctx),
		Success:   err == nil,
		Error:     auditErrorCode(err),
		Metadata:  metadata,
	}
	if rec != nil {
		event.VerificationID = rec.ID.String()
		event.Phone = rec.Phone
		event.Version = rec.Version
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitStart(ctx context.Context, rec *verification.Record, err error) {
	e.emitAudit(ctx, auditEventStarted, rec, err, nil)
}

func (e *Engine) emitCheck(ctx context.Context, id uuid.UUID, rec *verification.Record, err error) {
	var metadata map[string]string
	if rec == nil {
		metadata = map[string]string{"id": id.String()}
	} else {
		metadata = map[string]string{"attempts": strconv.Itoa(rec.Attempts)}
	}
	e.emitAudit(ctx, auditEventChecked, rec, err, metadata)
}

func (e *Engine) emitRateLimited(ctx context.Context, rec *verification.Record) {
	e.emitAudit(ctx, auditEventRateLimited, rec, ErrRateLimited, map[string]string{
		"limit":  strconv.Itoa(e.limiter.Limit),
		"window": e.limiter.Window.String(),
	})
}

func (e *Engine) emitDeliveryFailure(ctx context.Context, rec *verification.Record, err error) {
	e.emitAudit(ctx, auditEventDeliveryFailed, rec, ErrDeliveryFailed, map[string]string{
		"cause": err.Error(),
	})
}
