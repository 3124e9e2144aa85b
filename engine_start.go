package phoneverify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakejscott/phoneverify/internal/hotp"
	"github.com/jakejscott/phoneverify/verification"
)

// Start returns the id of the phone's active attempt and sends its code.
//
// A phone seen for the first time gets version 1. A verified, expired or
// exhausted active attempt is replaced by the next version. Otherwise the
// current attempt is reused and its code resent. Losing a race to another
// Start for the same phone is not an error: the winner's attempt is used.
//
// A delivery failure is logged and counted but Start still succeeds unless
// Delivery.FailOnError is set.
func (e *Engine) Start(ctx context.Context, rawPhone string) (uuid.UUID, error) {
	if !e.ready() {
		return uuid.Nil, ErrEngineNotReady
	}
	started := time.Now()
	defer e.observe(MetricStartLatency, started)

	rec, err := e.start(ctx, rawPhone)
	if err != nil {
		e.metricInc(MetricStartFailure)
		e.emitStart(ctx, rec, err)
		if KindOf(err) == KindDependency {
			e.log(ctx).Error("start verification failed", zap.Error(err))
		}
		return uuid.Nil, err
	}

	e.metricInc(MetricStartSuccess)
	e.emitStart(ctx, rec, nil)
	return rec.ID, nil
}

func (e *Engine) start(ctx context.Context, rawPhone string) (*verification.Record, error) {
	if strings.TrimSpace(rawPhone) == "" {
		return nil, ErrPhoneRequired
	}

	phone, err := e.parser.Parse(rawPhone)
	switch {
	case errors.Is(err, ErrPhoneRequired), errors.Is(err, ErrPhoneInvalid):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrPhoneInvalid, err)
	}

	rec, err := e.activeAttempt(ctx, phone)
	if err != nil {
		return nil, err
	}

	code, err := hotp.Generate(rec.Secret, rec.Version, e.config.Verification.CodeDigits)
	if err != nil {
		return rec, fmt.Errorf("generate code: %w", err)
	}

	if err := e.deliver(ctx, rec, code); err != nil {
		return rec, err
	}
	return rec, nil
}

// activeAttempt resolves the attempt Start should hand out, creating it when
// needed. Each conflict is resolved by exactly one re-read.
func (e *Engine) activeAttempt(ctx context.Context, phone string) (*verification.Record, error) {
	latest, err := e.store.GetLatestVersion(ctx, phone)
	if errors.Is(err, verification.ErrNotFound) {
		initial, insertErr := e.store.InsertInitialVersion(ctx, phone)
		if insertErr == nil {
			e.metricInc(MetricStartNewVersion)
			return initial, nil
		}
		if !errors.Is(insertErr, verification.ErrConflict) {
			return nil, storeErr(insertErr)
		}

		e.metricInc(MetricStartConflict)
		latest, err = e.store.GetLatestVersion(ctx, phone)
		if errors.Is(err, verification.ErrNotFound) {
			return nil, ErrConflict
		}
	}
	if err != nil {
		return nil, storeErr(err)
	}

	rec, err := e.store.GetVerification(ctx, phone, latest)
	if err != nil {
		return nil, storeErr(err)
	}
	if !e.terminal(rec, e.now()) {
		return rec, nil
	}

	next, err := e.store.InsertNextVersion(ctx, phone, latest)
	if err == nil {
		e.metricInc(MetricStartNewVersion)
		return next, nil
	}
	if !errors.Is(err, verification.ErrConflict) {
		return nil, storeErr(err)
	}

	e.metricInc(MetricStartConflict)
	latest, err = e.store.GetLatestVersion(ctx, phone)
	if err != nil {
		return nil, storeErr(err)
	}
	rec, err = e.store.GetVerification(ctx, phone, latest)
	if err != nil {
		return nil, storeErr(err)
	}
	return rec, nil
}

// terminal reports whether rec can no longer be verified and Start must
// advance the chain.
func (e *Engine) terminal(rec *verification.Record, now time.Time) bool {
	return rec.IsVerified() ||
		rec.Expired(now, VerificationTTL) ||
		rec.AttemptsExhausted(e.config.Verification.MaxAttempts)
}

func (e *Engine) deliver(ctx context.Context, rec *verification.Record, code string) error {
	msg := fmt.Sprintf(e.config.Delivery.MessageFormat, code)

	sendCtx := ctx
	if e.config.Delivery.Timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, e.config.Delivery.Timeout)
		defer cancel()
	}

	messageID, err := e.sender.Send(sendCtx, rec.Phone, msg)
	if err != nil {
		e.metricInc(MetricDeliveryFailure)
		e.emitDeliveryFailure(ctx, rec, err)
		e.log(ctx).Warn("code delivery failed",
			zap.String("phone", rec.Phone),
			zap.Int64("version", rec.Version),
			zap.Error(err),
		)
		if e.config.Delivery.FailOnError {
			return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
		}
		return nil
	}

	e.log(ctx).Debug("code sent",
		zap.String("phone", rec.Phone),
		zap.Int64("version", rec.Version),
		zap.String("message_id", messageID),
	)
	return nil
}
