package phoneverify

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakejscott/phoneverify/internal/hotp"
	"github.com/jakejscott/phoneverify/verification"
)

// Check validates code against the attempt id.
//
// Failures are checked cheapest first: unknown id, already verified, expired,
// attempts exhausted, rate limited, then the code itself. A wrong code costs
// one attempt. Check is scoped to the attempt, not to the phone's latest
// version, so an older live attempt can still be verified.
func (e *Engine) Check(ctx context.Context, id uuid.UUID, code string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	started := time.Now()
	defer e.observe(MetricCheckLatency, started)

	rec, err := e.check(ctx, id, code)
	e.recordCheck(ctx, id, rec, err)
	return err
}

func (e *Engine) check(ctx context.Context, id uuid.UUID, code string) (*verification.Record, error) {
	if strings.TrimSpace(code) == "" {
		return nil, ErrCodeRequired
	}

	rec, err := e.store.GetVerificationByID(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}

	now := e.now()
	switch {
	case rec.IsVerified():
		return rec, ErrAlreadyVerified
	case rec.Expired(now, VerificationTTL):
		return rec, ErrExpired
	case rec.AttemptsExhausted(e.config.Verification.MaxAttempts):
		return rec, ErrAttemptsExceeded
	}

	limited, err := e.rateLimited(ctx, rec, now)
	if err != nil {
		return rec, err
	}
	if limited {
		return rec, ErrRateLimited
	}

	if !hotp.Validate(rec.Secret, rec.Version, e.config.Verification.CodeDigits, code) {
		if err := e.store.IncrementAttempts(ctx, rec.Phone, rec.Version); err != nil {
			return rec, storeErr(err)
		}
		return rec, ErrInvalidCode
	}

	if err := e.store.SetVerified(ctx, rec.Phone, rec.Version); err != nil {
		return rec, storeErr(err)
	}
	return rec, nil
}

// rateLimited counts the phone's other attempts inside the window. The
// attempt being checked is not counted against itself.
func (e *Engine) rateLimited(ctx context.Context, rec *verification.Record, now time.Time) (bool, error) {
	if !e.config.RateLimit.Enabled {
		return false, nil
	}

	recent, err := e.store.GetRecentVerifications(ctx, rec.Phone, e.limiter.Limit+1)
	if err != nil {
		return false, storeErr(err)
	}

	created := make([]time.Time, 0, len(recent))
	for i := range recent {
		if recent[i].ID == rec.ID {
			continue
		}
		created = append(created, recent[i].Created)
	}
	return e.limiter.Exceeded(created, now), nil
}

func (e *Engine) recordCheck(ctx context.Context, id uuid.UUID, rec *verification.Record, err error) {
	switch {
	case err == nil:
		e.metricInc(MetricCheckSuccess)
	case errors.Is(err, ErrInvalidCode):
		e.metricInc(MetricCheckInvalidCode)
	case errors.Is(err, ErrExpired):
		e.metricInc(MetricCheckExpired)
	case errors.Is(err, ErrAttemptsExceeded):
		e.metricInc(MetricCheckAttemptsExceeded)
	case errors.Is(err, ErrAlreadyVerified):
		e.metricInc(MetricCheckAlreadyVerified)
	case errors.Is(err, ErrNotFound):
		e.metricInc(MetricCheckNotFound)
	case errors.Is(err, ErrRateLimited):
		e.metricInc(MetricRateLimitHit)
		e.emitRateLimited(ctx, rec)
	}
	if err != nil {
		e.metricInc(MetricCheckFailure)
	}
	if KindOf(err) == KindDependency {
		e.log(ctx).Error("check verification failed", zap.String("id", id.String()), zap.Error(err))
	}

	e.emitCheck(ctx, id, rec, err)
}
