package phoneverify

import (
	"context"

	"github.com/google/uuid"
)

// Status reads an attempt. It has no side effects.
func (e *Engine) Status(ctx context.Context, id uuid.UUID) (*StatusResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	rec, err := e.store.GetVerificationByID(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}

	e.metricInc(MetricStatusLookup)
	return &StatusResult{
		ID:       rec.ID,
		Phone:    rec.Phone,
		Created:  rec.Created,
		Verified: rec.Verified,
	}, nil
}
