package phoneverify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jakejscott/phoneverify/internal/rate"
)

// Engine runs Start, Check and Status against a Store. Build one with [New].
type Engine struct {
	config  Config
	store   Store
	parser  PhoneParser
	sender  Sender
	limiter rate.Policy
	logger  *zap.Logger
	metrics *Metrics
	audit   *auditDispatcher
	now     func() time.Time
}

// Close flushes the audit queue.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// Config returns a copy of the engine's policy.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return e.config
}

// AuditDropped reports audit events lost to backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) ready() bool {
	return e != nil && e.store != nil && e.parser != nil && e.sender != nil
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

func (e *Engine) observe(id MetricID, started time.Time) {
	e.metrics.Observe(id, time.Since(started))
}

func (e *Engine) log(ctx context.Context) *zap.Logger {
	if id := RequestIDFromContext(ctx); id != "" {
		return e.logger.With(zap.String("request_id", id))
	}
	return e.logger
}
