package phoneverify

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jakejscott/phoneverify/internal/rate"
	"github.com/jakejscott/phoneverify/verification"
)

// Builder assembles an Engine. A Builder is single use.
type Builder struct {
	config Config

	store       Store
	redis       redis.UniversalClient
	redisPrefix string

	sender    Sender
	parser    PhoneParser
	logger    *zap.Logger
	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithStore sets the verification store. It takes precedence over WithRedis.
func (b *Builder) WithStore(store Store) *Builder {
	b.store = store
	return b
}

// WithRedis builds a verification.RedisStore on client at Build time, sharing
// the builder's clock.
func (b *Builder) WithRedis(client redis.UniversalClient, prefix string) *Builder {
	b.redis = client
	b.redisPrefix = prefix
	return b
}

func (b *Builder) WithSender(sender Sender) *Builder {
	b.sender = sender
	return b
}

// WithPhoneParser replaces the default E164Parser.
func (b *Builder) WithPhoneParser(parser PhoneParser) *Builder {
	b.parser = parser
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides time.Now for expiry and rate limit decisions.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	store := b.store
	if store == nil {
		if b.redis == nil {
			return nil, errors.New("store or redis client required")
		}
		store = verification.NewRedisStore(b.redis, b.redisPrefix, verification.WithClock(now))
	}

	if b.sender == nil {
		return nil, errors.New("sender required")
	}

	parser := b.parser
	if parser == nil {
		parser = E164Parser{}
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	engine := &Engine{
		config: cfg,
		store:  store,
		parser: parser,
		sender: b.sender,
		limiter: rate.Policy{
			Limit:  cfg.RateLimit.Limit,
			Window: cfg.RateLimit.Window,
		},
		logger:  logger.With(zap.String("component", "engine")),
		metrics: NewMetrics(cfg.Metrics),
		audit:   newAuditDispatcher(cfg.Audit, b.auditSink),
		now:     now,
	}

	b.built = true
	return engine, nil
}
