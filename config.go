package phoneverify

import (
	"errors"
	"strings"
	"time"

	"github.com/jakejscott/phoneverify/internal/hotp"
)

// VerificationTTL is how long an attempt accepts codes. An attempt exactly
// VerificationTTL old is still live.
const VerificationTTL = 3 * time.Minute

// Config holds engine policy. Build validates it.
type Config struct {
	Verification VerificationConfig
	RateLimit    RateLimitConfig
	Delivery     DeliveryConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

// VerificationConfig bounds a single attempt.
type VerificationConfig struct {
	// MaxAttempts is the number of checks an attempt accepts before it is exhausted.
	MaxAttempts int
	CodeDigits  int
}

// RateLimitConfig limits how many attempts a phone may start per window.
type RateLimitConfig struct {
	Enabled bool
	Limit   int
	Window  time.Duration
}

// DeliveryConfig controls how codes are handed to the Sender.
type DeliveryConfig struct {
	// MessageFormat is a fmt format with a single %s for the code.
	MessageFormat string
	Timeout       time.Duration
	// FailOnError makes Start return ErrDeliveryFailed instead of logging.
	FailOnError bool
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the production defaults: 3 checks per attempt,
// 6 digit codes, 5 attempts per phone per 24h.
func DefaultConfig() Config {
	return Config{
		Verification: VerificationConfig{
			MaxAttempts: 3,
			CodeDigits:  hotp.DefaultDigits,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Limit:   5,
			Window:  24 * time.Hour,
		},
		Delivery: DeliveryConfig{
			MessageFormat: "Your code is: %s",
			Timeout:       5 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

// Validate checks internal consistency.
func (c *Config) Validate() error {
	if c.Verification.MaxAttempts <= 0 {
		return errors.New("Verification MaxAttempts must be > 0")
	}
	if c.Verification.CodeDigits < 6 || c.Verification.CodeDigits > 10 {
		return errors.New("Verification CodeDigits must be between 6 and 10")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Limit <= 0 {
			return errors.New("RateLimit Limit must be > 0 when enabled")
		}
		if c.RateLimit.Window <= 0 {
			return errors.New("RateLimit Window must be > 0 when enabled")
		}
	}

	if strings.Count(c.Delivery.MessageFormat, "%s") != 1 {
		return errors.New("Delivery MessageFormat must contain exactly one %s")
	}
	if c.Delivery.Timeout < 0 {
		return errors.New("Delivery Timeout must be >= 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
