// Package config loads process configuration from the environment and an
// optional config file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jakejscott/phoneverify"
)

const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"

	SenderSNS = "sns"
	SenderLog = "log"
)

type Config struct {
	App      AppConfig
	Store    StoreConfig
	SMS      SMSConfig
	Policy   PolicyConfig
	Features FeatureConfig
}

type AppConfig struct {
	Port    string
	Debug   bool
	LogPath string
}

type StoreConfig struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	DatabaseDSN   string
}

type SMSConfig struct {
	Sender    string
	AWSRegion string
	SenderID  string
	Endpoint  string
}

type PolicyConfig struct {
	MaxAttempts         int
	RateLimit           int
	RateLimitWindow     time.Duration
	DeliveryTimeout     time.Duration
	FailOnDeliveryError bool
}

type FeatureConfig struct {
	MetricsEnabled bool
	AuditEnabled   bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("DEBUG", false)
	v.SetDefault("LOG_PATH", "")
	v.SetDefault("STORE_BACKEND", BackendRedis)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_PREFIX", "pv")
	v.SetDefault("DATABASE_DSN", "")
	v.SetDefault("SMS_SENDER", SenderLog)
	v.SetDefault("AWS_REGION", "")
	v.SetDefault("SNS_SENDER_ID", "")
	v.SetDefault("SNS_ENDPOINT", "")
	v.SetDefault("MAX_ATTEMPTS", 3)
	v.SetDefault("RATE_LIMIT", 5)
	v.SetDefault("RATE_LIMIT_WINDOW", "24h")
	v.SetDefault("DELIVERY_TIMEOUT", "5s")
	v.SetDefault("FAIL_ON_DELIVERY_ERROR", false)
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("AUDIT_ENABLED", false)
}

// Load reads the environment, plus the file named by CONFIG_FILE when set.
// Environment variables win over file values.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if strings.HasSuffix(path, ".env") {
			v.SetConfigType("env")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := &Config{
		App: AppConfig{
			Port:    v.GetString("PORT"),
			Debug:   v.GetBool("DEBUG"),
			LogPath: v.GetString("LOG_PATH"),
		},
		Store: StoreConfig{
			Backend:       strings.ToLower(v.GetString("STORE_BACKEND")),
			RedisAddr:     v.GetString("REDIS_ADDR"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
			RedisPrefix:   v.GetString("REDIS_PREFIX"),
			DatabaseDSN:   v.GetString("DATABASE_DSN"),
		},
		SMS: SMSConfig{
			Sender:    strings.ToLower(v.GetString("SMS_SENDER")),
			AWSRegion: v.GetString("AWS_REGION"),
			SenderID:  v.GetString("SNS_SENDER_ID"),
			Endpoint:  v.GetString("SNS_ENDPOINT"),
		},
		Policy: PolicyConfig{
			MaxAttempts:         v.GetInt("MAX_ATTEMPTS"),
			RateLimit:           v.GetInt("RATE_LIMIT"),
			RateLimitWindow:     v.GetDuration("RATE_LIMIT_WINDOW"),
			DeliveryTimeout:     v.GetDuration("DELIVERY_TIMEOUT"),
			FailOnDeliveryError: v.GetBool("FAIL_ON_DELIVERY_ERROR"),
		},
		Features: FeatureConfig{
			MetricsEnabled: v.GetBool("METRICS_ENABLED"),
			AuditEnabled:   v.GetBool("AUDIT_ENABLED"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks process-level settings. Engine policy is checked by
// phoneverify.Config.Validate.
func (c *Config) Validate() error {
	if c.App.Port == "" {
		return errors.New("config: PORT is required")
	}

	switch c.Store.Backend {
	case BackendRedis:
		if c.Store.RedisAddr == "" {
			return errors.New("config: REDIS_ADDR is required for the redis backend")
		}
	case BackendPostgres:
		if c.Store.DatabaseDSN == "" {
			return errors.New("config: DATABASE_DSN is required for the postgres backend")
		}
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.Store.Backend)
	}

	switch c.SMS.Sender {
	case SenderLog, SenderSNS:
	default:
		return fmt.Errorf("config: unknown SMS_SENDER %q", c.SMS.Sender)
	}

	engineCfg := c.ToEngineConfig()
	if err := engineCfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ToEngineConfig maps process settings onto the engine defaults.
func (c *Config) ToEngineConfig() phoneverify.Config {
	cfg := phoneverify.DefaultConfig()
	cfg.Verification.MaxAttempts = c.Policy.MaxAttempts
	cfg.RateLimit.Enabled = c.Policy.RateLimit > 0
	cfg.RateLimit.Limit = c.Policy.RateLimit
	cfg.RateLimit.Window = c.Policy.RateLimitWindow
	cfg.Delivery.Timeout = c.Policy.DeliveryTimeout
	cfg.Delivery.FailOnError = c.Policy.FailOnDeliveryError
	cfg.Metrics.Enabled = c.Features.MetricsEnabled
	cfg.Audit.Enabled = c.Features.AuditEnabled
	return cfg
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.App.Port
}
