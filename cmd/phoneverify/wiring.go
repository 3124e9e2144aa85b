package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jakejscott/phoneverify"
	"github.com/jakejscott/phoneverify/internal/config"
	"github.com/jakejscott/phoneverify/pgstore"
	"github.com/jakejscott/phoneverify/sms"
	"github.com/jakejscott/phoneverify/verification"
)

// openStore connects the configured backend. The returned close func is
// never nil.
func openStore(ctx context.Context, cfg *config.Config) (phoneverify.Store, func() error, error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		db, err := pgstore.Open(ctx, cfg.Store.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		return pgstore.New(db), db.Close, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return verification.NewRedisStore(client, cfg.Store.RedisPrefix), client.Close, nil
	}

	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

func newSender(ctx context.Context, cfg *config.Config, logger *zap.Logger) (phoneverify.Sender, error) {
	if cfg.SMS.Sender == config.SenderSNS {
		return sms.NewSNSSender(ctx, sms.SNSOptions{
			Region:   cfg.SMS.AWSRegion,
			SenderID: cfg.SMS.SenderID,
			Endpoint: cfg.SMS.Endpoint,
		})
	}
	return sms.NewLogSender(logger.Named("sms")), nil
}

// auditSink writes audit events as JSON lines to a rotated audit.log next
// to the service log, or to stdout when no log path is set.
func auditSink(cfg *config.Config) (phoneverify.AuditSink, io.Closer) {
	if !cfg.Features.AuditEnabled {
		return phoneverify.NoOpSink{}, io.NopCloser(nil)
	}
	if cfg.App.LogPath == "" {
		return phoneverify.NewJSONWriterSink(os.Stdout), io.NopCloser(nil)
	}

	w := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.App.LogPath, "audit.log"),
		MaxSize:    50,
		MaxBackups: 14,
		MaxAge:     90,
		Compress:   true,
	}
	return phoneverify.NewJSONWriterSink(w), w
}
