package phoneverify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jakejscott/phoneverify/verification"
)

// Store persists versioned verification chains. Implementations:
// verification.RedisStore and pgstore.Store.
type Store interface {
	GetLatestVersion(ctx context.Context, phone string) (int64, error)
	InsertInitialVersion(ctx context.Context, phone string) (*verification.Record, error)
	InsertNextVersion(ctx context.Context, phone string, current int64) (*verification.Record, error)
	GetVerification(ctx context.Context, phone string, version int64) (*verification.Record, error)
	GetVerificationByID(ctx context.Context, id uuid.UUID) (*verification.Record, error)
	IncrementAttempts(ctx context.Context, phone string, version int64) error
	SetVerified(ctx context.Context, phone string, version int64) error
	GetRecentVerifications(ctx context.Context, phone string, limit int) ([]verification.Record, error)
}

// Sender delivers a message to a phone and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, phone, message string) (string, error)
}

// PhoneParser normalizes user input to E.164.
type PhoneParser interface {
	Parse(raw string) (string, error)
}

// StatusResult is the public view of an attempt. Verified is nil until the
// attempt succeeds.
type StatusResult struct {
	ID       uuid.UUID  `json:"id"`
	Phone    string     `json:"phone"`
	Created  time.Time  `json:"created"`
	Verified *time.Time `json:"verified"`
}
