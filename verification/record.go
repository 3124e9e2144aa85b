package verification

import (
	"time"

	"github.com/google/uuid"
)

// Record is one verification attempt for a phone.
type Record struct {
	ID       uuid.UUID
	Phone    string
	Version  int64
	Created  time.Time
	Secret   []byte
	Attempts int
	Verified *time.Time
}

// IsVerified reports whether the attempt completed successfully.
func (r *Record) IsVerified() bool {
	return r != nil && r.Verified != nil
}

// Expired reports whether the attempt is older than ttl at now. An attempt
// exactly ttl old is still live.
func (r *Record) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(r.Created) > ttl
}

// AttemptsExhausted reports whether attempts reached max.
func (r *Record) AttemptsExhausted(max int) bool {
	return r.Attempts >= max
}
