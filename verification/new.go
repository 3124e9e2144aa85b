package verification

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jakejscott/phoneverify/internal/hotp"
)

// SecretSize is the number of random bytes in every attempt secret.
const SecretSize = hotp.DefaultSecretSize

// NewRecord builds a fresh attempt: random v4 id, random secret, zero attempts.
func NewRecord(phone string, version int64, created time.Time) (*Record, error) {
	if phone == "" {
		return nil, ErrInvalidPhone
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("new verification id: %w", err)
	}
	secret, err := hotp.NewSecret(SecretSize)
	if err != nil {
		return nil, fmt.Errorf("new verification secret: %w", err)
	}
	return &Record{
		ID:      id,
		Phone:   phone,
		Version: version,
		Created: created.UTC(),
		Secret:  secret,
	}, nil
}
