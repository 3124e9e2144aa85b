package hotp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultDigits is the code length used when none is configured.
	DefaultDigits = 6
	// DefaultSecretSize is the secret length in bytes (160 bits, as RFC 4226 recommends).
	DefaultSecretSize = 20

	minDigits = 6
	maxDigits = 10
)

var (
	// ErrInvalidDigits is returned for digit lengths outside 6..10.
	ErrInvalidDigits = errors.New("hotp: digits must be between 6 and 10")
	// ErrEmptySecret is returned when generating a code without key material.
	ErrEmptySecret = errors.New("hotp: empty secret")
)

// NewSecret returns size bytes drawn from crypto/rand.
func NewSecret(size int) ([]byte, error) {
	if size <= 0 {
		return nil, errors.New("hotp: secret size must be > 0")
	}
	secret := make([]byte, size)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("hotp: read random: %w", err)
	}
	return secret, nil
}

// Generate computes the code for counter with HMAC-SHA1 and dynamic truncation.
func Generate(secret []byte, counter int64, digits int) (string, error) {
	if digits < minDigits || digits > maxDigits {
		return "", ErrInvalidDigits
	}
	if len(secret) == 0 {
		return "", ErrEmptySecret
	}

	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	mac := hmac.New(sha1.New, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := uint64(sum[offset]&0x7f)<<24 |
		uint64(sum[offset+1])<<16 |
		uint64(sum[offset+2])<<8 |
		uint64(sum[offset+3])

	mod := uint64(1)
	for i := 0; i < digits; i++ {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", digits, bin%mod), nil
}

// Validate reports whether candidate is the code for (secret, counter).
// Wrong length or non-digit input is a non-match.
func Validate(secret []byte, counter int64, digits int, candidate string) bool {
	trimmed := strings.TrimSpace(candidate)
	if len(trimmed) != digits || !isNumeric(trimmed) {
		return false
	}

	expected, err := Generate(secret, counter, digits)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(trimmed)) == 1
}

func isNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
