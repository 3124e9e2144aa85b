package hotp

import (
	"bytes"
	"testing"
)

// RFC 4226 Appendix D.
func TestGenerateRFC4226Vectors(t *testing.T) {
	secret := []byte("12345678901234567890")
	expected := []string{
		"755224", "287082", "359152", "969429", "338314",
		"254676", "287922", "162583", "399871", "520489",
	}

	for counter, want := range expected {
		got, err := Generate(secret, int64(counter), 6)
		if err != nil {
			t.Fatalf("counter %d: Generate failed: %v", counter, err)
		}
		if got != want {
			t.Fatalf("counter %d: expected %s, got %s", counter, want, got)
		}
	}
}

func TestValidateRoundTrip(t *testing.T) {
	secret, err := NewSecret(DefaultSecretSize)
	if err != nil {
		t.Fatalf("NewSecret failed: %v", err)
	}

	for counter := int64(1); counter <= 50; counter++ {
		code, err := Generate(secret, counter, DefaultDigits)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if !Validate(secret, counter, DefaultDigits, code) {
			t.Fatalf("counter %d: expected generated code to validate", counter)
		}
		if !Validate(secret, counter, DefaultDigits, " "+code+" ") {
			t.Fatalf("counter %d: expected surrounding whitespace to be ignored", counter)
		}
	}
}

func TestValidateRejectsOtherCounter(t *testing.T) {
	secret := []byte("12345678901234567890")
	code, err := Generate(secret, 1, 6)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if Validate(secret, 2, 6, code) {
		t.Fatal("expected code for counter 1 to fail for counter 2")
	}
}

func TestValidateMalformedIsNonMatch(t *testing.T) {
	secret := []byte("12345678901234567890")
	cases := []string{"", "abc1234", "12345", "1234567", "28708a", "２８７０８２"}
	for _, c := range cases {
		if Validate(secret, 1, 6, c) {
			t.Fatalf("expected %q to be rejected", c)
		}
	}
}

func TestGenerateRejectsBadInput(t *testing.T) {
	if _, err := Generate([]byte("k"), 1, 5); err != ErrInvalidDigits {
		t.Fatalf("expected ErrInvalidDigits, got %v", err)
	}
	if _, err := Generate(nil, 1, 6); err != ErrEmptySecret {
		t.Fatalf("expected ErrEmptySecret, got %v", err)
	}
	if Validate(nil, 1, 6, "123456") {
		t.Fatal("expected empty secret to never validate")
	}
}

func TestNewSecretLengthAndEntropy(t *testing.T) {
	a, err := NewSecret(DefaultSecretSize)
	if err != nil {
		t.Fatalf("NewSecret failed: %v", err)
	}
	b, err := NewSecret(DefaultSecretSize)
	if err != nil {
		t.Fatalf("NewSecret failed: %v", err)
	}
	if len(a) != DefaultSecretSize || len(b) != DefaultSecretSize {
		t.Fatalf("expected %d bytes, got %d and %d", DefaultSecretSize, len(a), len(b))
	}
	if bytes.Equal(a, b) {
		t.Fatal("expected two secrets to differ")
	}
	if _, err := NewSecret(0); err == nil {
		t.Fatal("expected error for zero size")
	}
}
