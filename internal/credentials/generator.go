package credentials

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

const (
	// AttendeeCredentialBytes is the entropy for per-attendee door tokens.
	AttendeeCredentialBytes = 32
	// ScannerKeyBytes is the entropy for per-event scanner keys.
	ScannerKeyBytes = 24
	// DefaultMaxAttempts bounds the uniqueness retry loop.
	DefaultMaxAttempts = 5
)

// ErrExhaustedRetries means no unique token was found within maxAttempts
// tries. At the configured entropy sizes this signals a misconfiguration,
// not bad luck.
var ErrExhaustedRetries = errors.New("credentials: exhausted retries generating unique token")

// ExistsFunc reports whether a candidate token is already taken in storage.
type ExistsFunc func(ctx context.Context, token string) (bool, error)

// IssueUnique generates a URL-safe random token of entropyBytes bytes of
// entropy and verifies it against the uniqueness predicate, retrying up to
// maxAttempts times on collision.
//
// The chosen token is not reserved here; callers persist it as part of the
// owning row's insert and rely on the storage unique constraint as the final
// authority for the check-then-insert window.
func IssueUnique(ctx context.Context, exists ExistsFunc, entropyBytes, maxAttempts int) (string, error) {
	if entropyBytes <= 0 {
		return "", fmt.Errorf("credentials: invalid entropy size %d", entropyBytes)
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		token, err := NewToken(entropyBytes)
		if err != nil {
			return "", err
		}

		taken, err := exists(ctx, token)
		if err != nil {
			return "", fmt.Errorf("credentials: uniqueness check failed: %w", err)
		}
		if !taken {
			return token, nil
		}
	}

	return "", ErrExhaustedRetries
}

// NewToken returns a URL-safe encoding of entropyBytes cryptographically
// random bytes.
func NewToken(entropyBytes int) (string, error) {
	buf := make([]byte, entropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("credentials: rand failed: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
