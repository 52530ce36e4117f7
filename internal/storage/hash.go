package storage

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// bcryptCost defines the computational cost for bcrypt hashing.
	// Cost 10 = ~60ms per hash; raise to 12 for hardened deployments.
	bcryptCost  = 10
	bcryptLimit = 72
)

// ErrTokenEmpty is returned when hashing or comparing an empty service token.
var ErrTokenEmpty = errors.New("service token cannot be empty")

// HashServiceToken generates a bcrypt hash of a service token for storage in
// configuration. Tokens are never stored in plaintext.
//
// Bcrypt has a 72-byte input limit; longer tokens are pre-hashed with
// SHA-256 so arbitrary token lengths behave consistently.
func HashServiceToken(token string) (string, error) {
	if token == "" {
		return "", ErrTokenEmpty
	}

	hash, err := bcrypt.GenerateFromPassword(bcryptInput(token), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash service token: %w", err)
	}

	return string(hash), nil
}

// CompareServiceToken performs a constant-time comparison of a presented
// service token against a stored bcrypt hash. Returns false for any error
// condition (empty inputs, malformed hash).
func CompareServiceToken(hash, token string) bool {
	if hash == "" || token == "" {
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(hash), bcryptInput(token)) == nil
}

// DummyCompareServiceToken performs a bcrypt comparison against a throwaway
// hash. Callers use it on authentication failure paths so rejected requests
// take the same time whether or not a token hash is configured.
func DummyCompareServiceToken() {
	_ = bcrypt.CompareHashAndPassword([]byte("dummy"), []byte("dummy"))
}

// bcryptInput prepares a token for bcrypt, pre-hashing past the 72-byte limit.
func bcryptInput(token string) []byte {
	if len(token) > bcryptLimit {
		sum := sha256.Sum256([]byte(token))

		return sum[:]
	}

	return []byte(token)
}
