package identity

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// CredentialHasher is the one-way hashing boundary. Hash produces an opaque
// value, Verify checks a raw credential against it. No operation ever
// recovers the raw credential.
type CredentialHasher interface {
	Hash(raw string) (string, error)
	Verify(raw, hashed string) bool
}

// BcryptHasher implements CredentialHasher with bcrypt. A zero Cost uses
// the library default.
type BcryptHasher struct {
	Cost int
}

// Hash derives the stored form of raw.
func (h BcryptHasher) Hash(raw string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(raw), cost)
	if err != nil {
		return "", fmt.Errorf("hash credential: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether raw matches hashed. Malformed input yields false,
// never an error.
func (h BcryptHasher) Verify(raw, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(raw)) == nil
}

var _ CredentialHasher = BcryptHasher{}
