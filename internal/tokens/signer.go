// Package tokens signs and verifies the time-limited capability tokens
// used by confirmation and authentication flows.
package tokens

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/quillfeed/quillfeed/internal/shared"
)

// Token purposes. A token issued for one purpose never verifies under
// another.
const (
	PurposeConfirm = "confirm"
	PurposeAuth    = "auth"
)

type capabilityClaims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HMAC-signed capability tokens. Verification
// failures collapse to shared.ErrInvalidToken: callers never learn whether
// a token was expired, forged or malformed.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner builds a Signer around a shared secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret), now: time.Now}
}

// Issue signs a token binding subject to purpose for ttl.
func (s *Signer) Issue(purpose string, subject int64, ttl time.Duration) (string, error) {
	now := s.now()
	claims := capabilityClaims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(subject, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", purpose, err)
	}
	return token, nil
}

// Verify checks signature, expiry and purpose, returning the subject id.
func (s *Signer) Verify(purpose, token string) (int64, error) {
	var claims capabilityClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil || !parsed.Valid {
		return 0, shared.ErrInvalidToken
	}
	if claims.Purpose != purpose {
		return 0, shared.ErrInvalidToken
	}
	subject, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, shared.ErrInvalidToken
	}
	return subject, nil
}
