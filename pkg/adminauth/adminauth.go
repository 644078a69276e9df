// Package adminauth signs and verifies the short-lived purpose assertions
// that back admin nonces (spec §3.1): a token over {tenant_id, purpose,
// jti} whose jti is the nonce id C1 consumes via ConsumeNonce, so replay of
// the same admin action is rejected at the storage layer rather than
// relying on token expiry alone.
package adminauth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("adminauth: invalid or expired token")

// Claims carries the purpose assertion alongside the registered claims.
type Claims struct {
	TenantID string `json:"tenant_id"`
	Purpose  string `json:"purpose"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 purpose assertions for one tenant's
// admin actions.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Issue mints a token for nonceID valid for ttl, binding tenantID and
// purpose into the signature so a token minted for one action can't be
// replayed against another.
func (s *Signer) Issue(tenantID, purpose string, nonceID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		TenantID: tenantID,
		Purpose:  purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        nonceID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(s.secret)
}

// Verify parses tokenString and returns the nonce id to consume, the
// tenant, and the purpose. It does not consume the nonce; the caller must
// still call the Store's ConsumeNonce so replay is rejected atomically.
func (s *Signer) Verify(tokenString string) (nonceID uuid.UUID, tenantID, purpose string, err error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil || !tok.Valid {
		return uuid.Nil, "", "", ErrInvalidToken
	}

	id, err := uuid.Parse(claims.ID)
	if err != nil {
		return uuid.Nil, "", "", ErrInvalidToken
	}
	return id, claims.TenantID, claims.Purpose, nil
}
