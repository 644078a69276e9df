package adminauth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueVerify_RoundTrip(t *testing.T) {
	s := NewSigner("test-secret")
	nonceID := uuid.New()

	tok, err := s.Issue("tenant-1", "subscription.cancel", nonceID, time.Minute)
	require.NoError(t, err)

	gotNonce, tenantID, purpose, err := s.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, nonceID, gotNonce)
	assert.Equal(t, "tenant-1", tenantID)
	assert.Equal(t, "subscription.cancel", purpose)
}

func TestVerify_ExpiredToken(t *testing.T) {
	s := NewSigner("test-secret")
	tok, err := s.Issue("tenant-1", "refund.force", uuid.New(), -time.Minute)
	require.NoError(t, err)

	_, _, _, err = s.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_WrongSecret(t *testing.T) {
	tok, err := NewSigner("secret-a").Issue("tenant-1", "refund.force", uuid.New(), time.Minute)
	require.NoError(t, err)

	_, _, _, err = NewSigner("secret-b").Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Garbage(t *testing.T) {
	s := NewSigner("test-secret")
	_, _, _, err := s.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_MalformedJTI(t *testing.T) {
	s := NewSigner("test-secret")

	claims := Claims{
		TenantID: "tenant-1",
		Purpose:  "refund.force",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "not-a-uuid",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	badTok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	require.NoError(t, err)

	_, _, _, err = s.Verify(badTok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
