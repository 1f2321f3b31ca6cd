package services

import (
	"testing"
	"time"

	"law_ledger_app_go/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssueAndValidate(t *testing.T) {
	tokens := NewTokenService("test-secret-that-is-long-enough-123", time.Hour)
	user := &models.User{ID: "user-1", Email: "a@x.com", Role: models.RoleAuditor}

	signed, err := tokens.Issue(user)
	require.NoError(t, err)

	p, err := tokens.Validate(signed)
	require.NoError(t, err)
	assert.Equal(t, "user-1", p.UserID)
	assert.Equal(t, "a@x.com", p.Email)
	assert.Equal(t, models.RoleAuditor, p.Role)
	assert.True(t, p.IsAuditor())
}

func TestTokenRejections(t *testing.T) {
	tokens := NewTokenService("test-secret-that-is-long-enough-123", time.Hour)
	user := &models.User{ID: "user-1", Email: "l@x.com", Role: models.RoleLawyer}
	signed, err := tokens.Issue(user)
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		tokens.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { tokens.now = time.Now }()
		_, err := tokens.Validate(signed)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenService("another-secret-that-is-long-enough", time.Hour)
		_, err := other.Validate(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("tampered", func(t *testing.T) {
		_, err := tokens.Validate(signed + "x")
		assert.ErrorIs(t, err, ErrInvalidToken)
		_, err = tokens.Validate("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unknown role", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub":  "user-1",
			"role": "admin",
			"type": "access",
			"exp":  time.Now().Add(time.Hour).Unix(),
		})
		raw, err := token.SignedString(tokens.secret)
		require.NoError(t, err)
		_, err = tokens.Validate(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing expiry", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub":  "user-1",
			"role": "lawyer",
			"type": "access",
		})
		raw, err := token.SignedString(tokens.secret)
		require.NoError(t, err)
		_, err = tokens.Validate(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
