package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carrental-backend/internal/domain"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenManager_AccessToken(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour)

	t.Run("Round trip", func(t *testing.T) {
		token, err := tm.GenerateAccessToken("user-1", "ana@example.com", domain.RoleCustomer)
		require.NoError(t, err)

		claims, err := tm.ValidateAccessToken(token)
		require.NoError(t, err)
		assert.Equal(t, domain.Actor{UserID: "user-1", Role: domain.RoleCustomer}, claims.Actor())
		assert.Equal(t, "ana@example.com", claims.Email)
	})

	t.Run("Wrong secret", func(t *testing.T) {
		token, err := NewTokenManager("another-secret-another-secret-000", time.Hour).
			GenerateAccessToken("user-1", "", domain.RoleAdmin)
		require.NoError(t, err)
		_, err = tm.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Expired", func(t *testing.T) {
		claims := UserClaims{
			UserID: "user-1", Role: domain.RoleCustomer, Type: TokenTypeAccess,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
				Issuer:    issuer,
				Audience:  jwt.ClaimStrings{accessAudience},
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = tm.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("Refresh token rejected", func(t *testing.T) {
		claims := UserClaims{
			UserID: "user-1", Role: domain.RoleCustomer, Type: TokenTypeRefresh,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
				Issuer:    issuer,
				Audience:  jwt.ClaimStrings{accessAudience},
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = tm.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrWrongTokenType)
	})

	t.Run("Unknown role", func(t *testing.T) {
		token, err := tm.GenerateAccessToken("user-1", "", domain.Role("owner"))
		require.NoError(t, err)
		_, err = tm.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := tm.ValidateAccessToken("not-a-jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
