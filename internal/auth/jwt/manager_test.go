package jwt_test

import (
	"testing"
	"time"

	"github.com/botiquin/botiquin-backend/internal/auth/jwt"
	"github.com/botiquin/botiquin-backend/pkg/config"
	"github.com/botiquin/botiquin-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager(accessExpiry time.Duration) *jwt.Manager {
	return jwt.NewManager(&config.JWTConfig{
		Secret:        "test-secret",
		AccessExpiry:  accessExpiry,
		RefreshExpiry: 24 * time.Hour,
		Issuer:        "botiquin-test",
	})
}

func TestManager_TokenRoundTrip(t *testing.T) {
	m := testManager(15 * time.Minute)

	pair, err := m.GenerateTokenPair(&jwt.UserInfo{
		ID:    "user-1",
		Email: "ana@clinic.test",
		Name:  "Ana",
		Role:  "Pharmacy",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	claims, err := m.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "ana@clinic.test", claims.Email)
	assert.Equal(t, "Pharmacy", claims.Role)

	refreshClaims, err := m.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", refreshClaims.UserID)
}

func TestManager_RejectsExpiredToken(t *testing.T) {
	m := testManager(-1 * time.Minute)

	pair, err := m.GenerateTokenPair(&jwt.UserInfo{ID: "user-1", Role: "Admin"})
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(pair.AccessToken)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTokenExpired))
}

func TestManager_RejectsForeignSecret(t *testing.T) {
	m := testManager(15 * time.Minute)
	other := jwt.NewManager(&config.JWTConfig{
		Secret:        "other-secret",
		AccessExpiry:  15 * time.Minute,
		RefreshExpiry: 24 * time.Hour,
		Issuer:        "botiquin-test",
	})

	pair, err := other.GenerateTokenPair(&jwt.UserInfo{ID: "user-1"})
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(pair.AccessToken)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTokenInvalid))
}

func TestManager_RejectsGarbage(t *testing.T) {
	m := testManager(15 * time.Minute)

	_, err := m.ValidateAccessToken("not-a-token")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTokenInvalid))
}
