package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Secret:   "test-secret",
		Issuer:   "qrconnect",
		Audience: "qrconnect-accounts",
		TTL:      time.Hour,
	}
}

func TestNewManagerRequiresSecret(t *testing.T) {
	_, err := NewManager(Config{Issuer: "x"})
	assert.Error(t, err)
}

func TestGenerateVerifyRoundTrip(t *testing.T) {
	m, err := NewManager(testConfig())
	require.NoError(t, err)

	token, err := m.Generate(42, []string{"business"})
	require.NoError(t, err)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.AccountID)
	assert.True(t, claims.HasRole("business"))
	assert.False(t, claims.IsAdmin())
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	m1, err := NewManager(testConfig())
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Secret = "other-secret"
	m2, err := NewManager(cfg)
	require.NoError(t, err)

	token, err := m1.Generate(42, nil)
	require.NoError(t, err)

	_, err = m2.Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	cfg := testConfig()
	cfg.TTL = -time.Minute
	m, err := NewManager(cfg)
	require.NoError(t, err)

	token, err := m.Generate(42, nil)
	require.NoError(t, err)

	_, err = m.Verify(token)
	assert.Error(t, err)
}

func TestIsAdmin(t *testing.T) {
	m, err := NewManager(testConfig())
	require.NoError(t, err)

	token, err := m.Generate(1, []string{"admin"})
	require.NoError(t, err)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin())
}
