package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spycrab06/snailmail/internal/model"
)

func TestPlainHasher(t *testing.T) {
	h, err := NewPasswordHasher("plain", 0)
	require.NoError(t, err)

	stored, err := h.Hash("  spaced pass ")
	require.NoError(t, err)
	assert.Equal(t, "  spaced pass ", stored)
	assert.True(t, h.Verify(stored, "  spaced pass "))
	assert.False(t, h.Verify(stored, "spaced pass"))
}

func TestBcryptHasher(t *testing.T) {
	h, err := NewPasswordHasher("bcrypt", 4)
	require.NoError(t, err)

	stored, err := h.Hash("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", stored)
	assert.True(t, h.Verify(stored, "hunter22"))
	assert.False(t, h.Verify(stored, "hunter23"))

	_, err = h.Hash(strings.Repeat("x", MaxBcryptPasswordBytes+1))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestNewPasswordHasher_Rejects(t *testing.T) {
	_, err := NewPasswordHasher("md5", 10)
	assert.Error(t, err)
	_, err = NewPasswordHasher("bcrypt", 99)
	assert.Error(t, err)
}

func TestSessionTokenRoundTrip(t *testing.T) {
	tok, err := NewSessionToken("secret", 42, model.AccountManager, 5)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), tok.Exp, 5*time.Second)

	claims, err := ParseSessionToken("secret", tok.Token)
	require.NoError(t, err)
	id, err := claims.AuthID()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
	assert.Equal(t, model.AccountManager, claims.AccountType)
	assert.Equal(t, model.AreaManager, claims.Area)
}

func TestParseSessionToken_Rejects(t *testing.T) {
	tok, err := NewSessionToken("secret", 1, model.AccountPrime, 5)
	require.NoError(t, err)

	_, err = ParseSessionToken("other", tok.Token)
	assert.Error(t, err, "wrong secret")

	expired, err := NewSessionToken("secret", 1, model.AccountPrime, -1)
	require.NoError(t, err)
	_, err = ParseSessionToken("secret", expired.Token)
	assert.Error(t, err, "expired")

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseSessionToken("secret", none)
	assert.Error(t, err, "alg none")
}
