package jwttoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

var jwtService = NewJWTService(
	"test-signing-key",
	"test-issuer",
	"test-audience",
)

const party id.PartyID = "bank-of-taipei"

func Test_GenerateAccessToken(t *testing.T) {
	token, err := jwtService.GenerateAccessToken(party, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, party, claims.Party())
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func Test_ValidateToken_Rejects(t *testing.T) {
	expired, err := jwtService.GenerateAccessToken(party, -time.Hour)
	require.NoError(t, err)
	otherAudience, err := NewJWTService("test-signing-key", "test-issuer", "elsewhere").GenerateAccessToken(party, time.Hour)
	require.NoError(t, err)
	otherKey, err := NewJWTService("another-key", "test-issuer", "test-audience").GenerateAccessToken(party, time.Hour)
	require.NoError(t, err)
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "test-issuer",
		Audience:  []string{"test-audience"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}).SignedString([]byte("test-signing-key"))
	require.NoError(t, err)

	cases := map[string]string{
		"malformed":      "invalid-token-string",
		"expired":        expired,
		"wrong audience": otherAudience,
		"wrong key":      otherKey,
		"no subject":     noSubject,
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := jwtService.ValidateToken(token)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized), "got %v", err)
		})
	}

	_, err = jwtService.ValidateToken(expired)
	assert.EqualError(t, err, "token has expired")
}

func Test_Adapter(t *testing.T) {
	token, err := jwtService.GenerateAccessToken(party, time.Hour)
	require.NoError(t, err)

	claims, err := NewJWTServiceAdapter(jwtService).ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, party, claims.Party)
	assert.NotEmpty(t, claims.JTI)
}
