package generates

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "00000000"

func newTestGenerate() *CIBATokenGenerate {
	return NewCIBATokenGenerate("riyada-openbanking", "", []byte(testSecret), jwt.SigningMethodHS256)
}

func parseAccess(t *testing.T, raw string) *CIBAAccessClaims {
	t.Helper()
	claims := &CIBAAccessClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(tok *jwt.Token) (any, error) {
		return []byte(testSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithoutClaimsValidation())
	require.NoError(t, err)
	return claims
}

func TestToken_AccessClaims(t *testing.T) {
	g := newTestGenerate()
	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	g.SetClock(func() time.Time { return base })

	pair, err := g.Token(context.Background(), "user-42", []string{"accounts.read", "payments.write"}, "demo-client", "thumb-1")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	assert.Equal(t, int64(900), pair.ExpiresIn)

	claims := parseAccess(t, pair.AccessToken)
	assert.Equal(t, "riyada-openbanking", claims.Issuer)
	assert.Equal(t, "user-42", claims.Subject)
	assert.Equal(t, jwt.ClaimStrings{"demo-client"}, claims.Audience)
	assert.Equal(t, "demo-client", claims.ClientID)
	assert.Equal(t, "accounts.read payments.write", claims.Scope)
	assert.NotEmpty(t, claims.ID)

	require.NotNil(t, claims.Cnf)
	assert.Equal(t, "thumb-1", claims.Cnf.JKT)

	require.NotNil(t, claims.IssuedAt)
	require.NotNil(t, claims.ExpiresAt)
	assert.Equal(t, base.Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, DefaultTokenTTL, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}

func TestToken_IDClaims(t *testing.T) {
	g := newTestGenerate()

	pair, err := g.Token(context.Background(), "user-42", []string{"accounts.read"}, "demo-client", "thumb-1")
	require.NoError(t, err)
	require.NotEmpty(t, pair.IDToken)

	claims := &CIBAIDClaims{}
	_, err = jwt.ParseWithClaims(pair.IDToken, claims, func(tok *jwt.Token) (any, error) {
		return []byte(testSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithoutClaimsValidation())
	require.NoError(t, err)

	assert.Equal(t, "user-42", claims.Subject)
	assert.Equal(t, []string{AMRNafathPush}, claims.AMR)
}

func TestToken_NoFingerprintOmitsConfirmation(t *testing.T) {
	g := newTestGenerate()

	pair, err := g.Token(context.Background(), "user-42", nil, "demo-client", "")
	require.NoError(t, err)

	claims := parseAccess(t, pair.AccessToken)
	assert.Nil(t, claims.Cnf)
	assert.Empty(t, claims.Scope)
}

func TestToken_KidHeader(t *testing.T) {
	g := NewCIBATokenGenerate("riyada-openbanking", "key-1", []byte(testSecret), jwt.SigningMethodHS256)

	pair, err := g.Token(context.Background(), "user-42", nil, "demo-client", "")
	require.NoError(t, err)

	tok, err := jwt.Parse(pair.AccessToken, func(tok *jwt.Token) (any, error) {
		return []byte(testSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	require.NoError(t, err)
	assert.Equal(t, "key-1", tok.Header["kid"])
}

func TestToken_UnsupportedMethod(t *testing.T) {
	g := NewCIBATokenGenerate("riyada-openbanking", "", []byte(testSecret), jwt.SigningMethodNone)

	_, err := g.Token(context.Background(), "user-42", nil, "demo-client", "")
	assert.Error(t, err)
}
