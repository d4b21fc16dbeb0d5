package dpop

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errReplayed = errors.New("proof replayed")

// memGuard is an in-process ReplayGuard for tests.
type memGuard struct {
	seen map[string]bool
}

func newMemGuard() *memGuard {
	return &memGuard{seen: make(map[string]bool)}
}

func (g *memGuard) Record(ctx context.Context, jti string) error {
	if g.seen[jti] {
		return errReplayed
	}
	g.seen[jti] = true
	return nil
}

func newEdKey(t *testing.T) ed25519.PrivateKey {
	t.Helper()
	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return key
}

func TestVerify_Ed25519(t *testing.T) {
	key := newEdKey(t)
	v := NewVerifier(newMemGuard())

	proof, err := SignProof(key, "POST", "https://bank.example/auth/request")
	require.NoError(t, err)

	result, err := v.Verify(context.Background(), proof, "https://bank.example/auth/request", "POST")
	require.NoError(t, err)
	assert.NotEmpty(t, result.JTI)

	want, err := Thumbprint(key)
	require.NoError(t, err)
	assert.Equal(t, want, result.Thumbprint)
}

func TestVerify_ES256(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	v := NewVerifier(newMemGuard())

	proof, err := SignProof(key, "GET", "https://bank.example/accounts")
	require.NoError(t, err)

	result, err := v.Verify(context.Background(), proof, "https://bank.example/accounts", "GET")
	require.NoError(t, err)

	want, err := Thumbprint(key)
	require.NoError(t, err)
	assert.Equal(t, want, result.Thumbprint)
}

func TestVerify_MissingProof(t *testing.T) {
	v := NewVerifier(newMemGuard())

	_, err := v.Verify(context.Background(), "", "https://bank.example/auth/request", "POST")
	assert.ErrorIs(t, err, ErrMissingProof)
}

func TestVerify_URLMismatch(t *testing.T) {
	key := newEdKey(t)
	v := NewVerifier(newMemGuard())

	proof, err := SignProof(key, "POST", "https://bank.example/auth/request")
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), proof, "https://bank.example/auth/token", "POST")
	assert.ErrorIs(t, err, ErrURIMismatch)
}

func TestVerify_URLNormalization(t *testing.T) {
	key := newEdKey(t)
	v := NewVerifier(newMemGuard())

	// Default port, uppercase host and query string all normalize away.
	proof, err := SignProof(key, "POST", "https://BANK.example:443/auth/request?x=1")
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), proof, "https://bank.example/auth/request", "POST")
	assert.NoError(t, err)
}

func TestVerify_MethodMismatch(t *testing.T) {
	key := newEdKey(t)
	v := NewVerifier(newMemGuard())

	proof, err := SignProof(key, "GET", "https://bank.example/auth/request")
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), proof, "https://bank.example/auth/request", "POST")
	assert.ErrorIs(t, err, ErrMethodMismatch)
}

func TestVerify_MethodCaseInsensitive(t *testing.T) {
	key := newEdKey(t)
	v := NewVerifier(newMemGuard())

	proof, err := SignProof(key, "post", "https://bank.example/auth/request")
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), proof, "https://bank.example/auth/request", "POST")
	assert.NoError(t, err)
}

func TestVerify_Replay(t *testing.T) {
	key := newEdKey(t)
	v := NewVerifier(newMemGuard())
	ctx := context.Background()

	proof, err := SignProof(key, "POST", "https://bank.example/auth/token")
	require.NoError(t, err)

	_, err = v.Verify(ctx, proof, "https://bank.example/auth/token", "POST")
	require.NoError(t, err)

	// The identical proof string must be rejected on second presentation.
	_, err = v.Verify(ctx, proof, "https://bank.example/auth/token", "POST")
	assert.ErrorIs(t, err, errReplayed)
}

func TestVerify_TamperedSignature(t *testing.T) {
	key := newEdKey(t)
	v := NewVerifier(newMemGuard())

	proof, err := SignProof(key, "POST", "https://bank.example/auth/request")
	require.NoError(t, err)

	tampered := proof[:len(proof)-2] + "xx"
	_, err = v.Verify(context.Background(), tampered, "https://bank.example/auth/request", "POST")
	assert.ErrorIs(t, err, ErrInvalidProof)
}

func TestVerify_StaleProof(t *testing.T) {
	key := newEdKey(t)
	v := NewVerifier(newMemGuard())

	at := time.Now()
	proof, err := signProofAt(key, "POST", "https://bank.example/auth/request", at)
	require.NoError(t, err)

	// Just past the 60s proof-age window.
	v.SetClock(func() time.Time { return at.Add(DefaultMaxProofAge + 3*time.Second) })
	_, err = v.Verify(context.Background(), proof, "https://bank.example/auth/request", "POST")
	assert.ErrorIs(t, err, ErrInvalidProof)
}

func TestVerify_FutureProof(t *testing.T) {
	key := newEdKey(t)
	v := NewVerifier(newMemGuard())

	at := time.Now()
	proof, err := signProofAt(key, "POST", "https://bank.example/auth/request", at.Add(30*time.Second))
	require.NoError(t, err)

	// An issued-at beyond the skew tolerance is rejected outright.
	v.SetClock(func() time.Time { return at })
	_, err = v.Verify(context.Background(), proof, "https://bank.example/auth/request", "POST")
	assert.ErrorIs(t, err, ErrInvalidProof)
}

func TestVerify_WithinSkew(t *testing.T) {
	key := newEdKey(t)
	v := NewVerifier(newMemGuard())

	at := time.Now()
	proof, err := signProofAt(key, "POST", "https://bank.example/auth/request", at.Add(time.Second))
	require.NoError(t, err)

	v.SetClock(func() time.Time { return at })
	_, err = v.Verify(context.Background(), proof, "https://bank.example/auth/request", "POST")
	assert.NoError(t, err)
}

func TestVerify_WrongTyp(t *testing.T) {
	key := newEdKey(t)
	v := NewVerifier(newMemGuard())

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{
		"jti": uuid.NewString(),
		"htm": "POST",
		"htu": "https://bank.example/auth/request",
		"iat": time.Now().Unix(),
	})
	token.Header["typ"] = "JWT"
	token.Header["jwk"] = jwkFromEd25519(key.Public().(ed25519.PublicKey))
	proof, err := token.SignedString(key)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), proof, "https://bank.example/auth/request", "POST")
	assert.ErrorIs(t, err, ErrInvalidProof)
}

func TestVerify_MissingJTI(t *testing.T) {
	key := newEdKey(t)
	v := NewVerifier(newMemGuard())

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{
		"htm": "POST",
		"htu": "https://bank.example/auth/request",
		"iat": time.Now().Unix(),
	})
	token.Header["typ"] = TypeDPoP
	token.Header["jwk"] = jwkFromEd25519(key.Public().(ed25519.PublicKey))
	proof, err := token.SignedString(key)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), proof, "https://bank.example/auth/request", "POST")
	assert.ErrorIs(t, err, ErrInvalidProof)
}

func TestVerify_AlgKeyMismatch(t *testing.T) {
	// An EdDSA-signed proof carrying an EC jwk must not verify even if a
	// forger controls both: alg and key type are checked for agreement.
	edKey := newEdKey(t)
	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	v := NewVerifier(newMemGuard())

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{
		"jti": uuid.NewString(),
		"htm": "POST",
		"htu": "https://bank.example/auth/request",
		"iat": time.Now().Unix(),
	})
	token.Header["typ"] = TypeDPoP
	token.Header["jwk"] = jwkFromECDSA(&ecKey.PublicKey)
	proof, err := token.SignedString(edKey)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), proof, "https://bank.example/auth/request", "POST")
	assert.ErrorIs(t, err, ErrInvalidProof)
}

func TestThumbprint_Deterministic(t *testing.T) {
	key := newEdKey(t)

	a, err := Thumbprint(key)
	require.NoError(t, err)
	b, err := Thumbprint(key)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other, err := Thumbprint(newEdKey(t))
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://Bank.Example/auth/request", "https://bank.example/auth/request"},
		{"https://bank.example:443/auth/request", "https://bank.example/auth/request"},
		{"http://bank.example:80/auth/request", "http://bank.example/auth/request"},
		{"http://bank.example:8080/auth/request", "http://bank.example:8080/auth/request"},
		{"https://bank.example/auth/request?a=1#frag", "https://bank.example/auth/request"},
		{"https://bank.example", "https://bank.example/"},
	}
	for _, tc := range cases {
		got, err := NormalizeURL(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := NormalizeURL("")
	assert.Error(t, err)
	_, err = NormalizeURL("/auth/request")
	assert.Error(t, err)
}
