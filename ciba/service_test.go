package ciba

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/riyada/openbanking-sandbox/errors"
	"github.com/riyada/openbanking-sandbox/generates"
	"github.com/riyada/openbanking-sandbox/models"
	"github.com/riyada/openbanking-sandbox/store"
)

type fixture struct {
	service *Service
	now     time.Time
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kv, err := store.NewBuntKV()
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	sessions := store.NewAuthSessionStore(kv, "")
	tokens := generates.NewCIBATokenGenerate("riyada-openbanking", "", []byte("00000000"), jwt.SigningMethodHS256)
	f := &fixture{now: time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)}
	f.service = NewService(sessions, tokens, DefaultConfig(), nil)
	f.service.SetClock(func() time.Time { return f.now })
	return f
}

func TestService_Initiate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.service.Initiate(ctx, "demo-client", "user@example.com", []string{"accounts.read"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.AuthReqID)
	assert.Equal(t, int64(300), result.ExpiresIn)
	assert.Equal(t, int64(5), result.Interval)

	status, sess, err := f.service.Status(ctx, result.AuthReqID)
	require.NoError(t, err)
	assert.Equal(t, models.AuthPending, status)
	assert.Equal(t, "demo-client", sess.ClientID)
}

func TestService_ApproveAndRedeem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.service.Initiate(ctx, "demo-client", "user@example.com", []string{"accounts.read"})
	require.NoError(t, err)

	// Pending sessions are reported without being consumed.
	_, err = f.service.Redeem(ctx, result.AuthReqID, "thumb-1")
	assert.ErrorIs(t, err, errs.ErrAuthorizationPending)

	require.NoError(t, f.service.Approve(ctx, result.AuthReqID, "user-42"))

	tokens, err := f.service.Redeem(ctx, result.AuthReqID, "thumb-1")
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.IDToken)
	assert.Equal(t, "Bearer", tokens.TokenType)
	assert.Equal(t, int64(900), tokens.ExpiresIn)
	assert.Equal(t, []string{"accounts.read"}, tokens.Scope)

	// Redemption consumed the session.
	_, err = f.service.Redeem(ctx, result.AuthReqID, "thumb-1")
	assert.ErrorIs(t, err, errs.ErrExpiredToken)

	status, _, err := f.service.Status(ctx, result.AuthReqID)
	require.NoError(t, err)
	assert.Equal(t, models.AuthExpired, status)
}

func TestService_Deny(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.service.Initiate(ctx, "demo-client", "user@example.com", nil)
	require.NoError(t, err)
	require.NoError(t, f.service.Deny(ctx, result.AuthReqID))

	_, err = f.service.Redeem(ctx, result.AuthReqID, "thumb-1")
	assert.ErrorIs(t, err, errs.ErrAccessDenied)

	// Denial is stable across polls.
	_, err = f.service.Redeem(ctx, result.AuthReqID, "thumb-1")
	assert.ErrorIs(t, err, errs.ErrAccessDenied)
}

func TestService_DecisionRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.service.Initiate(ctx, "demo-client", "user@example.com", nil)
	require.NoError(t, err)
	require.NoError(t, f.service.Approve(ctx, result.AuthReqID, "user-42"))

	// The losing decision surfaces as already resolved.
	err = f.service.Deny(ctx, result.AuthReqID)
	assert.ErrorIs(t, err, errs.ErrSessionResolved)
}

func TestService_UnknownDecision(t *testing.T) {
	f := newFixture(t)

	err := f.service.Approve(context.Background(), "no-such-id", "user-42")
	assert.ErrorIs(t, err, errs.ErrUnknownSession)
}

func TestService_Expiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.service.Initiate(ctx, "demo-client", "user@example.com", nil)
	require.NoError(t, err)

	f.advance(301 * time.Second)

	status, _, err := f.service.Status(ctx, result.AuthReqID)
	require.NoError(t, err)
	assert.Equal(t, models.AuthExpired, status)

	err = f.service.Approve(ctx, result.AuthReqID, "user-42")
	assert.ErrorIs(t, err, errs.ErrExpiredToken)

	_, err = f.service.Redeem(ctx, result.AuthReqID, "thumb-1")
	assert.ErrorIs(t, err, errs.ErrExpiredToken)
}

func TestService_RedeemBindsFingerprint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.service.Initiate(ctx, "demo-client", "user@example.com", []string{"accounts.read"})
	require.NoError(t, err)
	require.NoError(t, f.service.Approve(ctx, result.AuthReqID, "user-42"))

	tokens, err := f.service.Redeem(ctx, result.AuthReqID, "thumb-1")
	require.NoError(t, err)

	claims := &generates.CIBAAccessClaims{}
	_, err = jwt.ParseWithClaims(tokens.AccessToken, claims, func(tok *jwt.Token) (any, error) {
		return []byte("00000000"), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithoutClaimsValidation())
	require.NoError(t, err)

	assert.Equal(t, "user-42", claims.Subject)
	require.NotNil(t, claims.Cnf)
	assert.Equal(t, "thumb-1", claims.Cnf.JKT)
}
