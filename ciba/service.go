// Package ciba implements the decoupled authentication session state
// machine: a relying party initiates an out-of-band authentication request,
// the identity provider's decision arrives later on an independent request
// path, and the relying party polls the token endpoint until the session
// resolves. All state lives in the shared TTL store so any engine instance
// can serve any leg of the flow.
package ciba

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	errs "github.com/riyada/openbanking-sandbox/errors"
	"github.com/riyada/openbanking-sandbox/generates"
	"github.com/riyada/openbanking-sandbox/models"
	"github.com/riyada/openbanking-sandbox/store"
)

// Config carries the protocol timing contract advertised to relying parties.
type Config struct {
	// AuthRequestTTL is the lifetime of a pending session.
	AuthRequestTTL time.Duration
	// PollInterval is the minimum poll spacing advertised at initiation.
	PollInterval time.Duration
}

// DefaultConfig returns the standard sandbox timing: 300s sessions, 5s polls.
func DefaultConfig() Config {
	return Config{
		AuthRequestTTL: 300 * time.Second,
		PollInterval:   5 * time.Second,
	}
}

// Service owns the authentication session lifecycle. Initiation never blocks
// on the human decision; the poll loop is the retry mechanism.
type Service struct {
	sessions *store.AuthSessionStore
	tokens   *generates.CIBATokenGenerate
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// NewService wires the state machine to its session store and token issuer.
func NewService(sessions *store.AuthSessionStore, tokens *generates.CIBATokenGenerate, cfg Config, logger *slog.Logger) *Service {
	if cfg.AuthRequestTTL <= 0 {
		cfg.AuthRequestTTL = DefaultConfig().AuthRequestTTL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	sessions.SetTTL(cfg.AuthRequestTTL)
	return &Service{
		sessions: sessions,
		tokens:   tokens,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// SetClock injects the time source, propagating it to the session store and
// token issuer so expiry decisions stay consistent under test.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
	s.sessions.SetClock(now)
	if s.tokens != nil {
		s.tokens.SetClock(now)
	}
}

// InitiateResult is the polling contract returned to the relying party.
type InitiateResult struct {
	AuthReqID string
	ExpiresIn int64
	Interval  int64
}

// Initiate creates a new PENDING session with a fresh 128-bit random
// identifier and returns immediately with the polling contract.
func (s *Service) Initiate(ctx context.Context, clientID, loginHint string, scope []string) (*InitiateResult, error) {
	now := s.now()
	sess := &models.AuthSession{
		AuthReqID: s.newID(),
		ClientID:  clientID,
		LoginHint: loginHint,
		Scope:     scope,
		Status:    models.AuthPending,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.AuthRequestTTL),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	s.logger.Info("authentication initiated",
		"auth_req_id", sess.AuthReqID,
		"client_id", clientID,
		"login_hint", loginHint,
	)
	return &InitiateResult{
		AuthReqID: sess.AuthReqID,
		ExpiresIn: int64(s.cfg.AuthRequestTTL.Seconds()),
		Interval:  int64(s.cfg.PollInterval.Seconds()),
	}, nil
}

// Approve records the identity provider's approval for subject. It fails
// with errs.ErrUnknownSession, errs.ErrExpiredToken or
// errs.ErrSessionResolved; it never extends the session window.
func (s *Service) Approve(ctx context.Context, authReqID, subject string) error {
	return s.resolve(ctx, authReqID, models.AuthApproved, subject)
}

// Deny records the identity provider's denial.
func (s *Service) Deny(ctx context.Context, authReqID string) error {
	return s.resolve(ctx, authReqID, models.AuthDenied, "")
}

func (s *Service) resolve(ctx context.Context, authReqID string, status models.AuthStatus, subject string) error {
	if err := s.sessions.Transition(ctx, authReqID, status, subject); err != nil {
		return err
	}
	s.logger.Info("authentication resolved",
		"auth_req_id", authReqID,
		"status", string(status),
	)
	return nil
}

// Status reports the session state without consuming it. Unknown, consumed
// and lapsed sessions all read as EXPIRED; nothing reveals whether the
// identifier was ever valid.
func (s *Service) Status(ctx context.Context, authReqID string) (models.AuthStatus, *models.AuthSession, error) {
	sess, err := s.sessions.Load(ctx, authReqID)
	if err != nil {
		if errs.Is(err, errs.ErrExpiredToken) {
			return models.AuthExpired, nil, nil
		}
		return "", nil, err
	}
	return sess.Status, sess, nil
}

// TokenResult is the credential set returned on a successful redemption.
type TokenResult struct {
	AccessToken string
	IDToken     string
	TokenType   string
	ExpiresIn   int64
	Scope       []string
}

// Redeem consumes an APPROVED session and mints tokens bound to the
// caller's key fingerprint. The session is deleted on success, so a second
// call with the same identifier fails with errs.ErrExpiredToken. PENDING
// and DENIED sessions surface as errs.ErrAuthorizationPending and
// errs.ErrAccessDenied without being consumed.
func (s *Service) Redeem(ctx context.Context, authReqID, fingerprint string) (*TokenResult, error) {
	sess, err := s.sessions.Redeem(ctx, authReqID)
	if err != nil {
		return nil, err
	}
	pair, err := s.tokens.Token(ctx, sess.SubjectOrHint(), sess.Scope, sess.ClientID, fingerprint)
	if err != nil {
		s.logger.Error("token issuance failed after redemption",
			"auth_req_id", authReqID,
			"error", err,
		)
		return nil, err
	}
	s.logger.Info("session redeemed",
		"auth_req_id", authReqID,
		"client_id", sess.ClientID,
		"subject", sess.SubjectOrHint(),
	)
	return &TokenResult{
		AccessToken: pair.AccessToken,
		IDToken:     pair.IDToken,
		TokenType:   "Bearer",
		ExpiresIn:   pair.ExpiresIn,
		Scope:       sess.Scope,
	}, nil
}
