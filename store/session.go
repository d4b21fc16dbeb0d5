package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	errs "github.com/riyada/openbanking-sandbox/errors"
	"github.com/riyada/openbanking-sandbox/models"
)

// DefaultAuthSessionTTL is the lifetime of a pending authentication session.
const DefaultAuthSessionTTL = 300 * time.Second

// AuthSessionStore owns authentication-session records. All mutations are
// expressed as single atomic read-modify-write operations against the shared
// store, so a poll and a decision callback racing on the same session cannot
// lose updates. Expiry is enforced by the store's TTL plus a wall-clock
// check on every read, never by a background sweep.
type AuthSessionStore struct {
	kv     KV
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewAuthSessionStore creates a session store on top of kv.
func NewAuthSessionStore(kv KV, prefix string) *AuthSessionStore {
	if prefix == "" {
		prefix = "ob:"
	}
	return &AuthSessionStore{
		kv:     kv,
		prefix: prefix,
		ttl:    DefaultAuthSessionTTL,
		now:    time.Now,
	}
}

// SetTTL overrides the pending-session lifetime.
func (s *AuthSessionStore) SetTTL(ttl time.Duration) {
	s.ttl = ttl
}

// SetClock injects the time source used for wall-clock expiry checks.
func (s *AuthSessionStore) SetClock(now func() time.Time) {
	s.now = now
}

// TTL returns the configured pending-session lifetime.
func (s *AuthSessionStore) TTL() time.Duration {
	return s.ttl
}

func (s *AuthSessionStore) key(authReqID string) string {
	return s.prefix + "ciba:auth:" + authReqID
}

// Create stores a new PENDING session under its auth_req_id.
func (s *AuthSessionStore) Create(ctx context.Context, sess *models.AuthSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal auth session: %w", err)
	}
	created, err := s.kv.SetIfAbsent(ctx, s.key(sess.AuthReqID), string(data), s.ttl)
	if err != nil {
		return err
	}
	if !created {
		// 128-bit random identifiers make this unreachable in practice.
		return fmt.Errorf("%w: duplicate auth_req_id", errs.ErrServerError)
	}
	return nil
}

// Load returns the session honoring wall-clock expiry. Absent, consumed and
// lapsed sessions all read as errs.ErrExpiredToken so the identifier leaks
// no history.
func (s *AuthSessionStore) Load(ctx context.Context, authReqID string) (*models.AuthSession, error) {
	raw, err := s.kv.Get(ctx, s.key(authReqID))
	if err != nil {
		if errs.Is(err, ErrKeyNotFound) {
			return nil, errs.ErrExpiredToken
		}
		return nil, err
	}
	var sess models.AuthSession
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("unmarshal auth session: %w", err)
	}
	if sess.ExpiredAt(s.now()) {
		return nil, errs.ErrExpiredToken
	}
	return &sess, nil
}

// Transition moves a PENDING session to APPROVED or DENIED, recording the
// authenticated subject on approval. The rewrite preserves the original
// absolute expiry; the window is never extended. A session whose wall-clock
// expiry has passed cannot transition even if the store still returns it.
func (s *AuthSessionStore) Transition(ctx context.Context, authReqID string, status models.AuthStatus, subject string) error {
	if !status.Terminal() {
		return fmt.Errorf("%w: cannot transition to %s", errs.ErrInvalidRequest, status)
	}
	return s.kv.Update(ctx, s.key(authReqID), func(current string, exists bool) (string, time.Duration, bool, error) {
		if !exists {
			return "", 0, false, errs.ErrUnknownSession
		}
		var sess models.AuthSession
		if err := json.Unmarshal([]byte(current), &sess); err != nil {
			return "", 0, false, fmt.Errorf("unmarshal auth session: %w", err)
		}
		now := s.now()
		if sess.ExpiredAt(now) {
			return "", 0, false, errs.ErrExpiredToken
		}
		if sess.Status != models.AuthPending {
			return "", 0, false, errs.ErrSessionResolved
		}
		sess.Status = status
		if status == models.AuthApproved && subject != "" {
			sess.Subject = subject
		}
		data, err := json.Marshal(&sess)
		if err != nil {
			return "", 0, false, fmt.Errorf("marshal auth session: %w", err)
		}
		return string(data), sess.ExpiresAt.Sub(now), false, nil
	})
}

// Redeem consumes an APPROVED session: the record is read, checked and
// deleted in one atomic operation, so exactly one of any number of
// concurrent redemptions wins and a second attempt reports
// errs.ErrExpiredToken as if the session never existed. PENDING and DENIED
// sessions are reported without being consumed.
func (s *AuthSessionStore) Redeem(ctx context.Context, authReqID string) (*models.AuthSession, error) {
	var redeemed *models.AuthSession
	err := s.kv.Update(ctx, s.key(authReqID), func(current string, exists bool) (string, time.Duration, bool, error) {
		if !exists {
			return "", 0, false, errs.ErrExpiredToken
		}
		var sess models.AuthSession
		if err := json.Unmarshal([]byte(current), &sess); err != nil {
			return "", 0, false, fmt.Errorf("unmarshal auth session: %w", err)
		}
		if sess.ExpiredAt(s.now()) {
			return "", 0, false, errs.ErrExpiredToken
		}
		switch sess.Status {
		case models.AuthPending:
			return "", 0, false, errs.ErrAuthorizationPending
		case models.AuthDenied:
			return "", 0, false, errs.ErrAccessDenied
		case models.AuthApproved:
			redeemed = &sess
			return "", 0, true, nil
		default:
			return "", 0, false, errs.ErrExpiredToken
		}
	})
	if err != nil {
		return nil, err
	}
	return redeemed, nil
}
