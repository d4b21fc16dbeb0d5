package store

import (
	"context"
	"time"

	errs "github.com/riyada/openbanking-sandbox/errors"
)

// DefaultNonceTTL bounds the replay window for request nonces.
const DefaultNonceTTL = 300 * time.Second

// NonceStore enforces single-use request nonces. A claim is one atomic
// set-if-absent against the shared store; exactly one of any number of
// concurrent claims of the same nonce succeeds.
type NonceStore struct {
	kv     KV
	prefix string
	ttl    time.Duration
}

// NewNonceStore creates a nonce store on top of kv.
func NewNonceStore(kv KV, prefix string) *NonceStore {
	if prefix == "" {
		prefix = "ob:"
	}
	return &NonceStore{kv: kv, prefix: prefix, ttl: DefaultNonceTTL}
}

// SetTTL overrides the nonce replay window.
func (s *NonceStore) SetTTL(ttl time.Duration) {
	s.ttl = ttl
}

func (s *NonceStore) key(nonce string) string {
	return s.prefix + "nonce:" + nonce
}

// Claim marks nonce as used. It returns errs.ErrNonceMissing for an empty
// nonce, errs.ErrNonceReused when the nonce was already claimed within the
// TTL window, and a store error (wrapping ErrUnavailable) on backend
// failure. Rejections leave no record behind.
func (s *NonceStore) Claim(ctx context.Context, nonce string) error {
	if nonce == "" {
		return errs.ErrNonceMissing
	}
	claimed, err := s.kv.SetIfAbsent(ctx, s.key(nonce), "1", s.ttl)
	if err != nil {
		return err
	}
	if !claimed {
		return errs.ErrNonceReused
	}
	return nil
}
