package store

import (
	"context"
	"time"

	errs "github.com/riyada/openbanking-sandbox/errors"
)

// DefaultProofReplayTTL is the retention window for proof identifiers. It
// must exceed the proof's own validity window so a captured proof is never
// admitted after its replay marker lapses.
const DefaultProofReplayTTL = 900 * time.Second

// ProofReplayStore records the unique identifier of every accepted
// possession proof and rejects reuse within the retention window.
type ProofReplayStore struct {
	kv     KV
	prefix string
	ttl    time.Duration
}

// NewProofReplayStore creates a proof-replay guard on top of kv.
func NewProofReplayStore(kv KV, prefix string) *ProofReplayStore {
	if prefix == "" {
		prefix = "ob:"
	}
	return &ProofReplayStore{kv: kv, prefix: prefix, ttl: DefaultProofReplayTTL}
}

// SetTTL overrides the retention window.
func (s *ProofReplayStore) SetTTL(ttl time.Duration) {
	s.ttl = ttl
}

func (s *ProofReplayStore) key(jti string) string {
	return s.prefix + "dpop-jti:" + jti
}

// Record marks a proof identifier as seen. It returns errs.ErrDPoPReplay
// when the identifier was already recorded within the retention window.
func (s *ProofReplayStore) Record(ctx context.Context, jti string) error {
	if jti == "" {
		return errs.ErrInvalidDPoPProof
	}
	recorded, err := s.kv.SetIfAbsent(ctx, s.key(jti), "1", s.ttl)
	if err != nil {
		return err
	}
	if !recorded {
		return errs.ErrDPoPReplay
	}
	return nil
}
