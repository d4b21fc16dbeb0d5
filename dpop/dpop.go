// Package dpop verifies and generates DPoP possession proofs (RFC 9449).
//
// A proof is a short-lived JWT signed with a key the caller controls,
// binding one HTTP request (method + URL) to that key. The embedded public
// key's RFC 7638 thumbprint is the caller's fingerprint: it is attached to
// the request context, embedded into issued tokens as the cnf.jkt
// confirmation claim, and re-checked on every protected resource call.
package dpop

import (
	"context"
	"errors"
	"time"
)

const (
	// HeaderName is the HTTP header carrying the possession proof.
	HeaderName = "DPoP"

	// TypeDPoP is the required typ header value for proofs.
	TypeDPoP = "dpop+jwt"

	// DefaultClockSkew is the tolerance applied to the proof's issued-at.
	DefaultClockSkew = 2 * time.Second

	// DefaultMaxProofAge is how far in the past a proof's issued-at may lie.
	// It must stay below the replay guard's retention window.
	DefaultMaxProofAge = 60 * time.Second

	// maxProofSize caps accepted proofs to keep parsing cheap.
	maxProofSize = 8 * 1024
)

// Verification errors. The HTTP layer maps all of these to 401-class
// rejections; there is no optional-proof mode.
var (
	ErrMissingProof   = errors.New("dpop: missing proof")
	ErrInvalidProof   = errors.New("dpop: invalid proof")
	ErrMethodMismatch = errors.New("dpop: htm does not match request method")
	ErrURIMismatch    = errors.New("dpop: htu does not match request url")
)

// Proof is the verified result of a possession proof.
type Proof struct {
	// Thumbprint is the RFC 7638 thumbprint of the embedded public key,
	// base64url-encoded SHA-256 of the key's canonical JWK form.
	Thumbprint string
	// JTI is the proof's unique identifier.
	JTI string
}

// ReplayGuard records proof identifiers and rejects reuse within its
// retention window. store.ProofReplayStore satisfies it.
type ReplayGuard interface {
	Record(ctx context.Context, jti string) error
}
