package dpop

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// proofClaims is the proof payload. jti and iat ride in RegisteredClaims.
type proofClaims struct {
	jwt.RegisteredClaims
	HTM string `json:"htm"`
	HTU string `json:"htu"`
}

// Verifier validates possession proofs presented with inbound requests.
type Verifier struct {
	skew    time.Duration
	maxAge  time.Duration
	replays ReplayGuard
	now     func() time.Time
}

// NewVerifier creates a verifier with the default 2s clock-skew tolerance
// and 60s maximum proof age, backed by the given replay guard.
func NewVerifier(replays ReplayGuard) *Verifier {
	return &Verifier{
		skew:    DefaultClockSkew,
		maxAge:  DefaultMaxProofAge,
		replays: replays,
		now:     time.Now,
	}
}

// SetClock injects the time source used for issued-at validation.
func (v *Verifier) SetClock(now func() time.Time) {
	v.now = now
}

// SetClockSkew overrides the issued-at skew tolerance.
func (v *Verifier) SetClockSkew(skew time.Duration) {
	v.skew = skew
}

// SetMaxProofAge overrides the maximum accepted proof age.
func (v *Verifier) SetMaxProofAge(age time.Duration) {
	v.maxAge = age
}

// Verify checks a proof against the externally observed request URL and
// method and returns the caller's key thumbprint and proof identifier.
//
// Order: signature with the embedded key (typ and jwk/alg agreement checked
// before any claim is trusted), then htu, htm, issued-at window, thumbprint,
// and finally the replay guard. A missing or malformed proof is always a
// hard rejection.
func (v *Verifier) Verify(ctx context.Context, proof, rawURL, method string) (*Proof, error) {
	if proof == "" {
		return nil, ErrMissingProof
	}
	if len(proof) > maxProofSize {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrInvalidProof, maxProofSize)
	}

	var key *jwk
	claims := &proofClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"EdDSA", "ES256"}),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.skew),
		jwt.WithTimeFunc(v.now),
	)
	_, err := parser.ParseWithClaims(proof, claims, func(t *jwt.Token) (any, error) {
		if typ, _ := t.Header["typ"].(string); typ != TypeDPoP {
			return nil, fmt.Errorf("typ must be %q", TypeDPoP)
		}
		k, err := jwkFromHeader(t.Header["jwk"])
		if err != nil {
			return nil, err
		}
		// The embedded key type must agree with the declared algorithm; the
		// alg header never selects the key type on its own.
		switch t.Method.Alg() {
		case "EdDSA":
			if k.Kty != "OKP" || k.Crv != "Ed25519" {
				return nil, fmt.Errorf("alg EdDSA requires an OKP/Ed25519 jwk")
			}
		case "ES256":
			if k.Kty != "EC" || k.Crv != "P-256" {
				return nil, fmt.Errorf("alg ES256 requires an EC/P-256 jwk")
			}
		}
		key = k
		return k.publicKey()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}

	if claims.ID == "" || claims.HTM == "" || claims.HTU == "" {
		return nil, fmt.Errorf("%w: jti, htm and htu are required", ErrInvalidProof)
	}
	if claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: iat is required", ErrInvalidProof)
	}
	if age := v.now().Sub(claims.IssuedAt.Time); age > v.maxAge {
		return nil, fmt.Errorf("%w: proof issued %s ago exceeds max age %s", ErrInvalidProof, age.Round(time.Second), v.maxAge)
	}

	if !strings.EqualFold(claims.HTM, method) {
		return nil, fmt.Errorf("%w: proof declares %s, request is %s", ErrMethodMismatch, claims.HTM, method)
	}

	wantURL, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	proofURL, err := NormalizeURL(claims.HTU)
	if err != nil {
		return nil, err
	}
	if proofURL != wantURL {
		return nil, fmt.Errorf("%w: proof declares %s, request is %s", ErrURIMismatch, proofURL, wantURL)
	}

	result := &Proof{Thumbprint: key.thumbprint(), JTI: claims.ID}
	if err := v.replays.Record(ctx, result.JTI); err != nil {
		return nil, err
	}
	return result, nil
}
