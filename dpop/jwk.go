package dpop

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
)

// jwk is the public key material embedded in a proof header. Only the
// members that participate in the RFC 7638 thumbprint are kept.
type jwk struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y,omitempty"`
}

func jwkFromHeader(v any) (*jwk, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: jwk header is required", ErrInvalidProof)
	}
	str := func(name string) string {
		s, _ := m[name].(string)
		return s
	}
	k := &jwk{Kty: str("kty"), Crv: str("crv"), X: str("x"), Y: str("y")}
	if k.Kty == "" || k.X == "" {
		return nil, fmt.Errorf("%w: jwk is missing kty or x", ErrInvalidProof)
	}
	return k, nil
}

func jwkFromEd25519(pub ed25519.PublicKey) *jwk {
	return &jwk{
		Kty: "OKP",
		Crv: "Ed25519",
		X:   base64.RawURLEncoding.EncodeToString(pub),
	}
}

func jwkFromECDSA(pub *ecdsa.PublicKey) *jwk {
	return &jwk{
		Kty: "EC",
		Crv: "P-256",
		X:   base64.RawURLEncoding.EncodeToString(pub.X.FillBytes(make([]byte, 32))),
		Y:   base64.RawURLEncoding.EncodeToString(pub.Y.FillBytes(make([]byte, 32))),
	}
}

// publicKey materializes the verification key. The key type is taken from
// the JWK itself, never from the alg header.
func (k *jwk) publicKey() (any, error) {
	switch k.Kty {
	case "OKP":
		if k.Crv != "Ed25519" {
			return nil, fmt.Errorf("%w: unsupported OKP curve %q", ErrInvalidProof, k.Crv)
		}
		raw, err := base64.RawURLEncoding.DecodeString(k.X)
		if err != nil || len(raw) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("%w: malformed Ed25519 public key", ErrInvalidProof)
		}
		return ed25519.PublicKey(raw), nil
	case "EC":
		if k.Crv != "P-256" {
			return nil, fmt.Errorf("%w: unsupported EC curve %q", ErrInvalidProof, k.Crv)
		}
		xb, errX := base64.RawURLEncoding.DecodeString(k.X)
		yb, errY := base64.RawURLEncoding.DecodeString(k.Y)
		if errX != nil || errY != nil {
			return nil, fmt.Errorf("%w: malformed EC public key", ErrInvalidProof)
		}
		pub := &ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(xb),
			Y:     new(big.Int).SetBytes(yb),
		}
		if !pub.Curve.IsOnCurve(pub.X, pub.Y) {
			return nil, fmt.Errorf("%w: EC point is not on P-256", ErrInvalidProof)
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("%w: unsupported kty %q", ErrInvalidProof, k.Kty)
	}
}

// thumbprint computes the RFC 7638 thumbprint: SHA-256 over the canonical
// JSON with required members in lexicographic order, base64url-encoded.
func (k *jwk) thumbprint() string {
	var canonical string
	switch k.Kty {
	case "EC":
		canonical = fmt.Sprintf(`{"crv":%q,"kty":%q,"x":%q,"y":%q}`, k.Crv, k.Kty, k.X, k.Y)
	default:
		canonical = fmt.Sprintf(`{"crv":%q,"kty":%q,"x":%q}`, k.Crv, k.Kty, k.X)
	}
	sum := sha256.Sum256([]byte(canonical))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
