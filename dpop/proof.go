package dpop

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SignProof creates a possession proof for one HTTP request, signed with
// key. key must be an ed25519.PrivateKey or a P-256 *ecdsa.PrivateKey; the
// matching public key is embedded in the proof header as a JWK. Used by the
// example client and by tests; servers only verify.
func SignProof(key crypto.PrivateKey, method, uri string) (string, error) {
	return signProofAt(key, method, uri, time.Now())
}

func signProofAt(key crypto.PrivateKey, method, uri string, at time.Time) (string, error) {
	var (
		signingMethod jwt.SigningMethod
		pub           *jwk
	)
	switch k := key.(type) {
	case ed25519.PrivateKey:
		signingMethod = jwt.SigningMethodEdDSA
		pub = jwkFromEd25519(k.Public().(ed25519.PublicKey))
	case *ecdsa.PrivateKey:
		if k.Curve != elliptic.P256() {
			return "", fmt.Errorf("dpop: only P-256 ECDSA keys are supported")
		}
		signingMethod = jwt.SigningMethodES256
		pub = jwkFromECDSA(&k.PublicKey)
	default:
		return "", fmt.Errorf("dpop: unsupported key type %T", key)
	}

	normalized, err := NormalizeURL(uri)
	if err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(signingMethod, jwt.MapClaims{
		"jti": uuid.NewString(),
		"htm": method,
		"htu": normalized,
		"iat": at.Unix(),
	})
	token.Header["typ"] = TypeDPoP
	token.Header["jwk"] = pub
	return token.SignedString(key)
}

// Thumbprint returns the RFC 7638 thumbprint of a proof signing key's
// public half, as it would appear in the cnf.jkt claim of a bound token.
func Thumbprint(key crypto.PrivateKey) (string, error) {
	switch k := key.(type) {
	case ed25519.PrivateKey:
		return jwkFromEd25519(k.Public().(ed25519.PublicKey)).thumbprint(), nil
	case *ecdsa.PrivateKey:
		if k.Curve != elliptic.P256() {
			return "", fmt.Errorf("dpop: only P-256 ECDSA keys are supported")
		}
		return jwkFromECDSA(&k.PublicKey).thumbprint(), nil
	default:
		return "", fmt.Errorf("dpop: unsupported key type %T", key)
	}
}
