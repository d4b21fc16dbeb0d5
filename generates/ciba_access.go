package generates

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	errs "github.com/riyada/openbanking-sandbox/errors"
)

// DefaultTokenTTL is the lifetime of issued credentials. Tokens are
// short-lived; possession of the bound key, not the bearer string, is what
// keeps access alive.
const DefaultTokenTTL = 15 * time.Minute

// AMRNafathPush is the authentication-method reference recorded in identity
// tokens: the end-user approved out-of-band via a push prompt.
const AMRNafathPush = "urn:nafath:push"

// Confirmation carries the proof-of-possession key binding (RFC 7800). JKT
// is the RFC 7638 thumbprint of the caller's proof key.
type Confirmation struct {
	JKT string `json:"jkt"`
}

// CIBAAccessClaims is the access token claim set.
type CIBAAccessClaims struct {
	jwt.RegisteredClaims
	ClientID string        `json:"client_id,omitempty"`
	Scope    string        `json:"scope,omitempty"` // space-separated per RFC 6749
	Cnf      *Confirmation `json:"cnf,omitempty"`
}

// CIBAIDClaims is the identity token claim set.
type CIBAIDClaims struct {
	jwt.RegisteredClaims
	AMR []string `json:"amr,omitempty"`
}

// NewCIBATokenGenerate creates the token generator. key is interpreted per
// the signing method: a PEM private key for EC/RSA/Ed25519 methods, the raw
// shared secret for HMAC.
func NewCIBATokenGenerate(issuer, kid string, key []byte, method jwt.SigningMethod) *CIBATokenGenerate {
	return &CIBATokenGenerate{
		Issuer:       issuer,
		SignedKeyID:  kid,
		SignedKey:    key,
		SignedMethod: method,
		TokenTTL:     DefaultTokenTTL,
		now:          time.Now,
	}
}

// CIBATokenGenerate mints the signed bearer credentials for an approved
// authentication session.
type CIBATokenGenerate struct {
	Issuer       string
	SignedKeyID  string
	SignedKey    []byte
	SignedMethod jwt.SigningMethod
	TokenTTL     time.Duration
	now          func() time.Time
}

// SetClock injects the time source used for iat/exp claims.
func (g *CIBATokenGenerate) SetClock(now func() time.Time) {
	g.now = now
}

// TokenPair is the issued credential set.
type TokenPair struct {
	AccessToken string
	IDToken     string
	ExpiresIn   int64
}

// Token mints the access and identity tokens for subject. fingerprint, when
// non-empty, is embedded as the cnf.jkt confirmation claim so the bearer
// credential is unusable outside the original key holder's context.
func (g *CIBATokenGenerate) Token(ctx context.Context, subject string, scope []string, clientID, fingerprint string) (*TokenPair, error) {
	now := g.now()
	expiresAt := now.Add(g.TokenTTL)

	access := &CIBAAccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.Issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{clientID},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
		ClientID: clientID,
		Scope:    strings.Join(scope, " "),
	}
	if fingerprint != "" {
		access.Cnf = &Confirmation{JKT: fingerprint}
	}

	id := &CIBAIDClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.Issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{clientID},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		AMR: []string{AMRNafathPush},
	}

	accessToken, err := g.sign(access)
	if err != nil {
		return nil, err
	}
	idToken, err := g.sign(id)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken: accessToken,
		IDToken:     idToken,
		ExpiresIn:   int64(g.TokenTTL.Seconds()),
	}, nil
}

func (g *CIBATokenGenerate) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(g.SignedMethod, claims)
	if g.SignedKeyID != "" {
		token.Header["kid"] = g.SignedKeyID
	}
	key, err := g.signingKey()
	if err != nil {
		return "", err
	}
	return token.SignedString(key)
}

func (g *CIBATokenGenerate) signingKey() (any, error) {
	switch {
	case g.isEs():
		return jwt.ParseECPrivateKeyFromPEM(g.SignedKey)
	case g.isRsOrPS():
		return jwt.ParseRSAPrivateKeyFromPEM(g.SignedKey)
	case g.isHs():
		return g.SignedKey, nil
	case g.isEd():
		return jwt.ParseEdPrivateKeyFromPEM(g.SignedKey)
	default:
		return nil, errs.New("unsupported sign method")
	}
}

func (g *CIBATokenGenerate) isEs() bool {
	return strings.HasPrefix(g.SignedMethod.Alg(), "ES")
}

func (g *CIBATokenGenerate) isRsOrPS() bool {
	isRs := strings.HasPrefix(g.SignedMethod.Alg(), "RS")
	isPs := strings.HasPrefix(g.SignedMethod.Alg(), "PS")
	return isRs || isPs
}

func (g *CIBATokenGenerate) isHs() bool { return strings.HasPrefix(g.SignedMethod.Alg(), "HS") }
func (g *CIBATokenGenerate) isEd() bool { return strings.HasPrefix(g.SignedMethod.Alg(), "Ed") }
