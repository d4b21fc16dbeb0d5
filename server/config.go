package server

import "time"

// Config configuration parameters for the HTTP surface.
type Config struct {
	// Issuer is the iss value stamped into tokens.
	Issuer string
	// TokenType is returned with issued credentials.
	TokenType string
	// SigningAlg restricts accepted bearer token algorithms; it must match
	// the token generator's signing method.
	SigningAlg string
	// NonceHeader carries the caller-supplied single-use nonce.
	NonceHeader string
	// ClockSkew is the issued-at tolerance applied to possession proofs.
	ClockSkew time.Duration
	// AccountsScope and PaymentsScope guard the sample resources.
	AccountsScope string
	PaymentsScope string
}

// NewConfig create to configuration instance
func NewConfig() *Config {
	return &Config{
		Issuer:        "riyada-openbanking",
		TokenType:     "Bearer",
		SigningAlg:    "HS256",
		NonceHeader:   "x-nonce",
		ClockSkew:     2 * time.Second,
		AccountsScope: "accounts.read",
		PaymentsScope: "payments.write",
	}
}
