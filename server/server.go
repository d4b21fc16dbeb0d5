// Package server exposes the decoupled authentication engine over HTTP:
// the backchannel request and token endpoints, the mock decision notifier
// endpoints, and sample protected resources closing the proof-of-possession
// binding loop.
package server

import (
	"log/slog"

	"github.com/golang-jwt/jwt/v5"

	"github.com/riyada/openbanking-sandbox/ciba"
	"github.com/riyada/openbanking-sandbox/dpop"
	"github.com/riyada/openbanking-sandbox/store"
)

// Server wires the protocol engine to the HTTP surface.
type Server struct {
	Config   *Config
	service  *ciba.Service
	nonces   *store.NonceStore
	verifier *dpop.Verifier
	clients  *store.ClientStore
	keyfunc  jwt.Keyfunc
	logger   *slog.Logger
}

// NewServer creates the HTTP layer. keyfunc returns the verification key
// for issued bearer tokens and must match the token generator's method.
func NewServer(cfg *Config, service *ciba.Service, nonces *store.NonceStore, verifier *dpop.Verifier, clients *store.ClientStore, keyfunc jwt.Keyfunc, logger *slog.Logger) *Server {
	if cfg == nil {
		cfg = NewConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	verifier.SetClockSkew(cfg.ClockSkew)
	return &Server{
		Config:   cfg,
		service:  service,
		nonces:   nonces,
		verifier: verifier,
		clients:  clients,
		keyfunc:  keyfunc,
		logger:   logger,
	}
}
