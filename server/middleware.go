package server

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/riyada/openbanking-sandbox/dpop"
	errs "github.com/riyada/openbanking-sandbox/errors"
	"github.com/riyada/openbanking-sandbox/generates"
	"github.com/riyada/openbanking-sandbox/store"
)

// Context keys set by the middleware chain.
const (
	ctxDPoPThumbprint = "dpop_thumbprint"
	ctxDPoPJTI        = "dpop_jti"
	ctxSubject        = "subject"
	ctxClientID       = "client_id"
	ctxScope          = "scope"
)

// NonceMiddleware enforces the single-use request nonce. The claim is one
// atomic set-if-absent; store failure rejects the request rather than
// admitting it.
func (s *Server) NonceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		nonce := c.GetHeader(s.Config.NonceHeader)
		if err := s.nonces.Claim(c.Request.Context(), nonce); err != nil {
			s.abortError(c, err)
			return
		}
		c.Next()
	}
}

// DPoPMiddleware verifies the possession proof against the externally
// observed URL and method, then attaches the caller's key thumbprint and
// proof id to the request context. There is no optional mode: a missing or
// malformed proof always rejects the request.
func (s *Server) DPoPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		proof := c.GetHeader(dpop.HeaderName)
		result, err := s.verifier.Verify(c.Request.Context(), proof, dpop.RequestURL(c.Request), c.Request.Method)
		if err != nil {
			s.logger.Warn("dpop verification failed", "path", c.Request.URL.Path, "error", err)
			s.abortError(c, mapDPoPError(err))
			return
		}
		c.Set(ctxDPoPThumbprint, result.Thumbprint)
		c.Set(ctxDPoPJTI, result.JTI)
		c.Next()
	}
}

// TokenMiddleware validates the bearer credential and closes the
// proof-of-possession loop: the token's cnf.jkt must equal the thumbprint
// freshly computed from this request's own proof. Unbound tokens are not
// accepted on protected resources.
func (s *Server) TokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if header == "" || len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			s.abortError(c, errs.ErrInvalidToken)
			return
		}

		claims := &generates.CIBAAccessClaims{}
		_, err := jwt.ParseWithClaims(parts[1], claims, s.keyfunc,
			jwt.WithValidMethods([]string{s.Config.SigningAlg}),
			jwt.WithIssuer(s.Config.Issuer),
		)
		if err != nil {
			s.logger.Warn("bearer token rejected", "error", err)
			s.abortError(c, errs.ErrInvalidToken)
			return
		}

		if claims.Cnf == nil || claims.Cnf.JKT == "" {
			s.abortError(c, errs.ErrInvalidToken)
			return
		}
		if claims.Cnf.JKT != c.GetString(ctxDPoPThumbprint) {
			s.logger.Warn("dpop binding mismatch", "subject", claims.Subject)
			s.abortError(c, errs.ErrBindingMismatch)
			return
		}

		c.Set(ctxSubject, claims.Subject)
		c.Set(ctxClientID, claims.ClientID)
		c.Set(ctxScope, claims.Scope)
		c.Next()
	}
}

// RequireScope rejects requests whose token does not grant scope.
func (s *Server) RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, granted := range strings.Fields(c.GetString(ctxScope)) {
			if granted == scope {
				c.Next()
				return
			}
		}
		s.abortError(c, errs.ErrInsufficientScope)
	}
}

func mapDPoPError(err error) error {
	switch {
	case errs.Is(err, errs.ErrDPoPReplay):
		return err
	case errors.Is(err, store.ErrUnavailable):
		return err
	case errors.Is(err, dpop.ErrMissingProof):
		return errs.ErrMissingDPoPProof
	default:
		return errs.ErrInvalidDPoPProof
	}
}

func (s *Server) abortError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrUnavailable) {
		s.logger.Error("store unavailable", "error", err)
		c.AbortWithStatusJSON(errs.StatusCodes[errs.ErrTemporarilyUnavailable], gin.H{
			"error": errs.ErrTemporarilyUnavailable.Error(),
		})
		return
	}
	c.AbortWithStatusJSON(errs.StatusCode(err), gin.H{"error": errs.Code(err)})
}
