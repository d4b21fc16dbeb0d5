package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	errs "github.com/riyada/openbanking-sandbox/errors"
	"github.com/riyada/openbanking-sandbox/models"
)

// AuthRequestBody is the backchannel authentication request. scope accepts
// either a JSON array or a space-delimited string.
type AuthRequestBody struct {
	ClientID  string `json:"client_id" binding:"required"`
	LoginHint string `json:"login_hint" binding:"required"`
	Scope     any    `json:"scope"`
}

type tokenRequestBody struct {
	AuthReqID string `json:"auth_req_id" binding:"required"`
}

func normalizeScope(v any) []string {
	switch scope := v.(type) {
	case string:
		return strings.Fields(scope)
	case []any:
		out := make([]string, 0, len(scope))
		for _, item := range scope {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// HandleAuthRequest initiates a decoupled authentication request and
// returns the polling contract with 202 Accepted. The nonce and possession
// proof were already enforced by the middleware chain.
func (s *Server) HandleAuthRequest(c *gin.Context) {
	var body AuthRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.abortError(c, errs.ErrInvalidRequest)
		return
	}

	client, err := s.clients.GetByID(c.Request.Context(), body.ClientID)
	if err != nil {
		s.abortError(c, err)
		return
	}
	if id, secret, ok := c.Request.BasicAuth(); ok {
		if id != body.ClientID || !client.VerifySecret(secret) {
			s.abortError(c, errs.ErrInvalidClient)
			return
		}
	}

	scope := normalizeScope(body.Scope)
	if !client.AllowsScope(scope) {
		s.abortError(c, errs.ErrInvalidScope)
		return
	}

	result, err := s.service.Initiate(c.Request.Context(), body.ClientID, body.LoginHint, scope)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"auth_req_id": result.AuthReqID,
		"expires_in":  result.ExpiresIn,
		"interval":    result.Interval,
	})
}

// HandleTokenRequest is the polling token endpoint. A PENDING session
// returns 202 so the relying party keeps polling; DENIED and EXPIRED return
// 400 with the terminal status. On APPROVED, the session is consumed and
// the credentials are bound to the thumbprint of this request's own proof.
func (s *Server) HandleTokenRequest(c *gin.Context) {
	var body tokenRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.abortError(c, errs.ErrInvalidRequest)
		return
	}

	result, err := s.service.Redeem(c.Request.Context(), body.AuthReqID, c.GetString(ctxDPoPThumbprint))
	if err != nil {
		switch {
		case errs.Is(err, errs.ErrAuthorizationPending):
			c.JSON(http.StatusAccepted, gin.H{"status": string(models.AuthPending)})
		case errs.Is(err, errs.ErrAccessDenied):
			c.JSON(http.StatusBadRequest, gin.H{"status": string(models.AuthDenied)})
		case errs.Is(err, errs.ErrExpiredToken):
			c.JSON(http.StatusBadRequest, gin.H{"status": string(models.AuthExpired)})
		default:
			s.abortError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": result.AccessToken,
		"id_token":     result.IDToken,
		"token_type":   result.TokenType,
		"expires_in":   result.ExpiresIn,
		"scope":        strings.Join(result.Scope, " "),
	})
}
