package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	errs "github.com/riyada/openbanking-sandbox/errors"
	"github.com/riyada/openbanking-sandbox/models"
)

// decisionBody is the identity-provider simulator's callback payload.
type decisionBody struct {
	AuthReqID string `json:"auth_req_id" binding:"required"`
	Subject   string `json:"subject"`
}

// HandleApprove records an out-of-band approval. The decision arrives on
// its own request path and mutates the same session the relying party is
// polling; an unknown identifier is 404, a lapsed one 400.
func (s *Server) HandleApprove(c *gin.Context) {
	var body decisionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.abortError(c, errs.ErrInvalidRequest)
		return
	}
	subject := body.Subject
	if subject == "" {
		subject = "demo-user"
	}
	if err := s.service.Approve(c.Request.Context(), body.AuthReqID, subject); err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      string(models.AuthApproved),
		"auth_req_id": body.AuthReqID,
	})
}

// HandleDeny records an out-of-band denial.
func (s *Server) HandleDeny(c *gin.Context) {
	var body decisionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.abortError(c, errs.ErrInvalidRequest)
		return
	}
	if err := s.service.Deny(c.Request.Context(), body.AuthReqID); err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      string(models.AuthDenied),
		"auth_req_id": body.AuthReqID,
	})
}
