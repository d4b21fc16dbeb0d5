package server

import "github.com/gin-gonic/gin"

// NewGinEngine builds the Gin router for the sandbox engine.
//
// /auth/request demands both a single-use nonce and a possession proof;
// /auth/token demands a fresh proof so issued tokens can be bound to the
// caller's key. The /mock endpoints are the decision notifier's inbound
// path. Every resource route re-verifies possession and cross-checks the
// token's confirmation claim.
func NewGinEngine(s *Server) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery())

	auth := r.Group("/auth")
	auth.POST("/request", s.NonceMiddleware(), s.DPoPMiddleware(), s.HandleAuthRequest)
	auth.POST("/token", s.DPoPMiddleware(), s.HandleTokenRequest)

	mock := r.Group("/mock")
	mock.POST("/approve", s.HandleApprove)
	mock.POST("/deny", s.HandleDeny)
	// Nafath-flavored aliases kept for existing sandbox callers.
	mock.POST("/nafath/approve", s.HandleApprove)
	mock.POST("/nafath/deny", s.HandleDeny)

	api := r.Group("/", s.DPoPMiddleware(), s.TokenMiddleware())
	api.GET("/accounts", s.RequireScope(s.Config.AccountsScope), s.HandleListAccounts)
	api.POST("/payments", s.RequireScope(s.Config.PaymentsScope), s.HandleInitiatePayment)

	return r
}
