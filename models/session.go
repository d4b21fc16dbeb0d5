package models

import "time"

// AuthStatus is the lifecycle state of a decoupled authentication session.
type AuthStatus string

const (
	AuthPending  AuthStatus = "PENDING"
	AuthApproved AuthStatus = "APPROVED"
	AuthDenied   AuthStatus = "DENIED"
	// AuthExpired is inferred from TTL lapse. It is reported to callers but
	// never written to the store.
	AuthExpired AuthStatus = "EXPIRED"
)

// Terminal reports whether the status ends the PENDING phase.
func (s AuthStatus) Terminal() bool {
	return s == AuthApproved || s == AuthDenied
}

// AuthSession represents one decoupled (CIBA-style) authentication attempt
// stored in the ephemeral keyed store. It is created PENDING when a relying
// party initiates authentication, moved to a terminal status by the decision
// notifier, and deleted on the first successful token redemption.
type AuthSession struct {
	AuthReqID string     `json:"auth_req_id"`
	ClientID  string     `json:"client_id"`
	LoginHint string     `json:"login_hint"`
	Scope     []string   `json:"scope"`
	Status    AuthStatus `json:"status"`
	Subject   string     `json:"subject,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// ExpiredAt reports whether the session's absolute expiry has passed at now.
// The store TTL can lag wall-clock expiry by a brief window, so every read
// re-checks the record's own expiry before honoring a transition or issuing
// tokens.
func (s *AuthSession) ExpiredAt(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// SubjectOrHint returns the authenticated subject recorded at approval,
// falling back to the login hint supplied at initiation.
func (s *AuthSession) SubjectOrHint() string {
	if s.Subject != "" {
		return s.Subject
	}
	return s.LoginHint
}
