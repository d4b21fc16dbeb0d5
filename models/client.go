package models

import "golang.org/x/crypto/bcrypt"

// Client is a registered relying party allowed to initiate decoupled
// authentication requests.
type Client struct {
	ID string `json:"id"`
	// Secret holds a bcrypt hash of the client secret. Empty means a public
	// client that authenticates by client_id alone.
	Secret string   `json:"secret,omitempty"`
	Scopes []string `json:"scopes,omitempty"`
}

// VerifySecret compares a plaintext secret against the stored bcrypt hash.
func (c *Client) VerifySecret(secret string) bool {
	if c.Secret == "" {
		return secret == ""
	}
	return bcrypt.CompareHashAndPassword([]byte(c.Secret), []byte(secret)) == nil
}

// AllowsScope reports whether every requested scope is registered for the
// client. A client with no registered scopes accepts any request.
func (c *Client) AllowsScope(requested []string) bool {
	if len(c.Scopes) == 0 {
		return true
	}
	allowed := make(map[string]struct{}, len(c.Scopes))
	for _, s := range c.Scopes {
		allowed[s] = struct{}{}
	}
	for _, s := range requested {
		if _, ok := allowed[s]; !ok {
			return false
		}
	}
	return true
}
