// Package errors defines the protocol error vocabulary for the sandbox
// authentication engine. Each sentinel's message is the wire error code
// returned in JSON bodies; Descriptions and StatusCodes map the vocabulary
// to human-readable text and HTTP statuses.
package errors

import "errors"

// New, Is and As mirror the standard library so callers need a single
// errors import.
var (
	New = errors.New
	Is  = errors.Is
	As  = errors.As
)

// Client input errors.
var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrNonceMissing   = errors.New("missing_nonce")
	ErrInvalidClient  = errors.New("invalid_client")
	ErrInvalidScope   = errors.New("invalid_scope")
)

// Replay errors. A reused nonce and a reused possession proof are rejected
// unconditionally within their TTL windows.
var (
	ErrNonceReused = errors.New("nonce_already_used")
	ErrDPoPReplay  = errors.New("dpop_replay_detected")
)

// Proof-of-possession errors. Protected endpoints have no optional proof
// mode; these always fail closed.
var (
	ErrMissingDPoPProof  = errors.New("missing_dpop_proof")
	ErrInvalidDPoPProof  = errors.New("invalid_dpop_proof")
	ErrBindingMismatch   = errors.New("dpop_binding_mismatch")
	ErrInvalidToken      = errors.New("invalid_token")
	ErrInsufficientScope = errors.New("insufficient_scope")
)

// Session state machine outcomes. Unknown, deleted and TTL-lapsed sessions
// are reported uniformly as expired on the poll path so callers cannot probe
// whether an identifier ever existed; the decision path alone distinguishes
// an unknown identifier.
var (
	ErrAuthorizationPending = errors.New("authorization_pending")
	ErrAccessDenied         = errors.New("access_denied")
	ErrExpiredToken         = errors.New("expired_token")
	ErrUnknownSession       = errors.New("unknown_auth_req_id")
	ErrSessionResolved      = errors.New("already_resolved")
)

// Infrastructure errors. Store unavailability is surfaced as transient,
// never interpreted as an allow or a deny.
var (
	ErrServerError            = errors.New("server_error")
	ErrTemporarilyUnavailable = errors.New("temporarily_unavailable")
)

// Descriptions is the error code to human-readable text mapping.
var Descriptions = map[error]string{
	ErrInvalidRequest:         "The request is missing a required parameter or is otherwise malformed",
	ErrNonceMissing:           "Missing nonce header (x-nonce)",
	ErrInvalidClient:          "Client authentication failed",
	ErrInvalidScope:           "The requested scope is not registered for this client",
	ErrNonceReused:            "Nonce already used",
	ErrDPoPReplay:             "DPoP proof replay detected",
	ErrMissingDPoPProof:       "Missing DPoP proof",
	ErrInvalidDPoPProof:       "Invalid DPoP proof",
	ErrBindingMismatch:        "DPoP binding mismatch",
	ErrInvalidToken:           "The access token is invalid or expired",
	ErrInsufficientScope:      "The token does not grant the required scope",
	ErrAuthorizationPending:   "The authentication request is still pending end-user approval",
	ErrAccessDenied:           "The end-user denied the authentication request",
	ErrExpiredToken:           "The auth_req_id is unknown, consumed or expired",
	ErrUnknownSession:         "Unknown auth_req_id",
	ErrSessionResolved:        "The authentication request was already resolved",
	ErrServerError:            "The server encountered an unexpected condition",
	ErrTemporarilyUnavailable: "The server is temporarily unable to handle the request",
}

// StatusCodes is the error code to HTTP status mapping.
var StatusCodes = map[error]int{
	ErrInvalidRequest:         400,
	ErrNonceMissing:           400,
	ErrInvalidClient:          401,
	ErrInvalidScope:           400,
	ErrNonceReused:            409,
	ErrDPoPReplay:             401,
	ErrMissingDPoPProof:       401,
	ErrInvalidDPoPProof:       401,
	ErrBindingMismatch:        401,
	ErrInvalidToken:           401,
	ErrInsufficientScope:      403,
	ErrAuthorizationPending:   400,
	ErrAccessDenied:           400,
	ErrExpiredToken:           400,
	ErrUnknownSession:         404,
	ErrSessionResolved:        409,
	ErrServerError:            500,
	ErrTemporarilyUnavailable: 503,
}

// Code returns the wire error code for err, falling back to server_error
// for unrecognized errors.
func Code(err error) string {
	for sentinel := range StatusCodes {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return ErrServerError.Error()
}

// StatusCode returns the HTTP status for err, defaulting to 500.
func StatusCode(err error) int {
	for sentinel, code := range StatusCodes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return 500
}

// Description returns the human-readable text for err, or an empty string.
func Description(err error) string {
	for sentinel, desc := range Descriptions {
		if errors.Is(err, sentinel) {
			return desc
		}
	}
	return ""
}
