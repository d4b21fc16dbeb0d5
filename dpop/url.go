package dpop

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// RequestURL reconstructs the externally observed URL of r. Reverse-proxy
// forwarding headers take precedence over the connection-level values so
// the proof's htu can match what the caller actually dialed.
func RequestURL(r *http.Request) string {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		if r.TLS != nil {
			scheme = "https"
		} else {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return scheme + "://" + host + r.URL.Path
}

// NormalizeURL canonicalizes a URL for htu comparison: lowercase scheme and
// host, default ports stripped, query and fragment dropped.
func NormalizeURL(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: empty url", ErrInvalidProof)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("%w: url must have scheme and host", ErrInvalidProof)
	}

	scheme := strings.ToLower(parsed.Scheme)
	host := strings.ToLower(parsed.Hostname())
	if port := parsed.Port(); port != "" {
		isDefault := (scheme == "https" && port == "443") || (scheme == "http" && port == "80")
		if !isDefault {
			host = host + ":" + port
		}
	}

	path := parsed.Path
	if path == "" {
		path = "/"
	}
	return scheme + "://" + host + path, nil
}
