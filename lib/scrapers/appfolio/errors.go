package appfolio

import (
	"fmt"
	"net/http"
)

// AuthError reports a 4xx response. The site answers 4xx both for true
// credential failures and for stale-session redirects, so every 4xx is
// presumed session/auth-related.
type AuthError struct {
	StatusCode int
	Reason     string
	// NoCredentials is set when the client was never given a session
	// cookie, as opposed to the session being rejected.
	NoCredentials bool
}

func (e *AuthError) Error() string {
	if e.NoCredentials {
		return "appfolio: no session cookie configured (credentials might not exist or be valid)"
	}
	return fmt.Sprintf("appfolio: %d - %s", e.StatusCode, e.Reason)
}

func errNoCredentials() *AuthError {
	return &AuthError{StatusCode: http.StatusBadRequest, NoCredentials: true}
}

// APIError reports a non-success, non-4xx response or a malformed payload.
// Response headers ride along for diagnostics.
type APIError struct {
	StatusCode int
	Headers    http.Header
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("appfolio: %s", e.Message)
	}
	if e.Message != "" {
		return fmt.Sprintf("appfolio: %d - %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("appfolio: %d - %v", e.StatusCode, e.Headers)
}

// RedirectError reports a broken redirect chain: a redirect status with no
// Location header, or more hops than the client allows.
type RedirectError struct {
	StatusCode int
	Message    string
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("appfolio: %s", e.Message)
}
