package figma

import (
	"errors"
	"fmt"
)

// ErrNotInitialized is returned by Search before Initialize has succeeded.
var ErrNotInitialized = errors.New("figma connector not initialized")

// AuthenticationError reports a login response without a usable session cookie.
// Wrong credentials, a changed login API and a CAPTCHA or lockout all look the same.
type AuthenticationError struct {
	StatusCode int
	CookieName string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("figma authentication failed: no %s cookie in login response (status %d)", e.CookieName, e.StatusCode)
}

// BackendRequestError represents a non-2xx response from a search endpoint.
type BackendRequestError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *BackendRequestError) Error() string {
	return fmt.Sprintf("figma API error: %s (status %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// ThumbnailResolutionError reports a thumbnail probe that did not answer with a redirect.
type ThumbnailResolutionError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *ThumbnailResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("thumbnail resolution failed for %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("thumbnail resolution failed for %s: expected status 302, got %d", e.URL, e.StatusCode)
}

func (e *ThumbnailResolutionError) Unwrap() error {
	return e.Err
}
