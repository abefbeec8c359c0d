package figma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/figsearch/internal/httpclient"
	"github.com/ternarybob/figsearch/internal/models"
)

const (
	// DefaultBaseURL is the origin of the Figma web API.
	DefaultBaseURL = "https://www.figma.com"

	// DefaultSessionCookie is the cookie carrying the session token.
	DefaultSessionCookie = "figma.authn"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	loginPath = "/api/session/login"

	// maxErrorBodySize caps how much of an error response is kept in BackendRequestError.
	maxErrorBodySize = 4096
)

// Authenticator performs the login protocol and produces Sessions.
type Authenticator struct {
	baseURL       string
	cookieName    string
	cookiePattern *regexp.Regexp
	httpClient    *http.Client
	probeClient   *http.Client
	logger        arbor.ILogger
}

// AuthOption configures the Authenticator.
type AuthOption func(*Authenticator)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) AuthOption {
	return func(a *Authenticator) {
		a.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithSessionCookie sets the name of the session cookie.
func WithSessionCookie(name string) AuthOption {
	return func(a *Authenticator) {
		a.cookieName = name
	}
}

// WithTimeout sets the timeout of both the API and the thumbnail probe clients.
func WithTimeout(timeout time.Duration) AuthOption {
	return func(a *Authenticator) {
		a.httpClient = httpclient.NewDefaultHTTPClient(timeout)
		a.probeClient = httpclient.NewNoRedirectHTTPClient(timeout)
	}
}

// WithAuthLogger sets a logger.
func WithAuthLogger(logger arbor.ILogger) AuthOption {
	return func(a *Authenticator) {
		a.logger = logger
	}
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(opts ...AuthOption) *Authenticator {
	a := &Authenticator{
		baseURL:     DefaultBaseURL,
		cookieName:  DefaultSessionCookie,
		httpClient:  httpclient.NewDefaultHTTPClient(DefaultTimeout),
		probeClient: httpclient.NewNoRedirectHTTPClient(DefaultTimeout),
	}

	for _, opt := range opts {
		opt(a)
	}
	a.cookiePattern = sessionCookiePattern(a.cookieName)

	return a
}

// Login posts the credentials and returns a Session bound to the issued token.
func (a *Authenticator) Login(ctx context.Context, creds models.FigmaCredentials) (*Session, error) {
	body, err := json.Marshal(loginRequest{
		Email:    creds.User,
		Password: creds.Password,
		Username: creds.User,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+loginPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if a.logger != nil {
		a.logger.Debug().Str("url", a.baseURL+loginPath).Msg("Figma login request")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute login request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	token, ok := extractSessionToken(resp.Header.Values("Set-Cookie"), a.cookiePattern)
	if !ok {
		if a.logger != nil {
			a.logger.Warn().Int("status", resp.StatusCode).Msg("Figma login returned no session cookie")
		}
		return nil, &AuthenticationError{StatusCode: resp.StatusCode, CookieName: a.cookieName}
	}

	if a.logger != nil {
		a.logger.Info().Str("user", creds.User).Msg("Figma session established")
	}

	return &Session{
		baseURL:     a.baseURL,
		cookieName:  a.cookieName,
		token:       token,
		httpClient:  a.httpClient,
		probeClient: a.probeClient,
		logger:      a.logger,
	}, nil
}

// sessionCookiePattern matches a name=value pair; the value runs to the next ';'
// or the end of the string.
func sessionCookiePattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|;)\s*` + regexp.QuoteMeta(name) + `=([^;]*)`)
}

// extractSessionToken returns the first non-empty value matched by pattern in the
// Set-Cookie strings.
func extractSessionToken(cookies []string, pattern *regexp.Regexp) (string, bool) {
	for _, c := range cookies {
		m := pattern.FindStringSubmatch(c)
		if m == nil {
			continue
		}
		if token := strings.TrimSpace(m[1]); token != "" {
			return token, true
		}
	}
	return "", false
}

// Session is an authenticated request-issuing handle. It is immutable and
// safe for concurrent use.
type Session struct {
	baseURL     string
	cookieName  string
	token       string
	httpClient  *http.Client
	probeClient *http.Client
	logger      arbor.ILogger
}

// Token returns the session token.
func (s *Session) Token() string {
	return s.token
}

// BaseURL returns the origin the session is bound to.
func (s *Session) BaseURL() string {
	return s.baseURL
}

// newRequest builds a request for ref. Relative references are resolved against the
// session origin. The session cookie is only attached when the target is that origin.
func (s *Session) newRequest(ctx context.Context, method, ref string) (*http.Request, error) {
	target := ref
	if !isAbsolute(ref) {
		target = s.baseURL + "/" + strings.TrimLeft(ref, "/")
	}

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if s.sameOrigin(req.URL) {
		req.Header.Set("Cookie", s.cookieName+"="+s.token)
	}
	return req, nil
}

func (s *Session) sameOrigin(u *url.URL) bool {
	base, err := url.Parse(s.baseURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(base.Scheme, u.Scheme) && strings.EqualFold(base.Host, u.Host)
}

// Get performs an authenticated GET and decodes the JSON response into result.
func (s *Session) Get(ctx context.Context, path string, params url.Values, result interface{}) error {
	ref := path
	if len(params) > 0 {
		ref = fmt.Sprintf("%s?%s", path, params.Encode())
	}

	req, err := s.newRequest(ctx, http.MethodGet, ref)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	if s.logger != nil {
		s.logger.Debug().Str("url", s.baseURL+path).Msg("Figma API request")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return &BackendRequestError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
