package figma

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/figsearch/internal/common"
)

const testToken = "tok123"

// fakeBackend is an in-process stand-in for the Figma web API.
// Result fixtures may use {{base}} for the server origin.
type fakeBackend struct {
	srv *httptest.Server

	logins atomic.Int32
	probes atomic.Int32

	mu          sync.Mutex
	loginCookie []string
	lastLogin   loginRequest
	results     map[string]string
	failKind    map[string]int
	thumbStatus map[string]int
	queries     map[string]url.Values
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()

	b := &fakeBackend{
		loginCookie: []string{"figma.authn=" + testToken + "; Path=/; HttpOnly; Secure"},
		results: map[string]string{
			"fig_files": `[]`,
			"folders":   `[]`,
			"teams":     `[]`,
		},
		failKind:    map[string]int{},
		thumbStatus: map[string]int{},
		queries:     map[string]url.Values{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/session/login", b.handleLogin)
	mux.HandleFunc("GET /api/search/{kind}", b.handleSearch)
	mux.HandleFunc("GET /thumb/{name}", b.handleThumb)

	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBackend) URL() string {
	return b.srv.URL
}

func (b *fakeBackend) setResults(kind, raw string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.results[kind] = raw
}

func (b *fakeBackend) failSearch(kind string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failKind[kind] = status
}

func (b *fakeBackend) setThumbStatus(name string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.thumbStatus[name] = status
}

func (b *fakeBackend) setLoginCookies(cookies ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loginCookie = cookies
}

func (b *fakeBackend) query(kind string) url.Values {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queries[kind]
}

func (b *fakeBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	b.logins.Add(1)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	b.lastLogin = req
	cookies := b.loginCookie
	b.mu.Unlock()

	if len(cookies) == 0 {
		http.Error(w, `{"error":true,"status":401}`, http.StatusUnauthorized)
		return
	}
	for _, c := range cookies {
		w.Header().Add("Set-Cookie", c)
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"error":false,"status":200}`))
}

func (b *fakeBackend) authorized(r *http.Request) bool {
	c, err := r.Cookie(DefaultSessionCookie)
	return err == nil && c.Value == testToken
}

func (b *fakeBackend) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !b.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	kind := r.PathValue("kind")

	b.mu.Lock()
	b.queries[kind] = r.URL.Query()
	status, fail := b.failKind[kind]
	raw, ok := b.results[kind]
	b.mu.Unlock()

	if fail {
		http.Error(w, "search unavailable", status)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}

	raw = strings.ReplaceAll(raw, "{{base}}", b.srv.URL)
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"error":false,"status":200,"meta":{"results":%s}}`, raw)
}

func (b *fakeBackend) handleThumb(w http.ResponseWriter, r *http.Request) {
	b.probes.Add(1)
	if !b.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	name := r.PathValue("name")

	b.mu.Lock()
	status, ok := b.thumbStatus[name]
	b.mu.Unlock()

	if !ok || status == http.StatusFound {
		http.Redirect(w, r, "https://img.example/"+name+".png", http.StatusFound)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte("PNG"))
}

func testSession(b *fakeBackend) *Session {
	return &Session{
		baseURL:     b.URL(),
		cookieName:  DefaultSessionCookie,
		token:       testToken,
		httpClient:  b.srv.Client(),
		probeClient: NewAuthenticator().probeClient,
		logger:      arbor.NewLogger(),
	}
}

func testConfig(b *fakeBackend) common.FigmaConfig {
	return common.FigmaConfig{
		BaseURL:        b.URL(),
		SessionCookie:  DefaultSessionCookie,
		RequestTimeout: "5s",
		LoginQuota:     3,
		LoginWindow:    "30ms",
		SessionMaxAge:  "1h",
	}
}
