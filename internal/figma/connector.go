package figma

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/figsearch/internal/common"
	"github.com/ternarybob/figsearch/internal/interfaces"
	"github.com/ternarybob/figsearch/internal/models"
	"github.com/ternarybob/figsearch/internal/throttle"
)

// Identifier is the stable id of the Figma connector.
const Identifier = "figma"

// Connector implements interfaces.FigmaConnector
type Connector struct {
	config   common.FigmaConfig
	logger   arbor.ILogger
	validate *validator.Validate

	mu    sync.RWMutex
	state *connectorState
}

// connectorState is fixed at Initialize and read by every search.
type connectorState struct {
	creds    models.FigmaCredentials
	sessions *throttle.Accessor[*Session]
}

// NewConnector creates an uninitialized Figma connector
func NewConnector(config common.FigmaConfig, logger arbor.ILogger) *Connector {
	return &Connector{
		config:   config,
		logger:   logger,
		validate: validator.New(),
	}
}

// Identifier returns the connector id
func (c *Connector) Identifier() string {
	return Identifier
}

// Initialize binds the connector to an organization and credentials. Repeating
// the call with the same options keeps the current session; different options
// replace it. No login happens until the first search.
func (c *Connector) Initialize(ctx context.Context, creds models.FigmaCredentials) error {
	if err := c.validate.Struct(creds); err != nil {
		return fmt.Errorf("invalid figma options: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != nil && c.state.creds == creds {
		c.logger.Debug().Int64("organization", creds.Organization).Msg("Figma connector already initialized")
		return nil
	}

	auth := NewAuthenticator(
		WithBaseURL(c.baseURL()),
		WithSessionCookie(c.sessionCookie()),
		WithTimeout(parseDuration(c.config.RequestTimeout, DefaultTimeout)),
		WithAuthLogger(c.logger),
	)

	window := parseDuration(c.config.LoginWindow, 24*time.Hour)
	sessions := throttle.New(
		func(ctx context.Context) (*Session, error) {
			return auth.Login(ctx, creds)
		},
		c.config.LoginQuota,
		window,
		throttle.WithMaxAge(parseDuration(c.config.SessionMaxAge, window)),
		throttle.WithLogger(c.logger),
		throttle.WithName("figma-session"),
	)

	c.state = &connectorState{
		creds:    creds,
		sessions: sessions,
	}

	c.logger.Info().
		Int64("organization", creds.Organization).
		Str("user", creds.User).
		Str("base_url", c.baseURL()).
		Msg("Figma connector initialized")

	return nil
}

// Search runs the query against every resource kind and returns the combined results
func (c *Connector) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	c.mu.RLock()
	state := c.state
	c.mu.RUnlock()

	if state == nil {
		return nil, ErrNotInitialized
	}

	searchID := uuid.New().String()
	start := time.Now()

	session, err := state.sessions.Get(ctx)
	if err != nil {
		c.logger.Error().Err(err).Str("search_id", searchID).Msg("Failed to obtain Figma session")
		return nil, err
	}

	results, err := Search(ctx, session, state.creds.Organization, query)
	if err != nil {
		c.logger.Error().Err(err).Str("search_id", searchID).Str("query", query).Msg("Figma search failed")
		return nil, err
	}

	c.logger.Debug().
		Str("search_id", searchID).
		Str("query", query).
		Int("results", len(results)).
		Dur("duration", time.Since(start)).
		Msg("Figma search completed")

	return results, nil
}

// InvalidateSession forces the next search to log in again
func (c *Connector) InvalidateSession() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != nil {
		c.state.sessions.Invalidate()
	}
}

// SessionStats reports login usage, zero before Initialize
func (c *Connector) SessionStats() throttle.Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state == nil {
		return throttle.Stats{}
	}
	return c.state.sessions.Stats()
}

func (c *Connector) baseURL() string {
	if c.config.BaseURL == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(c.config.BaseURL, "/")
}

func (c *Connector) sessionCookie() string {
	if c.config.SessionCookie == "" {
		return DefaultSessionCookie
	}
	return c.config.SessionCookie
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Ensure interface compliance
var _ interfaces.FigmaConnector = (*Connector)(nil)
