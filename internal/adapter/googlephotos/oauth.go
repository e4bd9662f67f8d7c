// internal/adapter/googlephotos/oauth.go

package googlephotos

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"discover/internal/adapter/httpclient"
	"discover/internal/cache"
	"discover/internal/config"
	"discover/internal/logger"
)

// Scope grants read-only access to the photos space of Drive
const Scope = "https://www.googleapis.com/auth/drive.photos.readonly"

const stateTTL = 10 * time.Minute

// Errors returned by the OAuth flow
var (
	ErrNotConfigured = errors.New("google oauth client is not configured")
	ErrInvalidState  = errors.New("unknown or expired oauth state")
)

// TokenStore holds the connected account's token for the life of the process
type TokenStore struct {
	mu    sync.RWMutex
	token *oauth2.Token
}

// NewTokenStore creates an empty token store
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Get returns the stored token, or nil when no account is connected
func (s *TokenStore) Get() *oauth2.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Set replaces the stored token
func (s *TokenStore) Set(token *oauth2.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Auth drives the authorization code flow
type Auth struct {
	cfg         config.GoogleConfig
	redirectURL string
	endpoint    oauth2.Endpoint
	store       *TokenStore
	states      *cache.TTL[bool]
	timeout     time.Duration
	logger      *zap.Logger
}

// NewAuth creates the OAuth flow. publicURL is the externally reachable
// base URL the callback path is appended to.
func NewAuth(cfg config.GoogleConfig, publicURL string, store *TokenStore, log *zap.Logger) *Auth {
	return &Auth{
		cfg:         cfg,
		redirectURL: strings.TrimRight(publicURL, "/") + cfg.RedirectPath,
		endpoint:    endpoints.Google,
		store:       store,
		states:      cache.New[bool]("oauth_state", stateTTL),
		timeout:     cfg.RequestTimeout,
		logger:      logger.OrNop(log).Named("google_oauth"),
	}
}

// oauthConfig reads the client credentials at call time
func (a *Auth) oauthConfig() (*oauth2.Config, error) {
	clientID := a.cfg.ClientID.Value()
	if clientID == "" {
		return nil, ErrNotConfigured
	}

	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: a.cfg.ClientSecret.Value(),
		Endpoint:     a.endpoint,
		RedirectURL:  a.redirectURL,
		Scopes:       []string{Scope},
	}, nil
}

// Configured reports whether a client id is set
func (a *Auth) Configured() bool {
	return a.cfg.ClientID.Value() != ""
}

// Connected reports whether an account token is stored
func (a *Auth) Connected() bool {
	return a.store.Get() != nil
}

// AuthCodeURL returns the consent page URL with a fresh state value
func (a *Auth) AuthCodeURL() (string, error) {
	conf, err := a.oauthConfig()
	if err != nil {
		return "", err
	}

	state := uuid.NewString()
	a.states.Prune()
	a.states.Set(state, true)

	return conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// Exchange trades an authorization code for a token and stores it
func (a *Auth) Exchange(ctx context.Context, state, code string) error {
	conf, err := a.oauthConfig()
	if err != nil {
		return err
	}

	// A state is consumed by its first callback
	if _, ok := a.states.Take(state); !ok {
		return ErrInvalidState
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpclient.New(a.timeout))
	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("token exchange failed: %w", err)
	}

	a.store.Set(token)
	a.logger.Info("Google account connected", zap.Bool("refreshable", token.RefreshToken != ""))
	return nil
}

// TokenSource returns a refreshing token source for the stored token
func (a *Auth) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	conf, err := a.oauthConfig()
	if err != nil {
		return nil, err
	}

	token := a.store.Get()
	if token == nil {
		return nil, errors.New("no google account connected")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpclient.New(a.timeout))
	return &storingSource{
		src:   conf.TokenSource(ctx, token),
		store: a.store,
		last:  token.AccessToken,
	}, nil
}

// storingSource writes refreshed tokens back to the store
type storingSource struct {
	src   oauth2.TokenSource
	store *TokenStore
	mu    sync.Mutex
	last  string
}

func (s *storingSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if token.AccessToken != s.last {
		s.store.Set(token)
		s.last = token.AccessToken
	}
	return token, nil
}
