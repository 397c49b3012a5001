package automower

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/muurk/mowerctl/internal/logging"
)

// DefaultRenewalMargin is subtracted from the token lifetime so renewal
// happens before the upstream token lapses.
const DefaultRenewalMargin = 600 * time.Second

// Token is an immutable access credential. A new Token is issued on every
// renewal; fields are never updated in place.
type Token struct {
	accessToken     string
	tokenType       string
	provider        string
	nominalExpiry   time.Time
	effectiveExpiry time.Time
}

// AccessToken returns the opaque credential string
func (t Token) AccessToken() string { return t.accessToken }

// Type returns the token type (e.g. "Bearer")
func (t Token) Type() string { return t.tokenType }

// Provider returns the issuing provider sent as Authorization-Provider
func (t Token) Provider() string { return t.provider }

// Expiry returns the effective (margin-reduced) expiry used for renewal decisions
func (t Token) Expiry() time.Time { return t.effectiveExpiry }

// NominalExpiry returns the expiry stated by the authentication endpoint
func (t Token) NominalExpiry() time.Time { return t.nominalExpiry }

// ValidAt reports whether the token may still be used at instant now
func (t Token) ValidAt(now time.Time) bool {
	return t.accessToken != "" && now.Before(t.effectiveExpiry)
}

func (t Token) authorization() string {
	return t.tokenType + " " + t.accessToken
}

// tokenResponse is the body returned by the client-credentials exchange
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Provider    string `json:"provider"`
	Scope       string `json:"scope,omitempty"`
}

// executor performs a single logical request under the shared retry policy
type executor interface {
	Execute(req *Request) (json.RawMessage, error)
}

// TokenManager guarantees that outbound requests carry a currently valid
// credential, renewing proactively once the effective expiry is reached.
type TokenManager struct {
	clientID     string
	clientSecret string
	tokenURL     string
	margin       time.Duration

	exec   executor
	now    func() time.Time
	logger *zap.Logger

	mu            sync.Mutex
	token         *Token
	authenticated bool
}

// Compile-time interface check.
var _ oauth2.TokenSource = (*TokenManager)(nil)

// NewTokenManager creates a token manager for the given application credentials.
// No request is made until a token is first needed.
func NewTokenManager(clientID, clientSecret, tokenURL string, exec executor) *TokenManager {
	return &TokenManager{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     tokenURL,
		margin:       DefaultRenewalMargin,
		exec:         exec,
		now:          time.Now,
		logger:       zap.NewNop(),
	}
}

// SetRenewalMargin changes the safety margin applied to new tokens
func (m *TokenManager) SetRenewalMargin(margin time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.margin = margin
}

// SetLogger sets the logging sink. A nil logger disables logging.
func (m *TokenManager) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m.logger = logger
}

// EnsureValidToken returns the held token while it is before its effective
// expiry, and otherwise performs a full client-credentials exchange.
//
// A failed renewal of an expired token leaves the manager unauthenticated.
func (m *TokenManager) EnsureValidToken() (Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.token != nil && m.token.ValidAt(now) {
		m.logger.Debug("Using existing access token",
			zap.Time("expiry", m.token.effectiveExpiry),
			zap.String("token", logging.Redact(m.token.accessToken)),
		)
		m.authenticated = true
		return *m.token, nil
	}

	m.logger.Info("Requesting new access token")
	tok, err := m.acquire()
	if err != nil {
		m.token = nil
		m.authenticated = false
		return Token{}, err
	}
	m.token = tok
	m.authenticated = true
	return *tok, nil
}

// Refresh forces a new exchange regardless of the held token's expiry.
// If the exchange fails while the held token is still valid, that token is kept.
func (m *TokenManager) Refresh() (Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tok, err := m.acquire()
	if err != nil {
		if m.token == nil || !m.token.ValidAt(m.now()) {
			m.token = nil
			m.authenticated = false
		}
		return Token{}, err
	}
	m.token = tok
	m.authenticated = true
	return *tok, nil
}

// Current returns the held token without renewing it
func (m *TokenManager) Current() (Token, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == nil {
		return Token{}, false
	}
	return *m.token, true
}

// Authenticated reports whether the last acquisition succeeded and a token is held
func (m *TokenManager) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authenticated && m.token != nil
}

// Token implements oauth2.TokenSource. The returned Expiry is the effective
// expiry so oauth2 consumers renew at the same point this manager does.
func (m *TokenManager) Token() (*oauth2.Token, error) {
	tok, err := m.EnsureValidToken()
	if err != nil {
		return nil, err
	}
	ot := &oauth2.Token{
		AccessToken: tok.accessToken,
		TokenType:   tok.tokenType,
		Expiry:      tok.effectiveExpiry,
	}
	return ot.WithExtra(map[string]interface{}{"provider": tok.provider}), nil
}

// acquire performs the exchange. Caller must hold m.mu.
func (m *TokenManager) acquire() (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", m.clientID)
	form.Set("client_secret", m.clientSecret)

	body, err := m.exec.Execute(&Request{
		Method: http.MethodPost,
		URL:    m.tokenURL,
		Form:   form,
	})
	if err != nil {
		return nil, m.authError(err, "")
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, m.authError(err, "malformed token response")
	}
	if resp.AccessToken == "" || resp.ExpiresIn <= 0 {
		return nil, m.authError(nil, "token response is missing access_token or expires_in")
	}

	issuedAt := m.now()
	lifetime := time.Duration(resp.ExpiresIn) * time.Second
	margin := m.margin
	if margin >= lifetime {
		// Never issue a token that is already due for renewal.
		margin = lifetime / 2
	}

	tok := &Token{
		accessToken:     resp.AccessToken,
		tokenType:       resp.TokenType,
		provider:        resp.Provider,
		nominalExpiry:   issuedAt.Add(lifetime),
		effectiveExpiry: issuedAt.Add(lifetime - margin),
	}

	m.logger.Info("New access token issued",
		zap.Time("expiry", tok.nominalExpiry),
		zap.Time("renew_after", tok.effectiveExpiry),
		zap.String("type", tok.tokenType),
		zap.String("token", logging.Redact(tok.accessToken)),
	)
	return tok, nil
}

func (m *TokenManager) authError(cause error, detail string) *APIError {
	msg := fmt.Sprintf("Bad or unauthorized authentication request (url: %s)", m.tokenURL)
	apiErr := &APIError{
		Type: ErrTypeAuth,
		URL:  m.tokenURL,
		Err:  cause,
	}
	if inner, ok := asAPIError(cause); ok {
		apiErr.StatusCode = inner.StatusCode
		msg += ": " + inner.Message
	} else if detail != "" {
		msg += ": " + detail
		if cause != nil {
			msg += fmt.Sprintf(" (%v)", cause)
		}
	}
	apiErr.Message = msg
	return apiErr
}
