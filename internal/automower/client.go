package automower

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	// DefaultTokenURL is the client-credentials endpoint of the authentication API
	DefaultTokenURL = "https://api.authentication.husqvarnagroup.dev/v1/oauth2/token"

	// DefaultBaseURL is the root of the Automower Connect API
	DefaultBaseURL = "https://api.amc.husqvarna.dev/v1"
)

// Client talks to the Automower Connect API on behalf of one application key.
//
// Every operation first obtains a valid token from the TokenManager and then
// runs its request through the Requester. Operations return an error and also
// record its message, available from LastError until the next operation.
type Client struct {
	baseURL  string
	tokenURL string

	tokens    *TokenManager
	requester *Requester
	logger    *zap.Logger
	now       func() time.Time

	mu             sync.RWMutex
	mowers         []Mower
	lastListUpdate time.Time

	closeOnce sync.Once
}

// Option configures a Client
type Option func(*clientConfig)

type clientConfig struct {
	baseURL       string
	tokenURL      string
	httpClient    *http.Client
	timeout       time.Duration
	maxAttempts   int
	retryDelay    time.Duration
	renewalMargin time.Duration
	rps           float64
	userAgent     string
	logger        *zap.Logger
	now           func() time.Time
	sleep         func(time.Duration)
}

// WithBaseURL overrides the API root (e.g. for tests)
func WithBaseURL(u string) Option {
	return func(c *clientConfig) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithTokenURL overrides the client-credentials endpoint
func WithTokenURL(u string) Option {
	return func(c *clientConfig) { c.tokenURL = u }
}

// WithHTTPClient sets the underlying HTTP client. WithTimeout is ignored when
// set, and the caller owns the redirect policy: the default client does not
// follow redirects.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) { c.httpClient = hc }
}

// WithTimeout sets the per-attempt timeout
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) { c.timeout = d }
}

// WithRetry sets the attempt budget and the linear backoff base
func WithRetry(maxAttempts int, retryDelay time.Duration) Option {
	return func(c *clientConfig) {
		c.maxAttempts = maxAttempts
		c.retryDelay = retryDelay
	}
}

// WithRenewalMargin sets how long before nominal expiry a token is renewed
func WithRenewalMargin(d time.Duration) Option {
	return func(c *clientConfig) { c.renewalMargin = d }
}

// WithRateLimit paces requests client-side to rps requests per second (0 disables)
func WithRateLimit(rps float64) Option {
	return func(c *clientConfig) { c.rps = rps }
}

// WithUserAgent sets the User-Agent header of every request
func WithUserAgent(ua string) Option {
	return func(c *clientConfig) { c.userAgent = ua }
}

// WithLogger sets the logging sink (default: no-op)
func WithLogger(logger *zap.Logger) Option {
	return func(c *clientConfig) { c.logger = logger }
}

// NewClient creates a client for the given application key and secret.
// No request is made until the first operation (or Authenticate).
func NewClient(clientID, clientSecret string, opts ...Option) *Client {
	cfg := &clientConfig{
		baseURL:       DefaultBaseURL,
		tokenURL:      DefaultTokenURL,
		timeout:       DefaultTimeout,
		maxAttempts:   DefaultMaxAttempts,
		retryDelay:    DefaultRetryDelay,
		renewalMargin: DefaultRenewalMargin,
	}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout, CheckRedirect: noRedirect}
	}

	requester := NewRequester(clientID, hc)
	requester.MaxAttempts = cfg.maxAttempts
	requester.RetryDelay = cfg.retryDelay
	requester.UserAgent = cfg.userAgent
	requester.SetLogger(cfg.logger.Named("requester"))
	if cfg.rps > 0 {
		requester.Limiter = rate.NewLimiter(rate.Limit(cfg.rps), 1)
	}
	if cfg.sleep != nil {
		requester.sleep = cfg.sleep
	}

	tokens := NewTokenManager(clientID, clientSecret, cfg.tokenURL, requester)
	tokens.SetRenewalMargin(cfg.renewalMargin)
	tokens.SetLogger(cfg.logger.Named("token"))
	if cfg.now == nil {
		cfg.now = time.Now
	}
	tokens.now = cfg.now

	return &Client{
		baseURL:   cfg.baseURL,
		tokenURL:  cfg.tokenURL,
		tokens:    tokens,
		requester: requester,
		logger:    cfg.logger,
		now:       cfg.now,
	}
}

// Authenticate makes sure a valid token is held, acquiring one if needed
func (c *Client) Authenticate() error {
	_, err := c.ensureToken()
	return err
}

// Authenticated reports whether the client currently holds a usable token
func (c *Client) Authenticated() bool {
	return c.tokens.Authenticated()
}

// TokenSource exposes the token lifecycle to oauth2-aware transports
func (c *Client) TokenSource() oauth2.TokenSource {
	return c.tokens
}

// APIKey returns the application key sent as X-Api-Key
func (c *Client) APIKey() string {
	return c.requester.APIKey
}

// LastError returns the message recorded by the most recent failed
// operation, or "" if it succeeded.
func (c *Client) LastError() string {
	return c.requester.LastError()
}

// APILimitReached reports whether the most recent response was HTTP 429
func (c *Client) APILimitReached() bool {
	return c.requester.RateLimited()
}

// Close releases the underlying HTTP connections. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.requester.Close()
	})
}

// GetMowers retrieves the list of mowers on the account and replaces the
// local records with their id and name.
func (c *Client) GetMowers() error {
	tok, err := c.ensureToken()
	if err != nil {
		return err
	}

	body, err := c.requester.Execute(&Request{
		Method: http.MethodGet,
		URL:    c.baseURL + "/mowers",
		Token:  &tok,
	})
	if err != nil {
		return err
	}

	var doc mowerListDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return c.fail(&APIError{
			Type:    ErrTypeParse,
			Message: fmt.Sprintf("Error parsing mower list (url: %s/mowers): %v", c.baseURL, err),
			URL:     c.baseURL + "/mowers",
			Err:     err,
		})
	}

	mowers := make([]Mower, 0, len(doc.Data))
	for _, res := range doc.Data {
		mowers = append(mowers, Mower{
			ID:    res.ID,
			Name:  res.Attributes.System.Name,
			Model: res.Attributes.System.Model,
		})
	}

	c.mu.Lock()
	c.mowers = mowers
	c.lastListUpdate = c.now()
	c.mu.Unlock()

	c.logger.Debug("Mower list updated", zap.Int("count", len(mowers)))
	return nil
}

// GetMowersInfo refreshes the detail fields of every known mower.
// It stops at the first request or parse failure. Records missing an id or
// name are skipped and reported as a failure once all others were fetched.
func (c *Client) GetMowersInfo() error {
	tok, err := c.ensureToken()
	if err != nil {
		return err
	}

	c.mu.RLock()
	mowers := make([]Mower, len(c.mowers))
	copy(mowers, c.mowers)
	c.mu.RUnlock()

	var skipped []int
	for i := range mowers {
		m := &mowers[i]
		if m.ID == "" || m.Name == "" {
			c.logger.Warn("Skipping mower without id or name", zap.Int("index", i))
			skipped = append(skipped, i)
			continue
		}

		detailURL := fmt.Sprintf("%s/mowers/%s", c.baseURL, m.ID)
		body, err := c.requester.Execute(&Request{
			Method:    http.MethodGet,
			URL:       detailURL,
			Token:     &tok,
			MowerName: m.Name,
		})
		if err != nil {
			c.logger.Warn("Failed to get mower detail", zap.String("mower", m.Name), zap.Error(err))
			return err
		}

		var doc mowerDocument
		if err := json.Unmarshal(body, &doc); err != nil || doc.Data == nil {
			msg := fmt.Sprintf("(%s) Mower detail has no data (url: %s)", m.Name, detailURL)
			if err != nil {
				msg = fmt.Sprintf("(%s) Error parsing mower detail (url: %s): %v", m.Name, detailURL, err)
			}
			return c.fail(&APIError{
				Type:      ErrTypeParse,
				Message:   msg,
				URL:       detailURL,
				MowerName: m.Name,
				Err:       err,
			})
		}

		m.applyDetail(doc.Data)
		c.storeMower(*m)
	}

	if len(skipped) > 0 {
		return c.fail(newValidationError("", fmt.Sprintf("%d mower record(s) without id or name at index %v", len(skipped), skipped)))
	}
	return nil
}

// GetMowerMessages returns the raw messages document of a mower
func (c *Client) GetMowerMessages(mowerName string) (json.RawMessage, error) {
	tok, err := c.ensureToken()
	if err != nil {
		return nil, err
	}

	id, err := c.findID(mowerName)
	if err != nil {
		return nil, err
	}

	return c.requester.Execute(&Request{
		Method:    http.MethodGet,
		URL:       fmt.Sprintf("%s/mowers/%s/messages", c.baseURL, id),
		Token:     &tok,
		MowerName: mowerName,
	})
}

// ParkUntilNextSchedule parks the mower until the next scheduled session
func (c *Client) ParkUntilNextSchedule(mowerName string) error {
	return c.SendAction(mowerName, ActionParkUntilNextSchedule, 0)
}

// ParkUntilFurtherNotice parks the mower until it is started manually
func (c *Client) ParkUntilFurtherNotice(mowerName string) error {
	return c.SendAction(mowerName, ActionParkUntilFurtherNotice, 0)
}

// Pause pauses the mower's current operation
func (c *Client) Pause(mowerName string) error {
	return c.SendAction(mowerName, ActionPause, 0)
}

// ResumeSchedule returns the mower to its normal schedule
func (c *Client) ResumeSchedule(mowerName string) error {
	return c.SendAction(mowerName, ActionResumeSchedule, 0)
}

// Start mows for the given number of minutes
func (c *Client) Start(mowerName string, minutes int) error {
	return c.SendAction(mowerName, ActionStart, minutes)
}

// SendAction posts a command to the mower's actions endpoint.
// duration is only used by ActionStart.
func (c *Client) SendAction(mowerName string, action Action, duration int) error {
	if !action.Valid() {
		return c.fail(newValidationError(mowerName, fmt.Sprintf("unknown action %q", action)))
	}
	if action == ActionStart && duration <= 0 {
		return c.fail(newValidationError(mowerName, fmt.Sprintf("start duration must be positive, got %d minutes", duration)))
	}

	tok, err := c.ensureToken()
	if err != nil {
		return err
	}

	id, err := c.findID(mowerName)
	if err != nil {
		return err
	}

	_, err = c.requester.Execute(&Request{
		Method:    http.MethodPost,
		URL:       fmt.Sprintf("%s/mowers/%s/actions", c.baseURL, id),
		JSON:      newActionRequest(action, duration),
		Token:     &tok,
		MowerName: mowerName,
	})
	return err
}

// SetHeadlight switches the headlight to always on or always off
func (c *Client) SetHeadlight(mowerName string, on bool) error {
	mode := HeadlightAlwaysOff
	if on {
		mode = HeadlightAlwaysOn
	}
	return c.updateSettings(mowerName, settingsAttributes{Headlight: &headlightSetting{Mode: mode}})
}

// SetCuttingHeight sets the cutting height level
func (c *Client) SetCuttingHeight(mowerName string, height int) error {
	if height < MinCuttingHeight || height > MaxCuttingHeight {
		return c.fail(newValidationError(mowerName, fmt.Sprintf("cutting height must be between %d and %d, got %d",
			MinCuttingHeight, MaxCuttingHeight, height)))
	}
	return c.updateSettings(mowerName, settingsAttributes{CuttingHeight: &height})
}

func (c *Client) updateSettings(mowerName string, attrs settingsAttributes) error {
	tok, err := c.ensureToken()
	if err != nil {
		return err
	}

	id, err := c.findID(mowerName)
	if err != nil {
		return err
	}

	_, err = c.requester.Execute(&Request{
		Method:    http.MethodPost,
		URL:       fmt.Sprintf("%s/mowers/%s/settings", c.baseURL, id),
		JSON:      newSettingsRequest(attrs),
		Token:     &tok,
		MowerName: mowerName,
	})
	return err
}

// Mowers returns a copy of the local mower records
func (c *Client) Mowers() []Mower {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Mower, len(c.mowers))
	copy(out, c.mowers)
	return out
}

// MowerByName returns the record of the named mower
func (c *Client) MowerByName(name string) (Mower, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.mowers {
		if m.Name == name {
			return m, true
		}
	}
	return Mower{}, false
}

// IsMowerOff reports whether the named mower is off. found is false for
// unknown names.
func (c *Client) IsMowerOff(name string) (off bool, found bool) {
	m, ok := c.MowerByName(name)
	if !ok {
		return false, false
	}
	return m.IsOff(), true
}

// AreAllMowersOff reports whether every known mower is off (true when none are known)
func (c *Client) AreAllMowersOff() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.mowers {
		if !c.mowers[i].IsOff() {
			return false
		}
	}
	return true
}

// LastMowerListUpdate returns when GetMowers last succeeded (zero if never)
func (c *Client) LastMowerListUpdate() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastListUpdate
}

func (c *Client) ensureToken() (Token, error) {
	tok, err := c.tokens.EnsureValidToken()
	if err != nil {
		c.requester.recordError(err)
		return Token{}, err
	}
	return tok, nil
}

func (c *Client) findID(mowerName string) (string, error) {
	m, ok := c.MowerByName(mowerName)
	if !ok || m.ID == "" {
		return "", c.fail(newNotFoundError(mowerName))
	}
	return m.ID, nil
}

// storeMower writes back a record by id; the list may have been replaced meanwhile
func (c *Client) storeMower(m Mower) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.mowers {
		if c.mowers[i].ID == m.ID {
			c.mowers[i] = m
			return
		}
	}
}

func (c *Client) fail(err *APIError) error {
	c.requester.recordError(err)
	return err
}
