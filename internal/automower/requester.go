package automower

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the per-attempt connect/read timeout
	DefaultTimeout = 5 * time.Second

	// DefaultMaxAttempts bounds the number of attempts for one logical request
	DefaultMaxAttempts = 3

	// DefaultRetryDelay is the base of the linear backoff between attempts
	DefaultRetryDelay = 2 * time.Second

	// ContentTypeAPI is the JSON:API media type used by the mower endpoints
	ContentTypeAPI = "application/vnd.api+json"

	// ContentTypeForm is used for the client-credentials exchange
	ContentTypeForm = "application/x-www-form-urlencoded"

	maxResponseSize = 10 * 1024 * 1024
)

// Request describes one logical operation. At most one of JSON and Form is set.
type Request struct {
	Method    string
	URL       string
	JSON      any        // marshalled as the request body
	Form      url.Values // form-encoded request body
	Token     *Token     // adds Authorization headers when set
	MowerName string     // context for error messages
}

// outcome classifies a single attempt
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeRetryable
	outcomeTerminal
)

// Requester executes requests with the retry policy of the mower API and
// keeps the last error message and rate-limit flag of the owning client.
type Requester struct {
	// HTTPClient is the underlying HTTP client; its Timeout applies per attempt
	HTTPClient *http.Client

	// APIKey is sent as X-Api-Key on every request
	APIKey string

	// MaxAttempts is the total number of attempts for retryable failures
	MaxAttempts int

	// RetryDelay is the linear backoff base: the wait after the n-th failed
	// attempt is RetryDelay * (n+1)
	RetryDelay time.Duration

	// Limiter optionally paces attempts client-side (nil = no pacing)
	Limiter *rate.Limiter

	// UserAgent is sent when non-empty
	UserAgent string

	logger *zap.Logger
	sleep  func(time.Duration)

	mu          sync.Mutex
	lastError   string
	rateLimited bool
}

// noRedirect hands 3xx responses back to the retry policy unfollowed
func noRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

// NewRequester creates a requester using the default retry policy
func NewRequester(apiKey string, httpClient *http.Client) *Requester {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout, CheckRedirect: noRedirect}
	}
	return &Requester{
		HTTPClient:  httpClient,
		APIKey:      apiKey,
		MaxAttempts: DefaultMaxAttempts,
		RetryDelay:  DefaultRetryDelay,
		logger:      zap.NewNop(),
		sleep:       time.Sleep,
	}
}

// SetLogger sets the logging sink. A nil logger disables logging.
func (r *Requester) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r.logger = logger
}

// LastError returns the message recorded by the most recent failed operation,
// or "" if it succeeded.
func (r *Requester) LastError() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastError
}

// RateLimited reports whether the most recent HTTP response was a 429
func (r *Requester) RateLimited() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rateLimited
}

func (r *Requester) recordError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		r.lastError = ""
		return
	}
	r.lastError = err.Error()
}

func (r *Requester) recordSuccess() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastError = ""
	r.rateLimited = false
}

func (r *Requester) recordStatus(status int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rateLimited = status == http.StatusTooManyRequests
}

// Execute performs req with bounded retries and returns the JSON body of the
// first successful response. Every error is an *APIError whose message is
// also available from LastError.
func (r *Requester) Execute(req *Request) (json.RawMessage, error) {
	r.recordError(nil)

	var body []byte
	if req.JSON != nil {
		data, err := json.Marshal(req.JSON)
		if err != nil {
			apiErr := &APIError{
				Type:      ErrTypeValidation,
				Message:   fmt.Sprintf("failed to encode request body (url: %s): %v", req.URL, err),
				URL:       req.URL,
				MowerName: req.MowerName,
				Err:       err,
			}
			r.recordError(apiErr)
			return nil, apiErr
		}
		body = data
	} else if req.Form != nil {
		body = []byte(req.Form.Encode())
	}

	maxAttempts := r.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr *APIError
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		r.pace()

		payload, result, apiErr := r.attempt(req, body, attempt)
		switch result {
		case outcomeSuccess:
			r.recordSuccess()
			return payload, nil
		case outcomeTerminal:
			r.recordError(apiErr)
			return nil, apiErr
		}

		lastErr = apiErr
		r.logger.Warn("Retrying request",
			zap.String("method", req.Method),
			zap.String("url", req.URL),
			zap.Int("attempt", attempt),
			zap.Int("status", apiErr.StatusCode),
			zap.String("error_type", apiErr.Type.String()),
		)
		if attempt < maxAttempts {
			r.sleep(r.RetryDelay * time.Duration(attempt+1))
		}
	}

	r.logger.Error("Request failed after retries",
		zap.String("url", req.URL),
		zap.Int("attempts", maxAttempts),
		zap.String("error", lastErr.Message),
	)
	r.recordError(lastErr)
	return nil, lastErr
}

// Close releases idle connections held by the underlying HTTP client
func (r *Requester) Close() {
	r.HTTPClient.CloseIdleConnections()
}

func (r *Requester) pace() {
	if r.Limiter == nil {
		return
	}
	if d := r.Limiter.Reserve().Delay(); d > 0 {
		r.sleep(d)
	}
}

// attempt performs a single round trip and classifies it
func (r *Requester) attempt(req *Request, body []byte, attempt int) (json.RawMessage, outcome, *APIError) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequest(req.Method, req.URL, reader)
	if err != nil {
		return nil, outcomeTerminal, &APIError{
			Type:      ErrTypeValidation,
			Message:   fmt.Sprintf("failed to create request (url: %s): %v", req.URL, err),
			URL:       req.URL,
			MowerName: req.MowerName,
			Err:       err,
		}
	}
	r.setHeaders(httpReq, req)

	resp, err := r.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, outcomeRetryable, &APIError{
			Type:      classifyTransportError(err),
			Message:   fmt.Sprintf("Retry %d - Connection error to url %s with error %q", attempt-1, req.URL, err),
			URL:       req.URL,
			MowerName: req.MowerName,
			Err:       err,
			Retryable: true,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, outcomeRetryable, &APIError{
			Type:       classifyTransportError(err),
			Message:    fmt.Sprintf("Retry %d - Failed to read response from url %s: %v", attempt-1, req.URL, err),
			StatusCode: resp.StatusCode,
			URL:        req.URL,
			MowerName:  req.MowerName,
			Err:        err,
			Retryable:  true,
		}
	}

	status := resp.StatusCode
	r.recordStatus(status)

	if status >= 200 && status < 300 {
		r.logger.Debug("Request succeeded",
			zap.String("method", req.Method),
			zap.String("url", req.URL),
			zap.Int("status", status),
			zap.Int("attempt", attempt),
		)
		payload, apiErr := parseSuccessBody(respBody, req)
		if apiErr != nil {
			apiErr.StatusCode = status
			return nil, outcomeTerminal, apiErr
		}
		return payload, outcomeSuccess, nil
	}

	errType, retryable := classifyStatus(status)
	apiErr := &APIError{
		Type:       errType,
		StatusCode: status,
		URL:        req.URL,
		MowerName:  req.MowerName,
		Retryable:  retryable,
	}
	if errType == ErrTypeUnhandled {
		apiErr.Message = fmt.Sprintf("HTTP error (%d) not specifically handled (url: %s)", status, req.URL)
	} else {
		apiErr.Message = describeFailure(status, respBody, req.URL, req.MowerName)
	}

	if retryable {
		return nil, outcomeRetryable, apiErr
	}
	return nil, outcomeTerminal, apiErr
}

func (r *Requester) setHeaders(httpReq *http.Request, req *Request) {
	httpReq.Header.Set("X-Api-Key", r.APIKey)
	if r.UserAgent != "" {
		httpReq.Header.Set("User-Agent", r.UserAgent)
	}

	if req.Form != nil {
		httpReq.Header.Set("Content-Type", ContentTypeForm)
		httpReq.Header.Set("Accept", "application/json")
	} else {
		httpReq.Header.Set("Accept", ContentTypeAPI)
		if req.JSON != nil {
			httpReq.Header.Set("Content-Type", ContentTypeAPI)
		}
	}

	if req.Token != nil {
		httpReq.Header.Set("Authorization", req.Token.authorization())
		httpReq.Header.Set("Authorization-Provider", req.Token.provider)
	}
}

// parseSuccessBody validates a 2xx body. An empty body is reported as an
// empty JSON object.
func parseSuccessBody(body []byte, req *Request) (json.RawMessage, *APIError) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return json.RawMessage(`{}`), nil
	}

	var probe any
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil, &APIError{
			Type:      ErrTypeParse,
			Message:   fmt.Sprintf("Error parsing JSON response (url: %s): %v", req.URL, err),
			URL:       req.URL,
			MowerName: req.MowerName,
			Err:       err,
		}
	}
	return json.RawMessage(trimmed), nil
}

type apiErrorEntry struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// describeFailure builds the diagnostic message for a failed response from
// the JSON:API "errors" array, a generic "message" field, or the raw body.
func describeFailure(status int, body []byte, requestURL, mowerName string) string {
	name := mowerName
	if name == "" {
		name = "Unknown"
	}
	prefix := fmt.Sprintf("(%s - %d)", name, status)

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Sprintf("%s Uncaptured error returned by the API (url: %s, response: %s) - JSON decode error",
			prefix, requestURL, strings.TrimSpace(string(body)))
	}

	fields, ok := doc.(map[string]any)
	if !ok {
		return fmt.Sprintf("%s Uncaptured error returned by the API (url: %s)", prefix, requestURL)
	}

	if _, ok := fields["errors"]; ok {
		entry := apiErrorEntry{Title: "Unknown Error", Detail: "No detail"}
		var parsed struct {
			Errors []apiErrorEntry `json:"errors"`
		}
		if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Errors) > 0 {
			if parsed.Errors[0].Title != "" {
				entry.Title = parsed.Errors[0].Title
			}
			if parsed.Errors[0].Detail != "" {
				entry.Detail = parsed.Errors[0].Detail
			}
		}
		return fmt.Sprintf("%s %s: %s (url: %s)", prefix, entry.Title, entry.Detail, requestURL)
	}

	if msg, ok := fields["message"]; ok {
		text, isString := msg.(string)
		if !isString {
			text = fmt.Sprint(msg)
		}
		return fmt.Sprintf("%s %s (url: %s)", prefix, text, requestURL)
	}

	return fmt.Sprintf("%s Uncaptured error returned by the API (url: %s)", prefix, requestURL)
}
