package automower

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/muurk/mowerctl/internal/urls"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeAuth indicates the client-credentials exchange failed
	ErrTypeAuth ErrorType = iota
	// ErrTypeForbidden indicates an HTTP 403 (transient upstream auth flakiness)
	ErrTypeForbidden
	// ErrTypeRateLimit indicates the upstream quota was exceeded (HTTP 429)
	ErrTypeRateLimit
	// ErrTypeClient indicates any other 4xx response
	ErrTypeClient
	// ErrTypeServer indicates a 5xx response
	ErrTypeServer
	// ErrTypeUnhandled indicates a status code outside the handled ranges
	ErrTypeUnhandled
	// ErrTypeNetwork indicates a transport-level failure
	ErrTypeNetwork
	// ErrTypeTimeout indicates the per-attempt timeout elapsed
	ErrTypeTimeout
	// ErrTypeParse indicates a body that should have been JSON was not
	ErrTypeParse
	// ErrTypeNotFound indicates an unknown mower name
	ErrTypeNotFound
	// ErrTypeValidation indicates an invalid command argument
	ErrTypeValidation
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeAuth:
		return "Authentication Error"
	case ErrTypeForbidden:
		return "Forbidden"
	case ErrTypeRateLimit:
		return "Rate Limited"
	case ErrTypeClient:
		return "Client Error"
	case ErrTypeServer:
		return "Server Error"
	case ErrTypeUnhandled:
		return "Unhandled Status"
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeNotFound:
		return "Not Found"
	case ErrTypeValidation:
		return "Validation Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// APIError is the single error type returned by this package.
// Message is the diagnostic string also stored as the client's last error.
type APIError struct {
	Type       ErrorType
	Message    string
	StatusCode int    // HTTP status (0 when no response was received)
	URL        string // request URL
	MowerName  string // mower context, empty when not applicable
	Err        error  // underlying error, if any
	Retryable  bool
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error for error chain inspection
func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status to its error type and retry policy.
// 403 is retried because the upstream intermittently rejects valid tokens
// when command processing times out on its side.
func classifyStatus(status int) (ErrorType, bool) {
	switch {
	case status == http.StatusForbidden:
		return ErrTypeForbidden, true
	case status == http.StatusTooManyRequests:
		return ErrTypeRateLimit, false
	case status >= 400 && status < 500:
		return ErrTypeClient, false
	case status >= 500 && status < 600:
		return ErrTypeServer, true
	default:
		return ErrTypeUnhandled, false
	}
}

// classifyTransportError distinguishes timeouts from other transport failures.
// Both are retryable.
func classifyTransportError(err error) ErrorType {
	if os.IsTimeout(err) {
		return ErrTypeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTypeTimeout
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return ErrTypeTimeout
	}
	return ErrTypeNetwork
}

func newNotFoundError(mowerName string) *APIError {
	return &APIError{
		Type:      ErrTypeNotFound,
		Message:   fmt.Sprintf("mower %q not found (refresh the mower list first)", mowerName),
		MowerName: mowerName,
	}
}

func newValidationError(mowerName, message string) *APIError {
	return &APIError{
		Type:      ErrTypeValidation,
		Message:   message,
		MowerName: mowerName,
	}
}

func asAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func isType(err error, types ...ErrorType) bool {
	apiErr, ok := asAPIError(err)
	if !ok {
		return false
	}
	for _, t := range types {
		if apiErr.Type == t {
			return true
		}
	}
	return false
}

// IsAuthError checks if an error is an authentication error
func IsAuthError(err error) bool { return isType(err, ErrTypeAuth) }

// IsRateLimit checks if an error was caused by an HTTP 429
func IsRateLimit(err error) bool { return isType(err, ErrTypeRateLimit) }

// IsParseError checks if an error is a parse error
func IsParseError(err error) bool { return isType(err, ErrTypeParse) }

// IsNotFound checks if an error refers to an unknown mower
func IsNotFound(err error) bool { return isType(err, ErrTypeNotFound) }

// IsNetworkError checks if an error is a transport-level error (including timeouts)
func IsNetworkError(err error) bool { return isType(err, ErrTypeNetwork, ErrTypeTimeout) }

// IsRetryable reports whether the error belongs to the transient class.
// Note that a retryable error returned from Execute has already exhausted
// its attempt budget.
func IsRetryable(err error) bool {
	if apiErr, ok := asAPIError(err); ok {
		return apiErr.Retryable
	}
	return false
}

// ShortMessage returns a concise, user-friendly error message
func ShortMessage(err error) string {
	apiErr, ok := asAPIError(err)
	if !ok {
		return err.Error()
	}

	switch apiErr.Type {
	case ErrTypeAuth:
		return "Authentication failed - check client id and secret"
	case ErrTypeForbidden:
		return "Request rejected by the API (HTTP 403)"
	case ErrTypeRateLimit:
		return "API rate limit reached"
	case ErrTypeTimeout:
		return "API not responding (timeout)"
	case ErrTypeNetwork:
		return "Network error - check connection"
	case ErrTypeServer:
		return fmt.Sprintf("API server error (HTTP %d)", apiErr.StatusCode)
	case ErrTypeParse:
		return "Failed to parse API response"
	default:
		return apiErr.Message
	}
}

// TroubleshootingHint returns user-friendly troubleshooting advice for an error
func TroubleshootingHint(err error) string {
	apiErr, ok := asAPIError(err)
	if !ok {
		return "An unexpected error occurred. Please try again."
	}

	switch apiErr.Type {
	case ErrTypeAuth:
		return strings.Join([]string{
			"The client-credentials exchange failed.",
			"Troubleshooting:",
			"  • Check the application key and secret in the developer portal",
			"  • Make sure the Authentication API and Automower Connect API are connected to the application",
			"  • " + urls.DeveloperPortal,
		}, "\n")

	case ErrTypeRateLimit:
		return strings.Join([]string{
			"The API quota for this application key was exceeded.",
			"Troubleshooting:",
			"  • Wait before retrying; the API allows roughly one request per second",
			"  • Lower polling frequency or set requests_per_second",
			"  • Quota details: " + urls.AutomowerConnectAPI,
		}, "\n")

	case ErrTypeForbidden:
		return strings.Join([]string{
			"The API kept returning 403 after several attempts.",
			"This is often transient on the upstream side.",
			"  • Retry in a few minutes",
		}, "\n")

	case ErrTypeNetwork, ErrTypeTimeout:
		return strings.Join([]string{
			"Could not reach the API.",
			"Troubleshooting:",
			"  • Check your internet connection",
			"  • Try increasing the timeout",
		}, "\n")

	case ErrTypeNotFound:
		return "Run 'mowerctl list' to see the mower names known to this account."

	case ErrTypeServer:
		return fmt.Sprintf("The API returned HTTP %d repeatedly. Try again later.", apiErr.StatusCode)

	default:
		return "Check the error message for details."
	}
}
