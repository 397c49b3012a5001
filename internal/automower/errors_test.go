package automower

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"testing"

	"github.com/muurk/mowerctl/internal/urls"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyTransportError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"url timeout", &url.Error{Op: "Get", URL: "https://x", Err: timeoutErr{}}, ErrTypeTimeout},
		{"deadline exceeded", context.DeadlineExceeded, ErrTypeTimeout},
		{"net timeout", &net.OpError{Op: "read", Err: timeoutErr{}}, ErrTypeTimeout},
		{"connection refused", &url.Error{Op: "Get", URL: "https://x", Err: errors.New("connection refused")}, ErrTypeNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyTransportError(tt.err); got != tt.want {
				t.Errorf("classifyTransportError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorPredicates(t *testing.T) {
	rate := &APIError{Type: ErrTypeRateLimit, StatusCode: 429, Message: "limit"}
	wrapped := fmt.Errorf("refresh: %w", rate)

	if !IsRateLimit(wrapped) {
		t.Error("IsRateLimit should see through wrapping")
	}
	if IsRetryable(wrapped) {
		t.Error("429 is not retryable")
	}
	if IsAuthError(errors.New("plain")) {
		t.Error("plain errors are not auth errors")
	}
	if !IsNetworkError(&APIError{Type: ErrTypeTimeout}) {
		t.Error("timeouts count as network errors")
	}
}

func TestShortMessageAndHint(t *testing.T) {
	tests := []struct {
		err       error
		wantShort string
		wantHint  string
	}{
		{&APIError{Type: ErrTypeAuth}, "Authentication failed", "client-credentials"},
		{&APIError{Type: ErrTypeAuth}, "Authentication failed", urls.DeveloperPortal},
		{&APIError{Type: ErrTypeRateLimit}, "rate limit", "quota"},
		{&APIError{Type: ErrTypeServer, StatusCode: 503}, "HTTP 503", "HTTP 503"},
		{&APIError{Type: ErrTypeNotFound, Message: `mower "X" not found`}, `mower "X" not found`, "mowerctl list"},
		{errors.New("boom"), "boom", "unexpected"},
	}

	for _, tt := range tests {
		if got := ShortMessage(tt.err); !strings.Contains(got, tt.wantShort) {
			t.Errorf("ShortMessage(%v) = %q, want it to contain %q", tt.err, got, tt.wantShort)
		}
		if got := TroubleshootingHint(tt.err); !strings.Contains(got, tt.wantHint) {
			t.Errorf("TroubleshootingHint(%v) = %q, want it to contain %q", tt.err, got, tt.wantHint)
		}
	}
}

func TestErrorDescription(t *testing.T) {
	if got := ErrorDescription(3); got != "Wrong loop signal" {
		t.Errorf("ErrorDescription(3) = %q", got)
	}
	if got := ErrorDescription(99999); got != "Unknown error code: 99999" {
		t.Errorf("ErrorDescription(99999) = %q", got)
	}
}
