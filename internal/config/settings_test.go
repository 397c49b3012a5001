package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateSettings points the default settings file at an empty directory and
// blanks every MOWERCTL_* variable.
func isolateSettings(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("LOCALAPPDATA", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	for _, key := range settingsKeys {
		t.Setenv(EnvPrefix+"_"+strings.ToUpper(key), "")
	}
}

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadSettings_Defaults(t *testing.T) {
	isolateSettings(t)
	t.Setenv("MOWERCTL_CLIENT_ID", "app-key")
	t.Setenv("MOWERCTL_CLIENT_SECRET", "app-secret")

	s, err := LoadSettings("")
	require.NoError(t, err)

	assert.Equal(t, "app-key", s.ClientID)
	assert.Equal(t, "app-secret", s.ClientSecret)
	assert.Equal(t, 5*time.Second, s.Timeout)
	assert.Equal(t, 2*time.Second, s.RetryDelay)
	assert.Equal(t, 3, s.MaxAttempts)
	assert.Equal(t, 600*time.Second, s.RenewalMargin)
	assert.Zero(t, s.RequestsPerSecond)
	assert.Equal(t, DefaultAuthURL, s.AuthURL)
	assert.Equal(t, DefaultAPIURL, s.APIURL)
	assert.Equal(t, DefaultEventsURL, s.EventsURL)
}

func TestLoadSettings_FileAndEnvOverride(t *testing.T) {
	isolateSettings(t)
	path := writeSettings(t, `
client_id: file-key
client_secret: file-secret
timeout: 10s
max_attempts: 5
requests_per_second: 0.5
api_url: http://localhost:8080/v1
log_level: debug
`)
	t.Setenv("MOWERCTL_CLIENT_SECRET", "env-secret")
	t.Setenv("MOWERCTL_RETRY_DELAY", "1s")

	s, err := LoadSettings(path)
	require.NoError(t, err)

	assert.Equal(t, "file-key", s.ClientID)
	assert.Equal(t, "env-secret", s.ClientSecret, "environment takes precedence over the file")
	assert.Equal(t, 10*time.Second, s.Timeout)
	assert.Equal(t, time.Second, s.RetryDelay)
	assert.Equal(t, 5, s.MaxAttempts)
	assert.Equal(t, 0.5, s.RequestsPerSecond)
	assert.Equal(t, "http://localhost:8080/v1", s.APIURL)
	assert.Equal(t, "debug", s.LogLevel)
}

func TestLoadSettings_DefaultFile(t *testing.T) {
	isolateSettings(t)
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	path, err := GetSettingsPath()
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte("client_id: k\nclient_secret: s\n"), 0600))

	s, err := LoadSettings("")
	require.NoError(t, err)
	assert.Equal(t, "k", s.ClientID)
}

func TestLoadSettings_MissingExplicitFile(t *testing.T) {
	isolateSettings(t)

	_, err := LoadSettings(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read settings file")
}

func TestLoadSettings_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing credentials", "timeout: 5s\n", "client_id is required"},
		{"missing secret", "client_id: k\n", "MOWERCTL_CLIENT_SECRET"},
		{"zero attempts", "client_id: k\nclient_secret: s\nmax_attempts: 0\n", "max_attempts"},
		{"bad url", "client_id: k\nclient_secret: s\napi_url: not a url\n", "api_url must be a URL"},
		{"bad log level", "client_id: k\nclient_secret: s\nlog_level: loud\n", "log_level must be one of"},
		{"zero timeout", "client_id: k\nclient_secret: s\ntimeout: 0s\n", "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateSettings(t)
			_, err := LoadSettings(writeSettings(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSettingsKey(t *testing.T) {
	assert.Equal(t, "client_id", settingsKey("ClientID"))
	assert.Equal(t, "client_secret", settingsKey("ClientSecret"))
	assert.Equal(t, "requests_per_second", settingsKey("RequestsPerSecond"))
	assert.Equal(t, "api_url", settingsKey("APIURL"))
}

func TestWriteSettings_RoundTrip(t *testing.T) {
	isolateSettings(t)

	want := DefaultSettings()
	want.ClientID = "app-key"
	want.ClientSecret = "app-secret"
	want.Timeout = 8 * time.Second
	want.RequestsPerSecond = 1.5
	want.LogLevel = "warn"

	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")
	written, err := WriteSettings(path, want)
	require.NoError(t, err)
	assert.Equal(t, path, written)

	info, err := os.Stat(path)
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	got, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestWriteSettings_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")

	_, err := WriteSettings(path, DefaultSettings())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client_id is required")

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "invalid settings must not be written")
}
