package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every settings key to form its environment
// variable, e.g. MOWERCTL_CLIENT_ID.
const EnvPrefix = "MOWERCTL"

// Settings holds the connection parameters of the CLI.
type Settings struct {
	ClientID          string        `mapstructure:"client_id"           validate:"required"`
	ClientSecret      string        `mapstructure:"client_secret"       validate:"required"`
	Timeout           time.Duration `mapstructure:"timeout"             validate:"gt=0"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"         validate:"gte=0"`
	MaxAttempts       int           `mapstructure:"max_attempts"        validate:"gte=1,lte=10"`
	RenewalMargin     time.Duration `mapstructure:"renewal_margin"      validate:"gte=0"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"`
	AuthURL           string        `mapstructure:"auth_url"            validate:"required,url"`
	APIURL            string        `mapstructure:"api_url"             validate:"required,url"`
	EventsURL         string        `mapstructure:"events_url"          validate:"required,url"`
	LogLevel          string        `mapstructure:"log_level"           validate:"omitempty,oneof=debug info warn error"`
}

// Defaults of the public Husqvarna endpoints and retry policy
const (
	DefaultAuthURL   = "https://api.authentication.husqvarnagroup.dev/v1/oauth2/token"
	DefaultAPIURL    = "https://api.amc.husqvarna.dev/v1"
	DefaultEventsURL = "wss://ws.openapi.husqvarna.dev/v1"
)

var settingsKeys = []string{
	"client_id", "client_secret", "timeout", "retry_delay", "max_attempts",
	"renewal_margin", "requests_per_second", "auth_url", "api_url",
	"events_url", "log_level",
}

// DefaultSettings returns the settings used for every key left unset.
// Credentials have no default.
func DefaultSettings() *Settings {
	return &Settings{
		Timeout:       5 * time.Second,
		RetryDelay:    2 * time.Second,
		MaxAttempts:   3,
		RenewalMargin: 600 * time.Second,
		AuthURL:       DefaultAuthURL,
		APIURL:        DefaultAPIURL,
		EventsURL:     DefaultEventsURL,
	}
}

// LoadSettings reads settings from path (or the default settings file when
// path is empty) and MOWERCTL_* environment variables, which take
// precedence. A missing default file is not an error.
func LoadSettings(path string) (*Settings, error) {
	vip := viper.New()
	vip.SetConfigType("yaml")
	vip.SetEnvPrefix(EnvPrefix)
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	def := DefaultSettings()
	vip.SetDefault("timeout", def.Timeout)
	vip.SetDefault("retry_delay", def.RetryDelay)
	vip.SetDefault("max_attempts", def.MaxAttempts)
	vip.SetDefault("renewal_margin", def.RenewalMargin)
	vip.SetDefault("requests_per_second", def.RequestsPerSecond)
	vip.SetDefault("auth_url", def.AuthURL)
	vip.SetDefault("api_url", def.APIURL)
	vip.SetDefault("events_url", def.EventsURL)
	vip.SetDefault("log_level", def.LogLevel)

	for _, key := range settingsKeys {
		if err := vip.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	explicit := path != ""
	if !explicit {
		defaultPath, err := GetSettingsPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get settings path: %w", err)
		}
		path = defaultPath
	}

	if _, err := os.Stat(path); err == nil || explicit {
		vip.SetConfigFile(path)
		if err := vip.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) || explicit {
				return nil, fmt.Errorf("failed to read settings file: %w", err)
			}
		}
	}

	var s Settings
	if err := vip.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// WriteSettings validates s and stores it at path (the default settings
// file when path is empty), readable by the owner only. It returns the path
// written.
func WriteSettings(path string, s *Settings) (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}

	if path == "" {
		defaultPath, err := GetSettingsPath()
		if err != nil {
			return "", fmt.Errorf("failed to get settings path: %w", err)
		}
		path = defaultPath
	}

	fileMutex.Lock()
	defer fileMutex.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	vip := viper.New()
	vip.SetConfigType("yaml")
	vip.Set("client_id", s.ClientID)
	vip.Set("client_secret", s.ClientSecret)
	vip.Set("timeout", s.Timeout.String())
	vip.Set("retry_delay", s.RetryDelay.String())
	vip.Set("max_attempts", s.MaxAttempts)
	vip.Set("renewal_margin", s.RenewalMargin.String())
	vip.Set("requests_per_second", s.RequestsPerSecond)
	vip.Set("auth_url", s.AuthURL)
	vip.Set("api_url", s.APIURL)
	vip.Set("events_url", s.EventsURL)
	if s.LogLevel != "" {
		vip.Set("log_level", s.LogLevel)
	}

	if err := vip.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("failed to write settings file: %w", err)
	}
	if err := os.Chmod(path, 0600); err != nil {
		return "", fmt.Errorf("failed to restrict settings file permissions: %w", err)
	}
	return path, nil
}

// Validate checks every field against its constraints
func (s *Settings) Validate() error {
	validate := validator.New()
	if err := validate.Struct(s); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, describeFieldError(fe))
			}
			return fmt.Errorf("settings validation failed: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("settings validation failed: %w", err)
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	key := settingsKey(fe.StructField())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required (set it in settings.yaml or %s_%s)", key, EnvPrefix, strings.ToUpper(key))
	case "url":
		return fmt.Sprintf("%s must be a URL", key)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", key, fe.Param())
	default:
		return fmt.Sprintf("%s fails %s=%s (got %v)", key, fe.Tag(), fe.Param(), fe.Value())
	}
}

// settingsKey converts a Go field name to its settings key (ClientID -> client_id)
func settingsKey(field string) string {
	switch field {
	case "ClientID":
		return "client_id"
	case "AuthURL":
		return "auth_url"
	case "APIURL":
		return "api_url"
	case "EventsURL":
		return "events_url"
	}
	var b strings.Builder
	for i, r := range field {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}
