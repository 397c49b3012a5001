// Package logging provides structured logging for mowerctl.
//
// This package wraps a global zap logger. It is silent unless a level is given
// explicitly or through the MOWERCTL_LOG_LEVEL environment variable, so the
// CLI output stays clean by default.
//
// # Log Levels
//
//   - Debug: per-request results, token reuse, raw event payloads
//   - Info: token issuance, event stream connection changes
//   - Warn: retried requests, skipped mower records
//   - Error: requests that failed after all attempts
//
// # Usage
//
//	if err := logging.InitializeFromEnv(); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
//	client := automower.NewClient(id, secret,
//	    automower.WithLogger(logging.Named("automower")))
//
// Secrets are never logged in full; use Redact for tokens.
package logging
