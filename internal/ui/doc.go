// Package ui provides terminal output components for the mowerctl CLI.
//
// Components render with Lipgloss and are printed once, except the watch
// dashboard which is a Bubble Tea model updated by the event stream.
//
//   - Header: command banner showing the operation and its parameters
//   - Result: success, warning and failure boxes with ordered details
//   - Mower tables: list and status tables with a battery gauge
//   - WatchModel: live status table plus a short event log
//   - Prompter: line, secret and yes/no prompts for "mowerctl configure"
//
// Example:
//
//	p := ui.NewPrinter(os.Stdout)
//	p.PrintMowerStatus(rows)
//	if err != nil {
//	    p.PrintError("Status refresh failed", err, automower.TroubleshootingHint(err))
//	}
//
// # Logging Integration
//
// Logging is controlled by MOWERCTL_LOG_LEVEL. When unset, zap is silent so
// the curated output stays clean.
package ui
