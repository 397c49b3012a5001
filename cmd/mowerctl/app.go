package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/mowerctl/internal/automower"
	"github.com/muurk/mowerctl/internal/config"
	"github.com/muurk/mowerctl/internal/logging"
	"github.com/muurk/mowerctl/internal/ui"
	"github.com/muurk/mowerctl/internal/version"
)

// skipSetup marks commands that run without settings or an API client
const skipSetup = "mowerctl/skip-setup"

// errReported is returned after an error has already been printed
var errReported = errors.New("command failed")

// app holds what every API command needs. It is built by setup.
type app struct {
	settings *config.Settings
	registry *config.Registry
	client   *automower.Client
	printer  *ui.Printer
}

var current *app

func setup(cmd *cobra.Command, args []string) error {
	if cmd.Annotations[skipSetup] == "true" {
		return logging.Initialize(logLevel)
	}

	settings, err := config.LoadSettings(settingsPath)
	if err != nil {
		return fmt.Errorf("%w\nRun 'mowerctl configure' to create the settings file", err)
	}

	level := logLevel
	if level == "" {
		level = settings.LogLevel
	}
	if err := logging.Initialize(level); err != nil {
		return err
	}

	registry, err := config.LoadRegistry()
	if err != nil {
		// A damaged registry only loses nicknames and cached state
		logging.Warn("Failed to load mower registry, starting empty", zap.Error(err))
		registry = config.NewRegistry()
	}

	current = &app{
		settings: settings,
		registry: registry,
		client:   newClient(settings),
		printer:  ui.NewPrinter(cmd.OutOrStdout()),
	}
	logging.Debug("Client configured",
		zap.String("api_url", settings.APIURL),
		zap.String("client_id", logging.Redact(settings.ClientID)),
		zap.Int("max_attempts", settings.MaxAttempts))
	return nil
}

// teardown releases the client after every command, failed ones included
func teardown() {
	if current == nil {
		return
	}
	current.client.Close()
	current = nil
}

func newClient(s *config.Settings) *automower.Client {
	return automower.NewClient(s.ClientID, s.ClientSecret,
		automower.WithBaseURL(s.APIURL),
		automower.WithTokenURL(s.AuthURL),
		automower.WithTimeout(s.Timeout),
		automower.WithRetry(s.MaxAttempts, s.RetryDelay),
		automower.WithRenewalMargin(s.RenewalMargin),
		automower.WithRateLimit(s.RequestsPerSecond),
		automower.WithUserAgent(version.UserAgent()),
		automower.WithLogger(logging.Named("automower")),
	)
}

// resolveMower turns a name or nickname into the mower name known to the
// API. An empty input selects the default mower.
func (a *app) resolveMower(input string) (string, error) {
	if input == "" {
		if a.registry.Preferences != nil {
			input = a.registry.Preferences.DefaultMower
		}
		if input == "" {
			return "", errors.New("no mower given and no default mower set")
		}
	}
	if name, ok := a.registry.ResolveName(input); ok {
		return name, nil
	}
	return input, nil
}

// refreshMowers loads the mower list and records it in the registry
func (a *app) refreshMowers() error {
	if err := a.client.GetMowers(); err != nil {
		return a.report("Failed to list mowers", err)
	}
	for _, m := range a.client.Mowers() {
		a.registry.UpdateMowerSeen(m.ID, m.Name, m.Model)
	}
	a.saveRegistry()
	return nil
}

// refreshStatus loads the list and the details of every mower
func (a *app) refreshStatus() error {
	if err := a.refreshMowers(); err != nil {
		return err
	}
	err := a.client.GetMowersInfo()
	for _, m := range a.client.Mowers() {
		if m.State != "" {
			a.registry.RecordStatus(m.ID, string(m.State), m.Activity, m.BatteryPercent)
		}
	}
	a.saveRegistry()
	if err != nil {
		return a.report("Failed to read mower status", err)
	}
	return nil
}

func (a *app) saveRegistry() {
	if err := a.registry.Save(); err != nil {
		logging.Warn("Failed to save mower registry", zap.Error(err))
	}
}

// rows converts the client's mowers into table rows
func (a *app) rows() []ui.MowerRow {
	mowers := a.client.Mowers()
	rows := make([]ui.MowerRow, 0, len(mowers))
	for _, m := range mowers {
		rows = append(rows, rowFromMower(m, a.registry))
	}
	return rows
}

func rowFromMower(m automower.Mower, registry *config.Registry) ui.MowerRow {
	row := ui.MowerRow{
		ID:            m.ID,
		Name:          m.Name,
		Model:         m.Model,
		State:         string(m.State),
		Activity:      m.Activity,
		Battery:       m.BatteryPercent,
		CuttingHeight: m.CuttingHeight,
		Headlight:     m.Headlight,
		ErrorState:    m.ErrorState,
	}
	if m.Location != nil {
		row.HasPosition = true
		row.Latitude = m.Location.Latitude
		row.Longitude = m.Location.Longitude
	}
	if entry := registry.GetMower(m.ID); entry != nil {
		row.Nickname = entry.Nickname
	}
	return row
}

// report prints err as a result box and returns errReported.
// Rate limiting is shown as a warning since waiting fixes it.
func (a *app) report(title string, err error) error {
	logging.Error(title, zap.Error(err))

	if automower.IsRateLimit(err) || a.client.APILimitReached() {
		a.printer.PrintWarning("API rate limit reached",
			ui.Detail{Key: "Operation", Value: title},
			ui.Detail{Key: "Detail", Value: automower.ShortMessage(err)},
			ui.Detail{Key: "Next", Value: "Wait a minute before retrying"},
		)
		return errReported
	}

	a.printer.PrintError(title, errors.New(automower.ShortMessage(err)), automower.TroubleshootingHint(err))
	return errReported
}
