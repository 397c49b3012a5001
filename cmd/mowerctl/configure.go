package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/mowerctl/internal/automower"
	"github.com/muurk/mowerctl/internal/config"
	"github.com/muurk/mowerctl/internal/ui"
	"github.com/muurk/mowerctl/internal/urls"
)

// configureCmd writes the settings file interactively
var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Store application credentials in the settings file",
	Long: `Ask for the application key and secret of your Husqvarna developer
application and store them in settings.yaml, readable by you only.

The application must be connected to the Authentication API and the
Automower Connect API in the developer portal.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipSetup: "true"},
	RunE:        runConfigure,
}

func runConfigure(cmd *cobra.Command, args []string) error {
	printer := ui.NewPrinter(cmd.OutOrStdout())
	prompter := ui.NewPrompter()

	path := settingsPath
	if path == "" {
		defaultPath, err := config.GetSettingsPath()
		if err != nil {
			return err
		}
		path = defaultPath
	}

	printer.PrintHeader("Configure", "mowerctl configure",
		ui.Detail{Key: "Settings file", Value: path},
		ui.Detail{Key: "Credentials", Value: urls.DeveloperPortal})

	settings, err := config.LoadSettings(settingsPath)
	if err != nil {
		settings = config.DefaultSettings()
	} else if !prompter.Confirm("Settings already exist. Replace the credentials?") {
		printer.PrintWarning("Nothing changed")
		return nil
	}

	clientID, err := prompter.Line("Application key", settings.ClientID)
	if err != nil {
		return err
	}
	settings.ClientID = clientID

	secret, err := prompter.Secret("Application secret")
	if errors.Is(err, ui.ErrNotTerminal) {
		secret, err = prompter.Line("Application secret", "")
	}
	if err != nil {
		return err
	}
	if secret != "" {
		settings.ClientSecret = secret
	}

	if prompter.Confirm("Verify the credentials now?") {
		client := newClient(settings)
		defer client.Close()
		if err := client.Authenticate(); err != nil {
			printer.PrintError("Credentials rejected", errors.New(automower.ShortMessage(err)), automower.TroubleshootingHint(err))
			if !prompter.Confirm("Save anyway?") {
				return errReported
			}
		}
	}

	written, err := config.WriteSettings(path, settings)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	details := []ui.Detail{{Key: "File", Value: written}}
	if os.Getenv(config.EnvPrefix+"_CLIENT_ID") != "" {
		details = append(details, ui.Detail{Key: "Note", Value: config.EnvPrefix + "_CLIENT_ID is set and overrides the file"})
	}
	printer.PrintSuccess("Settings saved", details...)
	return nil
}
