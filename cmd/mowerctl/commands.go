package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/mowerctl/internal/automower"
	"github.com/muurk/mowerctl/internal/config"
	"github.com/muurk/mowerctl/internal/ui"
)

// Command flags
var (
	outputFormat       string
	startDuration      int
	untilFurtherNotice bool
)

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(messagesCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(parkCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(headlightCmd)
	rootCmd.AddCommand(heightCmd)
	rootCmd.AddCommand(nicknameCmd)
	rootCmd.AddCommand(useCmd)

	for _, cmd := range []*cobra.Command{listCmd, statusCmd} {
		cmd.Flags().StringVar(&outputFormat, "format", "table", "Output format (table, json)")
	}
	startCmd.Flags().IntVar(&startDuration, "duration", 0, "Mowing duration in minutes (default: registry preference, 60)")
	parkCmd.Flags().BoolVar(&untilFurtherNotice, "until-further-notice", false, "Stay parked until started manually")
}

// listCmd lists the mowers on the account
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the mowers on the account",
	Long: `List the mowers connected to the application's Husqvarna account.

The list is also saved to the local registry so nicknames can be used in
place of mower names.`,
	Example: `  mowerctl list
  mowerctl list --format json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	if err := current.refreshMowers(); err != nil {
		return err
	}
	rows := current.rows()
	if outputFormat == "json" {
		return printJSON(cmd, rows)
	}
	current.printer.PrintMowerList(rows)
	return nil
}

// statusCmd shows state, activity and battery of the mowers
var statusCmd = &cobra.Command{
	Use:   "status [mower]",
	Short: "Show mower status",
	Long: `Show the state, activity, battery, cutting height and position of every
mower, or a detailed card for one mower.`,
	Example: `  # Table of all mowers
  mowerctl status

  # Card for one mower, by name or nickname
  mowerctl status Front`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := current.refreshStatus(); err != nil {
		return err
	}
	rows := current.rows()

	if len(args) == 0 {
		if outputFormat == "json" {
			return printJSON(cmd, rows)
		}
		current.printer.PrintMowerStatus(rows)
		return nil
	}

	name, err := current.resolveMower(args[0])
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row.Name == name {
			if outputFormat == "json" {
				return printJSON(cmd, row)
			}
			current.printer.PrintResult(ui.MowerCard(row))
			return nil
		}
	}
	return current.report("Unknown mower", fmt.Errorf("no mower named %q on this account", args[0]))
}

// messagesCmd prints the message log of a mower
var messagesCmd = &cobra.Command{
	Use:   "messages [mower]",
	Short: "Show the message log of a mower",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := mowerArg(args)
		if err != nil {
			return err
		}
		if err := current.refreshMowers(); err != nil {
			return err
		}
		raw, err := current.client.GetMowerMessages(name)
		if err != nil {
			return current.report("Failed to read messages", err)
		}

		var out bytes.Buffer
		if err := json.Indent(&out, raw, "", "  "); err != nil {
			out.Reset()
			out.Write(raw)
		}
		fmt.Fprintln(cmd.OutOrStdout(), out.String())
		return nil
	},
}

// startCmd starts mowing for a fixed duration
var startCmd = &cobra.Command{
	Use:   "start [mower]",
	Short: "Start mowing, overriding the schedule",
	Example: `  mowerctl start Front
  mowerctl start Front --duration 90`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		minutes := startDuration
		if minutes == 0 {
			minutes = current.registry.StartMinutes()
		}
		return runAction(args, "Mower started", "Start failed", func(name string) error {
			return current.client.Start(name, minutes)
		}, ui.Detail{Key: "Duration", Value: fmt.Sprintf("%d min", minutes)})
	},
}

// pauseCmd pauses the current operation
var pauseCmd = &cobra.Command{
	Use:   "pause [mower]",
	Short: "Pause the mower where it is",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(args, "Mower paused", "Pause failed", current.client.Pause)
	},
}

// parkCmd sends the mower to its charging station
var parkCmd = &cobra.Command{
	Use:   "park [mower]",
	Short: "Park the mower in its charging station",
	Long: `Park the mower in its charging station until the next scheduled session,
or with --until-further-notice until it is started again manually.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if untilFurtherNotice {
			return runAction(args, "Mower parked until further notice", "Park failed", current.client.ParkUntilFurtherNotice)
		}
		return runAction(args, "Mower parked until next schedule", "Park failed", current.client.ParkUntilNextSchedule)
	},
}

// resumeCmd returns the mower to its schedule
var resumeCmd = &cobra.Command{
	Use:   "resume [mower]",
	Short: "Resume the mower's schedule",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(args, "Schedule resumed", "Resume failed", current.client.ResumeSchedule)
	},
}

// headlightCmd switches the headlight
var headlightCmd = &cobra.Command{
	Use:       "headlight [mower] on|off",
	Short:     "Switch the headlight always on or always off",
	Args:      cobra.RangeArgs(1, 2),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		mowerArgs, value := args[:len(args)-1], args[len(args)-1]
		var on bool
		switch strings.ToLower(value) {
		case "on":
			on = true
		case "off":
		default:
			return fmt.Errorf("headlight must be on or off, got %q", value)
		}
		return runAction(mowerArgs, "Headlight updated", "Headlight change failed", func(name string) error {
			return current.client.SetHeadlight(name, on)
		}, ui.Detail{Key: "Headlight", Value: strings.ToLower(value)})
	},
}

// heightCmd sets the cutting height
var heightCmd = &cobra.Command{
	Use:   "height [mower] <level>",
	Short: fmt.Sprintf("Set the cutting height level (%d-%d)", automower.MinCuttingHeight, automower.MaxCuttingHeight),
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mowerArgs, value := args[:len(args)-1], args[len(args)-1]
		level, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid cutting height %q: must be a number", value)
		}
		return runAction(mowerArgs, "Cutting height updated", "Cutting height change failed", func(name string) error {
			return current.client.SetCuttingHeight(name, level)
		}, ui.Detail{Key: "Cutting height", Value: strconv.Itoa(level)})
	},
}

// nicknameCmd stores a local alias for a mower
var nicknameCmd = &cobra.Command{
	Use:   "nickname <mower> <nickname>",
	Short: "Give a mower a local nickname",
	Long: `Store a nickname for a mower in the local registry. The nickname can be
used in place of the mower name in every command. An empty nickname removes it.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := current.refreshMowers(); err != nil {
			return err
		}
		name, _ := current.registry.ResolveName(args[0])
		m, ok := current.client.MowerByName(name)
		if !ok {
			return current.report("Unknown mower", fmt.Errorf("no mower named %q on this account", args[0]))
		}
		current.registry.SetMowerNickname(m.ID, args[1])
		if err := current.registry.Save(); err != nil {
			return fmt.Errorf("failed to save registry: %w", err)
		}
		current.printer.PrintSuccess("Nickname saved",
			ui.Detail{Key: "Mower", Value: m.Name},
			ui.Detail{Key: "Nickname", Value: args[1]})
		return nil
	},
}

// useCmd selects the mower used when a command names none
var useCmd = &cobra.Command{
	Use:   "use <mower>",
	Short: "Set the default mower",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := current.refreshMowers(); err != nil {
			return err
		}
		name, _ := current.registry.ResolveName(args[0])
		if _, ok := current.client.MowerByName(name); !ok {
			return current.report("Unknown mower", fmt.Errorf("no mower named %q on this account", args[0]))
		}
		if current.registry.Preferences == nil {
			current.registry.Preferences = &config.Preferences{}
		}
		current.registry.Preferences.DefaultMower = name
		if err := current.registry.Save(); err != nil {
			return fmt.Errorf("failed to save registry: %w", err)
		}
		current.printer.PrintSuccess("Default mower set", ui.Detail{Key: "Mower", Value: name})
		return nil
	},
}

// mowerArg resolves the optional mower argument of a command
func mowerArg(args []string) (string, error) {
	input := ""
	if len(args) > 0 {
		input = args[0]
	}
	return current.resolveMower(input)
}

// runAction resolves the mower, loads the mower list and runs op
func runAction(args []string, title, failure string, op func(name string) error, details ...ui.Detail) error {
	name, err := mowerArg(args)
	if err != nil {
		return err
	}
	if err := current.refreshMowers(); err != nil {
		return err
	}
	if err := op(name); err != nil {
		return current.report(failure, err)
	}
	current.printer.PrintSuccess(title, append([]ui.Detail{{Key: "Mower", Value: name}}, details...)...)
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
