package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/muurk/mowerctl/internal/automower"
	"github.com/muurk/mowerctl/internal/config"
	"github.com/muurk/mowerctl/internal/events"
	"github.com/muurk/mowerctl/internal/logging"
	"github.com/muurk/mowerctl/internal/ui"
)

var plainOutput bool

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&plainOutput, "plain", false, "Print one line per event instead of the dashboard")
}

// watchCmd follows the live event stream
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow live mower events",
	Long: `Connect to the Automower event stream and show status, position and
settings changes as they happen.

On a terminal a live dashboard is shown; with --plain, or when output is not
a terminal, one line is printed per event. Press q or Ctrl+C to stop.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := current.refreshStatus(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracker := newEventTracker(current.rows(), current.registry)
	defer current.saveRegistry()

	endpoint := current.settings.EventsURL
	opts := []events.Option{
		events.WithURL(endpoint),
		events.WithLogger(logging.Named("events")),
	}

	var err error
	if plainOutput || !term.IsTerminal(int(os.Stdout.Fd())) {
		err = watchPlain(ctx, tracker, endpoint, opts)
	} else {
		err = watchDashboard(ctx, tracker, endpoint, opts)
	}
	if err != nil {
		return current.report("Event stream closed", err)
	}
	return nil
}

func watchPlain(ctx context.Context, tracker *eventTracker, endpoint string, opts []events.Option) error {
	p := current.printer
	p.PrintHeader("Event stream", "mowerctl watch", ui.Detail{Key: "Endpoint", Value: endpoint})

	opts = append(opts, events.WithOnConnect(func() {
		logging.LogConnection(endpoint, "connected")
		p.Println(ui.HintStyle.Render("Connected, waiting for events (Ctrl+C to stop)"))
	}))
	stream := events.NewStream(current.client.APIKey(), current.client.TokenSource(), opts...)

	err := stream.Run(ctx, func(ev events.Event) {
		if update, ok := tracker.apply(ev, time.Now()); ok {
			p.PrintEventLine(update.Line)
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func watchDashboard(ctx context.Context, tracker *eventTracker, endpoint string, opts []events.Option) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	header := ui.NewHeader("Event stream", "mowerctl watch", ui.Detail{Key: "Endpoint", Value: endpoint}).
		SetWidth(current.printer.Width()).
		String()
	program := tea.NewProgram(ui.NewWatchModel(header, tracker.rows()), tea.WithContext(ctx))

	opts = append(opts, events.WithOnConnect(func() {
		logging.LogConnection(endpoint, "connected")
		program.Send(ui.ConnectedMsg{})
	}))
	stream := events.NewStream(current.client.APIKey(), current.client.TokenSource(), opts...)

	done := make(chan struct{})
	go func() {
		defer close(done)
		err := stream.Run(ctx, func(ev events.Event) {
			if update, ok := tracker.apply(ev, time.Now()); ok {
				program.Send(update)
			}
		})
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		program.Send(ui.StreamClosedMsg{Err: err})
	}()

	final, runErr := program.Run()
	cancel()
	<-done

	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("dashboard failed: %w", runErr)
	}
	if m, ok := final.(ui.WatchModel); ok {
		return m.Err()
	}
	return nil
}

// eventTracker folds stream events into mower rows
type eventTracker struct {
	registry *config.Registry
	byID     map[string]ui.MowerRow
	order    []string
}

func newEventTracker(rows []ui.MowerRow, registry *config.Registry) *eventTracker {
	t := &eventTracker{
		registry: registry,
		byID:     make(map[string]ui.MowerRow, len(rows)),
	}
	for _, r := range rows {
		t.byID[r.ID] = r
		t.order = append(t.order, r.ID)
	}
	return t
}

func (t *eventTracker) rows() []ui.MowerRow {
	out := make([]ui.MowerRow, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.byID[id])
	}
	return out
}

// apply updates the row of ev's mower. ok is false for events that carry
// nothing to show.
func (t *eventTracker) apply(ev events.Event, now time.Time) (update ui.MowerUpdateMsg, ok bool) {
	logging.LogEvent(ev.Type, ev.ID, ev.Attributes)

	row, known := t.byID[ev.ID]
	if !known {
		row = ui.MowerRow{ID: ev.ID, Name: t.registry.NameForID(ev.ID)}
	}

	var summary string
	switch ev.Type {
	case events.TypeStatus:
		st, err := ev.Status()
		if err != nil {
			logging.Debug("Undecodable status event", zap.String("mower_id", ev.ID), zap.Error(err))
			return update, false
		}
		row.State = st.Mower.State
		row.Activity = st.Mower.Activity
		if st.Battery.BatteryPercent != nil {
			row.Battery = st.Battery.BatteryPercent
		}
		row.ErrorState = ""
		if row.State == string(automower.StateError) && st.Mower.ErrorCode != nil {
			row.ErrorState = automower.ErrorDescription(*st.Mower.ErrorCode)
		}
		t.registry.RecordStatus(ev.ID, row.State, row.Activity, row.Battery)
		summary = statusSummary(row)

	case events.TypePositions:
		positions, err := ev.Positions()
		if err != nil || len(positions) == 0 {
			return update, false
		}
		row.HasPosition = true
		row.Latitude = positions[0].Latitude
		row.Longitude = positions[0].Longitude
		summary = fmt.Sprintf("position %.5f, %.5f", row.Latitude, row.Longitude)

	case events.TypeSettings:
		s, err := ev.Settings()
		if err != nil {
			return update, false
		}
		var parts []string
		if s.CuttingHeight != nil {
			row.CuttingHeight = *s.CuttingHeight
			parts = append(parts, fmt.Sprintf("cutting height %d", row.CuttingHeight))
		}
		if s.Headlight != nil {
			row.Headlight = s.Headlight.Mode
			parts = append(parts, "headlight "+row.Headlight)
		}
		if len(parts) == 0 {
			return update, false
		}
		summary = strings.Join(parts, ", ")

	default:
		logging.Debug("Ignoring event", zap.String("type", ev.Type), zap.String("mower_id", ev.ID))
		return update, false
	}

	if !known {
		t.order = append(t.order, ev.ID)
	}
	t.byID[ev.ID] = row

	return ui.MowerUpdateMsg{
		Row: row,
		Line: ui.EventLine{
			Time:    now,
			Mower:   row.DisplayName(),
			Type:    ev.Type,
			Summary: summary,
		},
	}, true
}

func statusSummary(row ui.MowerRow) string {
	parts := []string{row.Activity, row.State}
	if row.Battery != nil {
		parts = append(parts, fmt.Sprintf("battery %d%%", *row.Battery))
	}
	if row.ErrorState != "" {
		parts = append(parts, row.ErrorState)
	}
	return strings.Join(parts, ", ")
}
