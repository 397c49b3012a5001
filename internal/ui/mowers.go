package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// MowerRow is the printable view of one mower
type MowerRow struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Nickname      string  `json:"nickname,omitempty"`
	Model         string  `json:"model"`
	State         string  `json:"state,omitempty"`
	Activity      string  `json:"activity,omitempty"`
	Battery       *int    `json:"battery,omitempty"`
	CuttingHeight int     `json:"cuttingHeight,omitempty"`
	Headlight     string  `json:"headlight,omitempty"`
	ErrorState    string  `json:"errorState,omitempty"`
	Latitude      float64 `json:"latitude,omitempty"`
	Longitude     float64 `json:"longitude,omitempty"`
	HasPosition   bool    `json:"-"`
}

// DisplayName returns "Name (nickname)" when a nickname is set
func (r MowerRow) DisplayName() string {
	if r.Nickname != "" && r.Nickname != r.Name {
		return fmt.Sprintf("%s (%s)", r.Name, r.Nickname)
	}
	return r.Name
}

// RenderTable renders rows under headers in a rounded table
func RenderTable(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(PrimaryColor)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			return TableCellStyle
		})
	for _, r := range rows {
		t.Row(r...)
	}
	return t.String()
}

// RenderMowerList renders the mowers known to the account
func RenderMowerList(rows []MowerRow) string {
	if len(rows) == 0 {
		return HintStyle.Render("  No mowers on this account.")
	}
	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, []string{r.DisplayName(), r.Model, r.ID})
	}
	return RenderTable([]string{"NAME", "MODEL", "ID"}, cells)
}

// RenderMowerStatus renders the status table of several mowers
func RenderMowerStatus(rows []MowerRow) string {
	if len(rows) == 0 {
		return HintStyle.Render("  No mowers on this account.")
	}
	battery := NewBattery()
	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		state := r.State
		if r.ErrorState != "" {
			state += ": " + r.ErrorState
		}
		cells = append(cells, []string{
			r.DisplayName(),
			StateStyle(r.State).Render(orDash(state)),
			orDash(r.Activity),
			battery.Render(r.Battery),
			heightText(r.CuttingHeight),
			orDash(r.Headlight),
		})
	}
	return RenderTable([]string{"NAME", "STATE", "ACTIVITY", "BATTERY", "HEIGHT", "HEADLIGHT"}, cells)
}

// MowerCard builds a result box describing one mower in detail
func MowerCard(r MowerRow) *Result {
	details := []Detail{
		{Key: "Model", Value: orDash(r.Model)},
		{Key: "State", Value: StateStyle(r.State).Render(orDash(r.State))},
		{Key: "Activity", Value: orDash(r.Activity)},
		{Key: "Battery", Value: NewBattery().Render(r.Battery)},
		{Key: "Cutting height", Value: heightText(r.CuttingHeight)},
		{Key: "Headlight", Value: orDash(r.Headlight)},
	}
	if r.HasPosition {
		details = append(details, Detail{Key: "Position", Value: fmt.Sprintf("%.5f, %.5f", r.Latitude, r.Longitude)})
	}

	if r.ErrorState != "" {
		details = append(details, Detail{Key: "Error", Value: ErrorMessageStyle.Render(r.ErrorState)})
		return NewWarningResult(r.DisplayName(), details...)
	}
	return NewSuccessResult(r.DisplayName(), details...)
}

func heightText(h int) string {
	if h <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d", h)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
