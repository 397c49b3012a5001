package events

import (
	"encoding/json"
	"fmt"
)

// Event types published by the stream
const (
	TypeStatus    = "status-event"
	TypePositions = "positions-event"
	TypeSettings  = "settings-event"
)

// Event is one message of the stream. ID is the mower id.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Attributes json.RawMessage `json:"attributes"`
}

// Status carries the attributes of a status-event
type Status struct {
	Battery struct {
		BatteryPercent *int `json:"batteryPercent"`
	} `json:"battery"`
	Mower struct {
		Mode      string `json:"mode"`
		Activity  string `json:"activity"`
		State     string `json:"state"`
		ErrorCode *int   `json:"errorCode"`
	} `json:"mower"`
}

// Position is one GPS fix of a positions-event
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Settings carries the attributes of a settings-event
type Settings struct {
	CuttingHeight *int `json:"cuttingHeight"`
	Headlight     *struct {
		Mode string `json:"mode"`
	} `json:"headlight"`
}

// Status decodes the attributes of a status-event
func (e Event) Status() (*Status, error) {
	var st Status
	if err := e.decode(TypeStatus, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Positions decodes the attributes of a positions-event, newest first
func (e Event) Positions() ([]Position, error) {
	var attrs struct {
		Positions []Position `json:"positions"`
	}
	if err := e.decode(TypePositions, &attrs); err != nil {
		return nil, err
	}
	return attrs.Positions, nil
}

// Settings decodes the attributes of a settings-event
func (e Event) Settings() (*Settings, error) {
	var s Settings
	if err := e.decode(TypeSettings, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (e Event) decode(want string, v any) error {
	if e.Type != want {
		return fmt.Errorf("event type is %q, not %q", e.Type, want)
	}
	if len(e.Attributes) == 0 {
		return fmt.Errorf("%s for mower %s has no attributes", e.Type, e.ID)
	}
	if err := json.Unmarshal(e.Attributes, v); err != nil {
		return fmt.Errorf("failed to decode %s attributes: %w", e.Type, err)
	}
	return nil
}
