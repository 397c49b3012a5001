package automower

// MowerState is the overall state reported by a mower
type MowerState string

const (
	StateOff     MowerState = "OFF"
	StateOK      MowerState = "OK"
	StateError   MowerState = "ERROR"
	StateWarning MowerState = "WARNING"
)

// Action is a command accepted by the actions endpoint
type Action string

const (
	ActionParkUntilNextSchedule  Action = "ParkUntilNextSchedule"
	ActionParkUntilFurtherNotice Action = "ParkUntilFurtherNotice"
	ActionResumeSchedule         Action = "ResumeSchedule"
	ActionStart                  Action = "Start"
	ActionPause                  Action = "Pause"
)

// Valid reports whether a is one of the known actions
func (a Action) Valid() bool {
	switch a {
	case ActionParkUntilNextSchedule, ActionParkUntilFurtherNotice,
		ActionResumeSchedule, ActionStart, ActionPause:
		return true
	}
	return false
}

// Headlight modes
const (
	HeadlightAlwaysOn  = "ALWAYS_ON"
	HeadlightAlwaysOff = "ALWAYS_OFF"
)

const (
	// DefaultStartDuration is the mowing duration in minutes used by Start
	DefaultStartDuration = 60

	// MinCuttingHeight and MaxCuttingHeight bound the settings endpoint's height level
	MinCuttingHeight = 1
	MaxCuttingHeight = 9
)

// Position is a GPS fix reported by the mower
type Position struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// Mower is the local record kept for each mower on the account.
// Detail fields are zero until GetMowersInfo has run.
type Mower struct {
	ID             string
	Name           string
	Model          string
	BatteryPercent *int
	Activity       string
	State          MowerState
	Location       *Position
	CuttingHeight  int
	Headlight      string
	ErrorCode      *int
	ErrorState     string // description of ErrorCode while State is ERROR
}

// IsOff reports whether the mower is switched off
func (m *Mower) IsOff() bool {
	return m.State == StateOff
}

// Wire formats of the mower endpoints (JSON:API documents)

type mowerListDocument struct {
	Data []mowerResource `json:"data"`
}

type mowerDocument struct {
	Data *mowerResource `json:"data"`
}

type mowerResource struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Attributes mowerAttributes `json:"attributes"`
}

type mowerAttributes struct {
	System struct {
		Name         string `json:"name"`
		Model        string `json:"model"`
		SerialNumber int64  `json:"serialNumber"`
	} `json:"system"`
	Battery struct {
		BatteryPercent *int `json:"batteryPercent"`
	} `json:"battery"`
	Mower struct {
		Mode      string     `json:"mode"`
		Activity  string     `json:"activity"`
		State     MowerState `json:"state"`
		ErrorCode *int       `json:"errorCode"`
	} `json:"mower"`
	Positions []Position `json:"positions"`
	Settings  struct {
		CuttingHeight int `json:"cuttingHeight"`
		Headlight     struct {
			Mode string `json:"mode"`
		} `json:"headlight"`
	} `json:"settings"`
}

type actionRequest struct {
	Data actionData `json:"data"`
}

type actionData struct {
	Type       Action            `json:"type"`
	Attributes *actionAttributes `json:"attributes,omitempty"`
}

type actionAttributes struct {
	Duration int `json:"duration"`
}

type settingsRequest struct {
	Data settingsData `json:"data"`
}

type settingsData struct {
	Type       string             `json:"type"`
	Attributes settingsAttributes `json:"attributes"`
}

type settingsAttributes struct {
	CuttingHeight *int              `json:"cuttingHeight,omitempty"`
	Headlight     *headlightSetting `json:"headlight,omitempty"`
}

type headlightSetting struct {
	Mode string `json:"mode"`
}

func newActionRequest(action Action, duration int) *actionRequest {
	req := &actionRequest{Data: actionData{Type: action}}
	if action == ActionStart {
		req.Data.Attributes = &actionAttributes{Duration: duration}
	}
	return req
}

func newSettingsRequest(attrs settingsAttributes) *settingsRequest {
	return &settingsRequest{Data: settingsData{Type: "settings", Attributes: attrs}}
}

// applyDetail copies the detail fields of res into m
func (m *Mower) applyDetail(res *mowerResource) {
	attrs := res.Attributes
	m.Model = attrs.System.Model
	m.BatteryPercent = attrs.Battery.BatteryPercent
	m.Activity = attrs.Mower.Activity
	m.State = attrs.Mower.State
	m.CuttingHeight = attrs.Settings.CuttingHeight
	m.Headlight = attrs.Settings.Headlight.Mode

	m.Location = nil
	if len(attrs.Positions) > 0 {
		pos := attrs.Positions[0]
		m.Location = &pos
	}

	m.ErrorCode = attrs.Mower.ErrorCode
	m.ErrorState = ""
	if m.State == StateError && m.ErrorCode != nil {
		m.ErrorState = ErrorDescription(*m.ErrorCode)
	}
}
