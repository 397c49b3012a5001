package config

import "time"

// Registry represents the local mower registry file.
// It remembers the mowers seen on the account and user preferences.
type Registry struct {
	Version     int                    `yaml:"version"`
	Mowers      map[string]*MowerEntry `yaml:"mowers,omitempty"` // Keyed by mower id
	Preferences *Preferences           `yaml:"preferences,omitempty"`
}

// MowerEntry is the last known state of one mower.
type MowerEntry struct {
	Name         string    `yaml:"name"`               // Name set in the mower app
	Nickname     string    `yaml:"nickname,omitempty"` // Local alias accepted by the CLI
	Model        string    `yaml:"model,omitempty"`
	LastState    string    `yaml:"last_state,omitempty"`    // OK, OFF, ERROR, ...
	LastActivity string    `yaml:"last_activity,omitempty"` // MOWING, PARKED_IN_CS, ...
	LastBattery  *int      `yaml:"last_battery,omitempty"`  // Percent
	LastSeen     time.Time `yaml:"last_seen,omitempty"`     // Last time the API reported this mower
}

// Preferences represents CLI-wide user preferences.
type Preferences struct {
	DefaultStartMinutes int    `yaml:"default_start_minutes"`   // Duration used by "start" without --duration
	DefaultMower        string `yaml:"default_mower,omitempty"` // Name or nickname used when none is given
}

// DefaultStartMinutes matches the mowing duration of a plain start command.
const DefaultStartMinutes = 60

func defaultPreferences() *Preferences {
	return &Preferences{DefaultStartMinutes: DefaultStartMinutes}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Mowers:      make(map[string]*MowerEntry),
		Preferences: defaultPreferences(),
	}
}

// GetMower retrieves a mower entry by id.
// Returns nil if the mower doesn't exist in the registry.
func (r *Registry) GetMower(id string) *MowerEntry {
	return r.Mowers[id]
}

// EnsureMower ensures an entry exists for the mower id and returns it.
func (r *Registry) EnsureMower(id string) *MowerEntry {
	if r.Mowers == nil {
		r.Mowers = make(map[string]*MowerEntry)
	}

	if entry, exists := r.Mowers[id]; exists {
		return entry
	}

	entry := &MowerEntry{}
	r.Mowers[id] = entry
	return entry
}

// UpdateMowerSeen records that the API listed the mower under name.
func (r *Registry) UpdateMowerSeen(id, name, model string) {
	entry := r.EnsureMower(id)
	entry.Name = name
	if model != "" {
		entry.Model = model
	}
	entry.LastSeen = time.Now()
}

// RecordStatus stores the latest reported state of a mower.
func (r *Registry) RecordStatus(id, state, activity string, battery *int) {
	entry := r.EnsureMower(id)
	if state != "" {
		entry.LastState = state
	}
	if activity != "" {
		entry.LastActivity = activity
	}
	if battery != nil {
		b := *battery
		entry.LastBattery = &b
	}
	entry.LastSeen = time.Now()
}

// SetMowerNickname sets a local alias for a mower.
func (r *Registry) SetMowerNickname(id, nickname string) {
	entry := r.EnsureMower(id)
	entry.Nickname = nickname
}

// ResolveName maps a mower name or nickname to the name known by the API.
// Unknown input is returned unchanged with ok false.
func (r *Registry) ResolveName(input string) (name string, ok bool) {
	for _, entry := range r.Mowers {
		if entry.Name == input {
			return entry.Name, true
		}
	}
	for _, entry := range r.Mowers {
		if entry.Nickname != "" && entry.Nickname == input {
			return entry.Name, true
		}
	}
	return input, false
}

// NameForID returns the display name of a mower id, preferring the nickname.
func (r *Registry) NameForID(id string) string {
	entry := r.Mowers[id]
	switch {
	case entry == nil:
		return id
	case entry.Nickname != "":
		return entry.Nickname
	case entry.Name != "":
		return entry.Name
	default:
		return id
	}
}

// StartMinutes returns the preferred start duration.
func (r *Registry) StartMinutes() int {
	if r.Preferences == nil || r.Preferences.DefaultStartMinutes <= 0 {
		return DefaultStartMinutes
	}
	return r.Preferences.DefaultStartMinutes
}
