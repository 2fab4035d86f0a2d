package core

import "sync"

// State holds the bridge status shown to external clients. It is
// derived from bus events and never consulted on the fire path.
type State struct {
	mu              sync.RWMutex
	mode            FireMode
	batteryPercent  int
	batteryKnown    bool
	autoFire        [HandCount]bool
	settingsVersion uint64
}

// Snapshot is a point-in-time copy of State.
type Snapshot struct {
	Mode            string `json:"mode"`
	ModeName        string `json:"modeName"`
	BatteryPercent  int    `json:"batteryPercent"`
	BatteryKnown    bool   `json:"batteryKnown"`
	AutoFireLeft    bool   `json:"autoFireLeft"`
	AutoFireRight   bool   `json:"autoFireRight"`
	SettingsVersion uint64 `json:"settingsVersion"`
}

// NewState creates a State with the default mode and an unknown battery.
func NewState() *State {
	return &State{mode: SingleShot, batteryPercent: -1}
}

// Snapshot returns a copy of the current state for safe reading.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Mode:            s.mode.Name(),
		ModeName:        s.mode.String(),
		BatteryPercent:  s.batteryPercent,
		BatteryKnown:    s.batteryKnown,
		AutoFireLeft:    s.autoFire[Left],
		AutoFireRight:   s.autoFire[Right],
		SettingsVersion: s.settingsVersion,
	}
}

// Apply folds a bus event into the state. Unrelated events are ignored.
func (s *State) Apply(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch p := event.Payload.(type) {
	case ModeChanged:
		s.mode = p.Mode
	case BatteryLevel:
		s.batteryPercent = p.Percent
		s.batteryKnown = p.Known
	case AutoFireChanged:
		if p.Hand.Valid() {
			s.autoFire[p.Hand] = p.Active
		}
	case SettingsReloaded:
		s.settingsVersion = p.Version
	}
}
