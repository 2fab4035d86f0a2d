package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/jsonc"

	"protube-bridge/internal/core"
)

// DriverMode is the haptic source selected in the GUI. It only affects
// the upstream driver (via the driver config file) and the latency cap.
type DriverMode string

const (
	DriverTrigger             DriverMode = "Trigger"
	DriverHapticFiltered      DriverMode = "Haptic Filtered"
	DriverHapticExperimentalA DriverMode = "Haptic Experimental A"
	DriverHapticExperimentalB DriverMode = "Haptic Experimental B"
)

const (
	maxLatencyMs             = 100
	maxExperimentalLatencyMs = 10
	defaultFilterWindowMs    = 60
	percentMin, percentMax   = 0, 100
)

// Ranges offered by the settings GUI. Hand-edited values outside them
// are clamped so a burst can never hold the receive loop for long.
const (
	durationMinMs, durationMaxMs = 10, 200
	burstCountMin, burstCountMax = 1, 5
	autoRateMinMs, autoRateMaxMs = 30, 150
)

// DriverName is the mode name written to the driver config file.
func (m DriverMode) DriverName() string {
	switch m {
	case DriverTrigger:
		return "trigger"
	case DriverHapticExperimentalA:
		return "haptic_experimental_a"
	case DriverHapticExperimentalB:
		return "haptic_experimental_b"
	default:
		return "haptic_filtered"
	}
}

// Experimental reports whether m is one of the experimental sources.
func (m DriverMode) Experimental() bool {
	return m == DriverHapticExperimentalA || m == DriverHapticExperimentalB
}

func (m DriverMode) known() bool {
	switch m {
	case DriverTrigger, DriverHapticFiltered, DriverHapticExperimentalA, DriverHapticExperimentalB:
		return true
	}
	return false
}

// Settings is an immutable snapshot of the GUI-tunable parameters. The
// JSON keys match the file written by the settings GUI.
type Settings struct {
	ModeSelect      DriverMode `json:"mode_select"`
	Feedback        bool       `json:"feedback"`
	IgnoreLeftHand  bool       `json:"ignore_left_hand"`
	IgnoreRightHand bool       `json:"ignore_right_hand"`
	Latency         int        `json:"latency"`
	FilterWindowMs  int        `json:"filter_window_ms"`

	SingleKick     int `json:"single_kick"`
	SingleRumble   int `json:"single_rumble"`
	SingleDuration int `json:"single_duration"`

	BurstKick     int `json:"burst_kick"`
	BurstRumble   int `json:"burst_rumble"`
	BurstDuration int `json:"burst_duration"`
	BurstCount    int `json:"burst_count"`

	AutoKick     int `json:"auto_kick"`
	AutoRumble   int `json:"auto_rumble"`
	AutoDuration int `json:"auto_duration"`
	AutoRate     int `json:"auto_rate"`

	// Version is 0 for the built-in defaults and increases with every
	// successful reload.
	Version uint64    `json:"-"`
	ModTime time.Time `json:"-"`
}

// Tuple is the kick/rumble/duration triple of one fire mode.
type Tuple struct {
	KickPercent   int
	RumblePercent int
	DurationMs    int
}

// DefaultSettings returns the values used until a settings file is read.
func DefaultSettings() Settings {
	return Settings{
		ModeSelect:     DriverHapticFiltered,
		Feedback:       true,
		Latency:        0,
		FilterWindowMs: defaultFilterWindowMs,
		SingleKick:     100,
		SingleRumble:   47,
		SingleDuration: 100,
		BurstKick:      100,
		BurstRumble:    47,
		BurstDuration:  100,
		BurstCount:     3,
		AutoKick:       100,
		AutoRumble:     47,
		AutoDuration:   100,
		AutoRate:       60,
	}
}

// ParseSettings decodes a settings document. Keys missing from data keep
// their defaults, unknown keys are ignored and out-of-range values are
// clamped. Comments and trailing commas are tolerated.
func ParseSettings(data []byte) (Settings, error) {
	s := DefaultSettings()
	if err := json.Unmarshal(jsonc.ToJSON(data), &s); err != nil {
		return Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	s.sanitize()
	return s, nil
}

func (s *Settings) sanitize() {
	s.ModeSelect = DriverMode(strings.TrimSpace(string(s.ModeSelect)))
	if !s.ModeSelect.known() {
		s.ModeSelect = DriverHapticFiltered
	}

	maxLatency := maxLatencyMs
	if s.ModeSelect.Experimental() {
		maxLatency = maxExperimentalLatencyMs
	}
	s.Latency = clamp(s.Latency, 0, maxLatency)

	if s.FilterWindowMs <= 0 {
		s.FilterWindowMs = defaultFilterWindowMs
	}

	for _, p := range []*int{
		&s.SingleKick, &s.SingleRumble,
		&s.BurstKick, &s.BurstRumble,
		&s.AutoKick, &s.AutoRumble,
	} {
		*p = clamp(*p, percentMin, percentMax)
	}
	for _, p := range []*int{&s.SingleDuration, &s.BurstDuration, &s.AutoDuration} {
		*p = clamp(*p, durationMinMs, durationMaxMs)
	}
	s.BurstCount = clamp(s.BurstCount, burstCountMin, burstCountMax)
	s.AutoRate = clamp(s.AutoRate, autoRateMinMs, autoRateMaxMs)
}

// Tuple returns the actuation parameters for mode. Experimental mode
// reuses the single-shot tuple.
func (s Settings) Tuple(mode core.FireMode) Tuple {
	switch mode {
	case core.BurstFire:
		return Tuple{s.BurstKick, s.BurstRumble, s.BurstDuration}
	case core.FullAuto:
		return Tuple{s.AutoKick, s.AutoRumble, s.AutoDuration}
	default:
		return Tuple{s.SingleKick, s.SingleRumble, s.SingleDuration}
	}
}

// IgnoreHand reports whether events for h must be dropped.
func (s Settings) IgnoreHand(h core.Hand) bool {
	if h == core.Left {
		return s.IgnoreLeftHand
	}
	return s.IgnoreRightHand
}

// LatencyDelay is the latency compensation applied before every shot.
func (s Settings) LatencyDelay() time.Duration {
	return time.Duration(s.Latency) * time.Millisecond
}

// AutoFireInterval is the spacing between full-auto shots. Bursts use
// the same spacing.
func (s Settings) AutoFireInterval() time.Duration {
	return time.Duration(s.AutoRate) * time.Millisecond
}

// Summary renders the settings for the reload log line.
func (s Settings) Summary() string {
	return fmt.Sprintf("mode=%q feedback=%v latency=%dms single=%d/%d/%dms burst=%d/%d/%dms x%d auto=%d/%d/%dms every %dms",
		s.ModeSelect, s.Feedback, s.Latency,
		s.SingleKick, s.SingleRumble, s.SingleDuration,
		s.BurstKick, s.BurstRumble, s.BurstDuration, s.BurstCount,
		s.AutoKick, s.AutoRumble, s.AutoDuration, s.AutoRate)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
