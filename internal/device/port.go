// Package device is the narrow boundary to the haptic hardware: one
// actuation call and a battery query.
package device

import "errors"

var (
	// ErrUnsupportedPlatform is returned when the vendor API cannot be
	// loaded on this operating system.
	ErrUnsupportedPlatform = errors.New("device: vendor API not available on this platform")

	// ErrBatteryUnsupported is returned by QueryBattery when the loaded
	// API has no battery function.
	ErrBatteryUnsupported = errors.New("device: battery query not supported")

	// ErrThrottled is returned when an actuation exceeds the rate ceiling.
	ErrThrottled = errors.New("device: actuation rate exceeded")
)

// Command is a single kick+rumble pulse on one channel.
type Command struct {
	Kick       uint8
	Rumble     uint8
	DurationMs uint32
	Channel    uint8
}

// Port is the actuation sink. Actuate is synchronous and fast compared
// to fire-mode timing; callers log its errors and carry on.
type Port interface {
	Actuate(cmd Command) error
	QueryBattery(channel uint8) (int, error)
	// BatterySupported is checked once at startup; when false the
	// battery poller is never started.
	BatterySupported() bool
}

// PercentToRaw maps a 0-100 percentage onto the device's 0-255 range.
// Values outside 0-100 are clamped. raw(0) is 0 and raw(100) is 255.
func PercentToRaw(percent int) uint8 {
	if percent <= 0 {
		return 0
	}
	if percent >= 100 {
		return 255
	}
	return uint8(percent * 255 / 100)
}

// NewCommand builds a Command from percentages and a duration in ms.
func NewCommand(kickPercent, rumblePercent, durationMs int, channel uint8) Command {
	if durationMs < 0 {
		durationMs = 0
	}
	return Command{
		Kick:       PercentToRaw(kickPercent),
		Rumble:     PercentToRaw(rumblePercent),
		DurationMs: uint32(durationMs),
		Channel:    channel,
	}
}
