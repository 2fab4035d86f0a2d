package core

// FireMode is the policy mapping a shot event to actuations.
type FireMode int32

const (
	SingleShot FireMode = iota
	BurstFire
	FullAuto
	HapticExperimental
)

// String returns the display name used in logs and status messages.
func (m FireMode) String() string {
	switch m {
	case SingleShot:
		return "SINGLE SHOT"
	case BurstFire:
		return "BURST FIRE"
	case FullAuto:
		return "FULL AUTO"
	case HapticExperimental:
		return "HAPTIC EXPERIMENTAL"
	default:
		return "UNKNOWN"
	}
}

// Name returns the wire name accepted in mode:<name> messages.
func (m FireMode) Name() string {
	switch m {
	case SingleShot:
		return "single"
	case BurstFire:
		return "burst"
	case FullAuto:
		return "auto"
	case HapticExperimental:
		return "experimental"
	default:
		return ""
	}
}

// FeedbackPulses is the number of light kicks that announce a switch
// to this mode. Experimental mode is selected from the GUI rather than
// the controller button and is not announced.
func (m FireMode) FeedbackPulses() int {
	switch m {
	case SingleShot:
		return 1
	case BurstFire:
		return 2
	case FullAuto:
		return 3
	default:
		return 0
	}
}

// ParseFireMode maps a wire name to a FireMode.
func ParseFireMode(name string) (FireMode, bool) {
	switch name {
	case "single":
		return SingleShot, true
	case "burst":
		return BurstFire, true
	case "auto":
		return FullAuto, true
	case "experimental":
		return HapticExperimental, true
	default:
		return SingleShot, false
	}
}
