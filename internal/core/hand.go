package core

// Hand identifies one of the two haptic modules on the gun stock.
type Hand int

const (
	Left Hand = iota
	Right
)

// HandCount is the number of hands; per-hand state is stored in arrays
// of this size indexed by Hand.
const HandCount = 2

// Device channels. The mode selector button sits on the right
// controller, so mode feedback is always sent to the right channel.
const (
	RightChannel    uint8 = 4
	LeftChannel     uint8 = 5
	FeedbackChannel       = RightChannel
)

// Hands lists every hand in index order.
var Hands = [HandCount]Hand{Left, Right}

func (h Hand) String() string {
	switch h {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "unknown"
	}
}

// Channel returns the device channel driving this hand.
func (h Hand) Channel() uint8 {
	if h == Left {
		return LeftChannel
	}
	return RightChannel
}

// Valid reports whether h is Left or Right.
func (h Hand) Valid() bool {
	return h == Left || h == Right
}
