// Package ingest receives the upstream driver's UDP datagrams and routes
// them to the fire-mode dispatcher.
package ingest

import (
	"strings"
	"unicode/utf8"

	"protube-bridge/internal/core"
)

// Kind tags an inbound Message.
type Kind int

const (
	KindUnknown Kind = iota
	KindModeChange
	KindTriggerState
	KindShot
	// KindIgnored marks debug traffic that is dropped silently.
	KindIgnored
)

func (k Kind) String() string {
	switch k {
	case KindModeChange:
		return "mode"
	case KindTriggerState:
		return "trigger"
	case KindShot:
		return "shot"
	case KindIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Message is one parsed datagram. Mode is set for KindModeChange, Hand
// for KindTriggerState and KindShot, Pressed for KindTriggerState.
type Message struct {
	Kind    Kind
	Mode    string
	Hand    core.Hand
	Pressed bool
	Raw     string
}

const (
	modePrefix    = "mode:"
	triggerPrefix = "trigger_"
	debugPrefix   = "duration:"
)

// Parse decodes a datagram payload.
//
// The upstream driver names sides from the headset's point of view,
// which is mirrored with respect to the gun stock, so every side is
// swapped here: "right" in a message means the Left hand.
func Parse(raw string) Message {
	if !utf8.ValidString(raw) {
		return Message{Kind: KindUnknown, Raw: raw}
	}
	text := strings.TrimSpace(raw)

	switch {
	case strings.HasPrefix(text, modePrefix):
		return Message{Kind: KindModeChange, Mode: strings.TrimSpace(strings.TrimPrefix(text, modePrefix)), Raw: text}

	case strings.HasPrefix(text, triggerPrefix):
		side, state, ok := strings.Cut(strings.TrimPrefix(text, triggerPrefix), ":")
		if !ok {
			break
		}
		hand, ok := swappedHand(side)
		if !ok {
			break
		}
		switch state {
		case "1":
			return Message{Kind: KindTriggerState, Hand: hand, Pressed: true, Raw: text}
		case "0":
			return Message{Kind: KindTriggerState, Hand: hand, Pressed: false, Raw: text}
		}

	case text == "shot_right":
		return Message{Kind: KindShot, Hand: core.Left, Raw: text}

	case text == "shot_left":
		return Message{Kind: KindShot, Hand: core.Right, Raw: text}

	case strings.HasPrefix(text, debugPrefix):
		return Message{Kind: KindIgnored, Raw: text}
	}

	return Message{Kind: KindUnknown, Raw: text}
}

func swappedHand(side string) (core.Hand, bool) {
	switch side {
	case "right":
		return core.Left, true
	case "left":
		return core.Right, true
	default:
		return core.Left, false
	}
}
