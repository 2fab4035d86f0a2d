package server

import "protube-bridge/internal/core"

// Command represents an incoming JSON command from a WebSocket client.
type Command struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

// Message represents an outgoing JSON message sent to WebSocket clients.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// NewMessage creates a new structured Message for broadcasting to clients.
func NewMessage(msgType string, payload interface{}) Message {
	return Message{Type: msgType, Payload: payload}
}

// EventMessage converts a bus event into the message clients receive.
// It reports false for events clients are not told about.
func EventMessage(event core.Event) (Message, bool) {
	switch p := event.Payload.(type) {
	case core.ModeChanged:
		return NewMessage("mode", map[string]interface{}{
			"mode":     p.Mode.Name(),
			"modeName": p.Mode.String(),
		}), true
	case core.BatteryLevel:
		return NewMessage("battery", map[string]interface{}{
			"percent": p.Percent,
			"known":   p.Known,
		}), true
	case core.AutoFireChanged:
		return NewMessage("autofire", map[string]interface{}{
			"hand":   p.Hand.String(),
			"active": p.Active,
		}), true
	case core.SettingsReloaded:
		return NewMessage("settings", map[string]interface{}{
			"version": p.Version,
		}), true
	}
	return Message{}, false
}
