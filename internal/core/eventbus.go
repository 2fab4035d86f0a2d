package core

import "sync"

// EventType defines the type of event being published.
type EventType string

const (
	ModeChangedEvent      EventType = "ModeChanged"
	BatteryLevelEvent     EventType = "BatteryLevel"
	AutoFireEvent         EventType = "AutoFire"
	SettingsReloadedEvent EventType = "SettingsReloaded"
)

// Event is the envelope for all bridge events.
type Event struct {
	Type    EventType
	Payload interface{}
}

// ModeChanged is the payload of ModeChangedEvent.
type ModeChanged struct {
	Mode FireMode
}

// BatteryLevel is the payload of BatteryLevelEvent. Known is false when
// the device query failed and Percent holds the fallback value.
type BatteryLevel struct {
	Percent int
	Known   bool
}

// AutoFireChanged is the payload of AutoFireEvent.
type AutoFireChanged struct {
	Hand   Hand
	Active bool
}

// SettingsReloaded is the payload of SettingsReloadedEvent.
type SettingsReloaded struct {
	Version uint64
}

// Subscriber is a channel that receives events.
type Subscriber chan Event

// EventBus handles pub/sub messaging between bridge components.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
}

// NewEventBus creates a new EventBus.
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
	}
}

// Subscribe returns a channel that receives events of the given types.
func (eb *EventBus) Subscribe(eventTypes ...EventType) Subscriber {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(Subscriber, 100) // buffered so publishers on the fire path never block
	for _, t := range eventTypes {
		eb.subscribers[t] = append(eb.subscribers[t], ch)
	}

	return ch
}

// Unsubscribe removes a subscriber channel.
func (eb *EventBus) Unsubscribe(ch Subscriber, eventTypes ...EventType) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for _, t := range eventTypes {
		subs := eb.subscribers[t]
		for i, sub := range subs {
			if sub == ch {
				eb.subscribers[t] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
}

// Publish distributes an event to all subscribers for its type. A nil
// bus is valid and drops everything, so components can run without one.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, sub := range eb.subscribers[event.Type] {
		select {
		case sub <- event:
		default:
			// Subscriber is full; drop rather than stall the publisher.
		}
	}
}
