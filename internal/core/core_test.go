package core

import (
	"testing"
	"time"
)

func TestParseFireMode(t *testing.T) {
	tests := []struct {
		name   string
		want   FireMode
		ok     bool
		pulses int
	}{
		{"single", SingleShot, true, 1},
		{"burst", BurstFire, true, 2},
		{"auto", FullAuto, true, 3},
		{"experimental", HapticExperimental, true, 0},
		{"AUTO", SingleShot, false, 1},
		{"", SingleShot, false, 1},
	}
	for _, tt := range tests {
		got, ok := ParseFireMode(tt.name)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseFireMode(%q) = %v, %v; want %v, %v", tt.name, got, ok, tt.want, tt.ok)
		}
		if ok && got.Name() != tt.name {
			t.Errorf("%v.Name() = %q, want %q", got, got.Name(), tt.name)
		}
		if got.FeedbackPulses() != tt.pulses {
			t.Errorf("%v.FeedbackPulses() = %d, want %d", got, got.FeedbackPulses(), tt.pulses)
		}
	}
}

func TestHandChannel(t *testing.T) {
	if Left.Channel() != 5 || Right.Channel() != 4 {
		t.Fatalf("channels = %d/%d, want 5/4", Left.Channel(), Right.Channel())
	}
	if FeedbackChannel != 4 {
		t.Fatalf("FeedbackChannel = %d, want 4", FeedbackChannel)
	}
}

func TestEventBusDeliversSubscribedTypes(t *testing.T) {
	bus := NewEventBus()
	sub := bus.Subscribe(ModeChangedEvent)

	bus.Publish(Event{Type: BatteryLevelEvent, Payload: BatteryLevel{Percent: 50, Known: true}})
	bus.Publish(Event{Type: ModeChangedEvent, Payload: ModeChanged{Mode: FullAuto}})

	select {
	case ev := <-sub:
		if ev.Type != ModeChangedEvent {
			t.Fatalf("got %s, want %s", ev.Type, ModeChangedEvent)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
	select {
	case ev := <-sub:
		t.Fatalf("unexpected event %s", ev.Type)
	default:
	}

	bus.Unsubscribe(sub, ModeChangedEvent)
	bus.Publish(Event{Type: ModeChangedEvent, Payload: ModeChanged{Mode: BurstFire}})
	select {
	case ev := <-sub:
		t.Fatalf("event after unsubscribe: %v", ev)
	default:
	}
}

func TestNilEventBusPublish(t *testing.T) {
	var bus *EventBus
	bus.Publish(Event{Type: ModeChangedEvent})
}

func TestStateApply(t *testing.T) {
	s := NewState()
	if snap := s.Snapshot(); snap.Mode != "single" || snap.BatteryKnown {
		t.Fatalf("initial snapshot = %+v", snap)
	}

	s.Apply(Event{Type: ModeChangedEvent, Payload: ModeChanged{Mode: BurstFire}})
	s.Apply(Event{Type: BatteryLevelEvent, Payload: BatteryLevel{Percent: 72, Known: true}})
	s.Apply(Event{Type: AutoFireEvent, Payload: AutoFireChanged{Hand: Left, Active: true}})
	s.Apply(Event{Type: SettingsReloadedEvent, Payload: SettingsReloaded{Version: 3}})

	snap := s.Snapshot()
	if snap.Mode != "burst" || snap.ModeName != "BURST FIRE" {
		t.Errorf("mode = %q/%q", snap.Mode, snap.ModeName)
	}
	if snap.BatteryPercent != 72 || !snap.BatteryKnown {
		t.Errorf("battery = %d/%v", snap.BatteryPercent, snap.BatteryKnown)
	}
	if !snap.AutoFireLeft || snap.AutoFireRight {
		t.Errorf("autofire = %v/%v", snap.AutoFireLeft, snap.AutoFireRight)
	}
	if snap.SettingsVersion != 3 {
		t.Errorf("settings version = %d", snap.SettingsVersion)
	}
}
