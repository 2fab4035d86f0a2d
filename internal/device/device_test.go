package device

import (
	"errors"
	"testing"
)

func TestPercentToRawEndpointsAndMonotonic(t *testing.T) {
	if got := PercentToRaw(0); got != 0 {
		t.Fatalf("PercentToRaw(0) = %d, want 0", got)
	}
	if got := PercentToRaw(100); got != 255 {
		t.Fatalf("PercentToRaw(100) = %d, want 255", got)
	}
	prev := PercentToRaw(0)
	for p := 1; p <= 100; p++ {
		got := PercentToRaw(p)
		if got < prev {
			t.Fatalf("PercentToRaw(%d) = %d < PercentToRaw(%d) = %d", p, got, p-1, prev)
		}
		prev = got
	}
}

func TestPercentToRawClamps(t *testing.T) {
	if got := PercentToRaw(-20); got != 0 {
		t.Errorf("PercentToRaw(-20) = %d, want 0", got)
	}
	if got := PercentToRaw(180); got != 255 {
		t.Errorf("PercentToRaw(180) = %d, want 255", got)
	}
	if got := PercentToRaw(47); got != 119 {
		t.Errorf("PercentToRaw(47) = %d, want 119", got)
	}
}

func TestNewCommand(t *testing.T) {
	cmd := NewCommand(100, 47, 100, 4)
	want := Command{Kick: 255, Rumble: 119, DurationMs: 100, Channel: 4}
	if cmd != want {
		t.Fatalf("NewCommand = %+v, want %+v", cmd, want)
	}
}

type countingPort struct{ n int }

func (p *countingPort) Actuate(Command) error           { p.n++; return nil }
func (p *countingPort) QueryBattery(uint8) (int, error) { return 80, nil }
func (p *countingPort) BatterySupported() bool          { return true }

func TestThrottleRejectsBeyondBurst(t *testing.T) {
	inner := &countingPort{}
	port := Throttle(inner, 0.001, 3)

	var throttled int
	for i := 0; i < 5; i++ {
		if err := port.Actuate(Command{Channel: 4}); err != nil {
			if !errors.Is(err, ErrThrottled) {
				t.Fatalf("Actuate error = %v, want ErrThrottled", err)
			}
			throttled++
		}
	}
	if inner.n != 3 || throttled != 2 {
		t.Fatalf("forwarded %d, throttled %d; want 3, 2", inner.n, throttled)
	}
	if got := port.(*Throttled).Dropped(); got != 2 {
		t.Fatalf("Dropped() = %d, want 2", got)
	}

	level, err := port.QueryBattery(4)
	if err != nil || level != 80 || !port.BatterySupported() {
		t.Fatalf("battery passthrough = %d, %v", level, err)
	}
}

func TestThrottleDisabled(t *testing.T) {
	inner := &countingPort{}
	if port := Throttle(inner, 0, 10); port != Port(inner) {
		t.Fatal("Throttle with zero limit should return the port unchanged")
	}
}

func TestLogSink(t *testing.T) {
	sink := NewLogSink()
	if err := sink.Actuate(Command{Kick: 1, DurationMs: 5, Channel: 4}); err != nil {
		t.Fatalf("Actuate: %v", err)
	}
	if sink.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", sink.Count())
	}
	if level, err := sink.QueryBattery(4); err != nil || level != 100 {
		t.Fatalf("QueryBattery = %d, %v", level, err)
	}
}
