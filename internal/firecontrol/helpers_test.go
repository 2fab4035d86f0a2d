package firecontrol

import (
	"sync"
	"testing"
	"time"

	"protube-bridge/internal/clock"
	"protube-bridge/internal/config"
	"protube-bridge/internal/device/devicetest"
)

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// fakeSettings is a mutable SettingsSource.
type fakeSettings struct {
	mu sync.Mutex
	s  config.Settings
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{s: config.DefaultSettings()}
}

func (f *fakeSettings) Get() config.Settings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s
}

func (f *fakeSettings) update(fn func(*config.Settings)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.s)
}

type fixture struct {
	clock    *clock.FakeClock
	settings *fakeSettings
	device   *devicetest.Recorder
	d        *Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.Fake(epoch)
	settings := newFakeSettings()
	rec := devicetest.NewRecorder(clk.Now)
	d := NewDispatcher(rec, settings, clk, nil)
	t.Cleanup(d.Close)
	return &fixture{clock: clk, settings: settings, device: rec, d: d}
}

// drive runs fn in a goroutine and advances the fake clock in steps
// whenever something is waiting on it, until fn returns.
func drive(t *testing.T, clk *clock.FakeClock, fn func()) {
	t.Helper()
	const step = 5 * time.Millisecond

	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-done:
			return
		case <-deadline:
			t.Fatal("timed out driving the fake clock")
		default:
		}
		if clk.PendingCount() > 0 {
			clk.Advance(step)
		} else {
			time.Sleep(100 * time.Microsecond)
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
