// Package firecontrol turns shot and trigger events into actuations
// according to the selected fire mode.
package firecontrol

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"protube-bridge/internal/clock"
	"protube-bridge/internal/config"
	"protube-bridge/internal/core"
	"protube-bridge/internal/device"
)

// Mode-change feedback: a train of barely perceptible kicks on the
// right hand, where the mode button is.
const (
	FeedbackSpacing = 175 * time.Millisecond
	feedbackKick    = 1
	feedbackMs      = 5
)

// Dispatcher is the fire-mode state machine.
//
// HandleTriggerState and HandleShot are called from the single ingest
// goroutine. HandleModeChange may also come from the status server and
// MQTT; mode changes are serialized so feedback trains never overlap.
// Mode and the hand accessors may be read from anywhere.
//
// After Close returns no further actuation reaches the port: waits in
// flight are cut short and later calls are dropped.
type Dispatcher struct {
	port     device.Port
	settings SettingsSource
	clock    clock.Clock
	bus      *core.EventBus

	mode   atomic.Int32
	modeMu sync.Mutex
	hands  [core.HandCount]HandState
	gate   *CooldownGate
	auto   *AutoFire

	portMu    sync.RWMutex
	closed    bool
	done      chan struct{}
	closeOnce sync.Once
}

// NewDispatcher creates a Dispatcher in SingleShot mode. bus may be nil.
func NewDispatcher(port device.Port, settings SettingsSource, clk clock.Clock, bus *core.EventBus) *Dispatcher {
	d := &Dispatcher{
		port:     port,
		settings: settings,
		clock:    clk,
		bus:      bus,
		gate:     NewCooldownGate(),
		done:     make(chan struct{}),
	}
	d.mode.Store(int32(core.SingleShot))
	d.auto = NewAutoFire(port, settings, clk, bus, &d.hands)
	return d
}

// Mode returns the active fire mode.
func (d *Dispatcher) Mode() core.FireMode {
	return core.FireMode(d.mode.Load())
}

// TriggerHeld reports whether the trigger of h is held.
func (d *Dispatcher) TriggerHeld(h core.Hand) bool {
	return h.Valid() && d.hands[h].TriggerHeld()
}

// AutoFireActive reports whether an auto-fire task runs for h.
func (d *Dispatcher) AutoFireActive(h core.Hand) bool {
	return h.Valid() && d.hands[h].AutoFireActive()
}

// HandleModeChange switches to the mode called name and plays the
// feedback pulse train for it. Unknown names are ignored and reported
// as false.
func (d *Dispatcher) HandleModeChange(name string) bool {
	mode, ok := core.ParseFireMode(name)
	if !ok {
		log.Printf("[FireControl] Ignoring unknown mode %q", name)
		return false
	}

	d.modeMu.Lock()
	defer d.modeMu.Unlock()

	d.mode.Store(int32(mode))
	log.Printf("[FireControl] Mode changed: %s", mode)
	d.bus.Publish(core.Event{Type: core.ModeChangedEvent, Payload: core.ModeChanged{Mode: mode}})

	d.sendFeedback(mode.FeedbackPulses())
	return true
}

func (d *Dispatcher) sendFeedback(pulses int) {
	if pulses <= 0 {
		return
	}
	if !d.settings.Get().Feedback {
		log.Println("[FireControl] Mode feedback disabled in settings")
		return
	}

	cmd := device.Command{Kick: feedbackKick, Rumble: 0, DurationMs: feedbackMs, Channel: core.FeedbackChannel}
	for i := 0; i < pulses; i++ {
		d.actuate(cmd)
		if i < pulses-1 && !d.wait(FeedbackSpacing) {
			return
		}
	}
}

// HandleTriggerState records the trigger of h. Releasing a held trigger
// cancels the hand's auto-fire task.
func (d *Dispatcher) HandleTriggerState(h core.Hand, pressed bool) {
	if !h.Valid() {
		return
	}
	st := &d.hands[h]
	wasHeld := st.triggerHeld.Swap(pressed)
	if wasHeld && !pressed && st.AutoFireActive() {
		d.auto.Cancel(h)
	}
}

// HandleShot applies the latency compensation and fires according to
// the active mode. It blocks for the latency and, in burst mode, for
// the spacing between rounds.
func (d *Dispatcher) HandleShot(h core.Hand, channel uint8) {
	if !h.Valid() {
		return
	}

	s := d.settings.Get()
	if delay := s.LatencyDelay(); delay > 0 && !d.wait(delay) {
		return
	}

	switch mode := d.Mode(); mode {
	case core.SingleShot:
		d.fire(s.Tuple(core.SingleShot), channel)
		log.Printf("[FireControl] Single: %s hand", h)

	case core.BurstFire:
		if !d.gate.TryAcquire(h, d.clock.Now()) {
			log.Printf("[FireControl] Burst cooldown: %s hand too soon, ignoring", h)
			return
		}
		t := s.Tuple(core.BurstFire)
		interval := s.AutoFireInterval()
		for i := 0; i < s.BurstCount; i++ {
			d.fire(t, channel)
			if i < s.BurstCount-1 && !d.wait(interval) {
				log.Printf("[FireControl] Burst interrupted after %d rounds (%s hand)", i+1, h)
				return
			}
		}
		log.Printf("[FireControl] Burst: %d rounds (%s hand)", s.BurstCount, h)

	case core.FullAuto:
		// A shot only starts continuous fire; the task runs until the
		// trigger is released.
		d.auto.Start(h, channel)

	case core.HapticExperimental:
		d.fire(s.Tuple(core.SingleShot), channel)
		log.Printf("[FireControl] Experimental: %s hand", h)

	default:
		log.Printf("[FireControl] Unhandled fire mode %d", mode)
	}
}

// Close interrupts pending waits, stops all auto-fire tasks and waits
// for them. It is safe to call more than once.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.done)
		d.portMu.Lock()
		d.closed = true
		d.portMu.Unlock()
	})
	d.auto.Close()
}

// wait blocks for dur and reports false if the dispatcher was closed
// in the meantime.
func (d *Dispatcher) wait(dur time.Duration) bool {
	select {
	case <-d.done:
		return false
	default:
	}
	select {
	case <-d.clock.After(dur):
		return true
	case <-d.done:
		return false
	}
}

func (d *Dispatcher) fire(t config.Tuple, channel uint8) {
	d.actuate(device.NewCommand(t.KickPercent, t.RumblePercent, t.DurationMs, channel))
}

func (d *Dispatcher) actuate(cmd device.Command) {
	d.portMu.RLock()
	defer d.portMu.RUnlock()
	if d.closed {
		return
	}
	if err := d.port.Actuate(cmd); err != nil {
		log.Printf("[FireControl] Actuation failed on channel %d: %v", cmd.Channel, err)
	}
}
