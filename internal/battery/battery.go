// Package battery polls the device battery level and mirrors it to the
// status file read by the settings GUI.
package battery

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strconv"
	"sync"

	"protube-bridge/internal/core"
	"protube-bridge/internal/device"
)

// FallbackPercent is reported when the device query fails.
const FallbackPercent = 100

// Poller queries the device and writes the level to a file.
type Poller struct {
	port device.Port
	path string
	bus  *core.EventBus

	mu   sync.Mutex
	last int
	seen bool
}

// NewPoller creates a Poller writing to path. bus may be nil.
func NewPoller(port device.Port, path string, bus *core.EventBus) *Poller {
	return &Poller{port: port, path: path, bus: bus}
}

// Supported reports whether the device exposes a battery query at all.
func (p *Poller) Supported() bool {
	return p.port.BatterySupported()
}

// Poll queries the device once and returns the level written.
func (p *Poller) Poll() (int, error) {
	level, qerr := p.port.QueryBattery(core.FeedbackChannel)
	known := qerr == nil
	if !known {
		level = FallbackPercent
	}

	werr := os.WriteFile(p.path, []byte(strconv.Itoa(level)), 0o644)

	p.mu.Lock()
	changed := !p.seen || p.last != level
	p.last, p.seen = level, true
	p.mu.Unlock()

	if changed {
		if known {
			log.Printf("[Battery] Level: %d%%", level)
		} else {
			log.Printf("[Battery] Query failed, reporting %d%%: %v", level, qerr)
		}
	}

	p.bus.Publish(core.Event{
		Type:    core.BatteryLevelEvent,
		Payload: core.BatteryLevel{Percent: level, Known: known},
	})

	if werr != nil {
		return level, werr
	}
	return level, nil
}

// Last returns the most recent level and whether any poll has happened.
func (p *Poller) Last() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.seen
}

// Remove deletes the status file. A missing file is not an error.
func (p *Poller) Remove() error {
	if err := os.Remove(p.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
