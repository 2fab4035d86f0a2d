package firecontrol

import (
	"sync"
	"time"

	"protube-bridge/internal/core"
)

// BurstCooldown is the minimum time between two accepted bursts on the
// same hand. It is fixed: upstream drivers re-send shot messages, and
// no real trigger can produce a second burst faster than this.
const BurstCooldown = 200 * time.Millisecond

// CooldownGate throttles burst requests per hand.
type CooldownGate struct {
	mu       sync.Mutex
	cooldown time.Duration
	last     [core.HandCount]time.Time
	granted  [core.HandCount]bool
}

// NewCooldownGate creates a gate using BurstCooldown.
func NewCooldownGate() *CooldownGate {
	return &CooldownGate{cooldown: BurstCooldown}
}

// TryAcquire grants a burst for h at now if no burst was granted before
// or at least the cooldown has elapsed since the last grant. A grant
// records now; a denial changes nothing.
func (g *CooldownGate) TryAcquire(h core.Hand, now time.Time) bool {
	if !h.Valid() {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.granted[h] && now.Sub(g.last[h]) < g.cooldown {
		return false
	}
	g.last[h] = now
	g.granted[h] = true
	return true
}

// LastBurst returns the time of the last granted burst for h.
func (g *CooldownGate) LastBurst(h core.Hand) (time.Time, bool) {
	if !h.Valid() {
		return time.Time{}, false
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last[h], g.granted[h]
}
