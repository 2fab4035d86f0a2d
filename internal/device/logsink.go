package device

import (
	"log"
	"sync/atomic"
)

// LogSink is a dry-run Port that logs every actuation instead of
// driving hardware. It reports a full battery.
type LogSink struct {
	count atomic.Uint64
}

// NewLogSink creates a LogSink.
func NewLogSink() *LogSink {
	return &LogSink{}
}

func (s *LogSink) Actuate(cmd Command) error {
	n := s.count.Add(1)
	log.Printf("[Device] #%d Shot(kick=%d, rumble=%d, duration=%dms, channel=%d)",
		n, cmd.Kick, cmd.Rumble, cmd.DurationMs, cmd.Channel)
	return nil
}

func (s *LogSink) QueryBattery(channel uint8) (int, error) {
	return 100, nil
}

func (s *LogSink) BatterySupported() bool {
	return true
}

// Count returns the number of actuations logged so far.
func (s *LogSink) Count() uint64 {
	return s.count.Load()
}
