//go:build !windows

package device

import (
	"fmt"
	"runtime"
	"time"
)

// ForceTube is only available on Windows, where the vendor DLL exists.
type ForceTube struct{}

// Open always fails on this platform; use LogSink for dry runs.
func Open(path string, initDelay time.Duration) (*ForceTube, error) {
	return nil, fmt.Errorf("%w (%s): cannot load '%s'", ErrUnsupportedPlatform, runtime.GOOS, path)
}

func (f *ForceTube) Actuate(cmd Command) error { return ErrUnsupportedPlatform }

func (f *ForceTube) QueryBattery(channel uint8) (int, error) { return 0, ErrUnsupportedPlatform }

func (f *ForceTube) BatterySupported() bool { return false }

func (f *ForceTube) Close() error { return nil }
