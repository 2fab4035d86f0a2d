//go:build windows

package device

import (
	"fmt"
	"log"
	"time"

	"golang.org/x/sys/windows"
)

// ForceTube drives the gun stock through the vendor ForceTubeVR DLL.
// Arguments are passed as plain integers, matching how the DLL has
// always been called by the companion tooling.
type ForceTube struct {
	dll              *windows.LazyDLL
	shot             *windows.LazyProc
	battery          *windows.LazyProc
	batterySupported bool
}

// Open loads the DLL at path, starts the asynchronous device
// initialization and waits initDelay for it to settle.
func Open(path string, initDelay time.Duration) (*ForceTube, error) {
	dll := windows.NewLazyDLL(path)
	if err := dll.Load(); err != nil {
		return nil, fmt.Errorf("load vendor DLL '%s': %w", path, err)
	}

	initAsync := dll.NewProc("InitAsync")
	if err := initAsync.Find(); err != nil {
		return nil, fmt.Errorf("vendor DLL: %w", err)
	}
	shot := dll.NewProc("Shot")
	if err := shot.Find(); err != nil {
		return nil, fmt.Errorf("vendor DLL: %w", err)
	}

	battery := dll.NewProc("GetBatteryLevel")
	batterySupported := battery.Find() == nil
	if batterySupported {
		log.Println("[Device] Battery monitoring available")
	} else {
		log.Println("[Device] Battery monitoring not available in this API version")
	}

	log.Println("[Device] Initializing ProVolver...")
	initAsync.Call()
	time.Sleep(initDelay)
	log.Println("[Device] ProVolver initialized")

	return &ForceTube{
		dll:              dll,
		shot:             shot,
		battery:          battery,
		batterySupported: batterySupported,
	}, nil
}

// Actuate issues one Shot call.
func (f *ForceTube) Actuate(cmd Command) error {
	// The DLL returns void; the errno from Call is meaningless here.
	f.shot.Call(uintptr(cmd.Kick), uintptr(cmd.Rumble), uintptr(cmd.DurationMs), uintptr(cmd.Channel))
	return nil
}

// QueryBattery returns the battery percentage reported for channel.
func (f *ForceTube) QueryBattery(channel uint8) (int, error) {
	if !f.batterySupported {
		return 0, ErrBatteryUnsupported
	}
	r1, _, _ := f.battery.Call(uintptr(channel))
	level := int(int32(r1))
	if level < 0 || level > 100 {
		return 0, fmt.Errorf("battery level out of range: %d", level)
	}
	return level, nil
}

// BatterySupported reports whether GetBatteryLevel was found.
func (f *ForceTube) BatterySupported() bool {
	return f.batterySupported
}

// Close unloads the DLL.
func (f *ForceTube) Close() error {
	if h := f.dll.Handle(); h != 0 {
		return windows.FreeLibrary(windows.Handle(h))
	}
	return nil
}
