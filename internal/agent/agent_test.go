package agent

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"protube-bridge/internal/config"
	"protube-bridge/internal/core"
	"protube-bridge/internal/device/devicetest"
)

func testOptions(t *testing.T) *config.Options {
	t.Helper()
	dir := t.TempDir()
	opts := &config.Options{
		ListenAddr:       "127.0.0.1:0",
		SettingsFile:     filepath.Join(dir, "protube_gui_config.json"),
		BatteryFile:      filepath.Join(dir, "protube_battery.txt"),
		DriverConfigFile: filepath.Join(dir, "driver", "protube_config.txt"),
		ReloadInterval:   time.Second,
		BatteryInterval:  10 * time.Second,
		ReceiveTimeout:   50 * time.Millisecond,
	}
	if err := opts.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return opts
}

func startAgent(t *testing.T, opts *config.Options, rec *devicetest.Recorder) (*Agent, net.Conn) {
	t.Helper()
	a, err := New(opts, rec)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- a.Run() }()
	t.Cleanup(func() {
		a.Shutdown()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run returned %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("Run did not return after Shutdown")
		}
	})

	conn, err := net.Dial("udp", a.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return a, conn
}

func send(t *testing.T, conn net.Conn, msg string) {
	t.Helper()
	if _, err := conn.Write([]byte(msg)); err != nil {
		t.Fatalf("Write %q: %v", msg, err)
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewFailsWhenPortIsTaken(t *testing.T) {
	busy, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	defer busy.Close()

	opts := testOptions(t)
	opts.ListenAddr = busy.LocalAddr().String()
	if _, err := New(opts, devicetest.NewRecorder(nil)); err == nil {
		t.Fatal("expected bind error")
	}
}

func TestModeChangeAndShotsEndToEnd(t *testing.T) {
	opts := testOptions(t)
	rec := devicetest.NewRecorder(nil)
	a, conn := startAgent(t, opts, rec)

	send(t, conn, "mode:burst")
	// Two feedback pulses on the right hand.
	if !rec.WaitForCount(2, 3*time.Second) {
		t.Fatalf("got %d actuations, want 2 feedback pulses", rec.Count())
	}
	eventually(t, "burst mode in status", func() bool { return a.Status().Mode == "burst" })

	send(t, conn, "shot_right")
	if !rec.WaitForCount(5, 3*time.Second) {
		t.Fatalf("got %d actuations, want 5", rec.Count())
	}
	if n := rec.CountChannel(core.LeftChannel); n != 3 {
		t.Errorf("left channel got %d shots, want 3", n)
	}
}

func TestFullAutoEndToEnd(t *testing.T) {
	opts := testOptions(t)
	if err := os.WriteFile(opts.SettingsFile, []byte(`{"feedback": false, "auto_rate": 30}`), 0o644); err != nil {
		t.Fatal(err)
	}
	rec := devicetest.NewRecorder(nil)
	a, conn := startAgent(t, opts, rec)

	send(t, conn, "mode:auto")
	eventually(t, "auto mode", func() bool { return a.dispatcher.Mode() == core.FullAuto })

	send(t, conn, "trigger_left:1")
	eventually(t, "trigger held", func() bool { return a.dispatcher.TriggerHeld(core.Right) })
	send(t, conn, "shot_left")

	if !rec.WaitForCount(3, 3*time.Second) {
		t.Fatalf("got %d actuations, want at least 3", rec.Count())
	}
	eventually(t, "auto-fire in status", func() bool { return a.Status().AutoFireRight })

	send(t, conn, "trigger_left:0")
	eventually(t, "auto-fire stopped", func() bool { return !a.dispatcher.AutoFireActive(core.Right) })

	stopped := rec.Count()
	time.Sleep(100 * time.Millisecond)
	if n := rec.Count(); n != stopped {
		t.Errorf("actuations continued after release: %d -> %d", stopped, n)
	}
	if n := rec.CountChannel(core.LeftChannel); n != 0 {
		t.Errorf("left channel got %d actuations, want 0", n)
	}
}

func TestSettingsLoadedAtStartupAndArtifactsRemoved(t *testing.T) {
	opts := testOptions(t)
	if err := os.WriteFile(opts.SettingsFile, []byte(`{"mode_select": "Haptic Experimental A", "ignore_left_hand": true}`), 0o644); err != nil {
		t.Fatal(err)
	}
	rec := devicetest.NewRecorder(nil)
	rec.SetBattery(57, nil)

	a, err := New(opts, rec)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !a.settings.Get().IgnoreLeftHand {
		t.Error("settings not loaded at startup")
	}
	if _, err := os.Stat(opts.DriverConfigFile); err != nil {
		t.Errorf("driver config not written: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- a.Run() }()

	eventually(t, "battery status", func() bool {
		data, err := os.ReadFile(opts.BatteryFile)
		return err == nil && string(data) == "57"
	})
	eventually(t, "battery in status", func() bool { return a.Status().BatteryPercent == 57 })

	a.Shutdown()
	a.Shutdown()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Shutdown")
	}

	for _, path := range []string{opts.BatteryFile, opts.DriverConfigFile} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("%s still present after shutdown", path)
		}
	}
}

func TestNoBatteryJobWithoutBatterySupport(t *testing.T) {
	opts := testOptions(t)
	rec := devicetest.NewRecorder(nil)
	rec.DisableBattery()

	a, err := New(opts, rec)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown()

	for _, job := range a.scheduler.Jobs() {
		if job.Name == batteryJob {
			t.Fatal("battery job registered for a device without battery support")
		}
	}
}

func TestShutdownStopsInFlightBurst(t *testing.T) {
	opts := testOptions(t)
	settings := `{"feedback": false, "burst_count": 5, "auto_rate": 100}`
	if err := os.WriteFile(opts.SettingsFile, []byte(settings), 0o644); err != nil {
		t.Fatal(err)
	}
	rec := devicetest.NewRecorder(nil)

	a, err := New(opts, rec)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- a.Run() }()

	conn, err := net.Dial("udp", a.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	send(t, conn, "mode:burst")
	eventually(t, "burst mode", func() bool { return a.dispatcher.Mode() == core.BurstFire })
	send(t, conn, "shot_right")
	if !rec.WaitForCount(1, 3*time.Second) {
		t.Fatal("first burst round missing")
	}

	a.Shutdown()
	atShutdown := rec.Count()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	default:
		t.Fatal("Run still running after Shutdown returned")
	}

	time.Sleep(500 * time.Millisecond)
	if n := rec.Count(); n != atShutdown {
		t.Errorf("device actuated %d more times after Shutdown returned", n-atShutdown)
	}
	if atShutdown >= 5 {
		t.Errorf("burst ran to completion (%d rounds) instead of being interrupted", atShutdown)
	}
}

func TestShutdownBeforeRun(t *testing.T) {
	a, err := New(testOptions(t), devicetest.NewRecorder(nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a.Shutdown()

	done := make(chan error, 1)
	go func() { done <- a.Run() }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run blocked after Shutdown")
	}
}
