package ingest

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"protube-bridge/internal/config"
	"protube-bridge/internal/core"
)

type call struct {
	kind    Kind
	mode    string
	hand    core.Hand
	pressed bool
	channel uint8
}

type recordingHandler struct {
	mu    sync.Mutex
	calls []call
	seen  chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{seen: make(chan struct{}, 64)}
}

func (r *recordingHandler) record(c call) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
	r.seen <- struct{}{}
}

func (r *recordingHandler) HandleModeChange(name string) bool {
	r.record(call{kind: KindModeChange, mode: name})
	return true
}

func (r *recordingHandler) HandleTriggerState(h core.Hand, pressed bool) {
	r.record(call{kind: KindTriggerState, hand: h, pressed: pressed})
}

func (r *recordingHandler) HandleShot(h core.Hand, channel uint8) {
	r.record(call{kind: KindShot, hand: h, channel: channel})
}

func (r *recordingHandler) snapshot() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

type staticSettings struct{ s config.Settings }

func (s staticSettings) Get() config.Settings { return s.s }

func newTestLoop(t *testing.T, s config.Settings) (*Loop, *recordingHandler) {
	t.Helper()
	h := newRecordingHandler()
	l, err := Listen("127.0.0.1:0", h, staticSettings{s: s}, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l, h
}

func TestRouteShotUsesHandChannel(t *testing.T) {
	l, h := newTestLoop(t, config.DefaultSettings())

	l.Route(Parse("shot_left"))
	l.Route(Parse("shot_right"))

	calls := h.snapshot()
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(calls))
	}
	if calls[0].hand != core.Right || calls[0].channel != core.RightChannel {
		t.Errorf("shot_left routed to %v ch %d, want Right ch %d", calls[0].hand, calls[0].channel, core.RightChannel)
	}
	if calls[1].hand != core.Left || calls[1].channel != core.LeftChannel {
		t.Errorf("shot_right routed to %v ch %d, want Left ch %d", calls[1].hand, calls[1].channel, core.LeftChannel)
	}
}

func TestRouteIgnoresFilteredHand(t *testing.T) {
	s := config.DefaultSettings()
	s.IgnoreLeftHand = true
	l, h := newTestLoop(t, s)

	l.Route(Parse("shot_right"))
	l.Route(Parse("trigger_right:1"))
	l.Route(Parse("shot_left"))
	l.Route(Parse("mode:auto"))

	calls := h.snapshot()
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want 2: %+v", len(calls), calls)
	}
	if calls[0].kind != KindShot || calls[0].hand != core.Right {
		t.Errorf("first call = %+v, want right-hand shot", calls[0])
	}
	if calls[1].kind != KindModeChange || calls[1].mode != "auto" {
		t.Errorf("second call = %+v, want mode change", calls[1])
	}
}

func TestRouteDropsUnknownAndDebug(t *testing.T) {
	l, h := newTestLoop(t, config.DefaultSettings())

	l.Route(Parse("duration:3.2"))
	l.Route(Parse("garbage"))

	if n := len(h.snapshot()); n != 0 {
		t.Errorf("got %d calls, want 0", n)
	}
}

func TestRunReceivesDatagrams(t *testing.T) {
	l, h := newTestLoop(t, config.DefaultSettings())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	conn, err := net.Dial("udp", l.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	for _, msg := range []string{"mode:auto", "trigger_left:1", "shot_left"} {
		if _, err := conn.Write([]byte(msg)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	for i := 0; i < 3; i++ {
		select {
		case <-h.seen:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for message %d", i+1)
		}
	}

	calls := h.snapshot()
	want := []call{
		{kind: KindModeChange, mode: "auto"},
		{kind: KindTriggerState, hand: core.Right, pressed: true},
		{kind: KindShot, hand: core.Right, channel: core.RightChannel},
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, calls[i], want[i])
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRunStopsWhenClosed(t *testing.T) {
	l, _ := newTestLoop(t, config.DefaultSettings())

	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()

	time.Sleep(30 * time.Millisecond)
	l.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after Close")
	}
}

func TestListenFailsOnBusyPort(t *testing.T) {
	l, _ := newTestLoop(t, config.DefaultSettings())

	if _, err := Listen(l.Addr().String(), newRecordingHandler(), staticSettings{}, 0); err == nil {
		t.Fatal("expected bind error on a port already in use")
	}
}
