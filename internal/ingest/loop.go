package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"protube-bridge/internal/config"
	"protube-bridge/internal/core"
)

// maxDatagram bounds a single read; messages are a few bytes long.
const maxDatagram = 1024

// Handler receives routed messages. firecontrol.Dispatcher implements it.
type Handler interface {
	HandleModeChange(name string) bool
	HandleTriggerState(h core.Hand, pressed bool)
	HandleShot(h core.Hand, channel uint8)
}

// SettingsSource provides the current settings snapshot.
type SettingsSource interface {
	Get() config.Settings
}

// Loop is the single-goroutine receive loop.
type Loop struct {
	conn     net.PacketConn
	handler  Handler
	settings SettingsSource
	timeout  time.Duration
}

// Listen binds the UDP socket at addr. Failing to bind is fatal for the
// bridge, so the error is returned to the caller unchanged in meaning.
func Listen(addr string, handler Handler, settings SettingsSource, timeout time.Duration) (*Loop, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind UDP %s: %w", addr, err)
	}
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	return &Loop{
		conn:     conn,
		handler:  handler,
		settings: settings,
		timeout:  timeout,
	}, nil
}

// Addr returns the bound local address.
func (l *Loop) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Run receives datagrams until ctx is cancelled or the socket is
// closed. Read timeouts are expected and only serve to observe ctx.
func (l *Loop) Run(ctx context.Context) error {
	log.Printf("[Ingest] Listening on %s", l.conn.LocalAddr())
	buf := make([]byte, maxDatagram)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := l.conn.SetReadDeadline(time.Now().Add(l.timeout)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}

		n, _, err := l.conn.ReadFrom(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Printf("[Ingest] Error receiving datagram: %v", err)
			continue
		}

		l.Route(Parse(string(buf[:n])))
	}
}

// Route applies the hand-ignore filters and hands msg to the handler.
func (l *Loop) Route(msg Message) {
	switch msg.Kind {
	case KindModeChange:
		l.handler.HandleModeChange(msg.Mode)

	case KindTriggerState:
		if l.settings.Get().IgnoreHand(msg.Hand) {
			return
		}
		l.handler.HandleTriggerState(msg.Hand, msg.Pressed)

	case KindShot:
		if l.settings.Get().IgnoreHand(msg.Hand) {
			return
		}
		l.handler.HandleShot(msg.Hand, msg.Hand.Channel())

	case KindIgnored:

	default:
		log.Printf("[Ingest] Received: %q", msg.Raw)
	}
}

// Close closes the socket, which also ends Run.
func (l *Loop) Close() error {
	return l.conn.Close()
}
