// Package server exposes the bridge status over HTTP and WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"protube-bridge/internal/core"
)

// ModeSetter accepts fire-mode change requests by name.
type ModeSetter interface {
	HandleModeChange(name string) bool
}

// StatusSource provides the current bridge status.
type StatusSource interface {
	Snapshot() core.Snapshot
}

// Server manages the HTTP and WebSocket services.
type Server struct {
	Hub        *Hub
	modes      ModeSetter
	status     StatusSource
	bus        *core.EventBus
	httpServer *http.Server

	allowedOrigins []string
	upgrader       websocket.Upgrader
}

// NewServer creates a new server instance listening on addr.
func NewServer(addr string, allowedOrigins []string, status StatusSource, bus *core.EventBus, modes ModeSetter) *Server {
	s := &Server{
		Hub:            NewHub(),
		modes:          modes,
		status:         status,
		bus:            bus,
		allowedOrigins: allowedOrigins,
	}

	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 {
				log.Println("[Server] Warning: WebSocket CheckOrigin is disabled")
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			log.Printf("[Server] WebSocket connection blocked: Origin '%s' not in allowed list", origin)
			return false
		},
	}

	s.httpServer = &http.Server{Addr: addr, Handler: s.Handler()}
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Start runs the hub and forwards bus events to clients until ctx is
// cancelled. It does not start listening.
func (s *Server) Start(ctx context.Context) {
	var sub core.Subscriber
	if s.bus != nil {
		sub = s.bus.Subscribe(core.ModeChangedEvent, core.BatteryLevelEvent, core.AutoFireEvent, core.SettingsReloadedEvent)
	}
	go s.Hub.Run(ctx)
	go s.forwardEvents(ctx, sub)
}

func (s *Server) forwardEvents(ctx context.Context, sub core.Subscriber) {
	if sub == nil {
		return
	}
	defer s.bus.Unsubscribe(sub, core.ModeChangedEvent, core.BatteryLevelEvent, core.AutoFireEvent, core.SettingsReloadedEvent)

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-sub:
			if msg, ok := EventMessage(event); ok {
				s.Hub.Broadcast(msg)
			}
		}
	}
}

// ListenAndServe blocks serving HTTP. A graceful Shutdown is not an error.
func (s *Server) ListenAndServe() error {
	log.Printf("[Server] Listening on http://%s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.status.Snapshot()); err != nil {
		log.Printf("[Server] Error writing status: %v", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Server] WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(NewMessage("status", s.status.Snapshot())); err != nil {
		return
	}

	if !s.Hub.add(conn) {
		return
	}
	defer s.Hub.remove(conn)

	for {
		_, msgBytes, err := conn.ReadMessage()
		if err != nil {
			break
		}
		s.handleCommand(msgBytes)
	}
}

func (s *Server) handleCommand(raw []byte) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		log.Printf("[Server] Error unmarshalling command: %v", err)
		return
	}

	switch cmd.Type {
	case "setMode":
		name, _ := cmd.Payload["name"].(string)
		if s.modes == nil || !s.modes.HandleModeChange(name) {
			log.Printf("[Server] Rejected mode %q", name)
		}
	case "getStatus":
		s.Hub.Broadcast(NewMessage("status", s.status.Snapshot()))
	default:
		log.Printf("[Server] Unknown command type: %s", cmd.Type)
	}
}
