// PhoneServer accepts telephony media-stream WebSockets and runs each call
// with a fixed configuration: phone callers cannot pick a persona or voice,
// so the deployment's defaults are attached before streaming starts.
//
// Reference: https://www.twilio.com/docs/voice/media-streams

package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/persona-ai/persona-ai/pkg/connection"
	"github.com/persona-ai/persona-ai/pkg/relay"
)

// PhoneServerConfig holds configuration for PhoneServer.
type PhoneServerConfig struct {
	// WebSocketPath is the path for media stream connections (default: "/media")
	WebSocketPath string

	// TwiMLPath is the path for the call-control webhook (default: "/twiml")
	TwiMLPath string

	// StreamURL is the public WebSocket URL placed in the TwiML response,
	// e.g. "wss://your-domain.com/media"
	StreamURL string

	// ReadBufferSize for WebSocket (default: 1024)
	ReadBufferSize int

	// WriteBufferSize for WebSocket (default: 1024)
	WriteBufferSize int
}

// PhoneServer handles phone media stream connections.
type PhoneServer struct {
	config   PhoneServerConfig
	relayCfg relay.Config
	defaults relay.Params

	upgrader websocket.Upgrader

	sessions   map[string]*phoneSession
	sessionsMu sync.RWMutex
}

type phoneSession struct {
	conn      *connection.PhoneConnection
	handler   *relay.Handler
	startTime time.Time
}

// NewPhoneServer creates a phone media stream server. Every call uses the
// given default parameters.
func NewPhoneServer(cfg PhoneServerConfig, relayCfg relay.Config, defaults relay.Params) *PhoneServer {
	if cfg.WebSocketPath == "" {
		cfg.WebSocketPath = "/media"
	}
	if cfg.TwiMLPath == "" {
		cfg.TwiMLPath = "/twiml"
	}
	if cfg.ReadBufferSize == 0 {
		cfg.ReadBufferSize = 1024
	}
	if cfg.WriteBufferSize == 0 {
		cfg.WriteBufferSize = 1024
	}

	return &PhoneServer{
		config:   cfg,
		relayCfg: relayCfg,
		defaults: defaults,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		sessions: make(map[string]*phoneSession),
	}
}

// RegisterRoutes registers the media and webhook endpoints.
func (s *PhoneServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(s.config.WebSocketPath, s.HandleMedia)
	mux.HandleFunc(s.config.TwiMLPath, s.HandleTwiML)
}

// ActiveSessions returns the number of in-flight calls.
func (s *PhoneServer) ActiveSessions() int {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	return len(s.sessions)
}

// HandleTwiML answers the call-control webhook with a stream connect verb.
func (s *PhoneServer) HandleTwiML(w http.ResponseWriter, r *http.Request) {
	twiml := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response>
  <Connect>
    <Stream url="%s" />
  </Connect>
</Response>`, s.config.StreamURL)

	w.Header().Set("Content-Type", "application/xml")
	w.Write([]byte(twiml))
}

// HandleMedia upgrades the media stream WebSocket and runs the call.
func (s *PhoneServer) HandleMedia(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[phone] upgrade failed: %v", err)
		return
	}

	callID := uuid.New().String()

	handler := relay.NewHandler(callID, s.relayCfg)
	handler.AttachParams(s.defaults.APIKey, s.defaults.Voice, s.defaults.Persona)
	handler.Start(context.Background())

	conn, err := connection.NewPhoneConnection(callID, ws, handler)
	if err != nil {
		log.Printf("[phone] setup failed: %v", err)
		handler.Shutdown()
		ws.Close()
		return
	}

	s.sessionsMu.Lock()
	s.sessions[callID] = &phoneSession{
		conn:      conn,
		handler:   handler,
		startTime: time.Now(),
	}
	s.sessionsMu.Unlock()

	conn.Start()
	log.Printf("[phone] call %s started (%d active)", callID, s.ActiveSessions())

	go func() {
		<-handler.Done()
		conn.Close()

		s.sessionsMu.Lock()
		delete(s.sessions, callID)
		s.sessionsMu.Unlock()

		log.Printf("[phone] call %s ended", callID)
	}()
}

// Shutdown ends all in-flight calls.
func (s *PhoneServer) Shutdown() {
	s.sessionsMu.Lock()
	sessions := make([]*phoneSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.sessionsMu.Unlock()

	for _, sess := range sessions {
		sess.handler.Shutdown()
		sess.conn.Close()
	}
}
