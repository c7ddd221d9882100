package server

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/persona-ai/persona-ai/pkg/connection"
	"github.com/persona-ai/persona-ai/pkg/relay"
)

// RTCServer negotiates browser peers and binds each one to a relay handler.
//
// The caller-supplied webrtc_id keys the peer registry so the /input_hook
// endpoint can deliver per-call parameters out-of-band after negotiation.
type RTCServer struct {
	sync.RWMutex

	config   *Config
	relayCfg relay.Config

	api   *webrtc.API
	peers map[string]*peer
}

type peer struct {
	handler *relay.Handler
	conn    connection.Connection
}

// NewRTCServer creates the server. Start must be called before negotiation.
func NewRTCServer(cfg *Config, relayCfg relay.Config) *RTCServer {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	return &RTCServer{
		config:   cfg,
		relayCfg: relayCfg,
		peers:    make(map[string]*peer),
	}
}

// Start prepares the WebRTC API with a shared ICE UDP mux so all calls share
// one media port.
func (s *RTCServer) Start() error {
	settingEngine := webrtc.SettingEngine{}
	if s.config.ICELite {
		settingEngine.SetLite(true)
	}

	if len(s.config.Endpoint) > 0 {
		settingEngine.SetNAT1To1IPs(s.config.Endpoint, webrtc.ICECandidateTypeHost)
	}

	settingEngine.SetFireOnTrackBeforeFirstRTP(true)

	settingEngine.SetNetworkTypes([]webrtc.NetworkType{
		webrtc.NetworkTypeUDP4,
		webrtc.NetworkTypeTCP4,
	})

	udpListener, err := net.ListenUDP("udp", &net.UDPAddr{
		IP:   net.ParseIP("0.0.0.0"),
		Port: s.config.RTCUDPPort,
	})
	if err != nil {
		log.Printf("[rtc] failed to listen on UDP port %d: %v", s.config.RTCUDPPort, err)
		return err
	}

	udpMux := webrtc.NewICEUDPMux(nil, udpListener)
	settingEngine.SetICEUDPMux(udpMux)

	s.api = webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))
	return nil
}

// Handler returns the relay handler for a negotiated peer.
func (s *RTCServer) Handler(peerID string) (*relay.Handler, bool) {
	s.RLock()
	defer s.RUnlock()
	p, ok := s.peers[peerID]
	if !ok || p.handler == nil {
		return nil, false
	}
	return p.handler, true
}

// ActivePeers returns the number of registered peers.
func (s *RTCServer) ActivePeers() int {
	s.RLock()
	defer s.RUnlock()
	return len(s.peers)
}

// HandleNegotiate handles the /session WebRTC negotiation endpoint. The
// client may pass ?webrtc_id= to key the call; otherwise one is assigned.
func (s *RTCServer) HandleNegotiate(w http.ResponseWriter, r *http.Request) {
	writeCORS(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	var offer webrtc.SessionDescription
	if err := json.Unmarshal(body, &offer); err != nil {
		http.Error(w, "Failed to parse offer", http.StatusBadRequest)
		return
	}

	peerID := r.URL.Query().Get("webrtc_id")
	if peerID == "" {
		peerID = uuid.New().String()
	}

	s.Lock()
	if len(s.peers) >= s.config.MaxSessions {
		s.Unlock()
		log.Printf("[rtc] rejecting peer %s: %d active calls", peerID, s.config.MaxSessions)
		http.Error(w, "Too many concurrent calls", http.StatusServiceUnavailable)
		return
	}
	// Reserve the slot before the blocking negotiation work.
	s.peers[peerID] = &peer{}
	s.Unlock()

	handler, conn, err := s.setupPeer(peerID, offer, w)
	if err != nil {
		s.removePeer(peerID)
		return
	}

	s.Lock()
	s.peers[peerID] = &peer{handler: handler, conn: conn}
	s.Unlock()

	// Reap the registry entry once the call ends.
	go func() {
		<-handler.Done()
		conn.Close()
		s.removePeer(peerID)
	}()
}

// setupPeer runs the SDP exchange and starts the relay handler. The HTTP
// error response is written here on failure.
func (s *RTCServer) setupPeer(peerID string, offer webrtc.SessionDescription, w http.ResponseWriter) (*relay.Handler, connection.Connection, error) {
	pc, err := s.api.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{},
	})
	if err != nil {
		http.Error(w, "Failed to create peer connection", http.StatusInternalServerError)
		return nil, nil, err
	}

	handler := relay.NewHandler(peerID, s.relayCfg)
	handler.Start(context.Background())

	conn, err := connection.NewWebRTCConnection(peerID, pc, handler)
	if err != nil {
		handler.Shutdown()
		pc.Close()
		http.Error(w, "Failed to create connection", http.StatusInternalServerError)
		return nil, nil, err
	}

	if err := pc.SetRemoteDescription(offer); err != nil {
		handler.Shutdown()
		conn.Close()
		http.Error(w, "Failed to set remote description", http.StatusInternalServerError)
		return nil, nil, err
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		handler.Shutdown()
		conn.Close()
		http.Error(w, "Failed to create answer", http.StatusInternalServerError)
		return nil, nil, err
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		handler.Shutdown()
		conn.Close()
		http.Error(w, "Failed to set local description", http.StatusInternalServerError)
		return nil, nil, err
	}

	gatherComplete := webrtc.GatheringCompletePromise(pc)
	<-gatherComplete

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(pc.LocalDescription())

	log.Printf("[rtc] peer %s negotiated", peerID)
	return handler, conn, nil
}

func (s *RTCServer) removePeer(peerID string) {
	s.Lock()
	delete(s.peers, peerID)
	s.Unlock()
}

// Shutdown closes all active calls.
func (s *RTCServer) Shutdown() {
	s.Lock()
	peers := make([]*peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.peers = make(map[string]*peer)
	s.Unlock()

	for _, p := range peers {
		if p.handler != nil {
			p.handler.Shutdown()
		}
		if p.conn != nil {
			p.conn.Close()
		}
	}
}

func writeCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}
