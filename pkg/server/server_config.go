package server

// DefaultMaxSessions is the default cap on simultaneous streaming calls.
const DefaultMaxSessions = 5

// Config holds configuration for the WebRTC signaling server.
type Config struct {
	// RTCUDPPort is the UDP port for WebRTC media
	RTCUDPPort int

	// ICELite enables ICE lite mode (default: false)
	ICELite bool

	// Endpoint is the list of candidate addresses (default: []string{"0.0.0.0"})
	Endpoint []string

	// MaxSessions caps simultaneous calls; further offers get 503
	// (default: DefaultMaxSessions)
	MaxSessions int
}
