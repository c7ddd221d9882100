// Package connection binds a peer's transport leg (WebRTC or phone media
// stream) to a relay handler. Each connection owns the codec and resampling
// work for its leg; the handler only ever sees raw mono PCM at the relay's
// fixed rates.
package connection

// ConnectionState represents the state of a peer connection.
type ConnectionState int

const (
	// ConnectionStateNew - Initial state, connection not yet started
	ConnectionStateNew ConnectionState = iota
	// ConnectionStateConnecting - Connection is being established
	ConnectionStateConnecting
	// ConnectionStateConnected - Connection is established and ready
	ConnectionStateConnected
	// ConnectionStateDisconnected - Connection temporarily lost (may reconnect)
	ConnectionStateDisconnected
	// ConnectionStateFailed - Connection failed permanently
	ConnectionStateFailed
	// ConnectionStateClosed - Connection closed by user or server
	ConnectionStateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionStateNew:
		return "new"
	case ConnectionStateConnecting:
		return "connecting"
	case ConnectionStateConnected:
		return "connected"
	case ConnectionStateDisconnected:
		return "disconnected"
	case ConnectionStateFailed:
		return "failed"
	case ConnectionStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// EventHandler handles connection lifecycle events.
type EventHandler interface {
	// OnStateChange is called when the connection state changes.
	OnStateChange(state ConnectionState)

	// OnError is called when a transport error occurs.
	OnError(err error)
}

// NoOpEventHandler is a no-op implementation for convenience.
type NoOpEventHandler struct{}

func (h *NoOpEventHandler) OnStateChange(state ConnectionState) {}
func (h *NoOpEventHandler) OnError(err error)                   {}

// Connection represents one peer's audio leg.
type Connection interface {
	// PeerID returns the unique identifier for this connection.
	PeerID() string

	// RegisterEventHandler registers an event handler for lifecycle events.
	RegisterEventHandler(handler EventHandler)

	// Close closes the connection and releases resources.
	Close() error
}
