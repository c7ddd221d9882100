package relay

import "context"

// Session is one live upstream voice session. Implementations wrap a
// third-party realtime API; the handler only moves PCM through it.
type Session interface {
	// SendAudio forwards one 16kHz mono 16-bit PCM chunk as part of the
	// session's continuous audio upload.
	SendAudio(pcm []byte) error

	// ReceiveAudio blocks until the session yields the next 24kHz mono
	// 16-bit PCM chunk. It returns an error once the session ends; Close
	// from another goroutine unblocks a pending ReceiveAudio.
	ReceiveAudio() ([]byte, error)

	// Close releases the session. Safe to call more than once.
	Close() error
}

// ConnectParams carries everything needed to open one upstream session. The
// system prompt is fixed at connect time; it cannot change mid-session.
type ConnectParams struct {
	APIKey       string
	Model        string
	Voice        string
	SystemPrompt string
}

// Connector opens upstream live sessions.
type Connector interface {
	Connect(ctx context.Context, params ConnectParams) (Session, error)
}
