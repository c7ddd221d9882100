package connection

import (
	"encoding/json"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionStateString(t *testing.T) {
	assert.Equal(t, "new", ConnectionStateNew.String())
	assert.Equal(t, "connected", ConnectionStateConnected.String())
	assert.Equal(t, "closed", ConnectionStateClosed.String())
	assert.Equal(t, "unknown", ConnectionState(99).String())
}

func TestMapWebRTCState(t *testing.T) {
	assert.Equal(t, ConnectionStateConnected, mapWebRTCState(webrtc.PeerConnectionStateConnected))
	assert.Equal(t, ConnectionStateFailed, mapWebRTCState(webrtc.PeerConnectionStateFailed))
	assert.Equal(t, ConnectionStateDisconnected, mapWebRTCState(webrtc.PeerConnectionStateDisconnected))
}

func TestMediaStreamMessageParsing(t *testing.T) {
	raw := `{
		"event": "start",
		"sequenceNumber": "1",
		"start": {
			"accountSid": "AC123",
			"streamSid": "MZ456",
			"callSid": "CA789",
			"tracks": ["inbound"]
		},
		"streamSid": "MZ456"
	}`

	var msg mediaStreamMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))

	assert.Equal(t, "start", msg.Event)
	require.NotNil(t, msg.Start)
	assert.Equal(t, "CA789", msg.Start.CallSid)
	assert.Equal(t, []string{"inbound"}, msg.Start.Tracks)
}

func TestMediaStreamMediaPayload(t *testing.T) {
	raw := `{"event":"media","streamSid":"MZ456","media":{"track":"inbound","payload":"//8A"}}`

	var msg mediaStreamMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))

	assert.Equal(t, "media", msg.Event)
	require.NotNil(t, msg.Media)
	assert.Equal(t, "inbound", msg.Media.Track)
	assert.Equal(t, "//8A", msg.Media.Payload)
}
