// PhoneConnection implements the Connection interface for telephony media
// streams speaking the Twilio Media Streams WebSocket protocol.
//
// Audio format:
//   - Wire: μ-law, 8kHz, mono, base64 in JSON frames
//   - Relay: PCM, 16kHz in / 24kHz out, mono
//
// Reference: https://www.twilio.com/docs/voice/media-streams

package connection

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/persona-ai/persona-ai/pkg/audio"
	"github.com/persona-ai/persona-ai/pkg/relay"
)

const (
	// PhoneSampleRate is the μ-law wire rate, both directions.
	PhoneSampleRate = 8000
)

// PhoneConnection bridges one phone call's media stream to a relay handler.
type PhoneConnection struct {
	conn   *websocket.Conn
	peerID string
	relay  *relay.Handler

	handler   EventHandler
	handlerMu sync.RWMutex

	streamSid  string
	callSid    string
	accountSid string

	upResampler   *audio.Resampler // 8kHz -> 16kHz
	downResampler *audio.Resampler // 24kHz -> 8kHz

	state   ConnectionState
	stateMu sync.RWMutex

	closed  atomic.Bool
	closeMu sync.Mutex
	wg      sync.WaitGroup

	// gorilla/websocket requires synchronized writes
	writeMu sync.Mutex
}

var _ Connection = (*PhoneConnection)(nil)

// mediaStreamMessage is one Twilio Media Streams WebSocket frame.
type mediaStreamMessage struct {
	Event          string              `json:"event"`
	SequenceNumber string              `json:"sequenceNumber,omitempty"`
	StreamSid      string              `json:"streamSid,omitempty"`
	Protocol       string              `json:"protocol,omitempty"`
	Version        string              `json:"version,omitempty"`
	Start          *mediaStreamStart   `json:"start,omitempty"`
	Media          *mediaStreamPayload `json:"media,omitempty"`
	Stop           *mediaStreamStop    `json:"stop,omitempty"`
	Mark           *mediaStreamMark    `json:"mark,omitempty"`
	DTMF           *mediaStreamDTMF    `json:"dtmf,omitempty"`
}

type mediaStreamStart struct {
	AccountSid       string            `json:"accountSid"`
	StreamSid        string            `json:"streamSid"`
	CallSid          string            `json:"callSid"`
	Tracks           []string          `json:"tracks"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
}

type mediaStreamPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"` // base64 μ-law
}

type mediaStreamStop struct {
	AccountSid string `json:"accountSid"`
	CallSid    string `json:"callSid"`
}

type mediaStreamMark struct {
	Name string `json:"name"`
}

type mediaStreamDTMF struct {
	Track string `json:"track"`
	Digit string `json:"digit"`
}

// NewPhoneConnection creates a phone media-stream leg bound to the given
// relay handler. The peer ID is provisional until the start event names the
// call.
func NewPhoneConnection(peerID string, conn *websocket.Conn, h *relay.Handler) (*PhoneConnection, error) {
	upResampler, err := audio.NewResampler(PhoneSampleRate, relay.InputSampleRate)
	if err != nil {
		return nil, err
	}
	downResampler, err := audio.NewResampler(relay.OutputSampleRate, PhoneSampleRate)
	if err != nil {
		upResampler.Free()
		return nil, err
	}

	return &PhoneConnection{
		conn:          conn,
		peerID:        peerID,
		relay:         h,
		handler:       &NoOpEventHandler{},
		upResampler:   upResampler,
		downResampler: downResampler,
		state:         ConnectionStateNew,
	}, nil
}

// PeerID returns the connection identifier, the call SID once known.
func (pc *PhoneConnection) PeerID() string {
	return pc.peerID
}

// StreamSid returns the media stream SID.
func (pc *PhoneConnection) StreamSid() string {
	return pc.streamSid
}

// RegisterEventHandler registers an event handler for lifecycle events.
func (pc *PhoneConnection) RegisterEventHandler(handler EventHandler) {
	pc.handlerMu.Lock()
	defer pc.handlerMu.Unlock()
	pc.handler = handler
}

// Start begins the read and write pumps.
func (pc *PhoneConnection) Start() {
	pc.setState(ConnectionStateConnecting)

	pc.wg.Add(2)
	go pc.readPump()
	go pc.writePump()
}

// Close closes the connection. Idempotent.
func (pc *PhoneConnection) Close() error {
	pc.closeMu.Lock()
	defer pc.closeMu.Unlock()

	if pc.closed.Load() {
		return nil
	}
	pc.closed.Store(true)

	log.Printf("[phone %s] closing (stream %s)", pc.peerID, pc.streamSid)

	// Ends the call and unblocks the write pump's pending Emit.
	pc.relay.Shutdown()
	pc.conn.Close()

	pc.wg.Wait()

	pc.upResampler.Free()
	pc.downResampler.Free()

	pc.setState(ConnectionStateClosed)
	return nil
}

func (pc *PhoneConnection) readPump() {
	defer pc.wg.Done()
	defer func() {
		go pc.Close()
	}()

	for {
		if pc.closed.Load() {
			return
		}

		_, message, err := pc.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !pc.closed.Load() {
				log.Printf("[phone %s] read error: %v", pc.peerID, err)
				pc.notifyError(err)
			}
			return
		}

		var msg mediaStreamMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("[phone %s] malformed frame: %v", pc.peerID, err)
			continue
		}

		pc.handleMessage(&msg)
	}
}

// writePump drains the relay handler's output onto the wire as μ-law frames.
func (pc *PhoneConnection) writePump() {
	defer pc.wg.Done()

	// Emit unblocks with ok=false once the relay closes, which Close forces
	// via relay.Shutdown.
	for {
		frame, ok := pc.relay.Emit(context.Background())
		if !ok {
			return
		}
		pc.sendAudio(frame)
	}
}

func (pc *PhoneConnection) handleMessage(msg *mediaStreamMessage) {
	switch msg.Event {
	case "connected":
		log.Printf("[phone %s] media stream connected (protocol: %s, version: %s)",
			pc.peerID, msg.Protocol, msg.Version)

	case "start":
		pc.handleStart(msg)

	case "media":
		pc.handleMedia(msg)

	case "stop":
		log.Printf("[phone %s] stream stopped", pc.peerID)
		pc.setState(ConnectionStateDisconnected)
		pc.relay.Shutdown()

	case "mark":
		if msg.Mark != nil {
			log.Printf("[phone %s] mark: %s", pc.peerID, msg.Mark.Name)
		}

	case "dtmf":
		if msg.DTMF != nil {
			log.Printf("[phone %s] dtmf digit: %s", pc.peerID, msg.DTMF.Digit)
		}

	default:
		log.Printf("[phone %s] unknown event: %s", pc.peerID, msg.Event)
	}
}

func (pc *PhoneConnection) handleStart(msg *mediaStreamMessage) {
	if msg.Start == nil {
		log.Printf("[phone %s] start event missing payload", pc.peerID)
		return
	}

	pc.streamSid = msg.Start.StreamSid
	pc.callSid = msg.Start.CallSid
	pc.accountSid = msg.Start.AccountSid
	if pc.callSid != "" {
		pc.peerID = pc.callSid
	}

	log.Printf("[phone %s] stream started (stream %s, tracks %v)",
		pc.peerID, pc.streamSid, msg.Start.Tracks)

	pc.setState(ConnectionStateConnected)
}

func (pc *PhoneConnection) handleMedia(msg *mediaStreamMessage) {
	if msg.Media == nil || msg.Media.Payload == "" {
		return
	}
	if msg.Media.Track != "" && msg.Media.Track != "inbound" {
		return
	}

	mulawData, err := base64.StdEncoding.DecodeString(msg.Media.Payload)
	if err != nil {
		log.Printf("[phone %s] bad media payload: %v", pc.peerID, err)
		return
	}

	pcm16k, err := pc.upResampler.Convert(audio.MuLawToPCM(mulawData))
	if err != nil {
		log.Printf("[phone %s] capture resample error: %v", pc.peerID, err)
		return
	}

	pc.relay.Receive(pcm16k)
}

func (pc *PhoneConnection) sendAudio(pcm24k []byte) {
	if pc.streamSid == "" || pc.closed.Load() {
		return
	}

	pcm8k, err := pc.downResampler.Convert(pcm24k)
	if err != nil {
		log.Printf("[phone %s] playout resample error: %v", pc.peerID, err)
		return
	}

	msg := mediaStreamMessage{
		Event:     "media",
		StreamSid: pc.streamSid,
		Media: &mediaStreamPayload{
			Payload: base64.StdEncoding.EncodeToString(audio.PCMToMuLaw(pcm8k)),
		},
	}

	pc.writeMu.Lock()
	err = pc.conn.WriteJSON(msg)
	pc.writeMu.Unlock()
	if err != nil && !pc.closed.Load() {
		log.Printf("[phone %s] write error: %v", pc.peerID, err)
	}
}

// ClearAudio asks the far end to drop buffered playout audio.
func (pc *PhoneConnection) ClearAudio() error {
	if pc.streamSid == "" || pc.closed.Load() {
		return nil
	}

	msg := mediaStreamMessage{
		Event:     "clear",
		StreamSid: pc.streamSid,
	}

	pc.writeMu.Lock()
	defer pc.writeMu.Unlock()
	return pc.conn.WriteJSON(msg)
}

// State returns the current connection state.
func (pc *PhoneConnection) State() ConnectionState {
	pc.stateMu.RLock()
	defer pc.stateMu.RUnlock()
	return pc.state
}

func (pc *PhoneConnection) setState(state ConnectionState) {
	pc.stateMu.Lock()
	pc.state = state
	pc.stateMu.Unlock()

	pc.handlerMu.RLock()
	handler := pc.handler
	pc.handlerMu.RUnlock()
	handler.OnStateChange(state)
}

func (pc *PhoneConnection) notifyError(err error) {
	pc.handlerMu.RLock()
	handler := pc.handler
	pc.handlerMu.RUnlock()
	handler.OnError(err)
}
