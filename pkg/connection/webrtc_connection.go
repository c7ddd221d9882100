package connection

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/hraban/opus"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"github.com/persona-ai/persona-ai/pkg/audio"
	"github.com/persona-ai/persona-ai/pkg/relay"
)

const (
	DefaultWebRTCSampleRate = 48000
	DefaultWebRTCChannels   = 1
	DefaultWebRTCBitRate    = 50000
)

// WebRTCConfig holds configuration for a WebRTC audio leg.
type WebRTCConfig struct {
	SampleRate int
	Channels   int
	BitRate    int
}

// DefaultWebRTCConfig returns the default WebRTC configuration.
func DefaultWebRTCConfig() WebRTCConfig {
	return WebRTCConfig{
		SampleRate: DefaultWebRTCSampleRate,
		Channels:   DefaultWebRTCChannels,
		BitRate:    DefaultWebRTCBitRate,
	}
}

// webrtcConnection pumps audio between a browser peer and its relay handler.
//
// Capture path: remote RTP -> Opus decode (48kHz) -> resample to 16kHz ->
// handler. Playout path: handler (24kHz) -> resample to 48kHz -> pacer ->
// Opus encode -> local track, one 20ms sample per tick.
type webrtcConnection struct {
	peerID string
	pc     *webrtc.PeerConnection
	relay  *relay.Handler

	remoteAudioTrack *webrtc.TrackRemote
	localAudioTrack  *webrtc.TrackLocalStaticSample

	handler EventHandler

	audioEncoder *opus.Encoder
	audioDecoder *opus.Decoder

	captureResampler *audio.Resampler // 48kHz -> 16kHz
	playoutResampler *audio.Resampler // 24kHz -> 48kHz
	pacer            *audio.Pacer

	sampleRate int
	channels   int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
	mu     sync.RWMutex
}

var _ Connection = (*webrtcConnection)(nil)

// NewWebRTCConnection creates a WebRTC audio leg bound to the given relay
// handler, with the default config.
func NewWebRTCConnection(peerID string, pc *webrtc.PeerConnection, h *relay.Handler) (Connection, error) {
	return NewWebRTCConnectionWithConfig(peerID, pc, h, DefaultWebRTCConfig())
}

// NewWebRTCConnectionWithConfig creates a WebRTC audio leg with a custom config.
func NewWebRTCConnectionWithConfig(peerID string, pc *webrtc.PeerConnection, h *relay.Handler, cfg WebRTCConfig) (Connection, error) {
	audioEncoder, err := opus.NewEncoder(cfg.SampleRate, cfg.Channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("create opus encoder: %w", err)
	}
	audioEncoder.SetBitrate(cfg.BitRate)
	audioEncoder.SetComplexity(10)
	audioEncoder.SetDTX(true)

	audioDecoder, err := opus.NewDecoder(cfg.SampleRate, cfg.Channels)
	if err != nil {
		return nil, fmt.Errorf("create opus decoder: %w", err)
	}

	captureResampler, err := audio.NewResampler(cfg.SampleRate, relay.InputSampleRate)
	if err != nil {
		return nil, err
	}
	playoutResampler, err := audio.NewResampler(relay.OutputSampleRate, cfg.SampleRate)
	if err != nil {
		captureResampler.Free()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	conn := &webrtcConnection{
		peerID:           peerID,
		pc:               pc,
		relay:            h,
		handler:          &NoOpEventHandler{},
		audioEncoder:     audioEncoder,
		audioDecoder:     audioDecoder,
		captureResampler: captureResampler,
		playoutResampler: playoutResampler,
		pacer:            audio.NewPacer(cfg.SampleRate),
		sampleRate:       cfg.SampleRate,
		channels:         cfg.Channels,
		ctx:              ctx,
		cancel:           cancel,
	}

	if err := conn.start(); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func (c *webrtcConnection) PeerID() string {
	return c.peerID
}

func (c *webrtcConnection) RegisterEventHandler(handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

func (c *webrtcConnection) start() error {
	c.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Printf("[webrtc %s] connection state: %v", c.peerID, state)

		c.mu.RLock()
		handler := c.handler
		c.mu.RUnlock()
		handler.OnStateChange(mapWebRTCState(state))

		switch state {
		case webrtc.PeerConnectionStateDisconnected,
			webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed:
			// The peer going away ends the call.
			c.relay.Shutdown()
			c.Close()
		}
	})

	transceiver, err := c.pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionSendrecv,
	})
	if err != nil {
		return fmt.Errorf("add audio transceiver: %w", err)
	}

	if sender := transceiver.Sender(); sender != nil {
		if track := sender.Track(); track != nil {
			c.localAudioTrack = track.(*webrtc.TrackLocalStaticSample)
		}
	}

	c.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Printf("[webrtc %s] OnTrack: %v, codec: %v", c.peerID, track.ID(), track.Codec().MimeType)
		if track.Kind() == webrtc.RTPCodecTypeAudio {
			c.mu.Lock()
			c.remoteAudioTrack = track
			c.mu.Unlock()

			c.wg.Add(1)
			go c.readRemoteAudio()
		}
	})

	c.wg.Add(2)
	go c.fillPlayoutBuffer()
	go c.playout()

	return nil
}

// readRemoteAudio decodes incoming Opus packets and feeds the relay handler
// with 16kHz PCM.
func (c *webrtcConnection) readRemoteAudio() {
	defer c.wg.Done()

	pcmBuf := make([]int16, 1920)
	frameCount := 0

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.mu.RLock()
		track := c.remoteAudioTrack
		c.mu.RUnlock()
		if track == nil {
			return
		}

		rtpPacket, _, err := track.ReadRTP()
		if err != nil {
			if err == io.EOF {
				log.Printf("[webrtc %s] remote audio track closed", c.peerID)
				return
			}
			log.Printf("[webrtc %s] RTP read error: %v", c.peerID, err)
			continue
		}

		if len(rtpPacket.Payload) == 0 {
			continue
		}

		n, err := c.audioDecoder.Decode(rtpPacket.Payload, pcmBuf)
		if err != nil {
			log.Printf("[webrtc %s] Opus decode error: %v", c.peerID, err)
			continue
		}

		pcm16k, err := c.captureResampler.Convert(audio.Int16ToBytes(pcmBuf[:n]))
		if err != nil {
			log.Printf("[webrtc %s] capture resample error: %v", c.peerID, err)
			continue
		}

		frameCount++
		if frameCount%500 == 1 {
			log.Printf("[webrtc %s] capture frame #%d: %d samples", c.peerID, frameCount, n)
		}

		c.relay.Receive(pcm16k)
	}
}

// fillPlayoutBuffer drains the relay handler's output into the pacer.
func (c *webrtcConnection) fillPlayoutBuffer() {
	defer c.wg.Done()

	for {
		frame, ok := c.relay.Emit(c.ctx)
		if !ok {
			return
		}

		pcm48k, err := c.playoutResampler.Convert(frame)
		if err != nil {
			log.Printf("[webrtc %s] playout resample error: %v", c.peerID, err)
			continue
		}
		c.pacer.Write(pcm48k)
	}
}

// playout encodes one paced 20ms frame per tick onto the local track. The
// pacer yields silence when the model is quiet, which DTX compresses away.
func (c *webrtcConnection) playout() {
	defer c.wg.Done()

	ticker := time.NewTicker(audio.FrameDurationMs * time.Millisecond)
	defer ticker.Stop()

	opusBuf := make([]byte, 1275)

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
		}

		track := c.localAudioTrack
		if track == nil {
			continue
		}

		pcm := audio.BytesToInt16(c.pacer.ReadFrame())
		n, err := c.audioEncoder.Encode(pcm, opusBuf)
		if err != nil {
			log.Printf("[webrtc %s] Opus encode error: %v", c.peerID, err)
			continue
		}

		sample := media.Sample{
			Data:     opusBuf[:n],
			Duration: audio.FrameDurationMs * time.Millisecond,
		}
		if err := track.WriteSample(sample); err != nil {
			log.Printf("[webrtc %s] write audio sample error: %v", c.peerID, err)
		}
	}
}

func (c *webrtcConnection) Close() error {
	c.once.Do(func() {
		c.cancel()
		// Closing the peer connection unblocks a pending ReadRTP.
		if c.pc != nil {
			c.pc.Close()
		}
		c.wg.Wait()
		c.captureResampler.Free()
		c.playoutResampler.Free()
	})
	return nil
}

// mapWebRTCState maps WebRTC PeerConnectionState to ConnectionState.
func mapWebRTCState(state webrtc.PeerConnectionState) ConnectionState {
	switch state {
	case webrtc.PeerConnectionStateNew:
		return ConnectionStateNew
	case webrtc.PeerConnectionStateConnecting:
		return ConnectionStateConnecting
	case webrtc.PeerConnectionStateConnected:
		return ConnectionStateConnected
	case webrtc.PeerConnectionStateDisconnected:
		return ConnectionStateDisconnected
	case webrtc.PeerConnectionStateFailed:
		return ConnectionStateFailed
	case webrtc.PeerConnectionStateClosed:
		return ConnectionStateClosed
	default:
		return ConnectionStateFailed
	}
}
