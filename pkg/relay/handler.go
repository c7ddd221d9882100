// Package relay implements the per-call audio session handler: the component
// that bridges one peer's bidirectional audio stream to one upstream realtime
// voice session.
//
// A Handler owns two frame queues (inbound audio awaiting upload, outbound
// audio awaiting playout), a quit flag, and the lifecycle of exactly one
// upstream session. Per-call parameters (API key, voice, persona) arrive
// out-of-band via AttachParams; the upstream session is opened lazily, at most
// once, and only after parameters are present.
package relay

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/persona-ai/persona-ai/pkg/prompt"
	"github.com/persona-ai/persona-ai/pkg/trace"
)

const (
	// InputSampleRate is the fixed inbound PCM rate (mono, 16-bit).
	InputSampleRate = 16000
	// OutputSampleRate is the fixed outbound PCM rate (mono, 16-bit).
	OutputSampleRate = 24000

	// DefaultQueueCapacity bounds each frame queue. At 20ms per frame this
	// is over ten seconds of audio; the drop-oldest policy only engages
	// when a leg stalls.
	DefaultQueueCapacity = 512

	// DefaultConfigTimeout bounds how long a handler waits in
	// AwaitingConfig before aborting the call.
	DefaultConfigTimeout = 30 * time.Second
)

// ErrMissingParams indicates the per-call parameters never arrived before the
// configuration timeout expired.
var ErrMissingParams = errors.New("call parameters never arrived")

// errQuit marks a shutdown requested while still waiting for parameters;
// a peer hanging up before configuring is a normal close, not a failure.
var errQuit = errors.New("shutdown requested")

// Params are the per-call parameters delivered out-of-band before the
// upstream session can open.
type Params struct {
	APIKey  string
	Voice   string
	Persona string
}

// Config holds handler configuration.
type Config struct {
	// Model is the upstream live model (default: DefaultLiveModel).
	Model string
	// QueueCapacity bounds the inbound and outbound frame queues.
	QueueCapacity int
	// ConfigTimeout bounds the AwaitingConfig state. Always finite.
	ConfigTimeout time.Duration
	// Connector opens the upstream session (default: GeminiConnector).
	Connector Connector
	// Prompts resolves persona names to system instructions.
	Prompts *prompt.Store
}

// Handler relays audio between one peer and one upstream live session.
type Handler struct {
	id  string
	cfg Config

	in  *frameQueue
	out *frameQueue

	paramsMu  sync.Mutex
	params    Params
	paramsSet chan struct{}

	state atomic.Int32

	quit     chan struct{}
	quitOnce sync.Once

	startOnce sync.Once
	done      chan struct{}
	err       error
}

// NewHandler creates a handler for one call. The handler does nothing until
// Start.
func NewHandler(id string, cfg Config) *Handler {
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = DefaultQueueCapacity
	}
	if cfg.ConfigTimeout <= 0 {
		cfg.ConfigTimeout = DefaultConfigTimeout
	}
	if cfg.Connector == nil {
		cfg.Connector = &GeminiConnector{}
	}

	h := &Handler{
		id:        id,
		cfg:       cfg,
		in:        newFrameQueue(cfg.QueueCapacity),
		out:       newFrameQueue(cfg.QueueCapacity),
		paramsSet: make(chan struct{}),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	h.state.Store(int32(StateCreated))
	return h
}

// ID returns the call identifier assigned by the transport layer.
func (h *Handler) ID() string {
	return h.id
}

// State returns the current lifecycle state.
func (h *Handler) State() State {
	return State(h.state.Load())
}

// Done is closed once the handler reaches Closed.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}

// Err reports why the handler closed, nil for a normal shutdown. Only
// meaningful after Done is closed.
func (h *Handler) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// AttachParams delivers the per-call parameters. The first call wins;
// repeat calls for the same handler are no-ops, so the upstream session's
// persona and voice always reflect the parameters that arrived first.
func (h *Handler) AttachParams(apiKey, voice, persona string) {
	h.paramsMu.Lock()
	defer h.paramsMu.Unlock()

	select {
	case <-h.paramsSet:
		log.Printf("[relay %s] parameters already attached, ignoring", h.id)
		return
	default:
	}

	h.params = Params{APIKey: apiKey, Voice: voice, Persona: persona}
	close(h.paramsSet)
}

// Start launches the handler's lifecycle. Subsequent calls are no-ops.
func (h *Handler) Start(ctx context.Context) {
	h.startOnce.Do(func() {
		go h.run(ctx)
	})
}

// Receive accepts one inbound 16kHz mono PCM frame and enqueues it without
// blocking. Frames received before Streaming are buffered up to the queue
// capacity.
func (h *Handler) Receive(pcm []byte) {
	h.in.push(pcm)
}

// Emit blocks until an outbound 24kHz PCM frame is available or the handler
// closes. The second return value is false at end-of-stream.
func (h *Handler) Emit(ctx context.Context) ([]byte, bool) {
	select {
	case frame, ok := <-h.out.frames():
		return frame, ok
	case <-ctx.Done():
		return nil, false
	}
}

// Shutdown requests a cooperative stop. Idempotent and safe to call from any
// goroutine; the duties exit at their next queue or session boundary.
func (h *Handler) Shutdown() {
	h.quitOnce.Do(func() {
		if h.State() == StateStreaming {
			h.state.Store(int32(StateShuttingDown))
		}
		close(h.quit)
	})
}

func (h *Handler) run(ctx context.Context) {
	err := h.relay(ctx)
	if errors.Is(err, errQuit) {
		err = nil
	}

	h.in.close()
	h.out.close()
	h.state.Store(int32(StateClosed))
	h.err = err
	close(h.done)

	if err != nil {
		log.Printf("[relay %s] closed: %v", h.id, err)
	} else {
		log.Printf("[relay %s] closed", h.id)
	}
}

func (h *Handler) relay(ctx context.Context) error {
	params, err := h.awaitParams(ctx)
	if err != nil {
		return err
	}

	h.state.Store(int32(StateConnecting))

	ctx, span := trace.StartSpan(ctx, "relay.session")
	span.SetAttributes(trace.SessionAttrs(h.id, params.Persona, params.Voice)...)
	defer span.End()

	systemPrompt, err := h.cfg.Prompts.Resolve(params.Persona)
	if err != nil {
		trace.RecordError(span, err)
		return err
	}

	session, err := h.cfg.Connector.Connect(ctx, ConnectParams{
		APIKey:       params.APIKey,
		Model:        h.cfg.Model,
		Voice:        params.Voice,
		SystemPrompt: systemPrompt,
	})
	if err != nil {
		trace.RecordError(span, err)
		return err
	}
	// Released on every exit path; also the lever that unblocks a pending
	// upstream read during shutdown.
	defer session.Close()

	h.state.Store(int32(StateStreaming))
	log.Printf("[relay %s] streaming (voice=%s persona=%s)", h.id, params.Voice, params.Persona)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		h.upload(ctx, session)
	}()
	go func() {
		defer wg.Done()
		h.download(session)
	}()

	// Close the session as soon as shutdown is requested so the download
	// duty's blocking read returns promptly.
	closer := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-h.quit:
		case <-closer:
		}
		session.Close()
	}()
	defer close(closer)

	wg.Wait()
	return nil
}

// awaitParams waits for AttachParams, bounded by the configuration timeout.
// In fixed-config deployments the parameters are attached before Start, so
// the AwaitingConfig state is skipped entirely.
func (h *Handler) awaitParams(ctx context.Context) (Params, error) {
	select {
	case <-h.paramsSet:
		return h.params, nil
	default:
	}

	h.state.Store(int32(StateAwaitingConfig))

	timer := time.NewTimer(h.cfg.ConfigTimeout)
	defer timer.Stop()

	select {
	case <-h.paramsSet:
		return h.params, nil
	case <-timer.C:
		return Params{}, ErrMissingParams
	case <-h.quit:
		return Params{}, errQuit
	case <-ctx.Done():
		return Params{}, ctx.Err()
	}
}

// upload drains the inbound queue into the upstream session, preserving FIFO
// order. Cancellation is observed at every queue boundary.
func (h *Handler) upload(ctx context.Context, session Session) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.quit:
			return
		case frame, ok := <-h.in.frames():
			if !ok {
				return
			}
			if err := session.SendAudio(frame); err != nil {
				log.Printf("[relay %s] upload error: %v", h.id, err)
				return
			}
		}
	}
}

// download moves upstream audio onto the outbound queue in production order.
// It exits when the session ends, which shutdown forces by closing the
// session underneath the blocking read. The upstream ending on its own also
// ends the call, so the upload duty is released on exit.
func (h *Handler) download(session Session) {
	defer h.Shutdown()
	for {
		pcm, err := session.ReceiveAudio()
		if err != nil {
			if err != io.EOF {
				log.Printf("[relay %s] download ended: %v", h.id, err)
			}
			return
		}
		h.out.push(pcm)
	}
}
