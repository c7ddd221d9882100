package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/persona-ai/persona-ai/pkg/chat"
	"github.com/persona-ai/persona-ai/pkg/prompt"
	"github.com/persona-ai/persona-ai/pkg/trace"
	"github.com/persona-ai/persona-ai/pkg/turn"
)

// rtcConfigPlaceholder is replaced in the served index page with freshly
// fetched ICE/TURN credentials on every request.
const rtcConfigPlaceholder = "__RTC_CONFIGURATION__"

// App wires the HTTP surface: the index page, text chat, per-call
// configuration delivery, and WebRTC negotiation.
type App struct {
	rtc       *RTCServer
	responder *chat.Responder
	turn      *turn.Client
	indexPath string
}

// NewApp creates the HTTP application. The responder may be nil when the
// chat endpoint is not routed.
func NewApp(rtc *RTCServer, responder *chat.Responder, turnClient *turn.Client, indexPath string) *App {
	return &App{
		rtc:       rtc,
		responder: responder,
		turn:      turnClient,
		indexPath: indexPath,
	}
}

// Routes registers all endpoints on a new mux.
func (a *App) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", a.HandleIndex)
	mux.HandleFunc("/session", a.rtc.HandleNegotiate)
	mux.HandleFunc("/chat", a.HandleChat)
	mux.HandleFunc("/input_hook", a.HandleInputHook)
	return mux
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	UserInput string `json:"user_input"`
	Character string `json:"character"`
}

type chatResponse struct {
	Response string `json:"response"`
}

// HandleChat runs one text chat turn against the persona's transcript.
func (a *App) HandleChat(w http.ResponseWriter, r *http.Request) {
	writeCORS(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Failed to parse request", http.StatusBadRequest)
		return
	}

	ctx, span := trace.StartSpan(r.Context(), "chat.respond")
	span.SetAttributes(trace.SessionAttrs(req.SessionID, req.Character, "")...)
	defer span.End()

	reply, err := a.responder.Respond(ctx, req.SessionID, req.UserInput, req.Character)
	if err != nil {
		trace.RecordError(span, err)
		switch {
		case errors.Is(err, prompt.ErrInvalidName):
			http.Error(w, "Invalid persona name", http.StatusBadRequest)
		case errors.Is(err, prompt.ErrNotFound):
			http.Error(w, "Unknown persona", http.StatusNotFound)
		default:
			log.Printf("[http] chat turn failed (session %s): %v", req.SessionID, err)
			http.Error(w, "Chat generation failed", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, chatResponse{Response: reply})
}

type inputHookRequest struct {
	WebRTCID  string `json:"webrtc_id"`
	APIKey    string `json:"api_key"`
	VoiceName string `json:"voice_name"`
	Character string `json:"character"`
}

// HandleInputHook delivers per-call parameters to a negotiated handler.
// The response is ok regardless of whether the peer exists; a missing peer
// usually means the hook raced negotiation, and the config timeout on the
// handler side bounds how long the mistake can linger.
func (a *App) HandleInputHook(w http.ResponseWriter, r *http.Request) {
	writeCORS(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req inputHookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Failed to parse request", http.StatusBadRequest)
		return
	}

	if handler, ok := a.rtc.Handler(req.WebRTCID); ok {
		handler.AttachParams(req.APIKey, req.VoiceName, req.Character)
	} else {
		log.Printf("[http] input_hook for unknown peer %q", req.WebRTCID)
	}

	writeJSON(w, map[string]string{"status": "ok"})
}

// HandleIndex serves the signaling page with the RTC configuration
// placeholder substituted per-request.
func (a *App) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	page, err := os.ReadFile(a.indexPath)
	if err != nil {
		log.Printf("[http] read index page: %v", err)
		http.Error(w, "Index page unavailable", http.StatusInternalServerError)
		return
	}

	rtcConfig, err := a.turn.Credentials(r.Context())
	if err != nil {
		log.Printf("[http] fetch turn credentials: %v", err)
		rtcConfig = &turn.RTCConfiguration{}
	}

	encoded, err := json.Marshal(rtcConfig)
	if err != nil {
		http.Error(w, "Failed to encode RTC configuration", http.StatusInternalServerError)
		return
	}

	html := strings.ReplaceAll(string(page), rtcConfigPlaceholder, string(encoded))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[http] write response: %v", err)
	}
}
