package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/persona-ai/persona-ai/pkg/chat"
	"github.com/persona-ai/persona-ai/pkg/memory"
	"github.com/persona-ai/persona-ai/pkg/prompt"
	"github.com/persona-ai/persona-ai/pkg/relay"
	"github.com/persona-ai/persona-ai/pkg/server"
	"github.com/persona-ai/persona-ai/pkg/trace"
	"github.com/persona-ai/persona-ai/pkg/turn"
)

// Mode selects the deployment flavor via the MODE environment variable.
type Mode int

const (
	// ModeServer runs the standard HTTP + WebRTC server.
	ModeServer Mode = iota
	// ModeUI runs the local test UI on a development port.
	ModeUI
	// ModePhone runs the telephony media-stream server with fixed call
	// parameters.
	ModePhone
)

func parseMode(s string) Mode {
	switch strings.ToUpper(s) {
	case "UI":
		return ModeUI
	case "PHONE":
		return ModePhone
	default:
		return ModeServer
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	godotenv.Load()

	ctx := context.Background()
	if err := trace.Initialize(ctx, trace.DefaultConfig()); err != nil {
		log.Printf("tracing disabled: %v", err)
	}
	defer trace.Shutdown(ctx)

	port := getEnv("PORT", "7860")
	mode := parseMode(os.Getenv("MODE"))

	prompts := prompt.NewStore(getEnv("PROMPTS_DIR", "prompts"))
	relayCfg := relay.Config{
		Model:   os.Getenv("LIVE_MODEL"),
		Prompts: prompts,
	}

	switch mode {
	case ModePhone:
		if err := startPhoneServer(":"+port, relayCfg); err != nil {
			log.Fatal(err)
		}
	case ModeUI:
		if err := startUIServer(":"+getEnv("UI_PORT", "7861"), relayCfg); err != nil {
			log.Fatal(err)
		}
	default:
		if err := startServer(":"+port, prompts, relayCfg); err != nil {
			log.Fatal(err)
		}
	}
}

// startServer runs the HTTP + WebRTC server.
func startServer(addr string, prompts *prompt.Store, relayCfg relay.Config) error {
	rtcUDPPort, _ := strconv.Atoi(getEnv("RTC_UDP_PORT", "9000"))

	rtc := server.NewRTCServer(&server.Config{
		RTCUDPPort: rtcUDPPort,
	}, relayCfg)
	if err := rtc.Start(); err != nil {
		return err
	}

	generator, err := chat.NewGeminiGenerator(context.Background(), chat.GeminiConfig{})
	if err != nil {
		return err
	}
	responder := chat.NewResponder(prompts, memory.NewStore(), generator)

	app := server.NewApp(rtc, responder, turn.NewClient(turn.Config{}),
		getEnv("INDEX_PATH", "static/index.html"))

	log.Printf("server starting on %s", addr)
	return http.ListenAndServe(addr, app.Routes())
}

// startUIServer runs the local test UI: the signaling page and the voice
// call endpoints only, no text chat backend.
func startUIServer(addr string, relayCfg relay.Config) error {
	rtcUDPPort, _ := strconv.Atoi(getEnv("RTC_UDP_PORT", "9000"))

	rtc := server.NewRTCServer(&server.Config{
		RTCUDPPort: rtcUDPPort,
	}, relayCfg)
	if err := rtc.Start(); err != nil {
		return err
	}

	app := server.NewApp(rtc, nil, turn.NewClient(turn.Config{}),
		getEnv("INDEX_PATH", "static/index.html"))

	mux := http.NewServeMux()
	mux.HandleFunc("/", app.HandleIndex)
	mux.HandleFunc("/session", rtc.HandleNegotiate)
	mux.HandleFunc("/input_hook", app.HandleInputHook)

	log.Printf("test UI starting on %s", addr)
	return http.ListenAndServe(addr, mux)
}

// startPhoneServer runs the telephony media-stream server. Phone callers get
// the deployment's fixed voice and persona.
func startPhoneServer(addr string, relayCfg relay.Config) error {
	defaults := relay.Params{
		APIKey:  os.Getenv("GEMINI_API_KEY"),
		Voice:   getEnv("PHONE_VOICE", "Puck"),
		Persona: getEnv("PHONE_PERSONA", prompt.DefaultPersona),
	}

	phone := server.NewPhoneServer(server.PhoneServerConfig{
		StreamURL: os.Getenv("PHONE_STREAM_URL"),
	}, relayCfg, defaults)

	mux := http.NewServeMux()
	phone.RegisterRoutes(mux)

	log.Printf("phone server starting on %s", addr)
	return http.ListenAndServe(addr, mux)
}
