package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/persona-ai/persona-ai/pkg/chat"
	"github.com/persona-ai/persona-ai/pkg/memory"
	"github.com/persona-ai/persona-ai/pkg/prompt"
	"github.com/persona-ai/persona-ai/pkg/relay"
	"github.com/persona-ai/persona-ai/pkg/turn"
)

type stubGenerator struct {
	reply string
	err   error
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func newTestApp(t *testing.T, gen chat.Generator) *App {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default.txt"), []byte("Be helpful."), 0o644))

	prompts := prompt.NewStore(dir)
	responder := chat.NewResponder(prompts, memory.NewStore(), gen)

	rtc := NewRTCServer(&Config{}, relay.Config{Prompts: prompts})

	indexPath := filepath.Join(dir, "index.html")
	require.NoError(t, os.WriteFile(indexPath,
		[]byte("<html><script>const cfg = __RTC_CONFIGURATION__;</script></html>"), 0o644))

	t.Setenv("TURN_KEY_ID", "")
	t.Setenv("TURN_KEY_API_TOKEN", "")

	return NewApp(rtc, responder, turn.NewClient(turn.Config{}), indexPath)
}

func TestHandleChat(t *testing.T) {
	app := newTestApp(t, &stubGenerator{reply: "Hello there!"})

	body := `{"session_id":"abc","user_input":"hi","character":"default"}`
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()

	app.HandleChat(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Hello there!", resp.Response)
}

func TestHandleChatUnknownPersona(t *testing.T) {
	app := newTestApp(t, &stubGenerator{reply: "unused"})

	body := `{"session_id":"abc","user_input":"hi","character":"nobody"}`
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()

	app.HandleChat(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleChatInvalidPersona(t *testing.T) {
	app := newTestApp(t, &stubGenerator{reply: "unused"})

	body := `{"session_id":"abc","user_input":"hi","character":"../etc/passwd"}`
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()

	app.HandleChat(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleChatUpstreamFailure(t *testing.T) {
	app := newTestApp(t, &stubGenerator{err: assert.AnError})

	body := `{"session_id":"abc","user_input":"hi","character":"default"}`
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()

	app.HandleChat(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleInputHookUnknownPeer(t *testing.T) {
	app := newTestApp(t, &stubGenerator{})

	// No peer has negotiated; the hook still reports ok.
	body := `{"webrtc_id":"ghost","api_key":"k","voice_name":"Puck","character":"default"}`
	req := httptest.NewRequest(http.MethodPost, "/input_hook", strings.NewReader(body))
	rec := httptest.NewRecorder()

	app.HandleInputHook(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestHandleInputHookAttachesParams(t *testing.T) {
	app := newTestApp(t, &stubGenerator{})

	handler := relay.NewHandler("call-1", relay.Config{Prompts: prompt.NewStore(t.TempDir())})
	app.rtc.peers["call-1"] = &peer{handler: handler}

	body := `{"webrtc_id":"call-1","api_key":"k","voice_name":"Puck","character":"default"}`
	req := httptest.NewRequest(http.MethodPost, "/input_hook", strings.NewReader(body))
	rec := httptest.NewRecorder()

	app.HandleInputHook(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleIndexSubstitutesRTCConfiguration(t *testing.T) {
	app := newTestApp(t, &stubGenerator{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	app.HandleIndex(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	html := rec.Body.String()
	assert.NotContains(t, html, rtcConfigPlaceholder)
	assert.Contains(t, html, `"iceServers"`)
}

func TestHandleNegotiateRejectsOverCapacity(t *testing.T) {
	rtc := NewRTCServer(&Config{MaxSessions: 1}, relay.Config{})
	rtc.peers["busy"] = &peer{}

	req := httptest.NewRequest(http.MethodPost, "/session", strings.NewReader(`{"type":"offer","sdp":""}`))
	rec := httptest.NewRecorder()

	rtc.HandleNegotiate(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPhoneServerTwiML(t *testing.T) {
	s := NewPhoneServer(PhoneServerConfig{StreamURL: "wss://example.com/media"}, relay.Config{}, relay.Params{})

	req := httptest.NewRequest(http.MethodPost, "/twiml", nil)
	rec := httptest.NewRecorder()

	s.HandleTwiML(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<Stream url="wss://example.com/media" />`)
	assert.Equal(t, "application/xml", rec.Header().Get("Content-Type"))
}
