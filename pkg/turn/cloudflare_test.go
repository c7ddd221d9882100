package turn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentials(t *testing.T) {
	var gotAuth string
	var gotTTL int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")

		var body map[string]int64
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotTTL = body["ttl"]

		json.NewEncoder(w).Encode(RTCConfiguration{
			ICEServers: []ICEServer{{
				URLs:       []string{"turn:turn.example.com:3478"},
				Username:   "user",
				Credential: "secret",
			}},
		})
	}))
	defer server.Close()

	client := NewClient(Config{
		KeyID:    "key-1",
		APIToken: "token-1",
		TTL:      300 * time.Second,
		BaseURL:  server.URL,
	})

	cfg, err := client.Credentials(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Bearer token-1", gotAuth)
	assert.Equal(t, int64(300), gotTTL)
	require.Len(t, cfg.ICEServers, 1)
	assert.Equal(t, "user", cfg.ICEServers[0].Username)
}

func TestCredentialsUnconfigured(t *testing.T) {
	t.Setenv("TURN_KEY_ID", "")
	t.Setenv("TURN_KEY_API_TOKEN", "")

	client := NewClient(Config{})
	assert.False(t, client.Configured())

	cfg, err := client.Credentials(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cfg.ICEServers)
}

func TestCredentialsUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient(Config{
		KeyID:    "key-1",
		APIToken: "bad",
		BaseURL:  server.URL,
	})

	_, err := client.Credentials(context.Background())
	assert.Error(t, err)
}
