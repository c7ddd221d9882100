// Package turn fetches short-lived TURN relay credentials for browser peers.
//
// Credentials come from the Cloudflare Calls TURN service and expire quickly,
// so the signaling page fetches a fresh set on every request.
package turn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

const defaultBaseURL = "https://rtc.live.cloudflare.com/v1/turn/keys"

// DefaultTTL is the lifetime requested for issued credentials.
const DefaultTTL = 600 * time.Second

// ICEServer is one entry of an RTCPeerConnection iceServers list.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// RTCConfiguration is the JSON blob injected into the signaling page.
type RTCConfiguration struct {
	ICEServers []ICEServer `json:"iceServers"`
}

// Config holds the Cloudflare TURN key credentials.
type Config struct {
	// KeyID identifies the TURN key (default: from TURN_KEY_ID env).
	KeyID string
	// APIToken authorizes credential generation (default: from
	// TURN_KEY_API_TOKEN env).
	APIToken string
	// TTL is the requested credential lifetime (default: DefaultTTL).
	TTL time.Duration
	// BaseURL overrides the Cloudflare endpoint, for tests.
	BaseURL string
	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client
}

// Client issues short-lived TURN credentials.
type Client struct {
	cfg Config
}

// NewClient creates a TURN credential client. Key ID and API token fall back
// to the TURN_KEY_ID / TURN_KEY_API_TOKEN environment variables.
func NewClient(cfg Config) *Client {
	if cfg.KeyID == "" {
		cfg.KeyID = os.Getenv("TURN_KEY_ID")
	}
	if cfg.APIToken == "" {
		cfg.APIToken = os.Getenv("TURN_KEY_API_TOKEN")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{cfg: cfg}
}

// Configured reports whether TURN credentials can be issued at all.
func (c *Client) Configured() bool {
	return c.cfg.KeyID != "" && c.cfg.APIToken != ""
}

// Credentials fetches a fresh RTC configuration. Without a configured TURN
// key it returns an empty configuration, which lets local deployments run
// without a relay.
func (c *Client) Credentials(ctx context.Context) (*RTCConfiguration, error) {
	if !c.Configured() {
		return &RTCConfiguration{}, nil
	}

	body, err := json.Marshal(map[string]int64{
		"ttl": int64(c.cfg.TTL / time.Second),
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s/credentials/generate-ice-servers", c.cfg.BaseURL, c.cfg.KeyID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch turn credentials: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("turn credential endpoint returned %s", resp.Status)
	}

	var rtcConfig RTCConfiguration
	if err := json.NewDecoder(resp.Body).Decode(&rtcConfig); err != nil {
		return nil, fmt.Errorf("decode turn credentials: %w", err)
	}
	return &rtcConfig, nil
}
