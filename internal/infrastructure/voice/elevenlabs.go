package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"BananaBot/internal/config"
	"BananaBot/internal/ports"
)

const (
	fallbackText = "Bananas bot response"
	maxAudioSize = 10 << 20
)

// Client talks to the ElevenLabs text-to-speech API.
type Client struct {
	endpoint string
	apiKey   string
	voiceID  string
	model    string
	http     *http.Client
}

var _ ports.Narrator = (*Client)(nil)

// NewClient returns nil when no API key is configured, which disables narration.
func NewClient(cfg config.ElevenLabsConfig) *Client {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Client{
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		voiceID:  cfg.VoiceID,
		model:    cfg.Model,
		http:     &http.Client{Timeout: timeout},
	}
}

// Synthesize renders text as MPEG audio.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if c == nil || c.http == nil {
		return nil, fmt.Errorf("narration disabled")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		text = fallbackText
	}

	payload := map[string]any{
		"text":     text,
		"model_id": c.model,
	}
	return c.post(ctx, "/v1/text-to-speech/"+url.PathEscape(c.voiceID), payload)
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioSize))
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("empty audio response")
	}
	return audio, nil
}
