package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/reelscript/api/internal/config"
)

// RenderClient renders script text into a shareable card image through the
// render sidecar. The sidecar hands out one browser session per client;
// acquiring it is expensive, so the handle is created lazily, shared across
// jobs, and re-acquired when the sidecar reports it gone.
type RenderClient struct {
	httpClient *http.Client
	baseURL    string

	mu      sync.Mutex
	session string
}

func NewRenderClient(cfg *config.RenderConfig) *RenderClient {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RenderClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.ServiceURL,
	}
}

// RenderCard renders text into a PNG. A stale session is invalidated and
// re-acquired once before the error is surfaced.
func (c *RenderClient) RenderCard(ctx context.Context, text string) ([]byte, error) {
	session, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}

	img, err := c.render(ctx, session, text)
	if err == nil {
		return img, nil
	}

	if isSessionGone(err) {
		c.invalidate(session)
		session, err = c.acquire(ctx)
		if err != nil {
			return nil, err
		}
		return c.render(ctx, session, text)
	}
	return nil, err
}

// acquire returns the pooled session handle, creating it on first use.
func (c *RenderClient) acquire(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != "" {
		return c.session, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/session", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("render service request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Service: "render", Status: resp.StatusCode, Body: string(body)}
	}

	var result struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if result.SessionID == "" {
		return "", fmt.Errorf("render service returned empty session")
	}

	c.session = result.SessionID
	return c.session, nil
}

// invalidate drops the cached handle if it is still the one that failed.
func (c *RenderClient) invalidate(session string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == session {
		c.session = ""
	}
}

func (c *RenderClient) render(ctx context.Context, session, text string) ([]byte, error) {
	payload := map[string]string{
		"session_id": session,
		"text":       text,
	}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/render", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render service request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Service: "render", Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// isSessionGone matches the sidecar's "session expired or disconnected"
// responses.
func isSessionGone(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusConflict || apiErr.Status == http.StatusGone
	}
	return false
}
