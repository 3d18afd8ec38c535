package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/reelscript/api/internal/config"
)

// GroqClient handles communication with the Groq OpenAI-compatible API. One
// client serves both content analysis (vision) and script generation; on a
// rate-limited or failing model it falls through the configured fallback
// models in order before giving up.
type GroqClient struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	models      []string // primary first, then fallbacks
	visionModel string
}

// ChatMessage represents a message in the chat completion request. Content
// is either a plain string or a list of multimodal content parts.
type ChatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// NewGroqClient creates a new Groq API client.
func NewGroqClient(cfg *config.GroqConfig) *GroqClient {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GroqClient{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		models:      append([]string{cfg.Model}, cfg.FallbackModels...),
		visionModel: cfg.VisionModel,
	}
}

// ChatCompletion runs a text-only completion, walking the model fallback
// chain on transient failures.
func (c *GroqClient) ChatCompletion(ctx context.Context, system, user string) (string, error) {
	messages := []ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
	return c.completeWithFallback(ctx, c.models, messages)
}

// AnalyzeVision runs a multimodal completion over the user prompt plus frame
// images. The vision model has no configured fallback chain; a failure there
// falls back to the text models with the images dropped.
func (c *GroqClient) AnalyzeVision(ctx context.Context, system, user string, frameURLs []string) (string, error) {
	parts := []contentPart{{Type: "text", Text: user}}
	for _, u := range frameURLs {
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: u}})
	}
	messages := []ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: parts},
	}

	if c.visionModel != "" && len(frameURLs) > 0 {
		out, err := c.complete(ctx, c.visionModel, messages)
		if err == nil {
			return out, nil
		}
		if !IsTransient(err) {
			return "", err
		}
	}

	textOnly := []ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
	return c.completeWithFallback(ctx, c.models, textOnly)
}

func (c *GroqClient) completeWithFallback(ctx context.Context, models []string, messages []ChatMessage) (string, error) {
	var lastErr error
	for _, m := range models {
		out, err := c.complete(ctx, m, messages)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !IsTransient(err) {
			break
		}
	}
	return "", lastErr
}

func (c *GroqClient) complete(ctx context.Context, model string, messages []ChatMessage) (string, error) {
	reqBody := chatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: 0.7,
		MaxTokens:   1024,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Service: "groq", Status: resp.StatusCode, Body: string(respBody)}
	}

	var chatResp chatCompletionResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return chatResp.Choices[0].Message.Content, nil
}

// IsConfigured returns true if the client has valid configuration.
func (c *GroqClient) IsConfigured() bool {
	return c.apiKey != ""
}
