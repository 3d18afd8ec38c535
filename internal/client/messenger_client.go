package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/reelscript/api/internal/config"
)

// MessengerClient pushes the finished artifact to the messaging platform:
// the image URL and public link land on the subscriber's custom fields, then
// one message referencing them is sent. Delivery is best-effort; every
// sub-call has isolated error handling so a partial failure still sends
// whatever it can.
type MessengerClient struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	imageFieldID string
	linkFieldID  string
}

func NewMessengerClient(cfg *config.MessengerConfig) *MessengerClient {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &MessengerClient{
		httpClient:   &http.Client{Timeout: timeout},
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		imageFieldID: cfg.ImageFieldID,
		linkFieldID:  cfg.LinkFieldID,
	}
}

// Deliver runs the canonical delivery contract: image field, link field,
// then a single message. Field-set failures do not stop the message send;
// all errors are joined for the caller to log.
func (c *MessengerClient) Deliver(ctx context.Context, subscriberID, imageURL, link, text string) error {
	var errs []error

	if imageURL != "" && c.imageFieldID != "" {
		if err := c.SetField(ctx, subscriberID, c.imageFieldID, imageURL); err != nil {
			errs = append(errs, fmt.Errorf("set image field: %w", err))
		}
	}
	if link != "" && c.linkFieldID != "" {
		if err := c.SetField(ctx, subscriberID, c.linkFieldID, link); err != nil {
			errs = append(errs, fmt.Errorf("set link field: %w", err))
		}
	}
	if err := c.SendMessage(ctx, subscriberID, text, imageURL); err != nil {
		errs = append(errs, fmt.Errorf("send message: %w", err))
	}

	return errors.Join(errs...)
}

// SetField updates a single subscriber custom field.
func (c *MessengerClient) SetField(ctx context.Context, subscriberID, fieldID, value string) error {
	payload := map[string]interface{}{
		"subscriber_id": subscriberID,
		"field_id":      fieldID,
		"field_value":   value,
	}
	return c.post(ctx, "/fb/subscriber/setCustomField", payload)
}

// SendMessage sends one message to the subscriber, attaching the image when
// present.
func (c *MessengerClient) SendMessage(ctx context.Context, subscriberID, text, imageURL string) error {
	messages := []map[string]string{{"type": "text", "text": text}}
	if imageURL != "" {
		messages = append([]map[string]string{{"type": "image", "url": imageURL}}, messages...)
	}
	payload := map[string]interface{}{
		"subscriber_id": subscriberID,
		"data": map[string]interface{}{
			"version": "v2",
			"content": map[string]interface{}{"messages": messages},
		},
	}
	return c.post(ctx, "/fb/sending/sendContent", payload)
}

// IsConfigured returns true if the client has valid configuration.
func (c *MessengerClient) IsConfigured() bool {
	return c.apiKey != ""
}

func (c *MessengerClient) post(ctx context.Context, path string, payload interface{}) error {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("messenger request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{Service: "messenger", Status: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}
