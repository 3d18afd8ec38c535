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
	"github.com/reelscript/api/internal/fault"
)

// ErrNoAudio is returned by Transcribe when the source has no audio track.
// Callers treat it as a degraded result, not a failure.
var ErrNoAudio = errors.New("media has no audio track")

// DownloadResult describes the fetched media.
type DownloadResult struct {
	MediaURL    string  `json:"media_url"`
	SizeBytes   int64   `json:"size_bytes"`
	DurationSec float64 `json:"duration_sec"`
}

// MediaClient talks to the media toolbox sidecar (yt-dlp/ffmpeg behind HTTP)
// for acquisition, transcription and frame extraction. Each operation has
// its own timeout so one hung call cannot hold a worker slot past the job's
// retry interval.
type MediaClient struct {
	httpClient        *http.Client
	baseURL           string
	maxSizeBytes      int64
	maxDurationSec    float64
	downloadTimeout   time.Duration
	transcribeTimeout time.Duration
	framesTimeout     time.Duration
}

func NewMediaClient(cfg *config.MediaConfig, bounds *config.AnalysisConfig) *MediaClient {
	return &MediaClient{
		httpClient:        &http.Client{},
		baseURL:           cfg.ServiceURL,
		maxSizeBytes:      int64(bounds.MaxVideoMB) * 1024 * 1024,
		maxDurationSec:    float64(bounds.MaxDurationSec),
		downloadTimeout:   time.Duration(cfg.DownloadTimeoutSec) * time.Second,
		transcribeTimeout: time.Duration(cfg.TranscribeTimeoutSec) * time.Second,
		framesTimeout:     time.Duration(cfg.FramesTimeoutSec) * time.Second,
	}
}

// Download fetches the source media and enforces the configured size and
// duration bounds. Bound violations are terminal acquisition faults: retrying
// cannot shrink the video.
func (c *MediaClient) Download(ctx context.Context, sourceURL string) (*DownloadResult, error) {
	var result DownloadResult
	err := c.post(ctx, c.downloadTimeout, "/download", map[string]string{"url": sourceURL}, &result)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			return nil, fault.Terminalf(fault.Acquisition, "source unavailable: %s", apiErr.Body)
		}
		return nil, fault.Transient(fault.Acquisition, err)
	}

	if c.maxSizeBytes > 0 && result.SizeBytes > c.maxSizeBytes {
		return nil, fault.Terminalf(fault.Acquisition, "media size %d exceeds limit %d", result.SizeBytes, c.maxSizeBytes)
	}
	if c.maxDurationSec > 0 && result.DurationSec > c.maxDurationSec {
		return nil, fault.Terminalf(fault.Acquisition, "media duration %.0fs exceeds limit %.0fs", result.DurationSec, c.maxDurationSec)
	}
	return &result, nil
}

// Transcribe extracts the audio track and returns its transcript. A source
// without audio returns ErrNoAudio.
func (c *MediaClient) Transcribe(ctx context.Context, mediaURL string) (string, error) {
	var result struct {
		Transcript string `json:"transcript"`
	}
	err := c.post(ctx, c.transcribeTimeout, "/transcribe", map[string]string{"media_url": mediaURL}, &result)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnprocessableEntity {
			return "", ErrNoAudio
		}
		return "", err
	}
	return result.Transcript, nil
}

// ExtractFrames pulls up to count representative frames and returns their
// hosted URLs.
func (c *MediaClient) ExtractFrames(ctx context.Context, mediaURL string, count int) ([]string, error) {
	var result struct {
		FrameURLs []string `json:"frame_urls"`
	}
	payload := map[string]interface{}{"media_url": mediaURL, "count": count}
	if err := c.post(ctx, c.framesTimeout, "/frames", payload, &result); err != nil {
		return nil, err
	}
	return result.FrameURLs, nil
}

func (c *MediaClient) post(ctx context.Context, timeout time.Duration, path string, body, out interface{}) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("media service request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &APIError{Service: "media", Status: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}
