package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/reelscript/api/internal/config"
	"github.com/reelscript/api/internal/fault"
)

func newMediaClient(t *testing.T, handler http.HandlerFunc) *MediaClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewMediaClient(
		&config.MediaConfig{ServiceURL: srv.URL, DownloadTimeoutSec: 5, TranscribeTimeoutSec: 5, FramesTimeoutSec: 5},
		&config.AnalysisConfig{MaxVideoMB: 100, MaxDurationSec: 180},
	)
}

func TestDownload_WithinBounds(t *testing.T) {
	c := newMediaClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"media_url":"https://media.example/v.mp4","size_bytes":1048576,"duration_sec":42}`))
	})

	res, err := c.Download(context.Background(), "https://x.example/reel/abc")
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	if res.MediaURL != "https://media.example/v.mp4" {
		t.Errorf("unexpected media url %q", res.MediaURL)
	}
}

func TestDownload_DurationBoundIsTerminal(t *testing.T) {
	c := newMediaClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"media_url":"https://media.example/v.mp4","size_bytes":1048576,"duration_sec":240}`))
	})

	_, err := c.Download(context.Background(), "https://x.example/reel/long")
	if err == nil {
		t.Fatal("expected error")
	}
	if fault.KindOf(err) != fault.Acquisition {
		t.Errorf("expected acquisition fault, got %v", err)
	}
	if fault.IsRetryable(err) {
		t.Error("a bound violation must be terminal; retrying cannot shrink the video")
	}
}

func TestDownload_SizeBoundIsTerminal(t *testing.T) {
	c := newMediaClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"media_url":"https://media.example/v.mp4","size_bytes":209715200,"duration_sec":30}`))
	})

	_, err := c.Download(context.Background(), "https://x.example/reel/huge")
	if err == nil {
		t.Fatal("expected error")
	}
	if fault.IsRetryable(err) {
		t.Error("a size violation must be terminal")
	}
}

func TestDownload_UnavailableSourceIsTerminal(t *testing.T) {
	c := newMediaClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("private or deleted"))
	})

	_, err := c.Download(context.Background(), "https://x.example/reel/gone")
	if err == nil {
		t.Fatal("expected error")
	}
	if fault.IsRetryable(err) {
		t.Error("a 4xx from the toolbox means the source itself is bad")
	}
}

func TestDownload_ServerErrorIsTransient(t *testing.T) {
	c := newMediaClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.Download(context.Background(), "https://x.example/reel/abc")
	if err == nil {
		t.Fatal("expected error")
	}
	if !fault.IsRetryable(err) {
		t.Error("a toolbox 5xx should be retried")
	}
}

func TestTranscribe_NoAudio(t *testing.T) {
	c := newMediaClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})

	_, err := c.Transcribe(context.Background(), "https://media.example/v.mp4")
	if !errors.Is(err, ErrNoAudio) {
		t.Errorf("expected ErrNoAudio, got %v", err)
	}
}

func TestExtractFrames(t *testing.T) {
	c := newMediaClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"frame_urls":["https://media.example/f0.jpg","https://media.example/f1.jpg"]}`))
	})

	frames, err := c.ExtractFrames(context.Background(), "https://media.example/v.mp4", 2)
	if err != nil {
		t.Fatalf("frames failed: %v", err)
	}
	if len(frames) != 2 {
		t.Errorf("expected 2 frames, got %d", len(frames))
	}
}
