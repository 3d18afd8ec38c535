package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/reelscript/api/internal/model"
)

type fakeArtifacts struct {
	scripts map[string]*model.Script
	lookups int
}

func (f *fakeArtifacts) GetByFingerprint(_ context.Context, _ string) (*model.Script, error) {
	return nil, nil
}

func (f *fakeArtifacts) GetByPublicID(_ context.Context, id string) (*model.Script, error) {
	f.lookups++
	return f.scripts[id], nil
}

func (f *fakeArtifacts) PublicIDExists(_ context.Context, id string) (bool, error) {
	_, ok := f.scripts[id]
	return ok, nil
}

func (f *fakeArtifacts) Save(_ context.Context, s *model.Script) error {
	f.scripts[s.PublicID] = s
	return nil
}

func (f *fakeArtifacts) RecentBySource(_ context.Context, _ string, _ int) ([]*model.Script, error) {
	return nil, nil
}

func artifactApp(arts *fakeArtifacts) *fiber.App {
	app := fiber.New()
	h := NewArtifactHandler(arts, zap.NewNop())
	app.Get("/s/:publicId", h.Show)
	return app
}

func getPage(t *testing.T, app *fiber.App, path string) *http.Response {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func TestShow_ServesArtifact(t *testing.T) {
	arts := &fakeArtifacts{scripts: map[string]*model.Script{
		"abcDEF1234": {
			PublicID:   "abcDEF1234",
			ResultText: "Hook: stop scrolling",
			ImageURL:   "https://cdn.example/cards/x.png",
		},
	}}
	resp := getPage(t, artifactApp(arts), "/s/abcDEF1234")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if cc := resp.Header.Get("Cache-Control"); !strings.Contains(cc, "immutable") {
		t.Errorf("artifact page should be cacheable as immutable, got %q", cc)
	}
	if resp.Header.Get("X-Robots-Tag") != "noindex" {
		t.Error("artifact page must opt out of indexing")
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Hook: stop scrolling") {
		t.Error("expected the script text on the page")
	}
	if !strings.Contains(string(body), "https://cdn.example/cards/x.png") {
		t.Error("expected the card image on the page")
	}
}

func TestShow_EscapesScriptContent(t *testing.T) {
	arts := &fakeArtifacts{scripts: map[string]*model.Script{
		"abcDEF1234": {
			PublicID:   "abcDEF1234",
			ResultText: `<script>alert("x")</script>`,
		},
	}}
	resp := getPage(t, artifactApp(arts), "/s/abcDEF1234")

	body, _ := io.ReadAll(resp.Body)
	if strings.Contains(string(body), `<script>alert`) {
		t.Error("stored text must be HTML-escaped")
	}
}

func TestShow_MalformedIDSkipsStore(t *testing.T) {
	arts := &fakeArtifacts{scripts: map[string]*model.Script{}}
	resp := getPage(t, artifactApp(arts), "/s/..%2F..%2Fetc")

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
	if arts.lookups != 0 {
		t.Error("malformed id must be rejected before any store access")
	}
}

func TestShow_MissingAndMalformedAreIndistinguishable(t *testing.T) {
	arts := &fakeArtifacts{scripts: map[string]*model.Script{}}
	app := artifactApp(arts)

	missing := getPage(t, app, "/s/aaaaaaaaaa")
	malformed := getPage(t, app, "/s/bad")

	if missing.StatusCode != http.StatusNotFound || malformed.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for both, got %d and %d", missing.StatusCode, malformed.StatusCode)
	}
	b1, _ := io.ReadAll(missing.Body)
	b2, _ := io.ReadAll(malformed.Body)
	if string(b1) != string(b2) {
		t.Error("missing and malformed ids must produce identical responses")
	}
}
