package service

import (
	"context"
	"strings"
	"testing"

	"github.com/reelscript/api/internal/model"
)

// fakeArtifacts implements store.ArtifactStore over a map.
type fakeArtifacts struct {
	byFingerprint map[string]*model.Script
	byPublicID    map[string]string
	saveCalls     int
}

func newFakeArtifacts() *fakeArtifacts {
	return &fakeArtifacts{
		byFingerprint: make(map[string]*model.Script),
		byPublicID:    make(map[string]string),
	}
}

func (f *fakeArtifacts) GetByFingerprint(_ context.Context, fp string) (*model.Script, error) {
	return f.byFingerprint[fp], nil
}

func (f *fakeArtifacts) GetByPublicID(_ context.Context, id string) (*model.Script, error) {
	fp, ok := f.byPublicID[id]
	if !ok {
		return nil, nil
	}
	return f.byFingerprint[fp], nil
}

func (f *fakeArtifacts) PublicIDExists(_ context.Context, id string) (bool, error) {
	_, ok := f.byPublicID[id]
	return ok, nil
}

func (f *fakeArtifacts) Save(_ context.Context, s *model.Script) error {
	f.saveCalls++
	if _, ok := f.byFingerprint[s.Fingerprint]; ok {
		return nil
	}
	f.byFingerprint[s.Fingerprint] = s
	f.byPublicID[s.PublicID] = s.Fingerprint
	return nil
}

func (f *fakeArtifacts) RecentBySource(_ context.Context, sourceKey string, n int) ([]*model.Script, error) {
	var out []*model.Script
	for _, s := range f.byFingerprint {
		if s.SourceKey == sourceKey && len(out) < n {
			out = append(out, s)
		}
	}
	return out, nil
}

func TestNewPublicID_FormatAndUniqueness(t *testing.T) {
	svc := NewPublicLinkService(newFakeArtifacts(), "https://share.example")

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id, err := svc.NewPublicID(context.Background())
		if err != nil {
			t.Fatalf("NewPublicID failed: %v", err)
		}
		if !ValidPublicID(id) {
			t.Fatalf("generated id %q fails its own format check", id)
		}
		if len(id) != 10 {
			t.Fatalf("expected 10-char id without collisions, got %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id generated: %q", id)
		}
		seen[id] = true
	}
}

func TestNewPublicID_CollisionFallsBackToLongToken(t *testing.T) {
	arts := newFakeArtifacts()
	svc := NewPublicLinkService(collidingArtifacts{arts}, "https://share.example")

	id, err := svc.NewPublicID(context.Background())
	if err != nil {
		t.Fatalf("NewPublicID failed: %v", err)
	}
	if len(id) != 16 {
		t.Errorf("expected long token after repeated collisions, got %q (len %d)", id, len(id))
	}
}

// collidingArtifacts reports every short id as taken.
type collidingArtifacts struct {
	*fakeArtifacts
}

func (c collidingArtifacts) PublicIDExists(_ context.Context, id string) (bool, error) {
	return len(id) == 10, nil
}

func TestValidPublicID(t *testing.T) {
	valid := []string{
		"abcDEF1234",
		strings.Repeat("a", 16),
	}
	for _, id := range valid {
		if !ValidPublicID(id) {
			t.Errorf("expected %q to be valid", id)
		}
	}

	invalid := []string{
		"",
		"short",
		strings.Repeat("a", 11),
		strings.Repeat("a", 17),
		"abcDEF123_",
		"abcDEF123-",
		"../../etc8",
	}
	for _, id := range invalid {
		if ValidPublicID(id) {
			t.Errorf("expected %q to be rejected", id)
		}
	}
}

func TestURL(t *testing.T) {
	svc := NewPublicLinkService(newFakeArtifacts(), "https://share.example")
	if got := svc.URL("abcDEF1234"); got != "https://share.example/s/abcDEF1234" {
		t.Errorf("unexpected url %q", got)
	}
}
