package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"regexp"

	"github.com/reelscript/api/internal/store"
)

const (
	publicIDAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	publicIDLength     = 10 // ~59 bits of entropy
	publicIDLongLength = 16 // used after repeated collisions
	publicPathSegment  = "/s/"

	publicIDMaxAttempts = 3
)

var publicIDPattern = regexp.MustCompile(`^(?:[A-Za-z0-9]{10}|[A-Za-z0-9]{16})$`)

// ValidPublicID checks the fixed charset and length of a public identifier.
// Malformed ids are rejected before any store lookup.
func ValidPublicID(id string) bool {
	return publicIDPattern.MatchString(id)
}

// PublicLinkService issues collision-resistant public identifiers and builds
// the shareable URL for an artifact.
type PublicLinkService struct {
	artifacts store.ArtifactStore
	baseURL   string
}

func NewPublicLinkService(artifacts store.ArtifactStore, baseURL string) *PublicLinkService {
	return &PublicLinkService{artifacts: artifacts, baseURL: baseURL}
}

// NewPublicID draws a fresh identifier, retrying on collisions against the
// artifact store and falling back to a longer token when the short space
// keeps colliding.
func (s *PublicLinkService) NewPublicID(ctx context.Context) (string, error) {
	for attempt := 0; attempt < publicIDMaxAttempts; attempt++ {
		id, err := randomToken(publicIDLength)
		if err != nil {
			return "", err
		}
		exists, err := s.artifacts.PublicIDExists(ctx, id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
	}

	id, err := randomToken(publicIDLongLength)
	if err != nil {
		return "", err
	}
	exists, err := s.artifacts.PublicIDExists(ctx, id)
	if err != nil {
		return "", err
	}
	if exists {
		return "", fmt.Errorf("public id space exhausted")
	}
	return id, nil
}

// URL builds the full public link for an identifier.
func (s *PublicLinkService) URL(publicID string) string {
	return s.baseURL + publicPathSegment + publicID
}

// randomToken returns n characters drawn uniformly from the public id
// alphabet using crypto/rand, with rejection sampling to avoid modulo bias.
func randomToken(n int) (string, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	// 248 is the largest multiple of len(alphabet)=62 below 256.
	const limit = 248
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, publicIDAlphabet[int(b)%len(publicIDAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
