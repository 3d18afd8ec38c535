package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// Tracking parameters stripped during normalization so that shared links to
// the same reel collapse onto one cache key.
var trackingParams = map[string]bool{
	"igsh":         true,
	"igshid":       true,
	"fbclid":       true,
	"si":           true,
	"feature":      true,
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
}

// NormalizeSourceURL canonicalizes a reel URL: scheme and host lowercased,
// tracking query parameters and fragment dropped, trailing slash trimmed.
// Returns an error for anything that is not an absolute http(s) URL.
func NormalizeSourceURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid source url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid source url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("source url has no host")
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for param := range q {
		if trackingParams[strings.ToLower(param)] {
			q.Del(param)
		}
	}
	u.RawQuery = q.Encode()

	u.Path = strings.TrimRight(u.Path, "/")

	return u.String(), nil
}

// SourceKey derives the analysis-cache key from a normalized source URL.
// It depends on the source alone, never on requester or idea.
func SourceKey(normalizedSource string) string {
	sum := sha256.Sum256([]byte(normalizedSource))
	return hex.EncodeToString(sum[:16])
}

// Fingerprint identifies a unique logical request. Identical submissions
// hash to the same value regardless of idea whitespace or casing of the
// identity.
func Fingerprint(identity, normalizedSource, idea, hints string) string {
	parts := []string{
		strings.TrimSpace(identity),
		normalizedSource,
		strings.Join(strings.Fields(idea), " "),
		strings.Join(strings.Fields(hints), " "),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\n")))
	return hex.EncodeToString(sum[:])
}
