package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ReelAnalysis is the cached, structured result of analyzing a source reel.
// Entries are keyed purely by source identity and shared across requesters.
type ReelAnalysis struct {
	Transcript  string    `json:"transcript"`
	VisualCues  []string  `json:"visualCues"`
	HookPattern string    `json:"hookPattern"`
	Tone        string    `json:"tone"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Empty reports whether the analysis carries no usable signal.
func (a *ReelAnalysis) Empty() bool {
	return a == nil || (a.Transcript == "" && len(a.VisualCues) == 0 && a.HookPattern == "")
}

// DecodeAnalysis parses the loosely-typed JSON a language model returns into
// a ReelAnalysis, defaulting optional fields. The model sometimes wraps its
// JSON in markdown fences; those are stripped before parsing. A shape that
// is not a JSON object at all is rejected rather than guessed at.
func DecodeAnalysis(raw string) (*ReelAnalysis, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var payload struct {
		Transcript  *string  `json:"transcript"`
		VisualCues  []string `json:"visual_cues"`
		HookPattern *string  `json:"hook_pattern"`
		Tone        *string  `json:"tone"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("malformed analysis payload: %w", err)
	}

	a := &ReelAnalysis{
		VisualCues: payload.VisualCues,
		CreatedAt:  time.Now(),
	}
	if payload.Transcript != nil {
		a.Transcript = strings.TrimSpace(*payload.Transcript)
	}
	if payload.HookPattern != nil {
		a.HookPattern = strings.TrimSpace(*payload.HookPattern)
	}
	if payload.Tone != nil {
		a.Tone = strings.TrimSpace(*payload.Tone)
	}
	return a, nil
}
