package model

import "testing"

func TestDecodeAnalysis_PlainJSON(t *testing.T) {
	a, err := DecodeAnalysis(`{"transcript":" hello ","visual_cues":["kitchen"],"hook_pattern":"question","tone":"upbeat"}`)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if a.Transcript != "hello" {
		t.Errorf("transcript not trimmed: %q", a.Transcript)
	}
	if len(a.VisualCues) != 1 || a.VisualCues[0] != "kitchen" {
		t.Errorf("unexpected visual cues: %v", a.VisualCues)
	}
	if a.HookPattern != "question" || a.Tone != "upbeat" {
		t.Errorf("unexpected fields: %+v", a)
	}
	if a.Empty() {
		t.Error("populated analysis must not report empty")
	}
}

func TestDecodeAnalysis_StripsMarkdownFences(t *testing.T) {
	raw := "```json\n{\"transcript\":\"hi\"}\n```"
	a, err := DecodeAnalysis(raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if a.Transcript != "hi" {
		t.Errorf("got transcript %q", a.Transcript)
	}
}

func TestDecodeAnalysis_DefaultsMissingFields(t *testing.T) {
	a, err := DecodeAnalysis(`{}`)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if a.Transcript != "" || a.HookPattern != "" || a.Tone != "" || len(a.VisualCues) != 0 {
		t.Errorf("missing fields should default to zero values: %+v", a)
	}
	if !a.Empty() {
		t.Error("all-defaults analysis should report empty")
	}
}

func TestDecodeAnalysis_RejectsNonObject(t *testing.T) {
	for _, raw := range []string{"", "not json", `"just a string"`, "[1,2,3]"} {
		if _, err := DecodeAnalysis(raw); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestEmpty_NilReceiver(t *testing.T) {
	var a *ReelAnalysis
	if !a.Empty() {
		t.Error("nil analysis must report empty")
	}
}
