package service

import "testing"

func TestNormalizeSourceURL_StripsTracking(t *testing.T) {
	a, err := NormalizeSourceURL("https://www.Instagram.com/reel/abc123/?igsh=xyz&utm_source=share")
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	b, err := NormalizeSourceURL("https://www.instagram.com/reel/abc123")
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if a != b {
		t.Errorf("expected equivalent URLs to normalize identically:\n%s\n%s", a, b)
	}
}

func TestNormalizeSourceURL_KeepsMeaningfulQuery(t *testing.T) {
	got, err := NormalizeSourceURL("https://x.example/watch?v=abc&utm_medium=social")
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	want := "https://x.example/watch?v=abc"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNormalizeSourceURL_RejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"not-a-url",
		"ftp://example.com/file",
		"https://",
	}
	for _, raw := range cases {
		if _, err := NormalizeSourceURL(raw); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestSourceKey_IndependentOfRequester(t *testing.T) {
	n, _ := NormalizeSourceURL("https://x.example/reel/abc")
	if SourceKey(n) != SourceKey(n) {
		t.Fatal("source key not deterministic")
	}
	n2, _ := NormalizeSourceURL("https://x.example/reel/def")
	if SourceKey(n) == SourceKey(n2) {
		t.Fatal("distinct sources must not share a key")
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	n, _ := NormalizeSourceURL("https://x.example/reel/abc")

	fp1 := Fingerprint("u1", n, "cooking tip", "")
	fp2 := Fingerprint("u1", n, "cooking  tip", "") // whitespace collapsed
	if fp1 != fp2 {
		t.Errorf("idea whitespace should not change the fingerprint")
	}

	if Fingerprint("u2", n, "cooking tip", "") == fp1 {
		t.Errorf("different identities must produce different fingerprints")
	}
	if Fingerprint("u1", n, "other idea", "") == fp1 {
		t.Errorf("different ideas must produce different fingerprints")
	}
	if Fingerprint("u1", n, "cooking tip", "energetic") == fp1 {
		t.Errorf("hints must be part of the fingerprint")
	}
}
