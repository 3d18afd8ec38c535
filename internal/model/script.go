package model

import "time"

// Script is the finished artifact: the generated text plus the rendered card
// image. One Script exists per fingerprint; PublicID is immutable once set.
type Script struct {
	Fingerprint string           `json:"fingerprint"`
	PublicID    string           `json:"publicId"`
	Identity    string           `json:"identity"`
	SourceURL   string           `json:"sourceUrl"`
	SourceKey   string           `json:"sourceKey"`
	Idea        string           `json:"idea"`
	ResultText  string           `json:"resultText"`
	ImageURL    string           `json:"imageUrl,omitempty"`
	Fallback    bool             `json:"fallback,omitempty"`
	Timings     map[string]int64 `json:"timings,omitempty"` // step name -> ms
	CreatedAt   time.Time        `json:"createdAt"`
}
