// Package store persists jobs, finished scripts and cached reel analyses in
// Redis. Writers converge through create-if-absent (SETNX) semantics keyed by
// fingerprint, public id or source key, so concurrent workers never need a
// lock.
//
// All Get methods return (nil, nil) when the requested record does not exist.
package store

import (
	"context"

	"github.com/reelscript/api/internal/model"
)

// JobStore tracks the single active job per fingerprint.
type JobStore interface {
	// CreateIfAbsent registers job as the active job for its fingerprint.
	// When another active job already holds the slot it is returned with
	// created=false and nothing is written.
	CreateIfAbsent(ctx context.Context, job *model.Job) (created bool, existing *model.Job, err error)

	// Get retrieves the active job for a fingerprint. Returns nil, nil if none.
	Get(ctx context.Context, fingerprint string) (*model.Job, error)

	// Update replaces the job record. Used by the worker for state transitions.
	Update(ctx context.Context, job *model.Job) error

	// Delete releases the fingerprint slot. Used by the gateway when a job
	// was claimed but could never be enqueued.
	Delete(ctx context.Context, fingerprint string) error
}

// ArtifactStore persists finished scripts, keyed by fingerprint and by
// public id.
type ArtifactStore interface {
	// GetByFingerprint retrieves a script. Returns nil, nil if not found.
	GetByFingerprint(ctx context.Context, fingerprint string) (*model.Script, error)

	// GetByPublicID retrieves a script through the public id index.
	// Returns nil, nil if not found.
	GetByPublicID(ctx context.Context, publicID string) (*model.Script, error)

	// PublicIDExists reports whether a public id is already taken.
	PublicIDExists(ctx context.Context, publicID string) (bool, error)

	// Save persists the script under its fingerprint and public id. A
	// concurrent save for the same fingerprint keeps the first row; the
	// duplicate is not an error.
	Save(ctx context.Context, script *model.Script) error

	// RecentBySource returns up to n prior scripts generated from the same
	// source, newest first. Used as style context for generation.
	RecentBySource(ctx context.Context, sourceKey string, n int) ([]*model.Script, error)
}

// AnalysisCache is the tier-1 cache of expensive reel analyses, keyed by the
// normalized source reference alone.
type AnalysisCache interface {
	// Get retrieves a cached analysis. Returns nil, nil on miss.
	Get(ctx context.Context, sourceKey string) (*model.ReelAnalysis, error)

	// PutIfAbsent stores an analysis unless one already exists. Two workers
	// racing on a brand-new source both succeed; the first write wins.
	PutIfAbsent(ctx context.Context, sourceKey string, analysis *model.ReelAnalysis) error
}
