package model

import "time"

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job tracks one in-flight generation request. At most one active Job exists
// per fingerprint; the gateway creates it and only the worker mutates it.
type Job struct {
	ID          string        `json:"id"`
	Fingerprint string        `json:"fingerprint"`
	Status      JobStatus     `json:"status"`
	Attempts    int           `json:"attempts"`
	Error       *string       `json:"error,omitempty"`
	Request     ScriptRequest `json:"request"`
	CreatedAt   time.Time     `json:"createdAt"`
	StartedAt   *time.Time    `json:"startedAt,omitempty"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
}

// Terminal reports whether the job has reached a final state.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// ScriptTaskPayload is the queue task body. It carries the full request so a
// worker can rebuild the job record even if the Redis row expired.
type ScriptTaskPayload struct {
	JobID       string        `json:"jobId"`
	Fingerprint string        `json:"fingerprint"`
	Request     ScriptRequest `json:"request"`
}
