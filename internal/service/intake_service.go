package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/reelscript/api/internal/config"
	"github.com/reelscript/api/internal/fault"
	"github.com/reelscript/api/internal/model"
	"github.com/reelscript/api/internal/store"
)

const (
	TaskTypeScript = "script:generate"
	QueueScripts   = "scripts"
)

// Enqueuer is the slice of asynq.Client the gateway needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// IntakeService is the idempotency gate in front of the pipeline. Submit
// answers from at most two store lookups plus one enqueue, so the caller
// gets its acknowledgment well under a second no matter what the pipeline
// costs.
type IntakeService struct {
	jobs      store.JobStore
	artifacts store.ArtifactStore
	queue     Enqueuer
	links     *PublicLinkService
	maxRetry  int
	log       *zap.Logger
}

func NewIntakeService(jobs store.JobStore, artifacts store.ArtifactStore, queue Enqueuer, links *PublicLinkService, cfg *config.QueueConfig, log *zap.Logger) *IntakeService {
	return &IntakeService{
		jobs:      jobs,
		artifacts: artifacts,
		queue:     queue,
		links:     links,
		maxRetry:  cfg.MaxRetry,
		log:       log,
	}
}

// Submit validates the source reference, checks for an existing artifact or
// in-flight job for the same fingerprint, and otherwise queues new work.
func (s *IntakeService) Submit(ctx context.Context, req *model.ScriptRequest) (*model.SubmitResponse, error) {
	normalized, err := NormalizeSourceURL(req.SourceURL)
	if err != nil {
		return nil, fault.Terminal(fault.Validation, err)
	}

	fp := Fingerprint(req.Identity, normalized, req.Idea, req.Hints)

	// Finished artifact beats everything: answer synchronously, no queueing.
	script, err := s.artifacts.GetByFingerprint(ctx, fp)
	if err != nil {
		return nil, err
	}
	if script != nil {
		return &model.SubmitResponse{
			Status:     model.SubmitStatusCompleted,
			ResultText: script.ResultText,
			ImageURL:   script.ImageURL,
			ShareURL:   s.links.URL(script.PublicID),
		}, nil
	}

	job := &model.Job{
		ID:          uuid.New().String(),
		Fingerprint: fp,
		Status:      model.JobStatusQueued,
		Request:     *req,
		CreatedAt:   time.Now(),
	}

	created, existing, err := s.jobs.CreateIfAbsent(ctx, job)
	if err != nil {
		return nil, err
	}
	if !created {
		return &model.SubmitResponse{
			Status: model.SubmitStatusProcessing,
			JobID:  existing.ID,
		}, nil
	}

	task, err := newScriptTask(job)
	if err != nil {
		return nil, err
	}
	if _, err := s.queue.EnqueueContext(ctx, task,
		asynq.Queue(QueueScripts),
		asynq.MaxRetry(s.maxRetry),
		asynq.Retention(24*time.Hour),
	); err != nil {
		// Release the claimed slot: a job row without a queued task would
		// answer every retry with "processing" while no worker ever runs.
		if derr := s.jobs.Delete(ctx, fp); derr != nil {
			s.log.Error("failed to release job slot after enqueue failure",
				zap.String("jobId", job.ID),
				zap.String("fingerprint", fp),
				zap.Error(derr))
		}
		return nil, fmt.Errorf("enqueue script task: %w", err)
	}

	s.log.Info("script job queued",
		zap.String("jobId", job.ID),
		zap.String("fingerprint", fp))

	return &model.SubmitResponse{
		Status: model.SubmitStatusQueued,
		JobID:  job.ID,
	}, nil
}

func newScriptTask(job *model.Job) (*asynq.Task, error) {
	payload := model.ScriptTaskPayload{
		JobID:       job.ID,
		Fingerprint: job.Fingerprint,
		Request:     job.Request,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeScript, data), nil
}
