package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/reelscript/api/internal/client"
	"github.com/reelscript/api/internal/config"
	"github.com/reelscript/api/internal/fault"
	"github.com/reelscript/api/internal/model"
	"github.com/reelscript/api/internal/service"
	"github.com/reelscript/api/internal/store"
)

// Capability interfaces the worker consumes. The concrete clients in
// internal/client satisfy them; tests substitute fakes.

type MediaToolbox interface {
	Download(ctx context.Context, sourceURL string) (*client.DownloadResult, error)
	Transcribe(ctx context.Context, mediaURL string) (string, error)
	ExtractFrames(ctx context.Context, mediaURL string, count int) ([]string, error)
}

type LanguageModel interface {
	ChatCompletion(ctx context.Context, system, user string) (string, error)
	AnalyzeVision(ctx context.Context, system, user string, frameURLs []string) (string, error)
}

type CardRenderer interface {
	RenderCard(ctx context.Context, text string) ([]byte, error)
}

type Messenger interface {
	Deliver(ctx context.Context, subscriberID, imageURL, link, text string) error
}

// ScriptWorker executes the generation state machine for one queued job:
// cache probe, acquisition, extraction, analysis, generation, rendering,
// public-link allocation, delivery. Transient failures bubble back to asynq
// for retry; terminal failures and an exhausted retry budget route to the
// fallback branch so every job ends in exactly one delivered result.
type ScriptWorker struct {
	jobs      store.JobStore
	artifacts store.ArtifactStore
	cache     store.AnalysisCache
	media     MediaToolbox
	llm       LanguageModel
	renderer  CardRenderer
	images    client.ImageHost
	messenger Messenger
	links     *service.PublicLinkService
	cfg       config.AnalysisConfig
	log       *zap.Logger
}

func NewScriptWorker(
	jobs store.JobStore,
	artifacts store.ArtifactStore,
	cache store.AnalysisCache,
	media MediaToolbox,
	llm LanguageModel,
	renderer CardRenderer,
	images client.ImageHost,
	messenger Messenger,
	links *service.PublicLinkService,
	cfg config.AnalysisConfig,
	log *zap.Logger,
) *ScriptWorker {
	return &ScriptWorker{
		jobs:      jobs,
		artifacts: artifacts,
		cache:     cache,
		media:     media,
		llm:       llm,
		renderer:  renderer,
		images:    images,
		messenger: messenger,
		links:     links,
		cfg:       cfg,
		log:       log,
	}
}

// pipelineResult carries partial progress across steps so the fallback
// branch can reuse whatever already succeeded.
type pipelineResult struct {
	sourceKey string
	analysis  *model.ReelAnalysis
	text      string
	imageURL  string
	fallback  bool
	timings   map[string]int64
}

func (r *pipelineResult) track(step string) func() {
	start := time.Now()
	return func() { r.timings[step] = time.Since(start).Milliseconds() }
}

// ProcessTask handles one queue item end-to-end.
func (w *ScriptWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.ScriptTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}

	retryCount, retryOK := asynq.GetRetryCount(ctx)
	maxRetry, maxOK := asynq.GetMaxRetry(ctx)
	lastAttempt := retryOK && maxOK && retryCount >= maxRetry

	return w.process(ctx, &payload, retryCount, lastAttempt)
}

// process is ProcessTask minus the asynq envelope; attempt accounting comes
// in explicitly.
func (w *ScriptWorker) process(ctx context.Context, payload *model.ScriptTaskPayload, retryCount int, lastAttempt bool) error {
	job := w.loadJob(ctx, payload)
	now := time.Now()
	job.Status = model.JobStatusProcessing
	job.Attempts = retryCount + 1
	if job.StartedAt == nil {
		job.StartedAt = &now
	}
	if err := w.jobs.Update(ctx, job); err != nil {
		w.log.Warn("failed to mark job processing", zap.String("jobId", job.ID), zap.Error(err))
	}

	res := &pipelineResult{timings: make(map[string]int64)}
	err := w.execute(ctx, &payload.Request, job.Fingerprint, res)
	if err == nil {
		return w.finish(ctx, job, &payload.Request, res)
	}

	w.log.Warn("pipeline failed",
		zap.String("jobId", job.ID),
		zap.String("kind", string(fault.KindOf(err))),
		zap.Int("attempt", job.Attempts),
		zap.Error(err))

	if fault.IsRetryable(err) && !lastAttempt {
		msg := err.Error()
		job.Error = &msg
		if uerr := w.jobs.Update(ctx, job); uerr != nil {
			w.log.Warn("failed to record job error", zap.String("jobId", job.ID), zap.Error(uerr))
		}
		return err
	}

	// Fallback branch: synthesize a deliverable from whatever survived. A
	// generated text without an image stays as-is (text-only delivery);
	// anything less gets the templated idea-only script.
	if res.text == "" {
		res.text = FallbackScript(payload.Request.Idea)
		res.fallback = true
	}
	return w.finish(ctx, job, &payload.Request, res)
}

func (w *ScriptWorker) loadJob(ctx context.Context, payload *model.ScriptTaskPayload) *model.Job {
	job, err := w.jobs.Get(ctx, payload.Fingerprint)
	if err != nil {
		w.log.Warn("failed to load job", zap.String("jobId", payload.JobID), zap.Error(err))
	}
	if job != nil && job.ID == payload.JobID {
		return job
	}
	// Row expired or belongs to a newer submission; rebuild from the task.
	return &model.Job{
		ID:          payload.JobID,
		Fingerprint: payload.Fingerprint,
		Status:      model.JobStatusQueued,
		Request:     payload.Request,
		CreatedAt:   time.Now(),
	}
}

// execute runs steps 1-7: everything up to (not including) public-link
// allocation and delivery. Partial progress lands in res.
func (w *ScriptWorker) execute(ctx context.Context, req *model.ScriptRequest, fingerprint string, res *pipelineResult) error {
	normalized, err := service.NormalizeSourceURL(req.SourceURL)
	if err != nil {
		// The gate validated this already; a failure here means the task
		// payload is corrupt.
		return fault.Terminal(fault.Validation, err)
	}
	res.sourceKey = service.SourceKey(normalized)

	// Step 1: cache probe. A cache read error is a miss, not a failure.
	analysis, err := w.cache.Get(ctx, res.sourceKey)
	if err != nil {
		w.log.Warn("analysis cache read failed", zap.String("sourceKey", res.sourceKey), zap.Error(err))
	}
	if analysis == nil {
		analysis, err = w.analyzeSource(ctx, normalized, res)
		if err != nil {
			return err
		}
		// Step 5: cache store, create-if-absent. Empty analyses are not
		// worth caching.
		if !analysis.Empty() {
			if cerr := w.cache.PutIfAbsent(ctx, res.sourceKey, analysis); cerr != nil {
				w.log.Warn("analysis cache write failed", zap.String("sourceKey", res.sourceKey), zap.Error(cerr))
			}
		}
	} else {
		res.timings["cache_hit"] = 1
	}
	res.analysis = analysis

	// Step 6: script generation.
	text, err := w.generateScript(ctx, req, analysis, res)
	if err != nil {
		return err
	}
	res.text = text

	// Step 7: presentation rendering + hosting.
	imageURL, err := w.renderAndHost(ctx, fingerprint, text, res)
	if err != nil {
		return err
	}
	res.imageURL = imageURL
	return nil
}

// analyzeSource runs steps 2-4: acquisition, concurrent extraction, content
// analysis with capability fallback.
func (w *ScriptWorker) analyzeSource(ctx context.Context, sourceURL string, res *pipelineResult) (*model.ReelAnalysis, error) {
	stop := res.track("acquisition")
	dl, err := w.media.Download(ctx, sourceURL)
	stop()
	if err != nil {
		return nil, err // already classified by the media client
	}

	wantAudio := w.cfg.Mode != "frames"
	wantFrames := w.cfg.Mode != "audio"

	var (
		wg         sync.WaitGroup
		transcript string
		frames     []string
		audioErr   error
		framesErr  error
	)
	stop = res.track("extraction")
	if wantAudio {
		wg.Add(1)
		go func() {
			defer wg.Done()
			transcript, audioErr = w.media.Transcribe(ctx, dl.MediaURL)
		}()
	}
	if wantFrames {
		wg.Add(1)
		go func() {
			defer wg.Done()
			frames, framesErr = w.media.ExtractFrames(ctx, dl.MediaURL, w.cfg.FrameCount)
		}()
	}
	wg.Wait()
	stop()

	if audioErr != nil && !errors.Is(audioErr, client.ErrNoAudio) {
		w.log.Warn("audio extraction failed", zap.Error(audioErr))
	}
	if framesErr != nil {
		w.log.Warn("frame extraction failed", zap.Error(framesErr))
	}

	// Total extraction failure: proceed with an empty analysis rather than
	// aborting the job.
	if transcript == "" && len(frames) == 0 {
		return &model.ReelAnalysis{CreatedAt: time.Now()}, nil
	}

	stop = res.track("analysis")
	defer stop()

	raw, err := w.llm.AnalyzeVision(ctx, analysisSystemPrompt, analysisUserPrompt(transcript), frames)
	if err != nil {
		// All backends exhausted. A transcript on hand is partial analysis:
		// degrade and continue instead of burning the retry budget.
		if transcript != "" {
			w.log.Warn("content analysis failed, continuing with transcript only", zap.Error(err))
			return &model.ReelAnalysis{Transcript: transcript, CreatedAt: time.Now()}, nil
		}
		return nil, fault.Transient(fault.Analysis, err)
	}

	analysis, err := model.DecodeAnalysis(raw)
	if err != nil {
		if transcript != "" {
			w.log.Warn("malformed analysis payload, continuing with transcript only", zap.Error(err))
			return &model.ReelAnalysis{Transcript: transcript, CreatedAt: time.Now()}, nil
		}
		return nil, fault.Transient(fault.Analysis, err)
	}
	if analysis.Transcript == "" {
		analysis.Transcript = transcript
	}
	return analysis, nil
}

func (w *ScriptWorker) generateScript(ctx context.Context, req *model.ScriptRequest, analysis *model.ReelAnalysis, res *pipelineResult) (string, error) {
	stop := res.track("generation")
	defer stop()

	var styleContext []string
	prior, err := w.artifacts.RecentBySource(ctx, res.sourceKey, w.cfg.StyleContextMax)
	if err != nil {
		w.log.Warn("style context lookup failed", zap.Error(err))
	}
	for _, p := range prior {
		if !p.Fallback {
			styleContext = append(styleContext, p.ResultText)
		}
	}

	out, err := w.llm.ChatCompletion(ctx, generationSystemPrompt, generationUserPrompt(req.Idea, req.Hints, analysis, styleContext))
	if err != nil {
		if client.IsTransient(err) {
			return "", fault.Transient(fault.Generation, err)
		}
		return "", fault.Terminal(fault.Generation, err)
	}
	text := strings.TrimSpace(out)
	if text == "" {
		return "", fault.Transient(fault.Generation, fmt.Errorf("model returned empty script"))
	}
	return text, nil
}

func (w *ScriptWorker) renderAndHost(ctx context.Context, fingerprint, text string, res *pipelineResult) (string, error) {
	if w.renderer == nil || w.images == nil {
		// No rendering/hosting configured; deliver text-only.
		return "", nil
	}

	stop := res.track("render")
	img, err := w.renderer.RenderCard(ctx, text)
	stop()
	if err != nil {
		return "", fault.Transient(fault.Render, err)
	}

	stop = res.track("upload")
	defer stop()
	url, err := w.images.Upload(ctx, "cards/"+fingerprint+".png", bytes.NewReader(img), "image/png")
	if err != nil {
		return "", fault.Transient(fault.Upload, err)
	}
	return url, nil
}

// finish runs steps 8-10: public link allocation, persistence, delivery and
// completion. Delivery failure is logged and never fails the job; the
// artifact is already durably retrievable.
func (w *ScriptWorker) finish(ctx context.Context, job *model.Job, req *model.ScriptRequest, res *pipelineResult) error {
	script, err := w.artifacts.GetByFingerprint(ctx, job.Fingerprint)
	if err != nil {
		return w.failJob(ctx, job, fmt.Errorf("artifact lookup: %w", err))
	}
	if script == nil {
		publicID, err := w.links.NewPublicID(ctx)
		if err != nil {
			return w.failJob(ctx, job, fmt.Errorf("allocate public id: %w", err))
		}
		script = &model.Script{
			Fingerprint: job.Fingerprint,
			PublicID:    publicID,
			Identity:    req.Identity,
			SourceURL:   req.SourceURL,
			SourceKey:   res.sourceKey,
			Idea:        req.Idea,
			ResultText:  res.text,
			ImageURL:    res.imageURL,
			Fallback:    res.fallback,
			Timings:     res.timings,
			CreatedAt:   time.Now(),
		}
		if err := w.artifacts.Save(ctx, script); err != nil {
			return w.failJob(ctx, job, fmt.Errorf("persist script: %w", err))
		}
		// A concurrent worker may have won the save; deliver its row.
		if saved, gerr := w.artifacts.GetByFingerprint(ctx, job.Fingerprint); gerr == nil && saved != nil {
			script = saved
		}
	}

	link := w.links.URL(script.PublicID)
	if err := w.messenger.Deliver(ctx, req.Identity, script.ImageURL, link, script.ResultText); err != nil {
		w.log.Error("delivery failed",
			zap.String("jobId", job.ID),
			zap.String("identity", req.Identity),
			zap.Error(err))
	}

	now := time.Now()
	job.Status = model.JobStatusCompleted
	job.CompletedAt = &now
	job.Error = nil
	if err := w.jobs.Update(ctx, job); err != nil {
		w.log.Warn("failed to mark job completed", zap.String("jobId", job.ID), zap.Error(err))
	}

	w.log.Info("script job completed",
		zap.String("jobId", job.ID),
		zap.String("publicId", script.PublicID),
		zap.Bool("fallback", script.Fallback))
	return nil
}

// failJob marks the job failed for store-level errors that make even the
// fallback branch impossible to persist. Returning the error lets asynq
// retry when budget remains.
func (w *ScriptWorker) failJob(ctx context.Context, job *model.Job, err error) error {
	msg := err.Error()
	now := time.Now()
	job.Status = model.JobStatusFailed
	job.Error = &msg
	job.CompletedAt = &now
	if uerr := w.jobs.Update(ctx, job); uerr != nil {
		w.log.Error("failed to mark job failed", zap.String("jobId", job.ID), zap.Error(uerr))
	}
	return err
}
