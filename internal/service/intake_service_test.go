package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/reelscript/api/internal/config"
	"github.com/reelscript/api/internal/fault"
	"github.com/reelscript/api/internal/model"
)

type fakeJobs struct {
	mu     sync.Mutex
	active map[string]*model.Job
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{active: make(map[string]*model.Job)}
}

func (f *fakeJobs) CreateIfAbsent(_ context.Context, job *model.Job) (bool, *model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.active[job.Fingerprint]; ok && !existing.Terminal() {
		return false, existing, nil
	}
	f.active[job.Fingerprint] = job
	return true, nil, nil
}

func (f *fakeJobs) Get(_ context.Context, fp string) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active[fp], nil
}

func (f *fakeJobs) Update(_ context.Context, job *model.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active[job.Fingerprint] = job
	return nil
}

func (f *fakeJobs) Delete(_ context.Context, fp string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.active, fp)
	return nil
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []*asynq.Task
	fail  error
}

func (f *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func newIntakeForTest(jobs *fakeJobs, arts *fakeArtifacts, queue *fakeQueue) *IntakeService {
	links := NewPublicLinkService(arts, "https://share.example")
	return NewIntakeService(jobs, arts, queue, links, &config.QueueConfig{MaxRetry: 3}, zap.NewNop())
}

func submitReq() *model.ScriptRequest {
	return &model.ScriptRequest{
		Identity:  "u1",
		SourceURL: "https://x.example/reel/abc",
		Idea:      "cooking tip",
	}
}

func TestSubmit_QueuesNewWork(t *testing.T) {
	jobs, arts, queue := newFakeJobs(), newFakeArtifacts(), &fakeQueue{}
	svc := newIntakeForTest(jobs, arts, queue)

	resp, err := svc.Submit(context.Background(), submitReq())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if resp.Status != model.SubmitStatusQueued {
		t.Errorf("expected queued, got %s", resp.Status)
	}
	if resp.JobID == "" {
		t.Error("expected a job id")
	}
	if len(queue.tasks) != 1 {
		t.Errorf("expected 1 enqueued task, got %d", len(queue.tasks))
	}
}

func TestSubmit_InFlightJobIsNotDuplicated(t *testing.T) {
	jobs, arts, queue := newFakeJobs(), newFakeArtifacts(), &fakeQueue{}
	svc := newIntakeForTest(jobs, arts, queue)

	first, err := svc.Submit(context.Background(), submitReq())
	if err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	second, err := svc.Submit(context.Background(), submitReq())
	if err != nil {
		t.Fatalf("second submit failed: %v", err)
	}

	if second.Status != model.SubmitStatusProcessing {
		t.Errorf("expected processing ack, got %s", second.Status)
	}
	if second.JobID != first.JobID {
		t.Errorf("processing ack should reference the active job")
	}
	if len(queue.tasks) != 1 {
		t.Errorf("duplicate submission must not enqueue again, got %d tasks", len(queue.tasks))
	}
}

func TestSubmit_SingleFlightUnderConcurrency(t *testing.T) {
	jobs, arts, queue := newFakeJobs(), newFakeArtifacts(), &fakeQueue{}
	svc := newIntakeForTest(jobs, arts, queue)

	const n = 20
	statuses := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := svc.Submit(context.Background(), submitReq())
			if err != nil {
				t.Errorf("submit failed: %v", err)
				return
			}
			statuses <- resp.Status
		}()
	}
	wg.Wait()
	close(statuses)

	queued := 0
	for s := range statuses {
		if s == model.SubmitStatusQueued {
			queued++
		}
	}
	if queued != 1 {
		t.Errorf("expected exactly one queued ack, got %d", queued)
	}
	if len(queue.tasks) != 1 {
		t.Errorf("expected exactly one enqueued task, got %d", len(queue.tasks))
	}
}

func TestSubmit_CachedArtifactReturnsSynchronously(t *testing.T) {
	jobs, arts, queue := newFakeJobs(), newFakeArtifacts(), &fakeQueue{}
	svc := newIntakeForTest(jobs, arts, queue)

	req := submitReq()
	normalized, _ := NormalizeSourceURL(req.SourceURL)
	fp := Fingerprint(req.Identity, normalized, req.Idea, req.Hints)
	arts.byFingerprint[fp] = &model.Script{
		Fingerprint: fp,
		PublicID:    "abcDEF1234",
		ResultText:  "the script",
		ImageURL:    "https://cdn.example/cards/x.png",
	}
	arts.byPublicID["abcDEF1234"] = fp

	resp, err := svc.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if resp.Status != model.SubmitStatusCompleted {
		t.Fatalf("expected completed, got %s", resp.Status)
	}
	if resp.ResultText != "the script" {
		t.Errorf("expected stored result text")
	}
	if resp.ShareURL != "https://share.example/s/abcDEF1234" {
		t.Errorf("unexpected share url %q", resp.ShareURL)
	}
	if len(queue.tasks) != 0 {
		t.Errorf("cache hit must not enqueue work")
	}
}

func TestSubmit_MalformedSourceIsValidationFault(t *testing.T) {
	svc := newIntakeForTest(newFakeJobs(), newFakeArtifacts(), &fakeQueue{})

	req := submitReq()
	req.SourceURL = "ftp://nope/reel"
	_, err := svc.Submit(context.Background(), req)
	if err == nil {
		t.Fatal("expected error")
	}
	if fault.KindOf(err) != fault.Validation {
		t.Errorf("expected validation fault, got %v", err)
	}
}

func TestSubmit_EnqueueFailureReleasesJobSlot(t *testing.T) {
	jobs := newFakeJobs()
	queue := &fakeQueue{fail: errors.New("broker down")}
	svc := newIntakeForTest(jobs, newFakeArtifacts(), queue)

	if _, err := svc.Submit(context.Background(), submitReq()); err == nil {
		t.Fatal("expected enqueue error to surface")
	}
	if len(jobs.active) != 0 {
		t.Fatal("a job that was never enqueued must not keep its fingerprint slot")
	}

	// Once the broker recovers, the identical submission must queue fresh
	// work instead of acking a job no worker will ever run.
	queue.fail = nil
	resp, err := svc.Submit(context.Background(), submitReq())
	if err != nil {
		t.Fatalf("retry after broker recovery failed: %v", err)
	}
	if resp.Status != model.SubmitStatusQueued {
		t.Errorf("expected queued ack after recovery, got %s", resp.Status)
	}
	if len(queue.tasks) != 1 {
		t.Errorf("expected exactly one enqueued task after recovery, got %d", len(queue.tasks))
	}
}
