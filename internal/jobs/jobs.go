// Package jobs implements asynchronous ingestion: enqueueIndex/statusOf
// backed by a JobQueue, drained by a fixed-size worker pool that runs
// Fetcher → Filter → Chunker → Embedder → Writer per job. Grounded on the
// queue/worker-pool shape the teacher's indexer CLI drains synchronously,
// generalized here into an async, resumable queue.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/seanblong/reposearch/internal/metrics"
	"github.com/seanblong/reposearch/pkg/models"
)

// JobQueue is the capability a queue backend implements: push new work,
// block for the next item, and hold a per-repo lease for idempotence.
type JobQueue interface {
	Push(ctx context.Context, job models.Job) error
	Pop(ctx context.Context) (models.Job, bool, error)
	// TryLease attempts to acquire the per-repo lease that keeps at most one
	// active job per repository; ok is false if a lease is already held.
	TryLease(ctx context.Context, repoID, jobID string) (ok bool, err error)
	ReleaseLease(ctx context.Context, repoID string) error
}

// JobStore persists job records so statusOf survives process restarts and
// multiple API replicas can serve GET /index/status/{jobId}.
type JobStore interface {
	PutJob(ctx context.Context, job models.Job) error
	GetJob(ctx context.Context, jobID string) (models.Job, bool, error)
	FindActiveJobForRepo(ctx context.Context, repoID string) (models.Job, bool, error)
}

// Stage is one step of the ingest pipeline a worker runs per job.
type Stage struct {
	Name string
	Run  func(ctx context.Context, job *models.Job) error
}

// Runner owns the queue, the store, and the pipeline stages workers
// execute for each dequeued job.
type Runner struct {
	queue   JobQueue
	store   JobStore
	stages  []Stage
	workers int
	log     zerolog.Logger
}

// New constructs a Runner. workers is the fixed worker-pool size, defaulting
// to 2 when unset.
func New(queue JobQueue, store JobStore, stages []Stage, workers int, log zerolog.Logger) *Runner {
	if workers <= 0 {
		workers = 2
	}
	return &Runner{queue: queue, store: store, stages: stages, workers: workers, log: log}
}

// EnqueueIndex implements enqueueIndex({repoId}) → jobId. If a job is
// already active for repoId, its existing jobId is returned instead of a
// new job being created.
func (r *Runner) EnqueueIndex(ctx context.Context, repoID string) (string, error) {
	if existing, ok, err := r.store.FindActiveJobForRepo(ctx, repoID); err != nil {
		return "", fmt.Errorf("check active job: %w", err)
	} else if ok {
		return existing.ID, nil
	}

	job := models.Job{ID: uuid.NewString(), RepoID: repoID, State: models.JobWaiting, Stages: map[string]int{}}
	if err := r.store.PutJob(ctx, job); err != nil {
		return "", fmt.Errorf("persist job: %w", err)
	}
	if err := r.queue.Push(ctx, job); err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	return job.ID, nil
}

// StatusOf implements statusOf(jobId).
func (r *Runner) StatusOf(ctx context.Context, jobID string) (models.Job, bool, error) {
	return r.store.GetJob(ctx, jobID)
}

// Start launches the fixed-size worker pool, draining the queue until ctx
// is cancelled. Each worker runs stages sequentially for one job at a
// time.
func (r *Runner) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < r.workers; i++ {
		g.Go(func() error { return r.workerLoop(ctx) })
	}
	return g.Wait()
}

func (r *Runner) workerLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		job, ok, err := r.queue.Pop(ctx)
		if err != nil {
			r.log.Error().Err(err).Msg("job queue pop failed")
			continue
		}
		if !ok {
			continue
		}

		leased, err := r.queue.TryLease(ctx, job.RepoID, job.ID)
		if err != nil {
			r.log.Error().Err(err).Str("repo_id", job.RepoID).Msg("job lease failed")
			continue
		}
		if !leased {
			// another worker already owns this repo; re-queue for later.
			_ = r.queue.Push(ctx, job)
			continue
		}

		r.runJob(ctx, job)
		_ = r.queue.ReleaseLease(ctx, job.RepoID)
	}
}

func (r *Runner) runJob(ctx context.Context, job models.Job) {
	start := time.Now()
	job.State = models.JobActive
	_ = r.store.PutJob(ctx, job)

	progressStep := 100 / max(1, len(r.stages))
	for _, stage := range r.stages {
		if err := stage.Run(ctx, &job); err != nil {
			job.State = models.JobFailed
			job.Error = err.Error()
			_ = r.store.PutJob(ctx, job)
			r.log.Error().Err(err).Str("repo_id", job.RepoID).Str("stage", stage.Name).Msg("ingest stage failed")
			metrics.JobDuration.WithLabelValues("failed").Observe(time.Since(start).Seconds())
			return
		}
		job.Progress += progressStep
		if job.Stages == nil {
			job.Stages = map[string]int{}
		}
		job.Stages[stage.Name] = job.Progress
		_ = r.store.PutJob(ctx, job)
	}

	job.State = models.JobCompleted
	job.Progress = 100
	_ = r.store.PutJob(ctx, job)
	metrics.JobDuration.WithLabelValues("completed").Observe(time.Since(start).Seconds())
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
