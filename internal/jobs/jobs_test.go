package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/seanblong/reposearch/pkg/models"
)

func TestEnqueueIndexReturnsExistingJobIDForActiveRepo(t *testing.T) {
	store := NewMemoryStore()
	queue := NewMemoryQueue(4)
	r := New(queue, store, nil, 1, zerolog.Nop())

	ctx := context.Background()
	id1, err := r.EnqueueIndex(ctx, "repo1")
	require.NoError(t, err)

	id2, err := r.EnqueueIndex(ctx, "repo1")
	require.NoError(t, err)
	require.Equal(t, id1, id2)
}

func TestRunJobTransitionsWaitingToCompletedOnSuccess(t *testing.T) {
	store := NewMemoryStore()
	queue := NewMemoryQueue(4)
	stages := []Stage{
		{Name: "fetch", Run: func(ctx context.Context, job *models.Job) error { return nil }},
		{Name: "embed", Run: func(ctx context.Context, job *models.Job) error { return nil }},
	}
	r := New(queue, store, stages, 1, zerolog.Nop())

	ctx := context.Background()
	jobID, err := r.EnqueueIndex(ctx, "repo1")
	require.NoError(t, err)

	go func() {
		job, _, _ := store.GetJob(ctx, jobID)
		r.runJob(ctx, job)
	}()

	require.Eventually(t, func() bool {
		j, ok, _ := r.StatusOf(ctx, jobID)
		return ok && j.State == models.JobCompleted && j.Progress == 100
	}, time.Second, 10*time.Millisecond)
}

func TestRunJobMarksFailedWithoutCrashingOnStageError(t *testing.T) {
	store := NewMemoryStore()
	queue := NewMemoryQueue(4)
	stages := []Stage{
		{Name: "fetch", Run: func(ctx context.Context, job *models.Job) error { return errors.New("boom") }},
	}
	r := New(queue, store, stages, 1, zerolog.Nop())

	ctx := context.Background()
	jobID, err := r.EnqueueIndex(ctx, "repo1")
	require.NoError(t, err)

	job, _, _ := store.GetJob(ctx, jobID)
	r.runJob(ctx, job)

	j, ok, _ := store.GetJob(ctx, jobID)
	require.True(t, ok)
	require.Equal(t, models.JobFailed, j.State)
	require.Contains(t, j.Error, "boom")
}

func TestMemoryQueueLeaseIsExclusivePerRepo(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx := context.Background()

	ok, err := q.TryLease(ctx, "repo1", "job-a")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = q.TryLease(ctx, "repo1", "job-b")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, q.ReleaseLease(ctx, "repo1"))
	ok, err = q.TryLease(ctx, "repo1", "job-b")
	require.NoError(t, err)
	require.True(t, ok)
}
