package jobs

import (
	"context"
	"sync"

	"github.com/seanblong/reposearch/pkg/models"
)

// MemoryQueue is a buffered-channel JobQueue used when QUEUE_URL is unset —
// cmd/server and tests run against this instead of Redis.
type MemoryQueue struct {
	ch     chan models.Job
	mu     sync.Mutex
	leases map[string]string // repoId -> jobId holding the lease
}

// NewMemoryQueue creates an in-process queue with the given buffer size.
func NewMemoryQueue(buffer int) *MemoryQueue {
	return &MemoryQueue{ch: make(chan models.Job, buffer), leases: map[string]string{}}
}

func (q *MemoryQueue) Push(ctx context.Context, job models.Job) error {
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Pop(ctx context.Context) (models.Job, bool, error) {
	select {
	case job := <-q.ch:
		return job, true, nil
	case <-ctx.Done():
		return models.Job{}, false, ctx.Err()
	default:
		return models.Job{}, false, nil
	}
}

func (q *MemoryQueue) TryLease(ctx context.Context, repoID, jobID string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if holder, ok := q.leases[repoID]; ok && holder != jobID {
		return false, nil
	}
	q.leases[repoID] = jobID
	return true, nil
}

func (q *MemoryQueue) ReleaseLease(ctx context.Context, repoID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.leases, repoID)
	return nil
}

// MemoryStore is an in-process JobStore, used alongside MemoryQueue.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]models.Job
}

// NewMemoryStore creates an empty in-process job table.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: map[string]models.Job{}}
}

func (s *MemoryStore) PutJob(ctx context.Context, job models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *MemoryStore) GetJob(ctx context.Context, jobID string) (models.Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	return j, ok, nil
}

func (s *MemoryStore) FindActiveJobForRepo(ctx context.Context, repoID string) (models.Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.RepoID == repoID && (j.State == models.JobWaiting || j.State == models.JobActive) {
			return j, true, nil
		}
	}
	return models.Job{}, false, nil
}
