package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/seanblong/reposearch/pkg/models"
)

// PutJob upserts a job record, used by the job runner after every stage
// transition so GET /index/status/{jobId} reflects live progress even
// across API replicas.
func (s *Store) PutJob(ctx context.Context, job models.Job) error {
	stages, err := json.Marshal(job.Stages)
	if err != nil {
		return fmt.Errorf("marshal job stages: %w", err)
	}
	const q = `
		INSERT INTO jobs (id, repo_id, state, progress, error, stages, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state, progress = EXCLUDED.progress,
			error = EXCLUDED.error, stages = EXCLUDED.stages, updated_at = now()`
	_, err = s.pool.Exec(ctx, q, job.ID, job.RepoID, job.State, job.Progress, job.Error, stages)
	return err
}

// GetJob looks up a job by id.
func (s *Store) GetJob(ctx context.Context, jobID string) (models.Job, bool, error) {
	const q = `SELECT id, repo_id, state, progress, error, stages FROM jobs WHERE id = $1`
	return s.scanJob(ctx, q, jobID)
}

// FindActiveJobForRepo returns the waiting or active job for repoID, if
// any, so EnqueueIndex can return it instead of starting a duplicate run.
func (s *Store) FindActiveJobForRepo(ctx context.Context, repoID string) (models.Job, bool, error) {
	const q = `
		SELECT id, repo_id, state, progress, error, stages
		FROM jobs
		WHERE repo_id = $1 AND state IN ('waiting', 'active')
		ORDER BY created_at DESC LIMIT 1`
	return s.scanJob(ctx, q, repoID)
}

func (s *Store) scanJob(ctx context.Context, q string, arg string) (models.Job, bool, error) {
	var job models.Job
	var stages []byte
	err := s.pool.QueryRow(ctx, q, arg).Scan(&job.ID, &job.RepoID, &job.State, &job.Progress, &job.Error, &stages)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Job{}, false, nil
		}
		return models.Job{}, false, err
	}
	if len(stages) > 0 {
		if err := json.Unmarshal(stages, &job.Stages); err != nil {
			return models.Job{}, false, fmt.Errorf("unmarshal job stages: %w", err)
		}
	}
	return job, true, nil
}
