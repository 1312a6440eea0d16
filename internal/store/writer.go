package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/seanblong/reposearch/internal/metrics"
	"github.com/seanblong/reposearch/pkg/models"
)

// WriteMeta carries the repository-level metadata accompanying a batch of
// embedded chunks, mirroring the write(embedded[], {repoMeta, commitHash,
// model}) contract.
type WriteMeta struct {
	RepoID        string
	CommitHash    string
	DefaultBranch string
	Model         string
}

// WriteResult reports which strategy the writer chose and how many rows it
// touched.
type WriteResult struct {
	Strategy      models.WriteStrategy
	ChunksWritten int
}

// Write persists a batch of embedded chunks for a repository, choosing
// skipped/upsert/full-reindex per the decision algorithm below. The prior
// repo_index record is read, and the skip and strategy decisions are made,
// before the transaction opens; the per-repo Postgres advisory lock taken
// inside the transaction serializes only the writes, so two writers for the
// same repoId never interleave their writes but may both act on the same
// prior record.
func (s *Store) Write(ctx context.Context, embedded []models.EmbeddedChunk, meta WriteMeta) (WriteResult, error) {
	prior, found, err := s.getRepoIndex(ctx, meta.RepoID)
	if err != nil {
		return WriteResult{}, fmt.Errorf("read repo_index: %w", err)
	}

	if found && prior.Status == models.StatusReady &&
		prior.CommitHash == meta.CommitHash && prior.EmbeddingModel == meta.Model {
		metrics.WriteStrategyTotal.WithLabelValues(string(models.WriteSkipped)).Inc()
		return WriteResult{Strategy: models.WriteSkipped}, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return WriteResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, meta.RepoID); err != nil {
		return WriteResult{}, fmt.Errorf("acquire repo lock: %w", err)
	}

	if err := s.markIndexing(ctx, tx, meta); err != nil {
		return WriteResult{}, err
	}

	strategy := models.WriteUpsert
	if !found || prior.EmbeddingModel != meta.Model {
		strategy = models.WriteFullReindex
	}

	var written int
	switch strategy {
	case models.WriteFullReindex:
		written, err = s.fullReindex(ctx, tx, meta.RepoID, embedded)
	default:
		written, err = s.upsert(ctx, tx, meta.RepoID, embedded)
	}
	if err != nil {
		_ = tx.Rollback(ctx)
		_ = s.markFailed(ctx, meta.RepoID, found)
		return WriteResult{}, fmt.Errorf("write chunks (%s): %w", strategy, err)
	}

	if err := s.markReady(ctx, tx, meta, written); err != nil {
		return WriteResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return WriteResult{}, fmt.Errorf("commit tx: %w", err)
	}

	metrics.WriteStrategyTotal.WithLabelValues(string(strategy)).Inc()
	return WriteResult{Strategy: strategy, ChunksWritten: written}, nil
}

func (s *Store) getRepoIndex(ctx context.Context, repoID string) (models.RepoIndex, bool, error) {
	const q = `
		SELECT repo_id, status, commit_hash, default_branch, embedding_model, chunk_count, updated_at
		FROM repo_index WHERE repo_id = $1`
	var r models.RepoIndex
	err := s.pool.QueryRow(ctx, q, repoID).Scan(
		&r.RepoID, &r.Status, &r.CommitHash, &r.DefaultBranch, &r.EmbeddingModel, &r.ChunkCount, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.RepoIndex{}, false, nil
		}
		return models.RepoIndex{}, false, err
	}
	return r, true, nil
}

func (s *Store) markIndexing(ctx context.Context, tx pgx.Tx, meta WriteMeta) error {
	const q = `
		INSERT INTO repo_index (repo_id, status, default_branch, updated_at)
		VALUES ($1, 'indexing', $2, now())
		ON CONFLICT (repo_id) DO UPDATE SET status = 'indexing', updated_at = now()`
	_, err := tx.Exec(ctx, q, meta.RepoID, meta.DefaultBranch)
	return err
}

// markFailed records the failure outside the aborted transaction, leaving
// the prior ready snapshot (commit_hash, embedding_model, chunk_count)
// untouched so queries keep serving the last good index.
func (s *Store) markFailed(ctx context.Context, repoID string, hadPrior bool) error {
	if !hadPrior {
		// no prior record existed and markIndexing's row was rolled back with
		// the transaction; insert a failed record with no prior data to preserve.
		_, err := s.pool.Exec(ctx, `
			INSERT INTO repo_index (repo_id, status, updated_at) VALUES ($1, 'failed', now())
			ON CONFLICT (repo_id) DO UPDATE SET status = 'failed', updated_at = now()`, repoID)
		return err
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE repo_index SET status = 'failed', updated_at = now() WHERE repo_id = $1`, repoID)
	return err
}

func (s *Store) markReady(ctx context.Context, tx pgx.Tx, meta WriteMeta, chunkCount int) error {
	const q = `
		UPDATE repo_index SET
			status = 'ready', commit_hash = $2, default_branch = $3,
			embedding_model = $4, chunk_count = $5, updated_at = now()
		WHERE repo_id = $1`
	_, err := tx.Exec(ctx, q, meta.RepoID, meta.CommitHash, meta.DefaultBranch, meta.Model, chunkCount)
	return err
}

func (s *Store) fullReindex(ctx context.Context, tx pgx.Tx, repoID string, embedded []models.EmbeddedChunk) (int, error) {
	if _, err := tx.Exec(ctx, `DELETE FROM code_chunks WHERE repo_id = $1`, repoID); err != nil {
		return 0, err
	}
	return s.bulkInsert(ctx, tx, embedded)
}

func (s *Store) upsert(ctx context.Context, tx pgx.Tx, repoID string, embedded []models.EmbeddedChunk) (int, error) {
	keep := make([][2]any, 0, len(embedded))
	for _, e := range embedded {
		keep = append(keep, [2]any{e.Chunk.FilePath, e.Chunk.ChunkIndex})
	}

	rows, err := tx.Query(ctx, `SELECT file_path, chunk_index FROM code_chunks WHERE repo_id = $1`, repoID)
	if err != nil {
		return 0, err
	}
	existing := make(map[[2]any]bool)
	for rows.Next() {
		var fp string
		var idx int
		if err := rows.Scan(&fp, &idx); err != nil {
			rows.Close()
			return 0, err
		}
		existing[[2]any{fp, idx}] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	keepSet := make(map[[2]any]bool, len(keep))
	for _, k := range keep {
		keepSet[k] = true
	}
	for k := range existing {
		if !keepSet[k] {
			if _, err := tx.Exec(ctx,
				`DELETE FROM code_chunks WHERE repo_id = $1 AND file_path = $2 AND chunk_index = $3`,
				repoID, k[0], k[1]); err != nil {
				return 0, err
			}
		}
	}

	return s.bulkInsert(ctx, tx, embedded)
}

func (s *Store) bulkInsert(ctx context.Context, tx pgx.Tx, embedded []models.EmbeddedChunk) (int, error) {
	const q = `
		INSERT INTO code_chunks (
			id, repo_id, file_path, language, symbol_name, content,
			start_line, end_line, chunk_index, commit_hash, embedding, embedded_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (repo_id, file_path, chunk_index) DO UPDATE SET
			id          = EXCLUDED.id,
			language    = EXCLUDED.language,
			symbol_name = EXCLUDED.symbol_name,
			content     = EXCLUDED.content,
			start_line  = EXCLUDED.start_line,
			end_line    = EXCLUDED.end_line,
			commit_hash = EXCLUDED.commit_hash,
			embedding   = EXCLUDED.embedding,
			embedded_at = EXCLUDED.embedded_at`

	now := time.Now()
	for _, e := range embedded {
		c := e.Chunk
		_, err := tx.Exec(ctx, q,
			c.ID, c.RepoID, c.FilePath, c.Language, c.SymbolName, c.Content,
			c.StartLine, c.EndLine, c.ChunkIndex, c.CommitHash,
			pgvector.NewVector(e.Vector), now)
		if err != nil {
			return 0, fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}
	return len(embedded), nil
}
