package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/seanblong/reposearch/pkg/models"
)

// SearchOpts scopes a candidate search, mirroring the teacher's QueryOpts
// but trimmed to what the retriever actually needs. Candidates are ranked
// by vector distance only; the teacher's lexical/trigram fusion is not
// applied, and the primary ranking stays the retriever's job.
type SearchOpts struct {
	RepoID    string
	QueryText string // carried from the query; SearchCandidates does not read it
	MinScore  float64
	Limit     int
}

// SearchCandidates runs a cosine-distance nearest-neighbor search scoped to
// a repository and returns raw candidates; proximity boosting and final
// ranking are the retriever's responsibility, not the store's.
func (s *Store) SearchCandidates(ctx context.Context, vec []float32, opt SearchOpts) ([]models.RetrievedChunk, error) {
	if opt.Limit <= 0 {
		opt.Limit = 20
	}
	sv := pgvector.NewVector(vec)

	q := `
		SELECT id, repo_id, file_path, language, symbol_name, content,
		       start_line, end_line, chunk_index, commit_hash, embedded_at,
		       1 - (embedding <=> $1) AS vector_score
		FROM code_chunks
		WHERE repo_id = $2 AND embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $3`

	rows, err := s.pool.Query(ctx, q, sv, opt.RepoID, opt.Limit)
	if err != nil {
		return nil, fmt.Errorf("search candidates: %w", err)
	}
	defer rows.Close()

	var out []models.RetrievedChunk
	for rows.Next() {
		var c models.Chunk
		var score float64
		if err := rows.Scan(
			&c.ID, &c.RepoID, &c.FilePath, &c.Language, &c.SymbolName, &c.Content,
			&c.StartLine, &c.EndLine, &c.ChunkIndex, &c.CommitHash, &c.EmbeddedAt,
			&score,
		); err != nil {
			return nil, err
		}
		if score < opt.MinScore {
			continue
		}
		out = append(out, models.RetrievedChunk{Chunk: c, VectorScore: score, Score: score})
	}
	return out, rows.Err()
}

// GetRepoIndex exposes the repository's current index record, used by the
// retriever to reject queries against a repository that has no committed
// snapshot.
func (s *Store) GetRepoIndex(ctx context.Context, repoID string) (models.RepoIndex, bool, error) {
	return s.getRepoIndex(ctx, repoID)
}

// GetChunkMeta looks up a chunk's commit hash by its natural key
// (repoId, filePath, chunkIndex).
func (s *Store) GetChunkMeta(ctx context.Context, repoID, filePath string, chunkIndex int) (commitHash string, found bool, err error) {
	const q = `SELECT commit_hash FROM code_chunks WHERE repo_id = $1 AND file_path = $2 AND chunk_index = $3`
	err = s.pool.QueryRow(ctx, q, repoID, filePath, chunkIndex).Scan(&commitHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return commitHash, true, nil
}
