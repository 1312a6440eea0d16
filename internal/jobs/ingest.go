package jobs

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/seanblong/reposearch/internal/chunker"
	"github.com/seanblong/reposearch/internal/embedder"
	"github.com/seanblong/reposearch/internal/fetcher"
	"github.com/seanblong/reposearch/internal/filter"
	"github.com/seanblong/reposearch/internal/store"
	"github.com/seanblong/reposearch/pkg/models"
)

// IngestStages builds the Fetcher → Filter → Chunker → Embedder → Writer
// stage sequence a worker runs per job, grounded on the teacher's
// cmd/indexer/main.go call chain (clone, walk, chunk, embed, write) run
// synchronously; here each step is a Stage so the Runner can persist
// progress between them. Intermediate artifacts (fetched files, chunks)
// never touch models.Job, which is a status record, not a pipeline
// context; they live in a scratch map keyed by job id for the duration of
// one run.
func IngestStages(fetch fetcher.Fetcher, embed *embedder.Embedder, st *store.Store) []Stage {
	scratch := &ingestScratch{data: map[string]ingestArtifacts{}}

	return []Stage{
		{Name: "fetch", Run: func(ctx context.Context, job *models.Job) error {
			owner, name, err := splitRepoID(job.RepoID)
			if err != nil {
				return err
			}
			res, err := fetch.Fetch(ctx, owner, name)
			if err != nil {
				return fmt.Errorf("fetch: %w", err)
			}
			scratch.put(job.ID, ingestArtifacts{fetched: res})
			return nil
		}},
		{Name: "filter_chunk", Run: func(ctx context.Context, job *models.Job) error {
			art := scratch.get(job.ID)

			filterFiles := make([]filter.File, len(art.fetched.Files))
			for i, f := range art.fetched.Files {
				filterFiles[i] = filter.File{Path: f.Path, Content: f.Content, SizeBytes: int(f.SizeBytes)}
			}
			accepted := filter.Apply(filterFiles).Accepted

			c := chunker.New()
			var chunks []models.Chunk
			for _, f := range accepted {
				res, err := c.Chunk(job.RepoID, f.Path, f.Content)
				if err != nil {
					return fmt.Errorf("chunk %s: %w", f.Path, err)
				}
				for i := range res.Chunks {
					res.Chunks[i].CommitHash = art.fetched.CommitHash
				}
				chunks = append(chunks, res.Chunks...)
			}

			art.chunks = chunks
			scratch.put(job.ID, art)
			return nil
		}},
		{Name: "embed", Run: func(ctx context.Context, job *models.Job) error {
			art := scratch.get(job.ID)

			reqs := make([]embedder.EmbedRequest, len(art.chunks))
			for i, c := range art.chunks {
				reqs[i] = embedder.EmbedRequest{Chunk: c}
			}
			res, err := embed.EmbedBatch(ctx, reqs, embedder.TaskRetrievalDocument)
			if err != nil {
				return fmt.Errorf("embed: %w", err)
			}

			art.embedded = res.Embedded
			art.model = res.Model
			scratch.put(job.ID, art)
			return nil
		}},
		{Name: "write", Run: func(ctx context.Context, job *models.Job) error {
			art := scratch.get(job.ID)
			defer scratch.delete(job.ID)

			res, err := st.Write(ctx, art.embedded, store.WriteMeta{
				RepoID:        job.RepoID,
				CommitHash:    art.fetched.CommitHash,
				DefaultBranch: art.fetched.DefaultBranch,
				Model:         art.model,
			})
			if err != nil {
				return fmt.Errorf("write: %w", err)
			}

			job.Result = &models.RepoIndex{
				RepoID:         job.RepoID,
				Status:         models.StatusReady,
				CommitHash:     art.fetched.CommitHash,
				DefaultBranch:  art.fetched.DefaultBranch,
				EmbeddingModel: art.model,
				ChunkCount:     res.ChunksWritten,
			}
			return nil
		}},
	}
}

type ingestArtifacts struct {
	fetched  fetcher.Result
	chunks   []models.Chunk
	embedded []models.EmbeddedChunk
	model    string
}

type ingestScratch struct {
	mu   sync.Mutex
	data map[string]ingestArtifacts
}

func (s *ingestScratch) put(jobID string, art ingestArtifacts) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[jobID] = art
}

func (s *ingestScratch) get(jobID string) ingestArtifacts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[jobID]
}

func (s *ingestScratch) delete(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, jobID)
}

// splitRepoID parses the "owner/name" form the fetch API expects.
func splitRepoID(repoID string) (owner, name string, err error) {
	parts := strings.SplitN(repoID, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repoId must be \"owner/name\", got %q", repoID)
	}
	return parts[0], parts[1], nil
}
