// Package retriever implements the retrieve contract: embed the query,
// search the vector store scoped to a repository, and rerank candidates
// by file proximity before returning the top K.
package retriever

import (
	"context"
	"fmt"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/seanblong/reposearch/internal/embedder"
	"github.com/seanblong/reposearch/internal/errs"
	"github.com/seanblong/reposearch/internal/store"
	"github.com/seanblong/reposearch/pkg/models"
)

// Default parameters for the retrieve contract.
const (
	DefaultTopK                = 8
	DefaultCandidateMultiplier = 3
	DefaultMinScore            = 0.3

	// AnchorBoost and AnchorFileCap implement the file-proximity reranker.
	AnchorBoost   = 0.08
	AnchorFileCap = 0.16
	anchorCount   = 3

	queryCacheTTL  = 5 * time.Minute
	queryCacheSize = 256
)

// SearchStore is the subset of Store the retriever depends on, letting
// tests substitute a fake backend instead of a live Postgres connection.
type SearchStore interface {
	SearchCandidates(ctx context.Context, vec []float32, opt store.SearchOpts) ([]models.RetrievedChunk, error)
	GetRepoIndex(ctx context.Context, repoID string) (models.RepoIndex, bool, error)
}

// Query is the retrieve() contract's input.
type Query struct {
	RepoID              string
	Text                string
	TopK                int
	CandidateMultiplier int
	MinScore            float64
	FileFilter          func(path string) bool
}

// Result is the retrieve() contract's output.
type Result struct {
	Chunks          []models.RetrievedChunk
	TotalCandidates int
	Duration        time.Duration
}

type cacheEntry struct {
	vector []float32
	at     time.Time
}

// Retriever ties together query embedding, vector search, and reranking.
type Retriever struct {
	store    SearchStore
	embed    *embedder.Embedder
	cache    *lru.Cache[string, cacheEntry]
	log      zerolog.Logger
}

// New constructs a Retriever backed by store and the given embedder.
func New(store SearchStore, embed *embedder.Embedder, log zerolog.Logger) *Retriever {
	c, _ := lru.New[string, cacheEntry](queryCacheSize)
	return &Retriever{store: store, embed: embed, cache: c, log: log}
}

// Retrieve runs the full algorithm: embed, search, rerank, truncate to
// topK.
func (r *Retriever) Retrieve(ctx context.Context, q Query) (Result, error) {
	start := time.Now()
	if q.TopK <= 0 {
		q.TopK = DefaultTopK
	}
	if q.CandidateMultiplier <= 0 {
		q.CandidateMultiplier = DefaultCandidateMultiplier
	}
	if q.MinScore == 0 {
		q.MinScore = DefaultMinScore
	}

	idx, found, err := r.store.GetRepoIndex(ctx, q.RepoID)
	if err != nil {
		return Result{}, fmt.Errorf("load repo index: %w", err)
	}
	// A failed write leaves the last committed snapshot in place, so a failed
	// record that carries a commit hash is still served.
	servable := idx.Status == models.StatusReady ||
		(idx.Status == models.StatusFailed && idx.CommitHash != "")
	if !found || !servable {
		return Result{}, errs.New(errs.NotFound, "repository has no ready index")
	}

	vec, err := r.embedQuery(ctx, q.RepoID, q.Text)
	if err != nil {
		return Result{}, err
	}

	candidates, err := r.store.SearchCandidates(ctx, vec, store.SearchOpts{
		RepoID:    q.RepoID,
		QueryText: q.Text,
		MinScore:  q.MinScore,
		Limit:     q.TopK * q.CandidateMultiplier,
	})
	if err != nil {
		return Result{}, fmt.Errorf("search candidates: %w", err)
	}

	if q.FileFilter != nil {
		filtered := candidates[:0]
		for _, c := range candidates {
			if q.FileFilter(c.Chunk.FilePath) {
				filtered = append(filtered, c)
			}
		}
		candidates = filtered
	}

	ranked := rerankByProximity(candidates)
	if len(ranked) > q.TopK {
		ranked = ranked[:q.TopK]
	}

	return Result{
		Chunks:          ranked,
		TotalCandidates: len(candidates),
		Duration:        time.Since(start),
	}, nil
}

// embedQuery embeds the query text with RETRIEVAL_QUERY task type — fixing
// the teacher's bug of hardcoding RETRIEVAL_DOCUMENT for every embed call —
// and caches the vector per (repoId, text) for a few minutes so repeated
// pipeline retries don't re-embed identical queries.
func (r *Retriever) embedQuery(ctx context.Context, repoID, text string) ([]float32, error) {
	key := repoID + "\x00" + text
	if r.cache != nil {
		if e, ok := r.cache.Get(key); ok && time.Since(e.at) < queryCacheTTL {
			return e.vector, nil
		}
	}

	res, err := r.embed.EmbedBatch(ctx, []embedder.EmbedRequest{{Chunk: models.Chunk{Content: text}}}, embedder.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(res.Embedded) == 0 {
		return nil, errs.New(errs.UpstreamUnavailable, "embedder returned no vector for query")
	}
	vec := res.Embedded[0].Vector

	if r.cache != nil {
		r.cache.Add(key, cacheEntry{vector: vec, at: time.Now()})
	}
	return vec, nil
}

// rerankByProximity boosts candidates that sit near the strongest matches:
// the top anchorCount candidates by raw vectorScore contribute their file
// paths to an anchor set; chunks in anchor files get a capped proximity
// boost.
func rerankByProximity(candidates []models.RetrievedChunk) []models.RetrievedChunk {
	if len(candidates) == 0 {
		return candidates
	}

	byScore := make([]models.RetrievedChunk, len(candidates))
	copy(byScore, candidates)
	sort.SliceStable(byScore, func(i, j int) bool {
		return byScore[i].VectorScore > byScore[j].VectorScore
	})

	n := anchorCount
	if n > len(byScore) {
		n = len(byScore)
	}
	anchors := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		anchors[byScore[i].Chunk.FilePath] = true
	}

	fileBoostUsed := make(map[string]float64)
	out := make([]models.RetrievedChunk, len(candidates))
	for i, c := range candidates {
		boost := 0.0
		if anchors[c.Chunk.FilePath] {
			remaining := AnchorFileCap - fileBoostUsed[c.Chunk.FilePath]
			if remaining > 0 {
				boost = AnchorBoost
				if boost > remaining {
					boost = remaining
				}
				fileBoostUsed[c.Chunk.FilePath] += boost
			}
		}
		c.ProximityBoost = boost
		c.Score = c.VectorScore + boost
		out[i] = c
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].VectorScore > out[j].VectorScore
	})
	return out
}
