package retriever

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/seanblong/reposearch/internal/embedder"
	"github.com/seanblong/reposearch/internal/store"
	"github.com/seanblong/reposearch/pkg/models"
)

type fakeStore struct {
	idx        models.RepoIndex
	found      bool
	candidates []models.RetrievedChunk
}

func (f *fakeStore) GetRepoIndex(ctx context.Context, repoID string) (models.RepoIndex, bool, error) {
	return f.idx, f.found, nil
}

func (f *fakeStore) SearchCandidates(ctx context.Context, vec []float32, opt store.SearchOpts) ([]models.RetrievedChunk, error) {
	return f.candidates, nil
}

type fakeProvider struct{}

func (fakeProvider) EmbedOne(ctx context.Context, text string, task embedder.TaskType) ([]float32, error) {
	return make([]float32, 768), nil
}
func (fakeProvider) Model() string { return "m" }
func (fakeProvider) Dim() int      { return 768 }

func candidate(path string, score float64) models.RetrievedChunk {
	return models.RetrievedChunk{Chunk: models.Chunk{FilePath: path}, VectorScore: score, Score: score}
}

func TestRetrieveRejectsRepoWithoutReadyIndex(t *testing.T) {
	fs := &fakeStore{found: false}
	r := New(fs, embedder.New(fakeProvider{}, zerolog.Nop()), zerolog.Nop())

	_, err := r.Retrieve(context.Background(), Query{RepoID: "r1", Text: "find it"})
	require.Error(t, err)
}

func TestRetrieveTruncatesToTopK(t *testing.T) {
	cands := []models.RetrievedChunk{
		candidate("a.go", 0.9), candidate("b.go", 0.8), candidate("c.go", 0.7),
		candidate("d.go", 0.6), candidate("e.go", 0.5),
	}
	fs := &fakeStore{found: true, idx: models.RepoIndex{Status: models.StatusReady}, candidates: cands}
	r := New(fs, embedder.New(fakeProvider{}, zerolog.Nop()), zerolog.Nop())

	res, err := r.Retrieve(context.Background(), Query{RepoID: "r1", Text: "find it", TopK: 2})
	require.NoError(t, err)
	require.Len(t, res.Chunks, 2)
	require.Equal(t, 5, res.TotalCandidates)
}

func TestProximityRerankBoostsAnchorFilesUpToCap(t *testing.T) {
	cands := []models.RetrievedChunk{
		candidate("hot.go", 0.9),
		candidate("hot.go", 0.85),
		candidate("hot.go", 0.80),
		candidate("cold.go", 0.78),
	}
	out := rerankByProximity(cands)

	require.Equal(t, "hot.go", out[0].Chunk.FilePath)
	require.InDelta(t, 0.08, out[0].ProximityBoost, 1e-9)
	require.InDelta(t, 0.08, out[1].ProximityBoost, 1e-9)
	// third hot.go chunk would exceed the 0.16 per-file cap
	var third models.RetrievedChunk
	for _, c := range out {
		if c.Chunk.FilePath == "hot.go" && c.VectorScore == 0.80 {
			third = c
		}
	}
	require.InDelta(t, 0.0, third.ProximityBoost, 1e-9)

	for _, c := range out {
		if c.Chunk.FilePath == "cold.go" {
			require.InDelta(t, 0.0, c.ProximityBoost, 1e-9)
		}
	}
}

func TestQueryEmbeddingCacheAvoidsReEmbed(t *testing.T) {
	fs := &fakeStore{found: true, idx: models.RepoIndex{Status: models.StatusReady}}
	r := New(fs, embedder.New(fakeProvider{}, zerolog.Nop()), zerolog.Nop())

	v1, err := r.embedQuery(context.Background(), "r1", "hello")
	require.NoError(t, err)
	v2, err := r.embedQuery(context.Background(), "r1", "hello")
	require.NoError(t, err)
	require.Equal(t, v1, v2)

	e, ok := r.cache.Get("r1\x00hello")
	require.True(t, ok)
	require.WithinDuration(t, time.Now(), e.at, time.Second)
}
