package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/seanblong/reposearch/internal/embedder"
	"github.com/seanblong/reposearch/internal/llm"
	"github.com/seanblong/reposearch/internal/retriever"
	"github.com/seanblong/reposearch/internal/store"
	"github.com/seanblong/reposearch/pkg/models"
)

type fakeStore struct{}

func (fakeStore) GetRepoIndex(ctx context.Context, repoID string) (models.RepoIndex, bool, error) {
	return models.RepoIndex{Status: models.StatusReady}, true, nil
}

func (fakeStore) SearchCandidates(ctx context.Context, vec []float32, opt store.SearchOpts) ([]models.RetrievedChunk, error) {
	return []models.RetrievedChunk{
		{Chunk: models.Chunk{FilePath: "a.go", Content: "package a", StartLine: 1, EndLine: 3}, VectorScore: 0.9},
	}, nil
}

type fakeProvider struct{}

func (fakeProvider) EmbedOne(ctx context.Context, text string, task embedder.TaskType) ([]float32, error) {
	return make([]float32, 768), nil
}
func (fakeProvider) Model() string { return "m" }
func (fakeProvider) Dim() int      { return 768 }

type fakeStreamer struct{ chunks []string }

func (f fakeStreamer) Stream(ctx context.Context, systemPrompt, userPrompt string) (<-chan llm.Token, error) {
	out := make(chan llm.Token, len(f.chunks)+1)
	for _, c := range f.chunks {
		out <- llm.Token{Text: c}
	}
	out <- llm.Token{Done: true}
	close(out)
	return out, nil
}

func TestRunEmitsStagesInOrderThenTokensThenDone(t *testing.T) {
	r := retriever.New(fakeStore{}, embedder.New(fakeProvider{}, zerolog.Nop()), zerolog.Nop())
	runner := New(r, fakeStreamer{chunks: []string{"hello ", "world"}})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var names []string
	for ev := range runner.Run(ctx, Request{RepoID: "r1", Query: "what does this do?"}) {
		names = append(names, ev.Name)
	}

	require.Contains(t, names, "stage:embedding")
	require.Contains(t, names, "stage:retrieval")
	require.Contains(t, names, "stage:ranking")
	require.Contains(t, names, "stage:context")
	require.Contains(t, names, "stage:generation")
	require.Contains(t, names, "token")

	embeddingIdx := indexOf(names, "stage:embedding")
	retrievalIdx := indexOf(names, "stage:retrieval")
	contextIdx := indexOf(names, "stage:context")
	genIdx := lastIndexOf(names, "stage:generation")
	require.Less(t, embeddingIdx, retrievalIdx)
	require.Less(t, retrievalIdx, contextIdx)
	require.Less(t, contextIdx, genIdx)
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

func lastIndexOf(s []string, v string) int {
	idx := -1
	for i, x := range s {
		if x == v {
			idx = i
		}
	}
	return idx
}
