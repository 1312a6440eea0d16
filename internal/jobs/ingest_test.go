package jobs

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/seanblong/reposearch/internal/embedder"
	"github.com/seanblong/reposearch/internal/fetcher"
	"github.com/seanblong/reposearch/pkg/models"
)

type fakeFetcher struct {
	result fetcher.Result
}

func (f fakeFetcher) Fetch(ctx context.Context, owner, name string) (fetcher.Result, error) {
	return f.result, nil
}

type fakeEmbedProvider struct{}

func (fakeEmbedProvider) EmbedOne(_ context.Context, _ string, _ embedder.TaskType) ([]float32, error) {
	return make([]float32, embedder.Dim), nil
}
func (fakeEmbedProvider) Model() string { return "fake-v1" }
func (fakeEmbedProvider) Dim() int      { return embedder.Dim }

func TestSplitRepoIDRejectsMissingSlash(t *testing.T) {
	_, _, err := splitRepoID("no-slash-here")
	require.Error(t, err)
}

func TestSplitRepoIDAcceptsOwnerSlashName(t *testing.T) {
	owner, name, err := splitRepoID("seanblong/reposearch")
	require.NoError(t, err)
	require.Equal(t, "seanblong", owner)
	require.Equal(t, "reposearch", name)
}

func TestIngestStagesFetchThroughEmbedPopulateScratch(t *testing.T) {
	fr := fetcher.Result{
		CommitHash:    "abc123",
		DefaultBranch: "main",
		Files: []fetcher.File{
			{Path: "main.go", Content: "package main\n\nfunc main() {}\n", SizeBytes: 30},
		},
	}
	fk := fakeFetcher{result: fr}
	emb := embedder.New(fakeEmbedProvider{}, zerolog.Nop())

	stages := IngestStages(fk, emb, nil)
	require.Len(t, stages, 4)

	job := &models.Job{ID: "j1", RepoID: "owner/repo"}
	require.NoError(t, stages[0].Run(context.Background(), job))
	require.NoError(t, stages[1].Run(context.Background(), job))
	require.NoError(t, stages[2].Run(context.Background(), job))
}

func TestIngestStagesFetchRejectsMalformedRepoID(t *testing.T) {
	fk := fakeFetcher{}
	emb := embedder.New(fakeEmbedProvider{}, zerolog.Nop())
	stages := IngestStages(fk, emb, nil)

	job := &models.Job{ID: "j2", RepoID: "bad-repo-id"}
	require.Error(t, stages[0].Run(context.Background(), job))
}
