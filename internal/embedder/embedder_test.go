package embedder

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/seanblong/reposearch/pkg/models"
)

type fakeProvider struct {
	dim       int // advertised via Dim(); EmbedOne's actual output length, unless vecLen is set
	vecLen    int // when nonzero, overrides dim as EmbedOne's actual returned vector length
	model     string
	err       error
	lastTask  TaskType
	failCount int
}

func (f *fakeProvider) EmbedOne(ctx context.Context, text string, task TaskType) ([]float32, error) {
	f.lastTask = task
	if f.failCount > 0 {
		f.failCount--
		return nil, errors.New("transient")
	}
	if f.err != nil {
		return nil, f.err
	}
	n := f.dim
	if f.vecLen != 0 {
		n = f.vecLen
	}
	return make([]float32, n), nil
}

func (f *fakeProvider) Model() string { return f.model }
func (f *fakeProvider) Dim() int      { return f.dim }

func chunk(path string) models.Chunk {
	return models.Chunk{FilePath: path, Language: "go", Content: "package x"}
}

func TestEmbedBatchPreservesOrderAndModel(t *testing.T) {
	p := &fakeProvider{dim: 768, model: "test-model"}
	e := New(p, zerolog.Nop())

	reqs := []EmbedRequest{{Chunk: chunk("a.go")}, {Chunk: chunk("b.go")}, {Chunk: chunk("c.go")}}
	res, err := e.EmbedBatch(context.Background(), reqs, TaskRetrievalDocument)
	require.NoError(t, err)
	require.Len(t, res.Embedded, 3)
	require.Equal(t, "a.go", res.Embedded[0].Chunk.FilePath)
	require.Equal(t, "c.go", res.Embedded[2].Chunk.FilePath)
	require.Equal(t, "test-model", res.Model)
	require.Equal(t, TaskRetrievalDocument, p.lastTask)
}

func TestEmbedBatchDimensionMismatchFailsFast(t *testing.T) {
	p := &fakeProvider{dim: 10, model: "bad-model"}
	e := New(p, zerolog.Nop())

	_, err := e.EmbedBatch(context.Background(), []EmbedRequest{{Chunk: chunk("a.go")}}, TaskRetrievalDocument)
	require.Error(t, err)
}

// A provider that claims Dim()==768 but whose EmbedOne actually hands back
// a different-length vector must still be caught: the check has to compare
// against the fixed package Dim, not the provider's own self-reported Dim.
func TestEmbedBatchRejectsVectorNotMatchingFixedDim(t *testing.T) {
	p := &fakeProvider{dim: Dim, vecLen: 1536, model: "self-reports-768"}
	e := New(p, zerolog.Nop())

	_, err := e.EmbedBatch(context.Background(), []EmbedRequest{{Chunk: chunk("a.go")}}, TaskRetrievalDocument)
	require.Error(t, err)
}

func TestEmbedBatchRetriesTransientFailures(t *testing.T) {
	p := &fakeProvider{dim: 768, model: "m", failCount: 2}
	e := New(p, zerolog.Nop())

	res, err := e.EmbedBatch(context.Background(), []EmbedRequest{{Chunk: chunk("a.go")}}, TaskRetrievalDocument)
	require.NoError(t, err)
	require.Len(t, res.Embedded, 1)
}

func TestGroundingHeaderIncludesSymbolWhenPresent(t *testing.T) {
	h := GroundingHeader("a.go", "DoThing", "go")
	require.Contains(t, h, "a.go")
	require.Contains(t, h, "DoThing")
	require.Contains(t, h, "go")

	h2 := GroundingHeader("a.go", "", "go")
	require.NotContains(t, h2, "symbol:")
}

func TestLocalProviderDeterministic(t *testing.T) {
	p := NewLocalProvider()
	v1, err := p.EmbedOne(context.Background(), "hello world", TaskRetrievalDocument)
	require.NoError(t, err)
	v2, err := p.EmbedOne(context.Background(), "hello world", TaskRetrievalDocument)
	require.NoError(t, err)
	require.Equal(t, v1, v2)
	require.Len(t, v1, LocalDim)
}
