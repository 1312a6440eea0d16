// Package embedder turns chunks into fixed-dimension vectors in bounded
// batches, generalizing the teacher's single-text ai.Client into an
// explicit batch contract that distinguishes document- and query-time
// embedding task types.
package embedder

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/seanblong/reposearch/internal/errs"
	"github.com/seanblong/reposearch/internal/metrics"
	"github.com/seanblong/reposearch/internal/tokenest"
	"github.com/seanblong/reposearch/pkg/models"
)

// TaskType mirrors genai.EmbedContentConfig.TaskType. Mixing document and
// query task types for the same vector space degrades recall, so
// EmbedBatch takes it explicitly instead of hardcoding it per client the
// way the teacher's vertexai.go does today.
type TaskType string

const (
	TaskRetrievalDocument TaskType = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    TaskType = "RETRIEVAL_QUERY"
)

// BatchSize is the number of chunks EmbedBatch embeds between inter-batch
// pauses. Each provider call carries a single text; chunks are not grouped
// into one remote request.
const BatchSize = 100

// InterBatchPause is the delay between sequential batch dispatches to
// respect upstream rate limits.
const InterBatchPause = 200 * time.Millisecond

// Dim is the output dimension every production embedding must produce.
const Dim = 768

// EmbedRequest is one chunk queued for embedding.
type EmbedRequest struct {
	Chunk models.Chunk
}

// BatchResult is the outcome of embedding a set of chunks, in input order.
type BatchResult struct {
	Embedded           []models.EmbeddedChunk
	Model              string
	TokensUsedEstimate int
	DurationMs         int64
}

// Provider is the capability a remote or local backend implements: embed a
// single text under a task type, report its model tag and dimension.
type Provider interface {
	EmbedOne(ctx context.Context, text string, task TaskType) ([]float32, error)
	Model() string
	Dim() int
}

// Embedder batches chunk embedding requests against a Provider.
type Embedder struct {
	provider Provider
	log      zerolog.Logger
}

// New builds an Embedder over the given provider.
func New(provider Provider, log zerolog.Logger) *Embedder {
	return &Embedder{provider: provider, log: log}
}

// GroundingHeader builds the small header prefixed to a chunk's content
// before embedding, so the indexed representation always carries its file
// path, symbol, and language. EmbedBatch applies it to every request, so a
// query embedded through EmbedBatch as a chunk with only Content set carries
// a header with empty path and language. Re-embedding a chunk for evaluation MUST
// reuse this exact function so the stored vector stays reproducible.
func GroundingHeader(filePath, symbolName, language string) string {
	if symbolName != "" {
		return fmt.Sprintf("// file: %s\n// symbol: %s\n// language: %s\n", filePath, symbolName, language)
	}
	return fmt.Sprintf("// file: %s\n// language: %s\n", filePath, language)
}

// embedText returns the exact text embedded for a chunk: the grounding
// header followed by the chunk's content.
func embedText(c models.Chunk) string {
	return GroundingHeader(c.FilePath, c.SymbolName, c.Language) + c.Content
}

// EmbedBatch embeds every chunk in reqs, dispatching to the provider in
// batches of BatchSize with a pause between sequential dispatches. A batch
// that exhausts its retries aborts the whole run: partial embeddings are
// discarded so "ready implies complete for a commit" always holds.
func (e *Embedder) EmbedBatch(ctx context.Context, reqs []EmbedRequest, task TaskType) (BatchResult, error) {
	start := time.Now()
	out := make([]models.EmbeddedChunk, 0, len(reqs))
	tokens := 0

	for batchStart := 0; batchStart < len(reqs); batchStart += BatchSize {
		batchEnd := batchStart + BatchSize
		if batchEnd > len(reqs) {
			batchEnd = len(reqs)
		}
		batch := reqs[batchStart:batchEnd]
		metrics.EmbeddingBatchSize.Observe(float64(len(batch)))

		for _, r := range batch {
			text := embedText(r.Chunk)
			tokens += tokenest.Estimate(text)

			var vec []float32
			err := errs.Retry(ctx, errs.DefaultRetryConfig(), func(ctx context.Context) error {
				v, err := e.provider.EmbedOne(ctx, text, task)
				if err != nil {
					return err
				}
				vec = v
				return nil
			})
			if err != nil {
				return BatchResult{}, errs.Wrap(errs.UpstreamUnavailable, "embedding batch failed", err)
			}

			if len(vec) != Dim {
				return BatchResult{}, errs.New(errs.Internal, fmt.Sprintf(
					"embedding dimension mismatch: got %d want %d", len(vec), Dim))
			}

			out = append(out, models.EmbeddedChunk{
				Chunk:  r.Chunk,
				Vector: vec,
				Model:  e.provider.Model(),
			})
		}

		if batchEnd < len(reqs) {
			select {
			case <-time.After(InterBatchPause):
			case <-ctx.Done():
				return BatchResult{}, errs.Wrap(errs.Cancelled, "embedding cancelled", ctx.Err())
			}
		}
	}

	e.log.Info().Int("chunks", len(reqs)).Str("model", e.provider.Model()).
		Int("tokens_estimate", tokens).Msg("embedding batch complete")

	return BatchResult{
		Embedded:           out,
		Model:              e.provider.Model(),
		TokensUsedEstimate: tokens,
		DurationMs:         time.Since(start).Milliseconds(),
	}, nil
}
