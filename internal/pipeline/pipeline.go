// Package pipeline drives the embedding → retrieval → ranking → context →
// generation stages and emits structured events over a channel for the
// HTTP handler to forward as server-sent events.
package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/seanblong/reposearch/internal/errs"
	"github.com/seanblong/reposearch/internal/llm"
	"github.com/seanblong/reposearch/internal/metrics"
	"github.com/seanblong/reposearch/internal/ragcontext"
	"github.com/seanblong/reposearch/internal/retriever"
)

// stage is the closed set of pipeline states; stageError is terminal and
// reachable from any other state.
type stage string

const (
	stageEmbedding stage = "embedding"
	stageRetrieval stage = "retrieval"
	stageRanking   stage = "ranking"
	stageContext   stage = "context"
	stageGeneration stage = "generation"
	stageError     stage = "error"
)

var tracer = otel.Tracer("reposearch/pipeline")

// Event is one structured message emitted during a pipeline run.
type Event struct {
	Name string
	Data any
}

// StageEvent is the payload of a "stage:<name>" event.
type StageEvent struct {
	Stage      string
	Status     string // "start" | "done"
	DurationMs int64
	Payload    any `json:"payload,omitempty"`
}

// Request is the pipeline's input.
type Request struct {
	RepoID     string
	Query      string
	TopK       int
	CharBudget int
}

// Runner drives one pipeline execution.
type Runner struct {
	retriever *retriever.Retriever
	streamer  llm.Streamer
}

// New builds a Runner over a retriever and a generation backend.
func New(r *retriever.Retriever, s llm.Streamer) *Runner {
	return &Runner{retriever: r, streamer: s}
}

// Run executes the full pipeline, emitting events on the returned channel.
// The channel is closed when the run terminates, successfully or not. The
// caller cancelling ctx aborts in-flight LLM streaming and discards any
// partial answer.
func (p *Runner) Run(ctx context.Context, req Request) <-chan Event {
	events := make(chan Event, 8)

	go func() {
		defer close(events)

		ctx, span := tracer.Start(ctx, "pipeline.run", trace.WithAttributes())
		defer span.End()

		retrieval, ok := p.runRetrieval(ctx, req, events)
		if !ok {
			return
		}

		assembled := p.runContext(ctx, req, retrieval, events)

		p.runGeneration(ctx, assembled, events)
	}()

	return events
}

func (p *Runner) runRetrieval(ctx context.Context, req Request, events chan<- Event) (retriever.Result, bool) {
	emit(events, stageEmbedding, "start", 0, nil)
	start := time.Now()

	res, err := p.retriever.Retrieve(ctx, retriever.Query{RepoID: req.RepoID, Text: req.Query, TopK: req.TopK})
	if err != nil {
		emitError(events, err)
		return retriever.Result{}, false
	}
	metrics.RetrievalDuration.Observe(time.Since(start).Seconds())

	emit(events, stageEmbedding, "done", time.Since(start).Milliseconds(), nil)
	emit(events, stageRetrieval, "done", res.Duration.Milliseconds(), struct {
		TotalCandidates int `json:"totalCandidates"`
	}{res.TotalCandidates})
	emit(events, stageRanking, "done", 0, res.Chunks)

	return res, true
}

func (p *Runner) runContext(ctx context.Context, req Request, retrieval retriever.Result, events chan<- Event) ragcontext.Assembled {
	start := time.Now()
	assembled := ragcontext.Assemble(req.RepoID, req.Query, retrieval.Chunks, req.CharBudget)
	emit(events, stageContext, "done", time.Since(start).Milliseconds(), struct {
		TokenEstimate int `json:"tokenEstimate"`
		Citations     int `json:"citations"`
	}{assembled.TokenEstimate, len(assembled.CitationMap)})
	return assembled
}

func (p *Runner) runGeneration(ctx context.Context, assembled ragcontext.Assembled, events chan<- Event) {
	emit(events, stageGeneration, "start", 0, nil)
	start := time.Now()

	tokens, err := p.streamer.Stream(ctx, assembled.SystemPrompt, assembled.UserPrompt)
	if err != nil {
		emitError(events, errs.Wrap(errs.UpstreamUnavailable, "generation stream failed to start", err))
		return
	}

	var answer []byte
	for tok := range tokens {
		if ctx.Err() != nil {
			return
		}
		if tok.Text != "" {
			answer = append(answer, tok.Text...)
			events <- Event{Name: "token", Data: struct {
				Text string `json:"text"`
			}{tok.Text}}
		}
		if tok.Done {
			break
		}
	}

	emit(events, stageGeneration, "done", time.Since(start).Milliseconds(), struct {
		Answer string `json:"answer"`
	}{string(answer)})
}

func emit(events chan<- Event, s stage, status string, durationMs int64, payload any) {
	events <- Event{Name: "stage:" + string(s), Data: StageEvent{
		Stage: string(s), Status: status, DurationMs: durationMs, Payload: payload,
	}}
}

func emitError(events chan<- Event, err error) {
	kind := errs.KindOf(err)
	metrics.PipelineErrorsTotal.WithLabelValues(string(kind)).Inc()
	events <- Event{Name: "error", Data: struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	}{string(kind), err.Error()}}
}
