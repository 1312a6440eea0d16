package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/spf13/pflag"

	"github.com/seanblong/reposearch/internal/auth"
	"github.com/seanblong/reposearch/internal/config"
	"github.com/seanblong/reposearch/internal/embedder"
	"github.com/seanblong/reposearch/internal/fetcher"
	"github.com/seanblong/reposearch/internal/jobs"
	"github.com/seanblong/reposearch/internal/llm"
	"github.com/seanblong/reposearch/internal/metrics"
	"github.com/seanblong/reposearch/internal/pipeline"
	"github.com/seanblong/reposearch/internal/ragcontext"
	"github.com/seanblong/reposearch/internal/retriever"
	"github.com/seanblong/reposearch/internal/store"
)

func main() {
	fs := pflag.NewFlagSet("reposearch-server", pflag.ExitOnError)

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("invalid log level %q: %v", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	logger.Info().Str("provider", cfg.Provider).Bool("auth_enabled", cfg.Auth.Enabled).Msg("starting reposearch server")

	auth.InitializeAuth(
		cfg.Auth.JwtSecret, cfg.Auth.GithubClientID, cfg.Auth.GithubClientSecret,
		cfg.Auth.GithubRedirectURL, cfg.Auth.GithubAllowedOrg, cfg.Auth.Enabled,
	)

	ctx := context.Background()

	st, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer st.Close()

	embedProvider, embedDim, err := buildEmbedProvider(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to build embedding provider: %v", err)
	}
	if err := st.Migrate(ctx, embedDim); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}
	embed := embedder.New(embedProvider, logger)

	streamer, err := buildStreamer(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to build generation backend: %v", err)
	}

	ret := retriever.New(st, embed, logger)
	runner := pipeline.New(ret, streamer)

	fetch := buildFetcher(cfg, logger)

	reg := prometheus.NewRegistry()
	metrics.Register(reg)

	jobQueue, jobStore := buildJobBackend(cfg, st)
	jobRunner := jobs.New(jobQueue, jobStore, jobs.IngestStages(fetch, embed, st), cfg.WorkerConcurrency, logger)
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()
	go func() {
		if err := jobRunner.Start(workerCtx); err != nil {
			logger.Error().Err(err).Msg("job worker pool stopped")
		}
	}()

	mux := http.NewServeMux()
	registerHealthAndAuth(mux)
	registerIndexRoutes(mux, jobRunner)
	registerRAGRoutes(mux, ret, runner, cfg)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	handler := hlog.NewHandler(logger)(
		hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
			logger.Info().Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Int("size", size).Dur("dur", dur).Msg("http")
		})(mux),
	)

	addr := fmt.Sprintf(":%d", cfg.Port)
	s := &http.Server{Addr: addr, Handler: handler}
	logger.Info().Str("addr", addr).Msg("reposearch server listening")
	log.Fatal(s.ListenAndServe())
}

func buildEmbedProvider(ctx context.Context, cfg config.Specification) (embedder.Provider, int, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		p := embedder.NewOpenAIProvider(embedder.OpenAIConfig{APIKey: cfg.APIKey, Model: cfg.EmbedModel})
		return p, p.Dim(), nil
	case "vertexai", "google":
		p, err := embedder.NewGeminiProvider(ctx, embedder.GeminiConfig{
			APIKey: cfg.APIKey, ProjectID: cfg.ProjectID, Location: cfg.Location, Model: cfg.EmbedModel, Dim: cfg.Dim,
		})
		if err != nil {
			return nil, 0, err
		}
		return p, p.Dim(), nil
	case "stub", "":
		p := embedder.NewLocalProvider()
		return p, p.Dim(), nil
	default:
		return nil, 0, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

func buildStreamer(ctx context.Context, cfg config.Specification) (llm.Streamer, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return llm.NewOpenAIStreamer(llm.OpenAIStreamerConfig{APIKey: cfg.APIKey, Model: cfg.SummaryModel}), nil
	case "vertexai", "google":
		return llm.NewGeminiStreamer(ctx, llm.GeminiStreamerConfig{
			APIKey: cfg.APIKey, ProjectID: cfg.ProjectID, Location: cfg.Location, Model: cfg.SummaryModel,
		})
	default:
		return llm.NewOpenAIStreamer(llm.OpenAIStreamerConfig{APIKey: cfg.APIKey, Model: cfg.SummaryModel}), nil
	}
}

// buildFetcher prefers the GitHub REST API when a token is configured,
// since it doesn't require a local git binary or disk checkout; with no
// token it falls back to an anonymous shallow clone, the teacher's
// cmd/indexer/main.go cloneToTemp path.
func buildFetcher(cfg config.Specification, log zerolog.Logger) fetcher.Fetcher {
	if cfg.GithubToken != "" {
		return fetcher.NewGitHubFetcher(cfg.GithubToken, log)
	}
	return fetcher.NewLocalCloneFetcher(cfg.GithubToken)
}

// buildJobBackend chooses Redis-backed queueing when QUEUE_URL is set,
// otherwise an in-memory queue suitable for single-replica or dev use.
// The job status store is always Postgres, so GET /index/status/{jobId}
// survives a restart and works across API replicas regardless of queue.
func buildJobBackend(cfg config.Specification, st *store.Store) (jobs.JobQueue, jobs.JobStore) {
	if cfg.QueueURL == "" {
		return jobs.NewMemoryQueue(64), st
	}
	opt, err := redis.ParseURL(cfg.QueueURL)
	if err != nil {
		log.Fatalf("invalid queue url: %v", err)
	}
	return jobs.NewRedisQueue(redis.NewClient(opt)), st
}

func registerHealthAndAuth(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	mux.HandleFunc("/auth/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]bool{"enabled": auth.IsAuthEnabled()})
	})

	if !auth.IsAuthEnabled() {
		return
	}

	mux.HandleFunc("/auth/github", func(w http.ResponseWriter, r *http.Request) {
		state := auth.GenerateState()
		http.SetCookie(w, &http.Cookie{Name: "oauth_state", Value: state, Path: "/", MaxAge: 600, HttpOnly: true, SameSite: http.SameSiteLaxMode})
		http.Redirect(w, r, auth.GetGithubLoginURL(state), http.StatusTemporaryRedirect)
	})

	mux.HandleFunc("/auth/callback", func(w http.ResponseWriter, r *http.Request) {
		code, state := r.URL.Query().Get("code"), r.URL.Query().Get("state")
		stateCookie, err := r.Cookie("oauth_state")
		if err != nil || stateCookie.Value != state || code == "" {
			http.Error(w, "invalid oauth callback", http.StatusBadRequest)
			return
		}
		accessToken, err := auth.ExchangeCodeForToken(code)
		if err != nil {
			http.Error(w, "failed to exchange code", http.StatusInternalServerError)
			return
		}
		user, err := auth.GetGithubUser(accessToken)
		if err != nil {
			http.Error(w, "failed to load user", http.StatusInternalServerError)
			return
		}
		token, err := auth.GenerateJWT(user)
		if err != nil {
			http.Error(w, "failed to sign token", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(auth.AuthResponse{User: *user, Token: token})
	})
}

type indexRequest struct {
	RepoID string `json:"repoId"`
}

func registerIndexRoutes(mux *http.ServeMux, runner *jobs.Runner) {
	mux.HandleFunc("/index", auth.OptionalAuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req indexRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RepoID == "" {
			http.Error(w, "repoId is required", http.StatusBadRequest)
			return
		}
		jobID, err := runner.EnqueueIndex(r.Context(), req.RepoID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"jobId": jobID})
	}))

	mux.HandleFunc("/index/status/", auth.OptionalAuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		jobID := strings.TrimPrefix(r.URL.Path, "/index/status/")
		if jobID == "" {
			http.NotFound(w, r)
			return
		}
		job, found, err := runner.StatusOf(r.Context(), jobID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if !found {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(job)
	}))
}

type ragQueryRequest struct {
	RepoID string `json:"repoId"`
	Query  string `json:"query"`
	TopK   int    `json:"topK"`
}

func registerRAGRoutes(mux *http.ServeMux, ret *retriever.Retriever, runner *pipeline.Runner, cfg config.Specification) {
	mux.HandleFunc("/rag/query", auth.OptionalAuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		var req ragQueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RepoID == "" || req.Query == "" {
			http.Error(w, "repoId and query are required", http.StatusBadRequest)
			return
		}
		topK := req.TopK
		if topK <= 0 {
			topK = cfg.Retrieval.TopK
		}

		res, err := ret.Retrieve(r.Context(), retriever.Query{RepoID: req.RepoID, Text: req.Query, TopK: topK})
		if err != nil {
			writeRAGError(w, err)
			return
		}
		assembled := ragcontext.Assemble(req.RepoID, req.Query, res.Chunks, cfg.Retrieval.ContextCharBudget)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			Chunks        any `json:"chunks"`
			CitationMap   any `json:"citationMap"`
			TokenEstimate int `json:"tokenEstimate"`
		}{res.Chunks, assembled.CitationMap, assembled.TokenEstimate})
	}))

	mux.HandleFunc("/rag/pipeline", auth.OptionalAuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		var req ragQueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RepoID == "" || req.Query == "" {
			http.Error(w, "repoId and query are required", http.StatusBadRequest)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		topK := req.TopK
		if topK <= 0 {
			topK = cfg.Retrieval.TopK
		}
		events := runner.Run(r.Context(), pipeline.Request{
			RepoID: req.RepoID, Query: req.Query, TopK: topK, CharBudget: cfg.Retrieval.ContextCharBudget,
		})
		for ev := range events {
			payload, err := json.Marshal(ev.Data)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, payload)
			flusher.Flush()
		}
	}))
}

func writeRAGError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
