package fetcher

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/seanblong/reposearch/internal/errs"
)

func TestGitHubFetcherResolvesCommitBeforeEnumeratingTree(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"default_branch": "main"})
	})
	mux.HandleFunc("/repos/acme/widgets/git/ref/heads/main", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"object": map[string]string{"sha": "deadbeef"}})
	})
	mux.HandleFunc("/repos/acme/widgets/git/trees/deadbeef", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"tree": []map[string]any{
				{"path": "main.go", "type": "blob", "sha": "sha1", "size": 10},
				{"path": "src", "type": "tree", "sha": "sha2", "size": 0},
			},
		})
	})
	mux.HandleFunc("/repos/acme/widgets/git/blobs/sha1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"content":  base64.StdEncoding.EncodeToString([]byte("package main")),
			"encoding": "base64",
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewGitHubFetcher("", zerolog.Nop())
	f.baseURL = srv.URL

	res, err := f.Fetch(context.Background(), "acme", "widgets")
	require.NoError(t, err)
	require.Equal(t, "deadbeef", res.CommitHash)
	require.Equal(t, "main", res.DefaultBranch)
	require.Len(t, res.Files, 1)
	require.Equal(t, "main.go", res.Files[0].Path)
	require.Equal(t, "package main", res.Files[0].Content)
}

func TestGitHubFetcherMapsNotFoundStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewGitHubFetcher("", zerolog.Nop())
	f.baseURL = srv.URL

	_, err := f.Fetch(context.Background(), "acme", "missing")
	require.Error(t, err)
}

func TestGitHubFetcherMaps403WithoutExhaustedQuotaToUnauthorized(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/forbidden", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewGitHubFetcher("", zerolog.Nop())
	f.baseURL = srv.URL

	_, err := f.Fetch(context.Background(), "acme", "forbidden")
	require.Error(t, err)
	require.Equal(t, errs.Unauthorized, errs.KindOf(err))
}

func TestGitHubFetcherMaps403WithExhaustedQuotaToRateLimited(t *testing.T) {
	reset := time.Now().Add(45 * time.Second).Unix()
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/throttled", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))
		w.WriteHeader(http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewGitHubFetcher("", zerolog.Nop())
	f.baseURL = srv.URL

	_, err := f.Fetch(context.Background(), "acme", "throttled")
	require.Error(t, err)
	require.Equal(t, errs.RateLimited, errs.KindOf(err))
}

func TestGitHubFetcherMaps403RetryAfterTakesPrecedenceOverRateLimitReset(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/throttled2", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewGitHubFetcher("", zerolog.Nop())
	f.baseURL = srv.URL

	_, err := f.Fetch(context.Background(), "acme", "throttled2")
	require.Error(t, err)
	var ferr *errs.Error
	require.ErrorAs(t, err, &ferr)
	require.Equal(t, 7, ferr.RetryAfter)
}
