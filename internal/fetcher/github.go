package fetcher

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/rs/zerolog"
	"github.com/seanblong/reposearch/internal/errs"
)

// maxFanOut bounds concurrent per-file content downloads within one job
// to at most 8 in flight.
const maxFanOut = 8

// GitHubFetcher fetches a repository snapshot through the GitHub REST API,
// grounded on the teacher's cmd/indexer/main.go cloneToTemp, which
// authenticates the same bearer token against a git host but shells out to
// `git clone` rather than calling the REST API directly; this generalizes
// that token-auth pattern into an API-driven fetch that doesn't require a
// local git binary or disk checkout.
type GitHubFetcher struct {
	token   string
	http    *http.Client
	baseURL string
	log     zerolog.Logger
}

// NewGitHubFetcher creates a fetcher authenticated with a personal access
// token (or empty for unauthenticated, rate-limited access).
func NewGitHubFetcher(token string, log zerolog.Logger) *GitHubFetcher {
	return &GitHubFetcher{
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: "https://api.github.com",
		log:     log,
	}
}

type repoMeta struct {
	DefaultBranch string `json:"default_branch"`
}

type refObject struct {
	Object struct {
		SHA string `json:"sha"`
	} `json:"object"`
}

type treeResponse struct {
	Tree []struct {
		Path string `json:"path"`
		Type string `json:"type"`
		SHA  string `json:"sha"`
		Size int64  `json:"size"`
	} `json:"tree"`
	Truncated bool `json:"truncated"`
}

type blobResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

func (f *GitHubFetcher) Fetch(ctx context.Context, owner, name string) (Result, error) {
	meta, err := f.repoMetadata(ctx, owner, name)
	if err != nil {
		return Result{}, err
	}

	commitHash, err := f.headCommit(ctx, owner, name, meta.DefaultBranch)
	if err != nil {
		return Result{}, err
	}

	tree, err := f.fetchTree(ctx, owner, name, commitHash)
	if err != nil {
		return Result{}, err
	}

	files, err := f.fetchBlobs(ctx, owner, name, tree)
	if err != nil {
		return Result{}, err
	}

	return Result{CommitHash: commitHash, DefaultBranch: meta.DefaultBranch, Files: files}, nil
}

func (f *GitHubFetcher) repoMetadata(ctx context.Context, owner, name string) (repoMeta, error) {
	var m repoMeta
	url := fmt.Sprintf("%s/repos/%s/%s", f.baseURL, owner, name)
	err := f.getJSON(ctx, url, &m)
	return m, err
}

func (f *GitHubFetcher) headCommit(ctx context.Context, owner, name, branch string) (string, error) {
	var ref refObject
	url := fmt.Sprintf("%s/repos/%s/%s/git/ref/heads/%s", f.baseURL, owner, name, branch)
	if err := f.getJSON(ctx, url, &ref); err != nil {
		return "", err
	}
	if ref.Object.SHA == "" {
		return "", errs.New(errs.NotFound, "branch has no head commit")
	}
	return ref.Object.SHA, nil
}

func (f *GitHubFetcher) fetchTree(ctx context.Context, owner, name, commitHash string) (treeResponse, error) {
	var t treeResponse
	url := fmt.Sprintf("%s/repos/%s/%s/git/trees/%s?recursive=1", f.baseURL, owner, name, commitHash)
	if err := f.getJSON(ctx, url, &t); err != nil {
		return treeResponse{}, err
	}
	return t, nil
}

// fetchBlobs downloads file content with bounded fan-out; a file whose
// individual fetch fails is dropped rather than failing the whole run.
func (f *GitHubFetcher) fetchBlobs(ctx context.Context, owner, name string, tree treeResponse) ([]File, error) {
	sem := semaphore.NewWeighted(maxFanOut)
	g, ctx := errgroup.WithContext(ctx)

	results := make([]*File, len(tree.Tree))
	for i, entry := range tree.Tree {
		if entry.Type != "blob" {
			continue
		}
		i, entry := i, entry
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			content, err := f.fetchBlobContent(ctx, owner, name, entry.SHA)
			if err != nil {
				f.log.Warn().Err(err).Str("path", entry.Path).Msg("dropping file: blob fetch failed")
				return nil
			}
			results[i] = &File{Path: entry.Path, Content: content, SizeBytes: entry.Size}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var files []File
	for _, r := range results {
		if r != nil {
			files = append(files, *r)
		}
	}
	return files, nil
}

func (f *GitHubFetcher) fetchBlobContent(ctx context.Context, owner, name, sha string) (string, error) {
	var b blobResponse
	url := fmt.Sprintf("%s/repos/%s/%s/git/blobs/%s", f.baseURL, owner, name, sha)
	if err := f.getJSON(ctx, url, &b); err != nil {
		return "", err
	}
	if b.Encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(b.Content)
		if err != nil {
			return "", err
		}
		return string(decoded), nil
	}
	return b.Content, nil
}

// rateLimitInfo reports whether GitHub's quota is exhausted
// (X-RateLimit-Remaining: 0) and a retry-after hint in seconds: Retry-After
// takes precedence when present, otherwise X-RateLimit-Reset (a unix
// timestamp) is converted to a duration from now.
func rateLimitInfo(h http.Header) (retryAfterSeconds int, exhausted bool) {
	exhausted = h.Get("X-RateLimit-Remaining") == "0"

	if v, err := strconv.Atoi(h.Get("Retry-After")); err == nil {
		return v, exhausted
	}
	if v, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		if d := time.Until(time.Unix(v, 0)); d > 0 {
			return int(d.Seconds()), exhausted
		}
	}
	return 0, exhausted
}

func (f *GitHubFetcher) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return errs.Wrap(errs.UpstreamUnavailable, "git host request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		retryAfter, exhausted := rateLimitInfo(resp.Header)
		return classifyHTTPStatus(resp.StatusCode, retryAfter, exhausted)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
