// Package fetcher resolves a repository's default branch and head commit,
// then enumerates its blob tree at that commit so every downstream stage
// shares one snapshot.
package fetcher

import (
	"context"

	"github.com/seanblong/reposearch/internal/errs"
)

// File is one entry in the fetched tree.
type File struct {
	Path      string
	Content   string
	SizeBytes int64
}

// Result is the fetch() contract's output.
type Result struct {
	CommitHash    string
	DefaultBranch string
	Files         []File
}

// Fetcher resolves a repository snapshot and its file contents.
type Fetcher interface {
	Fetch(ctx context.Context, owner, name string) (Result, error)
}

// classifyHTTPStatus maps a git-host HTTP status to a closed error kind. A
// 403 with an exhausted rate-limit quota (rateLimitExhausted) is RateLimited
// rather than Unauthorized: the credentials are fine, the quota isn't.
func classifyHTTPStatus(status int, retryAfterSeconds int, rateLimitExhausted bool) error {
	switch {
	case status == 404:
		return errs.New(errs.NotFound, "repository not found")
	case status == 403 && rateLimitExhausted:
		return errs.RateLimit("git host rate limit exceeded", retryAfterSeconds)
	case status == 401 || status == 403:
		return errs.New(errs.Unauthorized, "git host rejected credentials")
	case status == 429:
		return errs.RateLimit("git host rate limit exceeded", retryAfterSeconds)
	default:
		return errs.New(errs.UpstreamUnavailable, "git host request failed")
	}
}
