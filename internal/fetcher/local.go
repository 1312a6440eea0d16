package fetcher

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/karrick/godirwalk"

	"github.com/seanblong/reposearch/internal/errs"
)

// LocalCloneFetcher clones a repository to a temporary directory with a
// shallow checkout and walks it with godirwalk, the exact pattern the
// teacher's cmd/indexer/main.go cloneToTemp + internal/indexer.go Walker
// already use; this is that pair adapted into the Fetcher interface so the
// job runner can use either backend interchangeably.
type LocalCloneFetcher struct {
	token string
}

// NewLocalCloneFetcher creates a fetcher that shells out to `git clone`.
func NewLocalCloneFetcher(token string) *LocalCloneFetcher {
	return &LocalCloneFetcher{token: token}
}

func (f *LocalCloneFetcher) Fetch(ctx context.Context, owner, name string) (Result, error) {
	repoURL := fmt.Sprintf("https://github.com/%s/%s.git", owner, name)

	dir, err := f.cloneToTemp(ctx, repoURL, "")
	if err != nil {
		return Result{}, err
	}
	defer os.RemoveAll(dir)

	commitHash, err := f.headCommit(ctx, dir)
	if err != nil {
		return Result{}, err
	}
	branch, err := f.currentBranch(ctx, dir)
	if err != nil {
		return Result{}, err
	}

	var files []File
	walkErr := godirwalk.Walk(dir, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				if de.Name() == ".git" {
					return filepath.SkipDir
				}
				return nil
			}
			b, err := os.ReadFile(path)
			if err != nil {
				return nil // unreadable file, dropped rather than failing the walk
			}
			rel, _ := filepath.Rel(dir, path)
			files = append(files, File{Path: rel, Content: string(b), SizeBytes: int64(len(b))})
			return nil
		},
	})
	if walkErr != nil {
		return Result{}, errs.Wrap(errs.Internal, "walk cloned repository", walkErr)
	}

	return Result{CommitHash: commitHash, DefaultBranch: branch, Files: files}, nil
}

func (f *LocalCloneFetcher) cloneToTemp(ctx context.Context, repoURL, ref string) (string, error) {
	dir, err := os.MkdirTemp("", "reposearch-clone-*")
	if err != nil {
		return "", err
	}

	url := repoURL
	if f.token != "" && strings.HasPrefix(url, "https://") {
		url = "https://" + f.token + ":x-oauth-basic@" + strings.TrimPrefix(url, "https://")
	}

	args := []string{"clone", "--depth", "1"}
	if ref != "" {
		args = append(args, "--branch", ref)
	}
	args = append(args, url, dir)

	cmd := exec.CommandContext(ctx, "git", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.RemoveAll(dir)
		return "", errs.Wrap(errs.UpstreamUnavailable, "git clone failed: "+string(out), err)
	}
	return dir, nil
}

func (f *LocalCloneFetcher) headCommit(ctx context.Context, dir string) (string, error) {
	out, err := exec.CommandContext(ctx, "git", "-C", dir, "rev-parse", "HEAD").Output()
	if err != nil {
		return "", errs.Wrap(errs.Internal, "resolve head commit", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (f *LocalCloneFetcher) currentBranch(ctx context.Context, dir string) (string, error) {
	out, err := exec.CommandContext(ctx, "git", "-C", dir, "rev-parse", "--abbrev-ref", "HEAD").Output()
	if err != nil {
		return "", errs.Wrap(errs.Internal, "resolve current branch", err)
	}
	return strings.TrimSpace(string(out)), nil
}
