// Package gitsource keeps a local checkout of a git-backed card source up
// to date so ingestion can walk it like any other directory.
package gitsource

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// IsGitURL reports whether a source path looks like a git remote rather
// than a local directory.
func IsGitURL(path string) bool {
	return strings.HasSuffix(path, ".git") ||
		strings.HasPrefix(path, "git@") ||
		strings.HasPrefix(path, "https://") ||
		strings.HasPrefix(path, "http://")
}

// LocalPath maps a git remote URL to its checkout directory under baseDir,
// keyed by host and repository path. SSH-style user@host:path remotes are
// handled alongside http(s) URLs.
func LocalPath(baseDir, repoURL string) (string, error) {
	parsed, err := url.Parse(repoURL)
	if err == nil && (parsed.Scheme == "https" || parsed.Scheme == "http") {
		repoPath := strings.TrimSuffix(parsed.Path, ".git")
		return filepath.Join(baseDir, parsed.Host, repoPath), nil
	}

	if host, repoPath, ok := splitSCPLike(repoURL); ok {
		return filepath.Join(baseDir, host, repoPath), nil
	}
	return "", fmt.Errorf("could not parse git URL: %s", repoURL)
}

func splitSCPLike(repoURL string) (host, repoPath string, ok bool) {
	userHost, repoPath, found := strings.Cut(repoURL, ":")
	if !found {
		return "", "", false
	}
	_, host, found = strings.Cut(userHost, "@")
	if !found {
		return "", "", false
	}
	return host, strings.TrimSuffix(repoPath, ".git"), true
}

// Sync clones the repository into localPath if it is not there yet, or
// pulls the latest changes if it is.
func Sync(repoURL, localPath string) error {
	_, err := os.Stat(localPath)
	switch {
	case os.IsNotExist(err):
		slog.Info("Cloning card source", "url", repoURL, "path", localPath)
		if _, err := git.PlainClone(localPath, false, &git.CloneOptions{URL: repoURL}); err != nil {
			return fmt.Errorf("failed to clone repo %s: %w", repoURL, err)
		}
	case err == nil:
		slog.Info("Pulling card source", "path", localPath)
		repo, err := git.PlainOpen(localPath)
		if err != nil {
			return fmt.Errorf("failed to open existing repo at %s: %w", localPath, err)
		}
		worktree, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("failed to get worktree for repo at %s: %w", localPath, err)
		}
		if err := worktree.Pull(&git.PullOptions{RemoteName: "origin"}); err != nil && err != git.NoErrAlreadyUpToDate {
			return fmt.Errorf("failed to pull changes for repo at %s: %w", localPath, err)
		}
	default:
		return fmt.Errorf("error checking path %s: %w", localPath, err)
	}
	return nil
}
