package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rancher/renovate-config/internal/config"
	gh "github.com/rancher/renovate-config/internal/github"
)

// GitHubReader fetches configuration through the GitHub contents API.
type GitHubReader struct {
	Client gh.Client

	// Retries controls how many additional attempts are made for retryable API
	// failures. When zero, a default of 3 retries is used; negative disables.
	Retries int

	// RetryDelay is the initial backoff between attempts. When zero, a default
	// of 1 second is used. Backoff doubles per attempt.
	RetryDelay time.Duration

	Logger *slog.Logger
}

// Read fetches the configuration document. An empty path tries Candidates
// in order and returns the first that exists.
func (r *GitHubReader) Read(ctx context.Context, repo, ref, path string) (config.Source, error) {
	if r.Client == nil {
		return config.Source{}, fmt.Errorf("github client is required")
	}
	owner, name, err := SplitRepository(repo)
	if err != nil {
		return config.Source{}, err
	}

	paths := []string{strings.TrimPrefix(path, "/")}
	if path == "" {
		paths = Candidates
	}

	for _, p := range paths {
		data, err := r.fetch(ctx, owner, name, ref, p)
		if err != nil {
			if errors.Is(err, gh.ErrFileNotFound) && path == "" {
				continue
			}
			return config.Source{}, err
		}
		if r.Logger != nil {
			r.Logger.Debug("fetched configuration from github", "repository", repo, "ref", ref, "path", p)
		}
		return remoteSource(displayName(repo, ref, p), p, data)
	}

	return config.Source{}, fmt.Errorf("%s: %w", displayName(repo, ref, "*"), ErrNoConfig)
}

func (r *GitHubReader) fetch(ctx context.Context, owner, name, ref, path string) ([]byte, error) {
	retries := r.retries()
	delay := r.retryDelay()

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		data, err := r.Client.GetFileContents(ctx, owner, name, path, ref)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if !gh.IsRetryable(err) || attempt == retries {
			break
		}
		if r.Logger != nil {
			r.Logger.Warn("retrying github request", "path", path, "attempt", attempt+1, "delay", delay, "error", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return nil, lastErr
}

func (r *GitHubReader) retries() int {
	if r.Retries < 0 {
		return 0
	}
	if r.Retries == 0 {
		return 3
	}
	return r.Retries
}

func (r *GitHubReader) retryDelay() time.Duration {
	if r.RetryDelay <= 0 {
		return time.Second
	}
	return r.RetryDelay
}

// SplitRepository splits "owner/name" into its parts.
func SplitRepository(repo string) (string, string, error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(repo), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("repository must be in owner/name form, got %q", repo)
	}
	return owner, name, nil
}
