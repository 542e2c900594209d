package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rancher/renovate-config/internal/config"
	"github.com/rancher/renovate-config/internal/git"
)

// GitReader reads configuration as recorded at a git ref.
type GitReader struct {
	Executor git.Executor
	// Fetch updates the ref from the remote before reading it.
	Fetch  bool
	Logger *slog.Logger
}

// Read returns the configuration document at ref.
func (r *GitReader) Read(ctx context.Context, dir, ref, path string) (config.Source, error) {
	if r.Executor == nil {
		return config.Source{}, fmt.Errorf("git executor is required")
	}

	if r.Fetch {
		if err := r.Executor.Fetch(ctx, dir, ref); err != nil {
			return config.Source{}, err
		}
	}

	paths := []string{strings.TrimPrefix(path, "/")}
	if path == "" {
		paths = Candidates
	}

	for _, p := range paths {
		data, err := r.Executor.Show(ctx, dir, ref, p)
		if err != nil {
			if errors.Is(err, git.ErrPathNotFound) && path == "" {
				continue
			}
			return config.Source{}, err
		}
		if r.Logger != nil {
			r.Logger.Debug("read configuration from git", "dir", dir, "ref", ref, "path", p)
		}
		return remoteSource(displayName(dir, ref, p), p, data)
	}

	return config.Source{}, fmt.Errorf("%s: %w", displayName(dir, ref, "*"), ErrNoConfig)
}
