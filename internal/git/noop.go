package git

import (
	"context"
	"fmt"
)

// NewNoopExecutor returns an Executor that performs no git operations. Fetch
// succeeds and Show reports every path as missing, which suits dry runs and
// local-only validation.
func NewNoopExecutor() Executor {
	return &noopExecutor{}
}

type noopExecutor struct{}

func (e *noopExecutor) Clone(ctx context.Context, owner, repo string) (string, error) {
	return "", fmt.Errorf("noop executor cannot clone %s/%s", owner, repo)
}

func (e *noopExecutor) Fetch(ctx context.Context, dir, ref string) error {
	return nil
}

func (e *noopExecutor) Show(ctx context.Context, dir, ref, path string) ([]byte, error) {
	return nil, fmt.Errorf("%s:%s: %w", ref, path, ErrPathNotFound)
}
