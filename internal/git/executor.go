package git

import (
	"context"
	"errors"
)

// Executor reads repository configuration through git.
type Executor interface {
	// Clone creates a checkout of owner/repo and returns its directory. The
	// caller removes the directory when done.
	Clone(ctx context.Context, owner, repo string) (string, error)
	// Fetch updates ref from the remote in the repository at dir.
	Fetch(ctx context.Context, dir, ref string) error
	// Show returns the contents of path as recorded at ref.
	Show(ctx context.Context, dir, ref, path string) ([]byte, error)
}

// ErrPathNotFound indicates the path does not exist at the requested ref.
var ErrPathNotFound = errors.New("git: path not found")
