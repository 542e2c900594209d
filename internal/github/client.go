package gh

import (
	"context"
	"errors"
)

// Client exposes the GitHub operations needed to fetch repository configuration.
type Client interface {
	// GetFileContents returns the decoded contents of path at ref. An empty ref
	// selects the repository's default branch.
	GetFileContents(ctx context.Context, owner, repo, path, ref string) ([]byte, error)
}

// Factory builds concrete GitHub clients (e.g., REST-backed).
type Factory interface {
	New(ctx context.Context, token string) (Client, error)
}

// ErrFileNotFound indicates the requested file does not exist at the ref.
var ErrFileNotFound = errors.New("github: file not found")

// retryableError marks an error that may succeed if the operation is retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	if e == nil || e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// MarkRetryable wraps err so that IsRetryable reports true for it.
func MarkRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// IsRetryable reports whether the supplied error resulted from a retryable GitHub
// API failure (for example, a transient network problem or rate-limited request).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var target *retryableError
	return errors.As(err, &target)
}
