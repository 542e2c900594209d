package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ShellExecutor shells out to the system git binary to read configuration files
// from local or freshly cloned repositories.
type ShellExecutor struct {
	// Git is the git binary to execute. Defaults to "git" when empty.
	Git string

	// BaseDir is the directory under which clones are created. When empty,
	// os.TempDir() is used.
	BaseDir string

	// RemoteURL constructs the git remote URL for the given owner/repo pair. When
	// unset, https://github.com/<owner>/<repo>.git is assumed.
	RemoteURL func(owner, repo string) string

	// Token, if provided, is embedded into HTTPS remotes using the
	// x-access-token format.
	Token string

	// RemoteName controls which remote Fetch reads from. Defaults to "origin".
	RemoteName string

	// NetworkRetries controls how many additional attempts should be made for network
	// oriented git commands (clone, fetch). When zero, a default of 2 retries is used.
	NetworkRetries int

	// NetworkRetryDelay controls the initial backoff delay between retries. When zero,
	// a default of 1 second is used. Backoff grows exponentially per attempt.
	NetworkRetryDelay time.Duration

	// NetworkTimeout bounds network commands that would otherwise inherit an unbounded
	// context. When zero, a default of 2 minutes is used.
	NetworkTimeout time.Duration
}

// NewShellExecutor returns an Executor backed by system git commands.
func NewShellExecutor() *ShellExecutor {
	return &ShellExecutor{}
}

func (e *ShellExecutor) gitBinary() string {
	if e.Git == "" {
		return "git"
	}
	return e.Git
}

func (e *ShellExecutor) remoteName() string {
	if e.RemoteName == "" {
		return "origin"
	}
	return e.RemoteName
}

func (e *ShellExecutor) remoteURL(owner, repo string) string {
	if e.RemoteURL != nil {
		return e.RemoteURL(owner, repo)
	}
	url := fmt.Sprintf("https://github.com/%s/%s.git", owner, repo)
	if e.Token == "" {
		return url
	}
	parts := strings.SplitN(strings.TrimPrefix(url, "https://"), "/", 2)
	if len(parts) != 2 {
		return url
	}
	return fmt.Sprintf("https://x-access-token:%s@%s/%s", e.Token, parts[0], parts[1])
}

func (e *ShellExecutor) cloneDir(repo string) (string, error) {
	base := e.BaseDir
	if base == "" {
		base = os.TempDir()
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", fmt.Errorf("create clone base: %w", err)
	}
	return os.MkdirTemp(base, fmt.Sprintf("renovate-config-%s-", strings.ReplaceAll(repo, " ", "_")))
}

// Clone performs a blobless, checkout-free clone of owner/repo. Servers that
// reject partial clones get a full clone instead.
func (e *ShellExecutor) Clone(ctx context.Context, owner, repo string) (string, error) {
	if owner == "" || repo == "" {
		return "", fmt.Errorf("owner and repo are required")
	}

	remoteURL := e.remoteURL(owner, repo)
	if remoteURL == "" {
		return "", fmt.Errorf("remote url could not be determined")
	}

	dir, err := e.cloneDir(repo)
	if err != nil {
		return "", err
	}

	if err := e.runGit(ctx, "clone", "--filter=blob:none", "--no-checkout", "--origin", e.remoteName(), remoteURL, dir); err != nil {
		_ = os.RemoveAll(dir)
		if !shouldRetryWithoutFilter(err) {
			return "", fmt.Errorf("git clone: %w", err)
		}

		dir, err = e.cloneDir(repo)
		if err != nil {
			return "", err
		}
		if err := e.runGit(ctx, "clone", "--no-checkout", "--origin", e.remoteName(), remoteURL, dir); err != nil {
			_ = os.RemoveAll(dir)
			return "", fmt.Errorf("git clone: %w", err)
		}
	}

	return dir, nil
}

// Fetch retrieves ref from the configured remote. A ref the remote does not
// advertise is not an error; Show falls back to whatever is available locally.
func (e *ShellExecutor) Fetch(ctx context.Context, dir, ref string) error {
	if ref == "" {
		return nil
	}
	err := e.runGit(ctx, "-C", dir, "fetch", "--depth=1", e.remoteName(), ref)
	if err != nil && !isMissingRemoteBranch(err) {
		return fmt.Errorf("git fetch %s: %w", ref, err)
	}
	return nil
}

// Show returns the blob recorded for path at ref. An empty ref reads HEAD. For
// refs that only exist on the remote, FETCH_HEAD and <remote>/<ref> are tried.
func (e *ShellExecutor) Show(ctx context.Context, dir, ref, path string) ([]byte, error) {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}

	candidates := []string{ref}
	if ref == "" {
		candidates = []string{"HEAD"}
	} else if !strings.HasPrefix(ref, e.remoteName()+"/") {
		candidates = append(candidates, e.remoteName()+"/"+ref, "FETCH_HEAD")
	}

	var lastErr error
	for _, candidate := range candidates {
		var out bytes.Buffer
		err := e.runGitTo(ctx, &out, "-C", dir, "show", fmt.Sprintf("%s:%s", candidate, path))
		if err == nil {
			return out.Bytes(), nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if isMissingPath(err) {
			return nil, fmt.Errorf("%s:%s: %w", candidate, path, ErrPathNotFound)
		}
		lastErr = err
	}

	return nil, fmt.Errorf("git show %s:%s: %w", ref, path, lastErr)
}

func (e *ShellExecutor) runGit(ctx context.Context, args ...string) error {
	return e.runGitTo(ctx, nil, args...)
}

// runGitTo runs git, retrying network commands with exponential backoff. When
// stdout is non-nil it receives the command's standard output; standard error
// is always captured for GitError.
func (e *ShellExecutor) runGitTo(ctx context.Context, stdout io.Writer, args ...string) error {
	primary := primaryGitCommand(args)
	isNetwork := isNetworkCommand(primary)

	retries := 0
	if isNetwork {
		retries = e.networkRetriesValue()
	}

	delay := e.networkRetryDelayValue()
	var lastErr error

	for attempt := 0; attempt <= retries; attempt++ {
		attemptCtx, cancel := e.applyNetworkTimeout(ctx, isNetwork)
		err := e.runGitOnce(attemptCtx, stdout, args...)
		cancel()

		if err == nil {
			return nil
		}
		lastErr = err

		if !isNetwork {
			break
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
		if isMissingRemoteBranch(err) {
			break
		}
		if attempt == retries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if delay < time.Second {
			delay = time.Second
		}
		delay *= 2
	}

	return lastErr
}

func (e *ShellExecutor) runGitOnce(ctx context.Context, stdout io.Writer, args ...string) error {
	cmd := exec.CommandContext(ctx, e.gitBinary(), args...)
	setProcessGroup(cmd)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	var output bytes.Buffer
	cmd.Stderr = &output
	if stdout != nil {
		cmd.Stdout = stdout
	} else {
		cmd.Stdout = &output
	}

	if err := cmd.Start(); err != nil {
		return &GitError{Args: redactArgs(args), Output: output.String(), Err: err}
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		terminateProcessGroup(cmd)
		<-done
		return ctx.Err()
	case err := <-done:
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return &GitError{Args: redactArgs(args), Output: output.String(), Err: err}
		}
	}

	return nil
}

func primaryGitCommand(args []string) string {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			if i+1 < len(args) {
				return args[i+1]
			}
			return ""
		}
		if strings.HasPrefix(arg, "-") {
			switch arg {
			case "-C", "--git-dir", "-c":
				i++
			}
			continue
		}
		return arg
	}
	return ""
}

func isNetworkCommand(cmd string) bool {
	switch cmd {
	case "clone", "fetch", "pull", "remote":
		return true
	default:
		return false
	}
}

func (e *ShellExecutor) networkRetriesValue() int {
	if e.NetworkRetries < 0 {
		return 0
	}
	if e.NetworkRetries == 0 {
		return 2
	}
	return e.NetworkRetries
}

func (e *ShellExecutor) networkRetryDelayValue() time.Duration {
	if e.NetworkRetryDelay <= 0 {
		return time.Second
	}
	return e.NetworkRetryDelay
}

func (e *ShellExecutor) networkTimeoutValue() time.Duration {
	if e.NetworkTimeout <= 0 {
		return 2 * time.Minute
	}
	return e.NetworkTimeout
}

func (e *ShellExecutor) applyNetworkTimeout(ctx context.Context, network bool) (context.Context, context.CancelFunc) {
	if !network {
		return ctx, func() {}
	}
	if deadline, ok := ctx.Deadline(); ok && !deadline.IsZero() {
		return ctx, func() {}
	}
	timeout := e.networkTimeoutValue()
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// GitError wraps failures when invoking the git binary.
type GitError struct {
	Args   []string
	Output string
	Err    error
}

func (e *GitError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("git %s: %v\n%s", strings.Join(e.Args, " "), e.Err, e.Output)
}

func (e *GitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// redactArgs hides credentials embedded in remote URLs.
func redactArgs(args []string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		if at := strings.Index(arg, "@"); at > 0 && strings.Contains(arg[:at], "://") {
			scheme := arg[:strings.Index(arg, "://")+3]
			out[i] = scheme + "***" + arg[at:]
			continue
		}
		out[i] = arg
	}
	return out
}

func isMissingRemoteBranch(err error) bool {
	var gitErr *GitError
	if !errors.As(err, &gitErr) {
		return false
	}
	out := gitErr.Output
	return strings.Contains(out, "couldn't find remote ref") ||
		strings.Contains(out, "invalid refspec") ||
		strings.Contains(out, "unknown revision")
}

func isMissingPath(err error) bool {
	var gitErr *GitError
	if !errors.As(err, &gitErr) {
		return false
	}
	out := gitErr.Output
	return strings.Contains(out, "does not exist in") ||
		strings.Contains(out, "exists on disk, but not in")
}

func shouldRetryWithoutFilter(err error) bool {
	var gitErr *GitError
	if !errors.As(err, &gitErr) {
		return false
	}

	output := strings.ToLower(gitErr.Output)
	return strings.Contains(output, "filter") || strings.Contains(output, "partial clone")
}
