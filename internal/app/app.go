package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rancher/renovate-config/internal/config"
	"github.com/rancher/renovate-config/internal/event"
	"github.com/rancher/renovate-config/internal/git"
	gh "github.com/rancher/renovate-config/internal/github"
	"github.com/rancher/renovate-config/internal/source"
)

// Runner resolves, validates and reports on a Renovate configuration document.
type Runner struct {
	cfg       Config
	log       *slog.Logger
	ghFactory gh.Factory
	gitExec   git.Executor // only set for testing via NewRunnerWithDeps
	env       config.EnvLookup
}

// NewRunner constructs a Runner with the supplied configuration.
func NewRunner(cfg Config) (*Runner, error) {
	logger, err := NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	return &Runner{
		cfg:       cfg,
		log:       logger,
		ghFactory: githubFactory(cfg),
		env:       config.OSEnv{},
	}, nil
}

// githubFactory only builds API clients for the github source.
func githubFactory(cfg Config) gh.Factory {
	if cfg.Source != SourceGitHub {
		return gh.NewNoopFactory()
	}
	return gh.NewRESTFactory(cfg.GitHubBaseURL, cfg.GitHubUploadURL)
}

// NewRunnerWithDeps constructs a Runner with injected dependencies for testing.
func NewRunnerWithDeps(cfg Config, log *slog.Logger, ghFactory gh.Factory, gitExec git.Executor) *Runner {
	return &Runner{cfg: cfg, log: log, ghFactory: ghFactory, gitExec: gitExec, env: config.OSEnv{}}
}

// Result describes the outcome of a single validation run.
type Result struct {
	Source     string
	Repository string
	Ref        string
	Document   *config.Document
	Err        error
}

// Valid reports whether the document loaded cleanly.
func (r Result) Valid() bool {
	return r.Err == nil && r.Document != nil
}

// Run executes the application using the provided context.
func (r *Runner) Run(ctx context.Context) error {
	result := r.Validate(ctx)

	if err := r.writeStepSummary(result); err != nil && r.log != nil {
		r.log.Warn("failed to write step summary", "error", err)
	}

	if err := r.writeGitHubOutputs(result); err != nil && r.log != nil {
		r.log.Warn("failed to write action outputs", "error", err)
	}

	return result.Err
}

// Validate resolves the configured source and loads it. Errors are carried
// in the Result rather than returned so they can be reported.
func (r *Runner) Validate(ctx context.Context) Result {
	repository, ref := r.target()
	result := Result{Repository: repository, Ref: ref}

	if r.log != nil {
		r.log.Info("validating renovate configuration",
			"source", r.cfg.Source,
			"repository", repository,
			"ref", ref,
			"path", r.cfg.ConfigPath,
			"strict", r.cfg.Strict)
	}

	src, cleanup, err := r.resolveSource(ctx, repository, ref)
	defer cleanup()
	if err != nil {
		result.Err = fmt.Errorf("resolve configuration source: %w", err)
		r.logFailure(result)
		return result
	}
	result.Source = src.Name

	loader := config.Loader{
		Env:                   r.env,
		Logger:                r.log,
		Strict:                r.cfg.Strict,
		AllowPlaintextSecrets: r.cfg.AllowPlaintextSecrets,
	}
	doc, err := loader.Load(src)
	if err != nil {
		result.Err = err
		r.logFailure(result)
		return result
	}
	result.Document = doc

	if r.log != nil {
		r.log.Info("configuration is valid",
			"source", src.Name,
			"platform", doc.Platform(),
			"enabled_managers", doc.EnabledManagers(),
			"host_rules", len(doc.HostRules()),
			"package_rules", len(doc.PackageRules()),
			"duplicate_keys", len(doc.Duplicates()))
	}

	return result
}

func (r *Runner) logFailure(result Result) {
	if r.log == nil {
		return
	}
	attrs := []any{"source", result.Source, "error", result.Err}

	var (
		parseErr      *config.ParseError
		schemaErr     *config.SchemaError
		validationErr *config.ValidationError
		credErr       *config.CredentialResolutionError
	)
	switch {
	case errors.As(result.Err, &parseErr):
		attrs = append(attrs, "kind", "parse", "line", parseErr.Line)
	case errors.As(result.Err, &schemaErr):
		attrs = append(attrs, "kind", "schema", "field", schemaErr.Field)
	case errors.As(result.Err, &validationErr):
		attrs = append(attrs, "kind", "validation", "field", validationErr.Field)
	case errors.As(result.Err, &credErr):
		attrs = append(attrs, "kind", "credential", "field", credErr.Field, "variable", credErr.Var)
	}
	r.log.Error("configuration is invalid", attrs...)
}

// target picks the repository and ref from inputs, falling back to the
// triggering workflow event.
func (r *Runner) target() (string, string) {
	repository := r.cfg.Repository
	ref := r.cfg.Ref
	if repository != "" && ref != "" {
		return repository, ref
	}

	eventName := strings.TrimSpace(os.Getenv("GITHUB_EVENT_NAME"))
	eventPath := strings.TrimSpace(os.Getenv("GITHUB_EVENT_PATH"))
	if eventName == "" || eventPath == "" {
		return repository, ref
	}

	payload, err := event.ParseFile(eventName, eventPath)
	if err != nil {
		if r.log != nil {
			r.log.Debug("ignoring workflow event", "event_name", eventName, "error", err)
		}
		return repository, ref
	}

	if repository == "" {
		repository = payload.Repository.FullName()
	}
	if ref == "" {
		ref = payload.Ref
	}
	return repository, ref
}

func (r *Runner) resolveSource(ctx context.Context, repository, ref string) (config.Source, func(), error) {
	noop := func() {}

	switch r.cfg.Source {
	case SourceGitHub:
		if repository == "" {
			return config.Source{}, noop, fmt.Errorf("repository is required for the github source")
		}
		client, err := r.ghFactory.New(ctx, r.cfg.GitHubToken)
		if err != nil {
			return config.Source{}, noop, fmt.Errorf("initialize github client: %w", err)
		}
		reader := &source.GitHubReader{Client: client, Logger: r.log}
		src, err := reader.Read(ctx, repository, ref, r.cfg.ConfigPath)
		return src, noop, err

	case SourceGit:
		exec := r.gitExec
		if exec == nil {
			exec = r.buildGitExecutor()
		}

		dir := r.cfg.Workspace
		cleanup := noop
		if dir == "" {
			owner, name, err := source.SplitRepository(repository)
			if err != nil {
				return config.Source{}, noop, fmt.Errorf("a workspace or repository is required for the git source: %w", err)
			}
			cloned, err := exec.Clone(ctx, owner, name)
			if err != nil {
				return config.Source{}, noop, err
			}
			dir = cloned
			cleanup = func() { _ = os.RemoveAll(cloned) }
		}

		reader := &source.GitReader{Executor: exec, Fetch: r.cfg.Fetch, Logger: r.log}
		src, err := reader.Read(ctx, dir, ref, r.cfg.ConfigPath)
		return src, cleanup, err

	default:
		path := r.cfg.ConfigPath
		if !filepath.IsAbs(path) && r.cfg.Workspace != "" {
			path = filepath.Join(r.cfg.Workspace, path)
		}
		src, err := source.Resolve(path)
		return src, noop, err
	}
}

func (r *Runner) buildGitExecutor() git.Executor {
	exec := git.NewShellExecutor()
	exec.Token = r.cfg.GitHubToken

	if remote := remoteURLBuilder(r.cfg); remote != nil {
		exec.RemoteURL = remote
	}

	return exec
}

func remoteURLBuilder(cfg Config) func(owner, repo string) string {
	base := strings.TrimSpace(cfg.GitHubBaseURL)
	if base == "" {
		return nil
	}

	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil
	}

	host := parsed.Host
	if cfg.GitHubToken != "" {
		host = fmt.Sprintf("x-access-token:%s@%s", cfg.GitHubToken, parsed.Host)
	}
	root := strings.TrimRight(fmt.Sprintf("%s://%s", parsed.Scheme, host), "/")

	return func(owner, repo string) string {
		return fmt.Sprintf("%s/%s/%s.git", root, owner, repo)
	}
}
