package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
	defaultSource    = SourceFile
)

// Source modes select where the configuration document is read from.
const (
	SourceFile   = "file"
	SourceGit    = "git"
	SourceGitHub = "github"
)

var supportedSources = map[string]struct{}{
	SourceFile:   {},
	SourceGit:    {},
	SourceGitHub: {},
}

// Config captures runtime options sourced from GitHub Action inputs or environment variables.
type Config struct {
	// ConfigPath is the configuration file (or directory to search) relative to
	// the workspace for file mode, or to the repository root otherwise. Empty
	// means search the standard candidate names.
	ConfigPath            string
	Source                string
	Repository            string
	Ref                   string
	Workspace             string
	Fetch                 bool
	GitHubToken           string
	GitHubBaseURL         string
	GitHubUploadURL       string
	Verbose               bool
	LogLevel              string
	LogFormat             string
	Strict                bool
	AllowPlaintextSecrets bool
}

// LoadConfig reads action inputs from the environment, applies defaults, and performs validation.
func LoadConfig() (Config, error) {
	cfg := Config{
		ConfigPath: strings.TrimSpace(os.Getenv("INPUT_CONFIG_PATH")),
		Source:     strings.ToLower(strings.TrimSpace(envOrDefault("INPUT_SOURCE", defaultSource))),
		Repository: strings.TrimSpace(envOrDefault("INPUT_REPOSITORY", os.Getenv("GITHUB_REPOSITORY"))),
		Ref:        strings.TrimSpace(os.Getenv("INPUT_REF")),
		Workspace:  strings.TrimSpace(envOrDefault("INPUT_WORKSPACE", os.Getenv("GITHUB_WORKSPACE"))),
		LogLevel:   strings.ToLower(strings.TrimSpace(envOrDefault("INPUT_LOG_LEVEL", defaultLogLevel))),
		LogFormat:  strings.ToLower(strings.TrimSpace(envOrDefault("INPUT_LOG_FORMAT", defaultLogFormat))),
	}

	cfg.GitHubToken = strings.TrimSpace(os.Getenv("INPUT_GITHUB_TOKEN"))
	if cfg.GitHubToken == "" {
		cfg.GitHubToken = strings.TrimSpace(os.Getenv("GITHUB_TOKEN"))
	}

	cfg.GitHubBaseURL = strings.TrimSpace(os.Getenv("INPUT_GITHUB_BASE_URL"))
	cfg.GitHubUploadURL = strings.TrimSpace(os.Getenv("INPUT_GITHUB_UPLOAD_URL"))

	bools := []struct {
		key    string
		target *bool
	}{
		{"INPUT_FETCH", &cfg.Fetch},
		{"INPUT_VERBOSE", &cfg.Verbose},
		{"INPUT_STRICT", &cfg.Strict},
		{"INPUT_ALLOW_PLAINTEXT_SECRETS", &cfg.AllowPlaintextSecrets},
	}
	for _, b := range bools {
		raw := strings.TrimSpace(os.Getenv(b.key))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", b.key, err)
		}
		*b.target = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate applies defaults and checks option combinations. LoadConfig calls
// it; callers building a Config by hand (such as the CLI) should too.
func (cfg *Config) Validate() error {
	if cfg.Source == "" {
		cfg.Source = defaultSource
	}
	if _, ok := supportedSources[cfg.Source]; !ok {
		return fmt.Errorf("unsupported source %q (expected file, git or github)", cfg.Source)
	}

	if (cfg.GitHubBaseURL == "") != (cfg.GitHubUploadURL == "") {
		return fmt.Errorf("INPUT_GITHUB_BASE_URL and INPUT_GITHUB_UPLOAD_URL must both be set for GitHub Enterprise")
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = defaultLogFormat
	}

	supportedFormats := map[string]struct{}{"text": {}, "json": {}}
	if _, ok := supportedFormats[cfg.LogFormat]; !ok {
		return fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}

	if cfg.Fetch && cfg.Source != SourceGit {
		return fmt.Errorf("fetch can only be enabled for the git source")
	}

	if cfg.Verbose {
		cfg.LogLevel = "debug"
	}

	return nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
