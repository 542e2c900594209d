package config

import (
	"os"
	"path/filepath"
	"slices"
)

// Platform is a supported repository hosting provider.
type Platform string

const (
	PlatformAzure           Platform = "azure"
	PlatformBitbucket       Platform = "bitbucket"
	PlatformBitbucketServer Platform = "bitbucket-server"
	PlatformCodeCommit      Platform = "codecommit"
	PlatformForgejo         Platform = "forgejo"
	PlatformGerrit          Platform = "gerrit"
	PlatformGitea           Platform = "gitea"
	PlatformGitHub          Platform = "github"
	PlatformGitLab          Platform = "gitlab"
	PlatformLocal           Platform = "local"
)

// LogLevel is the verbosity the external engine runs with.
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
	LogLevelFatal LogLevel = "fatal"
)

const (
	defaultPlatform = PlatformGitHub
	defaultLogLevel = LogLevelInfo
	defaultPreset   = "config:recommended"
)

var supportedPlatforms = []string{
	string(PlatformAzure),
	string(PlatformBitbucket),
	string(PlatformBitbucketServer),
	string(PlatformCodeCommit),
	string(PlatformForgejo),
	string(PlatformGerrit),
	string(PlatformGitea),
	string(PlatformGitHub),
	string(PlatformGitLab),
	string(PlatformLocal),
}

var supportedLogLevels = []string{
	string(LogLevelTrace),
	string(LogLevelDebug),
	string(LogLevelInfo),
	string(LogLevelWarn),
	string(LogLevelError),
	string(LogLevelFatal),
}

var supportedUpdateTypes = []string{
	"major",
	"minor",
	"patch",
	"pin",
	"digest",
	"pinDigest",
	"lockFileMaintenance",
	"rollback",
	"bump",
	"replacement",
}

// KnownManagers lists the manager identifiers accepted in enabledManagers and
// matchManagers. Identifiers prefixed with "custom." are accepted as well.
var KnownManagers = []string{
	"ansible",
	"ansible-galaxy",
	"argocd",
	"asdf",
	"azure-pipelines",
	"bazel",
	"bazel-module",
	"bitbucket-pipelines",
	"buildkite",
	"bundler",
	"cargo",
	"circleci",
	"cocoapods",
	"composer",
	"conan",
	"devcontainer",
	"docker-compose",
	"dockerfile",
	"droneci",
	"fleet",
	"flux",
	"git-submodules",
	"github-actions",
	"gitlabci",
	"gitlabci-include",
	"gomod",
	"gradle",
	"gradle-wrapper",
	"helm-requirements",
	"helm-values",
	"helmfile",
	"helmv3",
	"jenkins",
	"jsonnet-bundler",
	"kubernetes",
	"kustomize",
	"maven",
	"maven-wrapper",
	"mise",
	"mix",
	"nix",
	"nodenv",
	"npm",
	"nuget",
	"nvm",
	"pep621",
	"pep723",
	"pip-compile",
	"pip_requirements",
	"pip_setup",
	"pipenv",
	"poetry",
	"pre-commit",
	"pub",
	"pyenv",
	"regex",
	"ruby-version",
	"sbt",
	"setup-cfg",
	"swift",
	"terraform",
	"terraform-version",
	"terragrunt",
	"tflint-plugin",
	"velaci",
	"woodpecker",
}

func knownManager(id string) bool {
	if len(id) > len("custom.") && id[:len("custom.")] == "custom." {
		return true
	}
	return slices.Contains(KnownManagers, id)
}

func defaultCacheDir() string {
	return filepath.Join(os.TempDir(), "renovate")
}
