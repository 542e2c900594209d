package config

import (
	"encoding/json"
	"log/slog"
	"slices"

	"github.com/rancher/renovate-config/internal/labels"
)

const redacted = "***"

// Secret holds a credential resolved from the environment. Its String,
// MarshalJSON and LogValue forms are redacted; use Value to read it.
type Secret struct {
	value string
	env   string
}

// Value returns the resolved credential.
func (s Secret) Value() string { return s.value }

// EnvVar returns the environment variable the credential was read from, if any.
func (s Secret) EnvVar() string { return s.env }

// IsSet reports whether the credential holds a value.
func (s Secret) IsSet() bool { return s.value != "" }

func (s Secret) String() string {
	if s.value == "" {
		return ""
	}
	return redacted
}

func (s Secret) LogValue() slog.Value {
	return slog.StringValue(s.String())
}

func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// HostRule tells the engine how to authenticate against a registry host.
type HostRule struct {
	MatchHost string `json:"matchHost"`
	HostType  string `json:"hostType,omitempty"`
	Username  string `json:"username,omitempty"`
	Password  Secret `json:"password,omitempty"`
	Token     Secret `json:"token,omitempty"`
}

// PackageRule scopes extra behaviour to dependencies matching its selectors.
type PackageRule struct {
	MatchManagers     []string `json:"matchManagers,omitempty"`
	MatchPackageNames []string `json:"matchPackageNames,omitempty"`
	MatchDepTypes     []string `json:"matchDepTypes,omitempty"`
	MatchUpdateTypes  []string `json:"matchUpdateTypes,omitempty"`
	Enabled           *bool    `json:"enabled,omitempty"`
	Automerge         *bool    `json:"automerge,omitempty"`
	GroupName         string   `json:"groupName,omitempty"`
	Labels            []string `json:"labels,omitempty"`
	AddLabels         []string `json:"addLabels,omitempty"`
	Schedule          []string `json:"schedule,omitempty"`
}

// MatchesManagerOnly reports whether the rule applies to every dependency of
// the given manager, i.e. matchManagers is its only selector and includes id.
func (r PackageRule) MatchesManagerOnly(id string) bool {
	if len(r.MatchPackageNames) > 0 || len(r.MatchDepTypes) > 0 || len(r.MatchUpdateTypes) > 0 {
		return false
	}
	return slices.Contains(r.MatchManagers, id)
}

func (r PackageRule) clone() PackageRule {
	out := r
	out.MatchManagers = slices.Clone(r.MatchManagers)
	out.MatchPackageNames = slices.Clone(r.MatchPackageNames)
	out.MatchDepTypes = slices.Clone(r.MatchDepTypes)
	out.MatchUpdateTypes = slices.Clone(r.MatchUpdateTypes)
	out.Labels = slices.Clone(r.Labels)
	out.AddLabels = slices.Clone(r.AddLabels)
	out.Schedule = slices.Clone(r.Schedule)
	if r.Enabled != nil {
		v := *r.Enabled
		out.Enabled = &v
	}
	if r.Automerge != nil {
		v := *r.Automerge
		out.Automerge = &v
	}
	return out
}

// OnboardingConfig is the configuration proposed to newly onboarded repositories.
type OnboardingConfig struct {
	Extends []string `json:"extends"`
}

// LockFileMaintenance controls periodic lockfile regeneration.
type LockFileMaintenance struct {
	Enabled  bool     `json:"enabled"`
	Lockfile string   `json:"lockfile,omitempty"`
	Schedule []string `json:"schedule,omitempty"`
}

// Document is the resolved, validated configuration. It is never modified
// after Load returns and is safe for concurrent use; accessors return copies.
type Document struct {
	source              string
	schema              string
	extends             []string
	platform            Platform
	logLevel            LogLevel
	labels              []string
	onboarding          bool
	onboardingConfig    OnboardingConfig
	cacheDir            string
	recreateClosed      bool
	ignoreDeps          []string
	hostRules           []HostRule
	enabledManagers     []string
	packageRules        []PackageRule
	lockFileMaintenance LockFileMaintenance
	schedule            []string
	timezone            string
	prHourlyLimit       int
	prConcurrentLimit   int
	duplicates          []DuplicateKey
}

func newDefaultDocument(source string) *Document {
	return &Document{
		source:           source,
		platform:         defaultPlatform,
		logLevel:         defaultLogLevel,
		onboarding:       true,
		onboardingConfig: OnboardingConfig{Extends: []string{defaultPreset}},
		cacheDir:         defaultCacheDir(),
	}
}

// SourceName is the name of the source the document was loaded from.
func (d *Document) SourceName() string { return d.source }

func (d *Document) Schema() string { return d.schema }

func (d *Document) Extends() []string { return slices.Clone(d.extends) }

func (d *Document) Platform() Platform { return d.platform }

func (d *Document) LogLevel() LogLevel { return d.logLevel }

// Labels returns the labels applied to every generated pull request, in order.
func (d *Document) Labels() []string { return slices.Clone(d.labels) }

func (d *Document) Onboarding() bool { return d.onboarding }

func (d *Document) OnboardingConfig() OnboardingConfig {
	return OnboardingConfig{Extends: slices.Clone(d.onboardingConfig.Extends)}
}

func (d *Document) CacheDir() string { return d.cacheDir }

func (d *Document) RecreateClosed() bool { return d.recreateClosed }

func (d *Document) IgnoreDeps() []string { return slices.Clone(d.ignoreDeps) }

func (d *Document) HostRules() []HostRule { return slices.Clone(d.hostRules) }

// EnabledManagers returns the managers the engine is restricted to. An empty
// result means every manager is enabled.
func (d *Document) EnabledManagers() []string { return slices.Clone(d.enabledManagers) }

func (d *Document) PackageRules() []PackageRule {
	out := make([]PackageRule, 0, len(d.packageRules))
	for _, r := range d.packageRules {
		out = append(out, r.clone())
	}
	return out
}

func (d *Document) LockFileMaintenance() LockFileMaintenance {
	out := d.lockFileMaintenance
	out.Schedule = slices.Clone(out.Schedule)
	return out
}

func (d *Document) Schedule() []string { return slices.Clone(d.schedule) }

func (d *Document) Timezone() string { return d.timezone }

func (d *Document) PRHourlyLimit() int { return d.prHourlyLimit }

func (d *Document) PRConcurrentLimit() int { return d.prConcurrentLimit }

// Duplicates lists every key declared more than once in the source, with the
// lines of each declaration. The last declaration is the one in effect.
func (d *Document) Duplicates() []DuplicateKey {
	out := make([]DuplicateKey, 0, len(d.duplicates))
	for _, dup := range d.duplicates {
		out = append(out, DuplicateKey{Path: dup.Path, Lines: slices.Clone(dup.Lines)})
	}
	return out
}

// ManagerEnabled reports whether the engine should process the given manager.
func (d *Document) ManagerEnabled(id string) bool {
	return len(d.enabledManagers) == 0 || slices.Contains(d.enabledManagers, id)
}

// IsIgnored reports whether a dependency is excluded by ignoreDeps.
func (d *Document) IsIgnored(dep string) bool {
	return slices.Contains(d.ignoreDeps, dep)
}

// RulesForManager returns the package rules that can apply to dependencies of
// the given manager, in declaration order.
func (d *Document) RulesForManager(id string) []PackageRule {
	var out []PackageRule
	for _, r := range d.packageRules {
		if len(r.MatchManagers) == 0 || slices.Contains(r.MatchManagers, id) {
			out = append(out, r.clone())
		}
	}
	return out
}

// LabelsForManager resolves the labels for pull requests of a manager. Rules
// that select on the manager alone are applied in order: labels replaces the
// current set and addLabels appends to it.
func (d *Document) LabelsForManager(id string) []string {
	current := slices.Clone(d.labels)
	for _, r := range d.packageRules {
		if !r.MatchesManagerOnly(id) {
			continue
		}
		if r.Labels != nil {
			current = slices.Clone(r.Labels)
		}
		current = labels.Merge(current, r.AddLabels)
	}
	return current
}

type documentJSON struct {
	Schema              string              `json:"$schema,omitempty"`
	Extends             []string            `json:"extends,omitempty"`
	Platform            Platform            `json:"platform"`
	LogLevel            LogLevel            `json:"logLevel"`
	Labels              []string            `json:"labels"`
	Onboarding          bool                `json:"onboarding"`
	OnboardingConfig    OnboardingConfig    `json:"onboardingConfig"`
	CacheDir            string              `json:"cacheDir"`
	RecreateClosed      bool                `json:"recreateClosed"`
	IgnoreDeps          []string            `json:"ignoreDeps"`
	HostRules           []HostRule          `json:"hostRules"`
	EnabledManagers     []string            `json:"enabledManagers"`
	PackageRules        []PackageRule       `json:"packageRules"`
	LockFileMaintenance LockFileMaintenance `json:"lockFileMaintenance"`
	Schedule            []string            `json:"schedule,omitempty"`
	Timezone            string              `json:"timezone,omitempty"`
	PRHourlyLimit       int                 `json:"prHourlyLimit,omitempty"`
	PRConcurrentLimit   int                 `json:"prConcurrentLimit,omitempty"`
}

// MarshalJSON renders the resolved document with credentials redacted.
func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(documentJSON{
		Schema:              d.schema,
		Extends:             d.extends,
		Platform:            d.platform,
		LogLevel:            d.logLevel,
		Labels:              nonNil(d.labels),
		Onboarding:          d.onboarding,
		OnboardingConfig:    OnboardingConfig{Extends: nonNil(d.onboardingConfig.Extends)},
		CacheDir:            d.cacheDir,
		RecreateClosed:      d.recreateClosed,
		IgnoreDeps:          nonNil(d.ignoreDeps),
		HostRules:           nonNil(d.hostRules),
		EnabledManagers:     nonNil(d.enabledManagers),
		PackageRules:        nonNil(d.packageRules),
		LockFileMaintenance: d.lockFileMaintenance,
		Schedule:            d.schedule,
		Timezone:            d.timezone,
		PRHourlyLimit:       d.prHourlyLimit,
		PRConcurrentLimit:   d.prConcurrentLimit,
	})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
