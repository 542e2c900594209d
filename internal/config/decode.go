package config

import (
	"fmt"
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rancher/renovate-config/internal/labels"
)

var topLevelOptions = map[string]struct{}{
	"$schema":             {},
	"extends":             {},
	"platform":            {},
	"logLevel":            {},
	"labels":              {},
	"onboarding":          {},
	"onboardingConfig":    {},
	"cacheDir":            {},
	"recreateClosed":      {},
	"ignoreDeps":          {},
	"hostRules":           {},
	"enabledManagers":     {},
	"packageRules":        {},
	"lockFileMaintenance": {},
	"schedule":            {},
	"timezone":            {},
	"prHourlyLimit":       {},
	"prConcurrentLimit":   {},
}

var hostRuleOptions = map[string]struct{}{
	"matchHost": {},
	"hostType":  {},
	"username":  {},
	"password":  {},
	"token":     {},
}

var packageRuleOptions = map[string]struct{}{
	"matchManagers":     {},
	"matchPackageNames": {},
	"matchDepTypes":     {},
	"matchUpdateTypes":  {},
	"enabled":           {},
	"automerge":         {},
	"groupName":         {},
	"labels":            {},
	"addLabels":         {},
	"schedule":          {},
}

var lockFileMaintenanceOptions = map[string]struct{}{
	"enabled":  {},
	"lockfile": {},
	"schedule": {},
}

var onboardingConfigOptions = map[string]struct{}{
	"extends": {},
}

// decoder maps a parsed Value tree onto a Document. A null value leaves the
// option at its default.
type decoder struct {
	env       EnvLookup
	strict    bool
	plaintext bool
	dups      []DuplicateKey
}

func (d *decoder) document(source string, root Value) (*Document, error) {
	pairs, err := d.object("", root, topLevelOptions)
	if err != nil {
		return nil, err
	}

	doc := newDefaultDocument(source)
	for _, p := range pairs {
		if p.Value.Kind == KindNull {
			continue
		}
		if err := d.option(doc, p.Key, p.Value); err != nil {
			return nil, err
		}
	}
	doc.duplicates = d.dups
	return doc, nil
}

func (d *decoder) option(doc *Document, path string, v Value) error {
	var err error
	switch path {
	case "$schema":
		doc.schema, err = d.str(path, v)
	case "extends":
		doc.extends, err = d.presets(path, v)
	case "platform":
		var s string
		s, err = d.enum(path, v, supportedPlatforms)
		doc.platform = Platform(s)
	case "logLevel":
		var s string
		s, err = d.enum(path, v, supportedLogLevels)
		doc.logLevel = LogLevel(s)
	case "labels":
		doc.labels, err = d.labels(path, v)
	case "onboarding":
		doc.onboarding, err = d.boolean(path, v)
	case "onboardingConfig":
		doc.onboardingConfig, err = d.onboardingConfig(path, v)
	case "cacheDir":
		doc.cacheDir, err = d.nonEmpty(path, v)
	case "recreateClosed":
		doc.recreateClosed, err = d.boolean(path, v)
	case "ignoreDeps":
		doc.ignoreDeps, err = d.set(path, v, nil)
	case "hostRules":
		doc.hostRules, err = d.hostRules(path, v)
	case "enabledManagers":
		doc.enabledManagers, err = d.set(path, v, checkManager)
	case "packageRules":
		doc.packageRules, err = d.packageRules(path, v)
	case "lockFileMaintenance":
		doc.lockFileMaintenance, err = d.lockFileMaintenance(path, v)
	case "schedule":
		doc.schedule, err = d.strings(path, v)
	case "timezone":
		doc.timezone, err = d.timezone(path, v)
	case "prHourlyLimit":
		doc.prHourlyLimit, err = d.count(path, v)
	case "prConcurrentLimit":
		doc.prConcurrentLimit, err = d.count(path, v)
	}
	return err
}

// object resolves duplicate keys and rejects keys outside allowed.
func (d *decoder) object(path string, v Value, allowed map[string]struct{}) ([]Pair, error) {
	if err := d.expect(path, v, KindObject); err != nil {
		return nil, err
	}

	pairs, dups := resolvePairs(path, v.Object)
	if len(dups) > 0 {
		if d.strict {
			first := dups[0]
			return nil, &SchemaError{Field: first.Path, Line: first.Lines[len(first.Lines)-1], Msg: "option is declared more than once"}
		}
		d.dups = append(d.dups, dups...)
	}

	for _, p := range pairs {
		if _, ok := allowed[p.Key]; !ok {
			return nil, &SchemaError{Field: joinPath(path, p.Key), Line: p.Line, Msg: "unknown option"}
		}
	}
	return pairs, nil
}

func (d *decoder) expect(path string, v Value, want Kind) error {
	if v.Kind == want {
		return nil
	}
	if path == "" {
		path = "<root>"
	}
	if v.Kind == KindEnvRef {
		return envRefError(path, v)
	}
	return &SchemaError{Field: path, Line: v.Line, Msg: fmt.Sprintf("expected %s, found %s", want, v.Kind)}
}

func envRefError(path string, v Value) error {
	return &SchemaError{Field: path, Line: v.Line, Msg: "environment references are only allowed in hostRules credentials"}
}

func (d *decoder) str(path string, v Value) (string, error) {
	if err := d.expect(path, v, KindString); err != nil {
		return "", err
	}
	if _, ok := envTemplate(v.Str); ok {
		return "", envRefError(path, v)
	}
	return v.Str, nil
}

func (d *decoder) nonEmpty(path string, v Value) (string, error) {
	s, err := d.str(path, v)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(s) == "" {
		return "", &ValidationError{Field: path, Line: v.Line, Value: s, Msg: "must not be empty"}
	}
	return s, nil
}

func (d *decoder) boolean(path string, v Value) (bool, error) {
	if err := d.expect(path, v, KindBool); err != nil {
		return false, err
	}
	return v.Bool, nil
}

func (d *decoder) optionalBool(path string, v Value) (*bool, error) {
	b, err := d.boolean(path, v)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (d *decoder) enum(path string, v Value, allowed []string) (string, error) {
	s, err := d.str(path, v)
	if err != nil {
		return "", err
	}
	if !slices.Contains(allowed, s) {
		return "", &ValidationError{Field: path, Line: v.Line, Value: s, Allowed: allowed}
	}
	return s, nil
}

func (d *decoder) count(path string, v Value) (int, error) {
	if err := d.expect(path, v, KindNumber); err != nil {
		return 0, err
	}
	if v.Number < 0 || v.Number != math.Trunc(v.Number) || v.Number > math.MaxInt32 {
		return 0, &ValidationError{Field: path, Line: v.Line, Value: strconv.FormatFloat(v.Number, 'g', -1, 64), Msg: "must be a non-negative integer"}
	}
	return int(v.Number), nil
}

func (d *decoder) timezone(path string, v Value) (string, error) {
	s, err := d.nonEmpty(path, v)
	if err != nil {
		return "", err
	}
	if _, err := time.LoadLocation(s); err != nil {
		return "", &ValidationError{Field: path, Line: v.Line, Value: s, Msg: "unknown time zone"}
	}
	return s, nil
}

// strings decodes an ordered sequence of non-empty strings.
func (d *decoder) strings(path string, v Value) ([]string, error) {
	if err := d.expect(path, v, KindList); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(v.List))
	for i, item := range v.List {
		s, err := d.nonEmpty(indexPath(path, i), item)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

type itemCheck func(path string, item Value) error

// set decodes a sequence of strings, dropping repeats but keeping the order
// in which values were first seen.
func (d *decoder) set(path string, v Value, check itemCheck) ([]string, error) {
	items, err := d.strings(path, v)
	if err != nil {
		return nil, err
	}
	if check != nil {
		for i := range items {
			if err := check(indexPath(path, i), v.List[i]); err != nil {
				return nil, err
			}
		}
	}
	return labels.Merge(items), nil
}

func checkManager(path string, item Value) error {
	if !knownManager(item.Str) {
		return &ValidationError{Field: path, Line: item.Line, Value: item.Str, Msg: "unknown manager"}
	}
	return nil
}

func checkUpdateType(path string, item Value) error {
	if !slices.Contains(supportedUpdateTypes, item.Str) {
		return &ValidationError{Field: path, Line: item.Line, Value: item.Str, Allowed: supportedUpdateTypes}
	}
	return nil
}

func (d *decoder) presets(path string, v Value) ([]string, error) {
	items, err := d.strings(path, v)
	if err != nil {
		return nil, err
	}
	for i, s := range items {
		if strings.ContainsAny(s, " \t\r\n") {
			return nil, &ValidationError{Field: indexPath(path, i), Line: v.List[i].Line, Value: s, Msg: "preset names cannot contain whitespace"}
		}
	}
	return items, nil
}

func (d *decoder) labels(path string, v Value) ([]string, error) {
	items, err := d.strings(path, v)
	if err != nil {
		return nil, err
	}
	for i, name := range items {
		if err := labels.ValidateName(name); err != nil {
			return nil, &ValidationError{Field: indexPath(path, i), Line: v.List[i].Line, Value: name, Msg: err.Error()}
		}
	}
	return items, nil
}

func (d *decoder) onboardingConfig(path string, v Value) (OnboardingConfig, error) {
	pairs, err := d.object(path, v, onboardingConfigOptions)
	if err != nil {
		return OnboardingConfig{}, err
	}

	cfg := OnboardingConfig{Extends: []string{defaultPreset}}
	for _, p := range pairs {
		if p.Value.Kind == KindNull {
			continue
		}
		if p.Key == "extends" {
			if cfg.Extends, err = d.presets(joinPath(path, p.Key), p.Value); err != nil {
				return OnboardingConfig{}, err
			}
		}
	}
	return cfg, nil
}

func (d *decoder) hostRules(path string, v Value) ([]HostRule, error) {
	if err := d.expect(path, v, KindList); err != nil {
		return nil, err
	}
	rules := make([]HostRule, 0, len(v.List))
	for i, item := range v.List {
		rule, err := d.hostRule(indexPath(path, i), item)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (d *decoder) hostRule(path string, v Value) (HostRule, error) {
	pairs, err := d.object(path, v, hostRuleOptions)
	if err != nil {
		return HostRule{}, err
	}

	var rule HostRule
	for _, p := range pairs {
		if p.Value.Kind == KindNull {
			continue
		}
		field := joinPath(path, p.Key)
		switch p.Key {
		case "matchHost":
			rule.MatchHost, err = d.matchHost(field, p.Value)
		case "hostType":
			rule.HostType, err = d.nonEmpty(field, p.Value)
		case "username":
			rule.Username, err = d.username(field, p.Value)
		case "password":
			rule.Password, err = d.secret(field, p.Value)
		case "token":
			rule.Token, err = d.secret(field, p.Value)
		}
		if err != nil {
			return HostRule{}, err
		}
	}

	if rule.MatchHost == "" {
		return HostRule{}, &SchemaError{Field: joinPath(path, "matchHost"), Line: v.Line, Msg: "required option is missing"}
	}
	return rule, nil
}

func (d *decoder) matchHost(path string, v Value) (string, error) {
	s, err := d.nonEmpty(path, v)
	if err != nil {
		return "", err
	}
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil || u.Host == "" {
			return "", &ValidationError{Field: path, Line: v.Line, Value: s, Msg: "not a valid URL"}
		}
	} else if strings.ContainsAny(s, " \t/") {
		return "", &ValidationError{Field: path, Line: v.Line, Value: s, Msg: "not a valid host name"}
	}
	return s, nil
}

func (d *decoder) envName(v Value) (string, bool) {
	switch v.Kind {
	case KindEnvRef:
		return v.Str, true
	case KindString:
		return envTemplate(v.Str)
	}
	return "", false
}

func (d *decoder) resolveEnv(path string, v Value, name string) (string, error) {
	val, ok := d.env.LookupEnv(name)
	if !ok || val == "" {
		return "", &CredentialResolutionError{Field: path, Line: v.Line, Var: name}
	}
	return val, nil
}

func (d *decoder) username(path string, v Value) (string, error) {
	if name, ok := d.envName(v); ok {
		return d.resolveEnv(path, v, name)
	}
	return d.nonEmpty(path, v)
}

// secret resolves a password or token. Plaintext values are rejected unless
// the loader allows them.
func (d *decoder) secret(path string, v Value) (Secret, error) {
	if name, ok := d.envName(v); ok {
		val, err := d.resolveEnv(path, v, name)
		if err != nil {
			return Secret{}, err
		}
		return Secret{value: val, env: name}, nil
	}

	s, err := d.str(path, v)
	if err != nil {
		return Secret{}, err
	}
	if !d.plaintext {
		return Secret{}, &SchemaError{Field: path, Line: v.Line, Msg: "credentials must reference an environment variable (process.env.NAME or {{ env.NAME }})"}
	}
	return Secret{value: s}, nil
}

func (d *decoder) packageRules(path string, v Value) ([]PackageRule, error) {
	if err := d.expect(path, v, KindList); err != nil {
		return nil, err
	}
	rules := make([]PackageRule, 0, len(v.List))
	for i, item := range v.List {
		rule, err := d.packageRule(indexPath(path, i), item)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (d *decoder) packageRule(path string, v Value) (PackageRule, error) {
	pairs, err := d.object(path, v, packageRuleOptions)
	if err != nil {
		return PackageRule{}, err
	}

	var (
		rule      PackageRule
		selectors int
	)
	for _, p := range pairs {
		if p.Value.Kind == KindNull {
			continue
		}
		field := joinPath(path, p.Key)
		switch p.Key {
		case "matchManagers":
			rule.MatchManagers, err = d.set(field, p.Value, checkManager)
			selectors++
		case "matchPackageNames":
			rule.MatchPackageNames, err = d.set(field, p.Value, nil)
			selectors++
		case "matchDepTypes":
			rule.MatchDepTypes, err = d.set(field, p.Value, nil)
			selectors++
		case "matchUpdateTypes":
			rule.MatchUpdateTypes, err = d.set(field, p.Value, checkUpdateType)
			selectors++
		case "enabled":
			rule.Enabled, err = d.optionalBool(field, p.Value)
		case "automerge":
			rule.Automerge, err = d.optionalBool(field, p.Value)
		case "groupName":
			rule.GroupName, err = d.nonEmpty(field, p.Value)
		case "labels":
			rule.Labels, err = d.labels(field, p.Value)
		case "addLabels":
			rule.AddLabels, err = d.labels(field, p.Value)
		case "schedule":
			rule.Schedule, err = d.strings(field, p.Value)
		}
		if err != nil {
			return PackageRule{}, err
		}
	}

	if selectors == 0 {
		return PackageRule{}, &SchemaError{Field: path, Line: v.Line, Msg: "at least one match* selector is required"}
	}
	return rule, nil
}

func (d *decoder) lockFileMaintenance(path string, v Value) (LockFileMaintenance, error) {
	pairs, err := d.object(path, v, lockFileMaintenanceOptions)
	if err != nil {
		return LockFileMaintenance{}, err
	}

	var lfm LockFileMaintenance
	for _, p := range pairs {
		if p.Value.Kind == KindNull {
			continue
		}
		field := joinPath(path, p.Key)
		switch p.Key {
		case "enabled":
			lfm.Enabled, err = d.boolean(field, p.Value)
		case "lockfile":
			lfm.Lockfile, err = d.nonEmpty(field, p.Value)
		case "schedule":
			lfm.Schedule, err = d.strings(field, p.Value)
		}
		if err != nil {
			return LockFileMaintenance{}, err
		}
	}
	return lfm, nil
}
