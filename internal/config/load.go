package config

import (
	"fmt"
	"log/slog"
)

// Loader parses, validates, and resolves configuration sources.
//
// The zero value reads credentials from the process environment, rejects
// plaintext secrets, and resolves duplicate keys by letting the last
// declaration win.
type Loader struct {
	// Env resolves credential references. Defaults to OSEnv.
	Env EnvLookup

	// Logger receives duplicate-key warnings and load diagnostics. May be nil.
	Logger *slog.Logger

	// Strict rejects duplicate keys with a SchemaError instead of resolving them.
	Strict bool

	// AllowPlaintextSecrets accepts literal passwords and tokens in host rules.
	AllowPlaintextSecrets bool
}

// Load parses src and returns the resolved document. Failures are one of
// *ParseError, *SchemaError, *ValidationError or *CredentialResolutionError,
// possibly wrapped; use errors.As to inspect them.
func (l *Loader) Load(src Source) (*Document, error) {
	root, err := parseSource(src)
	if err != nil {
		return nil, err
	}

	env := l.Env
	if env == nil {
		env = OSEnv{}
	}

	d := &decoder{env: env, strict: l.Strict, plaintext: l.AllowPlaintextSecrets}
	doc, err := d.document(src.Name, root)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", sourceLabel(src.Name), err)
	}

	if l.Logger != nil {
		for _, dup := range doc.duplicates {
			l.Logger.Warn("option declared more than once, last declaration wins",
				"source", sourceLabel(src.Name),
				"option", dup.Path,
				"lines", dup.Lines)
		}
		l.Logger.Debug("configuration loaded",
			"source", sourceLabel(src.Name),
			"format", src.Format,
			"platform", doc.platform,
			"host_rules", len(doc.hostRules),
			"package_rules", len(doc.packageRules))
	}

	return doc, nil
}

// Load resolves src with a zero-value Loader.
func Load(src Source) (*Document, error) {
	var l Loader
	return l.Load(src)
}
