package config

import (
	"fmt"
	"strings"
)

// ParseError reports a source document that is not well-formed.
type ParseError struct {
	Source string
	Line   int
	Err    error
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("parse ")
	b.WriteString(sourceLabel(e.Source))
	if e.Line > 0 {
		fmt.Fprintf(&b, ":%d", e.Line)
	}
	b.WriteString(": ")
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// SchemaError reports an option with the wrong shape, an unknown option, or a
// missing required option.
type SchemaError struct {
	Field string
	Line  int
	Msg   string
}

func (e *SchemaError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("schema: %s%s: %s", e.Field, lineSuffix(e.Line), e.Msg)
}

// ValidationError reports an option whose value is outside its allowed set.
type ValidationError struct {
	Field   string
	Line    int
	Value   string
	Allowed []string
	Msg     string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("invalid %s%s: %q", e.Field, lineSuffix(e.Line), e.Value)
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if len(e.Allowed) > 0 {
		msg += " (allowed: " + strings.Join(e.Allowed, ", ") + ")"
	}
	return msg
}

// CredentialResolutionError reports a credential that references an
// environment variable which is not set.
type CredentialResolutionError struct {
	Field string
	Line  int
	Var   string
}

func (e *CredentialResolutionError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("resolve %s%s: environment variable %s is not set", e.Field, lineSuffix(e.Line), e.Var)
}

func lineSuffix(line int) string {
	if line <= 0 {
		return ""
	}
	return fmt.Sprintf(" (line %d)", line)
}

func sourceLabel(name string) string {
	if strings.TrimSpace(name) == "" {
		return "<config>"
	}
	return name
}
