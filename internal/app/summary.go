package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/rancher/renovate-config/internal/config"
	"github.com/rancher/renovate-config/internal/labels"
)

func (r *Runner) writeStepSummary(result Result) error {
	path := strings.TrimSpace(os.Getenv("GITHUB_STEP_SUMMARY"))
	if path == "" {
		return nil
	}

	ensureDir(path)

	var builder strings.Builder
	builder.WriteString("## Renovate configuration summary\n\n")
	builder.WriteString(renderResultDetails(result))

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open step summary: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "failed to close step summary file: %v\n", closeErr)
		}
	}()

	if _, err := file.WriteString(builder.String()); err != nil {
		return fmt.Errorf("write step summary: %w", err)
	}

	if !strings.HasSuffix(builder.String(), "\n") {
		if _, err := file.WriteString("\n"); err != nil {
			return fmt.Errorf("terminate step summary: %w", err)
		}
	}

	return nil
}

func (r *Runner) writeGitHubOutputs(result Result) error {
	path := strings.TrimSpace(os.Getenv("GITHUB_OUTPUT"))
	if path == "" {
		return nil
	}

	ensureDir(path)

	outputs := []actionOutput{
		{"valid", strconv.FormatBool(result.Valid())},
		{"source", result.Source},
	}

	if result.Valid() {
		doc := result.Document
		managers, err := json.Marshal(nonNil(doc.EnabledManagers()))
		if err != nil {
			return fmt.Errorf("marshal enabled_managers: %w", err)
		}
		labelsJSON, err := json.Marshal(nonNil(labels.Sorted(doc.Labels())))
		if err != nil {
			return fmt.Errorf("marshal labels: %w", err)
		}
		dups := make([]outputDuplicateKey, 0, len(doc.Duplicates()))
		for _, d := range doc.Duplicates() {
			dups = append(dups, outputDuplicateKey{Path: d.Path, Lines: d.Lines})
		}
		dupsJSON, err := json.Marshal(dups)
		if err != nil {
			return fmt.Errorf("marshal duplicate_keys: %w", err)
		}
		outputs = append(outputs,
			actionOutput{"platform", string(doc.Platform())},
			actionOutput{"enabled_managers", string(managers)},
			actionOutput{"labels", string(labelsJSON)},
			actionOutput{"duplicate_keys", string(dupsJSON)},
		)
	} else if result.Err != nil {
		outputs = append(outputs, actionOutput{"error", result.Err.Error()})
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open github output: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "failed to close github output file: %v\n", closeErr)
		}
	}()

	for _, o := range outputs {
		if err := writeMultilineOutput(file, o.key, o.value); err != nil {
			return err
		}
	}

	return nil
}

func renderResultDetails(result Result) string {
	var builder strings.Builder

	if !result.Valid() {
		name := result.Source
		if name == "" {
			name = "configuration"
		}
		builder.WriteString(fmt.Sprintf("Configuration `%s` is **invalid**.\n\n", name))
		if result.Err != nil {
			builder.WriteString("```\n")
			builder.WriteString(strings.TrimSpace(result.Err.Error()))
			builder.WriteString("\n```\n")
		}
		return builder.String()
	}

	doc := result.Document
	builder.WriteString(fmt.Sprintf("Configuration `%s` is valid.\n\n", result.Source))
	builder.WriteString("| Option | Value |\n")
	builder.WriteString("| --- | --- |\n")

	rows := [][2]string{
		{"platform", string(doc.Platform())},
		{"logLevel", string(doc.LogLevel())},
		{"onboarding", strconv.FormatBool(doc.Onboarding())},
		{"onboardingConfig.extends", joinCell(doc.OnboardingConfig().Extends)},
		{"enabledManagers", joinCell(doc.EnabledManagers())},
		{"ignoreDeps", joinCell(doc.IgnoreDeps())},
		{"labels", joinCell(doc.Labels())},
		{"recreateClosed", strconv.FormatBool(doc.RecreateClosed())},
		{"lockFileMaintenance.enabled", strconv.FormatBool(doc.LockFileMaintenance().Enabled)},
		{"hostRules", renderHostRules(doc.HostRules())},
		{"packageRules", strconv.Itoa(len(doc.PackageRules()))},
	}
	for _, row := range rows {
		builder.WriteString(fmt.Sprintf("| %s | %s |\n", sanitizeMarkdownCell(row[0]), sanitizeMarkdownCell(row[1])))
	}

	if dups := doc.Duplicates(); len(dups) > 0 {
		builder.WriteString("\n### Duplicate keys\n\n")
		builder.WriteString("The last declaration of each key below was used.\n\n")
		for _, d := range dups {
			builder.WriteString(fmt.Sprintf("- `%s`\n", d.String()))
		}
	}

	return builder.String()
}

func renderHostRules(rules []config.HostRule) string {
	if len(rules) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(rules))
	for _, rule := range rules {
		part := rule.MatchHost
		if rule.Password.EnvVar() != "" {
			part += fmt.Sprintf(" (password from %s)", rule.Password.EnvVar())
		} else if rule.Token.EnvVar() != "" {
			part += fmt.Sprintf(" (token from %s)", rule.Token.EnvVar())
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, ", ")
}

func joinCell(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}

type actionOutput struct {
	key   string
	value string
}

type outputDuplicateKey struct {
	Path  string `json:"path"`
	Lines []int  `json:"lines"`
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func ensureDir(path string) {
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			fmt.Fprintf(os.Stderr, "warning: could not create directory %s: %v\n", dir, mkErr)
		}
	}
}

// writeMultilineOutput uses a fresh delimiter per value so output text, such
// as git stderr carried in an error, cannot end the block early.
func writeMultilineOutput(file *os.File, key, value string) error {
	delimiter := outputDelimiter()
	for strings.Contains(value, delimiter) {
		delimiter = outputDelimiter()
	}
	if _, err := fmt.Fprintf(file, "%s<<%s\n%s\n%s\n", key, delimiter, value, delimiter); err != nil {
		return fmt.Errorf("write output %s: %w", key, err)
	}
	return nil
}

func outputDelimiter() string {
	return "ghadelimiter_" + uuid.NewString()
}

func sanitizeMarkdownCell(value string) string {
	value = strings.ReplaceAll(value, "|", "\\|")
	value = strings.ReplaceAll(value, "\n", "<br>")
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return value
}
