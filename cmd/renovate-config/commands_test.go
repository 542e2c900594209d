package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeConfig(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	good := writeConfig(t, dir, "good/renovate.json", `{"platform": "gitlab"}`)
	bad := writeConfig(t, dir, "bad/renovate.yaml", "platform: gitlub\n")

	stdout, _, err := execute(t, "validate", good, filepath.Join(dir, "bad"), bad)
	if err == nil {
		t.Fatalf("expected validate to fail")
	}
	if !strings.Contains(err.Error(), "2 of 3") {
		t.Fatalf("expected failure count, got %v", err)
	}
	if !strings.Contains(stdout, "ok   "+good) {
		t.Fatalf("expected ok line for %s, got:\n%s", good, stdout)
	}
	if !strings.Contains(stdout, "FAIL "+bad) {
		t.Fatalf("expected FAIL line for %s, got:\n%s", bad, stdout)
	}
	if !strings.Contains(stdout, "FAIL "+filepath.Join(dir, "bad")) {
		t.Fatalf("expected directory without candidates to fail, got:\n%s", stdout)
	}
}

func TestValidateCommandStrict(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "renovate.json", "{\"ignoreDeps\": [\"torch\"],\n\"ignoreDeps\": [\"ray\"]}")

	if _, _, err := execute(t, "validate", path); err != nil {
		t.Fatalf("expected lenient validate to pass, got %v", err)
	}
	if _, _, err := execute(t, "validate", "--strict", path); err == nil {
		t.Fatalf("expected strict validate to fail")
	}
}

func TestValidateCommandWatchNeedsOneFile(t *testing.T) {
	if _, _, err := execute(t, "validate", "--watch", "a.json", "b.json"); err == nil {
		t.Fatalf("expected --watch with two files to fail")
	}
}

func TestPrintCommandRedactsSecrets(t *testing.T) {
	t.Setenv("RENOVATE_CLI_PASS", "hunter2")
	dir := t.TempDir()
	writeConfig(t, dir, "config.js", `module.exports = {
  platform: 'gitlab',
  hostRules: [{ matchHost: 'pypi.example.com', username: 'bot', password: process.env.RENOVATE_CLI_PASS }],
};`)

	stdout, _, err := execute(t, "print", dir)
	if err != nil {
		t.Fatalf("print returned error: %v", err)
	}
	if strings.Contains(stdout, "hunter2") {
		t.Fatalf("print leaked a credential:\n%s", stdout)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(stdout), &doc); err != nil {
		t.Fatalf("print output is not JSON: %v\n%s", err, stdout)
	}
	if doc["platform"] != "gitlab" {
		t.Fatalf("expected platform gitlab, got %v", doc["platform"])
	}
}

func TestPrintCommandRejectsPlaintextUnlessAllowed(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "renovate.json", `{"hostRules": [{"matchHost": "ghcr.io", "token": "plain"}]}`)

	if _, _, err := execute(t, "print", path); err == nil {
		t.Fatalf("expected plaintext token to be rejected")
	}
	if _, _, err := execute(t, "print", "--allow-plaintext-secrets", path); err != nil {
		t.Fatalf("expected plaintext token to be accepted with the flag, got %v", err)
	}
}

func TestRootRejectsUnknownLogFormat(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "renovate.json", `{}`)

	if _, _, err := execute(t, "--log-format", "xml", "validate", path); err == nil {
		t.Fatalf("expected an unknown log format to fail")
	}
}

func TestFormatOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "renovate.conf", `platform: gitlab`)

	if _, _, err := execute(t, "validate", path); err == nil {
		t.Fatalf("expected an unknown extension to fail without --format")
	}
	if _, _, err := execute(t, "validate", "--format", "yml", path); err != nil {
		t.Fatalf("expected --format yml to load the file, got %v", err)
	}
	if _, _, err := execute(t, "validate", "--format", "ini", path); err == nil {
		t.Fatalf("expected an unknown format to fail")
	}
}

func TestValidateWatchHonorsFormatOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "renovate.conf", "platform: gitlab\n")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var stdout bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"validate", "--watch", "--format", "yaml", path})
	if err := cmd.ExecuteContext(ctx); err != nil {
		t.Fatalf("watch returned error: %v", err)
	}
	if !strings.Contains(stdout.String(), "ok   "+path) {
		t.Fatalf("expected the initial read to pass, got:\n%s", stdout.String())
	}
}
