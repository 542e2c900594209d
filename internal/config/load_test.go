package config

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const moduleConfig = `module.exports = {
  platform: 'gitlab',
  logLevel: 'debug',
  labels: ['renovate', 'dependencies', 'automated'],
  onboarding: true,
  onboardingConfig: {
    extends: ['config:recommended']
  },
  cacheDir: "/tmp/renovate",
  recreateClosed: true,
  ignoreDeps: ["python"],
  hostRules: [
    {
      matchHost: "https://pypi.org/simple",
      username: "admin",
      password: process.env.RENOVATE_PYPI_PASS
    },
  ],
  enabledManagers: [
    "pep621"
  ],
  "ignoreDeps": ["ray"],
  packageRules: [
    {
      matchManagers: ["pep621"]
    }
  ],
  lockFileMaintenance: {
  enabled: true,
  lockfile: "uv.lock"
  }
};
`

var documentCmp = cmp.AllowUnexported(Document{}, Secret{})

func testLoader() *Loader {
	return &Loader{Env: MapEnv{"RENOVATE_PYPI_PASS": "s3cret"}}
}

func mustLoad(t *testing.T, l *Loader, src Source) *Document {
	t.Helper()
	doc, err := l.Load(src)
	if err != nil {
		t.Fatalf("unexpected error loading %s: %v", src.Name, err)
	}
	return doc
}

func jsonSource(body string) Source {
	return Source{Name: "renovate.json", Format: FormatJSON, Data: []byte(body)}
}

func TestLoadModuleConfig(t *testing.T) {
	doc := mustLoad(t, testLoader(), Source{Name: "config.js", Format: FormatJS, Data: []byte(moduleConfig)})

	if doc.Platform() != PlatformGitLab {
		t.Fatalf("expected platform gitlab, got %q", doc.Platform())
	}
	if doc.LogLevel() != LogLevelDebug {
		t.Fatalf("expected log level debug, got %q", doc.LogLevel())
	}
	if diff := cmp.Diff([]string{"renovate", "dependencies", "automated"}, doc.Labels()); diff != "" {
		t.Fatalf("labels mismatch (-want +got):\n%s", diff)
	}
	if !doc.Onboarding() {
		t.Fatalf("expected onboarding to be enabled")
	}
	if diff := cmp.Diff([]string{"config:recommended"}, doc.OnboardingConfig().Extends); diff != "" {
		t.Fatalf("onboarding extends mismatch (-want +got):\n%s", diff)
	}
	if doc.CacheDir() != "/tmp/renovate" {
		t.Fatalf("expected cache dir /tmp/renovate, got %q", doc.CacheDir())
	}
	if !doc.RecreateClosed() {
		t.Fatalf("expected recreateClosed to be true")
	}
	if diff := cmp.Diff([]string{"ray"}, doc.IgnoreDeps()); diff != "" {
		t.Fatalf("ignoreDeps mismatch (-want +got):\n%s", diff)
	}

	rules := doc.HostRules()
	if len(rules) != 1 {
		t.Fatalf("expected 1 host rule, got %d", len(rules))
	}
	if rules[0].MatchHost != "https://pypi.org/simple" || rules[0].Username != "admin" {
		t.Fatalf("unexpected host rule: %+v", rules[0])
	}
	if rules[0].Password.Value() != "s3cret" || rules[0].Password.EnvVar() != "RENOVATE_PYPI_PASS" {
		t.Fatalf("expected password resolved from RENOVATE_PYPI_PASS, got %q from %q", rules[0].Password.Value(), rules[0].Password.EnvVar())
	}

	if diff := cmp.Diff([]string{"pep621"}, doc.EnabledManagers()); diff != "" {
		t.Fatalf("enabledManagers mismatch (-want +got):\n%s", diff)
	}
	packageRules := doc.PackageRules()
	if len(packageRules) != 1 {
		t.Fatalf("expected 1 package rule, got %d", len(packageRules))
	}
	if diff := cmp.Diff([]string{"pep621"}, packageRules[0].MatchManagers); diff != "" {
		t.Fatalf("matchManagers mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(LockFileMaintenance{Enabled: true, Lockfile: "uv.lock"}, doc.LockFileMaintenance()); diff != "" {
		t.Fatalf("lockFileMaintenance mismatch (-want +got):\n%s", diff)
	}

	want := []DuplicateKey{{Path: "ignoreDeps", Lines: []int{11, 22}}}
	if diff := cmp.Diff(want, doc.Duplicates()); diff != "" {
		t.Fatalf("duplicates mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadIsIdempotent(t *testing.T) {
	l := testLoader()
	src := Source{Name: "config.js", Format: FormatJS, Data: []byte(moduleConfig)}

	first := mustLoad(t, l, src)
	second := mustLoad(t, l, src)

	if first == second {
		t.Fatalf("expected distinct document instances")
	}
	if diff := cmp.Diff(first, second, documentCmp); diff != "" {
		t.Fatalf("documents differ between loads (-first +second):\n%s", diff)
	}
}

func TestLoadDuplicateKeyLastDeclarationWins(t *testing.T) {
	doc := mustLoad(t, testLoader(), jsonSource(`{
  "ignoreDeps": ["a"],
  "platform": "gitlab",
  "ignoreDeps": ["b"]
}`))

	if diff := cmp.Diff([]string{"b"}, doc.IgnoreDeps()); diff != "" {
		t.Fatalf("ignoreDeps mismatch (-want +got):\n%s", diff)
	}
	want := []DuplicateKey{{Path: "ignoreDeps", Lines: []int{2, 4}}}
	if diff := cmp.Diff(want, doc.Duplicates()); diff != "" {
		t.Fatalf("duplicates mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadDuplicateNestedKeyIsReportedWithPath(t *testing.T) {
	doc := mustLoad(t, testLoader(), jsonSource(`{"lockFileMaintenance": {"enabled": false, "enabled": true}}`))

	if !doc.LockFileMaintenance().Enabled {
		t.Fatalf("expected last declaration of lockFileMaintenance.enabled to win")
	}
	dups := doc.Duplicates()
	if len(dups) != 1 || dups[0].Path != "lockFileMaintenance.enabled" {
		t.Fatalf("unexpected duplicates: %+v", dups)
	}
}

func TestLoadStrictRejectsDuplicateKeys(t *testing.T) {
	l := testLoader()
	l.Strict = true

	_, err := l.Load(jsonSource(`{"ignoreDeps": ["a"], "ignoreDeps": ["b"]}`))
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if schemaErr.Field != "ignoreDeps" {
		t.Fatalf("expected field ignoreDeps, got %q", schemaErr.Field)
	}
}

func TestLoadMissingCredentialVariable(t *testing.T) {
	l := &Loader{Env: MapEnv{}}

	doc, err := l.Load(Source{Name: "config.js", Format: FormatJS, Data: []byte(moduleConfig)})
	if doc != nil {
		t.Fatalf("expected no document when a credential cannot be resolved")
	}

	var credErr *CredentialResolutionError
	if !errors.As(err, &credErr) {
		t.Fatalf("expected CredentialResolutionError, got %v", err)
	}
	if credErr.Var != "RENOVATE_PYPI_PASS" {
		t.Fatalf("expected variable RENOVATE_PYPI_PASS, got %q", credErr.Var)
	}
	if credErr.Field != "hostRules[0].password" {
		t.Fatalf("expected field hostRules[0].password, got %q", credErr.Field)
	}
	if !strings.Contains(err.Error(), "hostRules[0].password") {
		t.Fatalf("expected error message to name the field, got %q", err.Error())
	}
}

func TestLoadEmptyCredentialVariable(t *testing.T) {
	l := &Loader{Env: MapEnv{"RENOVATE_PYPI_PASS": ""}}

	_, err := l.Load(Source{Name: "config.js", Format: FormatJS, Data: []byte(moduleConfig)})
	var credErr *CredentialResolutionError
	if !errors.As(err, &credErr) {
		t.Fatalf("expected CredentialResolutionError for an empty variable, got %v", err)
	}
}

func TestLoadCredentialTemplate(t *testing.T) {
	doc := mustLoad(t, testLoader(), jsonSource(`{"hostRules": [{"matchHost": "pypi.org", "token": "{{ env.RENOVATE_PYPI_PASS }}"}]}`))

	rule := doc.HostRules()[0]
	if rule.Token.Value() != "s3cret" {
		t.Fatalf("expected token resolved from template, got %q", rule.Token.Value())
	}
	if rule.Password.IsSet() {
		t.Fatalf("expected password to be unset")
	}
}

func TestLoadRejectsPlaintextSecrets(t *testing.T) {
	src := jsonSource(`{"hostRules": [{"matchHost": "pypi.org", "password": "hunter2"}]}`)

	_, err := testLoader().Load(src)
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}

	l := testLoader()
	l.AllowPlaintextSecrets = true
	doc := mustLoad(t, l, src)
	if doc.HostRules()[0].Password.Value() != "hunter2" {
		t.Fatalf("expected plaintext password to be kept when allowed")
	}
}

func TestLoadRejectsEnvReferenceOutsideCredentials(t *testing.T) {
	_, err := testLoader().Load(Source{Name: "config.js", Format: FormatJS, Data: []byte(`module.exports = {cacheDir: process.env.HOME}`)})
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if schemaErr.Field != "cacheDir" {
		t.Fatalf("expected field cacheDir, got %q", schemaErr.Field)
	}
}

func TestLoadRejectsEnvTemplateOutsideCredentials(t *testing.T) {
	cases := []struct {
		name  string
		src   Source
		field string
	}{
		{"json scalar", jsonSource(`{"cacheDir": "{{ env.HOME }}"}`), "cacheDir"},
		{"json list item", jsonSource(`{"labels": ["{{ env.X }}"]}`), "labels[0]"},
		{"yaml scalar", Source{Name: "renovate.yaml", Format: FormatYAML, Data: []byte("timezone: \"{{ env.TZ }}\"\n")}, "timezone"},
		{"yaml nested", Source{Name: "renovate.yaml", Format: FormatYAML, Data: []byte("hostRules:\n  - matchHost: \"{{env.HOST}}\"\n")}, "hostRules[0].matchHost"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := testLoader().Load(tc.src)
			var schemaErr *SchemaError
			if !errors.As(err, &schemaErr) {
				t.Fatalf("expected SchemaError, got %v", err)
			}
			if schemaErr.Field != tc.field {
				t.Fatalf("expected field %s, got %q", tc.field, schemaErr.Field)
			}
		})
	}
}

func TestLoadUnknownPlatform(t *testing.T) {
	_, err := testLoader().Load(jsonSource(`{"platform": "notareal platform"}`))

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if validationErr.Field != "platform" || validationErr.Value != "notareal platform" {
		t.Fatalf("unexpected validation error: %+v", validationErr)
	}
}

func TestLoadUnknownLogLevel(t *testing.T) {
	_, err := testLoader().Load(jsonSource(`{"logLevel": "loud"}`))

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestLoadUnknownManager(t *testing.T) {
	_, err := testLoader().Load(jsonSource(`{"enabledManagers": ["pep621", "not-a-manager"]}`))

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if validationErr.Field != "enabledManagers[1]" {
		t.Fatalf("expected field enabledManagers[1], got %q", validationErr.Field)
	}
}

func TestLoadManagersRoundTrip(t *testing.T) {
	doc := mustLoad(t, testLoader(), jsonSource(`{
  "enabledManagers": ["pep621", "custom.regex", "pep621"],
  "packageRules": [{"matchManagers": ["pep621"], "matchUpdateTypes": ["minor", "patch"]}]
}`))

	if diff := cmp.Diff([]string{"pep621", "custom.regex"}, doc.EnabledManagers()); diff != "" {
		t.Fatalf("enabledManagers mismatch (-want +got):\n%s", diff)
	}
	rule := doc.PackageRules()[0]
	if diff := cmp.Diff([]string{"pep621"}, rule.MatchManagers); diff != "" {
		t.Fatalf("matchManagers mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"minor", "patch"}, rule.MatchUpdateTypes); diff != "" {
		t.Fatalf("matchUpdateTypes mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadLockFileMaintenanceKeepsBooleanType(t *testing.T) {
	doc := mustLoad(t, testLoader(), jsonSource(`{"lockFileMaintenance": {"enabled": true, "lockfile": "uv.lock"}}`))
	if diff := cmp.Diff(LockFileMaintenance{Enabled: true, Lockfile: "uv.lock"}, doc.LockFileMaintenance()); diff != "" {
		t.Fatalf("lockFileMaintenance mismatch (-want +got):\n%s", diff)
	}

	_, err := testLoader().Load(jsonSource(`{"lockFileMaintenance": {"enabled": "true"}}`))
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError for a string boolean, got %v", err)
	}
	if schemaErr.Field != "lockFileMaintenance.enabled" {
		t.Fatalf("expected field lockFileMaintenance.enabled, got %q", schemaErr.Field)
	}
}

func TestLoadDefaults(t *testing.T) {
	doc := mustLoad(t, testLoader(), jsonSource(`{}`))

	if doc.Platform() != PlatformGitHub {
		t.Fatalf("expected default platform github, got %q", doc.Platform())
	}
	if doc.LogLevel() != LogLevelInfo {
		t.Fatalf("expected default log level info, got %q", doc.LogLevel())
	}
	if !doc.Onboarding() {
		t.Fatalf("expected onboarding enabled by default")
	}
	if diff := cmp.Diff([]string{"config:recommended"}, doc.OnboardingConfig().Extends); diff != "" {
		t.Fatalf("default onboarding extends mismatch (-want +got):\n%s", diff)
	}
	if doc.CacheDir() != defaultCacheDir() {
		t.Fatalf("expected default cache dir %q, got %q", defaultCacheDir(), doc.CacheDir())
	}
	if doc.LockFileMaintenance().Enabled {
		t.Fatalf("expected lock file maintenance disabled by default")
	}
	if !doc.ManagerEnabled("npm") {
		t.Fatalf("expected every manager enabled when enabledManagers is empty")
	}
}

func TestLoadNullKeepsDefault(t *testing.T) {
	doc := mustLoad(t, testLoader(), jsonSource(`{"platform": null}`))
	if doc.Platform() != PlatformGitHub {
		t.Fatalf("expected null to keep the default platform, got %q", doc.Platform())
	}
}

func TestLoadRejectsUnknownOption(t *testing.T) {
	_, err := testLoader().Load(jsonSource(`{"platfrom": "gitlab"}`))

	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if schemaErr.Field != "platfrom" || schemaErr.Line != 1 {
		t.Fatalf("unexpected schema error: %+v", schemaErr)
	}
}

func TestLoadRejectsWrongShape(t *testing.T) {
	cases := map[string]string{
		"labels":       `{"labels": "renovate"}`,
		"hostRules[0]": `{"hostRules": ["pypi.org"]}`,
		"<root>":       `["platform"]`,
		"onboarding":   `{"onboarding": 1}`,
	}

	for field, body := range cases {
		_, err := testLoader().Load(jsonSource(body))
		var schemaErr *SchemaError
		if !errors.As(err, &schemaErr) {
			t.Fatalf("%s: expected SchemaError, got %v", field, err)
		}
		if schemaErr.Field != field {
			t.Fatalf("expected field %q, got %q", field, schemaErr.Field)
		}
	}
}

func TestLoadHostRuleRequiresMatchHost(t *testing.T) {
	_, err := testLoader().Load(jsonSource(`{"hostRules": [{"username": "admin"}]}`))

	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if schemaErr.Field != "hostRules[0].matchHost" {
		t.Fatalf("expected field hostRules[0].matchHost, got %q", schemaErr.Field)
	}
}

func TestLoadPackageRuleRequiresSelector(t *testing.T) {
	_, err := testLoader().Load(jsonSource(`{"packageRules": [{"automerge": true}]}`))

	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if schemaErr.Field != "packageRules[0]" {
		t.Fatalf("expected field packageRules[0], got %q", schemaErr.Field)
	}
}

func TestLoadValidatesSupplementalOptions(t *testing.T) {
	cases := map[string]string{
		"timezone":               `{"timezone": "Mars/Olympus_Mons"}`,
		"prHourlyLimit":          `{"prHourlyLimit": -1}`,
		"prConcurrentLimit":      `{"prConcurrentLimit": 1.5}`,
		"labels[0]":              `{"labels": [" renovate"]}`,
		"extends[0]":             `{"extends": ["config: recommended"]}`,
		"hostRules[0].matchHost": `{"hostRules": [{"matchHost": "https://"}]}`,
	}

	for field, body := range cases {
		_, err := testLoader().Load(jsonSource(body))
		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			t.Fatalf("%s: expected ValidationError, got %v", field, err)
		}
		if validationErr.Field != field {
			t.Fatalf("expected field %q, got %q", field, validationErr.Field)
		}
	}
}

func TestLoadMalformedSource(t *testing.T) {
	_, err := testLoader().Load(jsonSource("{\n  \"platform\": \"gitlab\",\n  \"labels\": [\n}"))

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if parseErr.Line != 4 {
		t.Fatalf("expected error on line 4, got %d", parseErr.Line)
	}
	if parseErr.Source != "renovate.json" {
		t.Fatalf("expected source name in error, got %q", parseErr.Source)
	}
}

func TestLoadEmptySource(t *testing.T) {
	_, err := testLoader().Load(jsonSource("  \n"))
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError for an empty document, got %v", err)
	}
}

func TestDocumentAccessorsReturnCopies(t *testing.T) {
	doc := mustLoad(t, testLoader(), Source{Name: "config.js", Format: FormatJS, Data: []byte(moduleConfig)})

	got := doc.Labels()
	got[0] = "changed"
	rules := doc.PackageRules()
	rules[0].MatchManagers[0] = "npm"
	extends := doc.OnboardingConfig().Extends
	extends[0] = "changed"

	if doc.Labels()[0] != "renovate" {
		t.Fatalf("expected labels to be unaffected by caller mutation")
	}
	if doc.PackageRules()[0].MatchManagers[0] != "pep621" {
		t.Fatalf("expected package rules to be unaffected by caller mutation")
	}
	if doc.OnboardingConfig().Extends[0] != "config:recommended" {
		t.Fatalf("expected onboarding config to be unaffected by caller mutation")
	}
}

func TestDocumentManagerHelpers(t *testing.T) {
	doc := mustLoad(t, testLoader(), jsonSource(`{
  "labels": ["renovate", "dependencies"],
  "enabledManagers": ["pep621", "npm"],
  "ignoreDeps": ["python"],
  "packageRules": [
    {"matchManagers": ["pep621"], "addLabels": ["python", "renovate"]},
    {"matchManagers": ["npm"], "labels": ["javascript"]},
    {"matchManagers": ["pep621"], "matchPackageNames": ["ray"], "addLabels": ["ray"]},
    {"matchPackageNames": ["requests"], "automerge": true}
  ]
}`))

	if !doc.ManagerEnabled("pep621") || doc.ManagerEnabled("gomod") {
		t.Fatalf("unexpected ManagerEnabled results")
	}
	if !doc.IsIgnored("python") || doc.IsIgnored("ray") {
		t.Fatalf("unexpected IsIgnored results")
	}
	if got := len(doc.RulesForManager("pep621")); got != 3 {
		t.Fatalf("expected 3 rules applicable to pep621, got %d", got)
	}
	if diff := cmp.Diff([]string{"renovate", "dependencies", "python"}, doc.LabelsForManager("pep621")); diff != "" {
		t.Fatalf("pep621 labels mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"javascript"}, doc.LabelsForManager("npm")); diff != "" {
		t.Fatalf("npm labels mismatch (-want +got):\n%s", diff)
	}
}

func TestDocumentMarshalJSONRedactsSecrets(t *testing.T) {
	doc := mustLoad(t, testLoader(), Source{Name: "config.js", Format: FormatJS, Data: []byte(moduleConfig)})

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal document: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "s3cret") {
		t.Fatalf("expected password to be redacted, got %s", out)
	}
	if !strings.Contains(out, `"password":"***"`) {
		t.Fatalf("expected redacted password marker, got %s", out)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal rendered document: %v", err)
	}
	lfm, ok := decoded["lockFileMaintenance"].(map[string]any)
	if !ok || lfm["enabled"] != true || lfm["lockfile"] != "uv.lock" {
		t.Fatalf("unexpected lockFileMaintenance rendering: %v", decoded["lockFileMaintenance"])
	}
}
