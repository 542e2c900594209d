package config

import (
	"os"
	"regexp"
)

// EnvLookup resolves environment variables referenced by credential fields.
type EnvLookup interface {
	LookupEnv(key string) (string, bool)
}

// OSEnv reads the process environment.
type OSEnv struct{}

func (OSEnv) LookupEnv(key string) (string, bool) {
	return os.LookupEnv(key)
}

// MapEnv serves variables from a fixed map.
type MapEnv map[string]string

func (m MapEnv) LookupEnv(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

var (
	envNameRe     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	envTemplateRe = regexp.MustCompile(`^\{\{\s*env\.([A-Za-z_][A-Za-z0-9_]*)\s*\}\}$`)
)

func validEnvName(name string) bool {
	return envNameRe.MatchString(name)
}

// envTemplate reports the variable named by a "{{ env.NAME }}" string.
func envTemplate(s string) (string, bool) {
	m := envTemplateRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}
