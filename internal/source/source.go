// Package source locates raw Renovate configuration documents on disk, in git
// history or through the GitHub contents API.
package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rancher/renovate-config/internal/config"
)

// Candidates lists the file names Renovate checks for repository
// configuration, in priority order.
var Candidates = []string{
	"renovate.json",
	"renovate.json5",
	".github/renovate.json",
	".github/renovate.json5",
	".gitlab/renovate.json",
	".gitlab/renovate.json5",
	".renovaterc",
	".renovaterc.json",
	".renovaterc.json5",
	"config.js",
}

// ErrNoConfig indicates none of the candidate files exist.
var ErrNoConfig = errors.New("no renovate configuration found")

// File reads a local configuration file and detects its format from the name.
func File(path string) (config.Source, error) {
	format, err := config.DetectFormat(path)
	if err != nil {
		return config.Source{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return config.Source{}, fmt.Errorf("read %s: %w", path, err)
	}

	return config.Source{Name: path, Format: format, Data: data}, nil
}

// Discover returns the first candidate file present under dir.
func Discover(dir string) (config.Source, error) {
	for _, name := range Candidates {
		path := filepath.Join(dir, filepath.FromSlash(name))
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return config.Source{}, fmt.Errorf("stat %s: %w", path, err)
		}
		if !info.Mode().IsRegular() {
			continue
		}
		return File(path)
	}
	return config.Source{}, fmt.Errorf("%s: %w", dir, ErrNoConfig)
}

// Resolve reads path when it names a file and discovers a candidate when it
// names a directory.
func Resolve(path string) (config.Source, error) {
	if path == "" {
		path = "."
	}
	info, err := os.Stat(path)
	if err != nil {
		return config.Source{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return Discover(path)
	}
	return File(path)
}

func remoteSource(name, path string, data []byte) (config.Source, error) {
	format, err := config.DetectFormat(path)
	if err != nil {
		return config.Source{}, err
	}
	return config.Source{Name: name, Format: format, Data: data}, nil
}

func displayName(location, ref, path string) string {
	if ref == "" {
		return fmt.Sprintf("%s:%s", location, path)
	}
	return fmt.Sprintf("%s@%s:%s", location, ref, path)
}
