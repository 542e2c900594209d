package labels

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxNameLength is the longest label name accepted by the hosting platforms.
const MaxNameLength = 50

var (
	errEmptyName       = errors.New("label cannot be empty")
	errSurroundingWS   = errors.New("label cannot start or end with whitespace")
	errControlCharName = errors.New("label cannot contain control characters")
)

// ValidateName ensures a label name can be created on the hosting platform.
func ValidateName(name string) error {
	if name == "" {
		return errEmptyName
	}

	if strings.TrimSpace(name) != name {
		return errSurroundingWS
	}

	if n := utf8.RuneCountInString(name); n > MaxNameLength {
		return fmt.Errorf("label is %d characters long, the limit is %d", n, MaxNameLength)
	}

	if strings.IndexFunc(name, unicode.IsControl) >= 0 {
		return errControlCharName
	}

	return nil
}

// Merge concatenates label groups, dropping repeats while preserving the
// order in which each name was first seen.
func Merge(groups ...[]string) []string {
	result := make([]string, 0)
	seen := make(map[string]struct{})

	for _, group := range groups {
		for _, name := range group {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			result = append(result, name)
		}
	}

	return result
}

// Sorted returns a deduplicated, sorted copy of names.
func Sorted(names []string) []string {
	out := slices.Clone(names)
	slices.Sort(out)
	return slices.Compact(out)
}
