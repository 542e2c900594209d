package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the type of a parsed Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindObject
	KindEnvRef
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "array"
	case KindObject:
		return "object"
	case KindEnvRef:
		return "environment reference"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a format-independent node produced by every parser. Objects keep
// their members as an ordered list of pairs so duplicate keys survive parsing.
type Value struct {
	Kind   Kind
	Bool   bool
	Number float64
	Str    string // string contents, or the variable name for KindEnvRef
	List   []Value
	Object []Pair
	Line   int
}

// Pair is one key/value member of an object, in source order.
type Pair struct {
	Key   string
	Value Value
	Line  int
}

// DuplicateKey records a key that was declared more than once in one object.
type DuplicateKey struct {
	Path  string
	Lines []int
}

func (d DuplicateKey) String() string {
	lines := make([]string, 0, len(d.Lines))
	for _, l := range d.Lines {
		lines = append(lines, strconv.Itoa(l))
	}
	return fmt.Sprintf("%s (lines %s)", d.Path, strings.Join(lines, ", "))
}

// resolvePairs collapses duplicate keys. The last occurrence's value wins and
// takes the position of the first occurrence, matching object-literal
// assignment. Every collapsed key is reported in declaration order.
func resolvePairs(path string, pairs []Pair) ([]Pair, []DuplicateKey) {
	index := make(map[string]int, len(pairs))
	lines := make(map[string][]int)
	out := make([]Pair, 0, len(pairs))
	var order []string

	for _, p := range pairs {
		if i, ok := index[p.Key]; ok {
			if _, tracked := lines[p.Key]; !tracked {
				order = append(order, p.Key)
				lines[p.Key] = []int{out[i].Line}
			}
			lines[p.Key] = append(lines[p.Key], p.Line)
			out[i].Value = p.Value
			continue
		}
		index[p.Key] = len(out)
		out = append(out, p)
	}

	dups := make([]DuplicateKey, 0, len(order))
	for _, key := range order {
		dups = append(dups, DuplicateKey{Path: joinPath(path, key), Lines: lines[key]})
	}
	return out, dups
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func indexPath(parent string, i int) string {
	return fmt.Sprintf("%s[%d]", parent, i)
}
