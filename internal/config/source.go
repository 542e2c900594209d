package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format identifies the serialization of a configuration source.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSON5 Format = "json5"
	FormatYAML  Format = "yaml"
	FormatTOML  Format = "toml"
	FormatJS    Format = "js"
)

// Source is a raw configuration document awaiting Load.
type Source struct {
	// Name identifies the document in errors and logs, usually a path.
	Name   string
	Format Format
	Data   []byte
}

// DetectFormat infers the format from a file name.
func DetectFormat(name string) (Format, error) {
	base := strings.ToLower(filepath.Base(name))
	switch base {
	case ".renovaterc":
		return FormatJSON, nil
	}

	switch filepath.Ext(base) {
	case ".json":
		return FormatJSON, nil
	case ".json5":
		return FormatJSON5, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".js", ".cjs", ".mjs":
		return FormatJS, nil
	}
	return "", fmt.Errorf("cannot infer configuration format from %q", name)
}

// ParseFormat validates a user supplied format name.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case FormatJSON, FormatJSON5, FormatYAML, FormatTOML, FormatJS:
		return f, nil
	case "yml":
		return FormatYAML, nil
	case "javascript":
		return FormatJS, nil
	default:
		return "", fmt.Errorf("unsupported configuration format %q", raw)
	}
}

// parseSource turns raw bytes into the root Value. Syntax errors are
// reported as *ParseError.
func parseSource(src Source) (Value, error) {
	if len(strings.TrimSpace(string(src.Data))) == 0 {
		return Value{}, &ParseError{Source: src.Name, Err: fmt.Errorf("document is empty")}
	}

	var (
		root Value
		err  error
	)
	switch src.Format {
	case FormatJSON:
		root, err = parseJSON(src.Data)
	case FormatJSON5:
		root, err = parseLiteral(src.Data, false)
	case FormatJS:
		root, err = parseLiteral(src.Data, true)
	case FormatYAML:
		root, err = parseYAML(src.Data)
	case FormatTOML:
		root, err = parseTOML(src.Data)
	case "":
		return Value{}, &ParseError{Source: src.Name, Err: fmt.Errorf("source format is not set")}
	default:
		return Value{}, &ParseError{Source: src.Name, Err: fmt.Errorf("unsupported format %q", src.Format)}
	}
	if err != nil {
		if perr, ok := err.(*ParseError); ok {
			perr.Source = src.Name
			return Value{}, perr
		}
		return Value{}, &ParseError{Source: src.Name, Err: err}
	}
	return root, nil
}
