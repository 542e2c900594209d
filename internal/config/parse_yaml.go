package config

import (
	"fmt"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"
)

var yamlLineRe = regexp.MustCompile(`line (\d+)`)

// parseYAML decodes into a yaml.Node, which keeps mapping order and does not
// reject duplicate keys the way decoding into a map does.
func parseYAML(data []byte) (Value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		line := 0
		if m := yamlLineRe.FindStringSubmatch(err.Error()); m != nil {
			line, _ = strconv.Atoi(m[1])
		}
		return Value{}, &ParseError{Line: line, Err: err}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return Value{}, &ParseError{Err: fmt.Errorf("document is empty")}
	}
	var tree yamlTree
	return tree.value(doc.Content[0], 0)
}

const (
	maxYAMLDepth = 64
	// maxYAMLNodes bounds the tree after alias expansion.
	maxYAMLNodes = 10000
)

type yamlTree struct {
	nodes int
}

func (t *yamlTree) value(n *yaml.Node, depth int) (Value, error) {
	if depth > maxYAMLDepth {
		return Value{}, &ParseError{Line: n.Line, Err: fmt.Errorf("document nests deeper than %d levels", maxYAMLDepth)}
	}
	t.nodes++
	if t.nodes > maxYAMLNodes {
		return Value{}, &ParseError{Line: n.Line, Err: fmt.Errorf("document expands to more than %d nodes", maxYAMLNodes)}
	}

	switch n.Kind {
	case yaml.AliasNode:
		if n.Alias == nil {
			return Value{}, &ParseError{Line: n.Line, Err: fmt.Errorf("unresolved alias %q", n.Value)}
		}
		v, err := t.value(n.Alias, depth+1)
		if err != nil {
			return Value{}, err
		}
		v.Line = n.Line
		return v, nil
	case yaml.MappingNode:
		v := Value{Kind: KindObject, Line: n.Line}
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, val := n.Content[i], n.Content[i+1]
			if k.Kind != yaml.ScalarNode {
				return Value{}, &ParseError{Line: k.Line, Err: fmt.Errorf("mapping keys must be scalars")}
			}
			if k.Tag == "!!merge" {
				return Value{}, &ParseError{Line: k.Line, Err: fmt.Errorf("merge keys are not supported")}
			}
			member, err := t.value(val, depth+1)
			if err != nil {
				return Value{}, err
			}
			v.Object = append(v.Object, Pair{Key: k.Value, Value: member, Line: k.Line})
		}
		return v, nil
	case yaml.SequenceNode:
		v := Value{Kind: KindList, Line: n.Line}
		for _, item := range n.Content {
			elem, err := t.value(item, depth+1)
			if err != nil {
				return Value{}, err
			}
			v.List = append(v.List, elem)
		}
		return v, nil
	case yaml.ScalarNode:
		return yamlScalar(n)
	}
	return Value{}, &ParseError{Line: n.Line, Err: fmt.Errorf("unsupported YAML node")}
}

func yamlScalar(n *yaml.Node) (Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return Value{Kind: KindNull, Line: n.Line}, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return Value{}, &ParseError{Line: n.Line, Err: err}
		}
		return Value{Kind: KindBool, Bool: b, Line: n.Line}, nil
	case "!!int", "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return Value{}, &ParseError{Line: n.Line, Err: err}
		}
		return Value{Kind: KindNumber, Number: f, Line: n.Line}, nil
	default:
		return Value{Kind: KindString, Str: n.Value, Line: n.Line}, nil
	}
}
