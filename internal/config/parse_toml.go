package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// parseTOML decodes into generic maps and restores declaration order from the
// decoder metadata. TOML itself forbids duplicate keys, so those surface as a
// ParseError from the decoder.
func parseTOML(data []byte) (Value, error) {
	var raw map[string]any
	md, err := toml.Decode(string(data), &raw)
	if err != nil {
		var perr toml.ParseError
		if errors.As(err, &perr) {
			return Value{}, &ParseError{Line: perr.Position.Line, Err: errors.New(perr.Message)}
		}
		return Value{}, &ParseError{Err: err}
	}

	order := make(map[string]int)
	for i, key := range md.Keys() {
		k := strings.Join(key, "\x00")
		if _, ok := order[k]; !ok {
			order[k] = i
		}
	}
	t := &tomlTree{order: order}
	return t.value(nil, raw)
}

type tomlTree struct {
	order map[string]int
}

func (t *tomlTree) value(path []string, raw any) (Value, error) {
	switch v := raw.(type) {
	case map[string]any:
		return t.table(path, v)
	case []map[string]any:
		out := Value{Kind: KindList}
		for _, item := range v {
			elem, err := t.table(path, item)
			if err != nil {
				return Value{}, err
			}
			out.List = append(out.List, elem)
		}
		return out, nil
	case []any:
		out := Value{Kind: KindList}
		for _, item := range v {
			elem, err := t.value(path, item)
			if err != nil {
				return Value{}, err
			}
			out.List = append(out.List, elem)
		}
		return out, nil
	case string:
		return Value{Kind: KindString, Str: v}, nil
	case bool:
		return Value{Kind: KindBool, Bool: v}, nil
	case int64:
		return Value{Kind: KindNumber, Number: float64(v)}, nil
	case float64:
		return Value{Kind: KindNumber, Number: v}, nil
	case time.Time:
		return Value{Kind: KindString, Str: v.Format(time.RFC3339)}, nil
	}
	return Value{}, &ParseError{Err: fmt.Errorf("unsupported TOML value of type %T at %s", raw, strings.Join(path, "."))}
}

func (t *tomlTree) table(path []string, m map[string]any) (Value, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		oi, iok := t.position(path, keys[i])
		oj, jok := t.position(path, keys[j])
		switch {
		case iok && jok:
			return oi < oj
		case iok != jok:
			return iok
		default:
			return keys[i] < keys[j]
		}
	})

	out := Value{Kind: KindObject}
	for _, k := range keys {
		child := append(append([]string(nil), path...), k)
		member, err := t.value(child, m[k])
		if err != nil {
			return Value{}, err
		}
		out.Object = append(out.Object, Pair{Key: k, Value: member})
	}
	return out, nil
}

func (t *tomlTree) position(path []string, key string) (int, bool) {
	k := strings.Join(append(append([]string(nil), path...), key), "\x00")
	i, ok := t.order[k]
	return i, ok
}
