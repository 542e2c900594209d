package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// jsonParser walks the token stream instead of unmarshalling into a map so
// that member order and duplicate keys are preserved.
type jsonParser struct {
	dec  *json.Decoder
	data []byte
}

func parseJSON(data []byte) (Value, error) {
	p := &jsonParser{dec: json.NewDecoder(bytes.NewReader(data)), data: data}
	p.dec.UseNumber()

	root, err := p.value()
	if err != nil {
		return Value{}, err
	}

	if _, err := p.dec.Token(); !errors.Is(err, io.EOF) {
		if err != nil {
			return Value{}, p.fail(err)
		}
		return Value{}, &ParseError{Line: p.line(), Err: fmt.Errorf("unexpected data after top-level value")}
	}
	return root, nil
}

func (p *jsonParser) value() (Value, error) {
	tok, err := p.dec.Token()
	if err != nil {
		return Value{}, p.fail(err)
	}
	line := p.line()

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return p.object(line)
		case '[':
			return p.array(line)
		}
		return Value{}, &ParseError{Line: line, Err: fmt.Errorf("unexpected %q", rune(t))}
	case bool:
		return Value{Kind: KindBool, Bool: t, Line: line}, nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, &ParseError{Line: line, Err: fmt.Errorf("invalid number %s: %w", t, err)}
		}
		return Value{Kind: KindNumber, Number: f, Line: line}, nil
	case string:
		return Value{Kind: KindString, Str: t, Line: line}, nil
	case nil:
		return Value{Kind: KindNull, Line: line}, nil
	}
	return Value{}, &ParseError{Line: line, Err: fmt.Errorf("unexpected token %v", tok)}
}

func (p *jsonParser) object(line int) (Value, error) {
	v := Value{Kind: KindObject, Line: line}
	for p.dec.More() {
		tok, err := p.dec.Token()
		if err != nil {
			return Value{}, p.fail(err)
		}
		key, ok := tok.(string)
		if !ok {
			return Value{}, &ParseError{Line: p.line(), Err: fmt.Errorf("object key must be a string")}
		}
		keyLine := p.line()

		member, err := p.value()
		if err != nil {
			return Value{}, err
		}
		v.Object = append(v.Object, Pair{Key: key, Value: member, Line: keyLine})
	}
	if _, err := p.dec.Token(); err != nil {
		return Value{}, p.fail(err)
	}
	return v, nil
}

func (p *jsonParser) array(line int) (Value, error) {
	v := Value{Kind: KindList, Line: line}
	for p.dec.More() {
		elem, err := p.value()
		if err != nil {
			return Value{}, err
		}
		v.List = append(v.List, elem)
	}
	if _, err := p.dec.Token(); err != nil {
		return Value{}, p.fail(err)
	}
	return v, nil
}

func (p *jsonParser) line() int {
	return lineAt(p.data, int(p.dec.InputOffset()))
}

func (p *jsonParser) fail(err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &ParseError{Line: lineAt(p.data, int(syntaxErr.Offset)), Err: err}
	}
	if errors.Is(err, io.EOF) {
		return &ParseError{Line: lineAt(p.data, len(p.data)), Err: io.ErrUnexpectedEOF}
	}
	return &ParseError{Line: p.line(), Err: err}
}

// lineAt returns the 1-based line containing byte offset off.
func lineAt(data []byte, off int) int {
	if off > len(data) {
		off = len(data)
	}
	if off < 0 {
		off = 0
	}
	return bytes.Count(data[:off], []byte{'\n'}) + 1
}
