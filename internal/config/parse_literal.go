package config

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"
)

// parseLiteral reads a JSON5 document, or with module set, a JavaScript
// config module of the form `module.exports = {...}` / `export default {...}`.
// Only static data is accepted; process.env references become KindEnvRef.
func parseLiteral(data []byte, module bool) (Value, error) {
	p := &literalParser{lex: &lexer{src: data, line: 1}, module: module}
	if err := p.advance(); err != nil {
		return Value{}, err
	}

	if module {
		if err := p.modulePrefix(); err != nil {
			return Value{}, err
		}
	}

	root, err := p.value()
	if err != nil {
		return Value{}, err
	}

	if module && p.tok.is(';') {
		if err := p.advance(); err != nil {
			return Value{}, err
		}
	}
	if p.tok.kind != tokEOF {
		return Value{}, p.unexpected("end of document")
	}
	return root, nil
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokPunct
	tokString
	tokNumber
	tokIdent
)

type token struct {
	kind  tokenKind
	text  string
	punct byte
	num   float64
	line  int
}

func (t token) is(punct byte) bool {
	return t.kind == tokPunct && t.punct == punct
}

func (t token) describe() string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokPunct:
		return fmt.Sprintf("%q", string(t.punct))
	case tokString:
		return fmt.Sprintf("string %q", t.text)
	case tokNumber:
		return "number " + t.text
	default:
		return fmt.Sprintf("identifier %q", t.text)
	}
}

type literalParser struct {
	lex    *lexer
	tok    token
	module bool
}

func (p *literalParser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *literalParser) unexpected(want string) error {
	return &ParseError{Line: p.tok.line, Err: fmt.Errorf("expected %s, found %s", want, p.tok.describe())}
}

func (p *literalParser) expectPunct(c byte) error {
	if !p.tok.is(c) {
		return p.unexpected(fmt.Sprintf("%q", string(c)))
	}
	return p.advance()
}

func (p *literalParser) expectIdent(name string) error {
	if p.tok.kind != tokIdent || p.tok.text != name {
		return p.unexpected(fmt.Sprintf("%q", name))
	}
	return p.advance()
}

func (p *literalParser) modulePrefix() error {
	if p.tok.kind != tokIdent {
		return p.unexpected("module.exports or export default")
	}
	switch p.tok.text {
	case "module":
		if err := p.advance(); err != nil {
			return err
		}
		if err := p.expectPunct('.'); err != nil {
			return err
		}
		if err := p.expectIdent("exports"); err != nil {
			return err
		}
		return p.expectPunct('=')
	case "export":
		if err := p.advance(); err != nil {
			return err
		}
		return p.expectIdent("default")
	default:
		return p.unexpected("module.exports or export default")
	}
}

func (p *literalParser) value() (Value, error) {
	tok := p.tok
	switch tok.kind {
	case tokPunct:
		switch tok.punct {
		case '{':
			return p.object()
		case '[':
			return p.array()
		case '-', '+':
			if err := p.advance(); err != nil {
				return Value{}, err
			}
			if p.tok.kind != tokNumber {
				return Value{}, p.unexpected("number")
			}
			n := p.tok.num
			if tok.punct == '-' {
				n = -n
			}
			return Value{Kind: KindNumber, Number: n, Line: tok.line}, p.advance()
		}
	case tokString:
		return Value{Kind: KindString, Str: tok.text, Line: tok.line}, p.advance()
	case tokNumber:
		return Value{Kind: KindNumber, Number: tok.num, Line: tok.line}, p.advance()
	case tokIdent:
		switch tok.text {
		case "true", "false":
			return Value{Kind: KindBool, Bool: tok.text == "true", Line: tok.line}, p.advance()
		case "null":
			return Value{Kind: KindNull, Line: tok.line}, p.advance()
		case "process":
			if p.module {
				return p.envRef()
			}
		}
		return Value{}, &ParseError{Line: tok.line, Err: fmt.Errorf("unsupported expression %q: only static values are allowed", tok.text)}
	}
	return Value{}, p.unexpected("value")
}

func (p *literalParser) object() (Value, error) {
	v := Value{Kind: KindObject, Line: p.tok.line}
	if err := p.advance(); err != nil {
		return Value{}, err
	}

	for !p.tok.is('}') {
		var key string
		switch p.tok.kind {
		case tokIdent, tokString, tokNumber:
			key = p.tok.text
		default:
			return Value{}, p.unexpected("object key")
		}
		keyLine := p.tok.line
		if err := p.advance(); err != nil {
			return Value{}, err
		}
		if err := p.expectPunct(':'); err != nil {
			return Value{}, err
		}

		member, err := p.value()
		if err != nil {
			return Value{}, err
		}
		v.Object = append(v.Object, Pair{Key: key, Value: member, Line: keyLine})

		if p.tok.is(',') {
			if err := p.advance(); err != nil {
				return Value{}, err
			}
			continue
		}
		if !p.tok.is('}') {
			return Value{}, p.unexpected(`"," or "}"`)
		}
	}
	return v, p.advance()
}

func (p *literalParser) array() (Value, error) {
	v := Value{Kind: KindList, Line: p.tok.line}
	if err := p.advance(); err != nil {
		return Value{}, err
	}

	for !p.tok.is(']') {
		elem, err := p.value()
		if err != nil {
			return Value{}, err
		}
		v.List = append(v.List, elem)

		if p.tok.is(',') {
			if err := p.advance(); err != nil {
				return Value{}, err
			}
			continue
		}
		if !p.tok.is(']') {
			return Value{}, p.unexpected(`"," or "]"`)
		}
	}
	return v, p.advance()
}

// envRef parses process.env.NAME and process.env["NAME"].
func (p *literalParser) envRef() (Value, error) {
	line := p.tok.line
	if err := p.advance(); err != nil {
		return Value{}, err
	}
	if err := p.expectPunct('.'); err != nil {
		return Value{}, err
	}
	if err := p.expectIdent("env"); err != nil {
		return Value{}, err
	}

	var name string
	switch {
	case p.tok.is('.'):
		if err := p.advance(); err != nil {
			return Value{}, err
		}
		if p.tok.kind != tokIdent {
			return Value{}, p.unexpected("environment variable name")
		}
		name = p.tok.text
		if err := p.advance(); err != nil {
			return Value{}, err
		}
	case p.tok.is('['):
		if err := p.advance(); err != nil {
			return Value{}, err
		}
		if p.tok.kind != tokString {
			return Value{}, p.unexpected("environment variable name")
		}
		name = p.tok.text
		if err := p.advance(); err != nil {
			return Value{}, err
		}
		if err := p.expectPunct(']'); err != nil {
			return Value{}, err
		}
	default:
		return Value{}, p.unexpected(`"." or "["`)
	}

	if !validEnvName(name) {
		return Value{}, &ParseError{Line: line, Err: fmt.Errorf("invalid environment variable name %q", name)}
	}
	return Value{Kind: KindEnvRef, Str: name, Line: line}, nil
}

type lexer struct {
	src  []byte
	pos  int
	line int
}

func (l *lexer) next() (token, error) {
	if err := l.skipSpace(); err != nil {
		return token{}, err
	}
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, line: l.line}, nil
	}

	c := l.src[l.pos]
	switch {
	case strings.IndexByte("{}[]:,;=.-+", c) >= 0:
		// a leading dot may start a number such as .5
		if c == '.' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1]) {
			return l.number()
		}
		l.pos++
		return token{kind: tokPunct, punct: c, line: l.line}, nil
	case c == '"' || c == '\'' || c == '`':
		return l.string(c)
	case isDigit(c):
		return l.number()
	case isIdentStart(rune(c)) || c >= utf8.RuneSelf:
		return l.ident()
	}
	return token{}, &ParseError{Line: l.line, Err: fmt.Errorf("unexpected character %q", c)}
}

func (l *lexer) skipSpace() error {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\n':
			l.line++
			l.pos++
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			l.pos++
		case c == '/' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '/':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		case c == '/' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '*':
			start := l.line
			end := strings.Index(string(l.src[l.pos+2:]), "*/")
			if end < 0 {
				return &ParseError{Line: start, Err: fmt.Errorf("unterminated block comment")}
			}
			comment := l.src[l.pos : l.pos+2+end+2]
			l.line += strings.Count(string(comment), "\n")
			l.pos += len(comment)
		default:
			return nil
		}
	}
	return nil
}

func (l *lexer) string(quote byte) (token, error) {
	start := l.line
	l.pos++
	var b strings.Builder

	for {
		if l.pos >= len(l.src) {
			return token{}, &ParseError{Line: start, Err: fmt.Errorf("unterminated string")}
		}
		c := l.src[l.pos]
		switch {
		case c == quote:
			l.pos++
			return token{kind: tokString, text: b.String(), line: start}, nil
		case c == '\n' && quote != '`':
			return token{}, &ParseError{Line: l.line, Err: fmt.Errorf("newline in string")}
		case c == '$' && quote == '`' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '{':
			return token{}, &ParseError{Line: l.line, Err: fmt.Errorf("template interpolation is not supported")}
		case c == '\\':
			if err := l.escape(&b); err != nil {
				return token{}, err
			}
		default:
			if c == '\n' {
				l.line++
			}
			b.WriteByte(c)
			l.pos++
		}
	}
}

func (l *lexer) escape(b *strings.Builder) error {
	l.pos++
	if l.pos >= len(l.src) {
		return &ParseError{Line: l.line, Err: fmt.Errorf("unterminated escape sequence")}
	}
	c := l.src[l.pos]
	l.pos++

	switch c {
	case 'n':
		b.WriteByte('\n')
	case 't':
		b.WriteByte('\t')
	case 'r':
		b.WriteByte('\r')
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case 'v':
		b.WriteByte('\v')
	case '0':
		b.WriteByte(0)
	case '\r':
		// line continuation
		if l.pos < len(l.src) && l.src[l.pos] == '\n' {
			l.pos++
		}
		l.line++
	case '\n':
		l.line++
	case 'x', 'u':
		width := 2
		if c == 'u' {
			width = 4
		}
		if l.pos+width > len(l.src) {
			return &ParseError{Line: l.line, Err: fmt.Errorf("short \\%c escape", c)}
		}
		n, err := strconv.ParseUint(string(l.src[l.pos:l.pos+width]), 16, 32)
		if err != nil {
			return &ParseError{Line: l.line, Err: fmt.Errorf("invalid \\%c escape: %w", c, err)}
		}
		l.pos += width
		r := rune(n)
		if c == 'u' && utf16.IsSurrogate(r) {
			if low, ok := l.lowSurrogate(); ok {
				r = utf16.DecodeRune(r, low)
			}
		}
		b.WriteRune(r)
	default:
		b.WriteByte(c)
	}
	return nil
}

// lowSurrogate consumes a following \uDC00-\uDFFF escape, if there is one.
func (l *lexer) lowSurrogate() (rune, bool) {
	if l.pos+6 > len(l.src) || l.src[l.pos] != '\\' || l.src[l.pos+1] != 'u' {
		return 0, false
	}
	n, err := strconv.ParseUint(string(l.src[l.pos+2:l.pos+6]), 16, 32)
	if err != nil || n < 0xDC00 || n > 0xDFFF {
		return 0, false
	}
	l.pos += 6
	return rune(n), true
}

func (l *lexer) number() (token, error) {
	start := l.pos
	if l.pos+1 < len(l.src) && l.src[l.pos] == '0' && (l.src[l.pos+1] == 'x' || l.src[l.pos+1] == 'X') {
		l.pos += 2
		for l.pos < len(l.src) && isHexDigit(l.src[l.pos]) {
			l.pos++
		}
	} else {
		for l.pos < len(l.src) {
			c := l.src[l.pos]
			if isDigit(c) || c == '.' || c == '_' {
				l.pos++
				continue
			}
			if (c == 'e' || c == 'E') && l.pos+1 < len(l.src) {
				l.pos++
				if l.src[l.pos] == '+' || l.src[l.pos] == '-' {
					l.pos++
				}
				continue
			}
			break
		}
	}

	text := string(l.src[start:l.pos])
	clean := strings.ReplaceAll(text, "_", "")
	var (
		n   float64
		err error
	)
	if strings.HasPrefix(strings.ToLower(clean), "0x") {
		var u uint64
		u, err = strconv.ParseUint(clean[2:], 16, 64)
		n = float64(u)
	} else {
		n, err = strconv.ParseFloat(clean, 64)
	}
	if err != nil {
		return token{}, &ParseError{Line: l.line, Err: fmt.Errorf("invalid number %q", text)}
	}
	return token{kind: tokNumber, text: text, num: n, line: l.line}, nil
}

func (l *lexer) ident() (token, error) {
	start := l.pos
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRune(l.src[l.pos:])
		if l.pos == start && !isIdentStart(r) {
			return token{}, &ParseError{Line: l.line, Err: fmt.Errorf("unexpected character %q", r)}
		}
		if !isIdentStart(r) && !unicode.IsDigit(r) {
			break
		}
		l.pos += size
	}
	return token{kind: tokIdent, text: string(l.src[start:l.pos]), line: l.line}, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}
