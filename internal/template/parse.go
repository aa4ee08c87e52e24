package template

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

const (
	maxDepth     = 10
	snippetRunes = 10
)

// ParseText parses input with the default function library.
func ParseText(input string) (Text, error) {
	return Default().ParseText(input)
}

// ParseText converts one raw authoring string into Text. Literal text is
// passed through untouched; only a malformed {...} block is an error.
func (r *Registry) ParseText(input string) (Text, error) {
	p := &parser{src: []rune(input), funcs: r}
	text, err := p.parseText()
	if err != nil {
		return nil, err
	}
	return text, nil
}

// parser is a single-pass cursor over the source runes. It never backtracks.
type parser struct {
	src   []rune
	pos   int
	depth int
	funcs *Registry
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek(offset int) (rune, bool) {
	i := p.pos + offset
	if i >= len(p.src) {
		return 0, false
	}
	return p.src[i], true
}

func (p *parser) snippet() string {
	end := p.pos + snippetRunes
	if end > len(p.src) {
		end = len(p.src)
	}
	return string(p.src[p.pos:end])
}

func (p *parser) skipSpace() {
	for !p.eof() && unicode.IsSpace(p.src[p.pos]) {
		p.pos++
	}
}

func (p *parser) parseText() (Text, *Error) {
	var (
		text Text
		buf  strings.Builder
	)
	flush := func() {
		if buf.Len() > 0 {
			text = append(text, &Literal{Value: String(buf.String())})
			buf.Reset()
		}
	}

	for !p.eof() {
		c := p.src[p.pos]
		switch c {
		case '\\':
			next, ok := p.peek(1)
			if ok && (next == '{' || next == '\\') {
				buf.WriteRune(next)
				p.pos += 2
				continue
			}
			buf.WriteRune('\\')
			p.pos++
		case '{':
			flush()
			p.pos++
			call, err := p.parseCall()
			if err != nil {
				return nil, err
			}
			text = append(text, call)
		default:
			buf.WriteRune(c)
			p.pos++
		}
	}
	flush()
	if text == nil {
		text = Text{}
	}
	return text, nil
}

// parseCall parses the body of a call; the opening brace is already consumed.
func (p *parser) parseCall() (*Call, *Error) {
	open := p.pos - 1
	p.depth++
	if p.depth > maxDepth {
		return nil, errorf(open, errTooDeep)
	}
	defer func() { p.depth-- }()

	p.skipSpace()
	start := p.pos
	for !p.eof() {
		c := p.src[p.pos]
		if unicode.IsSpace(c) || c == '{' || c == '}' {
			break
		}
		p.pos++
	}
	name := string(p.src[start:p.pos])
	if name == "" {
		if p.eof() {
			return nil, errorf(open, "Unterminated expression: expected a function name after `{`.")
		}
		return nil, errorf(p.pos, "Expected a function name but found %q.", p.snippet())
	}
	fn, ok := p.funcs.Lookup(name)
	if !ok {
		return nil, unrecognized(start, name)
	}

	call := &Call{Name: name, Args: []Node{}}
	for {
		p.skipSpace()
		if p.eof() {
			return nil, errorf(open, "Unterminated expression: `{%s` is missing a closing `}`.", name)
		}
		c := p.src[p.pos]
		next, _ := p.peek(1)
		switch {
		case c == '}':
			if err := fn.Arity.check(p.pos, name, len(call.Args)); err != nil {
				return nil, err
			}
			p.pos++
			return call, nil
		case c == '{':
			p.pos++
			arg, err := p.parseCall()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
		case c == '\'' || c == '"':
			arg, err := p.parseString()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
		case isDigit(c) || ((c == '-' || c == '.') && isDigit(next)):
			arg, err := p.parseNumber()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
		default:
			return nil, errorf(p.pos, "Expected `}`, `{`, a string, or a number but found %q.", p.snippet())
		}
	}
}

func (p *parser) parseString() (*Literal, *Error) {
	start := p.pos
	quote := p.src[p.pos]
	p.pos++

	var buf strings.Builder
	for {
		if p.eof() {
			return nil, errorf(start, "Unterminated string: expected a closing %c.", quote)
		}
		c := p.src[p.pos]
		switch c {
		case quote:
			p.pos++
			return &Literal{Value: String(buf.String())}, nil
		case '\\':
			next, ok := p.peek(1)
			if !ok {
				return nil, errorf(start, "Unterminated string: expected a closing %c.", quote)
			}
			switch next {
			case 'r':
				buf.WriteRune('\r')
			case 't':
				buf.WriteRune('\t')
			case 'f':
				buf.WriteRune('\f')
			case 'n':
				buf.WriteRune('\n')
			case '\\', '\'', '"':
				buf.WriteRune(next)
			default:
				buf.WriteRune('\\')
				buf.WriteRune(next)
			}
			p.pos += 2
		default:
			buf.WriteRune(c)
			p.pos++
		}
	}
}

func (p *parser) parseNumber() (*Literal, *Error) {
	start := p.pos
	var buf strings.Builder
	if p.src[p.pos] == '-' {
		buf.WriteRune('-')
		p.pos++
	}
	dot := false
	for !p.eof() {
		c := p.src[p.pos]
		if c == '.' && !dot {
			dot = true
		} else if !isDigit(c) {
			break
		}
		buf.WriteRune(c)
		p.pos++
	}
	raw := buf.String()
	if strings.HasSuffix(raw, ".") {
		raw += "0"
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(n, 0) {
		return nil, errorf(start, "Invalid number: %s.", raw)
	}
	return &Literal{Value: Number(n)}, nil
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }
