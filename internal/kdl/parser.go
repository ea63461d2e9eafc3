package kdl

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError reports a syntax error with its source line.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// Parse parses a source document.
func Parse(src string) (*Document, error) {
	p := &parser{src: src, line: 1, bol: true}
	doc, err := p.parseDocument(false)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

type parser struct {
	src  string
	pos  int
	line int
	// bol tracks whether only whitespace has been seen since the last
	// newline, so node indentation can be captured.
	bol bool
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte { return p.src[p.pos] }

func (p *parser) errf(format string, args ...any) error {
	return &ParseError{Line: p.line, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) parseDocument(nested bool) (*Document, error) {
	doc := &Document{}
	for {
		indent, err := p.skipToContent()
		if err != nil {
			return nil, err
		}
		if p.eof() {
			if nested {
				return nil, p.errf("unexpected end of input, missing '}'")
			}
			return doc, nil
		}
		if p.peek() == '}' {
			if !nested {
				return nil, p.errf("unexpected '}'")
			}
			p.pos++
			return doc, nil
		}
		node, err := p.parseNode(indent)
		if err != nil {
			return nil, err
		}
		doc.Nodes = append(doc.Nodes, node)
	}
}

// skipToContent consumes whitespace, node terminators and comments,
// returning the leading whitespace of the line the next content
// starts on.
func (p *parser) skipToContent() (string, error) {
	var indent strings.Builder
	for !p.eof() {
		c := p.peek()
		switch {
		case c == '\n':
			p.line++
			p.pos++
			p.bol = true
			indent.Reset()
		case c == '\r', c == ';':
			p.pos++
			p.bol = false
		case c == ' ' || c == '\t':
			if p.bol {
				indent.WriteByte(c)
			}
			p.pos++
		case strings.HasPrefix(p.src[p.pos:], "//"):
			p.skipLineComment()
		case strings.HasPrefix(p.src[p.pos:], "/*"):
			if err := p.skipBlockComment(); err != nil {
				return "", err
			}
		default:
			p.bol = false
			return indent.String(), nil
		}
	}
	return indent.String(), nil
}

func (p *parser) skipLineComment() {
	for !p.eof() && p.peek() != '\n' {
		p.pos++
	}
}

func (p *parser) skipBlockComment() error {
	start := p.line
	p.pos += 2
	for !p.eof() {
		if strings.HasPrefix(p.src[p.pos:], "*/") {
			p.pos += 2
			return nil
		}
		if p.peek() == '\n' {
			p.line++
		}
		p.pos++
	}
	p.line = start
	return p.errf("unterminated block comment")
}

// skipInline consumes spaces, tabs and block comments within a node's
// line, stopping at anything that could end or extend the node.
func (p *parser) skipInline() error {
	for !p.eof() {
		c := p.peek()
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			p.pos++
		case strings.HasPrefix(p.src[p.pos:], "/*"):
			if err := p.skipBlockComment(); err != nil {
				return err
			}
		case strings.HasPrefix(p.src[p.pos:], "\\\n"):
			// line continuation
			p.line++
			p.pos += 2
		default:
			return nil
		}
	}
	return nil
}

func (p *parser) parseNode(indent string) (*Node, error) {
	node := &Node{Indent: indent, Line: p.line}
	name, err := p.parseWord()
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, p.errf("expected node name")
	}
	node.Name = name

	for {
		if err := p.skipInline(); err != nil {
			return nil, err
		}
		if p.eof() {
			return node, nil
		}
		switch c := p.peek(); c {
		case '\n', ';', '}':
			return node, nil
		case '{':
			p.pos++
			children, err := p.parseDocument(true)
			if err != nil {
				return nil, err
			}
			node.Children = children
			return node, nil
		case '=':
			return nil, p.errf("unexpected '='")
		default:
			if strings.HasPrefix(p.src[p.pos:], "//") {
				p.skipLineComment()
				return node, nil
			}
			entry, err := p.parseEntry()
			if err != nil {
				return nil, err
			}
			node.Entries = append(node.Entries, entry)
		}
	}
}

func (p *parser) parseEntry() (Entry, error) {
	start, startLine := p.pos, p.line
	// A key is a bare word or quoted string immediately followed by '='.
	if p.peek() != '=' {
		key, err := p.parseWord()
		if err == nil && key != "" && !p.eof() && p.peek() == '=' {
			p.pos++
			val, err := p.parseValue()
			if err != nil {
				return Entry{}, err
			}
			return Entry{Name: key, Value: val}, nil
		}
		p.pos, p.line = start, startLine
	}
	val, err := p.parseValue()
	if err != nil {
		return Entry{}, err
	}
	return Entry{Value: val}, nil
}

// parseWord reads a quoted string or bare identifier, returned as
// plain text.
func (p *parser) parseWord() (string, error) {
	if p.eof() {
		return "", p.errf("unexpected end of input")
	}
	if p.peek() == '"' {
		return p.parseQuoted()
	}
	return p.parseBare(), nil
}

func (p *parser) parseValue() (Value, error) {
	if p.eof() {
		return Value{}, p.errf("expected a value")
	}
	if p.peek() == '"' {
		s, err := p.parseQuoted()
		if err != nil {
			return Value{}, err
		}
		return String(s), nil
	}
	bare := p.parseBare()
	if bare == "" {
		return Value{}, p.errf("expected a value, found %q", string(p.peek()))
	}
	switch bare {
	case "true":
		return Bool(true), nil
	case "false":
		return Bool(false), nil
	case "null":
		return Null(), nil
	}
	if i, err := strconv.ParseInt(bare, 10, 64); err == nil {
		return Integer(i), nil
	}
	if f, err := strconv.ParseFloat(bare, 64); err == nil && looksNumeric(bare) {
		return Float(f), nil
	}
	return String(bare), nil
}

// looksNumeric rejects bare words like "nan" or "infinity" that
// strconv would happily parse as floats.
func looksNumeric(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
			return true
		case c == '-' || c == '+' || c == '.':
		default:
			return false
		}
	}
	return false
}

func isBareChar(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', ';', '{', '}', '=', '"', '\\':
		return false
	}
	return c > 0x20
}

func (p *parser) parseBare() string {
	start := p.pos
	for !p.eof() && isBareChar(p.peek()) {
		if strings.HasPrefix(p.src[p.pos:], "//") || strings.HasPrefix(p.src[p.pos:], "/*") {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) parseQuoted() (string, error) {
	startLine := p.line
	p.pos++ // opening quote
	var sb strings.Builder
	for !p.eof() {
		c := p.peek()
		switch c {
		case '"':
			p.pos++
			return sb.String(), nil
		case '\\':
			p.pos++
			if p.eof() {
				break
			}
			esc := p.peek()
			p.pos++
			switch esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '"':
				sb.WriteByte('"')
			case '\\':
				sb.WriteByte('\\')
			case '/':
				sb.WriteByte('/')
			case 'u':
				r, err := p.parseUnicodeEscape()
				if err != nil {
					return "", err
				}
				sb.WriteRune(r)
			default:
				return "", p.errf("unknown escape sequence '\\%c'", esc)
			}
		case '\n':
			p.line++
			sb.WriteByte(c)
			p.pos++
		default:
			sb.WriteByte(c)
			p.pos++
		}
	}
	p.line = startLine
	return "", p.errf("unterminated string")
}

func (p *parser) parseUnicodeEscape() (rune, error) {
	if p.eof() || p.peek() != '{' {
		return 0, p.errf("expected '{' after \\u")
	}
	p.pos++
	start := p.pos
	for !p.eof() && p.peek() != '}' {
		p.pos++
	}
	if p.eof() {
		return 0, p.errf("unterminated \\u escape")
	}
	hex := p.src[start:p.pos]
	p.pos++ // closing brace
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil || n > 0x10FFFF {
		return 0, p.errf("invalid unicode escape \\u{%s}", hex)
	}
	return rune(n), nil
}
