package tree

import (
	"fmt"
	"unicode"
)

// SyntaxError reports malformed tree source
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// frame is an open group waiting for its closing delimiter
type frame struct {
	delim    Delimiter
	children []Node
	newline  bool
	line     int
}

// lexer holds the state of one pass over src
type lexer struct {
	src     []rune
	pos     int
	line    int
	newline bool // a line break was skipped since the last token
	stack   []*frame
}

// Parse reads src into a node sequence. Whitespace only survives as the
// Newline flag of the token following a line break.
func Parse(src string) ([]Node, error) {
	l := &lexer{
		src:   []rune(src),
		line:  1,
		stack: []*frame{{delim: None}},
	}
	if err := l.run(); err != nil {
		return nil, err
	}
	if len(l.stack) > 1 {
		open := l.stack[len(l.stack)-1]
		return nil, &SyntaxError{Line: open.line, Msg: fmt.Sprintf("unclosed %q", open.delim.open())}
	}
	return l.stack[0].children, nil
}

// MustParse is Parse for trusted text; it panics on malformed input
func MustParse(src string) []Node {
	nodes, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return nodes
}

func (l *lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) peek2() rune {
	if l.pos+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos+1]
}

func (l *lexer) advance() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
		l.newline = true
	}
	return r
}

func (l *lexer) errorf(format string, args ...interface{}) error {
	return &SyntaxError{Line: l.line, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) emit(n Node) {
	top := l.stack[len(l.stack)-1]
	top.children = append(top.children, n)
	l.newline = false
}

func (l *lexer) run() error {
	for l.pos < len(l.src) {
		r := l.peek()
		switch {
		case unicode.IsSpace(r):
			l.advance()
		case r == '/' && l.peek2() == '/':
			for l.pos < len(l.src) && l.peek() != '\n' {
				l.advance()
			}
		case r == '/' && l.peek2() == '*':
			if err := l.skipBlockComment(); err != nil {
				return err
			}
		case r == '_' || unicode.IsLetter(r):
			nl, start := l.newline, l.pos
			for l.pos < len(l.src) && isIdentRune(l.peek()) {
				l.advance()
			}
			l.emit(&Leaf{Kind: Ident, Text: string(l.src[start:l.pos]), Newline: nl})
		case unicode.IsDigit(r):
			nl, start := l.newline, l.pos
			for l.pos < len(l.src) && (isIdentRune(l.peek()) || l.peek() == '.' && unicode.IsDigit(l.peek2())) {
				l.advance()
			}
			l.emit(&Leaf{Kind: Literal, Text: string(l.src[start:l.pos]), Newline: nl})
		case r == '"' || r == '\'' || r == '`':
			if err := l.quoted(r); err != nil {
				return err
			}
		case r == '(' || r == '[' || r == '{':
			l.stack = append(l.stack, &frame{delim: openDelim(r), newline: l.newline, line: l.line})
			l.newline = false
			l.advance()
		case r == ')' || r == ']' || r == '}':
			if err := l.closeGroup(r); err != nil {
				return err
			}
		default:
			nl := l.newline
			l.advance()
			l.emit(&Leaf{Kind: Punct, Text: string(r), Newline: nl})
		}
	}
	return nil
}

func (l *lexer) skipBlockComment() error {
	line := l.line
	l.advance()
	l.advance()
	for l.pos < len(l.src) {
		if l.peek() == '*' && l.peek2() == '/' {
			l.advance()
			l.advance()
			return nil
		}
		l.advance()
	}
	return &SyntaxError{Line: line, Msg: "unterminated block comment"}
}

// quoted lexes a string, raw string or character literal opened by q
func (l *lexer) quoted(q rune) error {
	nl, start, line := l.newline, l.pos, l.line
	l.advance()
	for {
		if l.pos >= len(l.src) {
			return &SyntaxError{Line: line, Msg: "unterminated literal"}
		}
		r := l.advance()
		switch {
		case r == q:
			l.emit(&Leaf{Kind: Literal, Text: string(l.src[start:l.pos]), Newline: nl})
			return nil
		case r == '\\' && q != '`':
			l.advance()
		case r == '\n' && q != '`':
			return &SyntaxError{Line: line, Msg: "newline in literal"}
		}
	}
}

func (l *lexer) closeGroup(r rune) error {
	if len(l.stack) == 1 {
		return l.errorf("unexpected %q", r)
	}
	top := l.stack[len(l.stack)-1]
	if top.delim != closeDelim(r) {
		return l.errorf("mismatched %q, expected %q opened on line %d", r, top.delim.close(), top.line)
	}
	closeNL := l.newline
	l.advance()
	l.stack = l.stack[:len(l.stack)-1]
	l.emit(&Group{
		Delim:        top.delim,
		Children:     top.children,
		Newline:      top.newline,
		CloseNewline: closeNL,
	})
	return nil
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func openDelim(r rune) Delimiter {
	switch r {
	case '(':
		return Parenthesis
	case '[':
		return Bracket
	}
	return Brace
}

func closeDelim(r rune) Delimiter {
	switch r {
	case ')':
		return Parenthesis
	case ']':
		return Bracket
	}
	return Brace
}
