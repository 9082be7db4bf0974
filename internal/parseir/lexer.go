// Package parseir is a hand-rolled recursive-descent front end for the
// textual IR: struct declarations, free-region declarations with
// outlives clauses, variable declarations, basic blocks, and trailing
// assertions. See the doc comment on Parse for the grammar.
package parseir

import (
	"fmt"
	"io"
	"strings"
	"text/scanner"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokLifetime // '<ident>, e.g. 'a
	tokInt
	tokString
	tokPunct
	tokExpectError // //~ERROR <msg>
)

type token struct {
	kind tokenKind
	text string
	pos  scanner.Position
}

// lexer wraps text/scanner.Scanner, customized so lifetimes (leading
// apostrophe) scan as a single identifier token and so `//~ERROR msg`
// is recognized as its own token instead of being discarded as an
// ordinary line comment.
type lexer struct {
	s    scanner.Scanner
	peek *token
}

func newLexer(r io.Reader, name string) *lexer {
	l := &lexer{}
	l.s.Init(r)
	l.s.Filename = name
	l.s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanStrings
	l.s.IsIdentRune = func(ch rune, i int) bool {
		if i == 0 {
			return ch == '\'' || isLetter(ch)
		}
		return isLetter(ch) || isDigit(ch)
	}
	return l
}

func isLetter(ch rune) bool { return ch == '_' || ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') }
func isDigit(ch rune) bool  { return '0' <= ch && ch <= '9' }

func (l *lexer) next() token {
	if l.peek != nil {
		t := *l.peek
		l.peek = nil
		return t
	}
	return l.scan()
}

func (l *lexer) peekTok() token {
	if l.peek == nil {
		t := l.scan()
		l.peek = &t
	}
	return *l.peek
}

func (l *lexer) scan() token {
	for {
		r := l.s.Scan()
		pos := l.s.Position
		switch r {
		case scanner.EOF:
			return token{kind: tokEOF, pos: pos}
		case scanner.Ident:
			text := l.s.TokenText()
			if len(text) > 0 && text[0] == '\'' {
				return token{kind: tokLifetime, text: text, pos: pos}
			}
			return token{kind: tokIdent, text: text, pos: pos}
		case scanner.Int:
			return token{kind: tokInt, text: l.s.TokenText(), pos: pos}
		case scanner.String:
			return token{kind: tokString, text: l.s.TokenText(), pos: pos}
		case '/':
			if l.s.Peek() == '/' {
				rest := l.consumeLineComment()
				if marker, ok := strings.CutPrefix(rest, "~ERROR"); ok {
					return token{kind: tokExpectError, text: strings.TrimSpace(marker), pos: pos}
				}
				continue
			}
			return token{kind: tokPunct, text: "/", pos: pos}
		default:
			return token{kind: tokPunct, text: string(r), pos: pos}
		}
	}
}

// consumeLineComment reads the remainder of a `//` comment (the second
// slash has been peeked but not yet consumed) up to end of line.
func (l *lexer) consumeLineComment() string {
	l.s.Next() // consume the second '/'
	var sb strings.Builder
	for {
		ch := l.s.Peek()
		if ch == '\n' || ch == scanner.EOF {
			break
		}
		sb.WriteRune(l.s.Next())
	}
	return sb.String()
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "<eof>"
	}
	return fmt.Sprintf("%q", t.text)
}
