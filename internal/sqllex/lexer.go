// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package sqllex splits SQL text into tokens that remember their byte
// offset in the original statement, so compilers can report error positions.
package sqllex

import (
	"strings"
	"unicode"

	qerrors "github.com/anjanb/questdb/internal/errors"
)

// Kind is a token category.
type Kind int

const (
	EOF Kind = iota
	Ident
	QuotedIdent
	Number
	String
	Punct
	Operator
	Invalid
)

func (k Kind) String() string {
	switch k {
	case EOF:
		return "EOF"
	case Ident:
		return "IDENT"
	case QuotedIdent:
		return "QUOTED_IDENT"
	case Number:
		return "NUMBER"
	case String:
		return "STRING"
	case Punct:
		return "PUNCT"
	case Operator:
		return "OPERATOR"
	default:
		return "INVALID"
	}
}

// Token is a lexeme. Text holds the unquoted value for String and
// QuotedIdent tokens and the raw text otherwise.
type Token struct {
	Kind Kind
	Text string
	Pos  int
}

// Is reports whether t is the unquoted identifier or keyword word, compared
// case-insensitively.
func (t Token) Is(word string) bool {
	return t.Kind == Ident && strings.EqualFold(t.Text, word)
}

// IsPunct reports whether t is the punctuation character c.
func (t Token) IsPunct(c byte) bool {
	return t.Kind == Punct && len(t.Text) == 1 && t.Text[0] == c
}

// Name returns the identifier text for Ident and QuotedIdent tokens.
func (t Token) Name() (string, bool) {
	if t.Kind == Ident || t.Kind == QuotedIdent {
		return t.Text, true
	}
	return "", false
}

// Lexer scans a statement. It never modifies the input.
type Lexer struct {
	input  string
	pos    int
	peeked *Token
	err    error
}

// New returns a lexer over input.
func New(input string) *Lexer {
	return &Lexer{input: input}
}

// Err returns the first scanning error, such as an unterminated literal.
func (l *Lexer) Err() error { return l.err }

// Peek returns the next token without consuming it.
func (l *Lexer) Peek() Token {
	if l.peeked == nil {
		t := l.scan()
		l.peeked = &t
	}
	return *l.peeked
}

// Next consumes and returns the next token.
func (l *Lexer) Next() Token {
	if l.peeked != nil {
		t := *l.peeked
		l.peeked = nil
		return t
	}
	return l.scan()
}

// Tokens scans the whole input.
func Tokens(input string) ([]Token, error) {
	l := New(input)
	var out []Token
	for {
		t := l.Next()
		if l.err != nil {
			return nil, l.err
		}
		if t.Kind == EOF {
			return out, nil
		}
		out = append(out, t)
	}
}

func (l *Lexer) scan() Token {
	l.skipSpaceAndComments()
	if l.pos >= len(l.input) {
		return Token{Kind: EOF, Pos: len(l.input)}
	}

	start := l.pos
	ch := l.input[l.pos]
	switch {
	case strings.IndexByte("(),;*.", ch) >= 0:
		l.pos++
		return Token{Kind: Punct, Text: l.input[start:l.pos], Pos: start}
	case strings.IndexByte("=<>!+-/%", ch) >= 0:
		if ch == '-' && l.pos+1 < len(l.input) && isDigit(l.input[l.pos+1]) {
			return l.readNumber(start)
		}
		for l.pos < len(l.input) && strings.IndexByte("=<>!", l.input[l.pos]) >= 0 {
			l.pos++
		}
		if l.pos == start {
			l.pos++
		}
		return Token{Kind: Operator, Text: l.input[start:l.pos], Pos: start}
	case ch == '\'':
		return l.readQuoted(start, '\'', String)
	case ch == '"':
		return l.readQuoted(start, '"', QuotedIdent)
	case isDigit(ch):
		return l.readNumber(start)
	case ch == '_' || unicode.IsLetter(rune(ch)) || ch >= 0x80:
		for l.pos < len(l.input) && isIdentByte(l.input[l.pos]) {
			l.pos++
		}
		return Token{Kind: Ident, Text: l.input[start:l.pos], Pos: start}
	default:
		l.pos++
		return Token{Kind: Invalid, Text: l.input[start:l.pos], Pos: start}
	}
}

func (l *Lexer) skipSpaceAndComments() {
	for l.pos < len(l.input) {
		switch c := l.input[l.pos]; {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
			l.pos++
		case c == '-' && strings.HasPrefix(l.input[l.pos:], "--"):
			end := strings.IndexByte(l.input[l.pos:], '\n')
			if end < 0 {
				l.pos = len(l.input)
			} else {
				l.pos += end + 1
			}
		default:
			return
		}
	}
}

// readQuoted reads a literal where a doubled quote stands for itself.
func (l *Lexer) readQuoted(start int, quote byte, kind Kind) Token {
	l.pos++
	var sb strings.Builder
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if c == quote {
			if l.pos+1 < len(l.input) && l.input[l.pos+1] == quote {
				sb.WriteByte(quote)
				l.pos += 2
				continue
			}
			l.pos++
			return Token{Kind: kind, Text: sb.String(), Pos: start}
		}
		sb.WriteByte(c)
		l.pos++
	}
	if l.err == nil {
		l.err = qerrors.SyntaxAt(start, "unclosed quoted literal")
	}
	return Token{Kind: Invalid, Text: l.input[start:], Pos: start}
}

func (l *Lexer) readNumber(start int) Token {
	if l.input[l.pos] == '-' {
		l.pos++
	}
	for l.pos < len(l.input) && (isDigit(l.input[l.pos]) || l.input[l.pos] == '.' ||
		l.input[l.pos] == 'e' || l.input[l.pos] == 'E' || l.input[l.pos] == 'x' ||
		isHex(l.input[l.pos])) {
		l.pos++
	}
	return Token{Kind: Number, Text: l.input[start:l.pos], Pos: start}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHex(c byte) bool { return (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') }

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}
