package reader

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// errUnterminatedString is the one lexer error the parser treats as
// truncated input rather than malformed input.
const errUnterminatedString = "unterminated string"

// Lexer tokenizes s-expression source.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int  // current line (1-based)
	col     int  // current column (1-based)
	eof     bool
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		col:   0,
	}
	l.readChar()
	return l
}

// readChar reads the next character. At the end of input ch becomes 0 and
// the position stops one column past the last character.
func (l *Lexer) readChar() {
	if l.eof {
		return
	}
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	l.pos = l.readPos
	l.col++
	if l.readPos >= len(l.input) {
		l.ch = 0
		l.eof = true
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.readPos += size
}

func (l *Lexer) position() Position {
	return Position{Offset: l.pos, Line: l.line, Column: l.col}
}

func (l *Lexer) atEOF() bool {
	return l.eof
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	pos := l.position()
	if l.atEOF() {
		return Token{Type: TokenEOF, Pos: pos}
	}

	switch l.ch {
	case '(':
		l.readChar()
		return Token{Type: TokenLParen, Literal: "(", Pos: pos}
	case ')':
		l.readChar()
		return Token{Type: TokenRParen, Literal: ")", Pos: pos}
	case '\'':
		l.readChar()
		return Token{Type: TokenQuote, Literal: "'", Pos: pos}
	case '"':
		return l.readString(pos)
	}
	return l.readAtom(pos)
}

// skipWhitespaceAndComments skips whitespace and ; line comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for !l.atEOF() {
		switch {
		case isSpace(l.ch):
			l.readChar()
		case l.ch == ';':
			for !l.atEOF() && l.ch != '\n' {
				l.readChar()
			}
		default:
			return
		}
	}
}

// readString reads a double-quoted string, decoding \n \t \" and \\.
func (l *Lexer) readString(pos Position) Token {
	l.readChar() // consume opening "

	var sb strings.Builder
	for !l.atEOF() {
		switch l.ch {
		case '"':
			l.readChar()
			return Token{Type: TokenString, Literal: sb.String(), Pos: pos}
		case '\\':
			l.readChar()
			if l.atEOF() {
				return Token{Type: TokenError, Literal: errUnterminatedString, Pos: pos}
			}
			switch l.ch {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '"', '\\':
				sb.WriteRune(l.ch)
			default:
				return Token{Type: TokenError, Literal: fmt.Sprintf("unknown escape \\%c", l.ch), Pos: pos}
			}
		default:
			sb.WriteRune(l.ch)
		}
		l.readChar()
	}
	return Token{Type: TokenError, Literal: errUnterminatedString, Pos: pos}
}

// readAtom reads a run of non-delimiter characters and classifies it as a
// hash literal, a number, or a symbol.
func (l *Lexer) readAtom(pos Position) Token {
	start := l.pos
	for !l.atEOF() && !isDelimiter(l.ch) {
		l.readChar()
	}
	text := l.input[start:l.pos]

	switch {
	case text[0] == '#':
		switch text {
		case "#t":
			return Token{Type: TokenTrue, Literal: text, Pos: pos}
		case "#f":
			return Token{Type: TokenFalse, Literal: text, Pos: pos}
		case "#nil":
			return Token{Type: TokenNil, Literal: text, Pos: pos}
		}
		return Token{Type: TokenError, Literal: fmt.Sprintf("unknown literal %s", text), Pos: pos}
	case looksNumeric(text):
		return Token{Type: TokenNumber, Literal: text, Pos: pos}
	}
	return Token{Type: TokenSymbol, Literal: text, Pos: pos}
}

// looksNumeric reports whether text starts like a number: an optional sign
// followed by a digit, or by a point and a digit. Names such as "+", "-",
// "inf" and "nan" stay symbols.
func looksNumeric(text string) bool {
	s := text
	if s[0] == '+' || s[0] == '-' {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	if s[0] == '.' {
		return len(s) > 1 && isDigit(rune(s[1]))
	}
	return isDigit(rune(s[0]))
}

func isSpace(ch rune) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f'
}

func isDelimiter(ch rune) bool {
	return isSpace(ch) || ch == '(' || ch == ')' || ch == '\'' || ch == '"' || ch == ';'
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}
