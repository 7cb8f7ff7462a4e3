package reader

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the s-expression lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenError

	TokenNumber // 42, -1.5, 6.02e23
	TokenString // "hello"
	TokenSymbol // foo, +, nil?, .
	TokenTrue   // #t
	TokenFalse  // #f
	TokenNil    // #nil

	TokenLParen // (
	TokenRParen // )
	TokenQuote  // '
)

var tokenNames = map[TokenType]string{
	TokenEOF:    "EOF",
	TokenError:  "ERROR",
	TokenNumber: "NUMBER",
	TokenString: "STRING",
	TokenSymbol: "SYMBOL",
	TokenTrue:   "#t",
	TokenFalse:  "#f",
	TokenNil:    "#nil",
	TokenLParen: "(",
	TokenRParen: ")",
	TokenQuote:  "'",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", int(t))
}

// Position is a location in the source text.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based
	Column int // 1-based
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token is a lexical token. For TokenString the literal holds the decoded
// contents; for TokenError it holds the message.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q) at %s", t.Type, t.Literal, t.Pos)
}
