package reader

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/chazu/lispgc/vm"
)

// ParseError describes malformed source. Incomplete is set when the input
// ended inside a list or string, so more input could still complete it.
type ParseError struct {
	Pos        Position
	Msg        string
	Incomplete bool
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("ParseError at %s: %s", e.Pos, e.Msg)
}

// Unwrap lets errors.Is(err, vm.ErrParse) match every ParseError.
func (e *ParseError) Unwrap() error {
	return vm.ErrParse
}

// IsIncomplete reports whether err is a ParseError caused by truncated
// input.
func IsIncomplete(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe) && pe.Incomplete
}

// Parser builds heap expressions from tokens.
type Parser struct {
	lexer *Lexer
	heap  *vm.Heap
	cur   Token
	peek  Token
}

// NewParser creates a parser that allocates into h.
func NewParser(h *vm.Heap, input string) *Parser {
	p := &Parser{lexer: NewLexer(input), heap: h}
	// Read two tokens to initialize cur and peek
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.cur = p.peek
	p.peek = p.lexer.NextToken()
}

func (p *Parser) errorf(pos Position, format string, args ...any) *ParseError {
	return &ParseError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *Parser) incomplete(pos Position, msg string) *ParseError {
	return &ParseError{Pos: pos, Msg: msg, Incomplete: true}
}

// Parse reads the whole of src into a single expression on v's heap. A
// source holding several top-level forms is wrapped as (begin FORM...), so
// they are evaluated in order and the last one's value is the result.
// Source with no forms at all is a ParseError.
func Parse(v *vm.VM, src string) (vm.Ref, error) {
	forms, err := ReadAll(v, src)
	if err != nil {
		return vm.NoRef, err
	}
	switch len(forms) {
	case 0:
		return vm.NoRef, &ParseError{Pos: Position{Line: 1, Column: 1}, Msg: "no expression"}
	case 1:
		return forms[0], nil
	}
	h := v.Heap()
	begin, err := h.NewSymbol("begin")
	if err != nil {
		return vm.NoRef, err
	}
	return h.List(append([]vm.Ref{begin}, forms...)...)
}

// ReadAll reads every top-level form of src.
func ReadAll(v *vm.VM, src string) ([]vm.Ref, error) {
	h := v.Heap()
	if h == nil {
		return nil, vm.ErrShutdown
	}
	return readAll(h, src)
}

// Validate reports whether src is well formed without touching any
// session heap. The REPL uses it to decide whether to ask for more input.
func Validate(src string) error {
	_, err := readAll(vm.NewHeap(0), src)
	return err
}

func readAll(h *vm.Heap, src string) ([]vm.Ref, error) {
	p := NewParser(h, src)
	var forms []vm.Ref
	for p.cur.Type != TokenEOF {
		ref, err := p.ParseExpr()
		if err != nil {
			return nil, err
		}
		forms = append(forms, ref)
	}
	return forms, nil
}

// ParseExpr parses one expression starting at the current token and leaves
// the parser on the token after it.
func (p *Parser) ParseExpr() (vm.Ref, error) {
	tok := p.cur
	switch tok.Type {
	case TokenEOF:
		return vm.NoRef, p.incomplete(tok.Pos, "unexpected end of input")
	case TokenError:
		pe := p.errorf(tok.Pos, "%s", tok.Literal)
		pe.Incomplete = tok.Literal == errUnterminatedString
		return vm.NoRef, pe
	case TokenRParen:
		return vm.NoRef, p.errorf(tok.Pos, "unexpected )")
	case TokenLParen:
		return p.parseList()
	case TokenQuote:
		return p.parseQuote()
	}

	p.nextToken()
	switch tok.Type {
	case TokenTrue:
		return p.heap.NewBool(true)
	case TokenFalse:
		return p.heap.NewBool(false)
	case TokenNil:
		return p.heap.Nil(), nil
	case TokenString:
		return p.heap.NewString(tok.Literal)
	case TokenNumber:
		// Out of range literals keep the rounded value: ±Inf or zero.
		f, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return vm.NoRef, p.errorf(tok.Pos, "malformed number %s", tok.Literal)
		}
		return p.heap.NewNumber(f)
	case TokenSymbol:
		if tok.Literal == "." {
			return vm.NoRef, p.errorf(tok.Pos, "unexpected .")
		}
		return p.heap.NewSymbol(tok.Literal)
	}
	return vm.NoRef, p.errorf(tok.Pos, "unexpected %s", tok.Type)
}

// parseQuote turns 'X into (quote X).
func (p *Parser) parseQuote() (vm.Ref, error) {
	p.nextToken() // consume '
	datum, err := p.ParseExpr()
	if err != nil {
		return vm.NoRef, err
	}
	quote, err := p.heap.NewSymbol("quote")
	if err != nil {
		return vm.NoRef, err
	}
	return p.heap.List(quote, datum)
}

// parseList parses (A B ...), (A B . C) and the empty list ().
func (p *Parser) parseList() (vm.Ref, error) {
	open := p.cur.Pos
	p.nextToken() // consume (

	var items []vm.Ref
	tail := p.heap.Nil()
	for {
		switch {
		case p.cur.Type == TokenEOF:
			return vm.NoRef, p.incomplete(open, "unclosed (")
		case p.cur.Type == TokenRParen:
			p.nextToken()
			return p.build(items, tail)
		case p.cur.Type == TokenSymbol && p.cur.Literal == ".":
			dot := p.cur.Pos
			if len(items) == 0 {
				return vm.NoRef, p.errorf(dot, "nothing before .")
			}
			p.nextToken()
			if p.cur.Type == TokenRParen {
				return vm.NoRef, p.errorf(dot, "nothing after .")
			}
			ref, err := p.ParseExpr()
			if err != nil {
				return vm.NoRef, err
			}
			tail = ref
			switch p.cur.Type {
			case TokenRParen:
				p.nextToken()
				return p.build(items, tail)
			case TokenEOF:
				return vm.NoRef, p.incomplete(open, "unclosed (")
			}
			return vm.NoRef, p.errorf(p.cur.Pos, "more than one expression after .")
		}

		ref, err := p.ParseExpr()
		if err != nil {
			return vm.NoRef, err
		}
		items = append(items, ref)
	}
}

// build conses items onto tail from the right.
func (p *Parser) build(items []vm.Ref, tail vm.Ref) (vm.Ref, error) {
	list := tail
	for i := len(items) - 1; i >= 0; i-- {
		var err error
		if list, err = p.heap.NewPair(items[i], list); err != nil {
			return vm.NoRef, err
		}
	}
	return list, nil
}
