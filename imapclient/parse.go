package imapclient

import (
	"io"

	"golang.org/x/exp/slog"

	"github.com/mjl-/imapparse/metrics"
)

// tokenSource is a Lexer, or tokens that were already read.
type tokenSource interface {
	Next() (Token, error)
}

type tokenSlice struct {
	tokens []Token
	i      int
}

func (s *tokenSlice) Next() (Token, error) {
	if s.i >= len(s.tokens) {
		return Token{}, io.EOF
	}
	s.i++
	return s.tokens[s.i-1], nil
}

type parser struct {
	src  tokenSource
	last Pos // Of last token, for errors at end of input.
}

// ParseResponse parses response lines into a list of values. The lines must
// not have line endings. Parenthesized groups become nested lists.
//
// Errors wrap ErrFraming, for malformed tokens and unbalanced parentheses.
func ParseResponse(lines [][]byte) (l List, rerr error) {
	defer func() {
		metrics.ParseResult("response", rerr)
		if rerr != nil {
			xlog.Debugx("parsing response", rerr, slog.Int("lines", len(lines)))
		}
	}()

	p := &parser{src: NewLexer(lines)}
	return p.parse()
}

// ParseTokens parses tokens, e.g. from Tokenize, into a list of values.
func ParseTokens(tokens []Token) (l List, rerr error) {
	defer func() {
		metrics.ParseResult("response", rerr)
	}()

	p := &parser{src: &tokenSlice{tokens: tokens}}
	return p.parse()
}

func (p *parser) parse() (l List, rerr error) {
	defer recoverError(&rerr)

	l = List{}
	for {
		tok, ok := p.xnext()
		if !ok {
			return l, nil
		}
		if tok.Kind == TokenClose {
			xerrorf(&tok.Pos, ErrFraming, "unbalanced parenthesis, expected value or end of input, got \")\"")
		}
		l = append(l, p.xvalue(tok))
	}
}

func (p *parser) xnext() (Token, bool) {
	tok, err := p.src.Next()
	if err == io.EOF {
		return Token{}, false
	}
	xcheck(err)
	p.last = tok.Pos
	return tok, true
}

// xvalue returns the value starting with tok, which is not a TokenClose.
func (p *parser) xvalue(tok Token) Value {
	switch tok.Kind {
	case TokenOpen:
		return p.xlist(tok.Pos)
	case TokenAtom:
		if tok.Nil {
			return Nil{}
		} else if tok.Raw != nil {
			return Bytes(tok.Raw)
		}
		return String(tok.Text)
	case TokenLiteral:
		return Bytes(tok.Raw)
	case TokenNumber:
		return Number(tok.Num)
	}
	xerrorf(&tok.Pos, ErrFraming, "unexpected %s", tok)
	panic("not reached")
}

// xlist returns values up to the ")" matching the "(" at open.
func (p *parser) xlist(open Pos) List {
	l := List{}
	for {
		tok, ok := p.xnext()
		if !ok {
			xerrorf(&p.last, ErrFraming, "unexpected end of input, expected \")\" for \"(\" at %s", open)
		}
		if tok.Kind == TokenClose {
			return l
		}
		l = append(l, p.xvalue(tok))
	}
}
