package imapclient

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"

	"golang.org/x/exp/slog"

	"github.com/mjl-/imapparse/metrics"
	"github.com/mjl-/imapparse/mlog"
)

// TokenKind is the type of a Token.
type TokenKind int

const (
	TokenOpen    TokenKind = iota // "("
	TokenClose                    // ")"
	TokenAtom                     // Atom, quoted string or NIL.
	TokenLiteral                  // Data of a {N} literal.
	TokenNumber                   // Bare digits.
)

func (k TokenKind) String() string {
	switch k {
	case TokenOpen:
		return "open"
	case TokenClose:
		return "close"
	case TokenAtom:
		return "atom"
	case TokenLiteral:
		return "literal"
	case TokenNumber:
		return "number"
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Token is a single token from response lines.
type Token struct {
	Kind TokenKind
	Text string // For TokenAtom, if valid UTF-8.
	Raw  []byte // For TokenLiteral, and for TokenAtom if not valid UTF-8.
	Nil  bool   // For TokenAtom, set for a bare NIL.
	Num  int64  // For TokenNumber.
	Pos  Pos    // Start of the token.
}

func (t Token) String() string {
	switch t.Kind {
	case TokenOpen:
		return `"("`
	case TokenClose:
		return `")"`
	case TokenAtom:
		if t.Nil {
			return "NIL"
		} else if t.Raw != nil {
			return fmt.Sprintf("atom of %d non-utf-8 bytes", len(t.Raw))
		}
		return fmt.Sprintf("atom %q", t.Text)
	case TokenLiteral:
		return fmt.Sprintf("literal of %d bytes", len(t.Raw))
	case TokenNumber:
		return fmt.Sprintf("number %d", t.Num)
	}
	return t.Kind.String()
}

// Lexer turns response lines into tokens. A Lexer is a cursor over the lines
// and must not be shared. To tokenize again, create a new Lexer.
//
// Line endings outside of literals separate tokens like spaces do. A literal
// "{N}" is followed by exactly N bytes of data, starting directly after the
// marker or, if the marker ends its line, at the start of the next line. Each
// line ending crossed inside the literal data counts as a single "\n" byte.
type Lexer struct {
	lines [][]byte
	line  int // Current line.
	o     int // Offset in current line.
	err   error
	log   mlog.Log
}

// NewLexer returns a lexer for lines, which must not include line endings.
func NewLexer(lines [][]byte) *Lexer {
	return &Lexer{lines: lines, log: xlog}
}

// Next returns the next token. At the end of the input io.EOF is returned.
// After an error, the same error is returned for all later calls.
func (l *Lexer) Next() (tok Token, rerr error) {
	if l.err != nil {
		return Token{}, l.err
	}
	defer func() {
		if rerr != nil {
			l.err = rerr
		}
	}()
	defer recoverError(&rerr)

	tok, ok := l.xnext()
	if !ok {
		return Token{}, io.EOF
	}
	return tok, nil
}

// Tokenize returns all tokens in lines.
func Tokenize(lines [][]byte) ([]Token, error) {
	l := NewLexer(lines)
	var tokens []Token
	for {
		tok, err := l.Next()
		if err == io.EOF {
			return tokens, nil
		} else if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
}

func (l *Lexer) pos() Pos {
	return Pos{l.line, l.o}
}

func (l *Lexer) xerrorf(pos Pos, format string, args ...any) {
	xerrorf(&pos, ErrFraming, format, args...)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

// Ends an atom. A "[" does not, see xword.
func isDelimiter(c byte) bool {
	return isSpace(c) || c == '(' || c == ')' || c == '"'
}

func (l *Lexer) xnext() (Token, bool) {
	for l.line < len(l.lines) {
		cur := l.lines[l.line]
		if l.o >= len(cur) {
			l.line++
			l.o = 0
			continue
		}
		c := cur[l.o]
		if isSpace(c) {
			l.o++
			continue
		}
		pos := l.pos()
		switch c {
		case '(':
			l.o++
			return Token{Kind: TokenOpen, Pos: pos}, true
		case ')':
			l.o++
			return Token{Kind: TokenClose, Pos: pos}, true
		case '"':
			return l.xquoted(pos), true
		}
		return l.xword(pos), true
	}
	return Token{}, false
}

// RFC 9051 section 9, quoted.
func (l *Lexer) xquoted(pos Pos) Token {
	cur := l.lines[l.line]
	l.o++
	var buf []byte
	for {
		if l.o >= len(cur) {
			l.xerrorf(pos, "unterminated quoted string, expected closing dquote")
		}
		c := cur[l.o]
		l.o++
		switch c {
		case '"':
			return atomToken(pos, buf, false)
		case '\\':
			if l.o >= len(cur) {
				l.xerrorf(pos, "unterminated quoted string, expected escaped char after backslash")
			}
			c = cur[l.o]
			l.o++
		}
		buf = append(buf, c)
	}
}

// xword reads a run of non-delimiters. A "[" includes everything up to the
// matching "]" in the word, so "BODY[HEADER.FIELDS (SUBJECT)]" is a single
// atom. A word of the form "{N}" announces a literal.
func (l *Lexer) xword(pos Pos) Token {
	cur := l.lines[l.line]
	start := l.o
	if cur[l.o] == '{' {
		// Literal data may follow the marker directly.
		i := bytes.IndexByte(cur[l.o:], '}')
		if i < 0 {
			l.xerrorf(pos, "unterminated literal size marker, expected }")
		}
		l.o += i + 1
		return l.xliteral(pos, cur[start:l.o])
	}
	for l.o < len(cur) && !isDelimiter(cur[l.o]) {
		if cur[l.o] == '[' {
			i := bytes.IndexByte(cur[l.o:], ']')
			if i < 0 {
				l.xerrorf(Pos{l.line, l.o}, "unterminated section, expected ]")
			}
			l.o += i + 1
			continue
		}
		l.o++
	}
	word := cur[start:l.o]

	if len(word) == 3 && bytes.EqualFold(word, []byte("NIL")) {
		return Token{Kind: TokenAtom, Text: string(word), Nil: true, Pos: pos}
	}
	if digits(word) {
		if n, err := strconv.ParseInt(string(word), 10, 64); err == nil {
			return Token{Kind: TokenNumber, Num: n, Pos: pos}
		}
		// Too large for int64, keep it as atom.
	}
	return atomToken(pos, word, true)
}

func digits(b []byte) bool {
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(b) > 0
}

func atomToken(pos Pos, buf []byte, copyBuf bool) Token {
	if utf8.Valid(buf) {
		return Token{Kind: TokenAtom, Text: string(buf), Pos: pos}
	}
	xlog.Logx(mlog.LevelTrace, "atom is not valid utf-8, keeping raw bytes", nil, slog.Any("pos", pos))
	if copyBuf {
		buf = append([]byte{}, buf...)
	}
	return Token{Kind: TokenAtom, Raw: buf, Pos: pos}
}

// RFC 9051 section 9, literal.
func (l *Lexer) xliteral(pos Pos, word []byte) Token {
	if len(word) < 3 || word[len(word)-1] != '}' || !digits(word[1:len(word)-1]) {
		l.xerrorf(pos, "malformed literal size marker %q, expected {digits}", word)
	}
	size, err := strconv.ParseInt(string(word[1:len(word)-1]), 10, 63)
	if err != nil {
		l.xerrorf(pos, "malformed literal size marker %q: %v", word, err)
	}
	if avail := l.remaining(); size > avail {
		l.xerrorf(pos, "literal of %d bytes extends past end of input, %d bytes remaining", size, avail)
	}

	buf := make([]byte, 0, size)
	// Literal data starts on the next line if the marker ends the line.
	if l.o == len(l.lines[l.line]) && size > 0 {
		l.line++
		l.o = 0
	}
	for int64(len(buf)) < size {
		cur := l.lines[l.line]
		if l.o == len(cur) {
			buf = append(buf, '\n')
			if int64(len(buf)) == size {
				break
			}
			l.line++
			l.o = 0
			continue
		}
		n := min(len(cur)-l.o, int(size)-len(buf))
		buf = append(buf, cur[l.o:l.o+n]...)
		l.o += n
	}
	metrics.LiteralBytesAdd(len(buf))
	l.log.Trace(mlog.LevelTracedata, "literal: ", buf)
	return Token{Kind: TokenLiteral, Raw: buf, Pos: pos}
}

// remaining returns the number of bytes available for literal data after the
// current position, counting line endings as one byte.
func (l *Lexer) remaining() int64 {
	var n int64
	if l.o < len(l.lines[l.line]) {
		n = int64(len(l.lines[l.line]) - l.o)
	}
	for _, line := range l.lines[l.line+1:] {
		n += 1 + int64(len(line))
	}
	if l.o < len(l.lines[l.line]) || l.line+1 >= len(l.lines) {
		return n
	}
	// Marker ends its line, the line ending before the data is not data.
	return n - 1
}
