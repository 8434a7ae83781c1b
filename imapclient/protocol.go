/*
Package imapclient decodes IMAP4 server responses into typed values.

Response lines, as received from a connection without their CRLF line
endings, are turned into tokens by a [Lexer], assembled into a tree of
[Value]s by [ParseResponse], and specialized into per-message records by
[ParseFetchResponse] or into message id lists by [ParseMessageList].

The functions in this package do no I/O and keep no state between calls. They
can be called concurrently, as long as each call gets its own input.
*/
package imapclient

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mjl-/imapparse/mlog"
)

var xlog = mlog.New("imapclient", nil)

var (
	// ErrFraming is wrapped by errors about the structure of the byte stream:
	// malformed literal size markers, unterminated quoted strings, input ending
	// in a literal or inside a list, unbalanced parentheses.
	ErrFraming = errors.New("framing error")

	// ErrProtocol is wrapped by errors about responses that are well-formed but
	// have an unexpected shape, e.g. an envelope with the wrong number of fields.
	ErrProtocol = errors.New("protocol error")

	// ErrFormat is wrapped by errors from date-time parsing and formatting.
	ErrFormat = errors.New("format error")
)

// Pos is a position in the response lines.
type Pos struct {
	Line   int // Index into the lines, starting at 0.
	Offset int // Byte offset within the line.
}

func (p Pos) String() string {
	return fmt.Sprintf("line %d, offset %d", p.Line, p.Offset)
}

// Error is a parse error, with the position in the input if known. Use
// errors.Is with ErrFraming, ErrProtocol or ErrFormat to classify.
type Error struct {
	Pos *Pos // Nil if the error is not about a token.
	err error
}

func (e Error) Error() string {
	if e.Pos != nil {
		return fmt.Sprintf("imapclient: %s: %s", e.Pos, e.err)
	}
	return "imapclient: " + e.err.Error()
}

func (e Error) Unwrap() error {
	return e.err
}

func recoverError(rerr *error) {
	x := recover()
	if x == nil {
		return
	}
	switch e := x.(type) {
	case Error:
		*rerr = e
	default:
		panic(x)
	}
}

func xerrorf(pos *Pos, kind error, format string, args ...any) {
	panic(Error{pos, fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))})
}

// Value is a node in a parsed response: a String, Bytes, Number, Nil or a
// parenthesized List of values.
type Value interface {
	value()
}

// String is an atom or quoted string that is valid UTF-8.
type String string

// Bytes is a literal, or an atom or quoted string that is not valid UTF-8.
type Bytes []byte

// Number is a bare run of digits.
type Number int64

// List is a parenthesized list of values.
type List []Value

// Nil is the bare atom NIL. A quoted "NIL" is a String.
type Nil struct{}

func (String) value() {}
func (Bytes) value()  {}
func (Number) value() {}
func (List) value()   {}
func (Nil) value()    {}

// describe returns a short description of v for error messages.
func describe(v Value) string {
	switch x := v.(type) {
	case nil:
		return "end of list"
	case String:
		return strconv.Quote(string(x))
	case Bytes:
		return fmt.Sprintf("%d bytes", len(x))
	case Number:
		return fmt.Sprintf("number %d", x)
	case List:
		return fmt.Sprintf("list of %d values", len(x))
	case Nil:
		return "NIL"
	}
	return fmt.Sprintf("%T", v)
}

// AsString returns the text of a String, Bytes or Number. NIL is returned as
// the empty string. For lists, false is returned.
func AsString(v Value) (string, bool) {
	switch x := v.(type) {
	case String:
		return string(x), true
	case Bytes:
		return string(x), true
	case Number:
		return strconv.FormatInt(int64(x), 10), true
	case Nil:
		return "", true
	}
	return "", false
}

// AsNumber returns the value of a Number, or of a String consisting of digits.
func AsNumber(v Value) (int64, bool) {
	switch x := v.(type) {
	case Number:
		return int64(x), true
	case String:
		n, err := strconv.ParseInt(string(x), 10, 64)
		return n, err == nil
	}
	return 0, false
}

// AsList returns the values of a List. NIL is returned as an empty list.
func AsList(v Value) (List, bool) {
	switch x := v.(type) {
	case List:
		return x, true
	case Nil:
		return nil, true
	}
	return nil, false
}

// KeyMode selects the message identifier that keys fetch records.
type KeyMode int

const (
	KeyUID KeyMode = iota // Key by UID, the sequence number is auxiliary.
	KeySeq                // Key by message sequence number, the UID is auxiliary.
)

func (m KeyMode) String() string {
	switch m {
	case KeyUID:
		return "uid"
	case KeySeq:
		return "seq"
	}
	return fmt.Sprintf("KeyMode(%d)", int(m))
}

// FetchOptions influence how FETCH responses are interpreted.
type FetchOptions struct {
	Key KeyMode

	// If set, INTERNALDATE and envelope dates are converted to the local time
	// zone, see ParseDateTime.
	NormaliseTimes bool
}

// DefaultFetchOptions returns options keying by UID and normalising times.
func DefaultFetchOptions() FetchOptions {
	return FetchOptions{KeyUID, true}
}

// FetchRecord holds the attributes of a single message from FETCH responses.
type FetchRecord struct {
	Key uint32 // Either UID or Seq, depending on the KeyMode.
	Seq uint32 // Message sequence number, 0 if unknown.
	UID uint32 // 0 if the response did not include a UID.

	// Attributes, keyed by upper case name as it appeared in the response, e.g.
	// "RFC822.SIZE" or "BODY[HEADER.FIELDS (SUBJECT)]".
	Attrs map[string]FetchAttr
}

// FetchAttr represents a FETCH response attribute.
type FetchAttr interface {
	Attr() string // Name of attribute in upper case, e.g. "INTERNALDATE".
}

// "RFC822.SIZE" or "SIZE" fetch response.
type FetchRFC822Size struct {
	RespAttr string
	Size     int64
}

func (f FetchRFC822Size) Attr() string { return f.RespAttr }

// "INTERNALDATE" fetch response.
type FetchInternalDate struct {
	Date time.Time
}

func (f FetchInternalDate) Attr() string { return "INTERNALDATE" }

// "ENVELOPE" fetch response.
type FetchEnvelope Envelope

func (f FetchEnvelope) Attr() string { return "ENVELOPE" }

// "BODYSTRUCTURE" fetch response, or "BODY" with a structure instead of a
// section.
type FetchBodystructure struct {
	RespAttr string
	Body     BodyData
}

func (f FetchBodystructure) Attr() string { return f.RespAttr }

// FetchRaw is any other fetch response attribute, e.g. "FLAGS", "MODSEQ",
// "BODY[]" or an attribute from an unknown extension. Value is as parsed.
type FetchRaw struct {
	RespAttr string
	Value    Value
}

func (f FetchRaw) Attr() string { return f.RespAttr }

// SearchIDs is the result of a SEARCH response.
type SearchIDs struct {
	IDs    []uint32 // In order of the response, duplicates are kept.
	ModSeq int64    // From the CONDSTORE "(MODSEQ n)" suffix, 0 if absent.
}
