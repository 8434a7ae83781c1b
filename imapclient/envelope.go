package imapclient

import (
	"mime"
	"time"

	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"golang.org/x/exp/slog"
	"golang.org/x/net/idna"
)

var wordDecoder = mime.WordDecoder{CharsetReader: charset.Reader}

// Envelope holds the basic email message fields, as returned for ENVELOPE.
// String fields are empty for NIL.
type Envelope struct {
	Date                               time.Time // Zero if RawDate could not be parsed.
	RawDate                            string
	Subject                            string
	From, Sender, ReplyTo, To, CC, BCC []Address
	InReplyTo, MessageID               string
}

// DecodedSubject returns the subject with RFC 2047 encoded-words decoded.
// If decoding fails, the raw subject is returned.
func (e Envelope) DecodedSubject() string {
	s, err := wordDecoder.DecodeHeader(e.Subject)
	if err != nil {
		xlog.Debugx("decoding subject", err, slog.String("subject", e.Subject))
		return e.Subject
	}
	return s
}

// Address is an address from an envelope. An address without Host marks the
// start (Mailbox is the group name) or end (Mailbox is empty) of a group.
type Address struct {
	Name    string
	Adl     string // Source route, obsolete.
	Mailbox string
	Host    string
}

// String returns the address as in a message header, e.g. `"Name" <user@host>`.
// For a group marker, the group name is returned.
func (a Address) String() string {
	if a.Host == "" {
		return a.Mailbox
	}
	name, err := wordDecoder.DecodeHeader(a.Name)
	if err != nil {
		name = a.Name
	}
	ma := mail.Address{Name: name, Address: a.Mailbox + "@" + a.Host}
	return ma.String()
}

// UnicodeHost returns the host with IDNA "xn--" labels converted to unicode.
func (a Address) UnicodeHost() (string, error) {
	return idna.Lookup.ToUnicode(a.Host)
}

// xenvelope converts the value of an ENVELOPE fetch attribute.
// RFC 9051 section 9, envelope.
func xenvelope(v Value, normalise bool) Envelope {
	l := xlistArity(v, "envelope", 10, 10)

	xs := func(i int, what string) string {
		return xnstring(l[i], "envelope "+what)
	}
	xa := func(i int, what string) []Address {
		return xaddresses(l[i], "envelope "+what)
	}

	e := Envelope{
		RawDate:   xs(0, "date"),
		Subject:   xs(1, "subject"),
		From:      xa(2, "from"),
		Sender:    xa(3, "sender"),
		ReplyTo:   xa(4, "reply-to"),
		To:        xa(5, "to"),
		CC:        xa(6, "cc"),
		BCC:       xa(7, "bcc"),
		InReplyTo: xs(8, "in-reply-to"),
		MessageID: xs(9, "message-id"),
	}
	if e.RawDate != "" {
		t, err := ParseDateTime(e.RawDate, normalise)
		if err != nil {
			xlog.Debugx("parsing envelope date, keeping raw date", err, slog.String("date", e.RawDate))
		} else {
			e.Date = t
		}
	}
	return e
}

// RFC 9051 section 9, env-from and similar.
func xaddresses(v Value, what string) []Address {
	l, ok := AsList(v)
	if !ok {
		xerrorf(nil, ErrProtocol, "%s: expected list of addresses or NIL, got %s", what, describe(v))
	}
	var r []Address
	for _, av := range l {
		r = append(r, xaddress(av, what))
	}
	return r
}

// RFC 9051 section 9, address.
func xaddress(v Value, what string) Address {
	l := xlistArity(v, what+" address", 4, 4)
	return Address{
		Name:    xnstring(l[0], what+" address name"),
		Adl:     xnstring(l[1], what+" address adl"),
		Mailbox: xnstring(l[2], what+" address mailbox"),
		Host:    xnstring(l[3], what+" address host"),
	}
}

// xlistArity returns v as list with at least lo and at most hi elements. A hi
// of -1 means no maximum.
func xlistArity(v Value, what string, lo, hi int) List {
	l, ok := v.(List)
	if !ok {
		xerrorf(nil, ErrProtocol, "%s: expected list, got %s", what, describe(v))
	}
	if len(l) < lo || hi >= 0 && len(l) > hi {
		if lo == hi {
			xerrorf(nil, ErrProtocol, "%s: expected %d fields, got %d", what, lo, len(l))
		}
		xerrorf(nil, ErrProtocol, "%s: expected at least %d fields, got %d", what, lo, len(l))
	}
	return l
}

// xnstring returns the string value of v, with NIL as empty string.
func xnstring(v Value, what string) string {
	s, ok := AsString(v)
	if !ok {
		xerrorf(nil, ErrProtocol, "%s: expected string or NIL, got %s", what, describe(v))
	}
	return s
}

// xnumber returns v as number.
func xnumber(v Value, what string) int64 {
	n, ok := AsNumber(v)
	if !ok {
		xerrorf(nil, ErrProtocol, "%s: expected number, got %s", what, describe(v))
	}
	return n
}
