package imapclient

import (
	"math"
	"strings"

	"golang.org/x/exp/slog"

	"github.com/mjl-/imapparse/metrics"
)

// Attributes returned as FetchRaw without being logged as unknown.
var rawAttrs = map[string]struct{}{
	"FLAGS":         {},
	"MODSEQ":        {},
	"RFC822":        {},
	"RFC822.HEADER": {},
	"RFC822.TEXT":   {},
	"BODY":          {},
	"BINARY.SIZE":   {},
	"PREVIEW":       {},
	"SAVEDATE":      {},
	"EMAILID":       {},
	"THREADID":      {},
}

// ParseFetchResponse parses the lines of one or more FETCH responses, e.g.
// `* 1 FETCH (UID 10 RFC822.SIZE 2048 FLAGS (\Seen))`, into records keyed by
// UID or sequence number, as selected by opts.Key.
//
// Errors wrap ErrFraming for malformed input, ErrProtocol for responses of
// unexpected shape, and ErrFormat for a bad INTERNALDATE.
func ParseFetchResponse(lines [][]byte, opts FetchOptions) (records map[uint32]*FetchRecord, rerr error) {
	l, err := ParseResponse(lines)
	if err != nil {
		metrics.ParseResult("fetch", err)
		return nil, err
	}
	return FetchRecords(l, opts)
}

// FetchRecords builds records from an already parsed FETCH response, see
// ParseFetchResponse.
func FetchRecords(l List, opts FetchOptions) (records map[uint32]*FetchRecord, rerr error) {
	defer func() {
		metrics.ParseResult("fetch", rerr)
		if rerr != nil {
			xlog.Debugx("parsing fetch response", rerr, slog.Int("values", len(l)))
		}
	}()
	defer recoverError(&rerr)

	f := fetchParser{opts: opts, records: map[uint32]*FetchRecord{}}
	f.xresponses(l)
	return f.records, nil
}

type fetchParser struct {
	opts    FetchOptions
	records map[uint32]*FetchRecord
}

// RFC 9051 section 9, message-data.
func (f *fetchParser) xresponses(l List) {
	for i := 0; i < len(l); i++ {
		v := l[i]
		if s, ok := v.(String); ok && s == "*" {
			continue
		}
		n, ok := v.(Number)
		if !ok {
			xerrorf(nil, ErrProtocol, "expected message number, got %s", describe(v))
		}
		if n <= 0 || n > math.MaxUint32 {
			xerrorf(nil, ErrProtocol, "message number %d out of range", n)
		}
		i++
		if i < len(l) {
			if s, ok := l[i].(String); ok && (strings.EqualFold(string(s), "FETCH") || strings.EqualFold(string(s), "UIDFETCH")) {
				i++
			}
		}
		if i >= len(l) {
			xerrorf(nil, ErrProtocol, "message number %d not followed by attributes", n)
		}
		group, ok := l[i].(List)
		if !ok {
			xerrorf(nil, ErrProtocol, "message number %d: expected list of attributes, got %s", n, describe(l[i]))
		}
		f.xgroup(uint32(n), group)
	}
}

// xgroup processes the attribute/value pairs for a message. The UID can be
// anywhere in the group. A second UID starts attributes for another message.
func (f *fetchParser) xgroup(seq uint32, l List) {
	if len(l)%2 != 0 {
		xerrorf(nil, ErrProtocol, "message %d: expected attribute/value pairs, got %d values", seq, len(l))
	}

	var uid uint32
	attrs := map[string]FetchAttr{}
	for i := 0; i < len(l); i += 2 {
		name, ok := l[i].(String)
		if !ok {
			xerrorf(nil, ErrProtocol, "message %d: expected attribute name, got %s", seq, describe(l[i]))
		}
		attr := strings.ToUpper(string(name))
		v := l[i+1]

		if attr == "UID" {
			if uid != 0 {
				f.add(seq, uid, attrs)
				attrs = map[string]FetchAttr{}
			}
			n, ok := AsNumber(v)
			if !ok || n <= 0 || n > math.MaxUint32 {
				xerrorf(nil, ErrProtocol, "message %d: bad uid %s", seq, describe(v))
			}
			uid = uint32(n)
			continue
		}
		attrs[attr] = f.xattr(attr, v)
	}
	f.add(seq, uid, attrs)
}

func (f *fetchParser) add(seq, uid uint32, attrs map[string]FetchAttr) {
	key := seq
	if f.opts.Key == KeyUID && uid != 0 {
		key = uid
	}
	r, ok := f.records[key]
	if !ok {
		r = &FetchRecord{Key: key, Attrs: map[string]FetchAttr{}}
		f.records[key] = r
	}
	r.Seq = seq
	if uid != 0 {
		r.UID = uid
	}
	for k, v := range attrs {
		r.Attrs[k] = v
	}
}

// RFC 9051 section 9, msg-att-static.
func (f *fetchParser) xattr(attr string, v Value) FetchAttr {
	switch attr {
	case "RFC822.SIZE", "SIZE":
		return FetchRFC822Size{attr, xnumber(v, attr)}

	case "INTERNALDATE":
		s := xnstring(v, attr)
		t, err := ParseDateTime(s, f.opts.NormaliseTimes)
		xcheck(err)
		return FetchInternalDate{t}

	case "ENVELOPE":
		return FetchEnvelope(xenvelope(v, f.opts.NormaliseTimes))

	case "BODY", "BODYSTRUCTURE":
		if _, ok := v.(List); ok {
			return FetchBodystructure{attr, xbodystructure(v, f.opts.NormaliseTimes)}
		}
	}

	if _, ok := rawAttrs[attr]; !ok && !strings.Contains(attr, "[") {
		xlog.Debug("passing through unknown fetch attribute", slog.String("attr", attr))
	}
	return FetchRaw{attr, v}
}

// xcheck panics with err, which is nil or an Error.
func xcheck(err error) {
	if err == nil {
		return
	}
	if e, ok := err.(Error); ok {
		panic(e)
	}
	panic(Error{nil, err})
}
