package imapclient

import (
	"strings"
)

// BodyData is the structure of a message or message part, as returned for
// BODYSTRUCTURE and BODY without section.
//
// For a multipart, Parts is non-empty, MediaType is "MULTIPART" and only
// MediaSubtype and Extension are set. Media types are in upper case.
type BodyData struct {
	Parts []BodyData

	MediaType    string
	MediaSubtype string
	Params       [][2]string // Key/value pairs, e.g. {"CHARSET", "utf-8"}.
	ContentID    string
	Description  string
	Encoding     string // Content-Transfer-Encoding.
	Octets       int64
	Lines        int64 // For TEXT and MESSAGE/RFC822 parts, 0 otherwise.

	// For MESSAGE/RFC822 parts.
	Envelope *Envelope
	Body     *BodyData

	// Extension data, as parsed, if any. E.g. the MD5, disposition and language
	// of a single part, or the parameters of a multipart.
	Extension List
}

// IsMultipart returns whether the body is a multipart.
func (b BodyData) IsMultipart() bool {
	return len(b.Parts) > 0
}

// ParseBodystructure converts a parsed BODYSTRUCTURE value into a BodyData.
// Envelope dates of nested messages are normalised as with ParseDateTime.
// Errors wrap ErrProtocol.
func ParseBodystructure(v Value, normalise bool) (bd BodyData, rerr error) {
	defer recoverError(&rerr)
	return xbodystructure(v, normalise), nil
}

// RFC 9051 section 9, body.
func xbodystructure(v Value, normalise bool) BodyData {
	l, ok := v.(List)
	if !ok || len(l) == 0 {
		xerrorf(nil, ErrProtocol, "body structure: expected non-empty list, got %s", describe(v))
	}

	if _, ok := l[0].(List); ok {
		var bd BodyData
		i := 0
		for ; i < len(l); i++ {
			if _, ok := l[i].(List); !ok {
				break
			}
			bd.Parts = append(bd.Parts, xbodystructure(l[i], normalise))
		}
		if i == len(l) {
			xerrorf(nil, ErrProtocol, "multipart body structure: missing media subtype after %d parts", len(bd.Parts))
		}
		bd.MediaType = "MULTIPART"
		bd.MediaSubtype = strings.ToUpper(xnstring(l[i], "multipart media subtype"))
		if rest := l[i+1:]; len(rest) > 0 {
			bd.Extension = rest
		}
		return bd
	}

	// RFC 9051 section 9, body-type-1part.
	l = xlistArity(l, "single part body structure", 7, -1)
	bd := BodyData{
		MediaType:    strings.ToUpper(xnstring(l[0], "body media type")),
		MediaSubtype: strings.ToUpper(xnstring(l[1], "body media subtype")),
		Params:       xbodyParams(l[2]),
		ContentID:    xnstring(l[3], "body content id"),
		Description:  xnstring(l[4], "body description"),
		Encoding:     strings.ToUpper(xnstring(l[5], "body encoding")),
		Octets:       xnumber(l[6], "body size"),
	}
	rest := l[7:]
	switch {
	case bd.MediaType == "MESSAGE" && bd.MediaSubtype == "RFC822" && len(rest) >= 3:
		// RFC 9051 section 9, body-type-msg.
		env := xenvelope(rest[0], normalise)
		sub := xbodystructure(rest[1], normalise)
		bd.Envelope = &env
		bd.Body = &sub
		bd.Lines = xnumber(rest[2], "message body lines")
		rest = rest[3:]
	case bd.MediaType == "TEXT" && len(rest) >= 1:
		// RFC 9051 section 9, body-type-text.
		if _, ok := rest[0].(Number); ok {
			bd.Lines = xnumber(rest[0], "text body lines")
			rest = rest[1:]
		}
	}
	if len(rest) > 0 {
		bd.Extension = rest
	}
	return bd
}

// RFC 9051 section 9, body-fld-param.
func xbodyParams(v Value) [][2]string {
	l, ok := AsList(v)
	if !ok {
		xerrorf(nil, ErrProtocol, "body parameters: expected list or NIL, got %s", describe(v))
	}
	if len(l) == 0 {
		return nil
	}
	if len(l)%2 != 0 {
		xerrorf(nil, ErrProtocol, "body parameters: expected key/value pairs, got %d values", len(l))
	}
	r := make([][2]string, 0, len(l)/2)
	for i := 0; i < len(l); i += 2 {
		k := xnstring(l[i], "body parameter key")
		val := xnstring(l[i+1], "body parameter value")
		r = append(r, [2]string{strings.ToUpper(k), val})
	}
	return r
}
