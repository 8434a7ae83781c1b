// Package utf7 implements the modified UTF-7 encoding used for IMAP mailbox
// names, as defined in RFC 3501 section 5.1.3.
//
// Printable US-ASCII except "&" represents itself. "&" is written as "&-".
// Other characters are converted to UTF-16BE, base64-encoded with "," instead
// of "/" and without padding, and enclosed in "&" and "-".
package utf7

import (
	"encoding/base64"
	"errors"
	"fmt"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"

	"github.com/mjl-/imapparse/metrics"
	"github.com/mjl-/imapparse/mlog"
)

var xlog = mlog.New("utf7", nil)

// ErrEncoding is wrapped by all errors returned by Encode and Decode.
var ErrEncoding = errors.New("utf7")

var (
	errUnfinishedShift = fmt.Errorf("%w: unfinished shift", ErrEncoding)
	errBase64          = fmt.Errorf("%w: bad base64", ErrEncoding)
	errOddSized        = fmt.Errorf("%w: odd-sized data", ErrEncoding)
	errBadSurrogate    = fmt.Errorf("%w: bad surrogate pair", ErrEncoding)
	errInvalidUTF8     = fmt.Errorf("%w: invalid utf-8 in input", ErrEncoding)
	errNonASCII        = fmt.Errorf("%w: non-ascii byte in encoded input", ErrEncoding)
)

const utf7chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+,"

var utf7encoding = base64.NewEncoding(utf7chars).WithPadding(base64.NoPadding)

var utf16be = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

func passthrough(c rune) bool {
	return c >= 0x20 && c <= 0x7e && c != '&'
}

// Encode returns the modified UTF-7 form of mailbox name s. An error is only
// returned when s is not valid UTF-8.
func Encode(s string) (buf []byte, rerr error) {
	defer func() {
		metrics.ParseResult("utf7", rerr)
	}()

	if !utf8.ValidString(s) {
		return nil, errInvalidUTF8
	}

	r := make([]byte, 0, len(s))
	var pending []rune
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		u, err := utf16be.NewEncoder().Bytes([]byte(string(pending)))
		if err != nil {
			return fmt.Errorf("%w: converting to utf-16: %v", ErrEncoding, err)
		}
		r = append(r, '&')
		r = append(r, utf7encoding.EncodeToString(u)...)
		r = append(r, '-')
		pending = pending[:0]
		return nil
	}

	for _, c := range s {
		if passthrough(c) {
			if err := flush(); err != nil {
				return nil, err
			}
			r = append(r, byte(c))
		} else if c == '&' {
			if err := flush(); err != nil {
				return nil, err
			}
			r = append(r, '&', '-')
		} else {
			pending = append(pending, c)
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return r, nil
}

// Decode returns the mailbox name encoded in modified UTF-7 in b.
func Decode(b []byte) (s string, rerr error) {
	defer func() {
		metrics.ParseResult("utf7", rerr)
		if rerr != nil {
			xlog.Debugx("decoding mailbox name", rerr)
		}
	}()

	var r []rune
	var shifted bool
	var shift []byte

	for _, c := range b {
		if c >= 0x80 {
			return "", errNonASCII
		}
		if !shifted {
			if c == '&' {
				shifted = true
			} else {
				r = append(r, rune(c))
			}
			continue
		}

		if c != '-' {
			shift = append(shift, c)
			continue
		}

		shifted = false
		if len(shift) == 0 {
			r = append(r, '&')
			continue
		}
		x, err := decodeShift(shift)
		if err != nil {
			return "", err
		}
		r = append(r, x...)
		shift = shift[:0]
	}
	if shifted {
		return "", errUnfinishedShift
	}
	return string(r), nil
}

func decodeShift(shift []byte) ([]rune, error) {
	buf, err := utf7encoding.DecodeString(string(shift))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", errBase64, shift, err)
	}
	if len(buf)%2 != 0 {
		return nil, errOddSized
	}

	units := make([]uint16, len(buf)/2)
	for i := range units {
		units[i] = uint16(buf[2*i])<<8 | uint16(buf[2*i+1])
	}
	var r []rune
	for i := 0; i < len(units); i++ {
		c := rune(units[i])
		if !utf16.IsSurrogate(c) {
			r = append(r, c)
			continue
		}
		if i+1 >= len(units) {
			return nil, errBadSurrogate
		}
		x := utf16.DecodeRune(c, rune(units[i+1]))
		if x == utf8.RuneError {
			return nil, errBadSurrogate
		}
		r = append(r, x)
		i++
	}
	return r, nil
}
