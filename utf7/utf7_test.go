package utf7

import (
	"errors"
	"fmt"
	"testing"
)

func TestUTF7(t *testing.T) {
	check := func(input string, output string, expErr error) {
		t.Helper()

		r, err := Decode([]byte(input))
		if r != output {
			t.Fatalf("got %q, expected %q (err %v), for input %q", r, output, err, input)
		}
		if (expErr == nil) != (err == nil) || err != nil && !errors.Is(err, expErr) {
			t.Fatalf("got err %v, expected %v", err, expErr)
		}
		if err != nil && !errors.Is(err, ErrEncoding) {
			t.Fatalf("error %v does not wrap ErrEncoding", err)
		}
		if expErr == nil {
			expInput, err := Encode(output)
			if err != nil {
				t.Fatalf("encoding %q: %v", output, err)
			}
			if string(expInput) != input {
				t.Fatalf("encoding, got %s, expected %s", expInput, input)
			}
		}
	}

	check("", "", nil)
	check("plain", "plain", nil)
	check("&Jjo-", "☺", nil)
	check("test&Jjo-", "test☺", nil)
	check("&Jjo-test&Jjo-", "☺test☺", nil)
	check("&Jjo-test", "☺test", nil)
	check("&-", "&", nil)
	check("a&-b", "a&b", nil)
	check("&Jjo-&-", "☺&", nil)
	check("&Jjo", "", errUnfinishedShift) // missing closing -
	check("&", "", errUnfinishedShift)
	check("&☺-", "", errNonASCII)
	check("&Jj!-", "", errBase64)
	check("&YQ-", "", errOddSized) // Just a single byte 'a'
	check("&2AHcNw-", "𐐷", nil)
	check("&AAk-", "\t", nil)
	check(fmt.Sprintf("&%s-", utf7encoding.EncodeToString([]byte{0xdc, 0x00, 0xd8, 0x00})), "", errBadSurrogate) // Low & high surrogate swapped.
	check(fmt.Sprintf("&%s-", utf7encoding.EncodeToString([]byte{0, 1, 0xd8, 0x00})), "", errBadSurrogate)       // ASCII + high surrogate at end.
	check(fmt.Sprintf("&%s-", utf7encoding.EncodeToString([]byte{0xd8, 0x00, 0, 1})), "", errBadSurrogate)       // high surrogate + ASCII.

	check("~peter/mail/&U,BTFw-/&ZeVnLIqe-", "~peter/mail/台北/日本語", nil)
	check("Entw&APw-rfe", "Entwürfe", nil)
}

func TestDecodeLenient(t *testing.T) {
	// A shift for characters that do not need one is accepted, like a shift
	// directly following an unshift.
	for input, exp := range map[string]string{
		"&AGE-":              "a",
		"&U,BTFw-&ZeVnLIqe-": "台北日本語",
	} {
		r, err := Decode([]byte(input))
		if err != nil || r != exp {
			t.Fatalf("decode %q: got %q, %v, expected %q", input, r, err, exp)
		}
	}
}

func TestEncodeInvalid(t *testing.T) {
	_, err := Encode("bad\xff")
	if !errors.Is(err, errInvalidUTF8) || !errors.Is(err, ErrEncoding) {
		t.Fatalf("got err %v, expected errInvalidUTF8", err)
	}
}

func TestRoundtrip(t *testing.T) {
	for _, s := range []string{"", "&", "&&", "INBOX", "Sent Items", "Ünïcödé/&/mixed", "😀 emoji", "tab\there", "\x7f"} {
		b, err := Encode(s)
		if err != nil {
			t.Fatalf("encode %q: %v", s, err)
		}
		r, err := Decode(b)
		if err != nil {
			t.Fatalf("decode %q: %v", b, err)
		}
		if r != s {
			t.Fatalf("roundtrip, got %q, expected %q", r, s)
		}
		b2, err := Encode(r)
		if err != nil || string(b2) != string(b) {
			t.Fatalf("re-encode, got %q, %v, expected %q", b2, err, b)
		}
	}
}

func FuzzUTF7(f *testing.F) {
	f.Add("INBOX")
	f.Add("台北/日本語&more")
	f.Fuzz(func(t *testing.T, s string) {
		b, err := Encode(s)
		if err != nil {
			return
		}
		r, err := Decode(b)
		if err != nil {
			t.Fatalf("decode of encoded %q: %v", b, err)
		}
		if r != s {
			t.Fatalf("got %q, expected %q", r, s)
		}
	})
}
