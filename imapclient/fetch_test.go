package imapclient

import (
	"testing"
	"time"
)

func TestFetch(t *testing.T) {
	lines := tlines(
		`* 2 FETCH (FLAGS (\Seen) UID 20 RFC822.SIZE 1024 INTERNALDATE "17-Jul-1996 02:44:25 -0700")`,
		`* 3 FETCH (UID 30 X-GM-LABELS (\Inbox) MODSEQ (12345))`,
	)
	opts := FetchOptions{Key: KeyUID}
	records, err := ParseFetchResponse(lines, opts)
	tcheckf(t, err, "parse fetch")

	date := time.Date(1996, 7, 17, 2, 44, 25, 0, time.FixedZone("", -7*3600))
	exp := map[uint32]*FetchRecord{
		20: {
			Key: 20, Seq: 2, UID: 20,
			Attrs: map[string]FetchAttr{
				"FLAGS":        FetchRaw{"FLAGS", List{String(`\Seen`)}},
				"RFC822.SIZE":  FetchRFC822Size{"RFC822.SIZE", 1024},
				"INTERNALDATE": FetchInternalDate{date},
			},
		},
		30: {
			Key: 30, Seq: 3, UID: 30,
			Attrs: map[string]FetchAttr{
				"X-GM-LABELS": FetchRaw{"X-GM-LABELS", List{String(`\Inbox`)}},
				"MODSEQ":      FetchRaw{"MODSEQ", List{Number(12345)}},
			},
		},
	}
	tcompare(t, records, exp)
	_, offset := records[20].Attrs["INTERNALDATE"].(FetchInternalDate).Date.Zone()
	tcompare(t, offset, -7*3600)

	// Same responses keyed by sequence number.
	opts.Key = KeySeq
	records, err = ParseFetchResponse(lines, opts)
	tcheckf(t, err, "parse fetch by seq")
	exp[20].Key = 2
	exp[30].Key = 3
	tcompare(t, records, map[uint32]*FetchRecord{2: exp[20], 3: exp[30]})
}

func TestFetchKeys(t *testing.T) {
	// Without UID, the sequence number is the key in both modes.
	for _, mode := range []KeyMode{KeyUID, KeySeq} {
		records, err := ParseFetchResponse(tlines(`* 4 FETCH (FLAGS ())`), FetchOptions{Key: mode})
		tcheckf(t, err, "parse fetch, mode %s", mode)
		tcompare(t, records, map[uint32]*FetchRecord{
			4: {Key: 4, Seq: 4, Attrs: map[string]FetchAttr{"FLAGS": FetchRaw{"FLAGS", List{}}}},
		})
	}

	// Responses for the same message are merged. Lower case is accepted.
	records, err := ParseFetchResponse(tlines(
		`* 5 FETCH (UID 50 FLAGS ())`,
		`* 5 fetch (rfc822.size 10 uid 50)`,
	), DefaultFetchOptions())
	tcheckf(t, err, "parse fetch")
	tcompare(t, records, map[uint32]*FetchRecord{
		50: {Key: 50, Seq: 5, UID: 50, Attrs: map[string]FetchAttr{
			"FLAGS":       FetchRaw{"FLAGS", List{}},
			"RFC822.SIZE": FetchRFC822Size{"RFC822.SIZE", 10},
		}},
	})

	// Without "*" and "FETCH", and a UID FETCH response.
	records, err = ParseFetchResponse(tlines(`6 (UID 60)`, `* 7 UIDFETCH (UID 70 SIZE 1)`), DefaultFetchOptions())
	tcheckf(t, err, "parse fetch")
	tcompare(t, records, map[uint32]*FetchRecord{
		60: {Key: 60, Seq: 6, UID: 60, Attrs: map[string]FetchAttr{}},
		70: {Key: 70, Seq: 7, UID: 70, Attrs: map[string]FetchAttr{"SIZE": FetchRFC822Size{"SIZE", 1}}},
	})

	// A second UID in a group starts another message.
	records, err = ParseFetchResponse(tlines(`* 8 FETCH (FLAGS () UID 80 SIZE 2 UID 81)`), DefaultFetchOptions())
	tcheckf(t, err, "parse fetch")
	tcompare(t, records, map[uint32]*FetchRecord{
		80: {Key: 80, Seq: 8, UID: 80, Attrs: map[string]FetchAttr{"FLAGS": FetchRaw{"FLAGS", List{}}, "SIZE": FetchRFC822Size{"SIZE", 2}}},
		81: {Key: 81, Seq: 8, UID: 81, Attrs: map[string]FetchAttr{}},
	})

	records, err = ParseFetchResponse(nil, DefaultFetchOptions())
	tcheckf(t, err, "parse empty")
	tcompare(t, len(records), 0)
}

func TestFetchLiteral(t *testing.T) {
	records, err := ParseFetchResponse(tlines(
		`* 1 FETCH (UID 7 BODY[HEADER.FIELDS (SUBJECT)] {14}`,
		`Subject: test`,
		` FLAGS (\Seen))`,
	), DefaultFetchOptions())
	tcheckf(t, err, "parse fetch")
	tcompare(t, records, map[uint32]*FetchRecord{
		7: {Key: 7, Seq: 1, UID: 7, Attrs: map[string]FetchAttr{
			"BODY[HEADER.FIELDS (SUBJECT)]": FetchRaw{"BODY[HEADER.FIELDS (SUBJECT)]", Bytes("Subject: test\n")},
			"FLAGS":                         FetchRaw{"FLAGS", List{String(`\Seen`)}},
		}},
	})
}

func TestFetchEnvelope(t *testing.T) {
	lines := tlines(`* 12 FETCH (UID 100 ENVELOPE ("Wed, 17 Jul 1996 02:23:25 -0700 (PDT)" "IMAP4rev1 WG mtg summary and minutes" (("Terry Gray" NIL "gray" "cac.washington.edu")) NIL NIL ((NIL NIL "imap" "cac.washington.edu")) ((NIL NIL "minutes" "CNRI.Reston.VA.US")("John Klensin" NIL "KLENSIN" "MIT.EDU")) NIL NIL "<B27397-0100000@cac.washington.edu>"))`)
	records, err := ParseFetchResponse(lines, FetchOptions{Key: KeyUID})
	tcheckf(t, err, "parse fetch")

	gray := Address{"Terry Gray", "", "gray", "cac.washington.edu"}
	exp := FetchEnvelope{
		Date:      time.Date(1996, 7, 17, 2, 23, 25, 0, time.FixedZone("", -7*3600)),
		RawDate:   "Wed, 17 Jul 1996 02:23:25 -0700 (PDT)",
		Subject:   "IMAP4rev1 WG mtg summary and minutes",
		From:      []Address{gray},
		To:        []Address{{"", "", "imap", "cac.washington.edu"}},
		CC:        []Address{{"", "", "minutes", "CNRI.Reston.VA.US"}, {"John Klensin", "", "KLENSIN", "MIT.EDU"}},
		MessageID: "<B27397-0100000@cac.washington.edu>",
	}
	tcompare(t, records[100].Attrs["ENVELOPE"], exp)
	tcompare(t, gray.String(), `"Terry Gray" <gray@cac.washington.edu>`)

	// A date that cannot be parsed is kept as raw date.
	lines = tlines(`* 1 FETCH (ENVELOPE ("bogus date" NIL NIL NIL NIL NIL NIL NIL NIL NIL))`)
	records, err = ParseFetchResponse(lines, DefaultFetchOptions())
	tcheckf(t, err, "parse fetch")
	tcompare(t, records[1].Attrs["ENVELOPE"], FetchEnvelope{RawDate: "bogus date"})
}

func TestFetchBodystructure(t *testing.T) {
	lines := tlines(`* 3 FETCH (UID 9 BODYSTRUCTURE (("TEXT" "PLAIN" ("CHARSET" "US-ASCII") NIL NIL "7BIT" 1152 23)("TEXT" "PLAIN" ("CHARSET" "US-ASCII" "NAME" "cc.diff") "<960723163407.20117h@cac.washington.edu>" "Compiler diff" "BASE64" 4554 73) "MIXED") BODY ("image" "gif" NIL NIL NIL "base64" 100))`)
	records, err := ParseFetchResponse(lines, DefaultFetchOptions())
	tcheckf(t, err, "parse fetch")

	bs := records[9].Attrs["BODYSTRUCTURE"].(FetchBodystructure)
	tcompare(t, bs.Body.IsMultipart(), true)
	tcompare(t, bs, FetchBodystructure{"BODYSTRUCTURE", BodyData{
		Parts: []BodyData{
			{MediaType: "TEXT", MediaSubtype: "PLAIN", Params: [][2]string{{"CHARSET", "US-ASCII"}}, Encoding: "7BIT", Octets: 1152, Lines: 23},
			{MediaType: "TEXT", MediaSubtype: "PLAIN", Params: [][2]string{{"CHARSET", "US-ASCII"}, {"NAME", "cc.diff"}}, ContentID: "<960723163407.20117h@cac.washington.edu>", Description: "Compiler diff", Encoding: "BASE64", Octets: 4554, Lines: 73},
		},
		MediaType:    "MULTIPART",
		MediaSubtype: "MIXED",
	}})
	tcompare(t, records[9].Attrs["BODY"], FetchBodystructure{"BODY", BodyData{MediaType: "IMAGE", MediaSubtype: "GIF", Encoding: "BASE64", Octets: 100}})

	// BODY with section is raw.
	records, err = ParseFetchResponse(tlines(`* 3 FETCH (BODY[TEXT] "hi" BODY NIL)`), FetchOptions{Key: KeySeq})
	tcheckf(t, err, "parse fetch")
	tcompare(t, records[3].Attrs, map[string]FetchAttr{
		"BODY[TEXT]": FetchRaw{"BODY[TEXT]", String("hi")},
		"BODY":       FetchRaw{"BODY", Nil{}},
	})
}

func TestFetchErrors(t *testing.T) {
	check := func(line string, expErr error) {
		t.Helper()
		_, err := ParseFetchResponse(tlines(line), DefaultFetchOptions())
		terr(t, err, expErr)
	}

	check(`* 1 FETCH (FLAGS)`, ErrProtocol)
	check(`* 1 FETCH`, ErrProtocol)
	check(`* 1 FETCH FLAGS`, ErrProtocol)
	check(`* FETCH (FLAGS ())`, ErrProtocol)
	check(`* 0 FETCH (FLAGS ())`, ErrProtocol)
	check(`* 4294967296 FETCH (FLAGS ())`, ErrProtocol)
	check(`* 1 FETCH (UID abc)`, ErrProtocol)
	check(`* 1 FETCH (UID 0)`, ErrProtocol)
	check(`* 1 FETCH ((FLAGS) ())`, ErrProtocol)
	check(`* 1 FETCH (RFC822.SIZE "big")`, ErrProtocol)
	check(`* 1 FETCH (ENVELOPE (NIL NIL))`, ErrProtocol)
	check(`* 1 FETCH (ENVELOPE (NIL NIL ((NIL NIL "a")) NIL NIL NIL NIL NIL NIL NIL))`, ErrProtocol)
	check(`* 1 FETCH (ENVELOPE (NIL NIL "from" NIL NIL NIL NIL NIL NIL NIL))`, ErrProtocol)
	check(`* 1 FETCH (BODYSTRUCTURE ("TEXT" "PLAIN" NIL NIL))`, ErrProtocol)
	check(`* 1 FETCH (BODYSTRUCTURE ("TEXT" "PLAIN" ("CHARSET") NIL NIL "7BIT" 1))`, ErrProtocol)
	check(`* 1 FETCH (BODYSTRUCTURE (("TEXT" "PLAIN" NIL NIL NIL "7BIT" 1)))`, ErrProtocol)
	check(`* 1 FETCH (INTERNALDATE "yesterday")`, ErrFormat)
	check(`* 1 FETCH (FLAGS (\Seen)`, ErrFraming)
}
