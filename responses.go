package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"slices"
	"strconv"
	"unicode/utf8"

	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/mjl-/imapparse/imapclient"
	"github.com/mjl-/imapparse/mlog"
	"github.com/mjl-/imapparse/moxio"
)

func cmdParse(c *cmd) {
	c.params = "[-format json|yaml] file ..."
	c.help = `Parse files with IMAP response lines and print the values.

Each file holds response lines as received from a server, with CRLF or LF line
endings. Use "-" for standard input. Parenthesized lists are printed as arrays,
NIL as null. Literals and quoted strings that are not valid UTF-8 are printed
as object with base64 data. Files are parsed concurrently, and printed in
order.
`
	var format string
	c.flag.StringVar(&format, "format", conf.Output.Format, "output format, json or yaml")
	args := c.Parse()
	if len(args) == 0 {
		c.Usage()
	}

	results, err := parseFiles(c.log, args, func(lines [][]byte) (any, error) {
		l, err := imapclient.ParseResponse(lines)
		if err != nil {
			return nil, err
		}
		return plainValue(l), nil
	})
	xcheckf(err, "parsing")
	for _, r := range results {
		err := writeOutput(os.Stdout, format, r)
		xcheckf(err, "writing output")
	}
}

func cmdFetch(c *cmd) {
	c.params = "[-seq] [-keeptz] [-format json|yaml] file ..."
	c.help = `Parse files with FETCH responses and print the records per message.

Records are keyed by UID, or with -seq by message sequence number. Multiple
FETCH responses for the same message are merged. INTERNALDATE, ENVELOPE,
BODYSTRUCTURE and sizes are interpreted, other attributes are printed as
parsed.
`
	opts := conf.FetchOptions()
	var keyBySeq, keeptz bool
	var format string
	c.flag.BoolVar(&keyBySeq, "seq", opts.Key == imapclient.KeySeq, "key records by message sequence number instead of uid")
	c.flag.BoolVar(&keeptz, "keeptz", !opts.NormaliseTimes, "keep time zone offsets instead of converting to the local time zone")
	c.flag.StringVar(&format, "format", conf.Output.Format, "output format, json or yaml")
	args := c.Parse()
	if len(args) == 0 {
		c.Usage()
	}
	opts.Key = imapclient.KeyUID
	if keyBySeq {
		opts.Key = imapclient.KeySeq
	}
	opts.NormaliseTimes = !keeptz

	results, err := parseFiles(c.log, args, func(lines [][]byte) (any, error) {
		records, err := imapclient.ParseFetchResponse(lines, opts)
		if err != nil {
			return nil, err
		}
		return plainRecords(records), nil
	})
	xcheckf(err, "parsing fetch responses")
	for _, r := range results {
		err := writeOutput(os.Stdout, format, r)
		xcheckf(err, "writing output")
	}
}

func cmdSearch(c *cmd) {
	c.params = "file ..."
	c.help = `Parse files with SEARCH responses and print the message ids.

A modseq from a CONDSTORE "(MODSEQ n)" suffix is printed after the ids.
`
	args := c.Parse()
	if len(args) == 0 {
		c.Usage()
	}

	results, err := parseFiles(c.log, args, func(lines [][]byte) (any, error) {
		return imapclient.ParseMessageList(lines)
	})
	xcheckf(err, "parsing search responses")
	for _, r := range results {
		fmt.Println(formatSearch(r.(imapclient.SearchIDs)))
	}
}

func formatSearch(r imapclient.SearchIDs) string {
	var b []byte
	for i, id := range r.IDs {
		if i > 0 {
			b = append(b, ' ')
		}
		b = strconv.AppendUint(b, uint64(id), 10)
	}
	if r.ModSeq > 0 {
		b = append(b, " modseq "...)
		b = strconv.AppendInt(b, r.ModSeq, 10)
	}
	return string(b)
}

// parseFiles reads the files concurrently, and calls parse for each. Results
// are returned in order of the files. The first error is returned.
func parseFiles(log mlog.Log, files []string, parse func(lines [][]byte) (any, error)) ([]any, error) {
	results := make([]any, len(files))
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, file := range files {
		i, file := i, file
		log := log.WithCid(int64(i + 1))
		g.Go(func() error {
			lines, err := readLines(log, file)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			r, err := parse(lines)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			log.Debug("parsed file", slog.String("file", file), slog.Int("lines", len(lines)))
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func readLines(log mlog.Log, file string) ([][]byte, error) {
	if file == "-" {
		return moxio.ReadLines(log, os.Stdin, conf.MaxLineSize)
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer func() {
		err := f.Close()
		log.Check(err, "closing file", slog.String("file", file))
	}()
	return moxio.ReadLines(log, f, conf.MaxLineSize)
}

// plainValue returns v as value that can be marshalled as json or yaml.
func plainValue(v imapclient.Value) any {
	switch x := v.(type) {
	case imapclient.String:
		return string(x)
	case imapclient.Bytes:
		if utf8.Valid(x) {
			return string(x)
		}
		return map[string]string{"base64": base64.StdEncoding.EncodeToString(x)}
	case imapclient.Number:
		return int64(x)
	case imapclient.Nil:
		return nil
	case imapclient.List:
		l := make([]any, len(x))
		for i, e := range x {
			l[i] = plainValue(e)
		}
		return l
	}
	panic(fmt.Sprintf("unknown value %T", v))
}

type plainRecord struct {
	Seq   uint32         `json:"seq" yaml:"seq"`
	UID   uint32         `json:"uid,omitempty" yaml:"uid,omitempty"`
	Attrs map[string]any `json:"attrs" yaml:"attrs"`
}

// plainRecords returns records ordered by key, with raw attribute values as
// plain values.
func plainRecords(records map[uint32]*imapclient.FetchRecord) []plainRecord {
	var keys []uint32
	for k := range records {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	l := make([]plainRecord, 0, len(keys))
	for _, k := range keys {
		r := records[k]
		pr := plainRecord{r.Seq, r.UID, map[string]any{}}
		for name, attr := range r.Attrs {
			switch a := attr.(type) {
			case imapclient.FetchRaw:
				pr.Attrs[name] = plainValue(a.Value)
			case imapclient.FetchRFC822Size:
				pr.Attrs[name] = a.Size
			case imapclient.FetchInternalDate:
				pr.Attrs[name] = a.Date
			case imapclient.FetchEnvelope:
				pr.Attrs[name] = plainEnvelope(imapclient.Envelope(a))
			case imapclient.FetchBodystructure:
				pr.Attrs[name] = plainBody(a.Body)
			default:
				pr.Attrs[name] = attr
			}
		}
		l = append(l, pr)
	}
	return l
}

func plainEnvelope(e imapclient.Envelope) map[string]any {
	addrs := func(l []imapclient.Address) []string {
		var r []string
		for _, a := range l {
			r = append(r, a.String())
		}
		return r
	}
	m := map[string]any{
		"rawdate":   e.RawDate,
		"subject":   e.DecodedSubject(),
		"from":      addrs(e.From),
		"sender":    addrs(e.Sender),
		"replyto":   addrs(e.ReplyTo),
		"to":        addrs(e.To),
		"cc":        addrs(e.CC),
		"bcc":       addrs(e.BCC),
		"inreplyto": e.InReplyTo,
		"messageid": e.MessageID,
	}
	if !e.Date.IsZero() {
		m["date"] = e.Date
	}
	return m
}

func plainBody(bd imapclient.BodyData) map[string]any {
	m := map[string]any{
		"type": bd.MediaType + "/" + bd.MediaSubtype,
	}
	if bd.IsMultipart() {
		var parts []any
		for _, p := range bd.Parts {
			parts = append(parts, plainBody(p))
		}
		m["parts"] = parts
	} else {
		m["octets"] = bd.Octets
		if bd.Encoding != "" {
			m["encoding"] = bd.Encoding
		}
		if len(bd.Params) > 0 {
			params := map[string]string{}
			for _, kv := range bd.Params {
				params[kv[0]] = kv[1]
			}
			m["params"] = params
		}
		if bd.Lines > 0 {
			m["lines"] = bd.Lines
		}
		if bd.Envelope != nil {
			m["envelope"] = plainEnvelope(*bd.Envelope)
		}
		if bd.Body != nil {
			m["body"] = plainBody(*bd.Body)
		}
	}
	if len(bd.Extension) > 0 {
		m["extension"] = plainValue(bd.Extension)
	}
	return m
}

// writeOutput writes v to w as json or yaml.
func writeOutput(w io.Writer, format string, v any) error {
	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "\t")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown output format %q", format)
}
