package imapclient

import (
	"bytes"
	"strconv"

	"golang.org/x/exp/slog"

	"github.com/mjl-/imapparse/metrics"
)

// ParseMessageList extracts message ids from SEARCH response lines, e.g.
// "* SEARCH 3 5 9". All runs of digits are ids, in order, duplicates included.
// A CONDSTORE suffix "(MODSEQ 123)" ends the ids, the first number after the
// MODSEQ keyword is returned as ModSeq.
//
// IDs is never nil on success. On error, the result is empty. Errors wrap
// ErrProtocol.
func ParseMessageList(lines [][]byte) (r SearchIDs, rerr error) {
	defer func() {
		metrics.ParseResult("search", rerr)
		if rerr != nil {
			r = SearchIDs{}
			xlog.Debugx("parsing message list", rerr, slog.Int("lines", len(lines)))
		}
	}()
	defer recoverError(&rerr)

	text := bytes.Join(lines, []byte(" "))
	ids := text
	var rest []byte
	if i := modseqIndex(text); i >= 0 {
		ids = text[:i]
		rest = text[i+len("MODSEQ"):]
	}

	r.IDs = []uint32{}
	for _, run := range digitRuns(ids) {
		id, err := strconv.ParseUint(string(run.digits), 10, 32)
		if err != nil {
			xerrorf(nil, ErrProtocol, "message id %s at offset %d: %v", run.digits, run.offset, err)
		}
		r.IDs = append(r.IDs, uint32(id))
	}

	if rest != nil {
		runs := digitRuns(rest)
		if len(runs) == 0 {
			xerrorf(nil, ErrProtocol, "missing number after MODSEQ")
		}
		ms, err := strconv.ParseInt(string(runs[0].digits), 10, 64)
		if err != nil || ms == 0 {
			xerrorf(nil, ErrProtocol, "bad modseq %s", runs[0].digits)
		}
		r.ModSeq = ms
	}
	return r, nil
}

// modseqIndex returns the offset of the first word "MODSEQ", case-insensitive,
// or -1. Words like "HIGHESTMODSEQ" do not match.
func modseqIndex(text []byte) int {
	isLetter := func(c byte) bool {
		return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '-' || c == '.'
	}
	const kw = "MODSEQ"
	for i := 0; i+len(kw) <= len(text); i++ {
		end := i + len(kw)
		if bytes.EqualFold(text[i:end], []byte(kw)) && (i == 0 || !isLetter(text[i-1])) && (end == len(text) || !isLetter(text[end])) {
			return i
		}
	}
	return -1
}

type digitRun struct {
	offset int // In the joined lines.
	digits []byte
}

func digitRuns(b []byte) []digitRun {
	var runs []digitRun
	for i := 0; i < len(b); {
		if b[i] < '0' || b[i] > '9' {
			i++
			continue
		}
		s := i
		for i < len(b) && b[i] >= '0' && b[i] <= '9' {
			i++
		}
		runs = append(runs, digitRun{s, b[s:i]})
	}
	return runs
}
