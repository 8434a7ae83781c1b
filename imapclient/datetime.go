package imapclient

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"golang.org/x/exp/slog"

	"github.com/mjl-/imapparse/metrics"
)

// Layouts for INTERNALDATE and search criteria dates.
// RFC 9051 section 9, date-time and date.
const (
	internalDateLayout = "2-Jan-2006 15:04:05 -0700"
	internalDateFormat = "02-Jan-2006 15:04:05 -0700"
	criteriaDateLayout = "02-Jan-2006"
)

// Some servers send envelope dates with dots between the time fields, e.g.
// "Mon, 2 Jan 2006 15.04.05 +0000".
var dottedTime = regexp.MustCompile(`^(\w+, ?\d{1,2} \w+ \d\d(?:\d\d)?) (\d\d?)\.(\d\d?)\.(\d\d?)(.*)$`)

// ParseDateTime parses an IMAP INTERNALDATE, e.g. "17-Jul-1996 02:44:25
// -0700", or an RFC 5322 date as found in envelopes, e.g. "Wed, 17 Jul 1996
// 02:44:25 -0700 (PDT)".
//
// If normalise is set, the time is converted to the local time zone. The
// original zone offset is lost, the instant in time is not. Otherwise the time
// carries a fixed zone with the offset from s.
//
// Errors wrap ErrFormat.
func ParseDateTime(s string, normalise bool) (tm time.Time, rerr error) {
	defer func() {
		metrics.ParseResult("datetime", rerr)
		if rerr != nil {
			xlog.Debugx("parsing date-time", rerr, slog.String("text", s))
		}
	}()

	ds := strings.TrimSpace(s)
	t, err := time.Parse(internalDateLayout, ds)
	if err != nil {
		if m := dottedTime.FindStringSubmatch(ds); m != nil {
			ds = m[1] + " " + pad2(m[2]) + ":" + pad2(m[3]) + ":" + pad2(m[4]) + m[5]
		}
		var merr error
		t, merr = mail.ParseDate(ds)
		if merr != nil {
			return time.Time{}, Error{nil, fmt.Errorf("%w: parsing date-time %q: %v", ErrFormat, s, merr)}
		}
	}
	if normalise {
		t = t.In(time.Local)
	}
	return t, nil
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// FormatInternalDate formats t for use as INTERNALDATE, e.g. in an APPEND
// command: "07-Jul-1996 02:44:25 -0700", with a zero-padded day. The zone of
// t is used.
func FormatInternalDate(t time.Time) string {
	return t.Format(internalDateFormat)
}

// FormatCriteriaDate formats t as date for SEARCH criteria like SINCE and
// BEFORE, e.g. "07-Jul-1996". The zero time is rejected with an error wrapping
// ErrFormat.
func FormatCriteriaDate(t time.Time) (string, error) {
	if t.IsZero() {
		return "", Error{nil, fmt.Errorf("%w: zero time as search date", ErrFormat)}
	}
	return t.Format(criteriaDateLayout), nil
}
