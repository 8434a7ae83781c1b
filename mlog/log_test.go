package mlog

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"golang.org/x/exp/slog"
)

func TestLevels(t *testing.T) {
	defer SetConfig(Config())
	SetConfig(map[string]slog.Level{"": LevelError, "imapclient": LevelDebug})

	var buf bytes.Buffer
	log := NewWriter("imapclient", &buf)
	log.Debugx("parsing response", errors.New("boom"), slog.Int("line", 2))
	log.Trace(LevelTracedata, "data: ", []byte("secret"))
	out := buf.String()
	if !strings.Contains(out, `debug: "parsing response"`) || !strings.Contains(out, "err: boom") || !strings.Contains(out, "line: 2") {
		t.Fatalf("unexpected output %q", out)
	}
	if strings.Contains(out, "secret") {
		t.Fatalf("trace data logged at debug level: %q", out)
	}

	buf.Reset()
	other := NewWriter("utf7", &buf)
	other.Debug("not shown")
	other.Check(nil, "not shown either")
	if buf.Len() != 0 {
		t.Fatalf("got output %q, expected none for fallback level error", buf.String())
	}
	other.Print("always")
	if !strings.HasPrefix(buf.String(), "print: always") {
		t.Fatalf("got %q, expected print line", buf.String())
	}
}

func TestTraceRedacted(t *testing.T) {
	defer SetConfig(Config())
	SetConfig(map[string]slog.Level{"": LevelTrace})

	var buf bytes.Buffer
	log := NewWriter("imapclient", &buf)
	log.Trace(LevelTracedata, "literal: ", []byte("body text"))
	if got := buf.String(); !strings.Contains(got, "literal: ...") {
		t.Fatalf("got %q, expected redacted trace", got)
	}
}

func TestLogfmt(t *testing.T) {
	defer SetConfig(Config())
	defer func() { Logfmt = false }()
	SetConfig(map[string]slog.Level{"": LevelInfo})
	Logfmt = true

	var buf bytes.Buffer
	log := NewWriter("config", &buf).WithCid(255)
	log.Info("loaded config", slog.String("path", "a b.conf"))
	exp := `l=info m="loaded config" pkg=config cid=ff path="a b.conf"` + "\n"
	if got := buf.String(); got != exp {
		t.Fatalf("got %q, expected %q", got, exp)
	}
}
