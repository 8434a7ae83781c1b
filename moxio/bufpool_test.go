package moxio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/mjl-/imapparse/mlog"
)

func TestBufpool(t *testing.T) {
	bp := NewBufpool(1, 8)
	a := bp.get()
	b := bp.get()
	for i := 0; i < len(a); i++ {
		a[i] = 1
	}
	log := mlog.New("moxio", nil)
	bp.put(log, a, len(a)) // Will be stored.
	bp.put(log, b, 0)      // Will be discarded.
	na := bp.get()
	if fmt.Sprintf("%p", a) != fmt.Sprintf("%p", na) {
		t.Fatalf("received unexpected new buf %p != %p", a, na)
	}
	for _, c := range na {
		if c != 0 {
			t.Fatalf("reused buf not cleared")
		}
	}

	if _, err := bp.Readline(log, bufio.NewReader(strings.NewReader("this is too long"))); !errors.Is(err, ErrLineTooLong) {
		t.Fatalf("expected ErrLineTooLong, got error %v", err)
	}
	if line, err := bp.Readline(log, bufio.NewReader(strings.NewReader("short"))); err != nil || string(line) != "short" {
		t.Fatalf(`got %q, err %v, expected line "short"`, line, err)
	}
	if _, err := bp.Readline(log, bufio.NewReader(strings.NewReader(""))); err != io.EOF {
		t.Fatalf("expected io.EOF, got error %v", err)
	}

	er := errReader{fmt.Errorf("bad")}
	if _, err := bp.Readline(log, bufio.NewReader(er)); err == nil || !errors.Is(err, er.err) {
		t.Fatalf("got unexpected error %s", err)
	}

	if line, err := bp.Readline(log, bufio.NewReader(strings.NewReader("ok\r\n"))); string(line) != "ok" {
		t.Fatalf(`got %q, err %v, expected line "ok"`, line, err)
	}
	if line, err := bp.Readline(log, bufio.NewReader(strings.NewReader("ok\n"))); string(line) != "ok" {
		t.Fatalf(`got %q, err %v, expected line "ok"`, line, err)
	}
	// Line and CR fill the buffer.
	if line, err := bp.Readline(log, bufio.NewReader(strings.NewReader("1234567\r\n"))); err != nil || string(line) != "1234567" {
		t.Fatalf(`got %q, err %v, expected line "1234567"`, line, err)
	}
}

func TestReadLines(t *testing.T) {
	log := mlog.New("moxio", nil)
	lines, err := ReadLines(log, strings.NewReader("* 1 FETCH (BODY[] {5}\r\nhello)\r\n\n* 2 FETCH (UID 1)"), 100)
	if err != nil {
		t.Fatalf("read lines: %v", err)
	}
	exp := []string{"* 1 FETCH (BODY[] {5}", "hello)", "", "* 2 FETCH (UID 1)"}
	if len(lines) != len(exp) {
		t.Fatalf("got %q, expected %q", lines, exp)
	}
	for i, l := range lines {
		if string(l) != exp[i] {
			t.Fatalf("line %d: got %q, expected %q", i, l, exp[i])
		}
	}

	_, err = ReadLines(log, strings.NewReader("ok\nthis line is too long\n"), 10)
	if !errors.Is(err, ErrLineTooLong) || !strings.HasPrefix(err.Error(), "line 2:") {
		t.Fatalf("got err %v, expected ErrLineTooLong for line 2", err)
	}
}

type errReader struct {
	err error
}

func (r errReader) Read(buf []byte) (int, error) {
	return 0, r.err
}
