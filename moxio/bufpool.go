// Package moxio has I/O helpers for reading response lines.
package moxio

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"golang.org/x/exp/slog"

	"github.com/mjl-/imapparse/mlog"
)

var ErrLineTooLong = errors.New("line too long") // Returned by Bufpool.Readline.

// Bufpool caches byte slices for reuse while reading lines.
type Bufpool struct {
	c    chan []byte
	size int
}

// NewBufpool makes a new pool, initially empty, but holding at most "max" buffers of "size" bytes each.
func NewBufpool(max, size int) *Bufpool {
	return &Bufpool{
		c:    make(chan []byte, max),
		size: size,
	}
}

// get returns a buffer from the pool if available, otherwise allocates a new buffer.
// The buffer should be returned with a call to put.
func (b *Bufpool) get() []byte {
	var buf []byte

	// Attempt to get buffer from pool. Otherwise create new buffer.
	select {
	case buf = <-b.c:
	default:
	}
	if buf == nil {
		buf = make([]byte, b.size)
	}
	return buf
}

// put puts a "buf" back in the pool. Put clears the first "n" bytes, which should
// be all the bytes that have been read in the buffer. If the pool is full, the
// buffer is discarded, and will be cleaned up by the garbage collector.
// The caller should no longer reference "buf" after a call to put.
func (b *Bufpool) put(log mlog.Log, buf []byte, n int) {
	if len(buf) != b.size {
		log.Error("buffer with bad size returned, ignoring", slog.Int("badsize", len(buf)), slog.Int("expsize", b.size))
		return
	}

	clear(buf[:n])
	select {
	case b.c <- buf:
	default:
	}
}

// Readline reads a \n- or \r\n-terminated line. Line is returned without \n or
// \r\n, in a new slice. If the line was too long, ErrLineTooLong is returned.
// At the end of the input, io.EOF is returned. Data after the last newline is
// returned as a line.
func (b *Bufpool) Readline(log mlog.Log, r *bufio.Reader) (line []byte, rerr error) {
	var nread int
	buf := b.get()
	defer func() {
		b.put(log, buf, nread)
	}()

	for {
		c, err := r.ReadByte()
		if err == io.EOF {
			if nread == 0 {
				return nil, io.EOF
			}
			return append([]byte{}, buf[:nread]...), nil
		} else if err != nil {
			return nil, fmt.Errorf("reading line: %w", err)
		}
		if c == '\n' {
			n := nread
			if n > 0 && buf[n-1] == '\r' {
				n--
			}
			return append([]byte{}, buf[:n]...), nil
		}
		if nread >= len(buf) {
			return nil, fmt.Errorf("%w: no newline after all %d bytes", ErrLineTooLong, nread)
		}
		buf[nread] = c
		nread++
	}
}

// ReadLines reads all lines from r, with line endings removed, for parsing
// as response. Lines may be at most maxLineSize bytes.
func ReadLines(log mlog.Log, r io.Reader, maxLineSize int) ([][]byte, error) {
	bp := NewBufpool(1, maxLineSize)
	br := bufio.NewReader(r)
	var lines [][]byte
	for {
		line, err := bp.Readline(log, br)
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("line %d: %w", len(lines)+1, err)
		}
		lines = append(lines, line)
	}
	log.Debug("read lines", slog.Int("lines", len(lines)))
	return lines, nil
}
