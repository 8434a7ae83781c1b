// Package mlog provides logging with log levels and fields.
//
// Each log level has a function to log with and without error.
// Each such function takes a varargs list of attributes to log.
// Variable data should be in attributes. Logging strings themselves should be
// constant, for easier log processing (e.g. building metrics based on log
// messages).
//
// The log levels can be configured per originating package, e.g. imapclient,
// utf7. The configuration is application-global, so each Log instance uses the
// same log levels.
//
// Print* should be used for lines that always should be printed, regardless of
// configured log levels. Useful for subcommands.
//
// Fatal* stops the program. Its log text is always printed.
package mlog

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/exp/slog"
)

var Logfmt bool

// Levels, in addition to the slog levels. Trace levels are below Debug, more
// verbose levels have lower values.
const (
	LevelPrint     slog.Level = 12 // Printed regardless of configured log level.
	LevelFatal     slog.Level = 10 // Printed regardless of configured log level.
	LevelError     slog.Level = slog.LevelError
	LevelWarn      slog.Level = slog.LevelWarn
	LevelInfo      slog.Level = slog.LevelInfo
	LevelDebug     slog.Level = slog.LevelDebug
	LevelTrace     slog.Level = -8
	LevelTraceauth slog.Level = -10
	LevelTracedata slog.Level = -12
)

var LevelStrings = map[slog.Level]string{
	LevelPrint:     "print",
	LevelFatal:     "fatal",
	LevelError:     "error",
	LevelWarn:      "warn",
	LevelInfo:      "info",
	LevelDebug:     "debug",
	LevelTrace:     "trace",
	LevelTraceauth: "traceauth",
	LevelTracedata: "tracedata",
}

var Levels = map[string]slog.Level{
	"print":     LevelPrint,
	"fatal":     LevelFatal,
	"error":     LevelError,
	"warn":      LevelWarn,
	"info":      LevelInfo,
	"debug":     LevelDebug,
	"trace":     LevelTrace,
	"traceauth": LevelTraceauth,
	"tracedata": LevelTracedata,
}

// Holds a map[string]slog.Level, mapping a package (field pkg in logs) to a log
// level. The empty string is the default/fallback log level.
var config atomic.Value

func init() {
	config.Store(map[string]slog.Level{"": LevelError})
}

// SetConfig atomically sets the new log levels used by all Log instances.
func SetConfig(c map[string]slog.Level) {
	config.Store(c)
}

// Config returns the currently active log levels.
func Config() map[string]slog.Level {
	return config.Load().(map[string]slog.Level)
}

// Log wraps a slog.Logger with helpers for logging errors and always-printed
// lines.
type Log struct {
	*slog.Logger
}

// New returns a Log that adds a "pkg" attribute. If logger is nil, a logger
// writing logfmt-like lines to stderr, filtered by the configured levels, is
// used.
func New(pkg string, logger *slog.Logger) Log {
	if logger == nil {
		logger = slog.New(&handler{w: os.Stderr, mu: &sync.Mutex{}})
	}
	return Log{logger}.WithPkg(pkg)
}

// WithPkg returns a new Log with attribute pkg.
func (l Log) WithPkg(pkg string) Log {
	return Log{l.Logger.With(slog.String("pkg", pkg))}
}

// WithCid adds an attribute "cid", e.g. to tell apart lines logged for
// concurrently processed inputs.
func (l Log) WithCid(cid int64) Log {
	return l.With(slog.Int64("cid", cid))
}

// With returns a Log with attributes added to each line.
func (l Log) With(attrs ...slog.Attr) Log {
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	return Log{l.Logger.With(args...)}
}

func (l Log) Fatal(msg string, attrs ...slog.Attr) { l.Fatalx(msg, nil, attrs...) }
func (l Log) Fatalx(msg string, err error, attrs ...slog.Attr) {
	l.Logx(LevelFatal, msg, err, attrs...)
	os.Exit(1)
}

func (l Log) Print(msg string, attrs ...slog.Attr) {
	l.Logx(LevelPrint, msg, nil, attrs...)
}
func (l Log) Printx(msg string, err error, attrs ...slog.Attr) {
	l.Logx(LevelPrint, msg, err, attrs...)
}

func (l Log) Debug(msg string, attrs ...slog.Attr) { l.Logx(LevelDebug, msg, nil, attrs...) }
func (l Log) Debugx(msg string, err error, attrs ...slog.Attr) {
	l.Logx(LevelDebug, msg, err, attrs...)
}

func (l Log) Info(msg string, attrs ...slog.Attr) { l.Logx(LevelInfo, msg, nil, attrs...) }
func (l Log) Infox(msg string, err error, attrs ...slog.Attr) {
	l.Logx(LevelInfo, msg, err, attrs...)
}

func (l Log) Error(msg string, attrs ...slog.Attr) { l.Logx(LevelError, msg, nil, attrs...) }
func (l Log) Errorx(msg string, err error, attrs ...slog.Attr) {
	l.Logx(LevelError, msg, err, attrs...)
}

// Check logs an error at error level if err is not nil. Convenient for
// errors that can only be logged, e.g. when closing files.
func (l Log) Check(err error, msg string, attrs ...slog.Attr) {
	if err != nil {
		l.Errorx(msg, err, attrs...)
	}
}

// Trace logs data at a trace level, with a prefix. Data at LevelTraceauth
// and LevelTracedata is replaced with "***" or "..." when only LevelTrace is
// enabled.
func (l Log) Trace(level slog.Level, prefix string, data []byte) {
	ctx := context.Background()
	if l.Enabled(ctx, level) {
		l.Logx(level, prefix+string(data), nil)
		return
	}
	if !l.Enabled(ctx, LevelTrace) {
		return
	}
	switch level {
	case LevelTraceauth:
		l.Logx(LevelTrace, prefix+"***", nil)
	case LevelTracedata:
		l.Logx(LevelTrace, prefix+"...", nil)
	}
}

// Logx logs msg at level with optional error and attributes.
func (l Log) Logx(level slog.Level, msg string, err error, attrs ...slog.Attr) {
	if err != nil {
		attrs = append([]slog.Attr{slog.String("err", err.Error())}, attrs...)
	}
	l.LogAttrs(context.Background(), level, msg, attrs...)
}

type handler struct {
	w     io.Writer
	mu    *sync.Mutex
	pkg   string
	attrs []slog.Attr
	group string
}

var _ slog.Handler = (*handler)(nil)

func (h *handler) Enabled(ctx context.Context, level slog.Level) bool {
	if level >= LevelFatal {
		return true
	}
	cl := Config()
	if v, ok := cl[h.pkg]; ok && h.pkg != "" {
		return level >= v
	}
	v, ok := cl[""]
	return ok && level >= v
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	for _, a := range attrs {
		if a.Key == "pkg" && h.group == "" {
			nh.pkg = a.Value.String()
		}
	}
	return &nh
}

func (h *handler) WithGroup(name string) slog.Handler {
	nh := *h
	if nh.group != "" {
		name = nh.group + "." + name
	}
	nh.group = name
	return &nh
}

func (h *handler) Handle(ctx context.Context, r slog.Record) error {
	// We build up a buffer so we can do a single atomic write of the data.
	// Otherwise partial log lines may interleave.
	b := &bytes.Buffer{}
	levelStr, ok := LevelStrings[r.Level]
	if !ok {
		levelStr = r.Level.String()
	}
	var fields [][2]string
	add := func(a slog.Attr) bool {
		k := a.Key
		if h.group != "" {
			k = h.group + "." + k
		}
		fields = append(fields, [2]string{k, stringValue(k == "cid", false, a.Value.Any())})
		return true
	}
	for _, a := range h.attrs {
		add(a)
	}
	r.Attrs(add)

	if Logfmt {
		fmt.Fprintf(b, "l=%s m=%s", levelStr, logfmtValue(r.Message))
		for _, kv := range fields {
			fmt.Fprintf(b, " %s=%s", kv[0], logfmtValue(kv[1]))
		}
	} else {
		fmt.Fprintf(b, "%s: %s", levelStr, logfmtValue(r.Message))
		if len(fields) > 0 {
			b.WriteString(" (")
			for i, kv := range fields {
				if i > 0 {
					b.WriteString("; ")
				}
				fmt.Fprintf(b, "%s: %s", kv[0], logfmtValue(kv[1]))
			}
			b.WriteString(")")
		}
	}
	b.WriteString("\n")
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(b.Bytes())
	return err
}

// escape logfmt string if required, otherwise return original string.
func logfmtValue(s string) string {
	for _, c := range s {
		if c == '"' || c == '\\' || c <= ' ' || c == '=' || c >= 0x7f {
			return fmt.Sprintf("%q", s)
		}
	}
	return s
}

func stringValue(iscid, nested bool, v any) string {
	// Handle some common types first.
	if v == nil {
		return ""
	}
	switch r := v.(type) {
	case string:
		return r
	case int:
		return strconv.Itoa(r)
	case int64:
		if iscid {
			return fmt.Sprintf("%x", v)
		}
		return strconv.FormatInt(r, 10)
	case bool:
		if r {
			return "true"
		}
		return "false"
	case float64:
		return fmt.Sprintf("%v", v)
	case []byte:
		return base64.RawURLEncoding.EncodeToString(r)
	case []string:
		if nested && len(r) == 0 {
			// Drop field from logging.
			return ""
		}
		return "[" + strings.Join(r, ",") + "]"
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr && rv.IsNil() {
		return ""
	}

	if r, ok := v.(fmt.Stringer); ok {
		return r.String()
	}

	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
		return stringValue(iscid, nested, rv.Interface())
	}
	if rv.Kind() == reflect.Slice {
		n := rv.Len()
		if nested && n == 0 {
			// Drop field.
			return ""
		}
		b := &strings.Builder{}
		b.WriteString("[")
		for i := 0; i < n; i++ {
			if i > 0 {
				b.WriteString(";")
			}
			b.WriteString(stringValue(false, true, rv.Index(i).Interface()))
		}
		b.WriteString("]")
		return b.String()
	} else if rv.Kind() != reflect.Struct {
		return fmt.Sprintf("%v", v)
	}
	n := rv.NumField()
	t := rv.Type()
	b := &strings.Builder{}
	first := true
	for i := 0; i < n; i++ {
		fv := rv.Field(i)
		if !t.Field(i).IsExported() {
			continue
		}
		if fv.Kind() == reflect.Struct || fv.Kind() == reflect.Ptr || fv.Kind() == reflect.Interface {
			// Don't recurse.
			continue
		}
		vs := stringValue(false, true, fv.Interface())
		if vs == "" {
			continue
		}
		if !first {
			b.WriteByte(' ')
		}
		first = false
		k := strings.ToLower(t.Field(i).Name)
		b.WriteString(k + "=" + logfmtValue(vs))
	}
	return b.String()
}

// NewWriter returns a Log writing to w instead of stderr, for tests and for
// capturing output.
func NewWriter(pkg string, w io.Writer) Log {
	return New(pkg, slog.New(&handler{w: w, mu: &sync.Mutex{}}))
}
