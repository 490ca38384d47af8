// Package log provides the structured, level-gated logger used
// throughout the federation core. It formats codeberg.org/gruf/go-kv
// fields into lines written to an io.Writer, in the style the rest of
// the codebase expects: log.WithContext(ctx).WithFields(...).
package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"codeberg.org/gruf/go-debug"
	"codeberg.org/gruf/go-kv"
)

// Level mirrors syslog-style severity ordering, lowest is most severe.
type Level int32

const (
	ERROR Level = iota
	WARN
	INFO
	DEBUG
	TRACE
)

func (l Level) String() string {
	switch l {
	case ERROR:
		return "ERROR"
	case WARN:
		return "WARN"
	case INFO:
		return "INFO"
	case DEBUG:
		return "DEBUG"
	case TRACE:
		return "TRACE"
	default:
		return "UNKNOWN"
	}
}

var (
	level  atomic.Int32
	output io.Writer = os.Stderr
)

func init() {
	// Binaries built with the debug build tag (see go-debug) default to
	// DEBUG verbosity; everyone else gets INFO unless SetLevel is called.
	if debug.DEBUG {
		level.Store(int32(DEBUG))
	} else {
		level.Store(int32(INFO))
	}
}

// SetLevel sets the global logging severity threshold.
func SetLevel(l Level) { level.Store(int32(l)) }

// GetLevel returns the current global logging severity threshold.
func GetLevel() Level { return Level(level.Load()) }

// SetOutput redirects where log lines are written. Exposed for tests.
func SetOutput(w io.Writer) { output = w }

// ctxKey is used to stash per-request instance/activity fields on a context.
type ctxKey struct{}

// Entry is a chainable log line builder, carrying an optional context
// and an accumulated field set.
type Entry struct {
	ctx    context.Context
	fields []kv.Field
}

// WithContext starts an Entry, pulling any fields previously attached
// to the context via Context().
func WithContext(ctx context.Context) *Entry {
	e := &Entry{ctx: ctx}
	if fields, ok := ctx.Value(ctxKey{}).([]kv.Field); ok {
		e.fields = append(e.fields, fields...)
	}
	return e
}

// Context attaches fields to a context so that every subsequent
// log.WithContext(ctx) call carries them without repetition.
func Context(ctx context.Context, fields ...kv.Field) context.Context {
	if existing, ok := ctx.Value(ctxKey{}).([]kv.Field); ok {
		fields = append(append([]kv.Field{}, existing...), fields...)
	}
	return context.WithValue(ctx, ctxKey{}, fields)
}

// WithFields returns a new Entry with the given fields appended.
func (e *Entry) WithFields(fields ...kv.Field) *Entry {
	return &Entry{ctx: e.ctx, fields: append(append([]kv.Field{}, e.fields...), fields...)}
}

func (e *Entry) log(lvl Level, msg string) {
	if lvl > GetLevel() {
		return
	}
	ts := time.Now().UTC().Format(time.RFC3339)
	if len(e.fields) == 0 {
		fmt.Fprintf(output, "%s %s %s\n", ts, lvl, msg)
		return
	}
	fmt.Fprintf(output, "%s %s %s %s\n", ts, lvl, msg, formatFields(e.fields))
}

func formatFields(fields []kv.Field) string {
	out := ""
	for i, f := range fields {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s=%v", f.K, f.V)
	}
	return out
}

func (e *Entry) Error(args ...any)            { e.log(ERROR, fmt.Sprint(args...)) }
func (e *Entry) Errorf(f string, a ...any)    { e.log(ERROR, fmt.Sprintf(f, a...)) }
func (e *Entry) Warn(args ...any)             { e.log(WARN, fmt.Sprint(args...)) }
func (e *Entry) Warnf(f string, a ...any)     { e.log(WARN, fmt.Sprintf(f, a...)) }
func (e *Entry) Info(args ...any)             { e.log(INFO, fmt.Sprint(args...)) }
func (e *Entry) Infof(f string, a ...any)     { e.log(INFO, fmt.Sprintf(f, a...)) }
func (e *Entry) Debug(args ...any)            { e.log(DEBUG, fmt.Sprint(args...)) }
func (e *Entry) Debugf(f string, a ...any)    { e.log(DEBUG, fmt.Sprintf(f, a...)) }
func (e *Entry) Trace(args ...any)            { e.log(TRACE, fmt.Sprint(args...)) }
func (e *Entry) Tracef(f string, a ...any)    { e.log(TRACE, fmt.Sprintf(f, a...)) }

// Package-level convenience functions, used from code with no context
// to hand (matching the teacher's concurrency/workers.go call style).
func Errorf(f string, a ...any) { (&Entry{}).Errorf(f, a...) }
func Infof(f string, a ...any)  { (&Entry{}).Infof(f, a...) }
func Debugf(f string, a ...any) { (&Entry{}).Debugf(f, a...) }
func Tracef(f string, a ...any) { (&Entry{}).Tracef(f, a...) }
func Warnf(f string, a ...any)  { (&Entry{}).Warnf(f, a...) }

func Panicf(f string, a ...any) {
	msg := fmt.Sprintf(f, a...)
	(&Entry{}).Error(msg)
	panic(msg)
}

// ContextErrorf logs an error with context fields, used at
// the inbound/outbound boundary so instance + activity id are always present.
func ContextErrorf(ctx context.Context, f string, a ...any) {
	WithContext(ctx).Errorf(f, a...)
}
