package hooks

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Loggable is the capability surface of the loggable type.
type Loggable interface {
	Name() string
	Info(msg string)
}

// Runtime implements the two hooks for executed classes.
type Runtime interface {
	// WrapLoggable returns a replacement for v. Values that are not
	// Loggable are returned unchanged.
	WrapLoggable(v any) any

	// LogCall records a method entry. It must accept any argument shape.
	LogCall(name string, args []any)
}

// Console echoes wrapped logger output and method entries to Out.
type Console struct {
	Out io.Writer
	mu  sync.Mutex
}

// NewConsole returns a Console writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{Out: out}
}

// WrapLoggable implements Runtime.
func (c *Console) WrapLoggable(v any) any {
	inner, ok := v.(Loggable)
	if !ok {
		return v
	}
	return &echoLoggable{inner: inner, console: c}
}

// LogCall implements Runtime. It prints name([arg, ...]).
func (c *Console) LogCall(name string, args []any) {
	c.println(name + "(" + FormatArgs(args) + ")")
}

func (c *Console) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.Out, s)
}

type echoLoggable struct {
	inner   Loggable
	console *Console
}

func (l *echoLoggable) Name() string { return l.inner.Name() }

func (l *echoLoggable) Info(msg string) {
	l.console.println("LoggerWrapper: " + msg)
	l.inner.Info(msg)
}

// Call is one recorded log sink invocation.
type Call struct {
	Name string
	Args []any
}

// Recorder captures hook activity. Wrapped loggables record each message
// before delegating.
type Recorder struct {
	mu       sync.Mutex
	wraps    int
	calls    []Call
	messages []string
}

// WrapLoggable implements Runtime.
func (r *Recorder) WrapLoggable(v any) any {
	r.mu.Lock()
	r.wraps++
	r.mu.Unlock()
	inner, ok := v.(Loggable)
	if !ok {
		return v
	}
	return &recordingLoggable{inner: inner, rec: r}
}

// LogCall implements Runtime.
func (r *Recorder) LogCall(name string, args []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Name: name, Args: append([]any(nil), args...)})
}

// Wraps returns how many times WrapLoggable ran.
func (r *Recorder) Wraps() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.wraps
}

// Calls returns the recorded log sink calls in order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Messages returns messages seen by wrapped loggables.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

type recordingLoggable struct {
	inner Loggable
	rec   *Recorder
}

func (l *recordingLoggable) Name() string { return l.inner.Name() }

func (l *recordingLoggable) Info(msg string) {
	l.rec.mu.Lock()
	l.rec.messages = append(l.rec.messages, msg)
	l.rec.mu.Unlock()
	l.inner.Info(msg)
}

// FormatArgs renders args as a bracketed list, descending into nested
// slices. nil renders as "null".
func FormatArgs(args []any) string {
	var sb strings.Builder
	formatList(&sb, args, map[*any]bool{})
	return sb.String()
}

func formatList(sb *strings.Builder, list []any, seen map[*any]bool) {
	if len(list) > 0 {
		if seen[&list[0]] {
			sb.WriteString("[...]")
			return
		}
		seen[&list[0]] = true
		defer delete(seen, &list[0])
	}
	sb.WriteByte('[')
	for i, v := range list {
		if i > 0 {
			sb.WriteString(", ")
		}
		switch v := v.(type) {
		case nil:
			sb.WriteString("null")
		case []any:
			formatList(sb, v, seen)
		case fmt.Stringer:
			sb.WriteString(v.String())
		default:
			fmt.Fprint(sb, v)
		}
	}
	sb.WriteByte(']')
}
