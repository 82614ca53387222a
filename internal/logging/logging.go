// Package logging configures the process-wide slog logger.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

const timeLayout = "2006/01/02 15:04:05"

// textHandler writes lines like:
// 2026/10/18 09:12:44 level=INFO msg="job card saved" id=jc-42 status=201
type textHandler struct {
	out      io.Writer
	mu       *sync.Mutex
	minLevel slog.Leveler
	attrs    []slog.Attr
	group    string
}

func (h *textHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.minLevel.Level()
}

func upperLevel(l slog.Level) string {
	switch {
	case l <= slog.LevelDebug:
		return "DEBUG"
	case l <= slog.LevelInfo:
		return "INFO"
	case l <= slog.LevelWarn:
		return "WARN"
	default:
		return "ERROR"
	}
}

func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if r <= ' ' || r == '"' || r == '=' || r == '\\' {
			return true
		}
	}
	return false
}

func quote(s string) string {
	b := &strings.Builder{}
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' || c == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	b.WriteByte('"')
	return b.String()
}

func appendKeyVal(sb *strings.Builder, key string, v slog.Value) {
	sb.WriteByte(' ')
	sb.WriteString(key)
	sb.WriteByte('=')
	var s string
	switch v.Kind() {
	case slog.KindDuration:
		s = v.Duration().String()
	case slog.KindTime:
		s = v.Time().Format(time.RFC3339)
	default:
		s = fmt.Sprint(v.Any())
	}
	if needsQuoting(s) {
		s = quote(s)
	}
	sb.WriteString(s)
}

func (h *textHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var sb strings.Builder
	sb.Grow(256)
	sb.WriteString(ts.Format(timeLayout))
	sb.WriteString(" level=")
	sb.WriteString(upperLevel(r.Level))
	if r.Message != "" {
		sb.WriteString(" msg=")
		sb.WriteString(quote(r.Message))
	}

	normal := map[string]slog.Value{}
	collect := func(a slog.Attr) {
		if a.Key == "" {
			return
		}
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		if a.Value.Kind() == slog.KindGroup {
			for _, ga := range a.Value.Group() {
				normal[key+"."+ga.Key] = ga.Value.Resolve()
			}
			return
		}
		normal[key] = a.Value.Resolve()
	}
	for _, a := range h.attrs {
		collect(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		collect(a)
		return true
	})

	// Request attributes first, in this order.
	for _, k := range []string{"method", "url", "status", "duration"} {
		if v, ok := normal[k]; ok {
			appendKeyVal(&sb, k, v)
			delete(normal, k)
		}
	}
	keys := make([]string, 0, len(normal))
	for k := range normal {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		appendKeyVal(&sb, k, normal[k])
	}
	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, sb.String())
	return err
}

func (h *textHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	out = append(out, h.attrs...)
	out = append(out, attrs...)
	return &textHandler{out: h.out, mu: h.mu, minLevel: h.minLevel, attrs: out, group: h.group}
}

func (h *textHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	g := name
	if h.group != "" {
		g = h.group + "." + name
	}
	return &textHandler{out: h.out, mu: h.mu, minLevel: h.minLevel, attrs: h.attrs, group: g}
}

// ParseLevel maps "debug", "info", "warn", "error" (case-insensitive) to a
// slog level. Unknown values map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a logger writing to w. json selects the JSON handler; otherwise
// lines are "YYYY/MM/DD HH:MM:SS level=... msg=..." followed by key=value pairs.
func New(w io.Writer, level string, json bool) *slog.Logger {
	lvl := ParseLevel(level)
	if json {
		replace := func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
				return slog.String(slog.TimeKey, a.Value.Time().Format(timeLayout))
			}
			return a
		}
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl, ReplaceAttr: replace}))
	}
	return slog.New(&textHandler{out: w, mu: &sync.Mutex{}, minLevel: lvl})
}

// Setup builds a logger with New and installs it as the slog default.
func Setup(w io.Writer, level string, json bool) *slog.Logger {
	logger := New(w, level, json)
	slog.SetDefault(logger)
	return logger
}
