package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// headerKeys are pulled out of the attribute list into the line prefix, in
// this order
var headerKeys = []string{"component", "buildID", "mode", "generation", "requestID"}

// CompactHandler writes one console line per record:
//
//	[INFO]  15:04:05 <builder> build:1a2b3c4d full gen=7 build committed | visited=3
type CompactHandler struct {
	level  slog.Leveler
	mu     *sync.Mutex
	out    io.Writer
	attrs  []slog.Attr // from WithAttrs, keys already group-qualified
	prefix string      // open groups joined with "."
}

// NewCompactHandler creates a new compact console handler
func NewCompactHandler(w io.Writer, opts *slog.HandlerOptions) *CompactHandler {
	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}
	return &CompactHandler{level: level, mu: &sync.Mutex{}, out: w}
}

func (h *CompactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *CompactHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs := slices.Clone(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		attrs = appendFlat(attrs, h.prefix, a)
		return true
	})

	buf := make([]byte, 0, 256)
	buf = append(buf, levelTag(r.Level)...)
	buf = r.Time.AppendFormat(buf, "15:04:05")

	header := make(map[string]slog.Value, len(headerKeys))
	rest := attrs[:0]
	for _, a := range attrs {
		if slices.Contains(headerKeys, a.Key) {
			header[a.Key] = a.Value
			continue
		}
		rest = append(rest, a)
	}
	for _, key := range headerKeys {
		if v, ok := header[key]; ok {
			buf = append(buf, ' ')
			buf = appendHeader(buf, key, v)
		}
	}

	buf = append(buf, ' ')
	buf = append(buf, r.Message...)
	for i, a := range rest {
		if i == 0 {
			buf = append(buf, " |"...)
		}
		buf = append(buf, ' ')
		buf = appendAttr(buf, a)
	}
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf)
	return err
}

func levelTag(l slog.Level) string {
	switch {
	case l < slog.LevelDebug:
		return "[TRACE] "
	case l < slog.LevelInfo:
		return "[DEBUG] "
	case l < slog.LevelWarn:
		return "[INFO]  "
	case l < slog.LevelError:
		return "[WARN]  "
	default:
		return "[ERROR] "
	}
}

// appendFlat qualifies a with the group prefix and expands nested groups
func appendFlat(dst []slog.Attr, prefix string, a slog.Attr) []slog.Attr {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return dst
	}
	if a.Value.Kind() == slog.KindGroup {
		inner := prefix
		if a.Key != "" {
			inner = join(prefix, a.Key)
		}
		for _, ga := range a.Value.Group() {
			dst = appendFlat(dst, inner, ga)
		}
		return dst
	}
	if a.Key != "component" {
		a.Key = join(prefix, a.Key)
	}
	return append(dst, a)
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func appendHeader(buf []byte, key string, v slog.Value) []byte {
	s := v.String()
	switch key {
	case "component":
		return append(append(append(buf, '<'), s...), '>')
	case "buildID":
		return append(append(buf, "build:"...), short(s)...)
	case "requestID":
		return append(append(buf, "req:"...), short(s)...)
	case "generation":
		return append(append(buf, "gen="...), s...)
	}
	return append(buf, s...)
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func appendAttr(buf []byte, a slog.Attr) []byte {
	switch {
	case a.Key == "durationMs" && a.Value.Kind() == slog.KindInt64:
		return append(strconv.AppendInt(append(buf, "duration="...), a.Value.Int64(), 10), "ms"...)
	case a.Key == "error":
		return strconv.AppendQuote(append(buf, "error="...), a.Value.String())
	}

	buf = append(buf, a.Key...)
	buf = append(buf, '=')
	v := a.Value
	switch v.Kind() {
	case slog.KindString:
		if s := v.String(); strings.ContainsAny(s, " \t\n\"=") {
			return strconv.AppendQuote(buf, s)
		}
		return append(buf, v.String()...)
	case slog.KindInt64:
		return strconv.AppendInt(buf, v.Int64(), 10)
	case slog.KindUint64:
		return strconv.AppendUint(buf, v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.AppendFloat(buf, v.Float64(), 'g', -1, 64)
	case slog.KindBool:
		return strconv.AppendBool(buf, v.Bool())
	case slog.KindDuration:
		return append(buf, v.Duration().String()...)
	case slog.KindTime:
		return v.Time().AppendFormat(buf, time.RFC3339)
	}
	return fmt.Appendf(buf, "%v", v.Any())
}

func (h *CompactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = slices.Clone(h.attrs)
	for _, a := range attrs {
		c.attrs = appendFlat(c.attrs, h.prefix, a)
	}
	return &c
}

func (h *CompactHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix = join(h.prefix, name)
	return &c
}
