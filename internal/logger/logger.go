package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// New 按级别构造日志器。stdout 只承载 XML，因此日志总是写到 w（通常是 stderr）。
// w 是终端时使用可读格式，否则输出 JSON，便于被脚本收集。
func New(w io.Writer, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if IsTerminal(w) {
		return slog.New(NewReadableHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Discard 返回丢弃全部输出的日志器（测试与库默认值）。
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// IsTerminal 判断 w 是否为交互终端。
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// ParseLevel 把 debug/info/warn/error 转为 slog.Level；未知值按 warn 处理。
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// ReadableHandler 把记录格式化为一行：
//
//	[15:04:05.000] INFO [component] (op): message | k=v, k=v
type ReadableHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	opts   *slog.HandlerOptions
	attrs  []slog.Attr
	prefix string
}

func NewReadableHandler(w io.Writer, opts *slog.HandlerOptions) *ReadableHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &ReadableHandler{mu: &sync.Mutex{}, w: w, opts: opts}
}

func (h *ReadableHandler) Enabled(ctx context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.opts.Level != nil {
		min = h.opts.Level.Level()
	}
	return level >= min
}

func (h *ReadableHandler) Handle(ctx context.Context, r slog.Record) error {
	var component, operation string
	var rest []slog.Attr

	collect := func(a slog.Attr) {
		switch a.Key {
		case "component":
			component = a.Value.String()
		case "op":
			operation = a.Value.String()
		default:
			if h.prefix != "" {
				a.Key = h.prefix + a.Key
			}
			rest = append(rest, a)
		}
	}
	for _, a := range h.attrs {
		switch a.Key {
		case "component":
			component = a.Value.String()
		case "op":
			operation = a.Value.String()
		default:
			rest = append(rest, a)
		}
	}
	r.Attrs(func(a slog.Attr) bool {
		collect(a)
		return true
	})

	var b strings.Builder
	if !r.Time.IsZero() {
		fmt.Fprintf(&b, "[%s] ", r.Time.Format("15:04:05.000"))
	}
	b.WriteString(formatLevel(r.Level))
	if component != "" {
		fmt.Fprintf(&b, " [%s]", component)
	}
	if operation != "" {
		fmt.Fprintf(&b, " (%s)", operation)
	}
	b.WriteString(": ")
	b.WriteString(r.Message)

	if len(rest) > 0 {
		parts := make([]string, 0, len(rest))
		for _, a := range rest {
			parts = append(parts, formatAttr(a))
		}
		b.WriteString(" | ")
		b.WriteString(strings.Join(parts, ", "))
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *ReadableHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	nh := *h
	nh.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	nh.attrs = append(nh.attrs, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" && a.Key != "component" && a.Key != "op" {
			a.Key = h.prefix + a.Key
		}
		nh.attrs = append(nh.attrs, a)
	}
	return &nh
}

func (h *ReadableHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.prefix = h.prefix + name + "."
	return &nh
}

func formatLevel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func formatAttr(a slog.Attr) string {
	switch a.Key {
	case "error":
		return fmt.Sprintf("error=%q", a.Value.String())
	case "url":
		return "url=" + shortenURL(a.Value.String())
	case "duration":
		if a.Value.Kind() == slog.KindDuration {
			return "took=" + a.Value.Duration().Round(time.Millisecond).String()
		}
	}
	return fmt.Sprintf("%s=%s", a.Key, a.Value.String())
}

// shortenURL 把过长的 URL 缩成 scheme://host/...，只影响终端显示。
func shortenURL(u string) string {
	if len(u) <= 60 {
		return u
	}
	parts := strings.SplitN(u, "/", 4)
	if len(parts) >= 3 {
		return fmt.Sprintf("%s//%s/...", parts[0], parts[2])
	}
	return u
}
