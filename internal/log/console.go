package log

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

const (
	colorReset  = "\033[0m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
)

// ConsoleHandler writes one human readable line per record:
//
//	12:04:05.250 INF search served query=alien results=3
//
// Attributes added through WithAttrs are rendered once and reused.
type ConsoleHandler struct {
	out    io.Writer
	mu     *sync.Mutex
	level  slog.Leveler
	color  bool
	prefix string
	suffix []byte
}

// NewConsoleHandler creates a handler writing to w. Colour is used only when
// w is a terminal and NO_COLOR is unset.
func NewConsoleHandler(w io.Writer, level slog.Leveler) *ConsoleHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &ConsoleHandler{
		out:   w,
		mu:    &sync.Mutex{},
		level: level,
		color: colorSupported(w),
	}
}

func colorSupported(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Enabled reports whether records at level are written.
func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle renders r and writes it as a single line.
func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	buf := bytes.NewBuffer(make([]byte, 0, 256))
	h.paint(buf, colorDim, ts.Format("15:04:05.000"))
	buf.WriteByte(' ')
	color, label := levelLabel(r.Level)
	h.paint(buf, color, label)
	buf.WriteByte(' ')
	buf.WriteString(r.Message)
	buf.Write(h.suffix)
	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(buf, h.prefix, a)
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf.Bytes())
	return err
}

// WithAttrs returns a handler that appends attrs to every record.
func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	var buf bytes.Buffer
	for _, a := range attrs {
		h.writeAttr(&buf, h.prefix, a)
	}
	clone := *h
	clone.suffix = append(append([]byte{}, h.suffix...), buf.Bytes()...)
	return &clone
}

// WithGroup returns a handler that qualifies later attribute keys with name.
func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

func (h *ConsoleHandler) writeAttr(buf *bytes.Buffer, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			h.writeAttr(buf, prefix, ga)
		}
		return
	}
	buf.WriteByte(' ')
	h.paint(buf, colorBlue, prefix+a.Key+"=")
	buf.WriteString(quoteValue(a.Value))
}

func (h *ConsoleHandler) paint(buf *bytes.Buffer, color, s string) {
	if !h.color {
		buf.WriteString(s)
		return
	}
	buf.WriteString(color)
	buf.WriteString(s)
	buf.WriteString(colorReset)
}

func levelLabel(level slog.Level) (string, string) {
	switch {
	case level >= slog.LevelError:
		return colorRed, "ERR"
	case level >= slog.LevelWarn:
		return colorYellow, "WRN"
	case level >= slog.LevelInfo:
		return colorGreen, "INF"
	default:
		return colorDim, "DBG"
	}
}

func quoteValue(v slog.Value) string {
	s := v.String()
	if v.Kind() == slog.KindString && (s == "" || strings.ContainsAny(s, " \t\n\"=\\")) {
		return strconv.Quote(s)
	}
	return s
}
