// Package logging provides the console slog handler used by the CLI.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

const timeFormat = "2006-01-02 15:04:05"

type styles struct {
	debugLevel, infoLevel, warnLevel, errorLevel lipgloss.Style
	key                                          lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		debugLevel: r.NewStyle().Foreground(lipgloss.Color("240")),
		infoLevel:  r.NewStyle().Foreground(lipgloss.Color("39")),
		warnLevel:  r.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		errorLevel: r.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true),
		key:        r.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

// Handler writes one line per record: time, colored level, message, then key=value pairs.
// Colors are dropped automatically when w is not a terminal.
type Handler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Leveler
	styles styles
	attrs  string
	group  string
}

func NewHandler(w io.Writer, level slog.Leveler) *Handler {
	return &Handler{
		mu:     &sync.Mutex{},
		w:      w,
		level:  level,
		styles: newStyles(lipgloss.NewRenderer(w)),
	}
}

// New returns a logger writing to w at the given minimum level.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(NewHandler(w, level))
}

// ParseLevel accepts debug, info, warn and error in any case.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	if !r.Time.IsZero() {
		b.WriteString(r.Time.Format(timeFormat))
		b.WriteByte(' ')
	}
	b.WriteString(h.levelStyle(r.Level).Render(fmt.Sprintf("%-5s", r.Level.String())))
	b.WriteByte(' ')
	b.WriteString(r.Message)
	b.WriteString(h.attrs)

	r.Attrs(func(a slog.Attr) bool {
		h.appendAttr(&b, h.group, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := *h
	var b strings.Builder
	b.WriteString(h.attrs)
	for _, a := range attrs {
		h.appendAttr(&b, h.group, a)
	}
	h2.attrs = b.String()
	return &h2
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.group = h.group + name + "."
	return &h2
}

func (h *Handler) levelStyle(level slog.Level) lipgloss.Style {
	switch {
	case level >= slog.LevelError:
		return h.styles.errorLevel
	case level >= slog.LevelWarn:
		return h.styles.warnLevel
	case level >= slog.LevelInfo:
		return h.styles.infoLevel
	default:
		return h.styles.debugLevel
	}
}

func (h *Handler) appendAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			h.appendAttr(b, prefix, ga)
		}
		return
	}

	b.WriteByte(' ')
	b.WriteString(h.styles.key.Render(prefix + a.Key + "="))
	b.WriteString(formatValue(a.Value))
}

func formatValue(v slog.Value) string {
	s := v.String()
	if v.Kind() == slog.KindTime {
		s = v.Time().Format(timeFormat)
	}
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}
