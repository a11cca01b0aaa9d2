package log

import (
	"context"
	"io"
	"log/slog"

	charm "github.com/charmbracelet/log"
	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"
)

type contextKey struct{}

var discardLogger = NewJSON(io.Discard, slog.LevelInfo)

// New returns a human readable console logger.
func New(w io.Writer, level slog.Level) *slog.Logger {
	styles := charm.DefaultStyles()
	styles.Levels[charm.ErrorLevel] = lipgloss.NewStyle().
		SetString("ERROR!!").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("204")).
		Foreground(lipgloss.Color("0"))
	styles.Keys["err"] = lipgloss.NewStyle().Foreground(lipgloss.Color("204"))
	styles.Values["err"] = lipgloss.NewStyle().Bold(true)

	logger := charm.NewWithOptions(w, charm.Options{
		Level:           charm.Level(level),
		ReportTimestamp: true,
	})
	logger.SetStyles(styles)
	return slog.New(logger)
}

// NewJSON returns a logger writing one JSON object per line, without timestamps.
func NewJSON(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			return lo.Ternary(a.Key == slog.TimeKey, slog.Attr{}, a)
		},
	}))
}

func NewContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

func FromContextOrDiscard(ctx context.Context) *slog.Logger {
	if v, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
		return v
	}
	return discardLogger
}
