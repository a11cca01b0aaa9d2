// Package progress draws a batch progress bar on a terminal stream.
package progress

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

var labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

// Bar renders one line per update, so it interleaves cleanly with log output.
type Bar struct {
	w     io.Writer
	bar   progress.Model
	label string
}

func New(w io.Writer, label string) *Bar {
	return &Bar{
		w:     w,
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		label: label,
	}
}

func (b *Bar) Update(done, total int, model string) {
	percent := 1.0
	if total > 0 {
		percent = float64(done) / float64(total)
	}
	fmt.Fprintf(b.w, "%s %s %d/%d %s\n",
		b.label, b.bar.ViewAs(percent), done, total, labelStyle.Render(model))
}

// Discard ignores updates.
type Discard struct{}

func (Discard) Update(int, int, string) {}
