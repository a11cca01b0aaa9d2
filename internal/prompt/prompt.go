// Package prompt reads the operator's text prompt.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
)

var (
	ErrEmpty     = errors.New("prompt is empty")
	ErrCancelled = errors.New("prompt entry cancelled")
)

type Reader struct {
	In  io.Reader
	Out io.Writer
}

// Read returns the prompt from the terminal when In is one, otherwise the
// first line of In.
func (r *Reader) Read(ctx context.Context) (string, error) {
	var (
		text string
		err  error
	)
	if f, ok := r.In.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		text, err = r.interactive(ctx)
	} else {
		text, err = r.line()
	}
	if err != nil {
		return "", err
	}
	if text = strings.TrimSpace(text); text == "" {
		return "", ErrEmpty
	}
	return text, nil
}

func (r *Reader) line() (string, error) {
	fmt.Fprint(r.Out, "Enter your prompt: ")
	text, err := bufio.NewReader(r.In).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return text, nil
}

func (r *Reader) interactive(ctx context.Context) (string, error) {
	p := tea.NewProgram(newModel(), tea.WithContext(ctx), tea.WithInput(r.In), tea.WithOutput(r.Out))
	m, err := p.Run()
	if err != nil {
		return "", err
	}
	final := m.(model)
	if final.cancelled {
		return "", ErrCancelled
	}
	return final.value, nil
}
