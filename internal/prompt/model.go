package prompt

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))

type model struct {
	input     textinput.Model
	value     string
	cancelled bool
}

func newModel() model {
	ti := textinput.New()
	ti.Placeholder = "a red fox in snow"
	ti.CharLimit = 1000
	ti.Width = 60
	ti.Focus()
	return model{input: ti}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		case tea.KeyEnter:
			m.value = m.input.Value()
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if m.value != "" || m.cancelled {
		return ""
	}
	return titleStyle.Render("Enter your prompt:") + "\n\n" + m.input.View() + "\n"
}
