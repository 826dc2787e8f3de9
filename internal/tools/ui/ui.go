// Package ui renders interactive progress for the developer tools.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213"))
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	detailStyle  = lipgloss.NewStyle().Faint(true).PaddingLeft(2)
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type doneMsg struct {
	details []string
	err     error
}

type tickMsg time.Time

type model struct {
	title   string
	frame   int
	done    bool
	details []string
	err     error
	cancel  context.CancelFunc
}

func (m model) Init() tea.Cmd { return tick() }

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.frame = (m.frame + 1) % len(spinnerFrames)
		return m, tick()
	case doneMsg:
		m.done = true
		m.details = msg.details
		m.err = msg.err
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.cancel()
			return m, nil
		}
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")
	switch {
	case !m.done:
		b.WriteString(spinnerStyle.Render(spinnerFrames[m.frame]) + " running (q to cancel)\n")
	case m.err != nil:
		b.WriteString(failStyle.Render("✗ failed: "+m.err.Error()) + "\n")
	default:
		b.WriteString(okStyle.Render("✓ ok") + "\n")
	}
	for _, d := range m.details {
		b.WriteString(detailStyle.Render(d) + "\n")
	}
	return b.String()
}

// Run executes fn under a spinner and returns its details and error. The
// user can cancel with q or ctrl+c, which cancels fn's context.
func Run(title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := tea.NewProgram(model{title: title, cancel: cancel})
	go func() {
		details, err := fn(ctx)
		p.Send(doneMsg{details: details, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("ui: %w", err)
	}
	m, ok := final.(model)
	if !ok {
		return nil, fmt.Errorf("ui: unexpected model type")
	}
	if m.err != nil {
		return m.details, m.err
	}
	if ctx.Err() != nil {
		return m.details, ctx.Err()
	}
	return m.details, nil
}
