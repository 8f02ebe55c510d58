package ui

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
)

// Select shows an arrow-key picker and returns the chosen item.
func Select(prompt string, items []string) (string, error) {
	if len(items) == 0 {
		return "", fmt.Errorf("nothing to select")
	}

	m := pickerModel{prompt: prompt, items: items}
	p := tea.NewProgram(m, tea.WithOutput(os.Stderr))
	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}

	fm, ok := finalModel.(pickerModel)
	if !ok || !fm.complete {
		return "", fmt.Errorf("cancelled")
	}
	return fm.items[fm.cursor], nil
}

type pickerModel struct {
	prompt   string
	items    []string
	cursor   int
	complete bool
	quitting bool
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			m.complete = true
			return m, tea.Quit
		case tea.KeyUp:
			if m.cursor > 0 {
				m.cursor--
			}
		case tea.KeyDown:
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		}
	}
	return m, nil
}

func (m pickerModel) View() string {
	if m.complete || m.quitting {
		return ""
	}
	s := "\n" + titleStyle.Render(m.prompt) + "\n\n"
	for i, item := range m.items {
		if i == m.cursor {
			s += cursorStyle.Render("› "+item) + "\n"
		} else {
			s += "  " + item + "\n"
		}
	}
	s += quitTextStyle.Render("\n↑/↓ move · enter select · esc cancel") + "\n"
	return s
}
