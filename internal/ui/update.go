package ui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TranscriptLineMsg:
		m.lines = append(m.lines, msg.Line)
		if len(m.lines) > maxVisibleLines {
			m.lines = m.lines[len(m.lines)-maxVisibleLines:]
		}
		return m, listen(m.events)

	case ActionDoneMsg:
		m.summary = msg.Summary
		m.lastErr = msg.Err
		m.state = stateDone
		m.cancel = nil
		m.tc.Runner.OnLine = nil
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.state {
	case stateMenu:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		case "enter":
			item := m.items[m.cursor]
			if item.id == actionQuit {
				return m, tea.Quit
			}
			if prompt, ok := m.needsInput(item.id); ok {
				m.state = stateInput
				m.inputFor = item.id
				m.inputPrompt = prompt
				m.input.Focus()
				return m, textinput.Blink
			}
			return m, m.startAction(item.id)
		}
		return m, nil

	case stateInput:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.state = stateMenu
			m.input.Blur()
			return m, nil
		case "enter":
			value := m.input.Value()
			m.input.Blur()
			if err := m.applyInput(m.inputFor, value); err != nil {
				m.summary = ""
				m.lastErr = err
				m.state = stateDone
				return m, nil
			}
			return m, m.startAction(m.inputFor)
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case stateRunning:
		// ctrl+c cancels the action: the harness kills the child and the
		// operator lands back on the menu, never orphaning a process. The
		// outstanding listen delivers the ActionDoneMsg.
		if msg.String() == "ctrl+c" && m.cancel != nil {
			m.cancel()
		}
		return m, nil

	case stateDone:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		default:
			m.state = stateMenu
			return m, nil
		}
	}
	return m, nil
}
