package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mrzlfz/code-server-labs/internal/model"
	"github.com/mrzlfz/code-server-labs/internal/ui/styles"
)

// View renders the entire application.
func (m Model) View() string {
	var body string
	switch m.state {
	case stateMenu:
		body = m.viewMenu()
	case stateInput:
		body = m.viewInput()
	case stateRunning:
		body = m.viewTranscript(false)
	case stateDone:
		body = m.viewTranscript(true)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		styles.Title.Render("code-server-labs"),
		body,
		m.viewStatusBar(),
	)
}

func (m Model) viewMenu() string {
	var b strings.Builder
	for i, item := range m.items {
		label := item.title
		if item.desc != "" {
			label += "  " + styles.ListItemDim.Render(item.desc)
		}
		if i == m.cursor {
			b.WriteString(styles.ListItemSelected.Render("› " + label))
		} else {
			b.WriteString(styles.ListItem.Render("  " + label))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (m Model) viewInput() string {
	return styles.DialogBox.Render(lipgloss.JoinVertical(lipgloss.Left,
		styles.DialogTitle.Render(m.inputPrompt),
		m.input.View(),
	))
}

// viewTranscript shows the running (or finished) action's output tail.
func (m Model) viewTranscript(done bool) string {
	var b strings.Builder

	visible := m.lines
	if limit := m.transcriptHeight(); len(visible) > limit {
		visible = visible[len(visible)-limit:]
	}
	for _, l := range visible {
		b.WriteString(lineStyle(l.Tag).Render(l.Text))
		b.WriteByte('\n')
	}

	if done {
		if m.lastErr != nil {
			b.WriteString(styles.StatusErrorStyle.Render("✗ " + m.lastErr.Error()))
		} else {
			b.WriteString(styles.StatusRunningStyle.Render("✓ " + m.summary))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (m Model) transcriptHeight() int {
	h := m.height - 4
	if h < 5 {
		h = 5
	}
	return h
}

func lineStyle(tag model.LineTag) lipgloss.Style {
	switch tag {
	case model.TagPrompt:
		return styles.LinePrompt
	case model.TagProgress:
		return styles.LineProgress
	case model.TagSuccess:
		return styles.LineSuccess
	case model.TagError:
		return styles.LineError
	}
	return styles.LineOther
}

func (m Model) viewStatusBar() string {
	var hint string
	switch m.state {
	case stateMenu:
		hint = fmt.Sprintf("%s navigate  %s run  %s quit",
			styles.StatusBarKey.Render("↑/↓"),
			styles.StatusBarKey.Render("enter"),
			styles.StatusBarKey.Render("q"))
	case stateInput:
		hint = fmt.Sprintf("%s confirm  %s back",
			styles.StatusBarKey.Render("enter"),
			styles.StatusBarKey.Render("esc"))
	case stateRunning:
		hint = fmt.Sprintf("%s cancel", styles.StatusBarKey.Render("ctrl+c"))
	case stateDone:
		hint = "any key for menu"
	}
	return styles.StatusBarStyle.Render(hint)
}
