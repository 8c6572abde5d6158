package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"strategy-advisor/internal/domain"
	"strategy-advisor/internal/stream"
)

const (
	title         = "Investment Strategy Advisor"
	panelTitle    = "Recommended Strategies"
	disclaimer    = "Disclaimer: General educational information only. Consult a professional advisor."
	triggerLabel  = "Get Strategies"
	thinkingLabel = "Thinking..."

	// Lines around the response panel: header, selector, panel border and
	// title, footer and help.
	chromeHeight = 13
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#1a0dab")).
			Padding(0, 1)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#cc3333"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#0066cc"))

	buttonStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffffff")).
			Background(lipgloss.Color("#0066cc")).
			Padding(0, 2)

	disabledButtonStyle = buttonStyle.
				Foreground(lipgloss.Color("#444444")).
				Background(lipgloss.Color("#cccccc"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Foreground(lipgloss.Color("#d4d4d4")).
			Padding(0, 1)

	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#9cdcfe"))

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#0066cc"))
)

func (m Model) View() string {
	if m.screen == screenSignIn {
		return m.signInView()
	}
	return m.advisorView()
}

func (m Model) signInView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")
	b.WriteString("Sign in to continue\n\n")
	b.WriteString("Username: " + m.inputs[fieldUsername].View() + "\n")
	b.WriteString("Password: " + m.inputs[fieldPassword].View() + "\n\n")
	switch {
	case m.signingIn:
		b.WriteString(mutedStyle.Render("Signing in...") + "\n")
	case m.authErr != "":
		b.WriteString(errorStyle.Render(m.authErr) + "\n")
	}
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("enter: next/sign in • tab: switch field • ctrl+c: quit"))
	return b.String()
}

func (m Model) advisorView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Welcome, %s!  %s\n\n", m.username(), mutedStyle.Render("[o] Sign Out"))

	b.WriteString("Your Life Stage: ")
	for i, stage := range domain.LifeStages() {
		label := fmt.Sprintf("%d) %s", i+1, stage.Label())
		if stage == m.state.LifeStage {
			label = selectedStyle.Render("● " + label)
		} else {
			label = mutedStyle.Render("○ " + label)
		}
		b.WriteString(label + "  ")
	}
	b.WriteString("\n\n")
	b.WriteString(m.triggerView())
	b.WriteString("\n")

	if m.state.Text != "" {
		header := panelTitleStyle.Render(panelTitle)
		b.WriteString(panelStyle.Width(m.viewport.Width + 2).Render(header + "\n\n" + m.viewport.View()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(mutedStyle.Italic(true).Render(disclaimer))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("←/→ or 1-3: life stage • enter: get strategies • ↑/↓: scroll • q: quit"))
	return b.String()
}

func (m Model) triggerView() string {
	if m.state.Loading() {
		return disabledButtonStyle.Render(thinkingLabel) + " " + m.spinner.View()
	}
	return buttonStyle.Render(triggerLabel)
}

func (m Model) username() string {
	if m.tokens.Username == "" {
		return "User"
	}
	return m.tokens.Username
}

// panelText scrubs streaming artifacts and wraps to the panel width.
func panelText(text string, width int) string {
	text = stream.Clean(text)
	if width <= 0 {
		return text
	}
	return lipgloss.NewStyle().Width(width).Render(text)
}
