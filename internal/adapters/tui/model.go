package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kirillkom/policy-qa/internal/core/domain"
	"github.com/kirillkom/policy-qa/internal/core/ports"
)

const exitCommand = "exit"

type answerMsg struct {
	question string
	result   domain.AnswerResult
	err      error
}

// Model is the Bubble Tea model for the interactive asker.
type Model struct {
	answerer ports.PolicyAnswerer
	timeout  time.Duration
	input    textinput.Model
	viewport viewport.Model
	summary  string
	status   string
	content  string
	busy     bool
	ready    bool
}

// New creates the asker. timeout bounds one question; zero means no bound.
func New(answerer ports.PolicyAnswerer, summary string, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a policy question, or type exit"
	ti.Focus()
	ti.CharLimit = 4000
	return Model{
		answerer: answerer,
		timeout:  timeout,
		input:    ti,
		viewport: viewport.New(0, 0),
		summary:  summary,
		status:   "Ready.",
		content:  "No answer yet.",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ah := answerBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-ah)
		m.viewport.SetContent(m.content)
		return m, nil
	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.status = fmt.Sprintf("Answered %q", msg.question)
		m.content = renderResult(msg.result)
		m.viewport.SetContent(m.content)
		m.viewport.GotoTop()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			question := strings.TrimSpace(m.input.Value())
			if strings.EqualFold(question, exitCommand) {
				return m, tea.Quit
			}
			if question == "" || m.busy {
				return m, nil
			}
			m.busy = true
			m.status = "Searching the policy documents..."
			m.input.SetValue("")
			return m, m.ask(question)
		}
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) ask(question string) tea.Cmd {
	answerer := m.answerer
	timeout := m.timeout
	return func() tea.Msg {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		result, err := answerer.Answer(ctx, question)
		return answerMsg{question: question, result: result, err: err}
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("Policy QA")
	summary := mutedStyle.Render(m.summary)
	answer := answerBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + summary + "\n" + answer + "\n" + input + "\n" + status
}

func renderResult(result domain.AnswerResult) string {
	if result.IsRefusal() {
		return refusalStyle.Render(domain.CanonicalRefusal)
	}

	var b strings.Builder
	b.WriteString(result.Text)
	b.WriteString("\n\n")
	b.WriteString(titleStyle.Render("Sources"))
	b.WriteString("\n")
	for _, source := range result.Sources {
		b.WriteString("  - " + source + "\n")
	}
	b.WriteString("\n")
	b.WriteString(confidenceStyle.Render(fmt.Sprintf("Confidence: %d%%", result.ConfidencePercent())))
	return b.String()
}

var (
	titleStyle      = lipgloss.NewStyle().Bold(true)
	mutedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	refusalStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	confidenceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	answerBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
