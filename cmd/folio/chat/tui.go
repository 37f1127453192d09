package chatcmder

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/papercomputeco/folio/pkg/cliui"
	"github.com/papercomputeco/folio/pkg/vector"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	questionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	inputBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Searcher answers a question with ranked passages.
type Searcher interface {
	Search(ctx context.Context, text string, k int) ([]vector.QueryResult, error)
}

type answerMsg struct {
	question string
	results  []vector.QueryResult
	err      error
}

// Model is the chat TUI: a scrolling transcript above a question input.
type Model struct {
	ctx      context.Context
	searcher Searcher
	topK     int
	source   string

	input      textinput.Model
	viewport   viewport.Model
	transcript []string
	pending    bool
	ready      bool
	width      int
}

// NewModel returns a chat model that queries searcher for topK passages.
func NewModel(ctx context.Context, searcher Searcher, source string, topK int) Model {
	ti := textinput.New()
	ti.Prompt = "? "
	ti.Placeholder = "Ask about " + source
	ti.CharLimit = 0
	ti.Focus()

	return Model{
		ctx:      ctx,
		searcher: searcher,
		topK:     topK,
		source:   source,
		input:    ti,
		viewport: viewport.New(0, 0),
		width:    80,
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		_, frame := inputBoxStyle.GetFrameSize()
		m.viewport.Width = msg.Width
		m.viewport.Height = max(3, msg.Height-frame-3)
		m.input.Width = max(10, msg.Width-6)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			question := strings.TrimSpace(m.input.Value())
			if question == "" || m.pending {
				return m, nil
			}
			m.input.Reset()
			m.pending = true
			m.transcript = append(m.transcript, questionStyle.Render("? "+question))
			m.refresh()
			return m, m.ask(question)
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case answerMsg:
		m.pending = false
		if msg.err != nil {
			m.transcript = append(m.transcript, errorStyle.Render("error: "+msg.err.Error()))
		} else {
			m.transcript = append(m.transcript, cliui.RenderResults(msg.results, m.width, 0))
		}
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	status := cliui.DimStyle.Render("enter to ask, pgup/pgdown to scroll, esc to quit")
	if m.pending {
		status = cliui.DimStyle.Render("searching...")
	}

	return titleStyle.Render("folio: "+m.source) + "\n" +
		m.viewport.View() + "\n" +
		inputBoxStyle.Render(m.input.View()) + "\n" +
		status
}

// Transcript returns everything shown so far, oldest first.
func (m Model) Transcript() []string {
	return m.transcript
}

func (m *Model) refresh() {
	m.viewport.SetContent(strings.Join(m.transcript, "\n\n"))
	m.viewport.GotoBottom()
}

func (m Model) ask(question string) tea.Cmd {
	return func() tea.Msg {
		results, err := m.searcher.Search(m.ctx, question, m.topK)
		if err != nil {
			return answerMsg{question: question, err: fmt.Errorf("search failed: %w", err)}
		}
		return answerMsg{question: question, results: results}
	}
}
