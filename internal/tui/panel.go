// Package tui is the persistent chat panel. Every message typed here is sent in Chat mode
// and answered in the panel; API key prompts are answered in a masked input.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/kevensen/gollama-clippy/internal/credentials"
	"github.com/kevensen/gollama-clippy/internal/logging"
	"github.com/kevensen/gollama-clippy/internal/mode"
	"github.com/kevensen/gollama-clippy/internal/orchestrator"
	"github.com/kevensen/gollama-clippy/internal/tui/input"
)

// Client is the part of the orchestrator the panel drives
type Client interface {
	Send(ctx context.Context, content string, target orchestrator.DisplayTarget, override *mode.Mode) orchestrator.Result
	Clear()
	TokenEstimate() int
}

type role int

const (
	roleUser role = iota
	roleAssistant
	roleNotice
)

type entry struct {
	role    role
	content string
	time    time.Time
}

// Options wires the panel to its asynchronous sources. Nil channels are never read.
type Options struct {
	Prompts <-chan credentials.Request
	Notices <-chan Notice
	Title   string
}

type replyMsg struct {
	result orchestrator.Result
	tokens int
}

type promptMsg struct{ req credentials.Request }

type noticeMsg struct{ notice Notice }

type clearedMsg struct{ tokens int }

// Model is the panel's bubbletea model
type Model struct {
	ctx    context.Context
	client Client
	opts   Options

	entries  []entry
	viewport viewport.Model
	spinner  spinner.Model
	input    input.Model
	renderer *glamour.TermRenderer
	styles   Styles

	width   int
	height  int
	waiting bool
	mode    mode.Mode
	tokens  int
	toast   string
	pending *credentials.Request

	logger *logging.Logger
}

// NewModel creates the panel
func NewModel(ctx context.Context, client Client, opts Options) Model {
	if opts.Title == "" {
		opts.Title = "Clippy"
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:      ctx,
		client:   client,
		opts:     opts,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		input:    input.NewModel(),
		styles:   DefaultStyles(),
		mode:     mode.Chat,
		logger:   logging.WithComponent("tui"),
	}
}

// Init starts listening for prompts and notices
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForPrompt(m.opts.Prompts), waitForNotice(m.opts.Notices))
}

func waitForPrompt(ch <-chan credentials.Request) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		req, ok := <-ch
		if !ok {
			return nil
		}
		return promptMsg{req: req}
	}
}

func waitForNotice(ch <-chan Notice) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return noticeMsg{notice: n}
	}
}

func (m Model) send(content string) tea.Cmd {
	return func() tea.Msg {
		res := m.client.Send(m.ctx, content, orchestrator.TargetCaller, mode.Ptr(mode.Chat))
		return replyMsg{result: res, tokens: m.client.TokenEstimate()}
	}
}

func (m Model) clear() tea.Cmd {
	return func() tea.Msg {
		m.client.Clear()
		return clearedMsg{tokens: m.client.TokenEstimate()}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case replyMsg:
		m.waiting = false
		m.tokens = msg.tokens
		m.input.SetLoading(false)
		switch msg.result.Outcome {
		case orchestrator.Replied, orchestrator.Displayed:
			m.mode = msg.result.Mode
		}
		if msg.result.Outcome == orchestrator.Replied {
			m.addEntry(roleAssistant, msg.result.Text)
		} else if msg.result.Text != "" {
			m.addEntry(roleNotice, msg.result.Text)
		}
		m.logger.Debug("Reply received", "request_id", msg.result.RequestID, "outcome", msg.result.Outcome.String())
		return m, nil

	case promptMsg:
		req := msg.req
		m.pending = &req
		m.input.Clear()
		m.input.SetLoading(false)
		m.input.SetMasked(true, req.Message)
		return m, nil

	case noticeMsg:
		if msg.notice.Target == orchestrator.TargetPanel {
			m.addEntry(roleAssistant, msg.notice.Text)
		} else {
			m.toast = msg.notice.Text
		}
		return m, waitForNotice(m.opts.Notices)

	case clearedMsg:
		m.entries = nil
		m.tokens = msg.tokens
		m.toast = "Conversation cleared"
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		if m.pending != nil {
			return m.answerPrompt("", false)
		}
		return m, tea.Quit

	case "esc":
		if m.pending != nil {
			return m.answerPrompt("", false)
		}
		m.toast = ""
		return m, nil

	case "ctrl+l":
		if m.pending != nil {
			return m, nil
		}
		return m, m.clear()

	case "enter":
		if m.pending != nil {
			return m.answerPrompt(m.input.Value(), true)
		}
		text := strings.TrimSpace(m.input.Value())
		if text == "" || m.waiting {
			return m, nil
		}
		m.input.Clear()
		m.input.SetLoading(true)
		m.waiting = true
		m.toast = ""
		m.addEntry(roleUser, text)
		return m, tea.Batch(m.spinner.Tick, m.send(text))

	case "pgup", "pgdown", "up", "down":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	m.input, _ = m.input.Update(msg)
	return m, nil
}

func (m Model) answerPrompt(secret string, ok bool) (tea.Model, tea.Cmd) {
	m.pending.Respond(secret, ok)
	m.pending = nil
	m.input.Clear()
	m.input.SetMasked(false, "")
	m.input.SetLoading(m.waiting)
	return m, waitForPrompt(m.opts.Prompts)
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.input.SetWidth(width)

	// title, input box and status line
	vpHeight := height - 1 - 3 - 1
	if vpHeight < 3 {
		vpHeight = 3
	}
	m.viewport.Width = width
	m.viewport.Height = vpHeight

	if width > 10 {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width-4),
		)
		if err != nil {
			m.logger.Warn("Markdown renderer unavailable", "error", err)
		} else {
			m.renderer = r
		}
	}
	m.refresh()
}

func (m *Model) addEntry(r role, content string) {
	m.entries = append(m.entries, entry{role: r, content: content, time: time.Now()})
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

func (m Model) renderHistory() string {
	if len(m.entries) == 0 {
		return m.styles.emptyMessages.Render("No messages yet. Ask a question and press Enter. Ctrl+L clears the conversation.")
	}

	var b strings.Builder
	for _, e := range m.entries {
		stamp := e.time.Format("15:04:05")
		switch e.role {
		case roleUser:
			b.WriteString(m.styles.userHeader.Render(fmt.Sprintf("You [%s]", stamp)))
		case roleAssistant:
			b.WriteString(m.styles.assistantHeader.Render(fmt.Sprintf("Clippy [%s]", stamp)))
		default:
			b.WriteString(m.styles.noticeHeader.Render(fmt.Sprintf("Notice [%s]", stamp)))
		}
		b.WriteString("\n")
		b.WriteString(m.renderContent(e))
		b.WriteString("\n\n")
	}
	return b.String()
}

func (m Model) renderContent(e entry) string {
	if e.role != roleAssistant || m.renderer == nil {
		return e.content
	}
	out, err := m.renderer.Render(e.content)
	if err != nil {
		return e.content
	}
	return strings.TrimRight(out, "\n")
}

func (m Model) statusLine() string {
	if m.toast != "" {
		return m.styles.toast.Render(m.toast)
	}
	parts := []string{"Mode: " + m.mode.Title(), fmt.Sprintf("~%d tokens", m.tokens)}
	if m.waiting {
		parts = append(parts, m.spinner.View()+" thinking")
	}
	if m.pending != nil {
		parts = append(parts, "Enter to save the key, Esc to cancel")
	} else {
		parts = append(parts, "Ctrl+L clear", "Ctrl+C quit")
	}
	return m.styles.statusBar.Render(strings.Join(parts, " · "))
}

// View renders the panel
func (m Model) View() string {
	return strings.Join([]string{
		m.styles.title.Render(m.opts.Title),
		m.viewport.View(),
		m.input.View(),
		m.statusLine(),
	}, "\n")
}

// Run starts the panel on the terminal and blocks until it exits
func Run(ctx context.Context, client Client, opts Options) error {
	program := tea.NewProgram(
		NewModel(ctx, client, opts),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err := program.Run()
	return err
}
