package terminal

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nocturn-hq/concierge-widget/internal/model/chat"
	"github.com/nocturn-hq/concierge-widget/internal/view"
)

// Session is the part of widget.Session the terminal drives.
type Session interface {
	TogglePanel() bool
	AcceptConsent(ctx context.Context) bool
	Submit(ctx context.Context, text string) error
	Snapshot() view.Snapshot
}

type submitDoneMsg struct{ err error }

type consentDoneMsg struct{}

// Model is the bubbletea model of the chat panel.
type Model struct {
	ctx     context.Context
	session Session
	surface *Surface
	input   textinput.Model
	snap    view.Snapshot
	notice  string
	width   int
	height  int
}

func NewModel(ctx context.Context, session Session, surface *Surface) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.CharLimit = 1000
	ti.Prompt = "> "

	return Model{
		ctx:     ctx,
		session: session,
		surface: surface,
		input:   ti,
		snap:    session.Snapshot(),
		width:   60,
		height:  24,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.surface.waitForSnapshot())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		m.applySnapshot(view.Snapshot(msg))
		return m, m.surface.waitForSnapshot()

	case submitDoneMsg:
		if msg.err != nil {
			m.notice = msg.err.Error()
		}
		return m, nil

	case consentDoneMsg:
		m.applySnapshot(m.session.Snapshot())
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(10, msg.Width-8)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "ctrl+o":
		m.session.TogglePanel()
		m.applySnapshot(m.session.Snapshot())
		return m, nil
	}

	if !m.snap.PanelOpen {
		return m, nil
	}

	if m.snap.ConsentPrompt {
		if msg.String() == "a" {
			return m, m.acceptConsent()
		}
		return m, nil
	}

	if msg.Type == tea.KeyEnter {
		text := m.input.Value()
		m.input.Reset()
		m.notice = ""
		if strings.TrimSpace(text) == "" {
			return m, nil
		}
		return m, m.submit(text)
	}

	if !m.snap.InputEnabled {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit runs off the UI loop; the fallback path blocks until the reply.
func (m Model) submit(text string) tea.Cmd {
	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		return submitDoneMsg{err: session.Submit(ctx, text)}
	}
}

func (m Model) acceptConsent() tea.Cmd {
	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		session.AcceptConsent(ctx)
		return consentDoneMsg{}
	}
}

func (m *Model) applySnapshot(snap view.Snapshot) {
	m.snap = snap
	if snap.PanelOpen && snap.InputEnabled {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

func (m Model) View() string {
	if !m.snap.PanelOpen {
		return headerStyle(m.snap.AccentColor).Inherit(launcherStyle).Render("Chat with us") +
			"\n" + helpStyle.Render("ctrl+o open • esc quit")
	}

	width := max(20, m.width-4)
	var b strings.Builder

	header := fmt.Sprintf("%s  ·  %s", m.snap.Title, m.snap.Status)
	b.WriteString(headerStyle(m.snap.AccentColor).Width(width).Render(header))
	b.WriteString("\n")
	if m.snap.Degraded {
		b.WriteString(noticeStyle.Render("Storage unavailable: this conversation will not be remembered."))
		b.WriteString("\n")
	}

	b.WriteString(m.transcript(width))

	if m.snap.Typing {
		b.WriteString(typingStyle.Render("typing..."))
		b.WriteString("\n")
	}

	if m.snap.ConsentPrompt {
		b.WriteString("\n")
		b.WriteString(noticeStyle.Render("By chatting you agree to our privacy policy: " + m.snap.PrivacyURL))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("[a] accept"))
	} else {
		b.WriteString("\n")
		b.WriteString(m.input.View())
	}
	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(noticeStyle.Render(m.notice))
	}

	return panelStyle.Width(width).Render(b.String()) + "\n" +
		helpStyle.Render("enter send • ctrl+o close • esc quit")
}

// transcript renders the turns up to the pinned index and keeps the tail
// that fits the terminal height.
func (m Model) transcript(width int) string {
	if m.snap.ScrollIndex < 0 || len(m.snap.Turns) == 0 {
		return ""
	}
	end := min(m.snap.ScrollIndex+1, len(m.snap.Turns))

	var lines []string
	for _, turn := range m.snap.Turns[:end] {
		lines = append(lines, strings.Split(renderTurn(turn, m.snap.Title, width), "\n")...)
	}

	room := max(3, m.height-10)
	if len(lines) > room {
		lines = lines[len(lines)-room:]
	}
	return strings.Join(lines, "\n") + "\n"
}

func renderTurn(turn chat.Turn, title string, width int) string {
	if turn.Role == chat.RoleGuest {
		return guestStyle.Width(width).Align(lipgloss.Right).Render(turn.Text)
	}
	return aiStyle.Width(width).Render(title + ": " + turn.Text)
}
