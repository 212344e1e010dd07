// Package tui is a terminal client for the support chat.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ChatPort is the TUI-facing side of the websocket client.
type ChatPort interface {
	Send(text string) error
	Frames() <-chan Frame
	Err() error
}

type frameMsg Frame

type closedMsg struct{ err error }

// Model is the Bubble Tea model for the chat window.
type Model struct {
	chat     ChatPort
	title    string
	input    textinput.Model
	viewport viewport.Model
	lines    []string
	status   string
	closed   bool
	ready    bool
}

func New(chat ChatPort, title string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Escribe tu pregunta y pulsa Enter"
	ti.Focus()
	ti.CharLimit = 4096
	return Model{
		chat:     chat,
		title:    title,
		input:    ti,
		viewport: viewport.New(0, 0),
		status:   "Conectado.",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitFrame(m.chat))
}

func waitFrame(chat ChatPort) tea.Cmd {
	return func() tea.Msg {
		f, ok := <-chat.Frames()
		if !ok {
			return closedMsg{err: chat.Err()}
		}
		return frameMsg(f)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := chatBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 1 + 1 + ih + 1 // header, status, input box, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-bh)
		m.refresh()
		return m, nil

	case frameMsg:
		m.lines = append(m.lines, renderFrame(Frame(msg)))
		switch msg.Type {
		case "bot", "chat_opened":
			m.status = "Listo."
		case "error":
			m.status = "El servidor cerró la sesión."
		}
		m.refresh()
		return m, waitFrame(m.chat)

	case closedMsg:
		m.closed = true
		m.status = "Conexión cerrada."
		if msg.err != nil {
			m.status = "Conexión cerrada: " + msg.err.Error()
		}
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.closed {
				return m, nil
			}
			if err := m.chat.Send(text); err != nil {
				m.status = "Error: " + err.Error()
				return m, nil
			}
			m.lines = append(m.lines, userStyle.Render("tú: ")+text)
			m.input.Reset()
			m.status = "Esperando respuesta..."
			m.refresh()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) refresh() {
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "Cargando..."
	}
	header := lipgloss.NewStyle().Bold(true).Render(m.title)
	chat := chatBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + chat + "\n" + input + "\n" + status
}

func renderFrame(f Frame) string {
	switch f.Type {
	case "bot":
		var b strings.Builder
		b.WriteString(botStyle.Render("asistente: "))
		b.WriteString(f.Message)
		for _, r := range f.Recommendations {
			fmt.Fprintf(&b, "\n  %s %s $%.2f", recStyle.Render("•"), r.Title, r.Price)
			if r.Reason != "" {
				b.WriteString(" (" + r.Reason + ")")
			}
		}
		return b.String()
	case "warning":
		return warnStyle.Render("aviso: " + f.Message)
	case "error":
		return errStyle.Render("error: " + f.Message)
	case "chat_opened":
		return systemStyle.Render(f.Message)
	default:
		return f.Message
	}
}

var (
	chatBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	userStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	recStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	systemStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
)
