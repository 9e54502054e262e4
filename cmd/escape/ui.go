package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/escape-engine/internal/host"
	"github.com/jwebster45206/escape-engine/internal/host/local"
)

const (
	AgentName       = "Narrator"
	PlaceHolderText = "Type your action here..."
)

// consoleEngine is what the UI reads from the engine directly. Everything
// the player types goes through the command dispatcher.
type consoleEngine interface {
	RoomOf(playerID string) (string, bool)
	Status(ctx context.Context, player host.Player, roomID string) (string, error)
}

// entry is one rendered line of the transcript.
type entry struct {
	kind    host.MessageKind
	author  string
	text    string
	choices []string
}

const (
	kindPlayer host.MessageKind = "player"
	kindSystem host.MessageKind = "system"
)

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	engine   consoleEngine
	handler  host.Handler
	platform *local.Platform
	player   host.Player
	theme    string

	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	loading      bool

	entries       []entry
	lastNarration string
	status        string

	// Quit confirmation state
	showQuitModal bool

	// Progress bar state
	progressTick int
}

type deliveryMsg struct {
	delivery local.Delivery
}

type replyMsg struct {
	text string
	err  error
}

type statusMsg struct {
	text string
}

type progressTickMsg struct{}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	narratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	echoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Italic(true)

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

func NewConsoleUI(eng consoleEngine, handler host.Handler, platform *local.Platform, player host.Player, theme string) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 1000
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	return ConsoleUI{
		engine:       eng,
		handler:      handler,
		platform:     platform,
		player:       player,
		theme:        theme,
		textarea:     ta,
		chatViewport: chatVp,
		metaViewport: metaVp,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink, waitForDelivery(m.platform), m.refreshStatus()}
	if _, ok := m.engine.RoomOf(m.player.ID); !ok {
		cmds = append(cmds, m.runCommand(strings.TrimSpace("/start "+m.theme)))
	}
	return tea.Batch(cmds...)
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)
		return m, tea.Batch(vpCmd, mvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		chatWidth := int(float64(m.width)*0.75) - 4
		metaWidth := m.width - chatWidth - 6

		m.chatViewport.Width = chatWidth - 2
		m.chatViewport.Height = m.height - 7
		m.metaViewport.Width = metaWidth - 2
		m.metaViewport.Height = m.height - 4
		m.textarea.SetWidth(chatWidth - 4)

		m.ready = true
		m.writeChatContent()
		m.metaViewport.SetContent(m.writeMetadata())

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyCtrlY:
			m.copyLastNarration()
			m.writeChatContent()
			return m, nil
		case tea.KeyEnter:
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			m.textarea.Reset()

			if strings.HasPrefix(input, "/") {
				m.writeChatContent()
				return m, m.runCommand(input)
			}

			roomID, ok := m.engine.RoomOf(m.player.ID)
			if !ok {
				m.entries = append(m.entries, entry{kind: kindSystem, text: "No session running. Type /start to begin."})
				m.writeChatContent()
				return m, nil
			}

			m.entries = append(m.entries, entry{kind: kindPlayer, text: input})
			m.loading = true
			m.progressTick = 0
			m.writeChatContent()
			return m, tea.Batch(m.sendMessage(roomID, input), progressTick())
		}

	case deliveryMsg:
		m.receive(msg.delivery)
		m.writeChatContent()
		return m, tea.Batch(waitForDelivery(m.platform), m.refreshStatus())

	case replyMsg:
		if msg.err != nil {
			m.loading = false
			m.entries = append(m.entries, entry{kind: host.KindError, text: msg.err.Error()})
		}
		if msg.text != "" {
			m.entries = append(m.entries, entry{kind: kindSystem, text: msg.text})
		}
		m.writeChatContent()
		return m, m.refreshStatus()

	case statusMsg:
		m.status = msg.text
		m.metaViewport.SetContent(m.writeMetadata())

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.writeChatContent()
			return m, progressTick()
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

// receive records a message the engine posted to a room. Anything but an
// echo ends the wait for the narrator.
func (m *ConsoleUI) receive(d local.Delivery) {
	msg := d.Message
	if msg.Kind != host.KindEcho {
		m.loading = false
	}
	if msg.Kind == host.KindNarration {
		m.lastNarration = msg.Body()
	}
	m.entries = append(m.entries, entry{kind: msg.Kind, author: msg.Author, text: msg.Text, choices: msg.Choices})
}

func (m *ConsoleUI) copyLastNarration() {
	if m.lastNarration == "" {
		m.entries = append(m.entries, entry{kind: kindSystem, text: "Nothing to copy yet."})
		return
	}
	if err := clipboard.WriteAll(m.lastNarration); err != nil {
		m.entries = append(m.entries, entry{kind: host.KindError, text: "Copy failed: " + err.Error()})
		return
	}
	m.entries = append(m.entries, entry{kind: kindSystem, text: "Copied the last scene to the clipboard."})
}

// writeChatContent rebuilds the transcript for the current viewport width.
func (m *ConsoleUI) writeChatContent() {
	chatWidth := m.chatViewport.Width - 6 // Account for left(3) + right(3) padding
	if chatWidth < 20 {
		chatWidth = 20
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("ESCAPE") + "\n\n")
	content.WriteString("Type your actions below. A number picks one of the listed choices.\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", chatWidth-6)) + "\n\n")

	for _, e := range m.entries {
		content.WriteString(renderEntry(e, chatWidth) + "\n\n")
	}

	if m.loading {
		content.WriteString(m.renderProgressBar())
	}

	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

func renderEntry(e entry, width int) string {
	switch e.kind {
	case host.KindNarration:
		out := formatNarratorResponse(e.text, width)
		for i, c := range e.choices {
			out += "\n" + wordwrap.String(fmt.Sprintf("  %d. %s", i+1, c), width)
		}
		return out
	case kindPlayer:
		return userStyle.Render("You: ") + wordwrap.String(e.text, width-6)
	case host.KindEcho:
		return echoStyle.Render(wordwrap.String(e.author+": "+e.text, width))
	case host.KindNotice:
		return noticeStyle.Render(wordwrap.String(e.text, width))
	case host.KindError:
		return errorStyle.Render(wordwrap.String("Error: "+e.text, width))
	case host.KindPrompt:
		return narratorStyle.Render(wordwrap.String(e.text, width))
	}
	return promptStyle.Render(wordwrap.String(e.text, width))
}

func formatNarratorResponse(response string, width int) string {
	prefix := AgentName + ": "
	wrapped := wordwrap.String(response, width-len(prefix))
	return narratorStyle.Render(prefix) + wrapped
}

func (m ConsoleUI) writeMetadata() string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("SESSION") + "\n\n")

	content.WriteString("Player:\n")
	content.WriteString(m.player.DisplayName + "\n\n")

	if m.status == "" {
		content.WriteString("No session running.\n")
	} else {
		content.WriteString(wordwrap.String(m.status, max(m.metaViewport.Width, 10)) + "\n")
	}

	content.WriteString("\n")
	content.WriteString("Commands:\n")
	content.WriteString("• Enter: Send\n")
	content.WriteString("• Ctrl+Y: Copy scene\n")
	content.WriteString("• Ctrl+C: Quit\n")
	content.WriteString("• /status, /end\n")
	content.WriteString("• /retry, /quit\n")
	content.WriteString("• /help\n")

	return content.String()
}

func (m ConsoleUI) runCommand(input string) tea.Cmd {
	ev := host.Event{Kind: host.EventCommand, Player: m.player, Text: input}
	if roomID, ok := m.engine.RoomOf(m.player.ID); ok {
		ev.RoomID = roomID
	}
	return func() tea.Msg {
		text, err := m.handler.HandleEvent(context.Background(), ev)
		return replyMsg{text: text, err: err}
	}
}

func (m ConsoleUI) sendMessage(roomID, text string) tea.Cmd {
	ev := host.Event{Kind: host.EventMessage, Player: m.player, RoomID: roomID, Text: text}
	return func() tea.Msg {
		_, err := m.handler.HandleEvent(context.Background(), ev)
		return replyMsg{err: err}
	}
}

func (m ConsoleUI) refreshStatus() tea.Cmd {
	return func() tea.Msg {
		text, err := m.engine.Status(context.Background(), m.player, "")
		if err != nil {
			return statusMsg{}
		}
		return statusMsg{text: text}
	}
}

func waitForDelivery(p *local.Platform) tea.Cmd {
	return func() tea.Msg {
		return deliveryMsg{delivery: <-p.Deliveries()}
	}
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Leave?"))
	content.WriteString("\n\n")
	content.WriteString("Your session is saved and resumes next time.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to leave, N to keep playing"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	chatWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - chatWidth - 6

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", max(chatWidth-4, 1))),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}

// renderProgressBar creates an animated progress bar while the narrator works
func (m ConsoleUI) renderProgressBar() string {
	usable := m.chatViewport.Width - 6
	if usable <= 0 {
		usable = 30
	}
	if usable > 80 {
		usable = 80
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		if i < filled {
			bar.WriteString("█")
		} else if i == filled && frame%4 < 2 {
			bar.WriteString("▓")
		} else {
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
