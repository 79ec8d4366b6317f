package console

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/dojobot/internal/chat"
	"github.com/nhle/dojobot/internal/keys"
	"github.com/nhle/dojobot/internal/theme"
	"github.com/nhle/dojobot/internal/ui"
)

// GroupChatID is the chat id of the simulated group.
const GroupChatID int64 = -1000

// Handler consumes inbound chat events.
type Handler interface {
	HandleMessage(ctx context.Context, msg chat.Message) error
	HandleCallback(ctx context.Context, cb chat.Callback) error
}

// Bot names the account the console talks to.
type Bot struct {
	Name     string
	Username string
}

// handledMsg reports the outcome of one inbound event.
type handledMsg struct {
	err error
}

type entry struct {
	fromBot   bool
	chatID    int64
	messageID int
	text      string
	buttons   chat.Keyboard
	reply     [][]string

	// forceReply marks a prompt the next message answers.
	forceReply bool
}

// Model is the console conversation.
type Model struct {
	handler   Handler
	transport *Transport
	user      chat.User
	bot       Bot
	keys      *keys.KeyMap
	help      help.Model
	layout    ui.Layout
	input     textarea.Model
	viewport  viewport.Model
	entries   []entry
	byID      map[int]int
	lastMenu  int
	group     bool
	joined    bool
	showHelp  bool
	status    string
	failed    bool
	callbacks int
}

// New creates the console model.
func New(handler Handler, transport *Transport, bot Bot) Model {
	ta := textarea.New()
	ta.Placeholder = "Say something to the bot. #n presses a button, /file name uploads a document."
	ta.Prompt = "> "
	ta.ShowLineNumbers = false
	ta.SetHeight(2)
	ta.CharLimit = 4000
	ta.Focus()

	return Model{
		handler:   handler,
		transport: transport,
		user:      transport.user,
		bot:       bot,
		keys:      keys.DefaultKeyMap(),
		help:      help.New(),
		layout:    ui.NewLayout(80, 24),
		input:     ta,
		viewport:  viewport.New(76, 16),
		byID:      make(map[int]int),
	}
}

// Init starts listening for outbound calls.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.transport.waitForEvent())
}

// Update handles messages for the console.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.setSize(msg.Width, msg.Height)
		return m, nil

	case sentMsg:
		m.append(entry{
			fromBot:    true,
			chatID:     msg.ChatID,
			messageID:  msg.MessageID,
			text:       msg.Text,
			buttons:    msg.Buttons,
			reply:      msg.Reply,
			forceReply: msg.ForceReply,
		})
		if len(msg.Buttons) > 0 {
			m.lastMenu = msg.MessageID
		}
		return m, m.transport.waitForEvent()

	case editedMsg:
		if i, ok := m.byID[msg.MessageID]; ok {
			m.entries[i].text = msg.Text
			m.entries[i].buttons = msg.Buttons
			m.refresh()
		}
		return m, m.transport.waitForEvent()

	case documentMsg:
		text := "[document " + msg.Ref + "]"
		if msg.Caption != "" {
			text += "\n" + msg.Caption
		}
		m.append(entry{fromBot: true, chatID: msg.ChatID, text: text})
		return m, m.transport.waitForEvent()

	case pollMsg:
		text := "[poll] " + msg.Poll.Question
		for _, o := range msg.Poll.Options {
			text += "\n  o " + o
		}
		m.append(entry{fromBot: true, chatID: msg.ChatID, text: text})
		return m, m.transport.waitForEvent()

	case noticeMsg:
		m.setStatus(msg.Text, false)
		return m, m.transport.waitForEvent()

	case handledMsg:
		if msg.err != nil {
			m.setStatus("error: "+msg.err.Error(), true)
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			return m, nil
		case key.Matches(msg, m.keys.ToggleChat):
			return m.toggleChat()
		case key.Matches(msg, m.keys.ScrollUp), key.Matches(msg, m.keys.ScrollDown):
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case key.Matches(msg, m.keys.Send):
			text := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			return m.submit(text)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// chatID returns the chat the user is currently typing into.
func (m Model) chatID() int64 {
	if m.group {
		return GroupChatID
	}
	return m.user.ID
}

func (m Model) chatType() chat.Type {
	return chatTypeOf(m.chatID())
}

func chatTypeOf(chatID int64) chat.Type {
	if chatID == GroupChatID {
		return chat.Group
	}
	return chat.Private
}

// toggleChat switches between the private and the group chat. Entering the
// group the first time announces the bot as a new member.
func (m Model) toggleChat() (tea.Model, tea.Cmd) {
	m.group = !m.group
	m.lastMenu = 0
	if m.group {
		m.setStatus("group chat: address the bot with @"+m.bot.Username, false)
	} else {
		m.setStatus("private chat", false)
	}
	if !m.group || m.joined {
		return m, nil
	}
	m.joined = true
	return m, m.deliver(chat.Message{
		ID:       m.transport.nextMessageID(),
		ChatID:   GroupChatID,
		ChatType: chat.Group,
		Title:    "Console",
		From:     m.user,
		BotAdded: true,
	})
}

// submit turns one input line into an inbound event.
func (m Model) submit(text string) (tea.Model, tea.Cmd) {
	if text == "" {
		return m, nil
	}

	if strings.HasPrefix(text, "#") {
		return m.press(text)
	}

	msg := chat.Message{
		ID:       m.transport.nextMessageID(),
		ChatID:   m.chatID(),
		ChatType: m.chatType(),
		Title:    "Console",
		From:     m.user,
	}
	if name, ok := strings.CutPrefix(text, "/file "); ok {
		name = strings.TrimSpace(name)
		msg.Document = &chat.Document{FileID: "console:" + name, FileName: name}
		text = "[uploaded " + name + "]"
	} else {
		msg.Text = text
		msg.ReplyToBot = m.group && m.awaitingReply()
	}

	m.append(entry{chatID: msg.ChatID, messageID: msg.ID, text: text})
	return m, m.deliver(msg)
}

// press resolves "#n" against the most recent inline keyboard.
func (m Model) press(text string) (tea.Model, tea.Cmd) {
	n, err := strconv.Atoi(strings.TrimPrefix(text, "#"))
	i, ok := m.byID[m.lastMenu]
	if err != nil || !ok {
		m.setStatus("no menu to choose from", true)
		return m, nil
	}

	e := m.entries[i]
	var chosen *chat.Button
	count := 0
	for _, row := range e.buttons {
		for j := range row {
			count++
			if count == n {
				chosen = &row[j]
			}
		}
	}
	if chosen == nil {
		m.setStatus(fmt.Sprintf("choose a button between #1 and #%d", count), true)
		return m, nil
	}

	m.callbacks++
	m.append(entry{chatID: e.chatID, text: "[pressed " + chosen.Text + "]"})
	cb := chat.Callback{
		ID:        "console-" + strconv.Itoa(m.callbacks),
		From:      m.user,
		ChatID:    e.chatID,
		ChatType:  chatTypeOf(e.chatID),
		MessageID: e.messageID,
		Data:      chosen.Data,
	}
	handler := m.handler
	return m, func() tea.Msg {
		return handledMsg{err: handler.HandleCallback(context.Background(), cb)}
	}
}

// awaitingReply reports whether the latest bot message in the current chat
// asked for a direct reply.
func (m Model) awaitingReply() bool {
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.fromBot && e.chatID == m.chatID() {
			return e.forceReply
		}
	}
	return false
}

func (m Model) deliver(msg chat.Message) tea.Cmd {
	handler := m.handler
	return func() tea.Msg {
		return handledMsg{err: handler.HandleMessage(context.Background(), msg)}
	}
}

func (m *Model) append(e entry) {
	m.entries = append(m.entries, e)
	if e.messageID != 0 {
		m.byID[e.messageID] = len(m.entries) - 1
	}
	m.refresh()
}

func (m *Model) setStatus(text string, failed bool) {
	m.status = text
	m.failed = failed
}

func (m *Model) setSize(width, height int) {
	m.layout = ui.NewLayout(width, height)
	m.help.Width = width
	m.input.SetWidth(width - 4)

	vpHeight := m.layout.ContentHeight() - m.input.Height() - 3
	if vpHeight < 4 {
		vpHeight = 4
	}
	m.viewport.Width = width - 4
	m.viewport.Height = vpHeight
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderConversation())
	m.viewport.GotoBottom()
}

func (m Model) renderConversation() string {
	var sections []string
	for _, e := range m.entries {
		label := theme.UserLabelStyle.Render("You")
		if e.fromBot {
			label = theme.BotLabelStyle.Render(m.bot.Name)
		}
		if e.chatID == GroupChatID {
			label += theme.ChatTypeStyle(string(chat.Group)).Render("group")
		}
		sections = append(sections, label, theme.MessageStyle.Render(renderHTML(e.text)))

		n := 0
		for _, row := range e.buttons {
			var cells []string
			for _, b := range row {
				n++
				cells = append(cells, fmt.Sprintf("#%d %s", n, b.Text))
			}
			sections = append(sections, theme.ButtonStyle.Render(strings.Join(cells, "   ")))
		}
		for _, row := range e.reply {
			sections = append(sections, theme.HelpStyle.Render("  keyboard: "+strings.Join(row, " | ")))
		}
		sections = append(sections, "")
	}
	return strings.Join(sections, "\n")
}

// View renders the console.
func (m Model) View() string {
	header := m.layout.RenderHeader(m.bot.Name+" console",
		theme.ChatTypeStyle(string(m.chatType())).Render(string(m.chatType())))

	status := m.help.ShortHelpView(m.keys.ShortHelp())
	if m.status != "" {
		status = m.status
		if m.failed {
			status = theme.ErrorStyle.Render(m.status)
		}
	}

	body := lipgloss.JoinVertical(lipgloss.Left, m.viewport.View(), m.input.View())
	if m.showHelp {
		body = m.help.FullHelpView(m.keys.FullHelp())
	}

	return m.layout.RenderWithFrame(
		header,
		theme.PanelStyle.Width(m.layout.ContentWidth()-2).Render(body),
		m.layout.RenderStatusBar(status),
	)
}
