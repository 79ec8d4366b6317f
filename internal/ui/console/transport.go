// Package console runs the dispatcher against a local terminal session
// instead of Telegram.
package console

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/dojobot/internal/chat"
)

// sentMsg is a message the bot posted.
type sentMsg struct {
	ChatID     int64
	MessageID  int
	Text       string
	Buttons    chat.Keyboard
	Reply      [][]string
	ForceReply bool
}

// editedMsg replaces the content of an earlier bot message.
type editedMsg struct {
	ChatID    int64
	MessageID int
	Text      string
	Buttons   chat.Keyboard
}

// documentMsg is a file the bot posted.
type documentMsg struct {
	ChatID  int64
	Ref     string
	Caption string
}

// pollMsg is a poll the bot posted.
type pollMsg struct {
	ChatID int64
	Poll   chat.Poll
}

// noticeMsg is a short callback answer shown in the status bar.
type noticeMsg struct {
	Text string
}

// Transport implements chat.Messenger by queueing every outbound call as a
// tea.Msg for the console model.
type Transport struct {
	mu     sync.Mutex
	nextID int
	user   chat.User
	events chan tea.Msg
}

var _ chat.Messenger = (*Transport)(nil)

// NewTransport creates a Transport for a session driven by user. The user
// is reported as the only administrator of every chat.
func NewTransport(user chat.User) *Transport {
	return &Transport{
		user:   user,
		events: make(chan tea.Msg, 256),
	}
}

// nextMessageID allocates an id shared by inbound and outbound messages.
func (t *Transport) nextMessageID() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	return t.nextID
}

func (t *Transport) emit(ctx context.Context, msg tea.Msg) error {
	select {
	case t.events <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendText queues a bot message and returns its id.
func (t *Transport) SendText(ctx context.Context, chatID int64, text string, opts chat.SendOptions) (int, error) {
	id := t.nextMessageID()
	reply := opts.Reply
	if opts.PollButton != "" {
		reply = [][]string{{opts.PollButton}}
	}
	err := t.emit(ctx, sentMsg{
		ChatID:     chatID,
		MessageID:  id,
		Text:       text,
		Buttons:    opts.Inline,
		Reply:      reply,
		ForceReply: opts.ForceReply,
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// SendDocument queues a document.
func (t *Transport) SendDocument(ctx context.Context, chatID int64, docRef, caption string) error {
	return t.emit(ctx, documentMsg{ChatID: chatID, Ref: docRef, Caption: caption})
}

// EditMessage queues a replacement for an earlier message.
func (t *Transport) EditMessage(ctx context.Context, chatID int64, messageID int, text string, opts chat.SendOptions) error {
	return t.emit(ctx, editedMsg{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
		Buttons:   opts.Inline,
	})
}

// AnswerCallback shows text in the status bar. Empty answers are dropped.
func (t *Transport) AnswerCallback(ctx context.Context, _ string, text string) error {
	if text == "" {
		return nil
	}
	return t.emit(ctx, noticeMsg{Text: text})
}

// SendPoll queues a poll.
func (t *Transport) SendPoll(ctx context.Context, chatID int64, poll chat.Poll) error {
	return t.emit(ctx, pollMsg{ChatID: chatID, Poll: poll})
}

// ChatAdministrators reports the console user.
func (t *Transport) ChatAdministrators(context.Context, int64) ([]chat.User, error) {
	return []chat.User{t.user}, nil
}

// waitForEvent returns a command that blocks until the next outbound call.
func (t *Transport) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return <-t.events
	}
}
