package telegram

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/dojobot/internal/chat"
	"github.com/nhle/dojobot/internal/logging"
)

// pollBackoff is the pause after a failed getUpdates call.
const pollBackoff = 2 * time.Second

// Handler consumes converted chat events.
type Handler interface {
	HandleMessage(ctx context.Context, msg chat.Message) error
	HandleCallback(ctx context.Context, cb chat.Callback) error
}

// Bot feeds Bot API updates to a Handler, either from a long-poll loop or
// from webhook deliveries.
type Bot struct {
	client      *Client
	handler     Handler
	pollTimeout time.Duration
	log         logrus.FieldLogger

	mu   sync.RWMutex
	self User
}

// NewBot creates a bot polling with client.
func NewBot(client *Client, handler Handler, pollTimeout time.Duration, log logrus.FieldLogger) *Bot {
	if log == nil {
		log = logging.Discard()
	}
	return &Bot{
		client:      client,
		handler:     handler,
		pollTimeout: pollTimeout,
		log:         logging.Component(log, "telegram"),
	}
}

// Identify fetches the bot's own account. Replies to the bot and the bot
// joining a group are recognised by this id.
func (b *Bot) Identify(ctx context.Context) (chat.User, error) {
	me, err := b.client.GetMe(ctx)
	if err != nil {
		return chat.User{}, fmt.Errorf("identifying bot: %w", err)
	}
	b.mu.Lock()
	b.self = *me
	b.mu.Unlock()
	return toUser(*me), nil
}

func (b *Bot) selfID() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.self.ID
}

// Run long-polls until ctx is cancelled. Updates are handled one at a time
// so events of a chat keep their order.
func (b *Bot) Run(ctx context.Context) error {
	offset := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		updates, err := b.client.GetUpdates(ctx, offset, b.pollTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return ctx.Err()
			}
			logging.LogError(b.log, "get_updates_failed", err, nil)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pollBackoff):
			}
			continue
		}
		for _, upd := range updates {
			offset = upd.UpdateID + 1
			if err := b.HandleUpdate(ctx, upd); err != nil {
				logging.LogError(b.log, "handle_update_failed", err, logrus.Fields{"update_id": upd.UpdateID})
			}
		}
	}
}

// HandleUpdate converts one update and passes it to the handler. Updates
// carrying nothing the bot reacts to are dropped.
func (b *Bot) HandleUpdate(ctx context.Context, upd Update) error {
	switch {
	case upd.CallbackQuery != nil:
		cb, ok := toCallback(upd.CallbackQuery)
		if !ok {
			return nil
		}
		return b.handler.HandleCallback(ctx, cb)
	case upd.Message != nil:
		msg, ok := b.toMessage(upd.Message)
		if !ok {
			return nil
		}
		return b.handler.HandleMessage(ctx, msg)
	}
	return nil
}

func (b *Bot) toMessage(m *Message) (chat.Message, bool) {
	if m.From == nil {
		return chat.Message{}, false
	}
	self := b.selfID()

	msg := chat.Message{
		ID:       m.MessageID,
		ChatID:   m.Chat.ID,
		ChatType: chat.Type(m.Chat.Type),
		Title:    m.Chat.Title,
		From:     toUser(*m.From),
		Text:     m.Text,
		BotAdded: m.GroupCreated || m.SupergroupMade,
	}
	if msg.Text == "" {
		msg.Text = m.Caption
	}
	if r := m.ReplyToMessage; r != nil && r.From != nil && self != 0 && r.From.ID == self {
		msg.ReplyToBot = true
	}
	for _, u := range m.NewChatMembers {
		if self != 0 && u.ID == self {
			msg.BotAdded = true
			continue
		}
		msg.NewMembers = append(msg.NewMembers, toUser(u))
	}
	if d := m.Document; d != nil {
		msg.Document = &chat.Document{FileID: d.FileID, FileName: d.FileName, MimeType: d.MimeType}
	}
	if v := m.Voice; v != nil {
		msg.Voice = &chat.Voice{FileID: v.FileID, Duration: v.Duration}
	}
	if p := m.Poll; p != nil {
		options := make([]string, 0, len(p.Options))
		for _, o := range p.Options {
			options = append(options, o.Text)
		}
		msg.Poll = &chat.Poll{
			Question:        p.Question,
			Options:         options,
			Anonymous:       p.IsAnonymous,
			MultipleAnswers: p.AllowsMultipleAnswers,
		}
	}
	return msg, true
}

func toCallback(q *CallbackQuery) (chat.Callback, bool) {
	// Presses on inline-mode messages carry no message and are not ours.
	if q.Message == nil {
		return chat.Callback{}, false
	}
	return chat.Callback{
		ID:        q.ID,
		From:      toUser(q.From),
		ChatID:    q.Message.Chat.ID,
		ChatType:  chat.Type(q.Message.Chat.Type),
		MessageID: q.Message.MessageID,
		Data:      q.Data,
	}, true
}
