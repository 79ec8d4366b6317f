package testutil

import (
	"context"
	"sync"

	"github.com/nhle/dojobot/internal/chat"
)

// Sent records one outbound call made through a Messenger.
type Sent struct {
	Kind      string // text, document, edit, answer, poll
	ChatID    int64
	MessageID int
	Text      string
	DocRef    string
	Options   chat.SendOptions
	Poll      *chat.Poll
}

// Messenger is an in-memory chat.Messenger that records every call.
type Messenger struct {
	mu     sync.Mutex
	sent   []Sent
	nextID int

	// Admins is returned by ChatAdministrators.
	Admins []chat.User

	// FailChats makes sends to these chats fail with the mapped error.
	FailChats map[int64]error
}

// NewMessenger creates an empty recording messenger.
func NewMessenger() *Messenger {
	return &Messenger{nextID: 100, FailChats: make(map[int64]error)}
}

func (m *Messenger) record(s Sent) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.FailChats[s.ChatID]; ok && s.Kind != "answer" {
		return 0, err
	}
	if s.Kind == "text" {
		m.nextID++
		s.MessageID = m.nextID
	}
	m.sent = append(m.sent, s)
	return s.MessageID, nil
}

func (m *Messenger) SendText(_ context.Context, chatID int64, text string, opts chat.SendOptions) (int, error) {
	return m.record(Sent{Kind: "text", ChatID: chatID, Text: text, Options: opts})
}

func (m *Messenger) SendDocument(_ context.Context, chatID int64, docRef, caption string) error {
	_, err := m.record(Sent{Kind: "document", ChatID: chatID, DocRef: docRef, Text: caption})
	return err
}

func (m *Messenger) EditMessage(_ context.Context, chatID int64, messageID int, text string, opts chat.SendOptions) error {
	_, err := m.record(Sent{Kind: "edit", ChatID: chatID, MessageID: messageID, Text: text, Options: opts})
	return err
}

func (m *Messenger) AnswerCallback(_ context.Context, _ string, text string) error {
	_, err := m.record(Sent{Kind: "answer", Text: text})
	return err
}

func (m *Messenger) SendPoll(_ context.Context, chatID int64, poll chat.Poll) error {
	_, err := m.record(Sent{Kind: "poll", ChatID: chatID, Text: poll.Question, Poll: &poll})
	return err
}

func (m *Messenger) ChatAdministrators(_ context.Context, _ int64) ([]chat.User, error) {
	return m.Admins, nil
}

// Sent returns a copy of every recorded call.
func (m *Messenger) Sent() []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Sent, len(m.sent))
	copy(out, m.sent)
	return out
}

// Last returns the most recent call of kind, or a zero Sent.
func (m *Messenger) Last(kind string) Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].Kind == kind {
			return m.sent[i]
		}
	}
	return Sent{}
}

// Reset forgets recorded calls.
func (m *Messenger) Reset() {
	m.mu.Lock()
	m.sent = nil
	m.mu.Unlock()
}
