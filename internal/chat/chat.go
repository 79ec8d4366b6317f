// Package chat defines the transport-neutral view of the messaging platform
// used by the dispatcher and the notification sweep.
package chat

import "context"

// Type is the kind of chat a message arrived in.
type Type string

const (
	Private    Type = "private"
	Group      Type = "group"
	Supergroup Type = "supergroup"
)

// IsGroup reports whether t is a group chat.
func (t Type) IsGroup() bool {
	return t == Group || t == Supergroup
}

// User is a platform user.
type User struct {
	ID        int64
	FirstName string
	Username  string
	IsBot     bool
}

// Document is an uploaded file. FileID is the opaque handle used to send it
// again.
type Document struct {
	FileID   string
	FileName string
	MimeType string
}

// Voice is a recorded voice note.
type Voice struct {
	FileID   string
	Duration int
}

// Poll is a native poll.
type Poll struct {
	Question        string
	Options         []string
	Anonymous       bool
	MultipleAnswers bool
}

// Message is an inbound message.
type Message struct {
	ID       int
	ChatID   int64
	ChatType Type
	Title    string
	From     User
	Text     string
	Document *Document
	Voice    *Voice
	Poll     *Poll

	// ReplyToBot is set when the message replies to one sent by the bot.
	ReplyToBot bool

	// NewMembers lists users who just joined the chat.
	NewMembers []User

	// BotAdded is set when the bot itself was added to the chat.
	BotAdded bool
}

// Callback is a press of an inline button.
type Callback struct {
	ID        string
	From      User
	ChatID    int64
	ChatType  Type
	MessageID int
	Data      string
}

// Button is an inline button carrying callback data.
type Button struct {
	Text string
	Data string
}

// Keyboard is an inline keyboard, one slice per row.
type Keyboard [][]Button

// SendOptions controls how a message is rendered.
type SendOptions struct {
	HTML bool

	// Inline attaches an inline keyboard.
	Inline Keyboard

	// Reply shows a one-time reply keyboard with the given rows.
	Reply [][]string

	// RemoveReply hides a previously shown reply keyboard.
	RemoveReply bool

	// ForceReply asks the client to answer this message directly.
	ForceReply bool

	// PollButton shows a single reply button that opens the poll creator.
	PollButton string

	// ReplyTo quotes the given message.
	ReplyTo int
}

// Messenger sends messages to the platform. Failures are returned as
// apperr.ExternalServiceError, or apperr.UnauthorizedError when the platform
// refuses to deliver to the chat.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, opts SendOptions) (messageID int, err error)
	SendDocument(ctx context.Context, chatID int64, docRef, caption string) error
	EditMessage(ctx context.Context, chatID int64, messageID int, text string, opts SendOptions) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
	SendPoll(ctx context.Context, chatID int64, poll Poll) error
	ChatAdministrators(ctx context.Context, chatID int64) ([]User, error)
}

// FileFetcher downloads the content behind a file handle.
type FileFetcher interface {
	FetchFile(ctx context.Context, fileID string) ([]byte, error)
}

// Row builds a keyboard row.
func Row(buttons ...Button) []Button {
	return buttons
}
