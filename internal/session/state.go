// Package session tracks the per (chat, user) conversation state: what the
// bot expects next from the user, the task draft being edited and the
// meeting a follow-up action applies to.
package session

import (
	"encoding/json"
	"fmt"

	"github.com/nhle/dojobot/internal/model"
)

// Awaiting is the single kind of free-text or file input a session expects
// next. The zero value means nothing is expected.
type Awaiting int

const (
	AwaitingNone Awaiting = iota
	AwaitingTaskName
	AwaitingTaskSummary
	AwaitingTaskDueDate
	AwaitingAgendaFile
	AwaitingNotesFile
	AwaitingAgendaReplaceConfirm
	AwaitingNotesReplaceConfirm
)

var awaitingNames = map[Awaiting]string{
	AwaitingNone:                 "none",
	AwaitingTaskName:             "task_name",
	AwaitingTaskSummary:          "task_summary",
	AwaitingTaskDueDate:          "task_due_date",
	AwaitingAgendaFile:           "agenda_file",
	AwaitingNotesFile:            "notes_file",
	AwaitingAgendaReplaceConfirm: "agenda_replace_confirm",
	AwaitingNotesReplaceConfirm:  "notes_replace_confirm",
}

func (a Awaiting) String() string {
	if name, ok := awaitingNames[a]; ok {
		return name
	}
	return fmt.Sprintf("awaiting(%d)", int(a))
}

// Valid reports whether a is a known state.
func (a Awaiting) Valid() bool {
	_, ok := awaitingNames[a]
	return ok
}

// TaskField reports whether a expects a field of the task draft.
func (a Awaiting) TaskField() bool {
	return a == AwaitingTaskName || a == AwaitingTaskSummary || a == AwaitingTaskDueDate
}

// NeedsMeeting reports whether a carries a target meeting.
func (a Awaiting) NeedsMeeting() bool {
	switch a {
	case AwaitingAgendaFile, AwaitingNotesFile,
		AwaitingAgendaReplaceConfirm, AwaitingNotesReplaceConfirm:
		return true
	}
	return false
}

// MarshalText encodes the state by name so stored sessions survive
// reordering of the constants.
func (a Awaiting) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("unknown awaiting state %d", int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText decodes a state name.
func (a *Awaiting) UnmarshalText(b []byte) error {
	for k, name := range awaitingNames {
		if name == string(b) {
			*a = k
			return nil
		}
	}
	return fmt.Errorf("unknown awaiting state %q", string(b))
}

// State is the tagged awaiting value. MeetingID is set only for states that
// target a meeting.
type State struct {
	Awaiting  Awaiting `json:"awaiting"`
	MeetingID string   `json:"meeting_id,omitempty"`
}

// Session is everything the bot remembers about one (chat, user) pair
// between updates.
type Session struct {
	State State `json:"state"`

	// Draft is the task being edited through the fields menu.
	Draft *model.Task `json:"draft,omitempty"`

	// MenuMessageID is the message holding the draft's fields menu.
	MenuMessageID int `json:"menu_message_id,omitempty"`

	// PendingMeetingID is the meeting a follow-up action applies to right
	// after scheduling.
	PendingMeetingID string `json:"pending_meeting_id,omitempty"`

	// PollChatID is the group a poll created in a private chat is posted to.
	PollChatID int64 `json:"poll_chat_id,omitempty"`
}

// Empty reports whether the session holds nothing worth storing.
func (s Session) Empty() bool {
	return s.State.Awaiting == AwaitingNone &&
		s.Draft == nil &&
		s.PendingMeetingID == "" &&
		s.PollChatID == 0
}

// Key identifies a session.
type Key struct {
	ChatID int64
	UserID int64
}

func (k Key) String() string {
	return fmt.Sprintf("%d:%d", k.ChatID, k.UserID)
}

func encode(s Session) ([]byte, error) {
	return json.Marshal(s)
}

func decode(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &s, nil
}
