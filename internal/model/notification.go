package model

import "time"

// NotificationKind classifies a scheduled notification.
type NotificationKind int

// NotificationMeeting is the only kind currently produced.
const NotificationMeeting NotificationKind = 0

// Notification is a one-shot message delivered to a chat at FireAt.
type Notification struct {
	// ID is the unique identifier for this notification.
	ID string `json:"id" db:"id"`

	// Kind identifies what produced the notification.
	Kind NotificationKind `json:"kind" db:"kind"`

	// MeetingID links the notification to its meeting, if any.
	MeetingID *string `json:"meeting_id,omitempty" db:"meeting_id"`

	// ChatID is the destination chat.
	ChatID int64 `json:"chat_id" db:"chat_id"`

	// FireAt is the instant the notification becomes due.
	FireAt time.Time `json:"fire_at" db:"fire_at"`

	// Text is the HTML message body.
	Text string `json:"text" db:"text"`

	// DocRef is an optional document handle sent after the text.
	DocRef string `json:"doc_ref,omitempty" db:"doc_ref"`

	// DocCaption is the caption attached to DocRef.
	DocCaption string `json:"doc_caption,omitempty" db:"doc_caption"`
}
