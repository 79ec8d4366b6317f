package model

import (
	"fmt"
	"time"
)

// FeedbackType is a reaction a team member gives to a completed task.
type FeedbackType int

// Feedback reaction kinds.
const (
	FeedbackGreat FeedbackType = iota + 1
	FeedbackGood
	FeedbackOkay
	FeedbackPoor
)

// FeedbackTypes lists the reactions in display order.
var FeedbackTypes = []FeedbackType{FeedbackGreat, FeedbackGood, FeedbackOkay, FeedbackPoor}

// Label returns the button label of the reaction.
func (f FeedbackType) Label() string {
	switch f {
	case FeedbackGreat:
		return "🤩 Great"
	case FeedbackGood:
		return "🙂 Good"
	case FeedbackOkay:
		return "😐 Okay"
	case FeedbackPoor:
		return "🙁 Poor"
	default:
		return fmt.Sprintf("feedback(%d)", int(f))
	}
}

// Valid reports whether f is one of the known reactions.
func (f FeedbackType) Valid() bool {
	return f >= FeedbackGreat && f <= FeedbackPoor
}

// Feedback is a user's reaction to a task. There is at most one per
// (TaskID, UserID).
type Feedback struct {
	ID        string       `json:"id" db:"id"`
	TaskID    string       `json:"task_id" db:"task_id"`
	UserID    int64        `json:"user_id" db:"user_id"`
	Type      FeedbackType `json:"type" db:"feedback_type"`
	UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`
}

// FeedbackCount is the number of feedback rows of one type for a task.
type FeedbackCount struct {
	Type  FeedbackType `json:"type" db:"feedback_type"`
	Count int          `json:"count" db:"count"`
}
