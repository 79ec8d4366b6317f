package session

import (
	"context"
	"fmt"

	"github.com/nhle/dojobot/internal/apperr"
	"github.com/nhle/dojobot/internal/keylock"
	"github.com/nhle/dojobot/internal/model"
)

// Tracker applies state transitions to sessions. Every transition is a
// single load-modify-save under a per-session lock, so a session never
// holds a half applied change.
type Tracker struct {
	store Store
	locks *keylock.Map
}

// NewTracker creates a tracker over store.
func NewTracker(store Store) *Tracker {
	return &Tracker{store: store, locks: keylock.New()}
}

// Get returns the current session. A missing session is the zero value.
func (t *Tracker) Get(ctx context.Context, key Key) (Session, error) {
	s, err := t.store.Load(ctx, key)
	if err != nil {
		return Session{}, err
	}
	if s == nil {
		return Session{}, nil
	}
	return *s, nil
}

// update runs fn on the stored session and writes the result back. Empty
// sessions are deleted instead of saved.
func (t *Tracker) update(ctx context.Context, key Key, fn func(*Session) error) (Session, error) {
	unlock := t.locks.Lock(keylock.SessionKey(key.ChatID, key.UserID))
	defer unlock()

	current, err := t.store.Load(ctx, key)
	if err != nil {
		return Session{}, err
	}
	var s Session
	if current != nil {
		s = *current
	}

	if err := fn(&s); err != nil {
		return Session{}, err
	}

	if s.Empty() {
		if current == nil {
			return s, nil
		}
		return s, t.store.Delete(ctx, key)
	}
	return s, t.store.Save(ctx, key, s)
}

// StartDraft replaces any draft with draft and clears the awaiting state.
func (t *Tracker) StartDraft(ctx context.Context, key Key, draft model.Task) (Session, error) {
	return t.update(ctx, key, func(s *Session) error {
		s.Draft = &draft
		s.MenuMessageID = 0
		s.State = State{}
		return nil
	})
}

// SetMenuMessage records the message showing the draft's fields menu.
func (t *Tracker) SetMenuMessage(ctx context.Context, key Key, messageID int) error {
	_, err := t.update(ctx, key, func(s *Session) error {
		if s.Draft == nil {
			return apperr.NotFound("draft", key.String())
		}
		s.MenuMessageID = messageID
		return nil
	})
	return err
}

// Await sets the single expected input, replacing whatever was expected
// before. Task field states require a draft; file and confirmation states
// require a meeting.
func (t *Tracker) Await(ctx context.Context, key Key, a Awaiting, meetingID string) error {
	if !a.Valid() {
		return fmt.Errorf("unknown awaiting state %d", int(a))
	}
	if a.NeedsMeeting() && meetingID == "" {
		return apperr.Validation("meeting", "%s requires a meeting", a)
	}
	_, err := t.update(ctx, key, func(s *Session) error {
		if a.TaskField() && s.Draft == nil {
			return apperr.NotFound("draft", key.String())
		}
		s.State = State{Awaiting: a}
		if a.NeedsMeeting() {
			s.State.MeetingID = meetingID
		}
		return nil
	})
	return err
}

// ClearAwaiting resets the expected input to none.
func (t *Tracker) ClearAwaiting(ctx context.Context, key Key) error {
	_, err := t.update(ctx, key, func(s *Session) error {
		s.State = State{}
		return nil
	})
	return err
}

// Draft returns a copy of the current draft or a NotFoundError.
func (t *Tracker) Draft(ctx context.Context, key Key) (model.Task, error) {
	s, err := t.Get(ctx, key)
	if err != nil {
		return model.Task{}, err
	}
	if s.Draft == nil {
		return model.Task{}, apperr.NotFound("draft", key.String())
	}
	return *s.Draft, nil
}

// UpdateDraft applies fn to the draft and returns to the fields menu by
// clearing the awaiting state. A ValidationError from fn leaves the session
// untouched so the user can retry.
func (t *Tracker) UpdateDraft(ctx context.Context, key Key, fn func(*model.Task) error) (model.Task, error) {
	s, err := t.update(ctx, key, func(s *Session) error {
		if s.Draft == nil {
			return apperr.NotFound("draft", key.String())
		}
		draft := *s.Draft
		if err := fn(&draft); err != nil {
			return err
		}
		s.Draft = &draft
		if s.State.Awaiting.TaskField() {
			s.State = State{}
		}
		return nil
	})
	if err != nil {
		return model.Task{}, err
	}
	return *s.Draft, nil
}

// DiscardDraft drops the draft together with its awaiting state and menu in
// one write.
func (t *Tracker) DiscardDraft(ctx context.Context, key Key) error {
	_, err := t.update(ctx, key, func(s *Session) error {
		s.Draft = nil
		s.MenuMessageID = 0
		if s.State.Awaiting.TaskField() {
			s.State = State{}
		}
		return nil
	})
	return err
}

// SetPendingMeeting remembers the meeting a follow-up action applies to.
func (t *Tracker) SetPendingMeeting(ctx context.Context, key Key, meetingID string) error {
	_, err := t.update(ctx, key, func(s *Session) error {
		s.PendingMeetingID = meetingID
		return nil
	})
	return err
}

// TakePendingMeeting returns and clears the pending meeting.
func (t *Tracker) TakePendingMeeting(ctx context.Context, key Key) (string, error) {
	var id string
	_, err := t.update(ctx, key, func(s *Session) error {
		id = s.PendingMeetingID
		s.PendingMeetingID = ""
		return nil
	})
	return id, err
}

// SetPollTarget remembers the group a poll created in private goes to.
func (t *Tracker) SetPollTarget(ctx context.Context, key Key, chatID int64) error {
	_, err := t.update(ctx, key, func(s *Session) error {
		s.PollChatID = chatID
		return nil
	})
	return err
}

// TakePollTarget returns and clears the poll target. Zero means none.
func (t *Tracker) TakePollTarget(ctx context.Context, key Key) (int64, error) {
	var chatID int64
	_, err := t.update(ctx, key, func(s *Session) error {
		chatID = s.PollChatID
		s.PollChatID = 0
		return nil
	})
	return chatID, err
}

// Reset forgets the whole session.
func (t *Tracker) Reset(ctx context.Context, key Key) error {
	unlock := t.locks.Lock(keylock.SessionKey(key.ChatID, key.UserID))
	defer unlock()
	return t.store.Delete(ctx, key)
}
