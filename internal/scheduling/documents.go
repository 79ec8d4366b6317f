package scheduling

import (
	"context"

	"github.com/nhle/dojobot/internal/apperr"
	"github.com/nhle/dojobot/internal/model"
	"github.com/nhle/dojobot/internal/store"
)

// CheckAgendaTarget verifies an agenda can be stored for the meeting.
func (e *Engine) CheckAgendaTarget(ctx context.Context, meetingID string) (*model.Meeting, error) {
	m, err := e.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if m.HasStarted(e.now()) {
		return nil, apperr.Validation("meeting",
			"Your meeting is in the past, you can only store agenda for meetings that haven't started.")
	}
	return m, nil
}

// AttachAgenda stores docRef as the agenda of a meeting that has not
// started. An active reminder in chatID is re-derived so the start ping
// carries the new agenda.
func (e *Engine) AttachAgenda(ctx context.Context, meetingID string, chatID int64, docRef string) (*model.Meeting, error) {
	if _, err := e.CheckAgendaTarget(ctx, meetingID); err != nil {
		return nil, err
	}
	m, err := e.store.UpdateMeeting(ctx, meetingID, store.MeetingPatch{AgendaRef: &docRef})
	if err != nil {
		return nil, err
	}
	if m.HasReminder {
		if err := e.rederive(ctx, *m, chatID); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// AttachNotes stores docRef as the notes of a meeting.
func (e *Engine) AttachNotes(ctx context.Context, meetingID string, docRef string) (*model.Meeting, error) {
	return e.store.UpdateMeeting(ctx, meetingID, store.MeetingPatch{NotesRef: &docRef})
}
