package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/dojobot/internal/apperr"
	"github.com/nhle/dojobot/internal/keylock"
	"github.com/nhle/dojobot/internal/logging"
	"github.com/nhle/dojobot/internal/model"
	"github.com/nhle/dojobot/internal/store"
)

// CheckConflict returns the first meeting of the team overlapping
// [start, start+duration), or nil. Every meeting of the team is compared,
// past ones included. A start before now is rejected before comparing.
func (e *Engine) CheckConflict(
	ctx context.Context,
	teamID int64,
	start time.Time,
	durationMinutes int,
) (*model.Meeting, error) {
	if durationMinutes <= 0 {
		return nil, apperr.Validation("duration", "meeting duration must be positive")
	}
	if start.Before(e.now()) {
		return nil, apperr.Validation("start", "Can't schedule a meeting in the past")
	}

	meetings, err := e.store.GetMeetings(ctx, store.MeetingFilter{TeamID: teamID})
	if err != nil {
		return nil, fmt.Errorf("loading meetings: %w", err)
	}
	for i := range meetings {
		if meetings[i].Overlaps(start, durationMinutes) {
			return &meetings[i], nil
		}
	}
	return nil, nil
}

// ScheduleMeeting creates a meeting after a conflict check. An overlapping
// meeting yields a ConflictError and nothing is written. When reminder is
// true the reminder is switched on in the team chat; if that fails the
// saved meeting is returned together with the error.
func (e *Engine) ScheduleMeeting(
	ctx context.Context,
	teamID int64,
	start time.Time,
	durationMinutes int,
	reminder bool,
) (*model.Meeting, error) {
	if _, err := e.store.EnsureTeam(ctx, teamID); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(keylock.TeamKey(teamID))
	conflict, err := e.CheckConflict(ctx, teamID, start, durationMinutes)
	if err != nil {
		unlock()
		return nil, err
	}
	if conflict != nil {
		unlock()
		return nil, &apperr.ConflictError{
			MeetingID:       conflict.ID,
			Start:           conflict.Start,
			DurationMinutes: conflict.DurationMinutes,
		}
	}
	m, err := e.store.CreateMeeting(ctx, model.Meeting{
		TeamID:          teamID,
		Start:           start.UTC(),
		DurationMinutes: durationMinutes,
	})
	unlock()
	if err != nil {
		return nil, err
	}

	logging.LogEvent(e.log, "meeting_scheduled", logrus.Fields{
		"meeting_id": m.ID,
		"team_id":    teamID,
	})

	if reminder {
		withReminder, err := e.SetReminder(ctx, m.ID, teamID, true)
		if err != nil {
			return m, fmt.Errorf("meeting %s scheduled without reminder: %w", m.ID, err)
		}
		return withReminder, nil
	}
	return m, nil
}

// CancelMeeting deletes a meeting that has not started and retracts every
// pending notification tied to it.
func (e *Engine) CancelMeeting(ctx context.Context, meetingID string) error {
	m, err := e.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return err
	}
	if m.HasStarted(e.now()) {
		return apperr.Validation("meeting", "Cannot cancel a meeting in the past!")
	}

	pending, err := e.store.GetNotifications(ctx, store.NotificationFilter{MeetingID: &meetingID})
	if err != nil {
		return fmt.Errorf("loading notifications: %w", err)
	}
	chats := map[int64]bool{m.TeamID: true}
	for _, n := range pending {
		chats[n.ChatID] = true
	}
	for chatID := range chats {
		if err := e.retract(ctx, meetingID, chatID); err != nil {
			return err
		}
	}

	if err := e.store.DeleteMeeting(ctx, meetingID); err != nil {
		return err
	}
	logging.LogEvent(e.log, "meeting_cancelled", logrus.Fields{"meeting_id": meetingID})
	return nil
}

// UpcomingMeetings lists the team's meetings starting after now.
func (e *Engine) UpcomingMeetings(ctx context.Context, teamID int64) ([]model.Meeting, error) {
	now := e.now()
	return e.store.GetMeetings(ctx, store.MeetingFilter{TeamID: teamID, After: &now})
}

// MeetingsWith lists the team's meetings with (or without) an agenda or
// notes document. Nil filters are ignored.
func (e *Engine) MeetingsWith(ctx context.Context, teamID int64, hasAgenda, hasNotes *bool) ([]model.Meeting, error) {
	return e.store.GetMeetings(ctx, store.MeetingFilter{
		TeamID:    teamID,
		HasAgenda: hasAgenda,
		HasNotes:  hasNotes,
	})
}

// AllMeetings lists every meeting of the team.
func (e *Engine) AllMeetings(ctx context.Context, teamID int64) ([]model.Meeting, error) {
	return e.store.GetMeetings(ctx, store.MeetingFilter{TeamID: teamID})
}

// FindMeeting returns the team's meeting starting exactly at start.
func (e *Engine) FindMeeting(ctx context.Context, teamID int64, start time.Time) (*model.Meeting, error) {
	return e.store.GetMeetingByTime(ctx, teamID, start)
}

// Meeting retrieves a meeting by ID.
func (e *Engine) Meeting(ctx context.Context, id string) (*model.Meeting, error) {
	return e.store.GetMeeting(ctx, id)
}
