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

// Suggestions is appended to the start ping when the team has suggestions
// enabled.
const Suggestions = "Here are some suggestions for your meeting:\n" +
	"1. Take notes and upload them after the meeting\n" +
	"2. Create and assign new tasks\n" +
	"3. Update details of discussed tasks\n" +
	"4. Schedule a follow-up meeting"

// reminderOffsets are the lead times of the upcoming-meeting pings.
var reminderOffsets = []time.Duration{12 * time.Hour, time.Hour}

// DeriveReminders returns the notifications for a meeting whose reminder
// was just switched on. Pings whose fire time is not after now are skipped.
func DeriveReminders(
	m model.Meeting,
	chatID int64,
	suggestions bool,
	now time.Time,
	loc *time.Location,
) []model.Notification {
	when := model.FormatDateTime(m.Start, loc)
	meetingID := m.ID

	var out []model.Notification
	for _, lead := range reminderOffsets {
		fireAt := m.Start.Add(-lead)
		if !fireAt.After(now) {
			continue
		}
		out = append(out, model.Notification{
			Kind:      model.NotificationMeeting,
			MeetingID: &meetingID,
			ChatID:    chatID,
			FireAt:    fireAt,
			Text: fmt.Sprintf(
				"Reminder: you have a meeting on <b>%s</b> for <b>%d mins</b> in %s.",
				when, m.DurationMinutes, humanLead(lead),
			),
		})
	}

	start := model.Notification{
		Kind:      model.NotificationMeeting,
		MeetingID: &meetingID,
		ChatID:    chatID,
		FireAt:    m.Start,
		Text:      fmt.Sprintf("Your meeting on <b>%s</b> is starting now.", when),
	}
	if suggestions {
		start.Text += "\n\n" + Suggestions
	}
	if m.AgendaRef != "" {
		start.DocRef = m.AgendaRef
		start.DocCaption = "Here's the agenda for the meeting."
	}
	if start.FireAt.After(now) {
		out = append(out, start)
	}

	if m.End().After(now) {
		out = append(out, model.Notification{
			Kind:      model.NotificationMeeting,
			MeetingID: &meetingID,
			ChatID:    chatID,
			FireAt:    m.End(),
			Text: fmt.Sprintf(
				"Your meeting on <b>%s</b> has ended. You can now upload the meeting notes.",
				when,
			),
		})
	}
	return out
}

func humanLead(d time.Duration) string {
	hours := int(d / time.Hour)
	if hours == 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", hours)
}

// SetReminder switches the reminder of a meeting on or off for chatID.
// Switching on derives the notifications; switching off retracts every
// pending notification of the meeting in that chat. Setting the current
// value again changes nothing. A meeting that has started cannot have its
// reminder switched on.
func (e *Engine) SetReminder(ctx context.Context, meetingID string, chatID int64, on bool) (*model.Meeting, error) {
	unlock := e.locks.Lock(keylock.ReminderKey(meetingID, chatID))
	defer unlock()

	m, err := e.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if m.HasReminder == on {
		return m, nil
	}
	if on && m.HasStarted(e.now()) {
		return nil, apperr.Validation("meeting", "Cannot set a reminder for a meeting in the past!")
	}

	if on {
		team, err := e.store.EnsureTeam(ctx, m.TeamID)
		if err != nil {
			return nil, err
		}
		ns := DeriveReminders(*m, chatID, team.SuggestionsEnabled, e.now(), e.loc)
		if err := e.store.CreateNotifications(ctx, ns); err != nil {
			return nil, fmt.Errorf("scheduling reminders: %w", err)
		}
	} else {
		if _, err := e.store.DeleteMeetingNotifications(ctx, meetingID, chatID); err != nil {
			return nil, fmt.Errorf("retracting reminders: %w", err)
		}
	}

	updated, err := e.store.UpdateMeeting(ctx, meetingID, store.MeetingPatch{HasReminder: &on})
	if err != nil {
		return nil, err
	}
	logging.LogEvent(e.log, "reminder_changed", logrus.Fields{
		"meeting_id": meetingID,
		"chat_id":    chatID,
		"on":         on,
	})
	return updated, nil
}

// ToggleReminder flips the reminder of a meeting.
func (e *Engine) ToggleReminder(ctx context.Context, meetingID string, chatID int64) (*model.Meeting, error) {
	m, err := e.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	return e.SetReminder(ctx, meetingID, chatID, !m.HasReminder)
}

// rederive replaces the pending notifications of a meeting with a fresh
// derivation, so later changes such as a new agenda reach the start ping.
func (e *Engine) rederive(ctx context.Context, m model.Meeting, chatID int64) error {
	unlock := e.locks.Lock(keylock.ReminderKey(m.ID, chatID))
	defer unlock()

	if _, err := e.store.DeleteMeetingNotifications(ctx, m.ID, chatID); err != nil {
		return fmt.Errorf("retracting reminders: %w", err)
	}
	team, err := e.store.EnsureTeam(ctx, m.TeamID)
	if err != nil {
		return err
	}
	ns := DeriveReminders(m, chatID, team.SuggestionsEnabled, e.now(), e.loc)
	return e.store.CreateNotifications(ctx, ns)
}

// retract deletes the pending notifications of a meeting in one chat.
func (e *Engine) retract(ctx context.Context, meetingID string, chatID int64) error {
	unlock := e.locks.Lock(keylock.ReminderKey(meetingID, chatID))
	defer unlock()

	if _, err := e.store.DeleteMeetingNotifications(ctx, meetingID, chatID); err != nil {
		return fmt.Errorf("retracting reminders: %w", err)
	}
	return nil
}
