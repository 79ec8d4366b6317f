package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nhle/dojobot/internal/apperr"
	"github.com/nhle/dojobot/internal/chat"
	"github.com/nhle/dojobot/internal/intent"
	"github.com/nhle/dojobot/internal/model"
)

func (d *Dispatcher) scheduleMeeting(ctx context.Context, t turn, p intent.Params) error {
	reminder := p.Reminder != nil && *p.Reminder
	m, err := d.engine.ScheduleMeeting(ctx, t.chatID, *p.Start, *p.DurationMinutes, reminder)
	if c, ok := apperr.AsConflict(err); ok {
		return d.reply(ctx, t.chatID, fmt.Sprintf(
			"Can't schedule this meeting, time conflicting with meeting at <b>%s</b> lasting for <b>%d mins</b>.",
			d.formatTime(c.Start), c.DurationMinutes))
	}
	if msg, ok := userMessage(err); ok {
		return d.reply(ctx, t.chatID, msg)
	}
	if m == nil {
		return err
	}

	if err := d.reply(ctx, t.chatID, fmt.Sprintf(
		"Your meeting has been scheduled on <b>%s</b> for <b>%d mins</b>.",
		d.formatTime(m.Start), m.DurationMinutes)); err != nil {
		return err
	}

	switch {
	case err != nil:
		d.log.WithError(err).WithField("meeting_id", m.ID).Warn("Meeting scheduled without its reminder")
		return d.reply(ctx, t.chatID, "I couldn't set the reminder, you can turn it on from the reminder menu.")
	case reminder:
		return d.reply(ctx, t.chatID, "A reminder has been set.")
	case p.Reminder != nil:
		return nil
	}

	if err := d.tracker.SetPendingMeeting(ctx, t.key, m.ID); err != nil {
		return err
	}
	_, err = d.replyWith(ctx, t.chatID, "Do you want to set a reminder for this meeting?",
		chat.SendOptions{Reply: [][]string{{"Yes", "No"}}})
	return err
}

// pendingReminder answers the yes/no question asked after scheduling.
func (d *Dispatcher) pendingReminder(ctx context.Context, t turn, on bool) error {
	meetingID, err := d.tracker.TakePendingMeeting(ctx, t.key)
	if err != nil {
		return err
	}
	if meetingID == "" {
		return nil
	}

	if !on {
		_, err := d.replyWith(ctx, t.chatID, "Let me know if you'll like to set a reminder later.",
			chat.SendOptions{RemoveReply: true})
		return err
	}

	_, err = d.engine.SetReminder(ctx, meetingID, t.chatID, true)
	if apperr.IsNotFound(err) {
		return d.reply(ctx, t.chatID, textInvalidMeet)
	}
	if msg, ok := userMessage(err); ok {
		_, err := d.replyWith(ctx, t.chatID, msg, chat.SendOptions{RemoveReply: true})
		return err
	}
	if err != nil {
		return err
	}
	_, err = d.replyWith(ctx, t.chatID, "A reminder has been set.", chat.SendOptions{RemoveReply: true})
	return err
}

func (d *Dispatcher) listMeetings(ctx context.Context, t turn, heading string) error {
	meetings, err := d.engine.UpcomingMeetings(ctx, t.chatID)
	if err != nil {
		return err
	}
	if len(meetings) == 0 {
		return d.reply(ctx, t.chatID, "There's no upcoming meetings")
	}

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	for i, m := range meetings {
		fmt.Fprintf(&b, "\n%d: %s for %d mins", i+1, d.formatTime(m.Start), m.DurationMinutes)
	}
	return d.reply(ctx, t.chatID, b.String())
}

// meetingAt resolves the team's meeting at start, answering the user when
// there is none.
func (d *Dispatcher) meetingAt(ctx context.Context, t turn, start time.Time) (*model.Meeting, error) {
	m, err := d.engine.FindMeeting(ctx, t.chatID, start)
	if apperr.IsNotFound(err) {
		return nil, d.reply(ctx, t.chatID, textNoMeetingAt)
	}
	return m, err
}

// meetingKeyboard lists meetings as one button per row.
func (d *Dispatcher) meetingKeyboard(meetings []model.Meeting, code string) chat.Keyboard {
	kb := make(chat.Keyboard, 0, len(meetings)+1)
	for _, m := range meetings {
		kb = append(kb, chat.Row(chat.Button{
			Text: d.formatTime(m.Start),
			Data: encodeAction(code, m.ID),
		}))
	}
	return kb
}

// === Reminder toggle ===

func (d *Dispatcher) changeReminder(ctx context.Context, t turn, start *time.Time) error {
	if start == nil {
		kb, err := d.reminderKeyboard(ctx, t)
		if err != nil {
			return err
		}
		_, err = d.replyWith(ctx, t.chatID, "Choose the meeting:", chat.SendOptions{Inline: kb})
		return err
	}

	m, err := d.meetingAt(ctx, t, *start)
	if m == nil || err != nil {
		return err
	}
	text, kb := reminderState(*m, false)
	_, err = d.replyWith(ctx, t.chatID, text, chat.SendOptions{Inline: kb})
	return err
}

func (d *Dispatcher) reminderKeyboard(ctx context.Context, t turn) (chat.Keyboard, error) {
	meetings, err := d.engine.UpcomingMeetings(ctx, t.chatID)
	if err != nil {
		return nil, err
	}
	kb := d.meetingKeyboard(meetings, actReminderShow)
	return append(kb, chat.Row(chat.Button{Text: "Cancel", Data: encodeAction(actMenuClose)})), nil
}

func (d *Dispatcher) reminderMenu(ctx context.Context, t turn, msgID int) error {
	kb, err := d.reminderKeyboard(ctx, t)
	if err != nil {
		return err
	}
	return d.editWith(ctx, t.chatID, msgID, "Choose the meeting:", kb)
}

func (d *Dispatcher) showReminder(ctx context.Context, t turn, msgID int, meetingID string, withBack bool) error {
	m, err := d.engine.Meeting(ctx, meetingID)
	if apperr.IsNotFound(err) {
		return d.edit(ctx, t.chatID, msgID, textInvalidMeet)
	}
	if err != nil {
		return err
	}
	text, kb := reminderState(*m, withBack)
	return d.editWith(ctx, t.chatID, msgID, text, kb)
}

func reminderState(m model.Meeting, withBack bool) (string, chat.Keyboard) {
	status, label := "off", "Turn on"
	if m.HasReminder {
		status, label = "on", "Turn off"
	}
	row := []chat.Button{{Text: label, Data: encodeAction(actReminderToggle, m.ID)}}
	if withBack {
		row = append([]chat.Button{{Text: "Go back", Data: encodeAction(actReminderMenu)}}, row...)
	}
	return fmt.Sprintf("Reminder is currently <b>turned %s</b>", status), chat.Keyboard{row}
}

func (d *Dispatcher) toggleReminder(ctx context.Context, t turn, msgID int, meetingID string) error {
	m, err := d.engine.ToggleReminder(ctx, meetingID, t.chatID)
	if apperr.IsNotFound(err) {
		return d.edit(ctx, t.chatID, msgID, textInvalidMeet)
	}
	if msg, ok := userMessage(err); ok {
		return d.edit(ctx, t.chatID, msgID, msg)
	}
	if err != nil {
		return err
	}
	if m.HasReminder {
		return d.edit(ctx, t.chatID, msgID, "You've turned on the reminder!")
	}
	return d.edit(ctx, t.chatID, msgID, "You've turned off the reminder!")
}

// === Cancellation ===

func (d *Dispatcher) cancelMeeting(ctx context.Context, t turn, start *time.Time) error {
	if start != nil {
		m, err := d.meetingAt(ctx, t, *start)
		if m == nil || err != nil {
			return err
		}
		if m.HasStarted(d.engine.Now()) {
			return d.reply(ctx, t.chatID, "Cannot cancel a meeting in the past!")
		}
		text, kb := d.cancelPrompt(*m)
		_, err = d.replyWith(ctx, t.chatID, text, chat.SendOptions{Inline: kb})
		return err
	}

	meetings, err := d.engine.UpcomingMeetings(ctx, t.chatID)
	if err != nil {
		return err
	}
	if len(meetings) == 0 {
		return d.reply(ctx, t.chatID, "No scheduled meetings.")
	}
	kb := d.meetingKeyboard(meetings, actCancelAsk)
	kb = append(kb, chat.Row(chat.Button{Text: "Cancel", Data: encodeAction(actMenuClose)}))
	_, err = d.replyWith(ctx, t.chatID, "Choose the meeting to cancel:", chat.SendOptions{Inline: kb})
	return err
}

func (d *Dispatcher) cancelPrompt(m model.Meeting) (string, chat.Keyboard) {
	return fmt.Sprintf("Are you sure you want to cancel the meeting at <b>%s</b>", d.formatTime(m.Start)),
		chat.Keyboard{chat.Row(
			chat.Button{Text: "Yes", Data: encodeAction(actCancelConfirm, m.ID)},
			chat.Button{Text: "No", Data: encodeAction(actMenuClose)},
		)}
}

func (d *Dispatcher) confirmCancel(ctx context.Context, t turn, msgID int, meetingID string) error {
	m, err := d.engine.Meeting(ctx, meetingID)
	if apperr.IsNotFound(err) {
		return d.edit(ctx, t.chatID, msgID, textInvalidMeet)
	}
	if err != nil {
		return err
	}
	text, kb := d.cancelPrompt(*m)
	return d.editWith(ctx, t.chatID, msgID, text, kb)
}

func (d *Dispatcher) doCancel(ctx context.Context, t turn, msgID int, meetingID string) error {
	m, err := d.engine.Meeting(ctx, meetingID)
	if apperr.IsNotFound(err) {
		return d.edit(ctx, t.chatID, msgID, textInvalidMeet)
	}
	if err != nil {
		return err
	}

	err = d.engine.CancelMeeting(ctx, meetingID)
	if msg, ok := userMessage(err); ok {
		return d.edit(ctx, t.chatID, msgID, msg)
	}
	if apperr.IsNotFound(err) {
		return d.edit(ctx, t.chatID, msgID, textInvalidMeet)
	}
	if err != nil {
		return err
	}
	return d.edit(ctx, t.chatID, msgID,
		fmt.Sprintf("You've canceled the meeting on <b>%s</b>", d.formatTime(m.Start)))
}
