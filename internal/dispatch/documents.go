package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nhle/dojobot/internal/apperr"
	"github.com/nhle/dojobot/internal/chat"
	"github.com/nhle/dojobot/internal/model"
	"github.com/nhle/dojobot/internal/session"
)

// docKind describes one of the two documents a meeting can hold.
type docKind struct {
	name        string // "agenda" or "notes"
	awaitFile   session.Awaiting
	awaitSwap   session.Awaiting
	selectCode  string
	replaceCode string
	keepCode    string
	getCode     string
}

var (
	agendaDoc = docKind{
		name:        "agenda",
		awaitFile:   session.AwaitingAgendaFile,
		awaitSwap:   session.AwaitingAgendaReplaceConfirm,
		selectCode:  actAgendaSelect,
		replaceCode: actAgendaReplace,
		keepCode:    actAgendaKeep,
		getCode:     actAgendaGet,
	}
	notesDoc = docKind{
		name:        "notes",
		awaitFile:   session.AwaitingNotesFile,
		awaitSwap:   session.AwaitingNotesReplaceConfirm,
		selectCode:  actNotesSelect,
		replaceCode: actNotesReplace,
		keepCode:    actNotesKeep,
		getCode:     actNotesGet,
	}
)

func docKindFor(a session.Awaiting) docKind {
	switch a {
	case session.AwaitingAgendaFile, session.AwaitingAgendaReplaceConfirm:
		return agendaDoc
	}
	return notesDoc
}

func (k docKind) ref(m model.Meeting) string {
	if k == agendaDoc {
		return m.AgendaRef
	}
	return m.NotesRef
}

func (k docKind) askFile() string {
	return fmt.Sprintf("Please send me the meeting %s file.", k.name)
}

func (k docKind) replacePrompt() string {
	return fmt.Sprintf("A meeting %s file already exists for this meeting, do you want to replace it?", k.name)
}

func (k docKind) replaceKeyboard(meetingID string) chat.Keyboard {
	return chat.Keyboard{chat.Row(
		chat.Button{Text: "Yes", Data: encodeAction(k.replaceCode, meetingID)},
		chat.Button{Text: "No", Data: encodeAction(k.keepCode)},
	)}
}

// === Store ===

func (d *Dispatcher) storeDocument(ctx context.Context, t turn, k docKind, start *time.Time) error {
	if start == nil {
		return d.storeDocumentMenu(ctx, t, k)
	}

	m, err := d.meetingAt(ctx, t, *start)
	if m == nil || err != nil {
		return err
	}
	text, kb, err := d.prepareStore(ctx, t, k, *m)
	if err != nil {
		return err
	}
	_, err = d.replyWith(ctx, t.chatID, text, chat.SendOptions{Inline: kb})
	return err
}

func (d *Dispatcher) storeDocumentMenu(ctx context.Context, t turn, k docKind) error {
	var meetings []model.Meeting
	var err error
	if k == agendaDoc {
		meetings, err = d.engine.UpcomingMeetings(ctx, t.chatID)
	} else {
		meetings, err = d.engine.AllMeetings(ctx, t.chatID)
	}
	if err != nil {
		return err
	}
	if len(meetings) == 0 {
		if k == agendaDoc {
			return d.reply(ctx, t.chatID,
				"You haven't scheduled any meetings or your scheduled meetings have passed.")
		}
		return d.reply(ctx, t.chatID, "No scheduled meetings.")
	}

	_, err = d.replyWith(ctx, t.chatID,
		fmt.Sprintf("Please select the meeting that you'll like to store the %s.", k.name),
		chat.SendOptions{Inline: d.meetingKeyboard(meetings, k.selectCode)})
	return err
}

// prepareStore moves the sender into the file or replace confirmation
// state for m and returns the prompt to show.
func (d *Dispatcher) prepareStore(ctx context.Context, t turn, k docKind, m model.Meeting) (string, chat.Keyboard, error) {
	if k == agendaDoc {
		_, err := d.engine.CheckAgendaTarget(ctx, m.ID)
		if msg, ok := userMessage(err); ok {
			return msg, nil, nil
		}
		if err != nil {
			return "", nil, err
		}
	}

	if k.ref(m) != "" {
		if err := d.tracker.Await(ctx, t.key, k.awaitSwap, m.ID); err != nil {
			return "", nil, err
		}
		return k.replacePrompt(), k.replaceKeyboard(m.ID), nil
	}
	if err := d.tracker.Await(ctx, t.key, k.awaitFile, m.ID); err != nil {
		return "", nil, err
	}
	return k.askFile(), nil, nil
}

func (d *Dispatcher) selectDocTarget(ctx context.Context, t turn, msgID int, k docKind, meetingID string) error {
	m, err := d.engine.Meeting(ctx, meetingID)
	if apperr.IsNotFound(err) {
		return d.edit(ctx, t.chatID, msgID, textInvalidMeet)
	}
	if err != nil {
		return err
	}
	text, kb, err := d.prepareStore(ctx, t, k, *m)
	if err != nil {
		return err
	}
	return d.editWith(ctx, t.chatID, msgID, text, kb)
}

func (d *Dispatcher) confirmReplace(ctx context.Context, t turn, msgID int, k docKind, meetingID string) error {
	if _, err := d.engine.Meeting(ctx, meetingID); apperr.IsNotFound(err) {
		if err := d.tracker.ClearAwaiting(ctx, t.key); err != nil {
			return err
		}
		return d.edit(ctx, t.chatID, msgID, textInvalidMeet)
	} else if err != nil {
		return err
	}
	if err := d.tracker.Await(ctx, t.key, k.awaitFile, meetingID); err != nil {
		return err
	}
	return d.edit(ctx, t.chatID, msgID, k.askFile())
}

func (d *Dispatcher) keepDocument(ctx context.Context, t turn, msgID int, k docKind) error {
	if err := d.tracker.ClearAwaiting(ctx, t.key); err != nil {
		return err
	}
	return d.edit(ctx, t.chatID, msgID, fmt.Sprintf("Cancelled for storing meeting %s", k.name))
}

// awaitingReplaceText accepts a typed yes/no to the replace question.
func (d *Dispatcher) awaitingReplaceText(ctx context.Context, t turn, st session.State, text string) error {
	k := docKindFor(st.Awaiting)
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "yes", "y":
		if err := d.tracker.Await(ctx, t.key, k.awaitFile, st.MeetingID); err != nil {
			return err
		}
		return d.reply(ctx, t.chatID, k.askFile())
	case "no", "n", "cancel":
		if err := d.tracker.ClearAwaiting(ctx, t.key); err != nil {
			return err
		}
		return d.reply(ctx, t.chatID, fmt.Sprintf("Cancelled for storing meeting %s", k.name))
	}
	_, err := d.replyWith(ctx, t.chatID, k.replacePrompt(),
		chat.SendOptions{Inline: k.replaceKeyboard(st.MeetingID)})
	return err
}

// awaitingFileText answers text sent while a document is expected.
func (d *Dispatcher) awaitingFileText(ctx context.Context, t turn, st session.State, text string) error {
	k := docKindFor(st.Awaiting)
	if strings.EqualFold(strings.TrimSpace(text), "cancel") {
		if err := d.tracker.ClearAwaiting(ctx, t.key); err != nil {
			return err
		}
		return d.reply(ctx, t.chatID, fmt.Sprintf("Cancelled for storing meeting %s", k.name))
	}
	return d.reply(ctx, t.chatID, k.askFile()+` Type "cancel" to stop.`)
}

// handleDocument stores an uploaded file when the sender is expected to
// send one. Other uploads are ignored.
func (d *Dispatcher) handleDocument(ctx context.Context, t turn, doc chat.Document) error {
	s, err := d.tracker.Get(ctx, t.key)
	if err != nil {
		return err
	}
	a := s.State.Awaiting
	if a != session.AwaitingAgendaFile && a != session.AwaitingNotesFile {
		return nil
	}
	k := docKindFor(a)

	var m *model.Meeting
	if k == agendaDoc {
		m, err = d.engine.AttachAgenda(ctx, s.State.MeetingID, t.chatID, doc.FileID)
	} else {
		m, err = d.engine.AttachNotes(ctx, s.State.MeetingID, doc.FileID)
	}

	msg, userErr := userMessage(err)
	switch {
	case userErr:
	case apperr.IsNotFound(err):
		msg = textInvalidMeet
	case err != nil:
		return err
	default:
		msg = fmt.Sprintf("<b>%s</b> has been stored as the %s for the meeting on <b>%s</b>",
			escape(doc.FileName), k.name, d.formatTime(m.Start))
	}

	if err := d.tracker.ClearAwaiting(ctx, t.key); err != nil {
		return err
	}
	return d.reply(ctx, t.chatID, msg)
}

// === Retrieve ===

func (d *Dispatcher) getDocument(ctx context.Context, t turn, k docKind, start *time.Time) error {
	if start != nil {
		m, err := d.meetingAt(ctx, t, *start)
		if m == nil || err != nil {
			return err
		}
		ref := k.ref(*m)
		if ref == "" {
			return d.reply(ctx, t.chatID, fmt.Sprintf("No meeting %s found for the meeting.", k.name))
		}
		return d.messenger.SendDocument(ctx, t.chatID, ref, fmt.Sprintf("Here's your meeting %s.", k.name))
	}

	yes := true
	var meetings []model.Meeting
	var err error
	if k == agendaDoc {
		meetings, err = d.engine.MeetingsWith(ctx, t.chatID, &yes, nil)
	} else {
		meetings, err = d.engine.MeetingsWith(ctx, t.chatID, nil, &yes)
	}
	if err != nil {
		return err
	}
	if len(meetings) == 0 {
		return d.reply(ctx, t.chatID, fmt.Sprintf("No meeting %s found.", k.name))
	}
	_, err = d.replyWith(ctx, t.chatID,
		fmt.Sprintf("Please select the meeting that you'll like to retrieve the %s.", k.name),
		chat.SendOptions{Inline: d.meetingKeyboard(meetings, k.getCode)})
	return err
}

func (d *Dispatcher) sendDocumentFor(ctx context.Context, t turn, msgID int, k docKind, meetingID string) error {
	m, err := d.engine.Meeting(ctx, meetingID)
	if apperr.IsNotFound(err) {
		return d.edit(ctx, t.chatID, msgID, textInvalidMeet)
	}
	if err != nil {
		return err
	}
	ref := k.ref(*m)
	if ref == "" {
		return d.edit(ctx, t.chatID, msgID, fmt.Sprintf("There's no meeting %s found for this meeting.", k.name))
	}
	if err := d.edit(ctx, t.chatID, msgID, fmt.Sprintf("Please see below for your meeting %s.", k.name)); err != nil {
		return err
	}
	return d.messenger.SendDocument(ctx, t.chatID, ref, "")
}
