// Package dispatch routes inbound chat events to the scheduling engine and
// renders the replies.
//
// A text message is routed, in order, by the sender's awaiting state, then
// by its classified intent. Inline button presses carry an action code and
// are routed by that code. The dispatcher never checks conflicts or writes
// to the store itself; the engine does.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/dojobot/internal/apperr"
	"github.com/nhle/dojobot/internal/chat"
	"github.com/nhle/dojobot/internal/intent"
	"github.com/nhle/dojobot/internal/logging"
	"github.com/nhle/dojobot/internal/model"
	"github.com/nhle/dojobot/internal/scheduling"
	"github.com/nhle/dojobot/internal/session"
)

// handleTimeout bounds the work done for one inbound event.
const handleTimeout = 60 * time.Second

const (
	textWhatElse     = "What else can I do for you?"
	textNoMeetingAt  = "No meeting found with the given date and time. Please try again."
	textInvalidMeet  = "The meeting is invalid. Please try again."
	textDraftExpired = "This menu has expired, please start again."
)

// Identity describes the bot account.
type Identity struct {
	ID       int64
	Name     string // display name, e.g. "Dojo Bot"
	Username string // without the leading @
}

// Dispatcher handles inbound messages and button presses.
type Dispatcher struct {
	engine     *scheduling.Engine
	normalizer *intent.Normalizer
	tracker    *session.Tracker
	messenger  chat.Messenger
	files      chat.FileFetcher
	bot        Identity
	log        logrus.FieldLogger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithFiles sets the fetcher used to download voice messages.
func WithFiles(f chat.FileFetcher) Option {
	return func(d *Dispatcher) { d.files = f }
}

// WithIdentity sets the bot account.
func WithIdentity(id Identity) Option {
	return func(d *Dispatcher) { d.bot = id }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(d *Dispatcher) { d.log = logging.Component(log, "dispatch") }
}

// New creates a Dispatcher.
func New(
	engine *scheduling.Engine,
	normalizer *intent.Normalizer,
	tracker *session.Tracker,
	messenger chat.Messenger,
	opts ...Option,
) *Dispatcher {
	d := &Dispatcher{
		engine:     engine,
		normalizer: normalizer,
		tracker:    tracker,
		messenger:  messenger,
		bot:        Identity{Name: "Dojo Bot"},
		log:        logging.Component(logging.Discard(), "dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetIdentity replaces the bot account once the transport has resolved it.
func (d *Dispatcher) SetIdentity(id Identity) {
	d.bot = id
}

// turn is the context of one inbound event.
type turn struct {
	chatID   int64
	chatType chat.Type
	user     chat.User
	key      session.Key
}

func newTurn(chatID int64, chatType chat.Type, user chat.User) turn {
	return turn{
		chatID:   chatID,
		chatType: chatType,
		user:     user,
		key:      session.Key{ChatID: chatID, UserID: user.ID},
	}
}

// HandleMessage processes one inbound message. Errors returned are
// failures of an external collaborator or the store; user mistakes are
// answered in chat and return nil.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg chat.Message) error {
	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	t := newTurn(msg.ChatID, msg.ChatType, msg.From)

	switch {
	case msg.BotAdded || len(msg.NewMembers) > 0:
		return d.greet(ctx, t, msg)
	case msg.From.IsBot:
		return nil
	}

	if err := d.register(ctx, t); err != nil {
		return err
	}

	switch {
	case msg.Poll != nil:
		return d.handlePoll(ctx, t, *msg.Poll)
	case isCommand(msg.Text):
		return d.handleCommand(ctx, t, msg.Text)
	case msg.Voice != nil:
		return d.handleVoice(ctx, t, msg)
	case msg.Document != nil:
		return d.handleDocument(ctx, t, *msg.Document)
	}

	if !d.shouldRespond(msg) {
		return nil
	}
	return d.handleText(ctx, t, d.stripMention(msg.Text))
}

// register records the sender as a team member so later feedback and
// assignment can refer to them.
func (d *Dispatcher) register(ctx context.Context, t turn) error {
	return d.engine.RegisterMember(ctx, t.chatID, toUser(t.user))
}

// shouldRespond implements the group activation rule: always answer in
// private, and in groups only when addressed with @username or in reply
// to the bot.
func (d *Dispatcher) shouldRespond(msg chat.Message) bool {
	if !msg.ChatType.IsGroup() {
		return true
	}
	if msg.ReplyToBot {
		return true
	}
	return d.bot.Username != "" && strings.HasPrefix(msg.Text, "@"+d.bot.Username)
}

func (d *Dispatcher) stripMention(text string) string {
	if d.bot.Username == "" {
		return strings.TrimSpace(text)
	}
	text, _ = strings.CutPrefix(text, "@"+d.bot.Username)
	return strings.TrimSpace(text)
}

func (d *Dispatcher) handleText(ctx context.Context, t turn, text string) error {
	s, err := d.tracker.Get(ctx, t.key)
	if err != nil {
		return err
	}
	if s.State.Awaiting != session.AwaitingNone {
		return d.handleAwaiting(ctx, t, s, text)
	}

	res, err := d.normalizer.Normalize(ctx, sessionID(t), intent.Query{Text: text})
	if errors.Is(err, intent.ErrNoInput) {
		return nil
	}
	if err != nil {
		return err
	}
	return d.route(ctx, t, res)
}

func (d *Dispatcher) handleVoice(ctx context.Context, t turn, msg chat.Message) error {
	if d.files == nil {
		return nil
	}
	audio, err := d.files.FetchFile(ctx, msg.Voice.FileID)
	if err != nil {
		return fmt.Errorf("downloading voice message: %w", err)
	}
	res, err := d.normalizer.Normalize(ctx, sessionID(t), intent.Query{Audio: audio})
	if errors.Is(err, intent.ErrNoInput) {
		return nil
	}
	if err != nil {
		return err
	}
	if msg.ChatType.IsGroup() && !res.IsMentioned && !msg.ReplyToBot {
		return nil
	}
	return d.route(ctx, t, res)
}

// handleAwaiting routes free text by the sender's pending input.
func (d *Dispatcher) handleAwaiting(ctx context.Context, t turn, s session.Session, text string) error {
	switch s.State.Awaiting {
	case session.AwaitingTaskName:
		return d.setDraftText(ctx, t, fieldName, text)
	case session.AwaitingTaskSummary:
		return d.setDraftText(ctx, t, fieldSummary, text)
	case session.AwaitingTaskDueDate:
		return d.setDraftDueDate(ctx, t, text)
	case session.AwaitingAgendaFile, session.AwaitingNotesFile:
		return d.awaitingFileText(ctx, t, s.State, text)
	case session.AwaitingAgendaReplaceConfirm, session.AwaitingNotesReplaceConfirm:
		return d.awaitingReplaceText(ctx, t, s.State, text)
	}
	return d.tracker.ClearAwaiting(ctx, t.key)
}

// route dispatches a classified intent.
func (d *Dispatcher) route(ctx context.Context, t turn, res *intent.Result) error {
	d.log.WithFields(logrus.Fields{
		"chat_id": t.chatID,
		"intent":  res.Name,
		"params":  res.AllParamsPresent,
	}).Debug("routing intent")

	switch res.Kind {
	case intent.KindScheduleMeeting:
		if !res.AllParamsPresent {
			return d.reply(ctx, t.chatID, res.FulfillmentText)
		}
		return d.scheduleMeeting(ctx, t, res.Params)
	case intent.KindMeetingReminder:
		return d.pendingReminder(ctx, t, true)
	case intent.KindMeetingNoReminder:
		return d.pendingReminder(ctx, t, false)
	case intent.KindListMeetings:
		return d.listMeetings(ctx, t, res.FulfillmentText)
	case intent.KindChangeReminder:
		return d.changeReminder(ctx, t, res.Params.Start)
	case intent.KindCancelMeeting:
		return d.cancelMeeting(ctx, t, res.Params.Start)
	case intent.KindStoreAgenda:
		return d.storeDocument(ctx, t, agendaDoc, res.Params.Start)
	case intent.KindGetAgenda:
		return d.getDocument(ctx, t, agendaDoc, res.Params.Start)
	case intent.KindStoreNotes:
		return d.storeDocument(ctx, t, notesDoc, res.Params.Start)
	case intent.KindGetNotes:
		return d.getDocument(ctx, t, notesDoc, res.Params.Start)
	case intent.KindCreateTask:
		return d.createTask(ctx, t)
	case intent.KindUpdateTask:
		return d.updateTaskMenu(ctx, t)
	case intent.KindListTasks:
		return d.listTasks(ctx, t, false)
	case intent.KindListMyTasks:
		return d.listTasks(ctx, t, true)
	case intent.KindAssignTask:
		return d.assignTaskMenu(ctx, t)
	case intent.KindVote:
		return d.vote(ctx, t)
	default:
		if res.FulfillmentText == "" {
			return nil
		}
		return d.reply(ctx, t.chatID, res.FulfillmentText)
	}
}

// HandleCallback processes one inline button press.
func (d *Dispatcher) HandleCallback(ctx context.Context, cb chat.Callback) error {
	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	t := newTurn(cb.ChatID, cb.ChatType, cb.From)
	answer := ""
	defer func() {
		if err := d.messenger.AnswerCallback(ctx, cb.ID, answer); err != nil {
			logging.LogError(d.log, "answer_callback_failed", err, nil)
		}
	}()

	act, err := decodeAction(cb.Data)
	if err != nil {
		d.log.WithField("data", cb.Data).Warn("ignoring malformed callback")
		return nil
	}
	if err := d.register(ctx, t); err != nil {
		return err
	}

	msgID := cb.MessageID
	switch act.Code {
	case actMenuClose:
		return d.edit(ctx, t.chatID, msgID, textWhatElse)

	case actReminderMenu:
		return d.reminderMenu(ctx, t, msgID)
	case actReminderShow:
		return d.showReminder(ctx, t, msgID, act.Arg(0), true)
	case actReminderToggle:
		return d.toggleReminder(ctx, t, msgID, act.Arg(0))

	case actCancelAsk:
		return d.confirmCancel(ctx, t, msgID, act.Arg(0))
	case actCancelConfirm:
		return d.doCancel(ctx, t, msgID, act.Arg(0))

	case actAgendaSelect:
		return d.selectDocTarget(ctx, t, msgID, agendaDoc, act.Arg(0))
	case actAgendaReplace:
		return d.confirmReplace(ctx, t, msgID, agendaDoc, act.Arg(0))
	case actAgendaKeep:
		return d.keepDocument(ctx, t, msgID, agendaDoc)
	case actAgendaGet:
		return d.sendDocumentFor(ctx, t, msgID, agendaDoc, act.Arg(0))
	case actNotesSelect:
		return d.selectDocTarget(ctx, t, msgID, notesDoc, act.Arg(0))
	case actNotesReplace:
		return d.confirmReplace(ctx, t, msgID, notesDoc, act.Arg(0))
	case actNotesKeep:
		return d.keepDocument(ctx, t, msgID, notesDoc)
	case actNotesGet:
		return d.sendDocumentFor(ctx, t, msgID, notesDoc, act.Arg(0))

	case actTaskField:
		answer, err = d.chooseTaskField(ctx, t, msgID, act.Arg(0))
		return err
	case actTaskStatus:
		answer, err = d.setDraftStatus(ctx, t, msgID, act.Arg(0))
		return err
	case actTaskAssignee:
		answer, err = d.setDraftAssignee(ctx, t, msgID, act.Arg(0))
		return err
	case actTaskSave:
		answer, err = d.saveDraft(ctx, t, msgID)
		return err
	case actTaskDiscard:
		return d.discardDraft(ctx, t, msgID)
	case actTaskEdit:
		answer, err = d.editTask(ctx, t, msgID, act.Arg(0))
		return err
	case actAssignPick:
		return d.assignPickUser(ctx, t, msgID, act.Arg(0))
	case actAssignUser:
		return d.assignTask(ctx, t, msgID, act.Arg(0), act.Arg(1))
	case actFeedback:
		answer, err = d.feedback(ctx, t, msgID, act.Arg(0), act.Arg(1))
		return err
	}

	d.log.WithField("code", act.Code).Warn("unknown callback action")
	return nil
}

// reply sends an HTML message to chatID.
func (d *Dispatcher) reply(ctx context.Context, chatID int64, text string) error {
	_, err := d.messenger.SendText(ctx, chatID, text, chat.SendOptions{HTML: true})
	return err
}

func (d *Dispatcher) replyWith(ctx context.Context, chatID int64, text string, opts chat.SendOptions) (int, error) {
	opts.HTML = true
	return d.messenger.SendText(ctx, chatID, text, opts)
}

func (d *Dispatcher) edit(ctx context.Context, chatID int64, messageID int, text string) error {
	return d.editWith(ctx, chatID, messageID, text, nil)
}

func (d *Dispatcher) editWith(ctx context.Context, chatID int64, messageID int, text string, kb chat.Keyboard) error {
	return d.messenger.EditMessage(ctx, chatID, messageID, text, chat.SendOptions{HTML: true, Inline: kb})
}

// userMessage returns the text a user-correctable error should be
// answered with, or false when err must propagate.
func userMessage(err error) (string, bool) {
	if v, ok := apperr.AsValidation(err); ok {
		return v.Message, true
	}
	return "", false
}

func (d *Dispatcher) formatTime(t time.Time) string {
	return model.FormatDateTime(t, d.engine.Location())
}

func sessionID(t turn) string {
	return fmt.Sprintf("%d-%d", t.chatID, t.user.ID)
}

func toUser(u chat.User) model.User {
	return model.User{ID: u.ID, FirstName: u.FirstName, Username: u.Username}
}

func escape(s string) string {
	return html.EscapeString(s)
}
