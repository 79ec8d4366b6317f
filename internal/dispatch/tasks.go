package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nhle/dojobot/internal/apperr"
	"github.com/nhle/dojobot/internal/chat"
	"github.com/nhle/dojobot/internal/intent"
	"github.com/nhle/dojobot/internal/model"
	"github.com/nhle/dojobot/internal/scheduling"
	"github.com/nhle/dojobot/internal/session"
)

// === Draft fields menu ===

func (d *Dispatcher) createTask(ctx context.Context, t turn) error {
	if _, err := d.tracker.StartDraft(ctx, t.key, model.NewDraftTask(t.chatID)); err != nil {
		return err
	}
	return d.sendDraftMenu(ctx, t)
}

// sendDraftMenu posts a fresh fields menu for the current draft and
// remembers it.
func (d *Dispatcher) sendDraftMenu(ctx context.Context, t turn) error {
	draft, err := d.tracker.Draft(ctx, t.key)
	if err != nil {
		return err
	}
	text, kb := d.draftMenu(ctx, draft)
	msgID, err := d.replyWith(ctx, t.chatID, text, chat.SendOptions{Inline: kb})
	if err != nil {
		return err
	}
	return d.tracker.SetMenuMessage(ctx, t.key, msgID)
}

// showDraftMenu redraws the fields menu in place.
func (d *Dispatcher) showDraftMenu(ctx context.Context, t turn, msgID int, draft model.Task) error {
	text, kb := d.draftMenu(ctx, draft)
	if err := d.editWith(ctx, t.chatID, msgID, text, kb); err != nil {
		return err
	}
	return d.tracker.SetMenuMessage(ctx, t.key, msgID)
}

func (d *Dispatcher) draftMenu(ctx context.Context, task model.Task) (string, chat.Keyboard) {
	var b strings.Builder
	if task.IsDraft() {
		b.WriteString("<b>New task</b>\n")
	} else {
		b.WriteString("<b>Edit task</b>\n")
	}
	b.WriteString(d.describeTask(ctx, task))
	b.WriteString("\n\nChoose a field to edit, then press Done.")

	btn := func(text, field string) chat.Button {
		return chat.Button{Text: text, Data: encodeAction(actTaskField, field)}
	}
	kb := chat.Keyboard{
		chat.Row(btn("Name", fieldName), btn("Summary", fieldSummary)),
		chat.Row(btn("Due Date", fieldDueDate), btn("Status", fieldStatus)),
		chat.Row(btn("Assignee", fieldAssignee)),
		chat.Row(
			chat.Button{Text: "Done", Data: encodeAction(actTaskSave)},
			chat.Button{Text: "Cancel", Data: encodeAction(actTaskDiscard)},
		),
	}
	return b.String(), kb
}

func (d *Dispatcher) describeTask(ctx context.Context, task model.Task) string {
	name := "-"
	if task.Name != "" {
		name = escape(task.Name)
	}
	summary := "-"
	if task.Summary != "" {
		summary = escape(task.Summary)
	}
	due := "-"
	if task.DueDate != nil {
		due = model.FormatDate(*task.DueDate, d.engine.Location())
	}
	return fmt.Sprintf("Name: %s\nSummary: %s\nStatus: %s\nDue date: %s\nAssignee: %s",
		name, summary, task.Status, due, escape(d.assigneeName(ctx, task.AssigneeID)))
}

func (d *Dispatcher) assigneeName(ctx context.Context, id *int64) string {
	if id == nil {
		return "-"
	}
	u, err := d.engine.User(ctx, *id)
	if err != nil {
		return strconv.FormatInt(*id, 10)
	}
	return u.DisplayName()
}

// chooseTaskField handles a press on one of the menu's field buttons. The
// returned string is shown as the callback answer.
func (d *Dispatcher) chooseTaskField(ctx context.Context, t turn, msgID int, field string) (string, error) {
	var awaiting session.Awaiting
	var prompt string
	switch field {
	case fieldName:
		awaiting, prompt = session.AwaitingTaskName, "Please send me the task name."
	case fieldSummary:
		awaiting, prompt = session.AwaitingTaskSummary, "Please send me the task summary."
	case fieldDueDate:
		awaiting, prompt = session.AwaitingTaskDueDate, "When is the task due?"
	case fieldStatus:
		return d.showStatusChoices(ctx, t, msgID)
	case fieldAssignee:
		return d.showAssigneeChoices(ctx, t, msgID)
	default:
		return "", nil
	}

	err := d.tracker.Await(ctx, t.key, awaiting, "")
	if apperr.IsNotFound(err) {
		return textDraftExpired, nil
	}
	if err != nil {
		return "", err
	}
	_, err = d.replyWith(ctx, t.chatID, prompt, chat.SendOptions{ForceReply: true})
	return "", err
}

func (d *Dispatcher) showStatusChoices(ctx context.Context, t turn, msgID int) (string, error) {
	if _, err := d.tracker.Draft(ctx, t.key); apperr.IsNotFound(err) {
		return textDraftExpired, nil
	} else if err != nil {
		return "", err
	}
	row := make([]chat.Button, 0, len(model.TaskStatuses))
	for _, st := range model.TaskStatuses {
		row = append(row, chat.Button{Text: string(st), Data: encodeAction(actTaskStatus, string(st))})
	}
	return "", d.editWith(ctx, t.chatID, msgID, "Choose the task status:", chat.Keyboard{row})
}

func (d *Dispatcher) showAssigneeChoices(ctx context.Context, t turn, msgID int) (string, error) {
	if _, err := d.tracker.Draft(ctx, t.key); apperr.IsNotFound(err) {
		return textDraftExpired, nil
	} else if err != nil {
		return "", err
	}
	kb, err := d.memberKeyboard(ctx, t.chatID, func(userID string) string {
		return encodeAction(actTaskAssignee, userID)
	})
	if err != nil {
		return "", err
	}
	return "", d.editWith(ctx, t.chatID, msgID, "Choose who the task is assigned to:", kb)
}

// memberKeyboard lists the team's members plus an unassigned choice.
func (d *Dispatcher) memberKeyboard(ctx context.Context, teamID int64, data func(userID string) string) (chat.Keyboard, error) {
	members, err := d.engine.Members(ctx, teamID)
	if err != nil {
		return nil, err
	}
	kb := make(chat.Keyboard, 0, len(members)+1)
	for _, m := range members {
		kb = append(kb, chat.Row(chat.Button{
			Text: m.DisplayName(),
			Data: data(strconv.FormatInt(m.ID, 10)),
		}))
	}
	return append(kb, chat.Row(chat.Button{Text: "Unassigned", Data: data(noAssignee)})), nil
}

func (d *Dispatcher) setDraftStatus(ctx context.Context, t turn, msgID int, value string) (string, error) {
	status, err := model.ParseTaskStatus(value)
	if err != nil {
		return "", nil
	}
	draft, err := d.tracker.UpdateDraft(ctx, t.key, func(task *model.Task) error {
		task.Status = status
		return nil
	})
	if apperr.IsNotFound(err) {
		return textDraftExpired, nil
	}
	if err != nil {
		return "", err
	}
	return "", d.showDraftMenu(ctx, t, msgID, draft)
}

func (d *Dispatcher) setDraftAssignee(ctx context.Context, t turn, msgID int, value string) (string, error) {
	assignee, err := parseAssignee(value)
	if err != nil {
		return "", nil
	}
	draft, err := d.tracker.UpdateDraft(ctx, t.key, func(task *model.Task) error {
		task.AssigneeID = assignee
		return nil
	})
	if apperr.IsNotFound(err) {
		return textDraftExpired, nil
	}
	if err != nil {
		return "", err
	}
	return "", d.showDraftMenu(ctx, t, msgID, draft)
}

func parseAssignee(value string) (*int64, error) {
	if value == noAssignee {
		return nil, nil
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing assignee %q: %w", value, err)
	}
	return &id, nil
}

// setDraftText stores typed text into the draft field and shows the menu
// again.
func (d *Dispatcher) setDraftText(ctx context.Context, t turn, field, text string) error {
	_, err := d.tracker.UpdateDraft(ctx, t.key, func(task *model.Task) error {
		if field == fieldName {
			task.Name = text
		} else {
			task.Summary = text
		}
		return nil
	})
	if apperr.IsNotFound(err) {
		if err := d.tracker.ClearAwaiting(ctx, t.key); err != nil {
			return err
		}
		return d.reply(ctx, t.chatID, textDraftExpired)
	}
	if err != nil {
		return err
	}
	return d.sendDraftMenu(ctx, t)
}

func (d *Dispatcher) setDraftDueDate(ctx context.Context, t turn, text string) error {
	res, err := d.normalizer.Normalize(ctx, sessionID(t), intent.Query{Text: text})
	if err != nil && !errors.Is(err, intent.ErrNoInput) {
		return err
	}
	if res == nil || res.Kind != intent.KindDate || res.Params.Date == nil {
		return d.reply(ctx, t.chatID, "Invalid due date, please try again.")
	}
	due := *res.Params.Date

	_, err = d.tracker.UpdateDraft(ctx, t.key, func(task *model.Task) error {
		if err := d.engine.ValidateDueDate(due); err != nil {
			return err
		}
		task.DueDate = &due
		return nil
	})
	if msg, ok := userMessage(err); ok {
		return d.reply(ctx, t.chatID, msg)
	}
	if err != nil {
		return err
	}
	return d.sendDraftMenu(ctx, t)
}

func (d *Dispatcher) saveDraft(ctx context.Context, t turn, msgID int) (string, error) {
	draft, err := d.tracker.Draft(ctx, t.key)
	if apperr.IsNotFound(err) {
		return textDraftExpired, nil
	}
	if err != nil {
		return "", err
	}

	out, err := d.engine.SaveTask(ctx, draft)
	if msg, ok := userMessage(err); ok {
		return msg, nil
	}
	if apperr.IsNotFound(err) {
		if err := d.tracker.DiscardDraft(ctx, t.key); err != nil {
			return "", err
		}
		return "", d.edit(ctx, t.chatID, msgID, "This task no longer exists.")
	}
	if err != nil {
		return "", err
	}

	if err := d.tracker.DiscardDraft(ctx, t.key); err != nil {
		return "", err
	}
	verb := "updated"
	if draft.IsDraft() {
		verb = "created"
	}
	text := fmt.Sprintf("Task <b>%s</b> has been %s.\n\n%s", escape(out.Task.Name), verb, d.describeTask(ctx, out.Task))
	if err := d.edit(ctx, t.chatID, msgID, text); err != nil {
		return "", err
	}
	return "", d.announceCompletion(ctx, out)
}

func (d *Dispatcher) discardDraft(ctx context.Context, t turn, msgID int) error {
	if err := d.tracker.DiscardDraft(ctx, t.key); err != nil {
		return err
	}
	return d.edit(ctx, t.chatID, msgID, textWhatElse)
}

// === Existing tasks ===

func (d *Dispatcher) taskKeyboard(tasks []model.Task, code string) chat.Keyboard {
	kb := make(chat.Keyboard, 0, len(tasks)+1)
	for _, task := range tasks {
		kb = append(kb, chat.Row(chat.Button{
			Text: fmt.Sprintf("%s (%s)", task.Name, task.Status),
			Data: encodeAction(code, task.ID),
		}))
	}
	return append(kb, chat.Row(chat.Button{Text: "Cancel", Data: encodeAction(actMenuClose)}))
}

func (d *Dispatcher) updateTaskMenu(ctx context.Context, t turn) error {
	tasks, err := d.engine.ListTasks(ctx, t.chatID, nil, nil)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return d.reply(ctx, t.chatID, "There are no tasks yet.")
	}
	_, err = d.replyWith(ctx, t.chatID, "Which task would you like to update?",
		chat.SendOptions{Inline: d.taskKeyboard(tasks, actTaskEdit)})
	return err
}

// editTask loads a persisted task into the sender's draft slot.
func (d *Dispatcher) editTask(ctx context.Context, t turn, msgID int, taskID string) (string, error) {
	task, err := d.engine.Task(ctx, taskID)
	if apperr.IsNotFound(err) {
		return "", d.edit(ctx, t.chatID, msgID, "This task no longer exists.")
	}
	if err != nil {
		return "", err
	}
	if _, err := d.tracker.StartDraft(ctx, t.key, *task); err != nil {
		return "", err
	}
	return "", d.showDraftMenu(ctx, t, msgID, *task)
}

func (d *Dispatcher) listTasks(ctx context.Context, t turn, mine bool) error {
	var assignee *int64
	heading := "Here are the team's tasks:"
	empty := "There are no tasks yet."
	if mine {
		assignee = &t.user.ID
		heading = "Here are your tasks:"
		empty = "You don't have any tasks assigned."
	}

	tasks, err := d.engine.ListTasks(ctx, t.chatID, nil, assignee)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return d.reply(ctx, t.chatID, empty)
	}

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	for i, task := range tasks {
		fmt.Fprintf(&b, "\n%d: <b>%s</b> [%s]", i+1, escape(task.Name), task.Status)
		if task.DueDate != nil {
			fmt.Fprintf(&b, " due %s", model.FormatDate(*task.DueDate, d.engine.Location()))
		}
		if task.AssigneeID != nil && !mine {
			fmt.Fprintf(&b, " (%s)", escape(d.assigneeName(ctx, task.AssigneeID)))
		}
	}
	return d.reply(ctx, t.chatID, b.String())
}

func (d *Dispatcher) assignTaskMenu(ctx context.Context, t turn) error {
	tasks, err := d.engine.ListTasks(ctx, t.chatID, nil, nil)
	if err != nil {
		return err
	}
	open := tasks[:0:0]
	for _, task := range tasks {
		if task.Status != model.TaskStatusDone {
			open = append(open, task)
		}
	}
	if len(open) == 0 {
		return d.reply(ctx, t.chatID, "There are no open tasks to assign.")
	}
	_, err = d.replyWith(ctx, t.chatID, "Which task would you like to assign?",
		chat.SendOptions{Inline: d.taskKeyboard(open, actAssignPick)})
	return err
}

func (d *Dispatcher) assignPickUser(ctx context.Context, t turn, msgID int, taskID string) error {
	task, err := d.engine.Task(ctx, taskID)
	if apperr.IsNotFound(err) {
		return d.edit(ctx, t.chatID, msgID, "This task no longer exists.")
	}
	if err != nil {
		return err
	}
	kb, err := d.memberKeyboard(ctx, t.chatID, func(userID string) string {
		return encodeAction(actAssignUser, task.ID, userID)
	})
	if err != nil {
		return err
	}
	return d.editWith(ctx, t.chatID, msgID,
		fmt.Sprintf("Who should work on <b>%s</b>?", escape(task.Name)), kb)
}

func (d *Dispatcher) assignTask(ctx context.Context, t turn, msgID int, taskID, userID string) error {
	assignee, err := parseAssignee(userID)
	if err != nil {
		return nil
	}
	out, err := d.engine.AssignTask(ctx, taskID, assignee)
	if apperr.IsNotFound(err) {
		return d.edit(ctx, t.chatID, msgID, "This task no longer exists.")
	}
	if err != nil {
		return err
	}
	if assignee == nil {
		return d.edit(ctx, t.chatID, msgID,
			fmt.Sprintf("<b>%s</b> is now unassigned.", escape(out.Task.Name)))
	}
	return d.edit(ctx, t.chatID, msgID, fmt.Sprintf("<b>%s</b> has been assigned to %s.",
		escape(out.Task.Name), escape(d.assigneeName(ctx, assignee))))
}

// === Completion ===

// announceCompletion posts the feedback prompt and the next-task
// suggestion when a write moved a task to Done.
func (d *Dispatcher) announceCompletion(ctx context.Context, out *scheduling.TaskOutcome) error {
	if out.Completion == nil {
		return nil
	}
	task := out.Task

	if out.Completion.FeedbackPrompt {
		if _, err := d.replyWith(ctx, task.TeamID, feedbackText(task, nil),
			chat.SendOptions{Inline: feedbackKeyboard(task.ID)}); err != nil {
			return err
		}
	}
	return d.reply(ctx, task.TeamID, d.suggestionText(ctx, out.Completion.Suggestion))
}

func (d *Dispatcher) suggestionText(ctx context.Context, s scheduling.Suggestion) string {
	var b strings.Builder
	switch s.Source {
	case scheduling.SuggestAssignee:
		fmt.Fprintf(&b, "Here are the remaining tasks of %s:",
			escape(d.assigneeName(ctx, s.Tasks[0].AssigneeID)))
	case scheduling.SuggestTeam:
		b.WriteString("Here are the team's remaining tasks:")
	default:
		return "All tasks are done! Consider scheduling a follow-up meeting to plan the next steps."
	}
	for _, task := range s.Tasks {
		fmt.Fprintf(&b, "\n- <b>%s</b>", escape(task.Name))
	}
	return b.String()
}

func feedbackText(task model.Task, counts []model.FeedbackCount) string {
	text := fmt.Sprintf("<b>%s</b> is done! How did it go?", escape(task.Name))
	if len(counts) == 0 {
		return text
	}
	parts := make([]string, 0, len(counts))
	for _, c := range counts {
		parts = append(parts, fmt.Sprintf("%s: %d", c.Type.Label(), c.Count))
	}
	return text + "\n\n" + strings.Join(parts, " | ")
}

func feedbackKeyboard(taskID string) chat.Keyboard {
	row := make([]chat.Button, 0, len(model.FeedbackTypes))
	for _, f := range model.FeedbackTypes {
		row = append(row, chat.Button{
			Text: f.Label(),
			Data: encodeAction(actFeedback, taskID, strconv.Itoa(int(f))),
		})
	}
	return chat.Keyboard{row}
}

func (d *Dispatcher) feedback(ctx context.Context, t turn, msgID int, taskID, value string) (string, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return "", nil
	}
	counts, err := d.engine.SubmitFeedback(ctx, taskID, t.user.ID, model.FeedbackType(n))
	if msg, ok := userMessage(err); ok {
		return msg, nil
	}
	if apperr.IsNotFound(err) {
		return "This task no longer exists.", d.edit(ctx, t.chatID, msgID, "This task no longer exists.")
	}
	if err != nil {
		return "", err
	}

	task, err := d.engine.Task(ctx, taskID)
	if err != nil {
		return "", err
	}
	if err := d.editWith(ctx, t.chatID, msgID, feedbackText(*task, counts), feedbackKeyboard(taskID)); err != nil {
		return "", err
	}
	return "Thanks for your feedback!", nil
}
