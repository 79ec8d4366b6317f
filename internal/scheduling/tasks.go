package scheduling

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/dojobot/internal/apperr"
	"github.com/nhle/dojobot/internal/logging"
	"github.com/nhle/dojobot/internal/model"
	"github.com/nhle/dojobot/internal/store"
)

// SuggestionSource tells where a next-task suggestion came from.
type SuggestionSource int

const (
	// SuggestNothing means no To-Do task is left; a follow-up meeting is
	// suggested instead.
	SuggestNothing SuggestionSource = iota
	// SuggestAssignee lists the assignee's remaining To-Do tasks.
	SuggestAssignee
	// SuggestTeam lists the team's remaining To-Do tasks.
	SuggestTeam
)

// Suggestion is the result of the next-task chain.
type Suggestion struct {
	Source SuggestionSource
	Tasks  []model.Task
}

// Completion holds the side effects of a task becoming Done.
type Completion struct {
	// FeedbackPrompt is set when the task has an assignee and the team
	// should be asked for feedback.
	FeedbackPrompt bool
	Suggestion     Suggestion
}

// TaskOutcome is the result of a task write.
type TaskOutcome struct {
	Task model.Task

	// Completion is non-nil when the write moved the task to Done.
	Completion *Completion
}

// ValidateDueDate checks that due falls on tomorrow or later in the team
// timezone.
func (e *Engine) ValidateDueDate(due time.Time) error {
	now := e.now().In(e.loc)
	y, m, d := now.Date()
	tomorrow := time.Date(y, m, d+1, 0, 0, 0, 0, e.loc)
	if due.Before(tomorrow) {
		return apperr.Validation("due_date", "Due date must be tomorrow or later, please try again.")
	}
	return nil
}

func validateTask(t model.Task) error {
	if strings.TrimSpace(t.Name) == "" {
		return apperr.Validation("name", "Please set the task name before saving.")
	}
	if field := model.FirstInvalidField(t); field != "" {
		return apperr.Validation(field, "%v", model.ValidateStruct(t))
	}
	return nil
}

// SaveTask persists a draft, or rewrites every editable field of an
// existing task. A missing name is a ValidationError and nothing is
// written.
func (e *Engine) SaveTask(ctx context.Context, t model.Task) (*TaskOutcome, error) {
	if t.Status == "" {
		t.Status = model.TaskStatusTodo
	}
	if err := validateTask(t); err != nil {
		return nil, err
	}

	if t.IsDraft() {
		created, err := e.store.CreateTask(ctx, t)
		if err != nil {
			return nil, err
		}
		logging.LogEvent(e.log, "task_created", logrus.Fields{"task_id": created.ID, "team_id": created.TeamID})
		return e.outcome(ctx, nil, *created)
	}

	patch := store.TaskPatch{
		Name:    &t.Name,
		Summary: &t.Summary,
		Status:  &t.Status,
	}
	if t.DueDate != nil {
		patch.DueDate = t.DueDate
	} else {
		patch.ClearDueDate = true
	}
	if t.AssigneeID != nil {
		patch.AssigneeID = t.AssigneeID
	} else {
		patch.ClearAssignee = true
	}
	return e.UpdateTask(ctx, t.ID, patch)
}

// UpdateTask applies patch to a persisted task.
func (e *Engine) UpdateTask(ctx context.Context, id string, patch store.TaskPatch) (*TaskOutcome, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, apperr.Validation("name", "Please set the task name before saving.")
	}

	prev, err := e.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := e.store.UpdateTask(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	return e.outcome(ctx, prev, *updated)
}

// SetTaskStatus moves a task to status. Any transition is allowed.
func (e *Engine) SetTaskStatus(ctx context.Context, id string, status model.TaskStatus) (*TaskOutcome, error) {
	if _, err := model.ParseTaskStatus(string(status)); err != nil {
		return nil, apperr.Validation("status", "%v", err)
	}
	return e.UpdateTask(ctx, id, store.TaskPatch{Status: &status})
}

// AssignTask sets the assignee of a task. A nil assignee unassigns it.
func (e *Engine) AssignTask(ctx context.Context, id string, assigneeID *int64) (*TaskOutcome, error) {
	if assigneeID == nil {
		return e.UpdateTask(ctx, id, store.TaskPatch{ClearAssignee: true})
	}
	return e.UpdateTask(ctx, id, store.TaskPatch{AssigneeID: assigneeID})
}

// Task retrieves a task by ID.
func (e *Engine) Task(ctx context.Context, id string) (*model.Task, error) {
	return e.store.GetTask(ctx, id)
}

// ListTasks lists the team's tasks, optionally narrowed by status and
// assignee.
func (e *Engine) ListTasks(
	ctx context.Context,
	teamID int64,
	status *model.TaskStatus,
	assigneeID *int64,
) ([]model.Task, error) {
	return e.store.GetTasks(ctx, store.TaskFilter{
		TeamID:     teamID,
		Status:     status,
		AssigneeID: assigneeID,
	})
}

// DeleteTask removes a task.
func (e *Engine) DeleteTask(ctx context.Context, id string) error {
	return e.store.DeleteTask(ctx, id)
}

// outcome attaches the completion side effects when the write moved the
// task to Done. prev is nil for a new task.
func (e *Engine) outcome(ctx context.Context, prev *model.Task, t model.Task) (*TaskOutcome, error) {
	out := &TaskOutcome{Task: t}
	if t.Status != model.TaskStatusDone {
		return out, nil
	}
	if prev != nil && prev.Status == model.TaskStatusDone {
		return out, nil
	}

	suggestion, err := e.SuggestNext(ctx, t)
	if err != nil {
		return nil, err
	}
	out.Completion = &Completion{
		FeedbackPrompt: t.AssigneeID != nil,
		Suggestion:     suggestion,
	}
	logging.LogEvent(e.log, "task_completed", logrus.Fields{"task_id": t.ID, "team_id": t.TeamID})
	return out, nil
}

// SuggestNext runs the next-task chain for a completed task: the
// assignee's remaining To-Do tasks, then the team's To-Do tasks, then
// nothing. The first non-empty list wins.
func (e *Engine) SuggestNext(ctx context.Context, done model.Task) (Suggestion, error) {
	todo := model.TaskStatusTodo

	if done.AssigneeID != nil {
		mine, err := e.store.GetTasks(ctx, store.TaskFilter{
			TeamID:     done.TeamID,
			Status:     &todo,
			AssigneeID: done.AssigneeID,
			ExcludeID:  done.ID,
		})
		if err != nil {
			return Suggestion{}, err
		}
		if len(mine) > 0 {
			return Suggestion{Source: SuggestAssignee, Tasks: mine}, nil
		}
	}

	team, err := e.store.GetTasks(ctx, store.TaskFilter{
		TeamID:    done.TeamID,
		Status:    &todo,
		ExcludeID: done.ID,
	})
	if err != nil {
		return Suggestion{}, err
	}
	if len(team) > 0 {
		return Suggestion{Source: SuggestTeam, Tasks: team}, nil
	}
	return Suggestion{Source: SuggestNothing}, nil
}
