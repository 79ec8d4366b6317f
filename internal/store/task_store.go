package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/dojobot/internal/apperr"
	"github.com/nhle/dojobot/internal/model"
)

const taskColumns = "id, team_id, name, summary, status, due_date, assignee_id, created_at, updated_at"

// CreateTask inserts a new task. Generates a UUID if ID is empty.
func (s *SQLStore) CreateTask(ctx context.Context, t model.Task) (*model.Task, error) {
	if strings.TrimSpace(t.Name) == "" {
		return nil, apperr.Validation("name", "task name must not be empty")
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = model.TaskStatusTodo
	}
	now := ts(time.Now())
	t.CreatedAt = now
	t.UpdatedAt = now
	t.DueDate = tsPtr(t.DueDate)

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO tasks (
			id, team_id, name, summary, status,
			due_date, assignee_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		t.ID, t.TeamID, t.Name, t.Summary, string(t.Status),
		t.DueDate, t.AssigneeID, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", mapError(err, "team", fmt.Sprint(t.TeamID)))
	}
	return &t, nil
}

// GetTask retrieves a single task by ID.
func (s *SQLStore) GetTask(ctx context.Context, id string) (*model.Task, error) {
	var t model.Task
	err := s.db.GetContext(ctx, &t,
		s.q("SELECT "+taskColumns+" FROM tasks WHERE id = ?"), id)
	if err != nil {
		return nil, fmt.Errorf("getting task %s: %w", id, mapError(err, "task", id))
	}
	normalizeTask(&t)
	return &t, nil
}

// GetTasks retrieves tasks matching the filter.
func (s *SQLStore) GetTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	query, args := buildTaskQuery(filter)

	var tasks []model.Task
	if err := s.db.SelectContext(ctx, &tasks, s.q(query), args...); err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	for i := range tasks {
		normalizeTask(&tasks[i])
	}
	return tasks, nil
}

// buildTaskQuery renders the WHERE clause for a TaskFilter.
func buildTaskQuery(filter TaskFilter) (string, []interface{}) {
	conditions := []string{"team_id = ?"}
	args := []interface{}{filter.TeamID}

	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.AssigneeID != nil {
		conditions = append(conditions, "assignee_id = ?")
		args = append(args, *filter.AssigneeID)
	}
	if filter.Unassigned {
		conditions = append(conditions, "assignee_id IS NULL")
	}
	if filter.ExcludeID != "" {
		conditions = append(conditions, "id <> ?")
		args = append(args, filter.ExcludeID)
	}

	query := "SELECT " + taskColumns + " FROM tasks WHERE " +
		strings.Join(conditions, " AND ") + " ORDER BY created_at ASC, id ASC"
	return query, args
}

// UpdateTask applies patch to an existing task and returns the new value.
func (s *SQLStore) UpdateTask(ctx context.Context, id string, patch TaskPatch) (*model.Task, error) {
	var sets []string
	var args []interface{}

	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			return nil, apperr.Validation("name", "task name must not be empty")
		}
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Summary != nil {
		sets = append(sets, "summary = ?")
		args = append(args, *patch.Summary)
	}
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*patch.Status))
	}
	switch {
	case patch.ClearDueDate:
		sets = append(sets, "due_date = NULL")
	case patch.DueDate != nil:
		sets = append(sets, "due_date = ?")
		args = append(args, ts(*patch.DueDate))
	}
	switch {
	case patch.ClearAssignee:
		sets = append(sets, "assignee_id = NULL")
	case patch.AssigneeID != nil:
		sets = append(sets, "assignee_id = ?")
		args = append(args, *patch.AssigneeID)
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, ts(time.Now()), id)

	res, err := s.db.ExecContext(ctx,
		s.q("UPDATE tasks SET "+strings.Join(sets, ", ")+" WHERE id = ?"), args...)
	if err != nil {
		return nil, fmt.Errorf("updating task %s: %w", id, mapError(err, "user", ""))
	}
	if err := checkAffected(res, "task", id); err != nil {
		return nil, err
	}

	return s.GetTask(ctx, id)
}

// DeleteTask removes a task by ID. Cascades to feedback.
func (s *SQLStore) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.q("DELETE FROM tasks WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	return checkAffected(res, "task", id)
}

func normalizeTask(t *model.Task) {
	t.CreatedAt = utc(t.CreatedAt)
	t.UpdatedAt = utc(t.UpdatedAt)
	if t.DueDate != nil {
		d := utc(*t.DueDate)
		t.DueDate = &d
	}
}
