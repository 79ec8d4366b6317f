package model

import (
	"fmt"
	"time"
)

// TaskStatus is the lifecycle state of a task. Any transition is permitted.
type TaskStatus string

// Task status constants.
const (
	TaskStatusTodo  TaskStatus = "To-Do"
	TaskStatusDoing TaskStatus = "Doing"
	TaskStatusDone  TaskStatus = "Done"
)

// TaskStatuses lists the statuses in display order.
var TaskStatuses = []TaskStatus{TaskStatusTodo, TaskStatusDoing, TaskStatusDone}

// ParseTaskStatus converts a stored or user supplied value to a TaskStatus.
func ParseTaskStatus(s string) (TaskStatus, error) {
	for _, st := range TaskStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown task status %q", s)
}

// Task is a unit of team work. A task with an empty ID is a draft that only
// lives in a conversation session.
type Task struct {
	ID         string     `json:"id" db:"id"`
	TeamID     int64      `json:"team_id" db:"team_id" validate:"required"`
	Name       string     `json:"name" db:"name" validate:"required,max=200"`
	Summary    string     `json:"summary,omitempty" db:"summary" validate:"max=2000"`
	Status     TaskStatus `json:"status" db:"status" validate:"required,oneof=To-Do Doing Done"`
	DueDate    *time.Time `json:"due_date,omitempty" db:"due_date"`
	AssigneeID *int64     `json:"assignee_id,omitempty" db:"assignee_id"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// IsDraft reports whether the task has not been persisted yet.
func (t Task) IsDraft() bool {
	return t.ID == ""
}

// NewDraftTask returns an empty draft owned by teamID.
func NewDraftTask(teamID int64) Task {
	return Task{TeamID: teamID, Status: TaskStatusTodo}
}
