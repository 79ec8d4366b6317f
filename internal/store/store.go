package store

import (
	"context"
	"time"

	"github.com/nhle/dojobot/internal/model"
)

// MeetingFilter narrows meeting queries. Results are ordered by start time
// ascending.
type MeetingFilter struct {
	TeamID    int64
	After     *time.Time // start strictly after
	Before    *time.Time // start strictly before
	HasAgenda *bool
	HasNotes  *bool
}

// TaskFilter narrows task queries. Results are ordered by creation time.
type TaskFilter struct {
	TeamID     int64
	Status     *model.TaskStatus
	AssigneeID *int64
	Unassigned bool
	ExcludeID  string
}

// NotificationFilter narrows notification queries.
type NotificationFilter struct {
	MeetingID *string
	ChatID    *int64
	DueBy     *time.Time // fire_at <= DueBy
}

// MeetingPatch lists the mutable meeting fields. Nil fields are left alone.
type MeetingPatch struct {
	HasReminder *bool
	AgendaRef   *string
	NotesRef    *string
}

// TaskPatch lists the mutable task fields. Nil fields are left alone;
// ClearDueDate and ClearAssignee set the column to NULL.
type TaskPatch struct {
	Name          *string
	Summary       *string
	Status        *model.TaskStatus
	DueDate       *time.Time
	ClearDueDate  bool
	AssigneeID    *int64
	ClearAssignee bool
}

// Store defines the persistence interface for teams, users, meetings, tasks,
// feedback and notifications.
type Store interface {
	// === Teams & users ===

	EnsureTeam(ctx context.Context, teamID int64) (*model.Team, error)
	GetTeam(ctx context.Context, teamID int64) (*model.Team, error)
	SetTeamSuggestions(ctx context.Context, teamID int64, enabled bool) error
	UpsertUser(ctx context.Context, user model.User) error
	GetUser(ctx context.Context, userID int64) (*model.User, error)
	AddTeamMember(ctx context.Context, teamID, userID int64) error
	GetTeamMembers(ctx context.Context, teamID int64) ([]model.User, error)

	// === Meetings ===

	CreateMeeting(ctx context.Context, m model.Meeting) (*model.Meeting, error)
	GetMeeting(ctx context.Context, id string) (*model.Meeting, error)
	GetMeetingByTime(ctx context.Context, teamID int64, start time.Time) (*model.Meeting, error)
	GetMeetings(ctx context.Context, filter MeetingFilter) ([]model.Meeting, error)
	UpdateMeeting(ctx context.Context, id string, patch MeetingPatch) (*model.Meeting, error)
	DeleteMeeting(ctx context.Context, id string) error

	// === Tasks ===

	CreateTask(ctx context.Context, t model.Task) (*model.Task, error)
	GetTask(ctx context.Context, id string) (*model.Task, error)
	GetTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error)
	UpdateTask(ctx context.Context, id string, patch TaskPatch) (*model.Task, error)
	DeleteTask(ctx context.Context, id string) error

	// === Feedback ===

	UpsertFeedback(ctx context.Context, f model.Feedback) error
	GetFeedback(ctx context.Context, taskID string, userID int64) (*model.Feedback, error)
	GetFeedbackCounts(ctx context.Context, taskID string) ([]model.FeedbackCount, error)

	// === Notifications ===

	CreateNotifications(ctx context.Context, ns []model.Notification) error
	GetNotifications(ctx context.Context, filter NotificationFilter) ([]model.Notification, error)
	GetDueNotifications(ctx context.Context, now time.Time) ([]model.Notification, error)
	DeleteNotification(ctx context.Context, id string) error
	DeleteMeetingNotifications(ctx context.Context, meetingID string, chatID int64) (int, error)

	Close() error
}
