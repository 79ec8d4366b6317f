package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/dojobot/internal/model"
)

const notificationColumns = "id, kind, meeting_id, chat_id, fire_at, text, doc_ref, doc_caption"

// CreateNotifications inserts all notifications in a single transaction.
// Missing IDs are generated.
func (s *SQLStore) CreateNotifications(ctx context.Context, ns []model.Notification) error {
	if len(ns) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt := s.q(`
		INSERT INTO notifications (
			id, kind, meeting_id, chat_id, fire_at, text, doc_ref, doc_caption
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	for _, n := range ns {
		if n.ID == "" {
			n.ID = uuid.New().String()
		}
		if _, err := tx.ExecContext(ctx, stmt,
			n.ID, int(n.Kind), n.MeetingID, n.ChatID, ts(n.FireAt),
			n.Text, n.DocRef, n.DocCaption,
		); err != nil {
			return fmt.Errorf("creating notification: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing notifications: %w", err)
	}
	return nil
}

// GetNotifications retrieves notifications matching the filter ordered by
// fire time.
func (s *SQLStore) GetNotifications(
	ctx context.Context,
	filter NotificationFilter,
) ([]model.Notification, error) {
	var conditions []string
	var args []interface{}

	if filter.MeetingID != nil {
		conditions = append(conditions, "meeting_id = ?")
		args = append(args, *filter.MeetingID)
	}
	if filter.ChatID != nil {
		conditions = append(conditions, "chat_id = ?")
		args = append(args, *filter.ChatID)
	}
	if filter.DueBy != nil {
		conditions = append(conditions, "fire_at <= ?")
		args = append(args, ts(*filter.DueBy))
	}

	query := "SELECT " + notificationColumns + " FROM notifications"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY fire_at ASC, id ASC"

	var ns []model.Notification
	if err := s.db.SelectContext(ctx, &ns, s.q(query), args...); err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	for i := range ns {
		ns[i].FireAt = utc(ns[i].FireAt)
	}
	return ns, nil
}

// GetDueNotifications returns every notification whose fire time is not
// after now.
func (s *SQLStore) GetDueNotifications(ctx context.Context, now time.Time) ([]model.Notification, error) {
	return s.GetNotifications(ctx, NotificationFilter{DueBy: &now})
}

// DeleteNotification removes a notification. Returns a NotFoundError when it
// was already removed.
func (s *SQLStore) DeleteNotification(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.q("DELETE FROM notifications WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("deleting notification %s: %w", id, err)
	}
	return checkAffected(res, "notification", id)
}

// DeleteMeetingNotifications removes all notifications of a meeting for one
// chat and reports how many were removed.
func (s *SQLStore) DeleteMeetingNotifications(
	ctx context.Context,
	meetingID string,
	chatID int64,
) (int, error) {
	res, err := s.db.ExecContext(ctx,
		s.q("DELETE FROM notifications WHERE meeting_id = ? AND chat_id = ?"),
		meetingID, chatID,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting notifications of meeting %s: %w", meetingID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading affected rows: %w", err)
	}
	return int(n), nil
}
