package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/dojobot/internal/apperr"
	"github.com/nhle/dojobot/internal/model"
)

// UpsertFeedback records a user's reaction to a task, replacing any earlier
// reaction by the same user.
func (s *SQLStore) UpsertFeedback(ctx context.Context, f model.Feedback) error {
	if !f.Type.Valid() {
		return apperr.Validation("feedback_type", "unknown feedback type %d", int(f.Type))
	}
	if f.ID == "" {
		f.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO feedback (id, task_id, user_id, feedback_type, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (task_id, user_id) DO UPDATE SET
			feedback_type = excluded.feedback_type,
			updated_at = excluded.updated_at`),
		f.ID, f.TaskID, f.UserID, int(f.Type), ts(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("upserting feedback on task %s: %w", f.TaskID, mapError(err, "task", f.TaskID))
	}
	return nil
}

// GetFeedback retrieves the reaction a user gave to a task.
func (s *SQLStore) GetFeedback(ctx context.Context, taskID string, userID int64) (*model.Feedback, error) {
	var f model.Feedback
	err := s.db.GetContext(ctx, &f, s.q(`
		SELECT id, task_id, user_id, feedback_type, updated_at
		FROM feedback WHERE task_id = ? AND user_id = ?`),
		taskID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting feedback on task %s: %w", taskID, mapError(err, "feedback", taskID))
	}
	f.UpdatedAt = utc(f.UpdatedAt)
	return &f, nil
}

// GetFeedbackCounts returns one row per reaction type present on the task,
// ordered by type.
func (s *SQLStore) GetFeedbackCounts(ctx context.Context, taskID string) ([]model.FeedbackCount, error) {
	var counts []model.FeedbackCount
	err := s.db.SelectContext(ctx, &counts, s.q(`
		SELECT feedback_type, COUNT(*) AS count
		FROM feedback WHERE task_id = ?
		GROUP BY feedback_type
		ORDER BY feedback_type`),
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("counting feedback on task %s: %w", taskID, err)
	}
	return counts, nil
}
