package scheduling

import (
	"context"

	"github.com/nhle/dojobot/internal/apperr"
	"github.com/nhle/dojobot/internal/model"
)

// SubmitFeedback records a user's reaction to a task and returns the
// updated counts. Resubmitting replaces the user's earlier reaction.
func (e *Engine) SubmitFeedback(
	ctx context.Context,
	taskID string,
	userID int64,
	kind model.FeedbackType,
) ([]model.FeedbackCount, error) {
	if !kind.Valid() {
		return nil, apperr.Validation("feedback_type", "unknown feedback type %d", int(kind))
	}
	if _, err := e.store.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	if err := e.store.UpsertFeedback(ctx, model.Feedback{
		TaskID: taskID,
		UserID: userID,
		Type:   kind,
	}); err != nil {
		return nil, err
	}
	return e.FeedbackCounts(ctx, taskID)
}

// FeedbackCounts returns one count per reaction type present on the task.
func (e *Engine) FeedbackCounts(ctx context.Context, taskID string) ([]model.FeedbackCount, error) {
	return e.store.GetFeedbackCounts(ctx, taskID)
}
