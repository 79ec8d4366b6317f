package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/dojobot/internal/apperr"
	"github.com/nhle/dojobot/internal/model"
)

var key = Key{ChatID: -100, UserID: 7}

func newTracker() (*Tracker, *MemoryStore) {
	store := NewMemoryStore()
	return NewTracker(store), store
}

func TestTracker_EmptySession(t *testing.T) {
	tr, store := newTracker()

	s, err := tr.Get(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, s.Empty())
	assert.Equal(t, 0, store.Len())
}

func TestTracker_DraftFieldFlow(t *testing.T) {
	tr, _ := newTracker()
	ctx := context.Background()

	_, err := tr.StartDraft(ctx, key, model.NewDraftTask(key.ChatID))
	require.NoError(t, err)

	require.NoError(t, tr.Await(ctx, key, AwaitingTaskName, ""))
	s, err := tr.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, AwaitingTaskName, s.State.Awaiting)

	draft, err := tr.UpdateDraft(ctx, key, func(task *model.Task) error {
		task.Name = "Buy domain"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Buy domain", draft.Name)

	s, err = tr.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, AwaitingNone, s.State.Awaiting, "setting a field returns to the menu")
	require.NotNil(t, s.Draft)
	assert.Equal(t, "Buy domain", s.Draft.Name)
}

func TestTracker_UpdateDraftValidationKeepsState(t *testing.T) {
	tr, _ := newTracker()
	ctx := context.Background()

	_, err := tr.StartDraft(ctx, key, model.NewDraftTask(key.ChatID))
	require.NoError(t, err)
	require.NoError(t, tr.Await(ctx, key, AwaitingTaskDueDate, ""))

	_, err = tr.UpdateDraft(ctx, key, func(task *model.Task) error {
		return apperr.Validation("due_date", "must be in the future")
	})
	assert.True(t, apperr.IsValidation(err))

	s, err := tr.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, AwaitingTaskDueDate, s.State.Awaiting)
}

func TestTracker_AwaitReplacesPrevious(t *testing.T) {
	tr, _ := newTracker()
	ctx := context.Background()

	require.NoError(t, tr.Await(ctx, key, AwaitingAgendaFile, "m-1"))
	require.NoError(t, tr.Await(ctx, key, AwaitingNotesReplaceConfirm, "m-2"))

	s, err := tr.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, State{Awaiting: AwaitingNotesReplaceConfirm, MeetingID: "m-2"}, s.State)
}

func TestTracker_AwaitPreconditions(t *testing.T) {
	tr, _ := newTracker()
	ctx := context.Background()

	assert.True(t, apperr.IsValidation(tr.Await(ctx, key, AwaitingAgendaFile, "")))
	assert.True(t, apperr.IsNotFound(tr.Await(ctx, key, AwaitingTaskSummary, "")))
	assert.Error(t, tr.Await(ctx, key, Awaiting(99), ""))
}

func TestTracker_DiscardDraftClearsEverything(t *testing.T) {
	tr, store := newTracker()
	ctx := context.Background()

	_, err := tr.StartDraft(ctx, key, model.NewDraftTask(key.ChatID))
	require.NoError(t, err)
	require.NoError(t, tr.SetMenuMessage(ctx, key, 55))
	require.NoError(t, tr.Await(ctx, key, AwaitingTaskSummary, ""))

	require.NoError(t, tr.DiscardDraft(ctx, key))

	s, err := tr.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, s.Draft)
	assert.Equal(t, AwaitingNone, s.State.Awaiting)
	assert.Zero(t, s.MenuMessageID)
	assert.Equal(t, 0, store.Len())
}

func TestTracker_DiscardDraftKeepsMeetingState(t *testing.T) {
	tr, _ := newTracker()
	ctx := context.Background()

	_, err := tr.StartDraft(ctx, key, model.NewDraftTask(key.ChatID))
	require.NoError(t, err)
	require.NoError(t, tr.Await(ctx, key, AwaitingNotesFile, "m-1"))
	require.NoError(t, tr.DiscardDraft(ctx, key))

	s, err := tr.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, AwaitingNotesFile, s.State.Awaiting)
}

func TestTracker_PendingSlots(t *testing.T) {
	tr, store := newTracker()
	ctx := context.Background()

	require.NoError(t, tr.SetPendingMeeting(ctx, key, "m-9"))
	require.NoError(t, tr.SetPollTarget(ctx, key, -200))

	id, err := tr.TakePendingMeeting(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "m-9", id)

	id, err = tr.TakePendingMeeting(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, id)

	chatID, err := tr.TakePollTarget(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(-200), chatID)
	assert.Equal(t, 0, store.Len())
}

func TestTracker_Reset(t *testing.T) {
	tr, store := newTracker()
	ctx := context.Background()

	require.NoError(t, tr.Await(ctx, key, AwaitingAgendaFile, "m-1"))
	require.NoError(t, tr.Reset(ctx, key))
	assert.Equal(t, 0, store.Len())
}

func TestTracker_SessionsAreIsolated(t *testing.T) {
	tr, _ := newTracker()
	ctx := context.Background()
	other := Key{ChatID: key.ChatID, UserID: 8}

	require.NoError(t, tr.Await(ctx, key, AwaitingAgendaFile, "m-1"))

	s, err := tr.Get(ctx, other)
	require.NoError(t, err)
	assert.True(t, s.Empty())
}
