package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/dojobot/internal/apperr"
	"github.com/nhle/dojobot/internal/keylock"
	"github.com/nhle/dojobot/internal/model"
	"github.com/nhle/dojobot/internal/store"
	"github.com/nhle/dojobot/internal/testutil"
)

const chatID int64 = -500

var now = time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)

func newSweeper(t *testing.T) (*Sweeper, *store.SQLStore, *testutil.Messenger) {
	t.Helper()
	s := testutil.NewTestStore(t)
	m := testutil.NewMessenger()
	sw := New(s, m, keylock.New(), WithClock(func() time.Time { return now }))
	return sw, s, m
}

func seed(t *testing.T, s store.Store, ns ...model.Notification) {
	t.Helper()
	require.NoError(t, s.CreateNotifications(context.Background(), ns))
}

func meetingID(id string) *string { return &id }

func TestSweepOnce_DeliversDueOnly(t *testing.T) {
	sw, s, m := newSweeper(t)
	ctx := context.Background()

	seed(t, s,
		model.Notification{ChatID: chatID, FireAt: now.Add(-time.Minute), Text: "first"},
		model.Notification{ChatID: chatID, FireAt: now, Text: "second"},
		model.Notification{ChatID: chatID, FireAt: now.Add(time.Minute), Text: "later"},
	)

	n, err := sw.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	sent := m.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "first", sent[0].Text)
	assert.Equal(t, "second", sent[1].Text)
	assert.True(t, sent[0].Options.HTML)

	left, err := s.GetNotifications(ctx, store.NotificationFilter{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "later", left[0].Text)
}

func TestSweepOnce_NoDoubleDelivery(t *testing.T) {
	sw, s, m := newSweeper(t)
	ctx := context.Background()
	seed(t, s, model.Notification{ChatID: chatID, FireAt: now, Text: "once"})

	_, err := sw.SweepOnce(ctx)
	require.NoError(t, err)
	n, err := sw.SweepOnce(ctx)
	require.NoError(t, err)

	assert.Zero(t, n)
	assert.Len(t, m.Sent(), 1)
}

func TestSweepOnce_SendsDocumentAfterText(t *testing.T) {
	sw, s, m := newSweeper(t)
	seed(t, s, model.Notification{
		MeetingID:  meetingID("m-1"),
		ChatID:     chatID,
		FireAt:     now,
		Text:       "starting",
		DocRef:     "file-1",
		DocCaption: "Here's the agenda for the meeting.",
	})

	_, err := sw.SweepOnce(context.Background())
	require.NoError(t, err)

	sent := m.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "text", sent[0].Kind)
	assert.Equal(t, "document", sent[1].Kind)
	assert.Equal(t, "file-1", sent[1].DocRef)
	assert.Equal(t, "Here's the agenda for the meeting.", sent[1].Text)
}

func TestSweepOnce_FailedSendIsDropped(t *testing.T) {
	sw, s, m := newSweeper(t)
	ctx := context.Background()
	m.FailChats[chatID] = apperr.ExternalService("telegram", errors.New("boom"))

	seed(t, s,
		model.Notification{ChatID: chatID, FireAt: now, Text: "lost"},
		model.Notification{ChatID: 42, FireAt: now, Text: "kept"},
	)

	n, err := sw.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	left, err := s.GetNotifications(ctx, store.NotificationFilter{})
	require.NoError(t, err)
	assert.Empty(t, left, "failed deliveries are not retried")
}

func TestSweepOnce_ConcurrentSweepSkipped(t *testing.T) {
	sw, s, m := newSweeper(t)
	seed(t, s, model.Notification{ChatID: chatID, FireAt: now, Text: "x"})

	sw.sweeping.Lock()
	n, err := sw.SweepOnce(context.Background())
	sw.sweeping.Unlock()

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, m.Sent())
}

func TestSweepOnce_WaitsForReminderLock(t *testing.T) {
	s := testutil.NewTestStore(t)
	m := testutil.NewMessenger()
	locks := keylock.New()
	sw := New(s, m, locks, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	seed(t, s, model.Notification{MeetingID: meetingID("m-1"), ChatID: chatID, FireAt: now, Text: "x"})

	// Hold the key and retract the row, as turning a reminder off does.
	unlock := locks.Lock(keylock.ReminderKey("m-1", chatID))
	done := make(chan int, 1)
	go func() {
		n, _ := sw.SweepOnce(ctx)
		done <- n
	}()

	removed, err := s.DeleteMeetingNotifications(ctx, "m-1", chatID)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	unlock()

	select {
	case n := <-done:
		assert.Zero(t, n)
	case <-time.After(5 * time.Second):
		t.Fatal("sweep did not finish")
	}
	assert.Empty(t, m.Sent())
}

func TestStart_RejectsNonPositiveInterval(t *testing.T) {
	sw, _, _ := newSweeper(t)
	assert.True(t, apperr.IsValidation(sw.Start(context.Background(), 0)))
}

func TestStartStop(t *testing.T) {
	sw, s, m := newSweeper(t)
	seed(t, s, model.Notification{ChatID: chatID, FireAt: now, Text: "tick"})

	require.NoError(t, sw.Start(context.Background(), time.Second))
	require.NoError(t, sw.Start(context.Background(), time.Second), "second start is a no-op")

	assert.Eventually(t, func() bool { return len(m.Sent()) == 1 }, 5*time.Second, 50*time.Millisecond)
	sw.Stop()
	sw.Stop()
}
