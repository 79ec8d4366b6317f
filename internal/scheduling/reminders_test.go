package scheduling

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/dojobot/internal/apperr"
	"github.com/nhle/dojobot/internal/model"
	"github.com/nhle/dojobot/internal/store"
)

func TestDeriveReminders_AllFuture(t *testing.T) {
	m := model.Meeting{ID: "m-1", Start: now.Add(24 * time.Hour), DurationMinutes: 45, AgendaRef: "doc-1"}

	ns := DeriveReminders(m, teamID, true, now, time.UTC)
	require.Len(t, ns, 4)

	assert.True(t, ns[0].FireAt.Equal(m.Start.Add(-12*time.Hour)))
	assert.True(t, ns[1].FireAt.Equal(m.Start.Add(-time.Hour)))
	assert.True(t, ns[2].FireAt.Equal(m.Start))
	assert.True(t, ns[3].FireAt.Equal(m.Start.Add(45*time.Minute)))

	for _, n := range ns {
		require.NotNil(t, n.MeetingID)
		assert.Equal(t, "m-1", *n.MeetingID)
		assert.Equal(t, teamID, n.ChatID)
		assert.Equal(t, model.NotificationMeeting, n.Kind)
	}

	assert.Equal(t, "doc-1", ns[2].DocRef)
	assert.NotEmpty(t, ns[2].DocCaption)
	assert.Contains(t, ns[2].Text, Suggestions)
	assert.Empty(t, ns[3].DocRef)
	assert.Contains(t, ns[3].Text, "notes")
}

func TestDeriveReminders_TwoHoursOut(t *testing.T) {
	m := model.Meeting{ID: "m-1", Start: now.Add(2 * time.Hour), DurationMinutes: 30}

	ns := DeriveReminders(m, teamID, false, now, time.UTC)
	require.Len(t, ns, 3, "the 12 hour ping is already in the past")

	assert.True(t, ns[0].FireAt.Equal(now.Add(time.Hour)))
	assert.True(t, ns[1].FireAt.Equal(m.Start))
	assert.True(t, ns[2].FireAt.Equal(m.End()))
	assert.False(t, strings.Contains(ns[1].Text, Suggestions))
	assert.Empty(t, ns[1].DocRef)
}

func TestDeriveReminders_LeadExactlyNowSkipped(t *testing.T) {
	m := model.Meeting{ID: "m-1", Start: now.Add(time.Hour), DurationMinutes: 30}

	ns := DeriveReminders(m, teamID, false, now, time.UTC)
	assert.Len(t, ns, 2)
}

func TestDeriveReminders_StartedMeeting(t *testing.T) {
	m := model.Meeting{ID: "m-1", Start: now.Add(-30 * time.Minute), DurationMinutes: 60}

	ns := DeriveReminders(m, teamID, true, now, time.UTC)
	require.Len(t, ns, 1, "only the end ping is still ahead")
	assert.True(t, ns[0].FireAt.Equal(m.End()))
	assert.Contains(t, ns[0].Text, "has ended")

	ended := model.Meeting{ID: "m-2", Start: now.Add(-2 * time.Hour), DurationMinutes: 60}
	assert.Empty(t, DeriveReminders(ended, teamID, true, now, time.UTC))
}

func TestSetReminder_StartedMeetingRejected(t *testing.T) {
	e, s := newEngine(t)
	ctx := context.Background()

	started, err := s.CreateMeeting(ctx, model.Meeting{TeamID: teamID, Start: now.Add(-30 * time.Minute), DurationMinutes: 60})
	require.NoError(t, err)

	_, err = e.SetReminder(ctx, started.ID, teamID, true)
	assert.True(t, apperr.IsValidation(err))

	ns, err := s.GetNotifications(ctx, store.NotificationFilter{MeetingID: &started.ID})
	require.NoError(t, err)
	assert.Empty(t, ns)

	got, err := e.Meeting(ctx, started.ID)
	require.NoError(t, err)
	assert.False(t, got.HasReminder)

	off, err := e.SetReminder(ctx, started.ID, teamID, false)
	require.NoError(t, err, "switching off an already-off reminder is a no-op")
	assert.False(t, off.HasReminder)
}

func TestSetReminder_OnThenOff(t *testing.T) {
	e, s := newEngine(t)
	ctx := context.Background()

	m, err := e.ScheduleMeeting(ctx, teamID, now.Add(2*time.Hour), 30, false)
	require.NoError(t, err)

	on, err := e.SetReminder(ctx, m.ID, teamID, true)
	require.NoError(t, err)
	assert.True(t, on.HasReminder)

	ns, err := s.GetNotifications(ctx, store.NotificationFilter{MeetingID: &m.ID})
	require.NoError(t, err)
	assert.Len(t, ns, 3)

	_, err = e.SetReminder(ctx, m.ID, teamID, true)
	require.NoError(t, err)
	ns, err = s.GetNotifications(ctx, store.NotificationFilter{MeetingID: &m.ID})
	require.NoError(t, err)
	assert.Len(t, ns, 3, "switching on twice does not duplicate notifications")

	off, err := e.SetReminder(ctx, m.ID, teamID, false)
	require.NoError(t, err)
	assert.False(t, off.HasReminder)

	ns, err = s.GetNotifications(ctx, store.NotificationFilter{MeetingID: &m.ID})
	require.NoError(t, err)
	assert.Empty(t, ns)
}

func TestSetReminder_SuggestionsFollowTeam(t *testing.T) {
	e, s := newEngine(t)
	ctx := context.Background()
	require.NoError(t, e.SetSuggestions(ctx, teamID, false))

	m, err := e.ScheduleMeeting(ctx, teamID, now.Add(2*time.Hour), 30, true)
	require.NoError(t, err)

	ns, err := s.GetNotifications(ctx, store.NotificationFilter{MeetingID: &m.ID})
	require.NoError(t, err)
	for _, n := range ns {
		assert.NotContains(t, n.Text, Suggestions)
	}
}

func TestToggleReminder(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	m, err := e.ScheduleMeeting(ctx, teamID, now.Add(2*time.Hour), 30, false)
	require.NoError(t, err)

	toggled, err := e.ToggleReminder(ctx, m.ID, teamID)
	require.NoError(t, err)
	assert.True(t, toggled.HasReminder)

	toggled, err = e.ToggleReminder(ctx, m.ID, teamID)
	require.NoError(t, err)
	assert.False(t, toggled.HasReminder)

	_, err = e.ToggleReminder(ctx, "missing", teamID)
	assert.True(t, apperr.IsNotFound(err))
}

func TestAttachAgenda_RederivesReminder(t *testing.T) {
	e, s := newEngine(t)
	ctx := context.Background()

	m, err := e.ScheduleMeeting(ctx, teamID, now.Add(24*time.Hour), 30, true)
	require.NoError(t, err)

	updated, err := e.AttachAgenda(ctx, m.ID, teamID, "agenda-file")
	require.NoError(t, err)
	assert.Equal(t, "agenda-file", updated.AgendaRef)

	ns, err := s.GetNotifications(ctx, store.NotificationFilter{MeetingID: &m.ID})
	require.NoError(t, err)
	require.Len(t, ns, 4)

	var withDoc int
	for _, n := range ns {
		if n.DocRef == "agenda-file" {
			withDoc++
			assert.True(t, n.FireAt.Equal(m.Start))
		}
	}
	assert.Equal(t, 1, withDoc)
}

func TestAttachAgenda_StartedMeetingRejected(t *testing.T) {
	e, s := newEngine(t)
	ctx := context.Background()

	past, err := s.CreateMeeting(ctx, model.Meeting{TeamID: teamID, Start: now.Add(-time.Minute), DurationMinutes: 30})
	require.NoError(t, err)

	_, err = e.AttachAgenda(ctx, past.ID, teamID, "doc")
	assert.True(t, apperr.IsValidation(err))
}

func TestAttachNotes(t *testing.T) {
	e, s := newEngine(t)
	ctx := context.Background()

	past, err := s.CreateMeeting(ctx, model.Meeting{TeamID: teamID, Start: now.Add(-time.Hour), DurationMinutes: 30})
	require.NoError(t, err)

	m, err := e.AttachNotes(ctx, past.ID, "notes-file")
	require.NoError(t, err)
	assert.Equal(t, "notes-file", m.NotesRef)
}
