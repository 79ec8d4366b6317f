package scheduling

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/dojobot/internal/apperr"
	"github.com/nhle/dojobot/internal/model"
	"github.com/nhle/dojobot/internal/store"
	"github.com/nhle/dojobot/internal/testutil"
)

const teamID int64 = -500

var (
	now   = time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)
	alice = model.User{ID: 1, FirstName: "Alice"}
	bob   = model.User{ID: 2, FirstName: "Bob"}
)

func newEngine(t *testing.T) (*Engine, *store.SQLStore) {
	t.Helper()
	s := testutil.NewTestStore(t)
	testutil.SeedTeam(t, s, teamID, alice, bob)
	e := New(s, WithClock(func() time.Time { return now }))
	return e, s
}

func at(hour, minute int) time.Time {
	return time.Date(2026, 10, 15, hour, minute, 0, 0, time.UTC)
}

func TestCheckConflict_Scenario(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	existing, err := e.ScheduleMeeting(ctx, teamID, at(10, 0), 60, false)
	require.NoError(t, err)

	conflict, err := e.CheckConflict(ctx, teamID, at(10, 30), 30)
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, existing.ID, conflict.ID)

	again, err := e.CheckConflict(ctx, teamID, at(10, 30), 30)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, conflict.ID, again.ID)

	touching, err := e.CheckConflict(ctx, teamID, at(11, 0), 30)
	require.NoError(t, err)
	assert.Nil(t, touching, "a meeting starting when another ends does not conflict")

	before, err := e.CheckConflict(ctx, teamID, at(9, 0), 60)
	require.NoError(t, err)
	assert.Nil(t, before)
}

func TestCheckConflict_PastRejected(t *testing.T) {
	e, _ := newEngine(t)

	_, err := e.CheckConflict(context.Background(), teamID, now.Add(-time.Minute), 30)
	assert.True(t, apperr.IsValidation(err))
}

func TestCheckConflict_OtherTeamsIgnored(t *testing.T) {
	e, s := newEngine(t)
	ctx := context.Background()
	testutil.SeedTeam(t, s, 777)

	_, err := e.ScheduleMeeting(ctx, 777, at(10, 0), 60, false)
	require.NoError(t, err)

	conflict, err := e.CheckConflict(ctx, teamID, at(10, 0), 60)
	require.NoError(t, err)
	assert.Nil(t, conflict)
}

func TestCheckConflict_Property(t *testing.T) {
	e, s := newEngine(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	type interval struct {
		start time.Time
		dur   int
	}
	var existing []interval
	for i := 0; i < 15; i++ {
		iv := interval{
			start: at(0, 0).Add(time.Duration(rng.Intn(48*4)) * 15 * time.Minute),
			dur:   15 * (1 + rng.Intn(8)),
		}
		// Seed directly so overlapping fixtures are allowed.
		_, err := s.CreateMeeting(ctx, model.Meeting{TeamID: teamID, Start: iv.start, DurationMinutes: iv.dur})
		require.NoError(t, err)
		existing = append(existing, iv)
	}

	for i := 0; i < 200; i++ {
		cand := interval{
			start: at(0, 0).Add(time.Duration(rng.Intn(48*12)) * 5 * time.Minute),
			dur:   5 * (1 + rng.Intn(24)),
		}
		candEnd := cand.start.Add(time.Duration(cand.dur) * time.Minute)

		want := false
		for _, iv := range existing {
			ivEnd := iv.start.Add(time.Duration(iv.dur) * time.Minute)
			if candEnd.After(iv.start) && cand.start.Before(ivEnd) {
				want = true
				break
			}
		}

		got, err := e.CheckConflict(ctx, teamID, cand.start, cand.dur)
		require.NoError(t, err)
		assert.Equal(t, want, got != nil, "candidate %s +%dm", cand.start, cand.dur)
		if got != nil {
			assert.True(t, got.Overlaps(cand.start, cand.dur))
		}
	}
}

func TestScheduleMeeting_ConflictWritesNothing(t *testing.T) {
	e, s := newEngine(t)
	ctx := context.Background()

	first, err := e.ScheduleMeeting(ctx, teamID, at(10, 0), 60, false)
	require.NoError(t, err)

	_, err = e.ScheduleMeeting(ctx, teamID, at(10, 30), 30, true)
	ce, ok := apperr.AsConflict(err)
	require.True(t, ok)
	assert.Equal(t, first.ID, ce.MeetingID)
	assert.Equal(t, 60, ce.DurationMinutes)
	assert.True(t, first.Start.Equal(ce.Start))

	meetings, err := s.GetMeetings(ctx, store.MeetingFilter{TeamID: teamID})
	require.NoError(t, err)
	assert.Len(t, meetings, 1)

	second, err := e.ScheduleMeeting(ctx, teamID, at(11, 0), 30, false)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestScheduleMeeting_WithReminder(t *testing.T) {
	e, s := newEngine(t)
	ctx := context.Background()

	m, err := e.ScheduleMeeting(ctx, teamID, at(10, 0), 60, true)
	require.NoError(t, err)
	assert.True(t, m.HasReminder)

	ns, err := s.GetNotifications(ctx, store.NotificationFilter{MeetingID: &m.ID})
	require.NoError(t, err)
	assert.Len(t, ns, 4)
}

type failingNotifications struct {
	store.Store
}

func (failingNotifications) CreateNotifications(context.Context, []model.Notification) error {
	return errors.New("disk full")
}

func TestScheduleMeeting_ReminderFailureKeepsMeeting(t *testing.T) {
	s := testutil.NewTestStore(t)
	testutil.SeedTeam(t, s, teamID, alice)
	e := New(failingNotifications{s}, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	m, err := e.ScheduleMeeting(ctx, teamID, at(10, 0), 30, true)
	require.Error(t, err)
	require.NotNil(t, m, "the meeting is saved even though the reminder failed")
	assert.False(t, m.HasReminder)

	stored, err := s.GetMeeting(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, stored.HasReminder)
}

func TestCancelMeeting(t *testing.T) {
	e, s := newEngine(t)
	ctx := context.Background()

	m, err := e.ScheduleMeeting(ctx, teamID, at(10, 0), 60, true)
	require.NoError(t, err)

	require.NoError(t, e.CancelMeeting(ctx, m.ID))

	_, err = e.Meeting(ctx, m.ID)
	assert.True(t, apperr.IsNotFound(err))
	ns, err := s.GetNotifications(ctx, store.NotificationFilter{MeetingID: &m.ID})
	require.NoError(t, err)
	assert.Empty(t, ns)

	assert.True(t, apperr.IsNotFound(e.CancelMeeting(ctx, m.ID)))
}

func TestCancelMeeting_StartedRejected(t *testing.T) {
	e, s := newEngine(t)
	ctx := context.Background()

	past, err := s.CreateMeeting(ctx, model.Meeting{TeamID: teamID, Start: now.Add(-time.Hour), DurationMinutes: 30})
	require.NoError(t, err)

	assert.True(t, apperr.IsValidation(e.CancelMeeting(ctx, past.ID)))
}

func TestUpcomingMeetings(t *testing.T) {
	e, s := newEngine(t)
	ctx := context.Background()

	_, err := s.CreateMeeting(ctx, model.Meeting{TeamID: teamID, Start: now.Add(-time.Hour), DurationMinutes: 30})
	require.NoError(t, err)
	future, err := e.ScheduleMeeting(ctx, teamID, at(10, 0), 30, false)
	require.NoError(t, err)

	upcoming, err := e.UpcomingMeetings(ctx, teamID)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, future.ID, upcoming[0].ID)

	all, err := e.AllMeetings(ctx, teamID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestFindMeeting(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	m, err := e.ScheduleMeeting(ctx, teamID, at(10, 0), 30, false)
	require.NoError(t, err)

	found, err := e.FindMeeting(ctx, teamID, at(10, 0).In(time.FixedZone("AEDT", 11*3600)))
	require.NoError(t, err)
	assert.Equal(t, m.ID, found.ID)

	_, err = e.FindMeeting(ctx, teamID, at(10, 5))
	assert.True(t, apperr.IsNotFound(err))
}

func TestRegisterMember(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	carol := model.User{ID: 3, FirstName: "Carol", Username: "carol"}
	require.NoError(t, e.RegisterMember(ctx, 900, carol))

	members, err := e.Members(ctx, 900)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "@carol", members[0].DisplayName())
}
