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

const meetingColumns = "id, team_id, start_at, duration_minutes, has_reminder, agenda_ref, notes_ref, created_at"

// CreateMeeting inserts a meeting. Generates a UUID if ID is empty.
// Overlap checks belong to the caller.
func (s *SQLStore) CreateMeeting(ctx context.Context, m model.Meeting) (*model.Meeting, error) {
	if m.DurationMinutes <= 0 {
		return nil, apperr.Validation("duration", "meeting duration must be positive")
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.Start = ts(m.Start)
	m.CreatedAt = ts(time.Now())

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO meetings (
			id, team_id, start_at, duration_minutes,
			has_reminder, agenda_ref, notes_ref, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		m.ID, m.TeamID, m.Start, m.DurationMinutes,
		boolToInt(m.HasReminder), m.AgendaRef, m.NotesRef, m.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating meeting: %w", mapError(err, "team", fmt.Sprint(m.TeamID)))
	}
	return &m, nil
}

// GetMeeting retrieves a single meeting by ID.
func (s *SQLStore) GetMeeting(ctx context.Context, id string) (*model.Meeting, error) {
	var m model.Meeting
	err := s.db.GetContext(ctx, &m,
		s.q("SELECT "+meetingColumns+" FROM meetings WHERE id = ?"), id)
	if err != nil {
		return nil, fmt.Errorf("getting meeting %s: %w", id, mapError(err, "meeting", id))
	}
	normalizeMeeting(&m)
	return &m, nil
}

// GetMeetingByTime retrieves the team's meeting starting exactly at start.
func (s *SQLStore) GetMeetingByTime(
	ctx context.Context,
	teamID int64,
	start time.Time,
) (*model.Meeting, error) {
	var m model.Meeting
	err := s.db.GetContext(ctx, &m,
		s.q("SELECT "+meetingColumns+" FROM meetings WHERE team_id = ? AND start_at = ?"),
		teamID, ts(start),
	)
	if err != nil {
		return nil, fmt.Errorf("getting meeting at %s: %w",
			start.UTC().Format(time.RFC3339), mapError(err, "meeting", ""))
	}
	normalizeMeeting(&m)
	return &m, nil
}

// GetMeetings retrieves meetings matching the filter ordered by start.
func (s *SQLStore) GetMeetings(ctx context.Context, filter MeetingFilter) ([]model.Meeting, error) {
	query, args := buildMeetingQuery(filter)

	var meetings []model.Meeting
	if err := s.db.SelectContext(ctx, &meetings, s.q(query), args...); err != nil {
		return nil, fmt.Errorf("querying meetings: %w", err)
	}
	for i := range meetings {
		normalizeMeeting(&meetings[i])
	}
	return meetings, nil
}

// buildMeetingQuery renders the WHERE clause for a MeetingFilter.
func buildMeetingQuery(filter MeetingFilter) (string, []interface{}) {
	conditions := []string{"team_id = ?"}
	args := []interface{}{filter.TeamID}

	if filter.After != nil {
		conditions = append(conditions, "start_at > ?")
		args = append(args, ts(*filter.After))
	}
	if filter.Before != nil {
		conditions = append(conditions, "start_at < ?")
		args = append(args, ts(*filter.Before))
	}
	if filter.HasAgenda != nil {
		if *filter.HasAgenda {
			conditions = append(conditions, "agenda_ref <> ''")
		} else {
			conditions = append(conditions, "agenda_ref = ''")
		}
	}
	if filter.HasNotes != nil {
		if *filter.HasNotes {
			conditions = append(conditions, "notes_ref <> ''")
		} else {
			conditions = append(conditions, "notes_ref = ''")
		}
	}

	query := "SELECT " + meetingColumns + " FROM meetings WHERE " +
		strings.Join(conditions, " AND ") + " ORDER BY start_at ASC, id ASC"
	return query, args
}

// UpdateMeeting applies patch to the meeting and returns the new value.
func (s *SQLStore) UpdateMeeting(
	ctx context.Context,
	id string,
	patch MeetingPatch,
) (*model.Meeting, error) {
	var sets []string
	var args []interface{}

	if patch.HasReminder != nil {
		sets = append(sets, "has_reminder = ?")
		args = append(args, boolToInt(*patch.HasReminder))
	}
	if patch.AgendaRef != nil {
		sets = append(sets, "agenda_ref = ?")
		args = append(args, *patch.AgendaRef)
	}
	if patch.NotesRef != nil {
		sets = append(sets, "notes_ref = ?")
		args = append(args, *patch.NotesRef)
	}

	if len(sets) > 0 {
		args = append(args, id)
		res, err := s.db.ExecContext(ctx,
			s.q("UPDATE meetings SET "+strings.Join(sets, ", ")+" WHERE id = ?"), args...)
		if err != nil {
			return nil, fmt.Errorf("updating meeting %s: %w", id, err)
		}
		if err := checkAffected(res, "meeting", id); err != nil {
			return nil, err
		}
	}

	return s.GetMeeting(ctx, id)
}

// DeleteMeeting removes a meeting by ID. Its notifications are not touched;
// callers retract them explicitly.
func (s *SQLStore) DeleteMeeting(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.q("DELETE FROM meetings WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("deleting meeting %s: %w", id, err)
	}
	return checkAffected(res, "meeting", id)
}

func normalizeMeeting(m *model.Meeting) {
	m.Start = utc(m.Start)
	m.CreatedAt = utc(m.CreatedAt)
}
