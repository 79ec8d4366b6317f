package model

import "time"

// Meeting is a scheduled team meeting. Start is always stored in UTC.
type Meeting struct {
	// ID is the generated unique identifier.
	ID string `json:"id" db:"id"`

	// TeamID is the owning team (chat).
	TeamID int64 `json:"team_id" db:"team_id"`

	// Start is the instant the meeting begins.
	Start time.Time `json:"start" db:"start_at"`

	// DurationMinutes is the positive length of the meeting.
	DurationMinutes int `json:"duration_minutes" db:"duration_minutes"`

	// HasReminder gates whether notifications are derived for the meeting.
	HasReminder bool `json:"has_reminder" db:"has_reminder"`

	// AgendaRef is the opaque transport handle of the agenda document.
	AgendaRef string `json:"agenda_ref,omitempty" db:"agenda_ref"`

	// NotesRef is the opaque transport handle of the notes document.
	NotesRef string `json:"notes_ref,omitempty" db:"notes_ref"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// End returns the instant the meeting finishes.
func (m Meeting) End() time.Time {
	return m.Start.Add(time.Duration(m.DurationMinutes) * time.Minute)
}

// Overlaps reports whether the half-open interval [start, start+duration)
// intersects the meeting. Touching intervals do not overlap.
func (m Meeting) Overlaps(start time.Time, durationMinutes int) bool {
	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	if !end.After(m.Start) || !start.Before(m.End()) {
		return false
	}
	return true
}

// HasStarted reports whether the meeting start is not after now.
func (m Meeting) HasStarted(now time.Time) bool {
	return !m.Start.After(now)
}
