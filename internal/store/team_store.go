package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/nhle/dojobot/internal/model"
)

const teamColumns = "id, suggestions_enabled, created_at"

const userColumns = "id, first_name, username, created_at"

// EnsureTeam returns the team for teamID, creating it with suggestions
// enabled on first sight.
func (s *SQLStore) EnsureTeam(ctx context.Context, teamID int64) (*model.Team, error) {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO teams (id, suggestions_enabled, created_at)
		VALUES (?, 1, ?)
		ON CONFLICT (id) DO NOTHING`),
		teamID, ts(time.Now()),
	)
	if err != nil {
		return nil, fmt.Errorf("ensuring team %d: %w", teamID, err)
	}
	return s.GetTeam(ctx, teamID)
}

// GetTeam retrieves a team by its chat identifier.
func (s *SQLStore) GetTeam(ctx context.Context, teamID int64) (*model.Team, error) {
	var t model.Team
	err := s.db.GetContext(ctx, &t,
		s.q("SELECT "+teamColumns+" FROM teams WHERE id = ?"), teamID)
	if err != nil {
		return nil, fmt.Errorf("getting team %d: %w",
			teamID, mapError(err, "team", strconv.FormatInt(teamID, 10)))
	}
	t.CreatedAt = utc(t.CreatedAt)
	return &t, nil
}

// SetTeamSuggestions toggles the meeting suggestions shown to a team.
func (s *SQLStore) SetTeamSuggestions(ctx context.Context, teamID int64, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		s.q("UPDATE teams SET suggestions_enabled = ? WHERE id = ?"),
		boolToInt(enabled), teamID,
	)
	if err != nil {
		return fmt.Errorf("updating team %d: %w", teamID, err)
	}
	return checkAffected(res, "team", strconv.FormatInt(teamID, 10))
}

// UpsertUser inserts a user or refreshes its names.
func (s *SQLStore) UpsertUser(ctx context.Context, user model.User) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO users (id, first_name, username, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			first_name = excluded.first_name,
			username = excluded.username`),
		user.ID, user.FirstName, user.Username, ts(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("upserting user %d: %w", user.ID, err)
	}
	return nil
}

// GetUser retrieves a user by its identifier.
func (s *SQLStore) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	var u model.User
	err := s.db.GetContext(ctx, &u,
		s.q("SELECT "+userColumns+" FROM users WHERE id = ?"), userID)
	if err != nil {
		return nil, fmt.Errorf("getting user %d: %w",
			userID, mapError(err, "user", strconv.FormatInt(userID, 10)))
	}
	u.CreatedAt = utc(u.CreatedAt)
	return &u, nil
}

// AddTeamMember records membership. Adding an existing member is a no-op.
func (s *SQLStore) AddTeamMember(ctx context.Context, teamID, userID int64) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO team_members (team_id, user_id) VALUES (?, ?)
		ON CONFLICT (team_id, user_id) DO NOTHING`),
		teamID, userID,
	)
	if err != nil {
		return fmt.Errorf("adding user %d to team %d: %w",
			userID, teamID, mapError(err, "team", strconv.FormatInt(teamID, 10)))
	}
	return nil
}

// GetTeamMembers lists the members of a team ordered by first name.
func (s *SQLStore) GetTeamMembers(ctx context.Context, teamID int64) ([]model.User, error) {
	var users []model.User
	err := s.db.SelectContext(ctx, &users, s.q(`
		SELECT u.id, u.first_name, u.username, u.created_at
		FROM users u
		JOIN team_members tm ON tm.user_id = u.id
		WHERE tm.team_id = ?
		ORDER BY u.first_name, u.id`),
		teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying members of team %d: %w", teamID, err)
	}
	return users, nil
}
