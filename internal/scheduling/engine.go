// Package scheduling implements the meeting and task rules of the bot:
// conflict detection, reminder derivation, the task lifecycle and feedback
// aggregation. It is the only package that writes domain state.
package scheduling

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/dojobot/internal/keylock"
	"github.com/nhle/dojobot/internal/logging"
	"github.com/nhle/dojobot/internal/model"
	"github.com/nhle/dojobot/internal/store"
)

// Engine applies domain operations against a Store.
type Engine struct {
	store store.Store
	locks *keylock.Map
	loc   *time.Location
	now   func() time.Time
	log   logrus.FieldLogger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLocation sets the team timezone used for dates and display.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) { e.loc = loc }
}

// WithLocks shares a lock map with the notification sweep.
func WithLocks(locks *keylock.Map) Option {
	return func(e *Engine) { e.locks = locks }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = log }
}

// New creates an Engine over s.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store: s,
		locks: keylock.New(),
		loc:   time.UTC,
		now:   time.Now,
		log:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now returns the engine's current time.
func (e *Engine) Now() time.Time {
	return e.now()
}

// Location returns the team timezone.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// Locks returns the lock map guarding notifications.
func (e *Engine) Locks() *keylock.Map {
	return e.locks
}

// EnsureTeam returns the team, creating it on first interaction.
func (e *Engine) EnsureTeam(ctx context.Context, teamID int64) (*model.Team, error) {
	return e.store.EnsureTeam(ctx, teamID)
}

// RegisterMember records user and adds it to the team, creating the team
// if needed.
func (e *Engine) RegisterMember(ctx context.Context, teamID int64, user model.User) error {
	if _, err := e.store.EnsureTeam(ctx, teamID); err != nil {
		return err
	}
	if err := e.store.UpsertUser(ctx, user); err != nil {
		return err
	}
	return e.store.AddTeamMember(ctx, teamID, user.ID)
}

// Members lists the members of a team.
func (e *Engine) Members(ctx context.Context, teamID int64) ([]model.User, error) {
	return e.store.GetTeamMembers(ctx, teamID)
}

// User retrieves a known user.
func (e *Engine) User(ctx context.Context, userID int64) (*model.User, error) {
	return e.store.GetUser(ctx, userID)
}

// SetSuggestions toggles the start-of-meeting suggestions for a team.
func (e *Engine) SetSuggestions(ctx context.Context, teamID int64, enabled bool) error {
	if _, err := e.store.EnsureTeam(ctx, teamID); err != nil {
		return err
	}
	return e.store.SetTeamSuggestions(ctx, teamID, enabled)
}
