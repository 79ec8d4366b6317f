// Package testutil holds shared fixtures for package tests.
package testutil

import (
	"context"
	"testing"

	"github.com/nhle/dojobot/internal/model"
	"github.com/nhle/dojobot/internal/store"
)

// NewTestStore creates an in-memory SQLStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// SeedTeam ensures a team exists and registers the given users as members.
func SeedTeam(t *testing.T, s store.Store, teamID int64, users ...model.User) {
	t.Helper()

	ctx := context.Background()
	if _, err := s.EnsureTeam(ctx, teamID); err != nil {
		t.Fatalf("seeding team %d: %v", teamID, err)
	}
	for _, u := range users {
		if err := s.UpsertUser(ctx, u); err != nil {
			t.Fatalf("seeding user %d: %v", u.ID, err)
		}
		if err := s.AddTeamMember(ctx, teamID, u.ID); err != nil {
			t.Fatalf("seeding member %d: %v", u.ID, err)
		}
	}
}
