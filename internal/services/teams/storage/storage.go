// Package storage defines the persistence boundary of the team service.
package storage

import (
	"context"

	"github.com/dkapsis/pms/internal/platform/errors"
	"github.com/dkapsis/pms/internal/services/teams/team"
)

// ErrNotFound indicates a requested team is missing.
var ErrNotFound = errors.New(errors.CodeNotFound, "team not found")

// TeamStore persists team records and their memberships.
type TeamStore interface {
	CreateTeam(ctx context.Context, t team.Team) error
	GetTeam(ctx context.Context, id string) (team.Team, error)
	// ListTeams returns the teams with the given ids in creation order.
	// An empty ids slice returns every team. Unknown ids are skipped.
	ListTeams(ctx context.Context, ids []string) ([]team.Team, error)
	// SetMembers replaces the team's member set and returns the updated team.
	SetMembers(ctx context.Context, id string, memberIDs []string) (team.Team, error)
}
