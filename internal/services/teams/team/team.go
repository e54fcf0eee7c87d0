// Package team defines the team service domain records.
package team

import (
	"time"

	"github.com/dkapsis/pms/internal/platform/errors"
)

// Team is a group of users with a single leader.
//
// Membership is advisory for display; task permissions key off the leader
// and the task rows themselves, not off MemberIDs.
type Team struct {
	ID          string
	Name        string
	Description string
	LeaderID    string
	MemberIDs   []string
	CreatedAt   time.Time
}

// Validate checks the team invariants before persistence.
func (t Team) Validate() error {
	if t.Name == "" {
		return errors.New(errors.CodeTeamNameEmpty, "team name is required")
	}
	if t.LeaderID == "" {
		return errors.New(errors.CodeTeamLeaderRequired, "team leader id is required")
	}
	return nil
}
