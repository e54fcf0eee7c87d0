// Package sqlite implements team persistence over SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	platformerrors "github.com/dkapsis/pms/internal/platform/errors"
	"github.com/dkapsis/pms/internal/platform/storage/sqlitemigrate"
	"github.com/dkapsis/pms/internal/platform/timeouts"
	"github.com/dkapsis/pms/internal/services/teams/storage"
	"github.com/dkapsis/pms/internal/services/teams/storage/sqlite/migrations"
	"github.com/dkapsis/pms/internal/services/teams/team"
	_ "modernc.org/sqlite"
)

const maxOpenConns = 10

// requestCtx bounds a single store call, including the wait for a free
// pool connection.
func requestCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, timeouts.StorageRequest)
}

// storeErr classifies a failed store call, surfacing deadline expiry as a
// retryable outage.
func storeErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return platformerrors.Wrap(platformerrors.CodeStorageUnavailable, op+": storage unavailable", err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Store implements storage.TeamStore over a single SQLite file.
type Store struct {
	sqlDB *sql.DB
}

var _ storage.TeamStore = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a team SQLite store and applies bundled migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxOpenConns)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func isConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "constraint failed")
}

// CreateTeam persists a team row with its initial member set.
func (s *Store) CreateTeam(ctx context.Context, t team.Team) error {
	ctx, cancel := requestCtx(ctx)
	defer cancel()

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin create team", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO teams (id, name, description, leader_id, created_at)
VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Description, t.LeaderID, toMillis(t.CreatedAt),
	)
	if err != nil {
		if isConstraintError(err) {
			return platformerrors.Wrap(platformerrors.CodeConstraintViolation, "create team", err)
		}
		return storeErr("create team", err)
	}
	if err := replaceMembers(ctx, tx, t.ID, t.MemberIDs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit create team", err)
	}
	return nil
}

// replaceMembers rewrites the member rows for a team inside tx. Duplicate
// ids in the input collapse to one row, keeping first-seen order.
func replaceMembers(ctx context.Context, tx *sql.Tx, teamID string, memberIDs []string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM team_members WHERE team_id = ?", teamID); err != nil {
		return storeErr("clear team members", err)
	}
	seen := make(map[string]bool, len(memberIDs))
	position := 0
	for _, userID := range memberIDs {
		if userID == "" || seen[userID] {
			continue
		}
		seen[userID] = true
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO team_members (team_id, user_id, position) VALUES (?, ?, ?)",
			teamID, userID, position); err != nil {
			return storeErr("insert team member", err)
		}
		position++
	}
	return nil
}

// GetTeam fetches a team row and its members by id.
func (s *Store) GetTeam(ctx context.Context, id string) (team.Team, error) {
	teams, err := s.ListTeams(ctx, []string{id})
	if err != nil {
		return team.Team{}, err
	}
	if len(teams) == 0 {
		return team.Team{}, storage.ErrNotFound
	}
	return teams[0], nil
}

// ListTeams returns teams in creation order, optionally limited to ids.
func (s *Store) ListTeams(ctx context.Context, ids []string) ([]team.Team, error) {
	ctx, cancel := requestCtx(ctx)
	defer cancel()

	query := "SELECT id, name, description, leader_id, created_at FROM teams"
	var args []any
	if len(ids) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
		query += " WHERE id IN (" + placeholders + ")"
		for _, id := range ids {
			args = append(args, id)
		}
	}
	query += " ORDER BY created_at ASC, rowid ASC"

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list teams", err)
	}
	defer rows.Close()

	var teams []team.Team
	index := make(map[string]int)
	for rows.Next() {
		var t team.Team
		var createdAt int64
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.LeaderID, &createdAt); err != nil {
			return nil, storeErr("scan team", err)
		}
		t.CreatedAt = fromMillis(createdAt)
		index[t.ID] = len(teams)
		teams = append(teams, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list teams rows", err)
	}
	if len(teams) == 0 {
		return teams, nil
	}

	memberRows, err := s.memberRows(ctx, teams)
	if err != nil {
		return nil, err
	}
	for teamID, members := range memberRows {
		teams[index[teamID]].MemberIDs = members
	}
	return teams, nil
}

func (s *Store) memberRows(ctx context.Context, teams []team.Team) (map[string][]string, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(teams)), ", ")
	args := make([]any, 0, len(teams))
	for _, t := range teams {
		args = append(args, t.ID)
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT team_id, user_id FROM team_members
WHERE team_id IN (`+placeholders+`)
ORDER BY team_id, position ASC`, args...)
	if err != nil {
		return nil, storeErr("list team members", err)
	}
	defer rows.Close()

	members := make(map[string][]string)
	for rows.Next() {
		var teamID, userID string
		if err := rows.Scan(&teamID, &userID); err != nil {
			return nil, storeErr("scan team member", err)
		}
		members[teamID] = append(members[teamID], userID)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list team members rows", err)
	}
	return members, nil
}

// SetMembers replaces the member set and returns the updated team.
func (s *Store) SetMembers(ctx context.Context, id string, memberIDs []string) (team.Team, error) {
	ctx, cancel := requestCtx(ctx)
	defer cancel()

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return team.Team{}, storeErr("begin set members", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM teams WHERE id = ?", id).Scan(&exists); err != nil {
		return team.Team{}, storeErr("check team", err)
	}
	if exists == 0 {
		return team.Team{}, storage.ErrNotFound
	}
	if err := replaceMembers(ctx, tx, id, memberIDs); err != nil {
		return team.Team{}, err
	}
	if err := tx.Commit(); err != nil {
		return team.Team{}, storeErr("commit set members", err)
	}
	return s.GetTeam(ctx, id)
}
