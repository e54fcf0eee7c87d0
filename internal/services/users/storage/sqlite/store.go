// Package sqlite implements user persistence over SQLite.
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
	"github.com/dkapsis/pms/internal/platform/requestctx"
	"github.com/dkapsis/pms/internal/platform/storage/sqlitemigrate"
	"github.com/dkapsis/pms/internal/platform/timeouts"
	"github.com/dkapsis/pms/internal/services/users/storage"
	"github.com/dkapsis/pms/internal/services/users/storage/sqlite/migrations"
	"github.com/dkapsis/pms/internal/services/users/user"
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

// Store implements storage.UserStore over a single SQLite file.
type Store struct {
	sqlDB *sql.DB
}

var _ storage.UserStore = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a user SQLite store and applies bundled migrations.
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

func isUniqueError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

// CreateUser persists a new user row.
func (s *Store) CreateUser(ctx context.Context, u user.User) error {
	ctx, cancel := requestCtx(ctx)
	defer cancel()

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO users (id, username, first_name, last_name, role, active, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.FirstName, u.LastName, string(u.Role), boolToInt(u.Active), toMillis(u.CreatedAt),
	)
	if err != nil {
		if isUniqueError(err) {
			return storage.ErrUsernameTaken
		}
		return storeErr("create user", err)
	}
	return nil
}

const userColumns = "id, username, first_name, last_name, role, active, created_at"

type userScanner interface {
	Scan(dest ...any) error
}

func scanUser(scan userScanner) (user.User, error) {
	var u user.User
	var role string
	var active int
	var createdAt int64
	if err := scan.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &role, &active, &createdAt); err != nil {
		return user.User{}, err
	}
	u.Role = requestctx.Role(role)
	u.Active = active != 0
	u.CreatedAt = fromMillis(createdAt)
	return u, nil
}

// GetUser fetches a user row by id.
func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	ctx, cancel := requestCtx(ctx)
	defer cancel()

	row := s.sqlDB.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return user.User{}, storage.ErrNotFound
	}
	if err != nil {
		return user.User{}, storeErr("get user", err)
	}
	return u, nil
}

// ListUsers returns users in creation order, optionally limited to ids.
func (s *Store) ListUsers(ctx context.Context, ids []string) ([]user.User, error) {
	ctx, cancel := requestCtx(ctx)
	defer cancel()

	query := "SELECT " + userColumns + " FROM users"
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
		return nil, storeErr("list users", err)
	}
	defer rows.Close()

	var users []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, storeErr("scan user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list users rows", err)
	}
	return users, nil
}

// SetActive flips the active flag and returns the updated row.
func (s *Store) SetActive(ctx context.Context, id string, active bool) (user.User, error) {
	ctx, cancel := requestCtx(ctx)
	defer cancel()

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return user.User{}, storeErr("begin set active", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, "UPDATE users SET active = ? WHERE id = ?", boolToInt(active), id)
	if err != nil {
		return user.User{}, storeErr("set active", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return user.User{}, storeErr("set active rows affected", err)
	}
	if affected == 0 {
		return user.User{}, storage.ErrNotFound
	}

	row := tx.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	updated, err := scanUser(row)
	if err != nil {
		return user.User{}, storeErr("reread user", err)
	}
	if err := tx.Commit(); err != nil {
		return user.User{}, storeErr("commit set active", err)
	}
	return updated, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
