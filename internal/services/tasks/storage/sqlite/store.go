// Package sqlite implements task persistence over SQLite.
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
	"github.com/dkapsis/pms/internal/services/tasks/storage"
	"github.com/dkapsis/pms/internal/services/tasks/storage/sqlite/migrations"
	"github.com/dkapsis/pms/internal/services/tasks/task"
	_ "modernc.org/sqlite"
)

// maxOpenConns bounds the shared connection pool. Callers waiting on an
// exhausted pool are cut off by the per-call deadline in requestCtx.
const maxOpenConns = 10

// Store implements storage.TaskStore over a single SQLite file.
type Store struct {
	sqlDB *sql.DB
}

var _ storage.TaskStore = (*Store)(nil)

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// requestCtx bounds a single store call. The bound covers the wait for a
// free pool connection, not just query execution.
func requestCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, timeouts.StorageRequest)
}

// storeErr classifies a failed store call. Deadline expiry means the store
// could not serve the call in time, which callers may retry.
func storeErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return platformerrors.Wrap(platformerrors.CodeStorageUnavailable, op+": storage unavailable", err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Open opens a task SQLite store and applies bundled migrations.
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

// isConstraintError detects SQLite constraint violations.
func isConstraintError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "constraint failed") || strings.Contains(value, "constraint violation")
}

// CreateTask persists a new task row.
func (s *Store) CreateTask(ctx context.Context, t task.Task) error {
	ctx, cancel := requestCtx(ctx)
	defer cancel()

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO tasks (id, title, description, status, priority, due_date, team_id, created_by, assigned_to, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Description, string(t.Status), string(t.Priority), t.DueDate,
		t.TeamID, t.CreatedBy, nullable(t.AssignedTo), toMillis(t.CreatedAt),
	)
	if err != nil {
		if isConstraintError(err) {
			return platformerrors.Wrap(platformerrors.CodeConstraintViolation, "create task", err)
		}
		return storeErr("create task", err)
	}
	return nil
}

const taskColumns = "id, title, description, status, priority, due_date, team_id, created_by, assigned_to, created_at"

type taskScanner interface {
	Scan(dest ...any) error
}

func scanTask(scan taskScanner) (task.Task, error) {
	var t task.Task
	var status, priority string
	var assignedTo sql.NullString
	var createdAt int64
	if err := scan.Scan(&t.ID, &t.Title, &t.Description, &status, &priority, &t.DueDate,
		&t.TeamID, &t.CreatedBy, &assignedTo, &createdAt); err != nil {
		return task.Task{}, err
	}
	t.Status = task.Status(status)
	t.Priority = task.Priority(priority)
	t.AssignedTo = assignedTo.String
	t.CreatedAt = fromMillis(createdAt)
	return t, nil
}

// GetTask fetches a task row by id.
func (s *Store) GetTask(ctx context.Context, id string) (task.Task, error) {
	ctx, cancel := requestCtx(ctx)
	defer cancel()

	row := s.sqlDB.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return task.Task{}, storage.ErrNotFound
	}
	if err != nil {
		return task.Task{}, storeErr("get task", err)
	}
	return t, nil
}

// ListTasks returns tasks matching the filter in creation order.
func (s *Store) ListTasks(ctx context.Context, filter storage.TaskFilter) ([]task.Task, error) {
	ctx, cancel := requestCtx(ctx)
	defer cancel()

	query := "SELECT " + taskColumns + " FROM tasks"
	var clauses []string
	var args []any
	if filter.TeamID != "" {
		clauses = append(clauses, "team_id = ?")
		args = append(args, filter.TeamID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.AssignedTo != "" {
		clauses = append(clauses, "assigned_to = ?")
		args = append(args, filter.AssignedTo)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at ASC, rowid ASC"

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list tasks", err)
	}
	defer rows.Close()

	var tasks []task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, storeErr("scan task", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list tasks rows", err)
	}
	return tasks, nil
}

// updatableColumns maps request field names to their table columns. It is
// the store's own allow-list; anything else never reaches the SQL text.
var updatableColumns = map[string]string{
	"title":       "title",
	"description": "description",
	"status":      "status",
	"priority":    "priority",
	"due_date":    "due_date",
	"team_id":     "team_id",
	"assigned_to": "assigned_to",
}

// updateOrder fixes a deterministic SET clause order.
var updateOrder = []string{"title", "description", "status", "priority", "due_date", "team_id", "assigned_to"}

// UpdateTaskFields applies an allow-listed field map and returns the row.
func (s *Store) UpdateTaskFields(ctx context.Context, id string, fields map[string]any) (task.Task, error) {
	if len(fields) == 0 {
		return task.Task{}, platformerrors.New(platformerrors.CodeTaskNoFields, "no fields to update")
	}

	var assignments []string
	var args []any
	for _, name := range updateOrder {
		value, ok := fields[name]
		if !ok {
			continue
		}
		// The assignee column stores NULL for "unassigned", matching the
		// create path; an empty string never lands in the column.
		if name == "assigned_to" {
			if text, ok := value.(string); ok && text == "" {
				value = nil
			}
		}
		assignments = append(assignments, updatableColumns[name]+" = ?")
		args = append(args, value)
	}
	if len(assignments) != len(fields) {
		for name := range fields {
			if _, ok := updatableColumns[name]; !ok {
				return task.Task{}, platformerrors.WithMetadata(platformerrors.CodeTaskUnknownField,
					"unknown task field "+name, map[string]string{"field": name})
			}
		}
	}
	args = append(args, id)

	ctx, cancel := requestCtx(ctx)
	defer cancel()

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return task.Task{}, storeErr("begin update", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, "UPDATE tasks SET "+strings.Join(assignments, ", ")+" WHERE id = ?", args...)
	if err != nil {
		if isConstraintError(err) {
			return task.Task{}, platformerrors.Wrap(platformerrors.CodeConstraintViolation, "update task", err)
		}
		return task.Task{}, storeErr("update task", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return task.Task{}, storeErr("update task rows affected", err)
	}
	if affected == 0 {
		return task.Task{}, storage.ErrNotFound
	}

	row := tx.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	updated, err := scanTask(row)
	if err != nil {
		return task.Task{}, storeErr("reread task", err)
	}
	if err := tx.Commit(); err != nil {
		return task.Task{}, storeErr("commit update", err)
	}
	return updated, nil
}

// DeleteTask removes the task row; comments and attachments cascade.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	ctx, cancel := requestCtx(ctx)
	defer cancel()

	result, err := s.sqlDB.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return storeErr("delete task", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storeErr("delete task rows affected", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// AddComment appends a comment to its task.
func (s *Store) AddComment(ctx context.Context, c task.Comment) error {
	ctx, cancel := requestCtx(ctx)
	defer cancel()

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO task_comments (id, task_id, author_id, author_username, content, created_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.TaskID, c.AuthorID, c.AuthorUsername, c.Content, toMillis(c.CreatedAt),
	)
	if err != nil {
		if isConstraintError(err) {
			return platformerrors.Wrap(platformerrors.CodeConstraintViolation, "add comment", err)
		}
		return storeErr("add comment", err)
	}
	return nil
}

// ListComments returns a task's comments in append order.
func (s *Store) ListComments(ctx context.Context, taskID string) ([]task.Comment, error) {
	ctx, cancel := requestCtx(ctx)
	defer cancel()

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, task_id, author_id, author_username, content, created_at
FROM task_comments WHERE task_id = ?
ORDER BY created_at ASC, rowid ASC`, taskID)
	if err != nil {
		return nil, storeErr("list comments", err)
	}
	defer rows.Close()

	var comments []task.Comment
	for rows.Next() {
		var c task.Comment
		var createdAt int64
		if err := rows.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.AuthorUsername, &c.Content, &createdAt); err != nil {
			return nil, storeErr("scan comment", err)
		}
		c.CreatedAt = fromMillis(createdAt)
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list comments rows", err)
	}
	return comments, nil
}

// AddAttachment appends attachment metadata to its task.
func (s *Store) AddAttachment(ctx context.Context, a task.Attachment) error {
	ctx, cancel := requestCtx(ctx)
	defer cancel()

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO task_attachments (id, task_id, author_id, url, original_name, stored_name, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.TaskID, a.AuthorID, a.URL, a.OriginalName, a.StoredName, toMillis(a.CreatedAt),
	)
	if err != nil {
		if isConstraintError(err) {
			return platformerrors.Wrap(platformerrors.CodeConstraintViolation, "add attachment", err)
		}
		return storeErr("add attachment", err)
	}
	return nil
}

const attachmentColumns = "id, task_id, author_id, url, original_name, stored_name, created_at"

func scanAttachment(scan taskScanner) (task.Attachment, error) {
	var a task.Attachment
	var createdAt int64
	if err := scan.Scan(&a.ID, &a.TaskID, &a.AuthorID, &a.URL, &a.OriginalName, &a.StoredName, &createdAt); err != nil {
		return task.Attachment{}, err
	}
	a.CreatedAt = fromMillis(createdAt)
	return a, nil
}

// ListAttachments returns a task's attachments in append order.
func (s *Store) ListAttachments(ctx context.Context, taskID string) ([]task.Attachment, error) {
	ctx, cancel := requestCtx(ctx)
	defer cancel()

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+attachmentColumns+`
FROM task_attachments WHERE task_id = ?
ORDER BY created_at ASC, rowid ASC`, taskID)
	if err != nil {
		return nil, storeErr("list attachments", err)
	}
	defer rows.Close()

	var attachments []task.Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, storeErr("scan attachment", err)
		}
		attachments = append(attachments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list attachments rows", err)
	}
	return attachments, nil
}

// GetAttachmentByStoredName resolves the metadata row for a served file.
func (s *Store) GetAttachmentByStoredName(ctx context.Context, storedName string) (task.Attachment, error) {
	ctx, cancel := requestCtx(ctx)
	defer cancel()

	row := s.sqlDB.QueryRowContext(ctx, "SELECT "+attachmentColumns+" FROM task_attachments WHERE stored_name = ?", storedName)
	a, err := scanAttachment(row)
	if err == sql.ErrNoRows {
		return task.Attachment{}, storage.ErrNotFound
	}
	if err != nil {
		return task.Attachment{}, storeErr("get attachment", err)
	}
	return a, nil
}

// nullable maps empty strings onto SQL NULL.
func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
