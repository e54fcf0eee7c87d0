// Package storage defines the persistence boundary of the task service.
package storage

import (
	"context"

	"github.com/dkapsis/pms/internal/platform/errors"
	"github.com/dkapsis/pms/internal/services/tasks/task"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New(errors.CodeNotFound, "record not found")

// TaskFilter narrows ListTasks results. Zero values match everything.
type TaskFilter struct {
	TeamID     string
	Status     task.Status
	AssignedTo string
}

// TaskStore persists task, comment, and attachment rows.
//
// The store holds no policy: callers authorize before writing. Field maps
// passed to UpdateTaskFields are re-checked against the store's own column
// allow-list so raw caller input can never reach the SQL layer.
type TaskStore interface {
	CreateTask(ctx context.Context, t task.Task) error
	GetTask(ctx context.Context, id string) (task.Task, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]task.Task, error)
	// UpdateTaskFields applies the field map and returns the updated row.
	// Applying the same valid field map twice yields the same final row.
	UpdateTaskFields(ctx context.Context, id string, fields map[string]any) (task.Task, error)
	// DeleteTask removes the task and cascades to its comments and attachments.
	DeleteTask(ctx context.Context, id string) error

	AddComment(ctx context.Context, c task.Comment) error
	ListComments(ctx context.Context, taskID string) ([]task.Comment, error)

	AddAttachment(ctx context.Context, a task.Attachment) error
	ListAttachments(ctx context.Context, taskID string) ([]task.Attachment, error)
	GetAttachmentByStoredName(ctx context.Context, storedName string) (task.Attachment, error)
}
