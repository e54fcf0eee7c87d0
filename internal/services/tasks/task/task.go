// Package task defines the task service domain records.
package task

import (
	"time"

	"github.com/dkapsis/pms/internal/platform/errors"
)

// Status is the task workflow state.
type Status string

const (
	// StatusTodo marks a task that has not been started.
	StatusTodo Status = "TODO"
	// StatusInProgress marks a task being worked on.
	StatusInProgress Status = "IN_PROGRESS"
	// StatusDone marks a completed task.
	StatusDone Status = "DONE"
)

// Valid reports whether the status is one of the enumerated values.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Priority is the task urgency level.
type Priority string

const (
	// PriorityLow marks background work.
	PriorityLow Priority = "LOW"
	// PriorityMedium is the default urgency.
	PriorityMedium Priority = "MEDIUM"
	// PriorityHigh marks urgent work.
	PriorityHigh Priority = "HIGH"
)

// Valid reports whether the priority is one of the enumerated values.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// DueDateLayout is the wire format for task due dates.
const DueDateLayout = "2006-01-02"

// Task is a unit of work owned by a team.
type Task struct {
	ID          string
	Title       string
	Description string
	Status      Status
	Priority    Priority
	DueDate     string // DueDateLayout formatted, empty when unset
	TeamID      string
	CreatedBy   string
	AssignedTo  string // empty when unassigned
	CreatedAt   time.Time
}

// Validate checks the task invariants before persistence.
func (t Task) Validate() error {
	if t.Title == "" {
		return errors.New(errors.CodeTaskTitleEmpty, "task title is required")
	}
	if t.TeamID == "" {
		return errors.New(errors.CodeTaskTeamRequired, "task team id is required")
	}
	if !t.Status.Valid() {
		return errors.WithMetadata(errors.CodeTaskInvalidStatus, "invalid task status",
			map[string]string{"status": string(t.Status)})
	}
	if !t.Priority.Valid() {
		return errors.WithMetadata(errors.CodeTaskInvalidPriority, "invalid task priority",
			map[string]string{"priority": string(t.Priority)})
	}
	if t.DueDate != "" {
		if _, err := time.Parse(DueDateLayout, t.DueDate); err != nil {
			return errors.WithMetadata(errors.CodeTaskInvalidDueDate, "invalid task due date",
				map[string]string{"due_date": t.DueDate})
		}
	}
	return nil
}

// Comment is an append-only note on a task.
//
// AuthorUsername is a point-in-time snapshot resolved from the identity
// directory when the comment is written. Later username changes do not
// rewrite history.
type Comment struct {
	ID             string
	TaskID         string
	AuthorID       string
	AuthorUsername string
	Content        string
	CreatedAt      time.Time
}

// Validate checks the comment invariants before persistence.
func (c Comment) Validate() error {
	if c.Content == "" {
		return errors.New(errors.CodeCommentContentEmpty, "comment content is required")
	}
	return nil
}

// Attachment is file metadata bound to a task. The bytes live on disk
// under StoredName; the row only records where they are served from.
type Attachment struct {
	ID           string
	TaskID       string
	AuthorID     string
	URL          string
	OriginalName string
	StoredName   string
	CreatedAt    time.Time
}
