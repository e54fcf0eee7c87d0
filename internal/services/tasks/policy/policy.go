// Package policy provides authorization decisions for task operations.
//
// Every decision is a pure function of the caller, the task snapshot, and
// the owning team's leader. Admin and leader rules are evaluated before
// assignee and creator rules; the first matching rule's field set wins and
// sets are never unioned across roles.
package policy

import (
	"github.com/dkapsis/pms/internal/platform/errors"
	"github.com/dkapsis/pms/internal/platform/requestctx"
	"github.com/dkapsis/pms/internal/services/tasks/task"
)

// Mutable task field names as they appear in update requests.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldStatus      = "status"
	FieldPriority    = "priority"
	FieldDueDate     = "due_date"
	FieldTeamID      = "team_id"
	FieldAssignedTo  = "assigned_to"
)

// FieldSet is the allow-list of fields a caller may mutate in one request.
type FieldSet map[string]bool

// Has reports whether the field is in the allow-list.
func (s FieldSet) Has(name string) bool {
	return s[name]
}

// Names returns the known mutable field names.
func Names() []string {
	return []string{
		FieldTitle, FieldDescription, FieldStatus, FieldPriority,
		FieldDueDate, FieldTeamID, FieldAssignedTo,
	}
}

// Known reports whether name is a recognized mutable field.
func Known(name string) bool {
	switch name {
	case FieldTitle, FieldDescription, FieldStatus, FieldPriority,
		FieldDueDate, FieldTeamID, FieldAssignedTo:
		return true
	}
	return false
}

func fullFieldSet() FieldSet {
	set := make(FieldSet, 7)
	for _, name := range Names() {
		set[name] = true
	}
	return set
}

// Relationship captures how the caller relates to a task.
type Relationship struct {
	IsAdmin    bool
	IsLeader   bool
	IsAssignee bool
	IsCreator  bool
}

// Relate derives the caller's relationship to the task.
//
// teamLeaderID is the leader of the task's team as resolved from the team
// directory; an empty value never matches, so a failed leader resolution
// degrades to deny rather than allow.
func Relate(caller requestctx.Caller, snapshot task.Task, teamLeaderID string) Relationship {
	return Relationship{
		IsAdmin:    caller.Role == requestctx.RoleAdmin,
		IsLeader:   caller.Role == requestctx.RoleTeamLeader && teamLeaderID != "" && caller.ID == teamLeaderID,
		IsAssignee: snapshot.AssignedTo != "" && caller.ID == snapshot.AssignedTo,
		IsCreator:  snapshot.CreatedBy != "" && caller.ID == snapshot.CreatedBy,
	}
}

// CanCreate authorizes creating a task for the team led by teamLeaderID.
//
// Only an admin, or a team leader who leads the target team, may create.
func CanCreate(caller requestctx.Caller, teamLeaderID string) error {
	if caller.Role == requestctx.RoleAdmin {
		return nil
	}
	if caller.Role == requestctx.RoleTeamLeader && teamLeaderID != "" && caller.ID == teamLeaderID {
		return nil
	}
	return errors.New(errors.CodePermissionDenied, "caller may not create tasks for this team")
}

// UpdatableFields returns the allow-list of fields the caller may mutate.
//
// Admin or team leader: every mutable field. Assignee: status only. The
// task's creator holds no standalone update rights; callers with no
// relationship get a PermissionDenied error.
func UpdatableFields(caller requestctx.Caller, snapshot task.Task, teamLeaderID string) (FieldSet, error) {
	rel := Relate(caller, snapshot, teamLeaderID)
	switch {
	case rel.IsAdmin, rel.IsLeader:
		return fullFieldSet(), nil
	case rel.IsAssignee:
		return FieldSet{FieldStatus: true}, nil
	case rel.IsCreator:
		return FieldSet{}, nil
	}
	return nil, errors.New(errors.CodePermissionDenied, "caller may not update this task")
}

// AuthorizeUpdate enforces the strict allow-list for an update request.
//
// Any requested field outside the caller's allow-list rejects the whole
// request; disallowed fields are never silently dropped.
func AuthorizeUpdate(caller requestctx.Caller, snapshot task.Task, teamLeaderID string, requested []string) error {
	allowed, err := UpdatableFields(caller, snapshot, teamLeaderID)
	if err != nil {
		return err
	}
	for _, name := range requested {
		if !allowed.Has(name) {
			return errors.WithMetadata(errors.CodePermissionDenied,
				"caller may not update field "+name,
				map[string]string{"field": name})
		}
	}
	return nil
}

// CanDelete authorizes deleting the task.
//
// Allowed for an admin, the team's leader, or the task's creator.
func CanDelete(caller requestctx.Caller, snapshot task.Task, teamLeaderID string) error {
	rel := Relate(caller, snapshot, teamLeaderID)
	if rel.IsAdmin || rel.IsLeader || rel.IsCreator {
		return nil
	}
	return errors.New(errors.CodePermissionDenied, "caller may not delete this task")
}
