package policy

import (
	"testing"

	"github.com/dkapsis/pms/internal/platform/errors"
	"github.com/dkapsis/pms/internal/platform/requestctx"
	"github.com/dkapsis/pms/internal/services/tasks/task"
)

const leaderID = "10"

func snapshot() task.Task {
	return task.Task{
		ID:         "t1",
		Title:      "A",
		Status:     task.StatusTodo,
		Priority:   task.PriorityMedium,
		TeamID:     "team-1",
		CreatedBy:  "10",
		AssignedTo: "20",
	}
}

func admin() requestctx.Caller {
	return requestctx.Caller{ID: "1", Role: requestctx.RoleAdmin}
}

func leader() requestctx.Caller {
	return requestctx.Caller{ID: leaderID, Role: requestctx.RoleTeamLeader}
}

func TestCanCreate(t *testing.T) {
	if err := CanCreate(admin(), leaderID); err != nil {
		t.Fatalf("admin create: %v", err)
	}
	if err := CanCreate(leader(), leaderID); err != nil {
		t.Fatalf("leading team leader create: %v", err)
	}

	otherLeader := requestctx.Caller{ID: "11", Role: requestctx.RoleTeamLeader}
	if err := CanCreate(otherLeader, leaderID); !errors.IsCode(err, errors.CodePermissionDenied) {
		t.Fatalf("expected denial for non-leading leader, got %v", err)
	}

	member := requestctx.Caller{ID: leaderID, Role: requestctx.RoleMember}
	if err := CanCreate(member, leaderID); !errors.IsCode(err, errors.CodePermissionDenied) {
		t.Fatalf("expected denial for member, got %v", err)
	}
}

func TestCanCreateDeniesWhenLeaderUnresolved(t *testing.T) {
	// A failed team lookup yields an empty leader id; that must deny, not allow.
	if err := CanCreate(leader(), ""); !errors.IsCode(err, errors.CodePermissionDenied) {
		t.Fatalf("expected denial with unresolved leader, got %v", err)
	}
	if err := CanCreate(admin(), ""); err != nil {
		t.Fatalf("admin does not need leader resolution: %v", err)
	}
}

func TestUpdatableFieldsFullSetForAdminAndLeader(t *testing.T) {
	for _, caller := range []requestctx.Caller{admin(), leader()} {
		fields, err := UpdatableFields(caller, snapshot(), leaderID)
		if err != nil {
			t.Fatalf("updatable fields for %s: %v", caller.Role, err)
		}
		for _, name := range Names() {
			if !fields.Has(name) {
				t.Fatalf("expected %s to allow field %q", caller.Role, name)
			}
		}
	}
}

func TestUpdatableFieldsAssigneeStatusOnly(t *testing.T) {
	assignee := requestctx.Caller{ID: "20", Role: requestctx.RoleMember}
	fields, err := UpdatableFields(assignee, snapshot(), leaderID)
	if err != nil {
		t.Fatalf("assignee fields: %v", err)
	}
	if !fields.Has(FieldStatus) {
		t.Fatal("expected assignee to update status")
	}
	for _, name := range Names() {
		if name != FieldStatus && fields.Has(name) {
			t.Fatalf("expected assignee to be denied field %q", name)
		}
	}
}

func TestUpdatableFieldsCreatorOnlyIsEmpty(t *testing.T) {
	snap := snapshot()
	snap.AssignedTo = "20"
	creator := requestctx.Caller{ID: "10", Role: requestctx.RoleMember}
	fields, err := UpdatableFields(creator, snap, "someone-else")
	if err != nil {
		t.Fatalf("creator fields: %v", err)
	}
	if len(fields) != 0 {
		t.Fatalf("expected empty field set for creator, got %v", fields)
	}
}

func TestUpdatableFieldsStrangerDenied(t *testing.T) {
	stranger := requestctx.Caller{ID: "99", Role: requestctx.RoleMember}
	if _, err := UpdatableFields(stranger, snapshot(), leaderID); !errors.IsCode(err, errors.CodePermissionDenied) {
		t.Fatalf("expected denial for stranger, got %v", err)
	}
}

func TestTieBreakLeaderBeatsAssignee(t *testing.T) {
	// A leader who is also the assignee keeps the full set, not just status.
	snap := snapshot()
	snap.AssignedTo = leaderID
	fields, err := UpdatableFields(leader(), snap, leaderID)
	if err != nil {
		t.Fatalf("leader-assignee fields: %v", err)
	}
	if !fields.Has(FieldTitle) {
		t.Fatal("expected leader rule to win over assignee rule")
	}
}

func TestAuthorizeUpdateStrictAllowList(t *testing.T) {
	assignee := requestctx.Caller{ID: "20", Role: requestctx.RoleMember}

	if err := AuthorizeUpdate(assignee, snapshot(), leaderID, []string{FieldStatus}); err != nil {
		t.Fatalf("status-only update: %v", err)
	}

	// A single disallowed field rejects the whole request, including the
	// otherwise-allowed status field.
	err := AuthorizeUpdate(assignee, snapshot(), leaderID, []string{FieldStatus, FieldTitle})
	if !errors.IsCode(err, errors.CodePermissionDenied) {
		t.Fatalf("expected denial for mixed update, got %v", err)
	}
}

func TestAuthorizeUpdateCreatorDeniedAnyField(t *testing.T) {
	creator := requestctx.Caller{ID: "10", Role: requestctx.RoleMember}
	snap := snapshot()
	err := AuthorizeUpdate(creator, snap, "someone-else", []string{FieldTitle})
	if !errors.IsCode(err, errors.CodePermissionDenied) {
		t.Fatalf("expected creator-only update to be denied, got %v", err)
	}
}

func TestCanDeleteTruthTable(t *testing.T) {
	snap := snapshot()

	cases := []struct {
		name    string
		caller  requestctx.Caller
		allowed bool
	}{
		{"admin", admin(), true},
		{"team leader", leader(), true},
		{"creator", requestctx.Caller{ID: "10", Role: requestctx.RoleMember}, true},
		{"assignee", requestctx.Caller{ID: "20", Role: requestctx.RoleMember}, false},
		{"stranger", requestctx.Caller{ID: "99", Role: requestctx.RoleMember}, false},
		{"leader of another team", requestctx.Caller{ID: "11", Role: requestctx.RoleTeamLeader}, false},
		{"member with leader id", requestctx.Caller{ID: "77", Role: requestctx.RoleMember}, false},
	}
	for _, tc := range cases {
		err := CanDelete(tc.caller, snap, leaderID)
		if tc.allowed && err != nil {
			t.Fatalf("%s: expected delete allowed, got %v", tc.name, err)
		}
		if !tc.allowed && !errors.IsCode(err, errors.CodePermissionDenied) {
			t.Fatalf("%s: expected denial, got %v", tc.name, err)
		}
	}
}

func TestKnownFields(t *testing.T) {
	for _, name := range Names() {
		if !Known(name) {
			t.Fatalf("expected %q to be known", name)
		}
	}
	if Known("created_by") {
		t.Fatal("created_by must never be mutable")
	}
	if Known("id") {
		t.Fatal("id must never be mutable")
	}
}
