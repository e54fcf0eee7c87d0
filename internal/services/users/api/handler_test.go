package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/dkapsis/pms/internal/platform/requestctx"
	"github.com/dkapsis/pms/internal/services/shared/callerhttp"
	"github.com/dkapsis/pms/internal/services/users/storage/sqlite"
)

func newRoutes(t *testing.T) http.Handler {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "users.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return New(store).Routes()
}

func do(t *testing.T, routes http.Handler, method, path string, body any, userID string, role requestctx.Role) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set(callerhttp.HeaderUserID, userID)
		req.Header.Set(callerhttp.HeaderUserRole, string(role))
	}
	recorder := httptest.NewRecorder()
	routes.ServeHTTP(recorder, req)
	return recorder
}

func createUser(t *testing.T, routes http.Handler, username string) userResponse {
	t.Helper()
	recorder := do(t, routes, http.MethodPost, "/users",
		map[string]any{"username": username, "first_name": "Ada"}, "", "")
	if recorder.Code != http.StatusCreated {
		t.Fatalf("create %s: expected 201, got %d: %s", username, recorder.Code, recorder.Body)
	}
	var created userResponse
	if err := json.NewDecoder(recorder.Body).Decode(&created); err != nil {
		t.Fatalf("decode created user: %v", err)
	}
	return created
}

func TestSignupDefaultsToActiveMember(t *testing.T) {
	routes := newRoutes(t)

	created := createUser(t, routes, "ada")
	if created.Role != requestctx.RoleMember {
		t.Fatalf("expected MEMBER default, got %s", created.Role)
	}
	if !created.Active {
		t.Fatal("expected new accounts active")
	}
	if created.ID == "" {
		t.Fatal("expected generated id")
	}
}

func TestSignupValidation(t *testing.T) {
	routes := newRoutes(t)

	empty := do(t, routes, http.MethodPost, "/users", map[string]any{"username": " "}, "", "")
	if empty.Code != http.StatusBadRequest {
		t.Fatalf("blank username: expected 400, got %d", empty.Code)
	}

	createUser(t, routes, "ada")
	taken := do(t, routes, http.MethodPost, "/users", map[string]any{"username": "ada"}, "", "")
	if taken.Code != http.StatusConflict {
		t.Fatalf("duplicate username: expected 409, got %d", taken.Code)
	}
}

func TestPrivilegedRolesRequireAdmin(t *testing.T) {
	routes := newRoutes(t)

	anonymous := do(t, routes, http.MethodPost, "/users",
		map[string]any{"username": "lead", "role": "TEAM_LEADER"}, "", "")
	if anonymous.Code != http.StatusForbidden {
		t.Fatalf("anonymous privileged signup: expected 403, got %d", anonymous.Code)
	}

	member := do(t, routes, http.MethodPost, "/users",
		map[string]any{"username": "lead", "role": "TEAM_LEADER"}, "20", requestctx.RoleMember)
	if member.Code != http.StatusForbidden {
		t.Fatalf("member granting roles: expected 403, got %d", member.Code)
	}

	admin := do(t, routes, http.MethodPost, "/users",
		map[string]any{"username": "lead", "role": "TEAM_LEADER"}, "1", requestctx.RoleAdmin)
	if admin.Code != http.StatusCreated {
		t.Fatalf("admin granting roles: expected 201, got %d: %s", admin.Code, admin.Body)
	}
}

func TestBatchLookup(t *testing.T) {
	routes := newRoutes(t)

	ada := createUser(t, routes, "ada")
	createUser(t, routes, "grace")
	edsger := createUser(t, routes, "edsger")

	recorder := do(t, routes, http.MethodGet, "/users?ids="+ada.ID+","+edsger.ID+",unknown", nil, "", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("batch lookup: expected 200, got %d", recorder.Code)
	}
	var users []userResponse
	if err := json.NewDecoder(recorder.Body).Decode(&users); err != nil {
		t.Fatalf("decode users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, unknown ids skipped, got %d", len(users))
	}

	all := do(t, routes, http.MethodGet, "/users", nil, "", "")
	var everyone []userResponse
	if err := json.NewDecoder(all.Body).Decode(&everyone); err != nil {
		t.Fatalf("decode all users: %v", err)
	}
	if len(everyone) != 3 {
		t.Fatalf("expected 3 users, got %d", len(everyone))
	}
}

func TestGetUser(t *testing.T) {
	routes := newRoutes(t)
	ada := createUser(t, routes, "ada")

	found := do(t, routes, http.MethodGet, "/users/"+ada.ID, nil, "", "")
	if found.Code != http.StatusOK {
		t.Fatalf("get user: expected 200, got %d", found.Code)
	}

	missing := do(t, routes, http.MethodGet, "/users/absent", nil, "", "")
	if missing.Code != http.StatusNotFound {
		t.Fatalf("missing user: expected 404, got %d", missing.Code)
	}
}

func TestSetActiveRequiresAdmin(t *testing.T) {
	routes := newRoutes(t)
	ada := createUser(t, routes, "ada")

	denied := do(t, routes, http.MethodPut, "/users/"+ada.ID+"/active",
		map[string]any{"active": false}, "20", requestctx.RoleMember)
	if denied.Code != http.StatusForbidden {
		t.Fatalf("member deactivation: expected 403, got %d", denied.Code)
	}

	missingBody := do(t, routes, http.MethodPut, "/users/"+ada.ID+"/active",
		map[string]any{}, "1", requestctx.RoleAdmin)
	if missingBody.Code != http.StatusBadRequest {
		t.Fatalf("missing active field: expected 400, got %d", missingBody.Code)
	}

	deactivated := do(t, routes, http.MethodPut, "/users/"+ada.ID+"/active",
		map[string]any{"active": false}, "1", requestctx.RoleAdmin)
	if deactivated.Code != http.StatusOK {
		t.Fatalf("admin deactivation: expected 200, got %d: %s", deactivated.Code, deactivated.Body)
	}
	var updated userResponse
	if err := json.NewDecoder(deactivated.Body).Decode(&updated); err != nil {
		t.Fatalf("decode updated user: %v", err)
	}
	if updated.Active {
		t.Fatal("expected deactivated account")
	}
}
