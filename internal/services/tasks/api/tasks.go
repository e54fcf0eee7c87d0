package api

import (
	"log"
	"net/http"
	"net/url"
	"time"

	platformerrors "github.com/dkapsis/pms/internal/platform/errors"
	"github.com/dkapsis/pms/internal/platform/id"
	"github.com/dkapsis/pms/internal/platform/requestctx"
	"github.com/dkapsis/pms/internal/services/shared/httpjson"
	"github.com/dkapsis/pms/internal/services/tasks/policy"
	"github.com/dkapsis/pms/internal/services/tasks/storage"
	"github.com/dkapsis/pms/internal/services/tasks/task"
)

type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	DueDate     string `json:"due_date"`
	TeamID      string `json:"team_id"`
	AssignedTo  string `json:"assigned_to"`
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r)

	var req createTaskRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, err)
		return
	}
	if req.Status == "" {
		req.Status = string(task.StatusTodo)
	}
	if req.Priority == "" {
		req.Priority = string(task.PriorityMedium)
	}

	t := task.Task{
		ID:          id.MustNewID(),
		Title:       req.Title,
		Description: req.Description,
		Status:      task.Status(req.Status),
		Priority:    task.Priority(req.Priority),
		DueDate:     req.DueDate,
		TeamID:      req.TeamID,
		CreatedBy:   caller.ID,
		AssignedTo:  req.AssignedTo,
		CreatedAt:   time.Now().UTC(),
	}
	if err := t.Validate(); err != nil {
		httpjson.WriteError(w, err)
		return
	}

	leaderID, exists, err := h.resolveTeamLeader(r.Context(), t.TeamID)
	if err != nil {
		// Team existence can't be verified and leader-based authorization
		// can't run. Admins get a retryable failure; everyone else is denied
		// because an unresolved leader must never grant access.
		if caller.Role == requestctx.RoleAdmin {
			httpjson.WriteError(w, platformerrors.Wrap(platformerrors.CodeDirectoryUnavailable,
				"team directory unavailable", err))
			return
		}
		httpjson.WriteError(w, platformerrors.New(platformerrors.CodePermissionDenied,
			"caller may not create tasks for this team"))
		return
	}
	if !exists {
		httpjson.WriteError(w, platformerrors.WithMetadata(platformerrors.CodeTaskTeamNotFound,
			"task team does not exist", map[string]string{"team_id": t.TeamID}))
		return
	}
	if err := policy.CanCreate(caller, leaderID); err != nil {
		httpjson.WriteError(w, err)
		return
	}

	if err := h.store.CreateTask(r.Context(), t); err != nil {
		httpjson.WriteError(w, err)
		return
	}

	view, err := h.aggregator.GetTask(r.Context(), t.ID)
	if err != nil {
		httpjson.WriteError(w, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, view)
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := storage.TaskFilter{
		TeamID:     firstQueryValue(query, "teamId", "team_id"),
		AssignedTo: firstQueryValue(query, "assignedTo", "assigned_to"),
	}
	if raw := query.Get("status"); raw != "" {
		status := task.Status(raw)
		if !status.Valid() {
			httpjson.WriteError(w, platformerrors.WithMetadata(platformerrors.CodeTaskInvalidStatus,
				"invalid task status", map[string]string{"status": raw}))
			return
		}
		filter.Status = status
	}

	summaries, err := h.aggregator.ListTasks(r.Context(), filter)
	if err != nil {
		httpjson.WriteError(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, summaries)
}

// firstQueryValue returns the first non-empty value among the given query
// parameter spellings.
func firstQueryValue(query url.Values, names ...string) string {
	for _, name := range names {
		if value := query.Get(name); value != "" {
			return value
		}
	}
	return ""
}

func (h *Handler) getTask(w http.ResponseWriter, r *http.Request) {
	view, err := h.aggregator.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		httpjson.WriteError(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, view)
}

func (h *Handler) updateTask(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r)

	var requested map[string]any
	if err := httpjson.Decode(r, &requested); err != nil {
		httpjson.WriteError(w, err)
		return
	}
	if len(requested) == 0 {
		httpjson.WriteError(w, platformerrors.New(platformerrors.CodeTaskNoFields,
			"update requires at least one field"))
		return
	}

	names := make([]string, 0, len(requested))
	for name := range requested {
		if !policy.Known(name) {
			httpjson.WriteError(w, platformerrors.WithMetadata(platformerrors.CodeTaskUnknownField,
				"unknown task field", map[string]string{"field": name}))
			return
		}
		names = append(names, name)
	}

	snapshot, err := h.store.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		httpjson.WriteError(w, err)
		return
	}

	// A failed leader resolution leaves leaderID empty, which denies the
	// leader path without affecting admin or assignee rights.
	leaderID, _, err := h.resolveTeamLeader(r.Context(), snapshot.TeamID)
	if err != nil {
		leaderID = ""
	}
	if err := policy.AuthorizeUpdate(caller, snapshot, leaderID, names); err != nil {
		httpjson.WriteError(w, err)
		return
	}

	fields, err := validateUpdateFields(requested)
	if err != nil {
		httpjson.WriteError(w, err)
		return
	}

	if raw, ok := fields[policy.FieldTeamID]; ok {
		if err := h.authorizeTeamMove(r, caller, raw.(string)); err != nil {
			httpjson.WriteError(w, err)
			return
		}
	}

	if _, err := h.store.UpdateTaskFields(r.Context(), snapshot.ID, fields); err != nil {
		httpjson.WriteError(w, err)
		return
	}

	view, err := h.aggregator.GetTask(r.Context(), snapshot.ID)
	if err != nil {
		httpjson.WriteError(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, view)
}

// authorizeTeamMove checks that a task may be moved to targetTeamID: the
// team must exist, and a non-admin caller must lead it.
func (h *Handler) authorizeTeamMove(r *http.Request, caller requestctx.Caller, targetTeamID string) error {
	targetLeader, exists, err := h.resolveTeamLeader(r.Context(), targetTeamID)
	if err != nil {
		return platformerrors.Wrap(platformerrors.CodeDirectoryUnavailable,
			"team directory unavailable", err)
	}
	if !exists {
		return platformerrors.WithMetadata(platformerrors.CodeTaskTeamNotFound,
			"target team does not exist", map[string]string{"team_id": targetTeamID})
	}
	if caller.Role != requestctx.RoleAdmin && caller.ID != targetLeader {
		return platformerrors.New(platformerrors.CodePermissionDenied,
			"caller may not move the task to this team")
	}
	return nil
}

// validateUpdateFields type-checks and validates the requested values,
// producing the field map handed to the store. Field names are already
// authorized by this point.
func validateUpdateFields(requested map[string]any) (map[string]any, error) {
	fields := make(map[string]any, len(requested))
	for name, value := range requested {
		switch name {
		case policy.FieldAssignedTo:
			if value == nil {
				fields[name] = nil
				continue
			}
			text, ok := value.(string)
			if !ok {
				return nil, invalidFieldType(name)
			}
			// An empty assignee clears the field the same way null does,
			// so storage keeps a single NULL representation.
			if text == "" {
				fields[name] = nil
				continue
			}
			fields[name] = text
		case policy.FieldTitle:
			text, ok := value.(string)
			if !ok {
				return nil, invalidFieldType(name)
			}
			if text == "" {
				return nil, platformerrors.New(platformerrors.CodeTaskTitleEmpty, "task title is required")
			}
			fields[name] = text
		case policy.FieldDescription:
			text, ok := value.(string)
			if !ok {
				return nil, invalidFieldType(name)
			}
			fields[name] = text
		case policy.FieldStatus:
			text, ok := value.(string)
			if !ok || !task.Status(text).Valid() {
				return nil, platformerrors.WithMetadata(platformerrors.CodeTaskInvalidStatus,
					"invalid task status", map[string]string{"status": stringify(value)})
			}
			fields[name] = text
		case policy.FieldPriority:
			text, ok := value.(string)
			if !ok || !task.Priority(text).Valid() {
				return nil, platformerrors.WithMetadata(platformerrors.CodeTaskInvalidPriority,
					"invalid task priority", map[string]string{"priority": stringify(value)})
			}
			fields[name] = text
		case policy.FieldDueDate:
			text, ok := value.(string)
			if !ok {
				return nil, invalidFieldType(name)
			}
			if text != "" {
				if _, err := time.Parse(task.DueDateLayout, text); err != nil {
					return nil, platformerrors.WithMetadata(platformerrors.CodeTaskInvalidDueDate,
						"invalid task due date", map[string]string{"due_date": text})
				}
			}
			fields[name] = text
		case policy.FieldTeamID:
			text, ok := value.(string)
			if !ok {
				return nil, invalidFieldType(name)
			}
			if text == "" {
				return nil, platformerrors.New(platformerrors.CodeTaskTeamRequired, "task team id is required")
			}
			fields[name] = text
		}
	}
	return fields, nil
}

func invalidFieldType(name string) error {
	return platformerrors.WithMetadata(platformerrors.CodeInvalidBody,
		"field has the wrong type", map[string]string{"field": name})
}

func stringify(value any) string {
	if text, ok := value.(string); ok {
		return text
	}
	return "<non-string>"
}

func (h *Handler) deleteTask(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r)

	snapshot, err := h.store.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		httpjson.WriteError(w, err)
		return
	}

	leaderID, _, err := h.resolveTeamLeader(r.Context(), snapshot.TeamID)
	if err != nil {
		leaderID = ""
	}
	if err := policy.CanDelete(caller, snapshot, leaderID); err != nil {
		httpjson.WriteError(w, err)
		return
	}

	attachments, err := h.store.ListAttachments(r.Context(), snapshot.ID)
	if err != nil {
		httpjson.WriteError(w, err)
		return
	}
	if err := h.store.DeleteTask(r.Context(), snapshot.ID); err != nil {
		httpjson.WriteError(w, err)
		return
	}
	// Rows are gone; stored bytes are cleaned up best-effort.
	for _, att := range attachments {
		if err := h.files.Remove(att.StoredName); err != nil {
			log.Printf("remove attachment file %s: %v", att.StoredName, err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
