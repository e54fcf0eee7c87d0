// Package api exposes the team service HTTP surface.
//
// The service is the team directory for its peers: batched GET /teams?ids=
// lookups back both task enrichment and leader resolution, so a lookup miss
// on this API directly denies leader permissions downstream.
package api

import (
	"net/http"
	"strings"
	"time"

	platformerrors "github.com/dkapsis/pms/internal/platform/errors"
	"github.com/dkapsis/pms/internal/platform/id"
	"github.com/dkapsis/pms/internal/platform/requestctx"
	"github.com/dkapsis/pms/internal/services/shared/callerhttp"
	"github.com/dkapsis/pms/internal/services/shared/httpjson"
	"github.com/dkapsis/pms/internal/services/teams/storage"
	"github.com/dkapsis/pms/internal/services/teams/team"
)

// Handler serves the team service routes.
type Handler struct {
	store storage.TeamStore
}

// New creates the team API handler.
func New(store storage.TeamStore) *Handler {
	return &Handler{store: store}
}

// Routes builds the HTTP handler for the team service.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /teams", callerhttp.Require(http.HandlerFunc(h.createTeam)))
	mux.HandleFunc("GET /teams", h.listTeams)
	mux.HandleFunc("GET /teams/{id}", h.getTeam)
	mux.Handle("PUT /teams/{id}/members", callerhttp.Require(http.HandlerFunc(h.setMembers)))

	mux.HandleFunc("GET /healthz", h.health)

	return mux
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	httpjson.Write(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createTeamRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	LeaderID    string   `json:"leader_id"`
	MemberIDs   []string `json:"member_ids"`
}

type teamResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	LeaderID    string    `json:"leader_id"`
	MemberIDs   []string  `json:"member_ids"`
	CreatedAt   time.Time `json:"created_at"`
}

func toResponse(t team.Team) teamResponse {
	members := t.MemberIDs
	if members == nil {
		members = []string{}
	}
	return teamResponse{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		LeaderID:    t.LeaderID,
		MemberIDs:   members,
		CreatedAt:   t.CreatedAt,
	}
}

// createTeam registers a team. Admin only.
func (h *Handler) createTeam(w http.ResponseWriter, r *http.Request) {
	caller, _ := requestctx.CallerFromContext(r.Context())
	if caller.Role != requestctx.RoleAdmin {
		httpjson.WriteError(w, platformerrors.New(platformerrors.CodePermissionDenied,
			"only admins may create teams"))
		return
	}

	var req createTeamRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, err)
		return
	}

	t := team.Team{
		ID:          id.MustNewID(),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		LeaderID:    strings.TrimSpace(req.LeaderID),
		MemberIDs:   req.MemberIDs,
		CreatedAt:   time.Now().UTC(),
	}
	if err := t.Validate(); err != nil {
		httpjson.WriteError(w, err)
		return
	}
	if err := h.store.CreateTeam(r.Context(), t); err != nil {
		httpjson.WriteError(w, err)
		return
	}

	created, err := h.store.GetTeam(r.Context(), t.ID)
	if err != nil {
		httpjson.WriteError(w, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, toResponse(created))
}

// listTeams serves both directory batch lookups (?ids=a,b,c) and the full
// listing when no ids are given.
func (h *Handler) listTeams(w http.ResponseWriter, r *http.Request) {
	var ids []string
	if raw := strings.TrimSpace(r.URL.Query().Get("ids")); raw != "" {
		for _, value := range strings.Split(raw, ",") {
			if value = strings.TrimSpace(value); value != "" {
				ids = append(ids, value)
			}
		}
	}

	teams, err := h.store.ListTeams(r.Context(), ids)
	if err != nil {
		httpjson.WriteError(w, err)
		return
	}
	responses := make([]teamResponse, 0, len(teams))
	for _, t := range teams {
		responses = append(responses, toResponse(t))
	}
	httpjson.Write(w, http.StatusOK, responses)
}

func (h *Handler) getTeam(w http.ResponseWriter, r *http.Request) {
	t, err := h.store.GetTeam(r.Context(), r.PathValue("id"))
	if err != nil {
		httpjson.WriteError(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, toResponse(t))
}

type setMembersRequest struct {
	MemberIDs []string `json:"member_ids"`
}

// setMembers replaces the team's member set. Allowed for an admin or the
// team's own leader.
func (h *Handler) setMembers(w http.ResponseWriter, r *http.Request) {
	caller, _ := requestctx.CallerFromContext(r.Context())

	t, err := h.store.GetTeam(r.Context(), r.PathValue("id"))
	if err != nil {
		httpjson.WriteError(w, err)
		return
	}
	if caller.Role != requestctx.RoleAdmin && caller.ID != t.LeaderID {
		httpjson.WriteError(w, platformerrors.New(platformerrors.CodePermissionDenied,
			"only admins or the team leader may change membership"))
		return
	}

	var req setMembersRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, err)
		return
	}

	updated, err := h.store.SetMembers(r.Context(), t.ID, req.MemberIDs)
	if err != nil {
		httpjson.WriteError(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, toResponse(updated))
}
