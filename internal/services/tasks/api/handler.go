// Package api exposes the task service HTTP surface.
//
// Handlers translate HTTP verbs and paths into calls on the aggregator,
// the permission policy, and the store; they hold no policy of their own.
package api

import (
	"context"
	"log"
	"net/http"

	"github.com/dkapsis/pms/internal/platform/requestctx"
	"github.com/dkapsis/pms/internal/services/shared/callerhttp"
	"github.com/dkapsis/pms/internal/services/shared/httpjson"
	"github.com/dkapsis/pms/internal/services/tasks/aggregate"
	"github.com/dkapsis/pms/internal/services/tasks/directory"
	"github.com/dkapsis/pms/internal/services/tasks/files"
	"github.com/dkapsis/pms/internal/services/tasks/storage"
)

// Handler serves the task service routes.
type Handler struct {
	store      storage.TaskStore
	aggregator *aggregate.Aggregator
	identities directory.IdentityDirectory
	teams      directory.TeamDirectory
	files      *files.Store
}

// New creates the task API handler.
func New(store storage.TaskStore, aggregator *aggregate.Aggregator, identities directory.IdentityDirectory, teams directory.TeamDirectory, fileStore *files.Store) *Handler {
	return &Handler{
		store:      store,
		aggregator: aggregator,
		identities: identities,
		teams:      teams,
		files:      fileStore,
	}
}

// Routes builds the HTTP handler for the task service.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /tasks", callerhttp.Require(http.HandlerFunc(h.createTask)))
	mux.Handle("GET /tasks", callerhttp.Require(http.HandlerFunc(h.listTasks)))
	mux.Handle("GET /tasks/{id}", callerhttp.Require(http.HandlerFunc(h.getTask)))
	mux.Handle("PUT /tasks/{id}", callerhttp.Require(http.HandlerFunc(h.updateTask)))
	mux.Handle("DELETE /tasks/{id}", callerhttp.Require(http.HandlerFunc(h.deleteTask)))
	mux.Handle("POST /tasks/{id}/comments", callerhttp.Require(http.HandlerFunc(h.addComment)))
	mux.Handle("POST /tasks/{id}/attachments", callerhttp.Require(http.HandlerFunc(h.addAttachment)))

	mux.HandleFunc("GET /files/{name}", h.serveFile)
	mux.HandleFunc("GET /healthz", h.health)

	return mux
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	httpjson.Write(w, http.StatusOK, map[string]string{"status": "ok"})
}

// resolveTeamLeader returns the leader id of teamID, whether the team
// exists, and any directory failure.
//
// An error means the directory could not answer; callers on an
// authorization path must treat that as a denial, never as permission.
func (h *Handler) resolveTeamLeader(ctx context.Context, teamID string) (leaderID string, exists bool, err error) {
	teams, err := h.teams.Lookup(ctx, []string{teamID})
	if err != nil {
		log.Printf("resolve team %s: %v", teamID, err)
		return "", false, err
	}
	team, ok := teams[teamID]
	if !ok {
		return "", false, nil
	}
	return team.LeaderID, true, nil
}

func callerFrom(r *http.Request) requestctx.Caller {
	caller, _ := requestctx.CallerFromContext(r.Context())
	return caller
}
