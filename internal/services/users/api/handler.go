// Package api exposes the user service HTTP surface.
//
// The service doubles as the identity directory for its peers: batched
// GET /users?ids= lookups power cross-service enrichment and username
// snapshots, so those reads stay cheap and single-round-trip.
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
	"github.com/dkapsis/pms/internal/services/users/storage"
	"github.com/dkapsis/pms/internal/services/users/user"
)

// Handler serves the user service routes.
type Handler struct {
	store storage.UserStore
}

// New creates the user API handler.
func New(store storage.UserStore) *Handler {
	return &Handler{store: store}
}

// Routes builds the HTTP handler for the user service.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /users", h.createUser)
	mux.HandleFunc("GET /users", h.listUsers)
	mux.HandleFunc("GET /users/{id}", h.getUser)
	mux.Handle("PUT /users/{id}/active", callerhttp.Require(http.HandlerFunc(h.setActive)))

	mux.HandleFunc("GET /healthz", h.health)

	return mux
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	httpjson.Write(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createUserRequest struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

type userResponse struct {
	ID        string          `json:"id"`
	Username  string          `json:"username"`
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
	Role      requestctx.Role `json:"role"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
}

func toResponse(u user.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
	}
}

// createUser registers an account. Signup is open, but privileged roles can
// only be granted by an admin caller.
func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, err)
		return
	}

	role := requestctx.Role(req.Role)
	if role == "" {
		role = requestctx.RoleMember
	}
	if role != requestctx.RoleMember {
		caller, err := callerhttp.FromRequest(r)
		if err != nil || caller.Role != requestctx.RoleAdmin {
			httpjson.WriteError(w, platformerrors.New(platformerrors.CodePermissionDenied,
				"only admins may grant privileged roles"))
			return
		}
	}

	u := user.User{
		ID:        id.MustNewID(),
		Username:  strings.TrimSpace(req.Username),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      role,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := u.Validate(); err != nil {
		httpjson.WriteError(w, err)
		return
	}
	if err := h.store.CreateUser(r.Context(), u); err != nil {
		httpjson.WriteError(w, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, toResponse(u))
}

// listUsers serves both directory batch lookups (?ids=a,b,c) and the full
// listing when no ids are given.
func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	var ids []string
	if raw := strings.TrimSpace(r.URL.Query().Get("ids")); raw != "" {
		for _, value := range strings.Split(raw, ",") {
			if value = strings.TrimSpace(value); value != "" {
				ids = append(ids, value)
			}
		}
	}

	users, err := h.store.ListUsers(r.Context(), ids)
	if err != nil {
		httpjson.WriteError(w, err)
		return
	}
	responses := make([]userResponse, 0, len(users))
	for _, u := range users {
		responses = append(responses, toResponse(u))
	}
	httpjson.Write(w, http.StatusOK, responses)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.store.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		httpjson.WriteError(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, toResponse(u))
}

type setActiveRequest struct {
	Active *bool `json:"active"`
}

// setActive flips the account's active flag. Admin only; records are never
// deleted so historical references stay resolvable.
func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	caller, _ := requestctx.CallerFromContext(r.Context())
	if caller.Role != requestctx.RoleAdmin {
		httpjson.WriteError(w, platformerrors.New(platformerrors.CodePermissionDenied,
			"only admins may change account status"))
		return
	}

	var req setActiveRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, err)
		return
	}
	if req.Active == nil {
		httpjson.WriteError(w, platformerrors.New(platformerrors.CodeInvalidBody,
			"field \"active\" is required"))
		return
	}

	u, err := h.store.SetActive(r.Context(), r.PathValue("id"), *req.Active)
	if err != nil {
		httpjson.WriteError(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, toResponse(u))
}
