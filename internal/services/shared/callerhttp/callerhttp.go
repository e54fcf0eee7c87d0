// Package callerhttp moves the gateway-asserted caller identity between
// HTTP headers and request contexts.
//
// The headers are trusted as-is; authentication happens upstream.
package callerhttp

import (
	"net/http"
	"strings"

	platformerrors "github.com/dkapsis/pms/internal/platform/errors"
	"github.com/dkapsis/pms/internal/platform/requestctx"
	"github.com/dkapsis/pms/internal/services/shared/httpjson"
)

const (
	// HeaderUserID carries the caller's user id.
	HeaderUserID = "X-User-Id"
	// HeaderUserRole carries the caller's role.
	HeaderUserRole = "X-User-Role"
)

// FromRequest extracts the caller asserted by the gateway headers.
//
// A missing user id is an authentication failure. A missing role defaults
// to MEMBER, matching the gateway's behavior for plain accounts; an
// unknown role value is rejected outright.
func FromRequest(r *http.Request) (requestctx.Caller, error) {
	userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if userID == "" {
		return requestctx.Caller{}, platformerrors.New(platformerrors.CodeCallerMissing, "missing X-User-Id header")
	}

	role := requestctx.Role(strings.TrimSpace(r.Header.Get(HeaderUserRole)))
	if role == "" {
		role = requestctx.RoleMember
	}
	if !role.Valid() {
		return requestctx.Caller{}, platformerrors.WithMetadata(
			platformerrors.CodeCallerInvalidRole,
			"unknown caller role",
			map[string]string{"role": string(role)},
		)
	}

	return requestctx.Caller{ID: userID, Role: role}, nil
}

// Require wraps next so it only runs with a caller in the request context.
func Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := FromRequest(r)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(requestctx.WithCaller(r.Context(), caller)))
	})
}

// Forward copies the caller identity from ctx onto an outbound request so
// collaborator services can apply their own authorization.
func Forward(req *http.Request) {
	caller, ok := requestctx.CallerFromContext(req.Context())
	if !ok {
		return
	}
	req.Header.Set(HeaderUserID, caller.ID)
	req.Header.Set(HeaderUserRole, string(caller.Role))
}
