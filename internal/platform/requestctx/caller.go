// Package requestctx carries per-request caller identity through contexts.
//
// Identity is asserted by trusted gateway headers; this package only moves
// it between the transport layer and domain code, it never verifies it.
package requestctx

import "context"

// Role is the caller role asserted by the upstream gateway.
type Role string

const (
	// RoleAdmin grants full access to every record.
	RoleAdmin Role = "ADMIN"
	// RoleTeamLeader grants access scoped to the teams the caller leads.
	RoleTeamLeader Role = "TEAM_LEADER"
	// RoleMember grants access scoped to the caller's own relationships.
	RoleMember Role = "MEMBER"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeamLeader, RoleMember:
		return true
	}
	return false
}

// Caller identifies the request originator.
type Caller struct {
	ID   string
	Role Role
}

// callerContextKey is the context key for the asserted caller.
type callerContextKey struct{}

// WithCaller stores the caller identity in context.
func WithCaller(ctx context.Context, caller Caller) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext returns the caller stored in context, if any.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	if ctx == nil {
		return Caller{}, false
	}
	caller, ok := ctx.Value(callerContextKey{}).(Caller)
	if !ok || caller.ID == "" {
		return Caller{}, false
	}
	return caller, true
}
