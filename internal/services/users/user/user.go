// Package user defines the user service domain records.
package user

import (
	"time"

	"github.com/dkapsis/pms/internal/platform/errors"
	"github.com/dkapsis/pms/internal/platform/requestctx"
)

// User is an account in the identity directory.
//
// Deactivated users keep their record so historical references from other
// services stay resolvable; Active only gates new activity.
type User struct {
	ID        string
	Username  string
	FirstName string
	LastName  string
	Role      requestctx.Role
	Active    bool
	CreatedAt time.Time
}

// Validate checks the user invariants before persistence.
func (u User) Validate() error {
	if u.Username == "" {
		return errors.New(errors.CodeUserUsernameEmpty, "username is required")
	}
	if !u.Role.Valid() {
		return errors.WithMetadata(errors.CodeUserInvalidRole, "invalid user role",
			map[string]string{"role": string(u.Role)})
	}
	return nil
}
