// Package storage defines the persistence boundary of the user service.
package storage

import (
	"context"

	"github.com/dkapsis/pms/internal/platform/errors"
	"github.com/dkapsis/pms/internal/services/users/user"
)

// ErrNotFound indicates a requested user is missing.
var ErrNotFound = errors.New(errors.CodeNotFound, "user not found")

// ErrUsernameTaken indicates a username uniqueness violation.
var ErrUsernameTaken = errors.New(errors.CodeUserUsernameTaken, "username already taken")

// UserStore persists user records.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) error
	GetUser(ctx context.Context, id string) (user.User, error)
	// ListUsers returns the users with the given ids in creation order.
	// An empty ids slice returns every user. Unknown ids are skipped.
	ListUsers(ctx context.Context, ids []string) ([]user.User, error)
	SetActive(ctx context.Context, id string, active bool) (user.User, error)
}
