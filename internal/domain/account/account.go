// Package account implements the account and order ledger: the identity of
// the current session, mock authentication against a user directory, and the
// append-only order history.
package account

import (
	"context"

	"github.com/go-faster/errors"
)

var (
	// ErrUserNotFound is returned by a Directory when no user has the email.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken is returned by a Directory when inserting a duplicate email.
	ErrEmailTaken = errors.New("email already registered")
)

// Identity is the authenticated user of the session. It never carries a
// credential.
type Identity struct {
	ID    string
	Name  string
	Email string
}

// User is a directory record.
type User struct {
	Identity
	Password string
}

// Directory stores the users that can log in.
type Directory interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	Insert(ctx context.Context, u User) error
}

// DemoUsers returns the users every fresh directory is seeded with.
func DemoUsers() []User {
	return []User{
		{
			Identity: Identity{ID: "1", Name: "John Doe", Email: "john@example.com"},
			Password: "password123",
		},
		{
			Identity: Identity{ID: "2", Name: "Jane Smith", Email: "jane@example.com"},
			Password: "password123",
		},
	}
}
