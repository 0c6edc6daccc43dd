package memory

import (
	"context"
	"sync"

	"github.com/xenking/minishop/internal/domain/account"
)

var _ account.Directory = (*Directory)(nil)

// Directory keeps users in a map keyed by email. Registrations live only as
// long as the process.
type Directory struct {
	mu    sync.RWMutex
	users map[string]account.User
}

// NewDirectory returns a Directory seeded with users.
func NewDirectory(users ...account.User) *Directory {
	d := &Directory{users: make(map[string]account.User, len(users))}
	for _, u := range users {
		d.users[u.Email] = u
	}
	return d
}

// FindByEmail returns the user registered with email.
func (d *Directory) FindByEmail(_ context.Context, email string) (*account.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[email]
	if !ok {
		return nil, account.ErrUserNotFound
	}
	return &u, nil
}

// Insert adds u, failing with account.ErrEmailTaken on a duplicate email.
func (d *Directory) Insert(_ context.Context, u account.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.users[u.Email]; ok {
		return account.ErrEmailTaken
	}
	d.users[u.Email] = u
	return nil
}
