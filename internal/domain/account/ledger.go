package account

import (
	"context"
	"crypto/subtle"
	"slices"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// DefaultStorageKey is the key the ledger snapshot is saved under.
const DefaultStorageKey = "auth-storage"

// Ledger holds the identity of the session and its order history.
//
// All mutations run under a single lock. Each builds the next state, persists
// it and only then swaps it in, so a failed save leaves the ledger as it was
// and stored snapshots follow the order of mutations.
type Ledger struct {
	users   Directory
	store   Store
	key     string
	latency time.Duration
	now     func() time.Time
	newID   func() (string, error)

	mu    sync.RWMutex
	state state
}

type state struct {
	identity *Identity
	orders   []Order
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithStore persists the ledger snapshot in store under key after every
// mutation. An empty key selects DefaultStorageKey.
func WithStore(store Store, key string) Option {
	return func(l *Ledger) {
		if key == "" {
			key = DefaultStorageKey
		}
		l.store = store
		l.key = key
	}
}

// WithLatency delays Login and Register by d to mimic a network round trip.
func WithLatency(d time.Duration) Option {
	return func(l *Ledger) {
		l.latency = d
	}
}

// WithClock overrides the clock used for order timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// NewLedger creates a Ledger authenticating against users. Without options
// the ledger has no latency and keeps its state in memory only.
func NewLedger(users Directory, opts ...Option) *Ledger {
	l := &Ledger{
		users: users,
		key:   DefaultStorageKey,
		now:   time.Now,
		newID: newTimeOrderedID,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func newTimeOrderedID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Login sets the identity when email and password match a directory user.
// A mismatch reports false without saying which of the two was wrong.
func (l *Ledger) Login(ctx context.Context, email, password string) (bool, error) {
	if err := l.wait(ctx); err != nil {
		return false, err
	}

	u, err := l.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, errors.Wrap(err, "find user")
	}
	if subtle.ConstantTimeCompare([]byte(u.Password), []byte(password)) != 1 {
		return false, nil
	}

	id := u.Identity
	if err := l.mutate(ctx, func(next *state) {
		next.identity = &id
	}); err != nil {
		return false, err
	}
	return true, nil
}

// Logout clears the identity. The order history is kept.
func (l *Ledger) Logout(ctx context.Context) error {
	return l.mutate(ctx, func(next *state) {
		next.identity = nil
	})
}

// Register adds a user to the directory and logs them in. It reports false
// when the email is already registered.
func (l *Ledger) Register(ctx context.Context, name, email, password string) (bool, error) {
	if err := l.wait(ctx); err != nil {
		return false, err
	}

	switch _, err := l.users.FindByEmail(ctx, email); {
	case err == nil:
		return false, nil
	case !errors.Is(err, ErrUserNotFound):
		return false, errors.Wrap(err, "find user")
	}

	id, err := l.newID()
	if err != nil {
		return false, errors.Wrap(err, "generate user id")
	}
	u := User{
		Identity: Identity{ID: id, Name: name, Email: email},
		Password: password,
	}
	if err := l.users.Insert(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return false, nil
		}
		return false, errors.Wrap(err, "insert user")
	}

	if err := l.mutate(ctx, func(next *state) {
		next.identity = &u.Identity
	}); err != nil {
		return false, err
	}
	return true, nil
}

// AddOrder appends a new order built from in. The items are copied; the
// caller's snapshot is trusted as is.
func (l *Ledger) AddOrder(ctx context.Context, in OrderInput) (Order, error) {
	id, err := l.newID()
	if err != nil {
		return Order{}, errors.Wrap(err, "generate order id")
	}
	o := Order{
		ID:        id,
		CreatedAt: l.now().UTC(),
		Status:    in.Status,
		Total:     in.Total,
		Items:     slices.Clone(in.Items),
	}

	if err := l.mutate(ctx, func(next *state) {
		next.orders = append(slices.Clip(next.orders), o)
	}); err != nil {
		return Order{}, err
	}
	return o, nil
}

// Identity returns the current identity, if any.
func (l *Ledger) Identity() (Identity, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.state.identity == nil {
		return Identity{}, false
	}
	return *l.state.identity, true
}

// LoggedIn reports whether an identity is set.
func (l *Ledger) LoggedIn() bool {
	_, ok := l.Identity()
	return ok
}

// Orders returns a copy of the order history, oldest first.
func (l *Ledger) Orders() []Order {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return slices.Clone(l.state.orders)
}

// Restore replaces the ledger state with the stored snapshot. A missing
// snapshot leaves the ledger empty.
func (l *Ledger) Restore(ctx context.Context) error {
	if l.store == nil {
		return nil
	}

	data, err := l.store.Load(ctx, l.key)
	if err != nil {
		if errors.Is(err, ErrNoSnapshot) {
			return nil
		}
		return errors.Wrap(err, "load snapshot")
	}

	snap, err := UnmarshalSnapshot(data)
	if err != nil {
		return errors.Wrap(err, "decode snapshot")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	next := state{orders: snap.Orders}
	if snap.LoggedIn && snap.User != nil {
		u := *snap.User
		next.identity = &u
	}
	l.state = next
	return nil
}

func (s state) snapshot() Snapshot {
	snap := Snapshot{
		Version:  SnapshotVersion,
		Orders:   slices.Clone(s.orders),
		LoggedIn: s.identity != nil,
	}
	if s.identity != nil {
		u := *s.identity
		snap.User = &u
	}
	return snap
}

// mutate applies fn to a copy of the state, saves the copy and swaps it in.
// fn must not modify slices shared with the current state in place.
func (l *Ledger) mutate(ctx context.Context, fn func(next *state)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.state
	fn(&next)
	if l.store != nil {
		if err := l.store.Save(ctx, l.key, MarshalSnapshot(next.snapshot())); err != nil {
			return errors.Wrap(err, "save snapshot")
		}
	}
	l.state = next
	return nil
}

func (l *Ledger) wait(ctx context.Context) error {
	if l.latency <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(l.latency)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
