package postgres

import (
	"context"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xenking/minishop/internal/domain/account"
)

const (
	findUserByEmailSQL = `SELECT id, name, email, password FROM users WHERE email = $1`

	insertUserSQL = `INSERT INTO users (id, name, email, password) VALUES ($1, $2, $3, $4)`

	upsertUserSQL = `INSERT INTO users (id, name, email, password) VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO NOTHING`

	listEmailsSQL = `SELECT email FROM users`

	uniqueViolation = "23505"
)

// Filter sizing for the email set.
const (
	emailCapacity = 100_000
	emailFPR      = 0.001
)

var _ account.Directory = (*UserDirectory)(nil)

// UserDirectory implements account.Directory backed by PostgreSQL.
//
// Emails known to the directory are tracked in a bloom filter so lookups for
// unknown addresses skip the database. Users inserted by other writers become
// visible once Refresh re-warms the filter. The filter only ever grows; users
// deleted out of band keep producing false positives until restart.
type UserDirectory struct {
	pool *pgxpool.Pool

	mu     sync.RWMutex
	emails *bloom.BloomFilter
}

// NewUserDirectory returns a UserDirectory with an empty filter. Call Warm
// before serving lookups.
func NewUserDirectory(pool *pgxpool.Pool) *UserDirectory {
	return &UserDirectory{
		pool:   pool,
		emails: bloom.NewWithEstimates(emailCapacity, emailFPR),
	}
}

// Warm loads every stored email into the filter and returns how many were
// added.
func (d *UserDirectory) Warm(ctx context.Context) (int, error) {
	rows, err := d.pool.Query(ctx, listEmailsSQL)
	if err != nil {
		return 0, errors.Wrap(err, "list emails")
	}
	emails, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return 0, errors.Wrap(err, "scan emails")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, email := range emails {
		d.emails.AddString(email)
	}
	return len(emails), nil
}

// Refresh calls Warm every interval until ctx is done. Failed refreshes are
// logged and retried on the next tick.
func (d *UserDirectory) Refresh(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := d.Warm(ctx); err != nil && ctx.Err() == nil {
				zctx.From(ctx).Warn("Refresh user directory", zap.Error(err))
			}
		}
	}
}

// FindByEmail returns the user registered with email.
func (d *UserDirectory) FindByEmail(ctx context.Context, email string) (*account.User, error) {
	if !d.mayContain(email) {
		return nil, account.ErrUserNotFound
	}

	rows, err := d.pool.Query(ctx, findUserByEmailSQL, email)
	if err != nil {
		return nil, errors.Wrap(err, "find user by email")
	}
	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrUserNotFound
		}
		return nil, errors.Wrap(err, "find user by email")
	}
	return &u, nil
}

// Insert stores u. A duplicate email yields account.ErrEmailTaken.
func (d *UserDirectory) Insert(ctx context.Context, u account.User) error {
	if _, err := d.pool.Exec(ctx, insertUserSQL, u.ID, u.Name, u.Email, u.Password); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			d.remember(u.Email)
			return account.ErrEmailTaken
		}
		return errors.Wrap(err, "insert user")
	}
	d.remember(u.Email)
	return nil
}

// Seed inserts users whose email is not yet taken.
func (d *UserDirectory) Seed(ctx context.Context, users []account.User) error {
	batch := &pgx.Batch{}
	for _, u := range users {
		batch.Queue(upsertUserSQL, u.ID, u.Name, u.Email, u.Password)
	}
	if err := d.pool.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrap(err, "seed users")
	}
	for _, u := range users {
		d.remember(u.Email)
	}
	return nil
}

func (d *UserDirectory) mayContain(email string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.emails.TestString(email)
}

func (d *UserDirectory) remember(email string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.emails.AddString(email)
}

func scanUser(row pgx.CollectableRow) (account.User, error) {
	var u account.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Password)
	return u, err
}
