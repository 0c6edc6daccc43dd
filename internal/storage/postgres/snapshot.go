package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/minishop/internal/domain/account"
)

const (
	loadSnapshotSQL = `SELECT data FROM snapshots WHERE key = $1`

	saveSnapshotSQL = `INSERT INTO snapshots (key, data, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`
)

var _ account.Store = (*SnapshotStore)(nil)

// SnapshotStore keeps snapshots in a jsonb column.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore returns a SnapshotStore that uses the given pool.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Load returns the snapshot saved under key.
func (s *SnapshotStore) Load(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	if err := s.pool.QueryRow(ctx, loadSnapshotSQL, key).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrNoSnapshot
		}
		return nil, errors.Wrapf(err, "load snapshot %q", key)
	}
	return data, nil
}

// Save replaces the snapshot under key.
func (s *SnapshotStore) Save(ctx context.Context, key string, data []byte) error {
	if _, err := s.pool.Exec(ctx, saveSnapshotSQL, key, data); err != nil {
		return errors.Wrapf(err, "save snapshot %q", key)
	}
	return nil
}
