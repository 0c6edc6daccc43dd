// Package file keeps ledger snapshots as gzip files in a directory.
package file

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"

	"github.com/xenking/minishop/internal/domain/account"
)

const ext = ".json.gz"

var _ account.Store = (*Store)(nil)

// Store writes each key to <dir>/<key>.json.gz. Writes go to a temporary
// file first and are renamed into place, so readers never see a partial
// snapshot.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrapf(err, "create %s", dir)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", errors.Errorf("invalid snapshot key %q", key)
	}
	return filepath.Join(s.dir, key+ext), nil
}

// Load returns the decompressed snapshot saved under key.
func (s *Store) Load(_ context.Context, key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, account.ErrNoSnapshot
		}
		return nil, errors.Wrapf(err, "open %s", p)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "create gzip reader for %s", p)
	}
	defer func() { _ = gz.Close() }()

	data, err := io.ReadAll(gz)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", p)
	}
	return data, nil
}

// Save compresses data and atomically replaces the file for key.
func (s *Store) Save(_ context.Context, key string, data []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	gz := pgzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return errors.Wrap(err, "compress snapshot")
	}
	if err := gz.Close(); err != nil {
		return errors.Wrap(err, "compress snapshot")
	}

	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "write %s", tmp.Name())
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "sync %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return errors.Wrapf(err, "rename to %s", p)
	}
	return nil
}
