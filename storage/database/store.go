package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-console/core"
)

const (
	getQuery    = `SELECT value FROM console_storage WHERE key = $1`
	deleteQuery = `DELETE FROM console_storage WHERE key = $1`
	putQuery    = `
		INSERT INTO console_storage (key, value, updated_at) VALUES (:key, :value, :updated_at)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
)

type row struct {
	Key       string    `db:"key"`
	Value     []byte    `db:"value"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Store keeps blobs in the console_storage table, keys namespaced by profile.
type Store struct {
	db     *sqlx.DB
	prefix string
}

var _ core.Storage = (*Store)(nil)

func NewStore(db *sqlx.DB, profile string) *Store {
	var prefix string
	if profile != "" {
		prefix = profile + "/"
	}
	return &Store{db: db, prefix: prefix}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	if err := s.db.GetContext(ctx, &value, getQuery, s.prefix+key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrKeyNotFound
		}
		return nil, errors.Wrap(err, "selecting value")
	}
	return value, nil
}

func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	r := row{Key: s.prefix + key, Value: data, UpdatedAt: time.Now().UTC()}
	if _, err := s.db.NamedExecContext(ctx, putQuery, r); err != nil {
		return errors.Wrap(err, "upserting value")
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, deleteQuery, s.prefix+key); err != nil {
		return errors.Wrap(err, "deleting value")
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
