package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/bahromnajmiddinov/food-delivery/module/driver/internal/repository/database"
)

var _ database.KeyValueStore = (*KeyValueStore)(nil)

// KeyValueStore persists opaque values in the kv_store table. Set always
// rewrites the whole value for the key.
type KeyValueStore struct {
	db *sql.DB
}

func NewKeyValueStore(db *sql.DB) *KeyValueStore {
	return &KeyValueStore{db: db}
}

func (s *KeyValueStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *KeyValueStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_store (key, value, updated_at) VALUES ($1, $2, now()) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, value,
	)
	return err
}
