package repositories

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/jam/internal/lock"
)

var _ lock.Store = (*KVRepository)(nil)

// KVRepository stores opaque values by key in the kv table.
type KVRepository struct {
	db *sql.DB
}

// NewKVRepository creates a repository over a migrated database.
func NewKVRepository(db *sql.DB) *KVRepository {
	return &KVRepository{db: db}
}

// Get returns the value stored under key.
func (r *KVRepository) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := r.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, true, nil
}

// Update runs fn inside a write transaction so the read and the write are atomic with respect to other processes.
func (r *KVRepository) Update(key string, fn lock.UpdateFunc) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current []byte
	ok := true
	err = tx.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		ok = false
	case err != nil:
		return fmt.Errorf("failed to read %s: %w", key, err)
	}

	next, write, err := fn(current, ok)
	if err != nil {
		return err
	}
	if !write {
		return nil
	}

	if _, err := tx.Exec(upsertQuery, key, next); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (r *KVRepository) Delete(key string) error {
	if _, err := r.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Keys lists stored keys in order.
func (r *KVRepository) Keys() ([]string, error) {
	rows, err := r.db.Query(`SELECT key FROM kv ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

const upsertQuery = `
	INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
`
