package repositories

import (
	"database/sql"
	"fmt"
	"time"
)

// KeyValueRepository stores string values under keys scoped to a namespace.
type KeyValueRepository struct {
	db        *sql.DB
	namespace string
}

// NewKeyValueRepository creates a new [KeyValueRepository] with the given database connection
func NewKeyValueRepository(db *sql.DB, namespace string) *KeyValueRepository {
	return &KeyValueRepository{db: db, namespace: namespace}
}

// Get returns the value for key and whether it was present.
func (r *KeyValueRepository) Get(key string) (string, bool, error) {
	query := `SELECT value FROM kv_store WHERE namespace = ? AND key = ?`

	var value string
	err := r.db.QueryRow(query, r.namespace, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query key %s: %w", key, err)
	}
	return value, true, nil
}

// Set inserts or replaces the value for key.
func (r *KeyValueRepository) Set(key, value string) error {
	query := `
		INSERT INTO kv_store (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`

	if _, err := r.db.Exec(query, r.namespace, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to store key %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (r *KeyValueRepository) Delete(key string) error {
	if _, err := r.db.Exec(`DELETE FROM kv_store WHERE namespace = ? AND key = ?`, r.namespace, key); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Keys lists the keys in the namespace in sorted order.
func (r *KeyValueRepository) Keys() ([]string, error) {
	rows, err := r.db.Query(`SELECT key FROM kv_store WHERE namespace = ? ORDER BY key`, r.namespace)
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

// Clear removes every key in the namespace.
func (r *KeyValueRepository) Clear() error {
	if _, err := r.db.Exec(`DELETE FROM kv_store WHERE namespace = ?`, r.namespace); err != nil {
		return fmt.Errorf("failed to clear namespace %s: %w", r.namespace, err)
	}
	return nil
}
