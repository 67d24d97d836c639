// ABOUTME: Named-collection persistence for the contact store
// ABOUTME: Each source's contact list is one serialized payload row plus a metadata record
package db

import (
	"database/sql"
	"fmt"
	"time"
)

// Metadata describes the persisted store as a whole.
type Metadata struct {
	SchemaVersion int
	LastUpdate    *time.Time
	ContactCount  int
}

// SaveCollections writes every named payload and the metadata record in one
// transaction, so a crashed flush never leaves collections half-updated.
func SaveCollections(db *sql.DB, payloads map[string][]byte, count int) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // Safe even after commit
	}()

	for name, payload := range payloads {
		_, err := tx.Exec(`
			INSERT INTO collections (name, payload, updated_at)
			VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(name) DO UPDATE SET
				payload = excluded.payload,
				updated_at = CURRENT_TIMESTAMP
		`, name, string(payload))
		if err != nil {
			return fmt.Errorf("failed to save collection %q: %w", name, err)
		}
	}

	_, err = tx.Exec(`
		UPDATE metadata
		SET schema_version = ?, last_update = CURRENT_TIMESTAMP, contact_count = ?
		WHERE id = 1
	`, SchemaVersion, count)
	if err != nil {
		return fmt.Errorf("failed to update metadata: %w", err)
	}

	return tx.Commit()
}

// LoadCollection reads one named payload. A missing collection yields nil
// with no error.
func LoadCollection(db *sql.DB, name string) ([]byte, error) {
	var payload string
	err := db.QueryRow(`SELECT payload FROM collections WHERE name = ?`, name).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load collection %q: %w", name, err)
	}
	return []byte(payload), nil
}

// GetMetadata reads the store metadata record.
func GetMetadata(db *sql.DB) (*Metadata, error) {
	var meta Metadata
	var lastUpdate sql.NullTime

	err := db.QueryRow(`
		SELECT schema_version, last_update, contact_count FROM metadata WHERE id = 1
	`).Scan(&meta.SchemaVersion, &lastUpdate, &meta.ContactCount)
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata: %w", err)
	}

	if lastUpdate.Valid {
		meta.LastUpdate = &lastUpdate.Time
	}

	return &meta, nil
}

// ClearCollections removes every stored collection and resets the metadata
// count.
func ClearCollections(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.Exec(`DELETE FROM collections`); err != nil {
		return fmt.Errorf("failed to clear collections: %w", err)
	}
	if _, err := tx.Exec(`
		UPDATE metadata SET last_update = CURRENT_TIMESTAMP, contact_count = 0 WHERE id = 1
	`); err != nil {
		return fmt.Errorf("failed to reset metadata: %w", err)
	}

	return tx.Commit()
}
