// ABOUTME: Persistence bridge between the in-memory store and named SQLite collections
// ABOUTME: Serializes per-source contact lists plus a metadata record; fail-open on load
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/copainapp/copain/db"
	"github.com/copainapp/copain/models"
)

// Flush serializes the whole entity set into the named per-source
// collections and the metadata record. Bulk callers defer individual
// persists and call this once.
func (r *Repository) Flush() error {
	if r.database == nil {
		return nil
	}

	r.mu.RLock()
	bySource := make(map[models.Source][]models.Contact, len(models.Sources))
	for _, c := range r.contacts {
		bySource[c.Source] = append(bySource[c.Source], c)
	}
	count := len(r.contacts)
	r.mu.RUnlock()

	payloads := make(map[string][]byte, len(models.Sources))
	for _, source := range models.Sources {
		list := bySource[source]
		if list == nil {
			list = []models.Contact{}
		}
		data, err := json.Marshal(list)
		if err != nil {
			return fmt.Errorf("failed to serialize %s collection: %w", source, err)
		}
		payloads[string(source)] = data
	}

	if err := db.SaveCollections(r.database, payloads, count); err != nil {
		// Writes fail open like reads: the in-memory store stays usable.
		r.logger.Warn("failed to persist collections", zap.Error(err))
		return err
	}
	return nil
}

// load reads every named collection into the store. Any failure leaves the
// store empty; the caller records the error instead of blocking startup.
func (r *Repository) load() error {
	loaded := make([]models.Contact, 0)
	for _, source := range models.Sources {
		payload, err := db.LoadCollection(r.database, string(source))
		if err != nil {
			return err
		}
		if payload == nil {
			continue
		}
		var list []models.Contact
		if err := json.Unmarshal(payload, &list); err != nil {
			return fmt.Errorf("corrupt %s collection: %w", source, err)
		}
		loaded = append(loaded, list...)
	}

	r.mu.Lock()
	for i := range loaded {
		c := loaded[i]
		if c.Phone == "" {
			continue
		}
		r.contacts[c.Phone] = c
		r.ix.insert(&c)
	}
	r.evMu.Lock()
	r.mu.Unlock()

	if len(loaded) > 0 {
		r.publish(Event{Type: EventLoad, Batch: loaded})
	}
	r.evMu.Unlock()
	return nil
}

// Metadata exposes the persisted metadata record.
func (r *Repository) Metadata() (*db.Metadata, error) {
	if r.database == nil {
		return nil, fmt.Errorf("store is memory-only")
	}
	return db.GetMetadata(r.database)
}

func dbClear(database *sql.DB) error {
	return db.ClearCollections(database)
}
