// ABOUTME: TTL caches over remote listings
// ABOUTME: One paginated fetch per TTL window instead of one remote call per contact
package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/copainapp/copain/remote"
)

// DefaultCacheTTL bounds how long remote listing snapshots are trusted.
const DefaultCacheTTL = 5 * time.Minute

// existingIndex caches phone -> remote contact id, built from one paginated
// listing of the remote contact collection.
type existingIndex struct {
	mu       sync.Mutex
	entries  map[string]string
	loadedAt time.Time
}

// accountsCache caches phone -> registered account summary, built from one
// paginated listing of the remote users collection.
type accountsCache struct {
	mu       sync.Mutex
	entries  map[string]remote.RemoteUser
	loadedAt time.Time
}

func (e *Engine) existingStale() bool {
	e.existing.mu.Lock()
	defer e.existing.mu.Unlock()
	return e.existing.entries == nil || e.clock().Sub(e.existing.loadedAt) > e.cfg.CacheTTL
}

// ensureExisting refreshes the remote-existing index once per TTL window.
func (e *Engine) ensureExisting(ctx context.Context) error {
	if !e.existingStale() {
		return nil
	}

	entries := make(map[string]string)
	for page := 1; page <= e.cfg.MaxPages; page++ {
		contacts, pagination, err := e.client.ListContacts(ctx, page, e.cfg.PageSize)
		if err != nil {
			return fmt.Errorf("failed to load remote contact index: %w", err)
		}
		for _, rc := range contacts {
			if rc.Telephone != "" {
				entries[rc.Telephone] = rc.ID
			}
		}
		if page >= pagination.PageCount {
			break
		}
	}

	e.existing.mu.Lock()
	e.existing.entries = entries
	e.existing.loadedAt = e.clock()
	e.existing.mu.Unlock()

	e.logger.Debug("remote-existing index refreshed", zap.Int("entries", len(entries)))
	return nil
}

func (e *Engine) existingID(phone string) (string, bool) {
	e.existing.mu.Lock()
	defer e.existing.mu.Unlock()
	id, ok := e.existing.entries[phone]
	return id, ok
}

// markExisting records a phone as present remotely, e.g. after a create or a
// conflict response.
func (e *Engine) markExisting(phone, remoteID string) {
	e.existing.mu.Lock()
	defer e.existing.mu.Unlock()
	if e.existing.entries == nil {
		e.existing.entries = make(map[string]string)
	}
	e.existing.entries[phone] = remoteID
}

func (e *Engine) accountsStale() bool {
	e.accounts.mu.Lock()
	defer e.accounts.mu.Unlock()
	return e.accounts.entries == nil || e.clock().Sub(e.accounts.loadedAt) > e.cfg.CacheTTL
}

// ensureAccounts refreshes the registered-accounts cache once per TTL
// window. Total remote calls stay bounded by the page count, never by the
// number of contacts checked.
func (e *Engine) ensureAccounts(ctx context.Context) error {
	if !e.accountsStale() {
		return nil
	}

	entries := make(map[string]remote.RemoteUser)
	for page := 1; page <= e.cfg.MaxPages; page++ {
		users, pagination, err := e.client.ListUsers(ctx, page, e.cfg.PageSize)
		if err != nil {
			return fmt.Errorf("failed to load registered accounts: %w", err)
		}
		for _, u := range users {
			if u.Telephone != "" {
				entries[u.Telephone] = u
			}
		}
		if page >= pagination.PageCount {
			break
		}
	}

	e.accounts.mu.Lock()
	e.accounts.entries = entries
	e.accounts.loadedAt = e.clock()
	e.accounts.mu.Unlock()

	e.logger.Debug("registered-accounts cache refreshed", zap.Int("entries", len(entries)))
	return nil
}

// AccountSummary returns the cached registered account for a normalized
// phone. Pure cache read; never calls the remote.
func (e *Engine) AccountSummary(phone string) (remote.RemoteUser, bool) {
	e.accounts.mu.Lock()
	defer e.accounts.mu.Unlock()
	u, ok := e.accounts.entries[phone]
	return u, ok
}

// ResetCaches discards both remote snapshots. Required after any remote-side
// bulk mutation outside the normal push/detect paths, or stale "exists"
// answers will survive the mutation.
func (e *Engine) ResetCaches() {
	e.existing.mu.Lock()
	e.existing.entries = nil
	e.existing.mu.Unlock()

	e.accounts.mu.Lock()
	e.accounts.entries = nil
	e.accounts.mu.Unlock()

	e.logger.Debug("sync caches reset")
}
