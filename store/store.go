// ABOUTME: The authoritative unified contact store
// ABOUTME: In-memory map keyed by normalized phone with indexes, change feed, and SQLite persistence
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/copainapp/copain/models"
)

var (
	// ErrNotFound is returned when no contact exists for a phone.
	ErrNotFound = errors.New("contact not found")
	// ErrDemotion is returned when a mutation would silently move a contact
	// backwards through its lifecycle. Only the explicit restore flow may
	// demote.
	ErrDemotion = errors.New("contact source cannot be demoted")
	// ErrBatchActive is returned when a second batch is begun before the
	// first committed.
	ErrBatchActive = errors.New("a batch is already active")
)

// sourceRank orders the lifecycle. Curated and invited share a rank so an
// invitation can be cancelled back to curated without tripping the guard.
var sourceRank = map[models.Source]int{
	models.SourceDevice:     0,
	models.SourceCurated:    1,
	models.SourceInvited:    1,
	models.SourceRegistered: 2,
}

// Repository is the single shared mutable resource of the engine. All
// mutation paths go through its methods; the mutex linearizes writers.
type Repository struct {
	mu       sync.RWMutex
	contacts map[string]models.Contact
	ix       *indexes
	cache    *queryCache

	database *sql.DB // nil means memory-only
	logger   *zap.Logger
	clock    func() time.Time

	subsMu    sync.Mutex
	subs      map[int]func(Event)
	nextSubID int

	// evMu is acquired before mu is released on a publishing mutation, so
	// events reach subscribers in the same order the mutations linearized.
	evMu sync.Mutex

	batching     bool
	batchChanged []models.Contact

	loadErr error
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock injects the time source used by the query cache and timestamps.
func WithClock(clock func() time.Time) Option {
	return func(r *Repository) { r.clock = clock }
}

// WithQueryCacheTTL overrides the search cache TTL.
func WithQueryCacheTTL(ttl time.Duration) Option {
	return func(r *Repository) {
		r.cache = newQueryCache(ttl, r.clock)
	}
}

// NewRepository builds the store and loads the persisted collections. A
// persistence read failure does not block startup: the store comes up empty
// and the error is retained for LoadError.
func NewRepository(database *sql.DB, logger *zap.Logger, opts ...Option) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Repository{
		contacts: make(map[string]models.Contact),
		ix:       newIndexes(),
		database: database,
		logger:   logger,
		clock:    time.Now,
		subs:     make(map[int]func(Event)),
	}
	r.cache = newQueryCache(DefaultQueryCacheTTL, func() time.Time { return r.clock() })
	for _, opt := range opts {
		opt(r)
	}

	if database != nil {
		if err := r.load(); err != nil {
			r.loadErr = err
			r.logger.Warn("persisted store unreadable, starting empty", zap.Error(err))
		}
	}

	return r
}

// LoadError reports whether the initial load fell back to an empty store.
// Callers should surface this to the user rather than silently losing data.
func (r *Repository) LoadError() error {
	return r.loadErr
}

// GetAll returns every contact, ordered by phone for determinism.
func (r *Repository) GetAll() []models.Contact {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *Repository) snapshotLocked() []models.Contact {
	all := make([]models.Contact, 0, len(r.contacts))
	for _, c := range r.contacts {
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Phone < all[j].Phone })
	return all
}

// GetByPhone returns the contact for a normalized phone, if present.
func (r *Repository) GetByPhone(phone string) (models.Contact, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.contacts[phone]
	return c, ok
}

// GetBySource returns contacts in one lifecycle state, ordered by phone.
func (r *Repository) GetBySource(source models.Source) []models.Contact {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Contact
	for _, c := range r.contacts {
		if c.Source == source {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Phone < out[j].Phone })
	return out
}

// Count returns the number of contacts in the store.
func (r *Repository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.contacts)
}

// Add inserts a contact, or merges it forward into the existing one when the
// phone is already present: missing descriptive fields are filled in, and the
// source only advances. At most one contact per normalized phone ever exists.
func (r *Repository) Add(contact models.Contact) error {
	return r.addOne(contact, false)
}

// AddMany inserts a batch, merging duplicates by phone.
func (r *Repository) AddMany(contacts []models.Contact) error {
	for i := range contacts {
		if err := r.addOne(contacts[i], true); err != nil {
			return err
		}
	}
	return r.persistAfterMutation(false)
}

func (r *Repository) addOne(contact models.Contact, deferPersist bool) error {
	if contact.Phone == "" {
		return fmt.Errorf("contact has no phone")
	}

	r.mu.Lock()

	now := r.clock()
	existing, exists := r.contacts[contact.Phone]
	var stored models.Contact

	if exists {
		stored = mergeForward(existing, contact, now)
		r.ix.replace(&existing, &stored)
	} else {
		stored = contact
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = now
		}
		stored.UpdatedAt = now
		r.ix.insert(&stored)
	}
	r.contacts[stored.Phone] = stored

	evType := EventAdd
	if exists {
		evType = EventUpdate
	}
	r.recordChangeLocked(stored)
	batching := r.batching
	if !batching {
		r.evMu.Lock()
	}
	r.mu.Unlock()

	if !batching {
		r.publish(Event{Type: evType, Contact: &stored})
		r.evMu.Unlock()
	}
	if deferPersist {
		return nil
	}
	return r.persistAfterMutation(false)
}

// mergeForward combines an incoming record into the stored one. The stored
// contact's identity and lifecycle position win; the incoming record only
// fills gaps or advances the source.
func mergeForward(existing, incoming models.Contact, now time.Time) models.Contact {
	merged := existing

	if merged.DisplayName == "" {
		merged.DisplayName = incoming.DisplayName
	}
	if merged.GivenName == "" {
		merged.GivenName = incoming.GivenName
	}
	if merged.FamilyName == "" {
		merged.FamilyName = incoming.FamilyName
	}
	if merged.Email == "" {
		merged.Email = incoming.Email
	}
	if merged.AvatarRef == "" {
		merged.AvatarRef = incoming.AvatarRef
	}
	if incoming.Device != nil {
		merged.Device = incoming.Device
	}

	if sourceRank[incoming.Source] > sourceRank[merged.Source] {
		merged.Source = incoming.Source
		merged.Curated = incoming.Curated
		merged.Registered = incoming.Registered
		merged.Invitation = incoming.Invitation
		merged.IsRegistered = incoming.IsRegistered
	}

	merged.UpdatedAt = now
	return merged
}

// Update applies a mutation to the contact for phone. The phone itself is
// immutable and the source may not move backwards; both are re-checked after
// the mutator runs.
func (r *Repository) Update(phone string, mutate func(*models.Contact), deferPersist bool) error {
	r.mu.Lock()

	existing, ok := r.contacts[phone]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, phone)
	}

	updated := existing
	mutate(&updated)
	updated.Phone = existing.Phone
	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt

	if sourceRank[updated.Source] < sourceRank[existing.Source] {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrDemotion, existing.Source, updated.Source)
	}

	updated.UpdatedAt = r.clock()
	r.ix.replace(&existing, &updated)
	r.contacts[phone] = updated
	r.recordChangeLocked(updated)
	batching := r.batching
	if !batching {
		r.evMu.Lock()
	}
	r.mu.Unlock()

	if !batching {
		r.publish(Event{Type: EventUpdate, Contact: &updated})
		r.evMu.Unlock()
	}
	if deferPersist {
		return nil
	}
	return r.persistAfterMutation(false)
}

// RestoreAsDevice is the one sanctioned demotion: the contact drops back to
// its device state with invitation and remote metadata cleared. Used by the
// deletion workflow when the phone still exists in the device address book.
func (r *Repository) RestoreAsDevice(phone string, device *models.DevicePayload) error {
	r.mu.Lock()

	existing, ok := r.contacts[phone]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, phone)
	}

	restored := existing
	restored.Source = models.SourceDevice
	restored.Device = device
	restored.Curated = nil
	restored.Registered = nil
	restored.Invitation = nil
	restored.IsRegistered = nil
	restored.RemoteID = ""
	restored.RemoteDocRef = ""
	restored.ContentHash = ""
	restored.UpdatedAt = r.clock()

	r.ix.replace(&existing, &restored)
	r.contacts[phone] = restored
	r.recordChangeLocked(restored)
	batching := r.batching
	if !batching {
		r.evMu.Lock()
	}
	r.mu.Unlock()

	if !batching {
		r.publish(Event{Type: EventUpdate, Contact: &restored})
		r.evMu.Unlock()
	}
	return r.persistAfterMutation(false)
}

// Remove deletes the contact and its entry in every index bucket.
func (r *Repository) Remove(phone string) error {
	r.mu.Lock()

	existing, ok := r.contacts[phone]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, phone)
	}

	r.ix.delete(&existing)
	delete(r.contacts, phone)
	r.recordChangeLocked(existing)
	batching := r.batching
	if !batching {
		r.evMu.Lock()
	}
	r.mu.Unlock()

	if !batching {
		r.publish(Event{Type: EventRemove, Contact: &existing})
		r.evMu.Unlock()
	}
	return r.persistAfterMutation(false)
}

// Clear empties the store, its indexes, and the persisted collections.
func (r *Repository) Clear() error {
	r.mu.Lock()
	r.contacts = make(map[string]models.Contact)
	r.ix = newIndexes()
	r.cache.purge()
	r.evMu.Lock()
	r.mu.Unlock()

	r.publish(Event{Type: EventClear})
	r.evMu.Unlock()

	if r.database != nil {
		if err := dbClear(r.database); err != nil {
			r.logger.Warn("failed to clear persisted collections", zap.Error(err))
			return err
		}
	}
	return nil
}

func (r *Repository) recordChangeLocked(c models.Contact) {
	if r.batching {
		r.batchChanged = append(r.batchChanged, c)
	}
}

func (r *Repository) persistAfterMutation(force bool) error {
	r.mu.RLock()
	batching := r.batching
	r.mu.RUnlock()
	if batching && !force {
		return nil
	}
	return r.Flush()
}
