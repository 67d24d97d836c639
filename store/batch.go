// ABOUTME: Unit-of-work batching for bulk mutations
// ABOUTME: Suppresses per-mutation notifications and flushes once on commit
package store

// Batch collects a sequence of mutations into one aggregate notification and
// a single persistence flush. Begin it, mutate through the repository as
// usual, then Commit — typically via defer, so it cannot be forgotten.
type Batch struct {
	r    *Repository
	done bool
}

// Begin starts batch mode. Only one batch may be active at a time; bulk
// workflows already serialize behind the manager's operation lock.
func (r *Repository) Begin() (*Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.batching {
		return nil, ErrBatchActive
	}
	r.batching = true
	r.batchChanged = nil
	return &Batch{r: r}, nil
}

// Commit ends the batch: one flush, one bulk_update event carrying every
// changed contact. Safe to call more than once; later calls no-op.
func (b *Batch) Commit() error {
	if b.done {
		return nil
	}
	b.done = true

	b.r.mu.Lock()
	changed := b.r.batchChanged
	b.r.batching = false
	b.r.batchChanged = nil
	b.r.evMu.Lock()
	b.r.mu.Unlock()

	if len(changed) > 0 {
		b.r.publish(Event{Type: EventBulk, Batch: changed})
	}
	b.r.evMu.Unlock()
	return b.r.Flush()
}

// Rollback ends batch mode without the aggregate notification or flush.
// In-memory mutations already applied stand; the next flush persists them.
func (b *Batch) Rollback() {
	if b.done {
		return
	}
	b.done = true

	b.r.mu.Lock()
	b.r.batching = false
	b.r.batchChanged = nil
	b.r.mu.Unlock()
}
