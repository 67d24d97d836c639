// ABOUTME: Remote-facing workflows: push, detection with promotion, full sync
// ABOUTME: All honor the sync-blocked flag and record runs in the sync ledger
package manager

import (
	"context"

	"go.uber.org/zap"

	"github.com/copainapp/copain/models"
)

// Push reconciles the curated network onto the remote backend.
func (m *Manager) Push(ctx context.Context, force bool) (models.PushResult, error) {
	if !m.tryAcquire() {
		return models.PushResult{Errors: []string{ErrBusy.Error()}}, ErrBusy
	}
	defer m.release()
	return m.doPush(ctx, force)
}

func (m *Manager) doPush(ctx context.Context, force bool) (models.PushResult, error) {
	if m.syncBlocked.Load() {
		return models.PushResult{Errors: []string{ErrSyncBlocked.Error()}}, ErrSyncBlocked
	}

	m.ledgerStart(servicePush)
	result, err := m.engine.Push(ctx, m.networkContacts(), force)
	m.ledgerFinish(servicePush, err)
	return result, err
}

// networkContacts returns every non-device contact.
func (m *Manager) networkContacts() []models.Contact {
	var out []models.Contact
	for _, c := range m.store.GetAll() {
		if c.Source != models.SourceDevice {
			out = append(out, c)
		}
	}
	return out
}

// Detect checks which curated contacts correspond to registered accounts and
// applies the outcome: matches are promoted to registered with their account
// summary, misses get their tri-state flag settled to false.
func (m *Manager) Detect(ctx context.Context) (models.DetectResult, error) {
	if !m.tryAcquire() {
		return models.DetectResult{Errors: []string{ErrBusy.Error()}}, ErrBusy
	}
	defer m.release()
	return m.doDetect(ctx)
}

func (m *Manager) doDetect(ctx context.Context) (models.DetectResult, error) {
	if m.syncBlocked.Load() {
		return models.DetectResult{Errors: []string{ErrSyncBlocked.Error()}}, ErrSyncBlocked
	}

	var phones []string
	for _, c := range m.store.GetAll() {
		if c.Source == models.SourceCurated || c.Source == models.SourceInvited {
			phones = append(phones, c.Phone)
		}
	}
	if len(phones) == 0 {
		return models.DetectResult{Registered: map[string]bool{}}, nil
	}

	m.ledgerStart(serviceDetect)
	result, err := m.engine.Detect(ctx, phones)
	m.ledgerFinish(serviceDetect, err)
	if err != nil {
		return result, err
	}

	if applyErr := m.applyDetection(result); applyErr != nil {
		result.Errors = append(result.Errors, applyErr.Error())
	}
	return result, nil
}

// applyDetection writes detection outcomes back to the store under one
// batch. Targets were normalized store keys, so the result map keys resolve
// directly.
func (m *Manager) applyDetection(result models.DetectResult) error {
	batch, err := m.store.Begin()
	if err != nil {
		return err
	}
	defer batch.Rollback()

	for phone, registered := range result.Registered {
		if registered {
			m.promoteToRegistered(phone)
			continue
		}
		err := m.store.Update(phone, func(c *models.Contact) {
			c.IsRegistered = models.BoolPtr(false)
		}, true)
		if err != nil {
			m.logger.Warn("failed to flag contact", zap.String("phone", phone), zap.Error(err))
		}
	}

	return batch.Commit()
}

func (m *Manager) promoteToRegistered(phone string) {
	summary, ok := m.engine.AccountSummary(phone)
	err := m.store.Update(phone, func(c *models.Contact) {
		c.Source = models.SourceRegistered
		c.IsRegistered = models.BoolPtr(true)
		if ok {
			c.Registered = &models.RegisteredPayload{
				Handle:       summary.Handle,
				RewardPoints: summary.RewardPoints,
				Tier:         summary.Tier,
				IsOnline:     summary.IsOnline,
				LastActiveAt: summary.LastActiveAt,
			}
		} else if c.Registered == nil {
			c.Registered = &models.RegisteredPayload{}
		}
	}, true)
	if err != nil {
		m.logger.Warn("failed to promote contact", zap.String("phone", phone), zap.Error(err))
	}
}

// FullSyncResult aggregates the outcome of the scan-import-push-detect-stats
// pipeline.
type FullSyncResult struct {
	Scan   models.ScanResult
	Import models.ImportResult
	Push   models.PushResult
	Detect models.DetectResult
	Stats  models.Stats
}

// FullSync runs the whole pipeline under one hold of the operation lock.
// Each stage degrades independently; only authentication failure (or the
// sync-blocked flag) stops the remote stages.
func (m *Manager) FullSync(ctx context.Context) (FullSyncResult, error) {
	var result FullSyncResult
	if !m.tryAcquire() {
		return result, ErrBusy
	}
	defer m.release()

	result.Scan = m.doScan(ctx)

	// Curation is an explicit user decision; the pipeline refreshes the
	// device snapshot and synchronizes the existing network. The Import
	// stage is filled by ImportAndSync, which takes the phones to curate.
	var err error
	result.Push, err = m.doPush(ctx, false)
	if err != nil {
		result.Stats = m.Stats()
		return result, err
	}

	result.Detect, err = m.doDetect(ctx)
	result.Stats = m.Stats()
	return result, err
}

// ImportAndSync curates the given phones, then follows up with a push and a
// detection run. The follow-up stages degrade independently; an import with
// a failed push is still an import.
func (m *Manager) ImportAndSync(ctx context.Context, phones []string) (FullSyncResult, error) {
	var result FullSyncResult
	if !m.tryAcquire() {
		return result, ErrBusy
	}
	defer m.release()

	result.Import = m.doImport(ctx, phones)

	var err error
	result.Push, err = m.doPush(ctx, false)
	if err != nil {
		result.Stats = m.Stats()
		return result, err
	}

	result.Detect, err = m.doDetect(ctx)
	result.Stats = m.Stats()
	return result, err
}
