// ABOUTME: Device-scan and import-to-curated workflows
// ABOUTME: Scan refreshes device contacts; Import promotes them into the network
package manager

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/copainapp/copain/models"
	"github.com/copainapp/copain/normalize"
)

// Scan reads the device address book, merges the candidates into the store,
// and refreshes the snapshot the deletion workflow consults.
func (m *Manager) Scan(ctx context.Context) models.ScanResult {
	if !m.tryAcquire() {
		return models.ScanResult{Errors: []string{ErrBusy.Error()}}
	}
	defer m.release()
	return m.doScan(ctx)
}

func (m *Manager) doScan(ctx context.Context) models.ScanResult {
	res, err := m.scanner.Scan(ctx)
	if err != nil {
		// Permission denied and friends: empty result, descriptive error.
		return models.ScanResult{Errors: []string{err.Error()}}
	}

	result := models.ScanResult{
		Fetched: res.Fetched,
		Valid:   len(res.Contacts),
		Skipped: res.Skipped,
	}

	batch, err := m.store.Begin()
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	defer batch.Rollback()

	for _, c := range res.Contacts {
		if _, exists := m.store.GetByPhone(c.Phone); !exists {
			result.Added++
		}
		if err := m.store.Add(c); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", c.Phone, err))
		}
	}

	if err := batch.Commit(); err != nil {
		result.Errors = append(result.Errors, err.Error())
	}

	m.rememberScan(res.Contacts)
	m.logger.Info("scan complete",
		zap.Int("fetched", result.Fetched),
		zap.Int("added", result.Added),
	)
	return result
}

// Import marks the given phones as curated network members. Phones must
// resolve to known contacts; device contacts are promoted, anything already
// in the network is counted as skipped.
func (m *Manager) Import(ctx context.Context, phones []string) models.ImportResult {
	if !m.tryAcquire() {
		return models.ImportResult{Errors: []string{ErrBusy.Error()}}
	}
	defer m.release()
	return m.doImport(ctx, phones)
}

func (m *Manager) doImport(ctx context.Context, phones []string) models.ImportResult {
	var result models.ImportResult

	batch, err := m.store.Begin()
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	defer batch.Rollback()

	now := m.clock()
	for _, raw := range phones {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, ctx.Err().Error())
			break
		}

		phone, err := normalize.Phone(raw)
		if err != nil {
			// Identifiers may be contact ids instead of phones.
			if resolved, ok := m.resolveByID(raw); ok {
				phone = resolved
			} else {
				result.Skipped++
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", raw, err))
				continue
			}
		}

		existing, ok := m.store.GetByPhone(phone)
		if !ok {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: not found", phone))
			continue
		}
		if existing.Source != models.SourceDevice {
			result.Skipped++
			continue
		}

		err = m.store.Update(phone, func(c *models.Contact) {
			c.Source = models.SourceCurated
			c.Curated = &models.CuratedPayload{ImportedAt: now}
			c.IsRegistered = nil // unknown until a detection run
		}, true)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", phone, err))
			continue
		}
		result.Imported++
	}

	if err := batch.Commit(); err != nil {
		result.Errors = append(result.Errors, err.Error())
	}

	m.logger.Info("import complete",
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped),
	)
	return result
}

// resolveByID maps a contact id to its phone key.
func (m *Manager) resolveByID(raw string) (string, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", false
	}
	for _, c := range m.store.GetAll() {
		if c.ID == id {
			return c.Phone, true
		}
	}
	return "", false
}
