// ABOUTME: Deletion workflows: single delete with restore-as-device, bulk wipe
// ABOUTME: Remote removal is best effort; local state decides demote versus erase
package manager

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/copainapp/copain/models"
	"github.com/copainapp/copain/normalize"
	"github.com/copainapp/copain/remote"
)

const (
	wipePageSize = 100
	wipeWorkers  = 4
)

// Delete removes a contact from the network. The remote record is removed
// best effort (direct id, then phone lookup, then name search); locally the
// contact is demoted back to its device state when the phone still appeared
// in the most recent device scan, and erased otherwise.
func (m *Manager) Delete(ctx context.Context, rawPhone string) models.DeleteResult {
	if !m.tryAcquire() {
		return models.DeleteResult{Errors: []string{ErrBusy.Error()}}
	}
	defer m.release()

	var result models.DeleteResult

	phone, err := normalize.Phone(rawPhone)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", rawPhone, err))
		return result
	}
	contact, ok := m.store.GetByPhone(phone)
	if !ok {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: not found", phone))
		return result
	}

	if deleted, err := m.deleteRemote(ctx, contact); err != nil {
		result.Errors = append(result.Errors, err.Error())
	} else if deleted {
		result.RemoteDeleted = true
		m.engine.ResetCaches()
	}

	if contact.Invitation != nil && contact.Invitation.RemoteRef != "" {
		if err := m.client.DeleteInvitation(ctx, contact.Invitation.RemoteRef); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("invitation: %v", err))
		}
	}

	if payload, inScan := m.inLastScan(phone); inScan {
		if err := m.store.RestoreAsDevice(phone, payload); err != nil {
			result.Errors = append(result.Errors, err.Error())
		} else {
			result.Restored = true
		}
	} else {
		if err := m.store.Remove(phone); err != nil {
			result.Errors = append(result.Errors, err.Error())
		} else {
			result.Erased = true
		}
	}

	m.logger.Info("contact deleted",
		zap.String("phone", phone),
		zap.Bool("remote_deleted", result.RemoteDeleted),
		zap.Bool("restored", result.Restored),
	)
	return result
}

// deleteRemote tries the three lookup strategies in order of confidence.
func (m *Manager) deleteRemote(ctx context.Context, contact models.Contact) (bool, error) {
	if contact.RemoteID != "" {
		if err := m.client.DeleteContact(ctx, contact.RemoteID); err != nil {
			return false, fmt.Errorf("remote delete %s: %w", contact.RemoteID, err)
		}
		return true, nil
	}

	found, err := m.client.FindContactByPhone(ctx, contact.Phone)
	if err != nil {
		return false, fmt.Errorf("remote lookup %s: %w", contact.Phone, err)
	}
	if found == nil && contact.DisplayName != "" {
		matches, err := m.client.SearchContactsByName(ctx, contact.DisplayName)
		if err != nil {
			return false, fmt.Errorf("remote search %q: %w", contact.DisplayName, err)
		}
		for i := range matches {
			if matches[i].Telephone == contact.Phone {
				found = &matches[i]
				break
			}
		}
	}
	if found == nil {
		return false, nil
	}

	if err := m.client.DeleteContact(ctx, found.ID); err != nil {
		return false, fmt.Errorf("remote delete %s: %w", found.ID, err)
	}
	return true, nil
}

// BulkWipe deletes every remote contact record, purges local non-device
// contacts, resets the sync caches, and blocks further sync until
// UnblockSync is called.
func (m *Manager) BulkWipe(ctx context.Context) (models.WipeResult, error) {
	if !m.tryAcquire() {
		return models.WipeResult{Errors: []string{ErrBusy.Error()}}, ErrBusy
	}
	defer m.release()

	var result models.WipeResult
	m.ledgerStart(serviceWipe)

	total := -1
	for {
		// Deleting shrinks the collection, so the first page is re-listed
		// until it comes back empty.
		contacts, pagination, err := m.client.ListContacts(ctx, 1, wipePageSize)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			m.ledgerFinish(serviceWipe, err)
			if errors.Is(err, remote.ErrAuthentication) {
				return result, err
			}
			break
		}
		if total < 0 {
			total = pagination.Total
		}
		if len(contacts) == 0 {
			m.ledgerFinish(serviceWipe, nil)
			break
		}

		deleted, failed := m.wipePage(ctx, contacts, &result)
		result.RemoteDeleted += deleted
		result.RemoteFailed += failed

		if total > 0 {
			m.logger.Info("wipe progress",
				zap.Int("deleted", result.RemoteDeleted),
				zap.Int("percent", result.RemoteDeleted*100/total),
			)
		}
		if deleted == 0 {
			// Nothing on this page could be deleted; a retry would spin.
			m.ledgerFinish(serviceWipe, fmt.Errorf("wipe stalled with %d failures", failed))
			break
		}
	}

	result.LocalPurged = m.purgeLocal(&result)

	m.engine.ResetCaches()
	m.syncBlocked.Store(true)
	m.logger.Info("bulk wipe complete",
		zap.Int("remote_deleted", result.RemoteDeleted),
		zap.Int("local_purged", result.LocalPurged),
	)
	return result, nil
}

// wipePage deletes one listing page in bounded parallel sub-batches.
func (m *Manager) wipePage(ctx context.Context, contacts []remote.RemoteContact, result *models.WipeResult) (deleted, failed int) {
	type outcome struct {
		id  string
		err error
	}
	outcomes := make([]outcome, len(contacts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(wipeWorkers)
	for i := range contacts {
		i := i
		g.Go(func() error {
			outcomes[i] = outcome{
				id:  contacts[i].ID,
				err: m.client.DeleteContact(gctx, contacts[i].ID),
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		if o.err != nil {
			failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", o.id, o.err))
			continue
		}
		deleted++
	}
	return deleted, failed
}

// purgeLocal removes every non-device contact under one batch.
func (m *Manager) purgeLocal(result *models.WipeResult) int {
	batch, err := m.store.Begin()
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return 0
	}
	defer batch.Rollback()

	purged := 0
	for _, c := range m.networkContacts() {
		if err := m.store.Remove(c.Phone); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", c.Phone, err))
			continue
		}
		purged++
	}

	if err := batch.Commit(); err != nil {
		result.Errors = append(result.Errors, err.Error())
	}
	return purged
}
