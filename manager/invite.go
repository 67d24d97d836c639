// ABOUTME: Invitation lifecycle: issue, cancel, refresh statuses from remote
// ABOUTME: Accepted invitations promote the contact to the registered source
package manager

import (
	"context"
	"fmt"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/copainapp/copain/models"
	"github.com/copainapp/copain/normalize"
	"github.com/copainapp/copain/remote"
)

func validChannel(channel string) bool {
	switch channel {
	case models.ChannelSMS, models.ChannelWhatsApp, models.ChannelNotification:
		return true
	}
	return false
}

// Invite sends an invitation to a curated contact over the given channel and
// moves the contact to the invited source.
func (m *Manager) Invite(ctx context.Context, rawPhone, channel string) error {
	if !m.tryAcquire() {
		return ErrBusy
	}
	defer m.release()

	if !validChannel(channel) {
		return fmt.Errorf("unknown invitation channel: %s", channel)
	}

	phone, err := normalize.Phone(rawPhone)
	if err != nil {
		return fmt.Errorf("%s: %w", rawPhone, err)
	}
	contact, ok := m.store.GetByPhone(phone)
	if !ok {
		return fmt.Errorf("%s: not found", phone)
	}
	if contact.Source == models.SourceRegistered {
		return fmt.Errorf("%s: already registered", phone)
	}
	if contact.PendingInvitation() {
		return fmt.Errorf("%s: invitation already pending", phone)
	}
	if contact.Source == models.SourceDevice {
		return fmt.Errorf("%s: import the contact before inviting", phone)
	}

	now := m.clock()
	created, err := m.client.CreateInvitation(ctx, remote.InvitationAttributes{
		Telephone: phone,
		Channel:   channel,
		Status:    models.InvitationSent,
		SentAt:    now,
	})
	if err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}

	err = m.store.Update(phone, func(c *models.Contact) {
		c.Source = models.SourceInvited
		c.IsRegistered = models.BoolPtr(false)
		c.Invitation = &models.Invitation{
			ID:        ulid.Make().String(),
			RemoteRef: created.ID,
			Status:    models.InvitationSent,
			Channel:   channel,
			SentAt:    now,
		}
	}, false)
	if err != nil {
		return err
	}

	m.logger.Info("invitation sent", zap.String("phone", phone), zap.String("channel", channel))
	return nil
}

// CancelInvitation withdraws a pending invitation. The remote record is
// removed best effort; the contact returns to the plain curated source.
func (m *Manager) CancelInvitation(ctx context.Context, rawPhone string) error {
	if !m.tryAcquire() {
		return ErrBusy
	}
	defer m.release()

	phone, err := normalize.Phone(rawPhone)
	if err != nil {
		return fmt.Errorf("%s: %w", rawPhone, err)
	}
	contact, ok := m.store.GetByPhone(phone)
	if !ok {
		return fmt.Errorf("%s: not found", phone)
	}
	if contact.Source != models.SourceInvited || contact.Invitation == nil {
		return fmt.Errorf("%s: no invitation to cancel", phone)
	}

	if contact.Invitation.RemoteRef != "" {
		if err := m.client.DeleteInvitation(ctx, contact.Invitation.RemoteRef); err != nil {
			m.logger.Warn("failed to delete remote invitation",
				zap.String("phone", phone), zap.Error(err))
		}
	}

	return m.store.Update(phone, func(c *models.Contact) {
		c.Source = models.SourceCurated
		c.Invitation = nil
		c.IsRegistered = nil
	}, false)
}

// RefreshInvitations pulls invitation statuses from the backend and applies
// them: accepted invitations promote the contact to registered, other status
// changes are recorded as-is. Returns how many contacts changed.
func (m *Manager) RefreshInvitations(ctx context.Context) (int, error) {
	if !m.tryAcquire() {
		return 0, ErrBusy
	}
	defer m.release()

	byPhone := make(map[string]remote.RemoteInvitation)
	for page := 1; ; page++ {
		invitations, pagination, err := m.client.ListInvitations(ctx, page, wipePageSize)
		if err != nil {
			return 0, fmt.Errorf("failed to list invitations: %w", err)
		}
		for _, inv := range invitations {
			byPhone[inv.Telephone] = inv
		}
		if page >= pagination.PageCount || len(invitations) == 0 {
			break
		}
	}

	batch, err := m.store.Begin()
	if err != nil {
		return 0, err
	}
	defer batch.Rollback()

	changed := 0
	for _, contact := range m.store.GetBySource(models.SourceInvited) {
		inv, ok := byPhone[contact.Phone]
		if !ok || contact.Invitation == nil || contact.Invitation.Status == inv.Status {
			continue
		}

		accepted := inv.Status == models.InvitationAccepted
		err := m.store.Update(contact.Phone, func(c *models.Contact) {
			updated := *c.Invitation
			updated.Status = inv.Status
			updated.RespondedAt = inv.RespondedAt
			c.Invitation = &updated
			if accepted {
				c.Source = models.SourceRegistered
				c.IsRegistered = models.BoolPtr(true)
			}
		}, true)
		if err != nil {
			m.logger.Warn("failed to apply invitation status",
				zap.String("phone", contact.Phone), zap.Error(err))
			continue
		}
		changed++
	}

	if err := batch.Commit(); err != nil {
		return changed, err
	}
	m.logger.Info("invitations refreshed", zap.Int("changed", changed))
	return changed, nil
}
