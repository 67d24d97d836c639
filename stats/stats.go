// ABOUTME: Pure aggregation of the contact set into reporting metrics
// ABOUTME: No side effects; deterministic for a given slice and reference time
package stats

import (
	"time"

	"github.com/copainapp/copain/models"
	"github.com/copainapp/copain/normalize"
)

// Calculate derives reporting metrics from a contact snapshot. Device-source
// contacts count toward the device total only; everything else belongs to the
// curated network. The reference time anchors the temporal buckets.
func Calculate(contacts []models.Contact, now time.Time) models.Stats {
	s := models.Stats{
		CountryBreakdown: make(map[string]int),
	}

	var withEmail, withFullName int
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekStart := now.AddDate(0, 0, -7)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	for i := range contacts {
		c := &contacts[i]

		if c.Source == models.SourceDevice {
			s.DeviceTotal++
			continue
		}

		s.CuratedTotal++
		switch c.Source {
		case models.SourceCurated:
			s.CuratedOnlyCount++
		case models.SourceRegistered:
			s.RegisteredCount++
		case models.SourceInvited:
			s.InvitedCount++
		}

		if c.PendingInvitation() {
			s.PendingInvitations++
		}
		if c.Invitation != nil && c.Invitation.Status == models.InvitationAccepted {
			s.AcceptedInvitations++
		}

		if c.Email != "" {
			withEmail++
		}
		if c.HasFullName() {
			withFullName++
		}

		if prefix := normalize.CountryPrefix(c.Phone); prefix != "" {
			s.CountryBreakdown[prefix]++
		}

		if !c.CreatedAt.Before(dayStart) {
			s.AddedToday++
		}
		if !c.CreatedAt.Before(weekStart) {
			s.AddedThisWeek++
		}
		if !c.CreatedAt.Before(monthStart) {
			s.AddedThisMonth++
		}
	}

	if s.CuratedTotal > 0 {
		s.EmailCoverage = float64(withEmail) / float64(s.CuratedTotal)
		s.FullNameCoverage = float64(withFullName) / float64(s.CuratedTotal)
	}

	return s
}
