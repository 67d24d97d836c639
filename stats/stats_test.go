// ABOUTME: Tests for the stats calculator
// ABOUTME: Covers the reconciliation property, coverage ratios, and temporal buckets
package stats

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/copainapp/copain/models"
)

func contact(phone string, source models.Source, created time.Time) models.Contact {
	return models.Contact{
		ID:        uuid.New(),
		Phone:     phone,
		Source:    source,
		CreatedAt: created,
	}
}

func TestCalculateCounts(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	old := now.AddDate(0, -3, 0)

	contacts := []models.Contact{
		contact("+33611111111", models.SourceDevice, old),
		contact("+33622222222", models.SourceDevice, old),
		contact("+33633333333", models.SourceCurated, old),
		contact("+33644444444", models.SourceRegistered, old),
		contact("+33655555555", models.SourceInvited, old),
		contact("+33666666666", models.SourceInvited, old),
	}

	s := Calculate(contacts, now)
	assert.Equal(t, 2, s.DeviceTotal)
	assert.Equal(t, 4, s.CuratedTotal)
	assert.Equal(t, 1, s.CuratedOnlyCount)
	assert.Equal(t, 1, s.RegisteredCount)
	assert.Equal(t, 2, s.InvitedCount)
}

// The curated network always reconciles across its variants, whatever the
// mix of sources in the snapshot.
func TestCalculateReconciliation(t *testing.T) {
	now := time.Now()
	sources := []models.Source{
		models.SourceDevice, models.SourceCurated,
		models.SourceRegistered, models.SourceInvited,
	}

	var contacts []models.Contact
	for i := 0; i < 40; i++ {
		phone := fmt.Sprintf("+336%08d", i)
		contacts = append(contacts, contact(phone, sources[i%len(sources)], now.AddDate(0, 0, -i)))
	}

	s := Calculate(contacts, now)
	assert.Equal(t, s.CuratedTotal, s.RegisteredCount+s.InvitedCount+s.CuratedOnlyCount)
	assert.Equal(t, len(contacts), s.DeviceTotal+s.CuratedTotal)
}

func TestCalculateInvitations(t *testing.T) {
	now := time.Now()
	pending := contact("+33611111111", models.SourceInvited, now)
	pending.Invitation = &models.Invitation{Status: models.InvitationSent}
	accepted := contact("+33622222222", models.SourceRegistered, now)
	accepted.Invitation = &models.Invitation{Status: models.InvitationAccepted}
	declined := contact("+33633333333", models.SourceCurated, now)
	declined.Invitation = &models.Invitation{Status: models.InvitationDeclined}

	s := Calculate([]models.Contact{pending, accepted, declined}, now)
	assert.Equal(t, 1, s.PendingInvitations)
	assert.Equal(t, 1, s.AcceptedInvitations)
}

func TestCalculateCoverage(t *testing.T) {
	now := time.Now()
	full := contact("+33611111111", models.SourceCurated, now)
	full.Email = "a@example.fr"
	full.GivenName, full.FamilyName = "Jean", "Dupont"
	bare := contact("+33622222222", models.SourceCurated, now)

	// Device contacts do not dilute the ratios.
	device := contact("+33633333333", models.SourceDevice, now)
	device.Email = "ignored@example.fr"

	s := Calculate([]models.Contact{full, bare, device}, now)
	assert.InDelta(t, 0.5, s.EmailCoverage, 1e-9)
	assert.InDelta(t, 0.5, s.FullNameCoverage, 1e-9)
}

func TestCalculateEmptyInput(t *testing.T) {
	s := Calculate(nil, time.Now())
	assert.Zero(t, s.CuratedTotal)
	assert.Zero(t, s.EmailCoverage)
	assert.NotNil(t, s.CountryBreakdown)
}

func TestCalculateCountryBreakdown(t *testing.T) {
	now := time.Now()
	contacts := []models.Contact{
		contact("+33611111111", models.SourceCurated, now),
		contact("+33722222222", models.SourceCurated, now),
		contact("+14155552671", models.SourceRegistered, now),
		contact("0612345678", models.SourceCurated, now), // no international prefix
	}

	s := Calculate(contacts, now)
	assert.Equal(t, 2, s.CountryBreakdown["+33"])
	assert.Equal(t, 1, s.CountryBreakdown["+1"])
	_, ok := s.CountryBreakdown[""]
	assert.False(t, ok)
}

func TestCalculateTemporalBuckets(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	today := contact("+33611111111", models.SourceCurated, now.Add(-2*time.Hour))
	thisWeek := contact("+33622222222", models.SourceCurated, now.AddDate(0, 0, -3))
	thisMonth := contact("+33633333333", models.SourceCurated, now.AddDate(0, 0, -20))
	older := contact("+33644444444", models.SourceCurated, now.AddDate(0, -2, 0))

	s := Calculate([]models.Contact{today, thisWeek, thisMonth, older}, now)
	assert.Equal(t, 1, s.AddedToday)
	assert.Equal(t, 2, s.AddedThisWeek)
	assert.Equal(t, 3, s.AddedThisMonth)
}

func TestCalculateDeterministic(t *testing.T) {
	now := time.Now()
	contacts := []models.Contact{
		contact("+33611111111", models.SourceCurated, now),
		contact("+33622222222", models.SourceRegistered, now.AddDate(0, 0, -10)),
	}

	a := Calculate(contacts, now)
	b := Calculate(contacts, now)
	assert.Equal(t, a, b)
}
