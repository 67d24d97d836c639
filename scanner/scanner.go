// ABOUTME: Device scanner turning raw address-book records into candidate contacts
// ABOUTME: Filters invalid entries and deduplicates by normalized phone
package scanner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/copainapp/copain/models"
	"github.com/copainapp/copain/normalize"
)

// Source yields raw contact records from the device address book. The
// platform call behind it is an external collaborator; implementations only
// need to produce the records.
type Source interface {
	List(ctx context.Context) ([]models.RawContact, error)
}

type Scanner struct {
	source Source
	logger *zap.Logger
	clock  func() time.Time
}

type Option func(*Scanner)

// WithClock injects the time source used for contact timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Scanner) { s.clock = clock }
}

func New(source Source, logger *zap.Logger, opts ...Option) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scanner{source: source, logger: logger, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result carries the scanned candidates plus the raw counts behind them.
type Result struct {
	Contacts []models.Contact
	Fetched  int
	Skipped  int
}

// Scan reads the device address book and emits canonical device-source
// contacts: entries without a usable name or phone are dropped, and the first
// record per normalized phone wins.
func (s *Scanner) Scan(ctx context.Context) (Result, error) {
	raws, err := s.source.List(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read device contacts: %w", err)
	}

	seen := make(map[string]bool, len(raws))
	contacts := make([]models.Contact, 0, len(raws))
	skipped := 0

	for _, raw := range raws {
		name := firstNonEmpty(raw.Names)
		phone := firstValidPhone(raw.PhoneNumbers)
		if name == "" || phone == "" {
			skipped++
			continue
		}
		if seen[phone] {
			skipped++
			continue
		}
		seen[phone] = true

		email := strings.TrimSpace(firstNonEmpty(raw.Emails))
		given, family := normalize.SplitName(name)

		now := s.clock()
		contacts = append(contacts, models.Contact{
			ID:          uuid.New(),
			Phone:       phone,
			DisplayName: name,
			GivenName:   given,
			FamilyName:  family,
			Email:       email,
			Source:      models.SourceDevice,
			Device: &models.DevicePayload{
				RawRef:     raw.ID,
				HasEmail:   email != "",
				IsComplete: email != "" && family != "",
			},
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	s.logger.Debug("device scan complete",
		zap.Int("fetched", len(raws)),
		zap.Int("valid", len(contacts)),
		zap.Int("skipped", skipped),
	)

	return Result{Contacts: contacts, Fetched: len(raws), Skipped: skipped}, nil
}

func firstNonEmpty(values []string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func firstValidPhone(numbers []string) string {
	for _, n := range numbers {
		if phone, err := normalize.Phone(n); err == nil {
			return phone
		}
	}
	return ""
}
