// ABOUTME: Orchestration facade over the scanner, store, and sync engine
// ABOUTME: Owns the single-operation lock, the sync-blocked flag, and the workflows
package manager

import (
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/copainapp/copain/db"
	"github.com/copainapp/copain/models"
	"github.com/copainapp/copain/remote"
	"github.com/copainapp/copain/scanner"
	"github.com/copainapp/copain/stats"
	"github.com/copainapp/copain/store"
	contactsync "github.com/copainapp/copain/sync"
)

var (
	// ErrBusy means another bulk workflow holds the operation lock.
	ErrBusy = errors.New("another operation is in progress")
	// ErrSyncBlocked means remote-facing workflows are suspended after a
	// bulk wipe until UnblockSync is called.
	ErrSyncBlocked = errors.New("sync is blocked; call unblock first")
)

// Sync ledger service names.
const (
	servicePush   = "push"
	serviceDetect = "detect"
	serviceWipe   = "wipe"
)

type Manager struct {
	store    *store.Repository
	scanner  *scanner.Scanner
	engine   *contactsync.Engine
	client   *remote.Client
	database *sql.DB
	logger   *zap.Logger
	clock    func() time.Time

	busy        atomic.Bool
	syncBlocked atomic.Bool

	// Snapshot of the most recent device scan, used by the deletion
	// workflow to decide between demote and erase.
	scanMu   sync.Mutex
	lastScan map[string]*models.DevicePayload
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock injects the time source.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) { m.clock = clock }
}

func New(repo *store.Repository, sc *scanner.Scanner, engine *contactsync.Engine, client *remote.Client, database *sql.DB, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		store:    repo,
		scanner:  sc,
		engine:   engine,
		client:   client,
		database: database,
		logger:   logger,
		clock:    time.Now,
		lastScan: make(map[string]*models.DevicePayload),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// tryAcquire takes the operation lock without blocking. Callers that fail to
// acquire return a safe empty result carrying ErrBusy.
func (m *Manager) tryAcquire() bool {
	return m.busy.CompareAndSwap(false, true)
}

func (m *Manager) release() {
	m.busy.Store(false)
}

// Busy reports whether a bulk workflow is currently running.
func (m *Manager) Busy() bool {
	return m.busy.Load()
}

// SyncBlocked reports whether remote-facing workflows are suspended.
func (m *Manager) SyncBlocked() bool {
	return m.syncBlocked.Load()
}

// UnblockSync lifts the suspension set by a bulk wipe.
func (m *Manager) UnblockSync() {
	m.syncBlocked.Store(false)
	m.logger.Info("sync unblocked")
}

// Stats aggregates the current contact set into reporting metrics.
func (m *Manager) Stats() models.Stats {
	return stats.Calculate(m.store.GetAll(), m.clock())
}

// SyncStates returns the sync ledger rows for every service.
func (m *Manager) SyncStates() ([]db.SyncState, error) {
	if m.database == nil {
		return nil, nil
	}
	return db.GetAllSyncStates(m.database)
}

// rememberScan replaces the device-scan snapshot.
func (m *Manager) rememberScan(contacts []models.Contact) {
	snapshot := make(map[string]*models.DevicePayload, len(contacts))
	for i := range contacts {
		snapshot[contacts[i].Phone] = contacts[i].Device
	}
	m.scanMu.Lock()
	m.lastScan = snapshot
	m.scanMu.Unlock()
}

// inLastScan reports whether the phone appeared in the most recent device
// scan, along with its device payload for restoration.
func (m *Manager) inLastScan(phone string) (*models.DevicePayload, bool) {
	m.scanMu.Lock()
	defer m.scanMu.Unlock()
	payload, ok := m.lastScan[phone]
	return payload, ok
}

// ledgerStart marks a service as syncing in the ledger. Best effort; a
// ledger write failure never fails the workflow.
func (m *Manager) ledgerStart(service string) {
	if m.database == nil {
		return
	}
	if err := db.UpdateSyncStatus(m.database, service, "syncing", nil); err != nil {
		m.logger.Warn("failed to update sync ledger", zap.String("service", service), zap.Error(err))
	}
}

func (m *Manager) ledgerFinish(service string, runErr error) {
	if m.database == nil {
		return
	}
	var err error
	if runErr != nil {
		msg := runErr.Error()
		err = db.UpdateSyncStatus(m.database, service, "error", &msg)
	} else {
		err = db.MarkSyncComplete(m.database, service)
	}
	if err != nil {
		m.logger.Warn("failed to update sync ledger", zap.String("service", service), zap.Error(err))
	}
}
