// ABOUTME: Sync engine reconciling the local store with the remote backend
// ABOUTME: Batched, rate-limited, idempotent push with conflict-as-success handling
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/copainapp/copain/models"
	"github.com/copainapp/copain/remote"
	"github.com/copainapp/copain/store"
)

// Config tunes batching, concurrency, and cache lifetime.
type Config struct {
	BatchSize         int
	Workers           int
	RequestsPerSecond float64
	CacheTTL          time.Duration
	PageSize          int
	MaxPages          int // safety cap on paginated listings
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 5
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.PageSize <= 0 {
		c.PageSize = 100
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 50
	}
	return c
}

type Engine struct {
	store   *store.Repository
	client  *remote.Client
	limiter *rate.Limiter
	clock   func() time.Time
	logger  *zap.Logger
	cfg     Config

	existing *existingIndex
	accounts *accountsCache
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock injects the time source used by the TTL caches.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

func NewEngine(repo *store.Repository, client *remote.Client, cfg Config, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	e := &Engine{
		store:    repo,
		client:   client,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		clock:    time.Now,
		logger:   logger,
		cfg:      cfg,
		existing: &existingIndex{},
		accounts: &accountsCache{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// pushAggregator collects per-item outcomes across workers.
type pushAggregator struct {
	mu     sync.Mutex
	result models.PushResult
}

func (a *pushAggregator) created() {
	a.mu.Lock()
	a.result.Created++
	a.mu.Unlock()
}

func (a *pushAggregator) skipped() {
	a.mu.Lock()
	a.result.Skipped++
	a.mu.Unlock()
}

func (a *pushAggregator) failed(phone string, err error) {
	a.mu.Lock()
	a.result.Failed++
	a.result.Errors = append(a.result.Errors, fmt.Sprintf("%s: %v", phone, err))
	a.mu.Unlock()
}

// Push reconciles the given contacts onto the remote backend. Items with an
// unchanged content hash are skipped unless force is set; items already known
// remotely are treated as synced without a diff-update, favoring throughput.
// Per-item failures are collected; only an authentication failure aborts the
// run, leaving already-processed results intact.
func (e *Engine) Push(ctx context.Context, contacts []models.Contact, force bool) (models.PushResult, error) {
	agg := &pushAggregator{}

	// Validation filter: an item without both name and phone is skipped and
	// counted, never retried within this run.
	var candidates []models.Contact
	for _, c := range contacts {
		if c.DisplayName == "" || c.Phone == "" {
			agg.skipped()
			continue
		}
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		return agg.result, nil
	}

	if err := e.ensureExisting(ctx); err != nil {
		if errors.Is(err, remote.ErrAuthentication) {
			agg.result.Errors = append(agg.result.Errors, err.Error())
			return agg.result, err
		}
		return agg.result, err
	}

	// Idempotence: unchanged since the last successful sync means no remote
	// write at all.
	var pending []models.Contact
	for _, c := range candidates {
		if !force && c.RemoteID != "" && c.ContentHash == ContentHash(c.DisplayName, c.Email, c.Phone) {
			agg.skipped()
			continue
		}
		pending = append(pending, c)
	}

	for start := 0; start < len(pending); start += e.cfg.BatchSize {
		end := start + e.cfg.BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		if err := e.pushBatch(ctx, pending[start:end], agg); err != nil {
			_ = e.store.Flush()
			return agg.result, err
		}
	}

	if err := e.store.Flush(); err != nil {
		agg.result.Errors = append(agg.result.Errors, fmt.Sprintf("flush: %v", err))
	}

	e.logger.Info("push complete",
		zap.Int("created", agg.result.Created),
		zap.Int("skipped", agg.result.Skipped),
		zap.Int("failed", agg.result.Failed),
	)
	return agg.result, nil
}

func (e *Engine) pushBatch(ctx context.Context, batch []models.Contact, agg *pushAggregator) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)

	for _, contact := range batch {
		c := contact
		g.Go(func() error {
			// Token bucket bounds effective throughput. A cancelled wait
			// means the run is draining, not that this item failed; the item
			// counts as skipped so the totals still cover every input.
			if err := e.limiter.Wait(gctx); err != nil {
				agg.skipped()
				return nil
			}
			err := e.pushOne(gctx, c, agg)
			if errors.Is(err, remote.ErrAuthentication) {
				agg.failed(c.Phone, err)
				return err
			}
			return nil
		})
	}

	return g.Wait()
}

func (e *Engine) pushOne(ctx context.Context, c models.Contact, agg *pushAggregator) error {
	hash := ContentHash(c.DisplayName, c.Email, c.Phone)

	if remoteID, ok := e.existingID(c.Phone); ok {
		// Already present remotely: record the linkage, skip the write.
		e.recordSynced(c.Phone, remoteID, hash)
		agg.skipped()
		return nil
	}

	created, err := e.client.CreateContact(ctx, remote.ContactAttributes{
		Name:      c.DisplayName,
		Email:     c.Email,
		Telephone: c.Phone,
	})
	if err != nil {
		if errors.Is(err, remote.ErrConflict) {
			// The remote record beat us there. Same observable outcome as an
			// index hit: recover the id best-effort and move on.
			remoteID := ""
			if found, findErr := e.client.FindContactByPhone(ctx, c.Phone); findErr == nil && found != nil {
				remoteID = found.ID
			}
			e.markExisting(c.Phone, remoteID)
			e.recordSynced(c.Phone, remoteID, hash)
			agg.skipped()
			return nil
		}
		if errors.Is(err, remote.ErrAuthentication) {
			return err
		}
		agg.failed(c.Phone, err)
		return nil
	}

	e.markExisting(c.Phone, created.ID)
	e.recordSynced(c.Phone, created.ID, hash)
	agg.created()
	return nil
}

// recordSynced writes the remote identifier and content hash back onto the
// local contact. Persistence is deferred; Push flushes once at the end.
func (e *Engine) recordSynced(phone, remoteID, hash string) {
	err := e.store.Update(phone, func(c *models.Contact) {
		if remoteID != "" {
			c.RemoteID = remoteID
		}
		c.ContentHash = hash
	}, true)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		e.logger.Warn("failed to record sync metadata", zap.String("phone", phone), zap.Error(err))
	}
}
