// ABOUTME: Tests for the unified contact store
// ABOUTME: Covers phone uniqueness, forward merging, lifecycle guards, and the change feed
package store

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copainapp/copain/models"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	return NewRepository(nil, nil)
}

func deviceContact(phone, name string) models.Contact {
	return models.Contact{
		ID:          uuid.New(),
		Phone:       phone,
		DisplayName: name,
		Source:      models.SourceDevice,
		Device:      &models.DevicePayload{RawRef: "raw-" + phone},
	}
}

func TestAddAndGet(t *testing.T) {
	r := newTestRepo(t)

	require.NoError(t, r.Add(deviceContact("+33612345678", "Jean Dupont")))

	c, ok := r.GetByPhone("+33612345678")
	require.True(t, ok)
	assert.Equal(t, "Jean Dupont", c.DisplayName)
	assert.False(t, c.CreatedAt.IsZero())
	assert.Equal(t, 1, r.Count())
}

func TestUniquenessPerPhone(t *testing.T) {
	r := newTestRepo(t)

	require.NoError(t, r.Add(deviceContact("+33612345678", "Jean Dupont")))
	dup := deviceContact("+33612345678", "Jean D.")
	dup.Email = "jean@example.fr"
	require.NoError(t, r.Add(dup))

	assert.Equal(t, 1, r.Count(), "at most one contact per normalized phone")

	c, _ := r.GetByPhone("+33612345678")
	assert.Equal(t, "Jean Dupont", c.DisplayName, "existing name wins")
	assert.Equal(t, "jean@example.fr", c.Email, "missing fields fill in")
}

func TestMergeAdvancesSource(t *testing.T) {
	r := newTestRepo(t)

	require.NoError(t, r.Add(deviceContact("+33612345678", "Jean Dupont")))

	curated := deviceContact("+33612345678", "Jean Dupont")
	curated.Source = models.SourceCurated
	curated.Curated = &models.CuratedPayload{ImportedAt: time.Now()}
	require.NoError(t, r.Add(curated))

	c, _ := r.GetByPhone("+33612345678")
	assert.Equal(t, models.SourceCurated, c.Source)
	require.NotNil(t, c.Curated)

	// A later device re-scan must not demote the curated contact.
	require.NoError(t, r.Add(deviceContact("+33612345678", "Jean Dupont")))
	c, _ = r.GetByPhone("+33612345678")
	assert.Equal(t, models.SourceCurated, c.Source)
}

func TestUpdateRejectsDemotion(t *testing.T) {
	r := newTestRepo(t)

	c := deviceContact("+33612345678", "Jean Dupont")
	c.Source = models.SourceRegistered
	c.Registered = &models.RegisteredPayload{Handle: "jean"}
	c.IsRegistered = models.BoolPtr(true)
	require.NoError(t, r.Add(c))

	err := r.Update("+33612345678", func(c *models.Contact) {
		c.Source = models.SourceCurated
	}, false)
	assert.ErrorIs(t, err, ErrDemotion)
}

func TestUpdatePreservesIdentity(t *testing.T) {
	r := newTestRepo(t)
	require.NoError(t, r.Add(deviceContact("+33612345678", "Jean Dupont")))

	before, _ := r.GetByPhone("+33612345678")
	require.NoError(t, r.Update("+33612345678", func(c *models.Contact) {
		c.Phone = "+10000000000" // must be ignored
		c.Email = "jean@example.fr"
	}, false))

	_, ok := r.GetByPhone("+10000000000")
	assert.False(t, ok)
	after, ok := r.GetByPhone("+33612345678")
	require.True(t, ok)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, "jean@example.fr", after.Email)
}

func TestUpdateMissing(t *testing.T) {
	r := newTestRepo(t)
	err := r.Update("+33600000000", func(c *models.Contact) {}, false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRestoreAsDevice(t *testing.T) {
	r := newTestRepo(t)

	c := deviceContact("+33612345678", "Jean Dupont")
	c.Source = models.SourceInvited
	c.Invitation = &models.Invitation{ID: "01ABC", Status: models.InvitationSent}
	c.IsRegistered = models.BoolPtr(false)
	c.RemoteID = "42"
	c.ContentHash = "deadbeef"
	require.NoError(t, r.Add(c))

	payload := &models.DevicePayload{RawRef: "raw-1"}
	require.NoError(t, r.RestoreAsDevice("+33612345678", payload))

	got, _ := r.GetByPhone("+33612345678")
	assert.Equal(t, models.SourceDevice, got.Source)
	assert.Nil(t, got.Invitation)
	assert.Nil(t, got.IsRegistered)
	assert.Empty(t, got.RemoteID)
	assert.Empty(t, got.ContentHash)
}

func TestRemove(t *testing.T) {
	r := newTestRepo(t)
	require.NoError(t, r.Add(deviceContact("+33612345678", "Jean Dupont")))
	require.NoError(t, r.Remove("+33612345678"))

	_, ok := r.GetByPhone("+33612345678")
	assert.False(t, ok)
	assert.ErrorIs(t, r.Remove("+33612345678"), ErrNotFound)
}

func TestGetBySource(t *testing.T) {
	r := newTestRepo(t)

	require.NoError(t, r.Add(deviceContact("+33612345678", "A")))
	curated := deviceContact("+33712345678", "B")
	curated.Source = models.SourceCurated
	require.NoError(t, r.Add(curated))

	assert.Len(t, r.GetBySource(models.SourceDevice), 1)
	assert.Len(t, r.GetBySource(models.SourceCurated), 1)
	assert.Empty(t, r.GetBySource(models.SourceRegistered))
}

func TestSubscribeDeliversInMutationOrder(t *testing.T) {
	r := newTestRepo(t)

	var events []EventType
	unsub := r.Subscribe(func(ev Event) {
		events = append(events, ev.Type)
	})
	defer unsub()

	require.NoError(t, r.Add(deviceContact("+33612345678", "A")))
	require.NoError(t, r.Update("+33612345678", func(c *models.Contact) { c.Email = "a@x.fr" }, false))
	require.NoError(t, r.Remove("+33612345678"))

	assert.Equal(t, []EventType{EventAdd, EventUpdate, EventRemove}, events)
}

func TestConcurrentUpdatesDeliverEventsInOrder(t *testing.T) {
	r := newTestRepo(t)
	require.NoError(t, r.Add(deviceContact("+33612345678", "A")))

	var got []string
	unsub := r.Subscribe(func(ev Event) {
		if ev.Type == EventUpdate {
			got = append(got, ev.Contact.Email)
		}
	})
	defer unsub()

	// The mutator runs under the store lock, so seq numbers the updates in
	// the order they linearized. Delivery must match that order.
	const workers, perWorker = 8, 25
	seq := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				assert.NoError(t, r.Update("+33612345678", func(c *models.Contact) {
					seq++
					c.Email = strconv.Itoa(seq) + "@x.fr"
				}, false))
			}
		}()
	}
	wg.Wait()

	require.Len(t, got, workers*perWorker)
	for i, email := range got {
		assert.Equal(t, strconv.Itoa(i+1)+"@x.fr", email)
	}
}

func TestSubscriberPanicIsolated(t *testing.T) {
	r := newTestRepo(t)

	var called bool
	r.Subscribe(func(ev Event) { panic("boom") })
	r.Subscribe(func(ev Event) { called = true })

	require.NoError(t, r.Add(deviceContact("+33612345678", "A")))
	assert.True(t, called, "panic in one subscriber must not affect others")
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	r := newTestRepo(t)

	var count int
	unsub := r.Subscribe(func(ev Event) { count++ })

	require.NoError(t, r.Add(deviceContact("+33612345678", "A")))
	unsub()
	require.NoError(t, r.Add(deviceContact("+33712345678", "B")))

	assert.Equal(t, 1, count)
}

func TestBatchEmitsSingleBulkEvent(t *testing.T) {
	r := newTestRepo(t)

	var events []Event
	r.Subscribe(func(ev Event) { events = append(events, ev) })

	batch, err := r.Begin()
	require.NoError(t, err)

	require.NoError(t, r.Add(deviceContact("+33612345678", "A")))
	require.NoError(t, r.Add(deviceContact("+33712345678", "B")))
	require.NoError(t, r.Update("+33612345678", func(c *models.Contact) { c.Email = "a@x.fr" }, true))

	assert.Empty(t, events, "individual notifications suppressed during batch")

	require.NoError(t, batch.Commit())
	require.Len(t, events, 1)
	assert.Equal(t, EventBulk, events[0].Type)
	assert.Len(t, events[0].Batch, 3)

	// Commit is idempotent.
	require.NoError(t, batch.Commit())
	assert.Len(t, events, 1)
}

func TestSecondBatchRejected(t *testing.T) {
	r := newTestRepo(t)

	batch, err := r.Begin()
	require.NoError(t, err)
	defer func() { _ = batch.Commit() }()

	_, err = r.Begin()
	assert.ErrorIs(t, err, ErrBatchActive)
}

func TestRollbackSuppressesNotification(t *testing.T) {
	r := newTestRepo(t)

	var events []Event
	r.Subscribe(func(ev Event) { events = append(events, ev) })

	batch, err := r.Begin()
	require.NoError(t, err)
	require.NoError(t, r.Add(deviceContact("+33612345678", "A")))
	batch.Rollback()

	assert.Empty(t, events)

	// Batch mode ended: a new batch may begin.
	next, err := r.Begin()
	require.NoError(t, err)
	require.NoError(t, next.Commit())
}
