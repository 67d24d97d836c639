// ABOUTME: Tests for the push and detection algorithms
// ABOUTME: Covers idempotence, conflict-as-success, auth aborts, and cache lifecycle
package sync

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copainapp/copain/models"
	"github.com/copainapp/copain/remote"
	"github.com/copainapp/copain/store"
)

type fixture struct {
	backend *remote.FakeBackend
	repo    *store.Repository
	engine  *Engine
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	backend := remote.NewFakeBackend()
	t.Cleanup(backend.Close)

	client := remote.NewClient(remote.Config{
		BaseURL:     backend.URL(),
		TokenSource: remote.NewStaticTokenSource("test-token"),
	}, nil)

	repo := store.NewRepository(nil, nil)
	f := &fixture{backend: backend, repo: repo, now: time.Now()}

	f.engine = NewEngine(repo, client, Config{
		BatchSize:         5,
		Workers:           2,
		RequestsPerSecond: 10000, // tests should not wait on the bucket
	}, nil, WithClock(func() time.Time { return f.now }))

	return f
}

func curatedContact(phone, name string) models.Contact {
	return models.Contact{
		ID:          uuid.New(),
		Phone:       phone,
		DisplayName: name,
		Source:      models.SourceCurated,
		Curated:     &models.CuratedPayload{ImportedAt: time.Now()},
	}
}

func TestPushCreatesAndRecordsRemoteIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.Add(curatedContact("+33612345678", "Jean Dupont")))
	require.NoError(t, f.repo.Add(curatedContact("+33712345678", "Jeanne Martin")))

	result, err := f.engine.Push(ctx, f.repo.GetAll(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Zero(t, result.Failed)
	assert.Empty(t, result.Errors)

	assert.Equal(t, 2, f.backend.ContactCount())

	c, _ := f.repo.GetByPhone("+33612345678")
	assert.NotEmpty(t, c.RemoteID)
	assert.Equal(t, ContentHash("Jean Dupont", "", "+33612345678"), c.ContentHash)
}

func TestPushIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.Add(curatedContact("+33612345678", "Jean Dupont")))

	first, err := f.engine.Push(ctx, f.repo.GetAll(), false)
	require.NoError(t, err)
	require.Equal(t, 1, first.Created)
	callsAfterFirst := f.backend.CreateContactCalls

	// Unchanged contact set: zero remote creates on the second run.
	second, err := f.engine.Push(ctx, f.repo.GetAll(), false)
	require.NoError(t, err)
	assert.Zero(t, second.Created)
	assert.Equal(t, 1, second.Skipped)
	assert.Equal(t, callsAfterFirst, f.backend.CreateContactCalls)
}

func TestPushSkipsValidationFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	noName := curatedContact("+33612345678", "")
	result, err := f.engine.Push(ctx, []models.Contact{noName}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, f.backend.CreateContactCalls)
}

func TestPushConflictTreatedAsSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The record exists remotely but the local side does not know. Warm the
	// existing index first (empty backend), then seed the backend so the
	// create collides.
	require.NoError(t, f.engine.ensureExisting(ctx))
	remoteID := f.backend.SeedContact(remote.ContactAttributes{
		Name: "Jean Dupont", Telephone: "+33612345678",
	})

	require.NoError(t, f.repo.Add(curatedContact("+33612345678", "Jean Dupont")))

	result, err := f.engine.Push(ctx, f.repo.GetAll(), false)
	require.NoError(t, err)
	assert.Zero(t, result.Created)
	assert.Zero(t, result.Failed, "conflict is not surfaced as an error")
	assert.Equal(t, 1, result.Skipped)

	// Same observable state as if the item had been skipped as already
	// synced: linkage recorded, index updated.
	c, _ := f.repo.GetByPhone("+33612345678")
	assert.Equal(t, remoteID, c.RemoteID)

	id, ok := f.engine.existingID("+33612345678")
	assert.True(t, ok)
	assert.Equal(t, remoteID, id)
}

func TestPushSkipsContactsAlreadyInRemoteIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.backend.SeedContact(remote.ContactAttributes{Name: "Jean Dupont", Telephone: "+33612345678"})
	require.NoError(t, f.repo.Add(curatedContact("+33612345678", "Jean Dupont")))

	result, err := f.engine.Push(ctx, f.repo.GetAll(), false)
	require.NoError(t, err)
	assert.Zero(t, result.Created)
	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, f.backend.CreateContactCalls, "index hit avoids the remote write")
}

func TestPushAuthFailureAborts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.backend.FailAuth = true
	require.NoError(t, f.repo.Add(curatedContact("+33612345678", "Jean Dupont")))

	_, err := f.engine.Push(ctx, f.repo.GetAll(), false)
	assert.ErrorIs(t, err, remote.ErrAuthentication)
}

func TestPushCancelledRunCountsDrainedItemsAsSkipped(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.repo.Add(curatedContact("+33612345678", "Jean Dupont")))
	require.NoError(t, f.repo.Add(curatedContact("+33712345678", "Jeanne Martin")))

	// Warm the remote index so the cancelled run never reaches the network.
	require.NoError(t, f.engine.ensureExisting(context.Background()))
	callsBefore := f.backend.CreateContactCalls

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.engine.Push(ctx, f.repo.GetAll(), false)
	require.NoError(t, err)

	// Every drained item lands in a counter; nothing was written remotely.
	assert.Equal(t, 2, result.Skipped)
	assert.Zero(t, result.Created)
	assert.Zero(t, result.Failed)
	assert.Equal(t, callsBefore, f.backend.CreateContactCalls)
}

func TestPushForceResyncsUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.Add(curatedContact("+33612345678", "Jean Dupont")))
	_, err := f.engine.Push(ctx, f.repo.GetAll(), false)
	require.NoError(t, err)

	// force bypasses the hash skip; the existing index still keeps the call
	// remote-free, but the item is re-evaluated rather than hash-skipped.
	result, err := f.engine.Push(ctx, f.repo.GetAll(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, result.Failed)
}

func TestDetect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.backend.SeedUser("jean", "+33612345678")

	require.NoError(t, f.repo.Add(curatedContact("+33612345678", "Jean Dupont")))
	require.NoError(t, f.repo.Add(curatedContact("+33712345678", "Jeanne Martin")))

	// Raw formats vary; results are keyed by the original strings.
	result, err := f.engine.Detect(ctx, []string{"06 12 34 56 78", "0712345678", "bad"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Checked)
	assert.Equal(t, 1, result.Found)
	assert.True(t, result.Registered["06 12 34 56 78"])
	assert.False(t, result.Registered["0712345678"])
	_, checked := result.Registered["bad"]
	assert.False(t, checked, "unnormalizable input is not checked")
}

func TestDetectUsesCacheWithinTTL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.backend.SeedUser("jean", "+33612345678")

	_, err := f.engine.Detect(ctx, []string{"0612345678"})
	require.NoError(t, err)
	callsAfterFirst := f.backend.ListUserCalls

	// A user registered after the snapshot is invisible until the TTL
	// expires: bounded staleness, zero extra remote calls.
	f.backend.SeedUser("jeanne", "+33712345678")
	result, err := f.engine.Detect(ctx, []string{"0712345678"})
	require.NoError(t, err)
	assert.False(t, result.Registered["0712345678"])
	assert.Equal(t, callsAfterFirst, f.backend.ListUserCalls)

	// Past the TTL the listing is refetched.
	f.now = f.now.Add(DefaultCacheTTL + time.Minute)
	result, err = f.engine.Detect(ctx, []string{"0712345678"})
	require.NoError(t, err)
	assert.True(t, result.Registered["0712345678"])
	assert.Greater(t, f.backend.ListUserCalls, callsAfterFirst)
}

func TestResetCachesForcesRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Detect(ctx, []string{"0612345678"})
	require.NoError(t, err)

	f.backend.SeedUser("jean", "+33612345678")
	f.engine.ResetCaches()

	result, err := f.engine.Detect(ctx, []string{"0612345678"})
	require.NoError(t, err)
	assert.True(t, result.Registered["0612345678"])
}

func TestDetectAuthFailure(t *testing.T) {
	f := newFixture(t)
	f.backend.FailAuth = true

	_, err := f.engine.Detect(context.Background(), []string{"0612345678"})
	assert.ErrorIs(t, err, remote.ErrAuthentication)
}

func TestContentHashStable(t *testing.T) {
	a := ContentHash("Jean Dupont", "jean@example.fr", "+33612345678")
	b := ContentHash("  jean dupont ", "JEAN@example.fr", "+33612345678")
	assert.Equal(t, a, b, "case and surrounding whitespace do not change the fingerprint")

	c := ContentHash("Jean Dupont", "other@example.fr", "+33612345678")
	assert.NotEqual(t, a, c)
}
