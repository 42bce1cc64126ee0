package identity

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStorage wraps MemoryStorage and starts failing once broken is set.
type flakyStorage struct {
	*MemoryStorage
	mu     sync.Mutex
	broken bool
}

func newFlakyStorage() *flakyStorage {
	return &flakyStorage{MemoryStorage: NewMemoryStorage()}
}

func (f *flakyStorage) breakNow() {
	f.mu.Lock()
	f.broken = true
	f.mu.Unlock()
}

func (f *flakyStorage) isBroken() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.broken
}

func (f *flakyStorage) Get(ctx context.Context, key string) (string, bool, error) {
	if f.isBroken() {
		return "", false, errors.New("storage blocked")
	}
	return f.MemoryStorage.Get(ctx, key)
}

func (f *flakyStorage) Set(ctx context.Context, key, value string) error {
	if f.isBroken() {
		return errors.New("storage blocked")
	}
	return f.MemoryStorage.Set(ctx, key, value)
}

func TestSessionIDIsIdempotent(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryStorage()

	first := Open(ctx, backend).GetOrCreateSessionID(ctx)
	_, err := uuid.Parse(first)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		store := Open(ctx, backend)
		assert.Equal(t, first, store.GetOrCreateSessionID(ctx))
		assert.False(t, store.Degraded())
	}
}

func TestSessionIDSurvivesReloadWithFileStorage(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "widget.json")

	first := Open(ctx, NewFileStorage(path, "https://hotel.example"))
	id := first.GetOrCreateSessionID(ctx)
	first.GrantConsent(ctx)

	reloaded := Open(ctx, NewFileStorage(path, "https://hotel.example"))
	assert.Equal(t, id, reloaded.GetOrCreateSessionID(ctx))
	assert.True(t, reloaded.HasConsent(ctx))

	other := Open(ctx, NewFileStorage(path, "https://other.example"))
	assert.NotEqual(t, id, other.GetOrCreateSessionID(ctx))
	assert.False(t, other.HasConsent(ctx))
}

func TestGrantConsentIsIdempotent(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryStorage()
	store := Open(ctx, backend)

	assert.False(t, store.HasConsent(ctx))
	store.GrantConsent(ctx)
	store.GrantConsent(ctx)
	assert.True(t, store.HasConsent(ctx))

	v, ok, err := backend.Get(ctx, KeyConsent)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "true", v)
}

func TestIdentitySnapshot(t *testing.T) {
	ctx := context.Background()
	store := Open(ctx, NewMemoryStorage())

	got := store.Identity(ctx)
	assert.NotEmpty(t, got.SessionID)
	assert.False(t, got.ConsentGiven)

	store.GrantConsent(ctx)
	assert.Equal(t, Identity{SessionID: got.SessionID, ConsentGiven: true}, store.Identity(ctx))
}

func TestOpenDegradesWhenProbeFails(t *testing.T) {
	ctx := context.Background()
	backend := newFlakyStorage()
	backend.breakNow()

	var causes []error
	store := Open(ctx, backend, WithDegradedHook(func(err error) { causes = append(causes, err) }))

	require.True(t, store.Degraded())
	require.Len(t, causes, 1)

	id := store.GetOrCreateSessionID(ctx)
	assert.Equal(t, id, store.GetOrCreateSessionID(ctx))
	store.GrantConsent(ctx)
	assert.True(t, store.HasConsent(ctx))
	assert.Len(t, causes, 1)
}

func TestOpenWithoutBackendIsDegraded(t *testing.T) {
	ctx := context.Background()
	store := Open(ctx, nil)

	assert.True(t, store.Degraded())
	assert.NotEmpty(t, store.GetOrCreateSessionID(ctx))
	assert.NoError(t, store.Close())
}

func TestRuntimeFailureKeepsLastKnownIdentity(t *testing.T) {
	ctx := context.Background()
	backend := newFlakyStorage()
	store := Open(ctx, backend)

	id := store.GetOrCreateSessionID(ctx)
	require.False(t, store.Degraded())

	backend.breakNow()

	assert.Equal(t, id, store.GetOrCreateSessionID(ctx))
	assert.True(t, store.Degraded())

	store.GrantConsent(ctx)
	assert.True(t, store.HasConsent(ctx))
}

func TestOpenStorageDrivers(t *testing.T) {
	ctx := context.Background()

	mem, err := OpenStorage(ctx, configFor("memory", ""))
	require.NoError(t, err)
	assert.IsType(t, &MemoryStorage{}, mem)

	file, err := OpenStorage(ctx, configFor("file", filepath.Join(t.TempDir(), "w.json")))
	require.NoError(t, err)
	assert.IsType(t, &FileStorage{}, file)

	db, err := OpenStorage(ctx, configFor("sqlite", ":memory:"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStorage{}, db)
	require.NoError(t, db.Close())

	_, err = OpenStorage(ctx, configFor("etcd", ""))
	require.Error(t, err)

	_, err = OpenStorage(ctx, configFor("sqlite", ""))
	require.Error(t, err)
}
