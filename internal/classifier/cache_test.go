package classifier

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadwise/persona-service/internal/domain"
)

type fakeLoader struct {
	mu       sync.Mutex
	loads    atomic.Int64
	personas []domain.BuyerPersona
	keywords []domain.JobKeyword
	err      error
	onLoad   func() // runs inside LoadCatalog, before returning
}

func (f *fakeLoader) LoadCatalog(ctx context.Context) ([]domain.BuyerPersona, []domain.JobKeyword, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads.Add(1)
	// Snapshot the catalog at load entry so a mid-load mutation made by
	// onLoad is visible only to subsequent loads.
	personas := append([]domain.BuyerPersona(nil), f.personas...)
	keywords := append([]domain.JobKeyword(nil), f.keywords...)
	if f.onLoad != nil {
		f.onLoad()
	}
	if f.err != nil {
		return nil, nil, f.err
	}
	return personas, keywords, nil
}

func (f *fakeLoader) set(personas []domain.BuyerPersona, keywords []domain.JobKeyword) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.personas = personas
	f.keywords = keywords
}

func testPersonas() []domain.BuyerPersona {
	return []domain.BuyerPersona{
		{ID: 3, Name: "Other", Priority: 999, IsDefault: true},
		{ID: 1, Name: "Executive", Priority: 1},
		{ID: 2, Name: "Marketing Lead", Priority: 2},
	}
}

func testKeywords() []domain.JobKeyword {
	return []domain.JobKeyword{
		{ID: 10, Keyword: "CEO", KeywordNormalized: "ceo", BuyerPersonaID: 1},
		{ID: 11, Keyword: "Director de Marketing", KeywordNormalized: "director de marketing", BuyerPersonaID: 2},
	}
}

func TestCacheSnapshotLoadsOnce(t *testing.T) {
	loader := &fakeLoader{}
	loader.set(testPersonas(), testKeywords())
	cache := NewCache(loader, slog.Default())

	snap1, err := cache.Snapshot(context.Background())
	require.NoError(t, err)
	snap2, err := cache.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Same(t, snap1, snap2)
	assert.EqualValues(t, 1, loader.loads.Load())
	assert.EqualValues(t, 1, snap1.Generation)
}

func TestCacheSnapshotOrdering(t *testing.T) {
	loader := &fakeLoader{}
	loader.set(testPersonas(), testKeywords())
	cache := NewCache(loader, slog.Default())

	snap, err := cache.Snapshot(context.Background())
	require.NoError(t, err)

	// Ascending priority, default last.
	require.Len(t, snap.Personas, 3)
	assert.Equal(t, "Executive", snap.Personas[0].Name)
	assert.Equal(t, "Marketing Lead", snap.Personas[1].Name)
	assert.Equal(t, "Other", snap.Personas[2].Name)
	assert.Equal(t, int64(3), snap.Default.ID)
}

func TestCacheInvalidateTriggersReload(t *testing.T) {
	loader := &fakeLoader{}
	loader.set(testPersonas(), testKeywords())
	cache := NewCache(loader, slog.Default())

	snap, err := cache.Snapshot(context.Background())
	require.NoError(t, err)
	_, hasNew := snap.Personas[1].Keywords["cmo"]
	assert.False(t, hasNew)

	// Admin adds a keyword, then the invalidation signal arrives.
	loader.set(testPersonas(), append(testKeywords(),
		domain.JobKeyword{ID: 12, Keyword: "CMO", KeywordNormalized: "cmo", BuyerPersonaID: 2},
	))
	cache.Invalidate()

	snap, err = cache.Snapshot(context.Background())
	require.NoError(t, err)
	_, hasNew = snap.Personas[1].Keywords["cmo"]
	assert.True(t, hasNew)
	assert.EqualValues(t, 2, snap.Generation)
	assert.EqualValues(t, 2, loader.loads.Load())
}

func TestCacheInvalidateDuringLoadForcesReload(t *testing.T) {
	loader := &fakeLoader{
		personas: testPersonas(),
		keywords: testKeywords(),
	}
	cache := NewCache(loader, slog.Default())

	// The invalidation signal lands while the first load is still in
	// flight, carrying a keyword the in-flight load does not see yet.
	loader.onLoad = func() {
		cache.Invalidate()
		loader.keywords = append(testKeywords(),
			domain.JobKeyword{ID: 12, Keyword: "CMO", KeywordNormalized: "cmo", BuyerPersonaID: 2},
		)
		loader.onLoad = nil
	}

	snap, err := cache.Snapshot(context.Background())
	require.NoError(t, err)
	_, hasNew := snap.Personas[1].Keywords["cmo"]
	assert.False(t, hasNew)

	// The snapshot stored by the first load is already stale, so the
	// next call must reload and pick the keyword up.
	snap, err = cache.Snapshot(context.Background())
	require.NoError(t, err)
	_, hasNew = snap.Personas[1].Keywords["cmo"]
	assert.True(t, hasNew)
	assert.EqualValues(t, 2, loader.loads.Load())
}

func TestCacheConcurrentSnapshot(t *testing.T) {
	loader := &fakeLoader{}
	loader.set(testPersonas(), testKeywords())
	cache := NewCache(loader, slog.Default())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := cache.Snapshot(context.Background())
			assert.NoError(t, err)
			assert.NotNil(t, snap)
		}()
	}
	wg.Wait()

	// Concurrent callers during a load must not trigger duplicate loads.
	assert.EqualValues(t, 1, loader.loads.Load())
}

func TestCacheLoadError(t *testing.T) {
	loader := &fakeLoader{err: errors.New("connection refused")}
	cache := NewCache(loader, slog.Default())

	_, err := cache.Snapshot(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load classifier catalog")

	// A failed load leaves the cache invalid; the next call retries.
	loader.mu.Lock()
	loader.err = nil
	loader.personas = testPersonas()
	loader.keywords = testKeywords()
	loader.mu.Unlock()

	_, err = cache.Snapshot(context.Background())
	require.NoError(t, err)
}

func TestCacheNoDefaultPersona(t *testing.T) {
	loader := &fakeLoader{}
	loader.set([]domain.BuyerPersona{{ID: 1, Name: "Executive", Priority: 1}}, nil)
	cache := NewCache(loader, slog.Default())

	_, err := cache.Snapshot(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoDefaultPersona)
}
