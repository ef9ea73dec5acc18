package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/leadwise/persona-service/internal/domain"
)

// CatalogLoader reads the full persona/keyword catalog in one pass.
// Implemented by the Postgres catalog store; tests supply fakes.
type CatalogLoader interface {
	LoadCatalog(ctx context.Context) ([]domain.BuyerPersona, []domain.JobKeyword, error)
}

// PersonaEntry is one persona in a catalog snapshot, with its keyword
// set keyed by normalized form. The values are the raw keyword strings
// sharing that normalized form, kept for match explanations.
type PersonaEntry struct {
	ID        int64
	Name      string
	Priority  int
	IsDefault bool
	Keywords  map[string][]string
}

// Catalog is one immutable snapshot of the keyword->persona catalog.
// Personas are ordered by ascending priority with the default persona
// last. A snapshot is never mutated after Build; refresh replaces the
// whole structure.
type Catalog struct {
	Generation uint64
	Personas   []PersonaEntry
	Default    PersonaEntry
}

// Cache serves catalog snapshots without a storage round-trip per
// lookup. A refresh builds a complete snapshot and swaps it in
// atomically, so concurrent readers never observe a half-built
// structure. Staleness is tracked with an epoch pair rather than a
// boolean: the snapshot is current only while loaded equals epoch, so
// an Invalidate arriving while a load is in flight still forces the
// next caller to load again.
type Cache struct {
	loader CatalogLoader
	logger *slog.Logger

	mu     sync.Mutex // serializes loads, not reads
	gen    atomic.Uint64
	epoch  atomic.Uint64 // bumped by every Invalidate
	loaded atomic.Uint64 // epoch observed before the last completed load
	snap   atomic.Pointer[Catalog]
}

// NewCache creates an empty, invalid cache.
func NewCache(loader CatalogLoader, logger *slog.Logger) *Cache {
	return &Cache{
		loader: loader,
		logger: logger,
	}
}

// Snapshot returns the current catalog, loading it first if the cache
// is invalid. Concurrent callers during a load share one read.
func (c *Cache) Snapshot(ctx context.Context) (*Catalog, error) {
	if snap := c.snap.Load(); snap != nil && c.loaded.Load() == c.epoch.Load() {
		return snap, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another caller may have finished the load while we waited.
	if snap := c.snap.Load(); snap != nil && c.loaded.Load() == c.epoch.Load() {
		return snap, nil
	}

	// Record the epoch before reading. An Invalidate racing with the
	// load advances epoch past this value, leaving the stored snapshot
	// stale and forcing another load on the next call.
	observed := c.epoch.Load()

	personas, keywords, err := c.loader.LoadCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load classifier catalog: %w", err)
	}

	snap, err := buildCatalog(personas, keywords, c.gen.Add(1))
	if err != nil {
		return nil, err
	}

	c.snap.Store(snap)
	c.loaded.Store(observed)

	c.logger.Info("Classifier catalog loaded",
		slog.Uint64("generation", snap.Generation),
		slog.Int("personas", len(snap.Personas)),
		slog.Int("keywords", len(keywords)),
	)

	return snap, nil
}

// Invalidate marks the cache stale. The next Snapshot call from any
// goroutine triggers a fresh catalog read.
func (c *Cache) Invalidate() {
	c.epoch.Add(1)
	c.logger.Debug("Classifier cache invalidated")
}

// Generation returns the generation of the last completed load.
func (c *Cache) Generation() uint64 {
	return c.gen.Load()
}

func buildCatalog(personas []domain.BuyerPersona, keywords []domain.JobKeyword, generation uint64) (*Catalog, error) {
	entries := make([]PersonaEntry, 0, len(personas))
	byID := make(map[int64]int, len(personas))

	for _, p := range personas {
		byID[p.ID] = len(entries)
		entries = append(entries, PersonaEntry{
			ID:        p.ID,
			Name:      p.Name,
			Priority:  p.Priority,
			IsDefault: p.IsDefault,
			Keywords:  make(map[string][]string),
		})
	}

	for _, kw := range keywords {
		idx, ok := byID[kw.BuyerPersonaID]
		if !ok {
			// Keyword pointing at a deleted persona; skip rather than
			// fail the whole load.
			continue
		}
		normalized := kw.KeywordNormalized
		if normalized == "" {
			normalized = Normalize(kw.Keyword)
		}
		if normalized == "" {
			continue
		}
		entries[idx].Keywords[normalized] = append(entries[idx].Keywords[normalized], kw.Keyword)
	}

	// Ascending priority, default persona last regardless of its stored
	// priority. Ties broken by id so the order is total.
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDefault != entries[j].IsDefault {
			return entries[j].IsDefault
		}
		if entries[i].Priority != entries[j].Priority {
			return entries[i].Priority < entries[j].Priority
		}
		return entries[i].ID < entries[j].ID
	})

	cat := &Catalog{Generation: generation, Personas: entries}

	found := false
	for _, e := range entries {
		if e.IsDefault {
			cat.Default = e
			found = true
			break
		}
	}
	if !found {
		return nil, domain.ErrNoDefaultPersona
	}

	return cat, nil
}
