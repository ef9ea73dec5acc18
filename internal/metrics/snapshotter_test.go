package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadwise/persona-service/internal/domain"
	"github.com/leadwise/persona-service/internal/storage"
)

type fakeSource struct {
	stats    *storage.ContactStats
	usage    []domain.KeywordUsage
	inserted []*domain.MetricsSnapshot
	deleted  []time.Time
}

func (f *fakeSource) ContactStats(ctx context.Context) (*storage.ContactStats, error) {
	return f.stats, nil
}

func (f *fakeSource) KeywordUsage(ctx context.Context) ([]domain.KeywordUsage, error) {
	return f.usage, nil
}

func (f *fakeSource) LatestSnapshot(ctx context.Context) (*domain.MetricsSnapshot, error) {
	if len(f.inserted) == 0 {
		return nil, nil
	}
	return f.inserted[len(f.inserted)-1], nil
}

func (f *fakeSource) InsertSnapshot(ctx context.Context, snap *domain.MetricsSnapshot) error {
	f.inserted = append(f.inserted, snap)
	return nil
}

func (f *fakeSource) DeleteSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.deleted = append(f.deleted, cutoff)
	return 3, nil
}

func testStats() *storage.ContactStats {
	return &storage.ContactStats{
		Total:      200,
		WithTitle:  150,
		Normalized: 150,
		Classified: 120,
		Locked:     5,
		Manual:     8,
		ByPersona: map[string]int64{
			"Decision Maker": 80,
			"Influencer":     40,
		},
	}
}

func testUsage() []domain.KeywordUsage {
	return []domain.KeywordUsage{
		{Keyword: "ceo", PersonaName: "Decision Maker", Count: 50},
		{Keyword: "director de marketing", PersonaName: "Influencer", Count: 30},
		{Keyword: "cto", PersonaName: "Decision Maker", Count: 30},
		{Keyword: "becario", PersonaName: "Influencer", Count: 0},
		{Keyword: "aprendiz", PersonaName: "Influencer", Count: 0},
	}
}

func TestSnapshotPercentages(t *testing.T) {
	src := &fakeSource{stats: testStats(), usage: testUsage()}
	s := NewSnapshotter(src, slog.Default(), Config{TopKeywords: 10})

	require.NoError(t, s.Snapshot(context.Background()))
	require.Len(t, src.inserted, 1)

	snap := src.inserted[0]
	assert.EqualValues(t, 200, snap.TotalContacts)
	assert.EqualValues(t, 5, snap.LockedCount)
	assert.EqualValues(t, 8, snap.ManualCount)
	assert.Equal(t, 75.0, snap.WithTitlePct)
	assert.Equal(t, 60.0, snap.ClassifiedPct)

	var byPersona map[string]int64
	require.NoError(t, json.Unmarshal(snap.ByPersona, &byPersona))
	assert.EqualValues(t, 80, byPersona["Decision Maker"])
}

func TestSnapshotEmptyCollection(t *testing.T) {
	src := &fakeSource{
		stats: &storage.ContactStats{ByPersona: map[string]int64{}},
	}
	s := NewSnapshotter(src, slog.Default(), Config{})

	require.NoError(t, s.Snapshot(context.Background()))

	snap := src.inserted[0]
	assert.Equal(t, 0.0, snap.ClassifiedPct, "zero total must not divide by zero")
	assert.Equal(t, 0.0, snap.WithTitlePct)
}

func TestSnapshotTopAndUnusedKeywords(t *testing.T) {
	src := &fakeSource{stats: testStats(), usage: testUsage()}
	s := NewSnapshotter(src, slog.Default(), Config{TopKeywords: 2})

	require.NoError(t, s.Snapshot(context.Background()))
	snap := src.inserted[0]

	var top []domain.KeywordUsage
	require.NoError(t, json.Unmarshal(snap.TopKeywords, &top))
	require.Len(t, top, 2)
	assert.Equal(t, "ceo", top[0].Keyword)
	// Count tie between "cto" and "director de marketing" breaks on the
	// keyword text, so the order is stable across runs.
	assert.Equal(t, "cto", top[1].Keyword)

	var unused []string
	require.NoError(t, json.Unmarshal(snap.UnusedKeywords, &unused))
	assert.Equal(t, []string{"aprendiz", "becario"}, unused)
}

func TestSnapshotDeltas(t *testing.T) {
	src := &fakeSource{stats: testStats(), usage: testUsage()}
	s := NewSnapshotter(src, slog.Default(), Config{TopKeywords: 10})

	// First snapshot has no predecessor, so deltas are null rather than
	// a misleading all-zero diff.
	require.NoError(t, s.Snapshot(context.Background()))
	assert.Equal(t, "null", string(src.inserted[0].Deltas))

	var deltas domain.SnapshotDeltas

	// The collection grows, then the second snapshot reports the change.
	src.stats = &storage.ContactStats{
		Total:      250,
		WithTitle:  200,
		Normalized: 200,
		Classified: 180,
		Locked:     7,
		Manual:     8,
		ByPersona:  map[string]int64{"Decision Maker": 120},
	}

	require.NoError(t, s.Snapshot(context.Background()))
	require.Len(t, src.inserted, 2)

	require.NoError(t, json.Unmarshal(src.inserted[1].Deltas, &deltas))
	assert.EqualValues(t, 50, deltas.TotalContacts)
	assert.EqualValues(t, 60, deltas.Classified)
	assert.EqualValues(t, 2, deltas.Locked)
	assert.Equal(t, 12.0, deltas.ClassifiedPct) // 72% - 60%
}

func TestPruneHonorsRetention(t *testing.T) {
	src := &fakeSource{stats: testStats()}

	s := NewSnapshotter(src, slog.Default(), Config{Retention: 90 * 24 * time.Hour})
	n, err := s.Prune(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	require.Len(t, src.deleted, 1)

	wantCutoff := time.Now().UTC().Add(-90 * 24 * time.Hour)
	assert.WithinDuration(t, wantCutoff, src.deleted[0], time.Minute)

	// Retention disabled means nothing is ever deleted.
	s = NewSnapshotter(src, slog.Default(), Config{})
	n, err = s.Prune(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, src.deleted, 1)
}
