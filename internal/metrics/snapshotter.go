package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/leadwise/persona-service/internal/domain"
	"github.com/leadwise/persona-service/internal/storage"
)

// SnapshotSource is the read side the snapshotter aggregates over.
// Implemented by storage.SnapshotStore; tests supply fakes.
type SnapshotSource interface {
	ContactStats(ctx context.Context) (*storage.ContactStats, error)
	KeywordUsage(ctx context.Context) ([]domain.KeywordUsage, error)
	LatestSnapshot(ctx context.Context) (*domain.MetricsSnapshot, error)
	InsertSnapshot(ctx context.Context, snap *domain.MetricsSnapshot) error
	DeleteSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Config holds snapshotter settings.
type Config struct {
	Interval    time.Duration
	Retention   time.Duration
	TopKeywords int
}

// Snapshotter periodically measures classification coverage and writes
// one immutable snapshot per run. It runs on its own timer, independent
// of the reclassification worker, and only ever reads the collections
// the worker writes.
type Snapshotter struct {
	source SnapshotSource
	logger *slog.Logger
	cfg    Config
}

// NewSnapshotter creates a new Snapshotter instance
func NewSnapshotter(source SnapshotSource, logger *slog.Logger, cfg Config) *Snapshotter {
	if cfg.TopKeywords <= 0 {
		cfg.TopKeywords = 10
	}
	return &Snapshotter{
		source: source,
		logger: logger,
		cfg:    cfg,
	}
}

// Start runs the snapshot loop until the context is canceled. One
// snapshot is taken immediately so a fresh deployment has data before
// the first interval elapses.
func (s *Snapshotter) Start(ctx context.Context) {
	s.logger.Info("Starting metrics snapshotter",
		slog.Duration("interval", s.cfg.Interval),
		slog.Duration("retention", s.cfg.Retention),
	)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.run(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Metrics snapshotter stopped")
			return
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

func (s *Snapshotter) run(ctx context.Context) {
	if err := s.Snapshot(ctx); err != nil {
		s.logger.Error("Failed to take metrics snapshot",
			slog.String("error", err.Error()),
		)
	}

	if n, err := s.Prune(ctx); err != nil {
		s.logger.Error("Failed to prune metrics snapshots",
			slog.String("error", err.Error()),
		)
	} else if n > 0 {
		s.logger.Info("Pruned old metrics snapshots",
			slog.Int64("deleted", n),
		)
	}
}

// Snapshot aggregates current coverage and appends one snapshot row,
// including deltas against the most recent prior snapshot.
func (s *Snapshotter) Snapshot(ctx context.Context) error {
	stats, err := s.source.ContactStats(ctx)
	if err != nil {
		return err
	}

	usage, err := s.source.KeywordUsage(ctx)
	if err != nil {
		return err
	}

	prev, err := s.source.LatestSnapshot(ctx)
	if err != nil {
		return err
	}

	snap, err := buildSnapshot(stats, usage, prev, time.Now().UTC(), s.cfg.TopKeywords)
	if err != nil {
		return err
	}

	if err := s.source.InsertSnapshot(ctx, snap); err != nil {
		return err
	}

	SnapshotsTaken.Inc()
	SnapshotLastClassifiedPct.Set(snap.ClassifiedPct)

	return nil
}

// Prune removes snapshots older than the retention window.
func (s *Snapshotter) Prune(ctx context.Context) (int64, error) {
	if s.cfg.Retention <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-s.cfg.Retention)
	return s.source.DeleteSnapshotsBefore(ctx, cutoff)
}

func buildSnapshot(stats *storage.ContactStats, usage []domain.KeywordUsage, prev *domain.MetricsSnapshot, now time.Time, topN int) (*domain.MetricsSnapshot, error) {
	snap := &domain.MetricsSnapshot{
		TakenAt:       now,
		TotalContacts: stats.Total,
		LockedCount:   stats.Locked,
		ManualCount:   stats.Manual,
		ClassifiedNum: stats.Classified,
		WithTitlePct:  percentage(stats.WithTitle, stats.Total),
		NormalizedPct: percentage(stats.Normalized, stats.Total),
		ClassifiedPct: percentage(stats.Classified, stats.Total),
	}

	var err error
	if snap.ByPersona, err = json.Marshal(stats.ByPersona); err != nil {
		return nil, fmt.Errorf("failed to encode persona distribution: %w", err)
	}

	sorted := append([]domain.KeywordUsage(nil), usage...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Count != sorted[j].Count {
			return sorted[i].Count > sorted[j].Count
		}
		return sorted[i].Keyword < sorted[j].Keyword
	})

	top := make([]domain.KeywordUsage, 0, topN)
	unused := make([]string, 0)
	for _, u := range sorted {
		if u.Count == 0 {
			unused = append(unused, u.Keyword)
			continue
		}
		if len(top) < topN {
			top = append(top, u)
		}
	}
	sort.Strings(unused)

	if snap.KeywordUsage, err = json.Marshal(sorted); err != nil {
		return nil, fmt.Errorf("failed to encode keyword usage: %w", err)
	}
	if snap.TopKeywords, err = json.Marshal(top); err != nil {
		return nil, fmt.Errorf("failed to encode top keywords: %w", err)
	}
	if snap.UnusedKeywords, err = json.Marshal(unused); err != nil {
		return nil, fmt.Errorf("failed to encode unused keywords: %w", err)
	}

	// The first snapshot has no baseline; null deltas make that
	// distinguishable from a genuinely unchanged period.
	if prev == nil {
		snap.Deltas = []byte("null")
	} else {
		deltas := domain.SnapshotDeltas{
			TotalContacts: snap.TotalContacts - prev.TotalContacts,
			Classified:    snap.ClassifiedNum - prev.ClassifiedNum,
			ClassifiedPct: round2(snap.ClassifiedPct - prev.ClassifiedPct),
			Locked:        snap.LockedCount - prev.LockedCount,
		}
		if snap.Deltas, err = json.Marshal(deltas); err != nil {
			return nil, fmt.Errorf("failed to encode snapshot deltas: %w", err)
		}
	}

	return snap, nil
}

func percentage(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(part) / float64(total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
