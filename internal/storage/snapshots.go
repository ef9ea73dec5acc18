package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/leadwise/persona-service/internal/domain"
)

// ContactStats is the raw aggregate the snapshotter derives coverage
// percentages from.
type ContactStats struct {
	Total      int64
	WithTitle  int64
	Normalized int64
	Classified int64
	Locked     int64
	Manual     int64
	ByPersona  map[string]int64
}

// SnapshotStore reads aggregates and persists metrics snapshots. It is
// read-only over the contact and keyword collections; nothing here
// blocks or is blocked by the reclassification worker.
type SnapshotStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewSnapshotStore creates a new SnapshotStore instance
func NewSnapshotStore(db *sqlx.DB, logger *slog.Logger) *SnapshotStore {
	return &SnapshotStore{
		db:     db,
		logger: logger,
	}
}

// ContactStats aggregates contact coverage in one pass plus a per-persona
// grouping.
func (s *SnapshotStore) ContactStats(ctx context.Context) (*ContactStats, error) {
	var row struct {
		Total      int64 `db:"total"`
		WithTitle  int64 `db:"with_title"`
		Normalized int64 `db:"normalized"`
		Classified int64 `db:"classified"`
		Locked     int64 `db:"locked"`
		Manual     int64 `db:"manual"`
	}

	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE job_title IS NOT NULL AND job_title <> '') AS with_title,
			COUNT(*) FILTER (WHERE job_title_normalized IS NOT NULL AND job_title_normalized <> '') AS normalized,
			COUNT(*) FILTER (WHERE buyer_persona_id IS NOT NULL) AS classified,
			COUNT(*) FILTER (WHERE buyer_persona_locked) AS locked,
			COUNT(*) FILTER (WHERE buyer_persona_assigned_manually) AS manual
		FROM contacts
	`
	if err := s.db.GetContext(ctx, &row, query); err != nil {
		return nil, fmt.Errorf("failed to aggregate contact stats: %w", err)
	}

	stats := &ContactStats{
		Total:      row.Total,
		WithTitle:  row.WithTitle,
		Normalized: row.Normalized,
		Classified: row.Classified,
		Locked:     row.Locked,
		Manual:     row.Manual,
		ByPersona:  make(map[string]int64),
	}

	var byPersona []struct {
		Name  string `db:"name"`
		Count int64  `db:"count"`
	}
	query = `
		SELECT p.name AS name, COUNT(c.id) AS count
		FROM buyer_personas p
		LEFT JOIN contacts c ON c.buyer_persona_id = p.id
		GROUP BY p.name
	`
	if err := s.db.SelectContext(ctx, &byPersona, query); err != nil {
		return nil, fmt.Errorf("failed to aggregate persona distribution: %w", err)
	}
	for _, r := range byPersona {
		stats.ByPersona[r.Name] = r.Count
	}

	return stats, nil
}

// KeywordUsage counts, for every registered keyword, the contacts whose
// normalized title matches it exactly. Unused keywords appear with a
// zero count.
func (s *SnapshotStore) KeywordUsage(ctx context.Context) ([]domain.KeywordUsage, error) {
	var usage []domain.KeywordUsage
	query := `
		SELECT k.keyword AS keyword, p.name AS persona_name, COUNT(c.id) AS count
		FROM job_keywords k
		JOIN buyer_personas p ON p.id = k.buyer_persona_id
		LEFT JOIN contacts c ON c.job_title_normalized = k.keyword_normalized
		GROUP BY k.keyword, p.name
		ORDER BY count DESC, k.keyword
	`
	if err := s.db.SelectContext(ctx, &usage, query); err != nil {
		return nil, fmt.Errorf("failed to aggregate keyword usage: %w", err)
	}
	return usage, nil
}

// InsertSnapshot appends one immutable snapshot row.
func (s *SnapshotStore) InsertSnapshot(ctx context.Context, snap *domain.MetricsSnapshot) error {
	query := `
		INSERT INTO metrics_snapshots (
			taken_at, total_contacts, by_persona, locked_count, manual_count,
			with_title_pct, normalized_pct, classified_pct, classified_count,
			keyword_usage, top_keywords, unused_keywords, deltas
		) VALUES (
			:taken_at, :total_contacts, :by_persona, :locked_count, :manual_count,
			:with_title_pct, :normalized_pct, :classified_pct, :classified_count,
			:keyword_usage, :top_keywords, :unused_keywords, :deltas
		)
	`

	if _, err := s.db.NamedExecContext(ctx, query, snap); err != nil {
		return fmt.Errorf("failed to insert metrics snapshot: %w", err)
	}

	s.logger.Info("Metrics snapshot recorded",
		slog.Time("taken_at", snap.TakenAt),
		slog.Int64("total_contacts", snap.TotalContacts),
		slog.Float64("classified_pct", snap.ClassifiedPct),
	)

	return nil
}

const snapshotColumns = `
	id, taken_at, total_contacts, by_persona, locked_count, manual_count,
	with_title_pct, normalized_pct, classified_pct, classified_count,
	keyword_usage, top_keywords, unused_keywords, deltas
`

// LatestSnapshot returns the most recent snapshot, or nil when none
// exist yet.
func (s *SnapshotStore) LatestSnapshot(ctx context.Context) (*domain.MetricsSnapshot, error) {
	var snap domain.MetricsSnapshot
	query := `SELECT ` + snapshotColumns + ` FROM metrics_snapshots ORDER BY taken_at DESC LIMIT 1`

	err := s.db.GetContext(ctx, &snap, query)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}

	return &snap, nil
}

// SnapshotHistory returns snapshots taken within the last N days,
// newest first.
func (s *SnapshotStore) SnapshotHistory(ctx context.Context, days int) ([]domain.MetricsSnapshot, error) {
	var snaps []domain.MetricsSnapshot
	query := `
		SELECT ` + snapshotColumns + `
		FROM metrics_snapshots
		WHERE taken_at >= NOW() - make_interval(days => $1)
		ORDER BY taken_at DESC
	`

	if err := s.db.SelectContext(ctx, &snaps, query, days); err != nil {
		return nil, fmt.Errorf("failed to get snapshot history: %w", err)
	}

	return snaps, nil
}

// DeleteSnapshotsBefore prunes snapshots older than the retention
// cutoff and returns how many rows were removed.
func (s *SnapshotStore) DeleteSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM metrics_snapshots WHERE taken_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}
