package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsClaimed tracks jobs claimed by this worker process
	JobsClaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "persona_jobs_claimed_total",
			Help: "Total number of reclassification jobs claimed",
		},
	)

	// JobsFinished tracks finished jobs by terminal status
	JobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "persona_jobs_finished_total",
			Help: "Total number of reclassification jobs finished",
		},
		[]string{"status"},
	)

	// ContactsScanned tracks contacts examined by reclassification scans
	ContactsScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "persona_contacts_scanned_total",
			Help: "Total number of contacts scanned by reclassification jobs",
		},
	)

	// ContactsChanged tracks persona assignments changed (or recorded in dry runs)
	ContactsChanged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "persona_contacts_changed_total",
			Help: "Total number of contact persona changes computed",
		},
		[]string{"dry_run"},
	)

	// ContactsSkippedLocked tracks contacts skipped due to manual-override locks
	ContactsSkippedLocked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "persona_contacts_skipped_locked_total",
			Help: "Total number of locked contacts skipped during scans",
		},
	)

	// CacheReloads tracks classifier catalog invalidations observed
	CacheReloads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "persona_cache_invalidations_total",
			Help: "Total number of classifier cache invalidation signals handled",
		},
	)

	// SnapshotsTaken tracks metrics snapshots written
	SnapshotsTaken = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "persona_metrics_snapshots_total",
			Help: "Total number of metrics snapshots recorded",
		},
	)

	// SnapshotLastClassifiedPct exposes the latest classification coverage
	SnapshotLastClassifiedPct = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "persona_classified_coverage_percent",
			Help: "Classification coverage percentage from the latest snapshot",
		},
	)
)
