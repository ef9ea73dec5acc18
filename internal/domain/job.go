package domain

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// Job status constants
const (
	JobStatusPending    = "PENDING"
	JobStatusProcessing = "PROCESSING"
	JobStatusCompleted  = "COMPLETED"
	JobStatusFailed     = "FAILED"
	JobStatusCancelled  = "CANCELLED"
)

// Filter kinds select which contacts a reclassification job scans.
const (
	FilterAll       = "all"
	FilterByKeyword = "by_keyword"
	FilterByPersona = "by_persona"
	FilterAffected  = "affected"
)

// DefaultMaxAttempts bounds how many times a failing job is retried
// before it lands in FAILED.
const DefaultMaxAttempts = 3

// ReclassificationJob is one durable job record. Transitions are owned
// exclusively by the worker once claimed; terminal states are only
// reopened by an explicit retry.
type ReclassificationJob struct {
	ID              string         `db:"id"`
	Status          string         `db:"status"`
	FilterKind      string         `db:"filter_kind"`
	FilterKeywordID sql.NullInt64  `db:"filter_keyword_id"`
	FilterPersonaID sql.NullInt64  `db:"filter_persona_id"`
	FilterKeywords  pq.StringArray `db:"filter_keywords"`
	DryRun          bool           `db:"dry_run"`
	Scanned         int64          `db:"scanned"`
	Changed         int64          `db:"changed"`
	SkippedLocked   int64          `db:"skipped_locked"`
	Errors          int64          `db:"errors"`
	Attempts        int            `db:"attempts"`
	MaxAttempts     int            `db:"max_attempts"`
	CancelRequested bool           `db:"cancel_requested"`
	WorkerID        sql.NullString `db:"worker_id"`
	ErrorMessage    sql.NullString `db:"error_message"`
	LastHeartbeatAt sql.NullTime   `db:"last_heartbeat_at"`
	StartedAt       sql.NullTime   `db:"started_at"`
	CompletedAt     sql.NullTime   `db:"completed_at"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

// Filter returns the job's filter descriptor.
func (j *ReclassificationJob) Filter() JobFilter {
	f := JobFilter{Kind: j.FilterKind, Keywords: []string(j.FilterKeywords)}
	if j.FilterKeywordID.Valid {
		f.KeywordID = j.FilterKeywordID.Int64
	}
	if j.FilterPersonaID.Valid {
		f.PersonaID = j.FilterPersonaID.Int64
	}
	return f
}

// IsTerminal reports whether a status can no longer change except via
// explicit retry.
func IsTerminal(status string) bool {
	switch status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// CanCancel reports whether a job in the given status accepts a
// cancellation request.
func CanCancel(status string) bool {
	return status == JobStatusPending || status == JobStatusProcessing
}

// CanRetry reports whether a job may be reset to PENDING by the retry
// endpoint. Only FAILED jobs qualify.
func CanRetry(status string) bool {
	return status == JobStatusFailed
}

// JobFilter describes which contacts a job scans. Exactly one form is
// populated, selected by Kind.
type JobFilter struct {
	Kind      string
	KeywordID int64
	PersonaID int64
	Keywords  []string // normalized, for FilterAffected
}

// JobCounters accumulates per-job progress. Counters are monotonically
// non-decreasing within one scan and persisted after every batch.
type JobCounters struct {
	Scanned       int64
	Changed       int64
	SkippedLocked int64
	Errors        int64
}

// Add merges batch-level counters into the running totals.
func (c *JobCounters) Add(d JobCounters) {
	c.Scanned += d.Scanned
	c.Changed += d.Changed
	c.SkippedLocked += d.SkippedLocked
	c.Errors += d.Errors
}

// JobChange is one before/after audit entry. Applied is false for
// dry-run jobs, where the change was computed but never written.
type JobChange struct {
	ID            int64         `db:"id"`
	JobID         string        `db:"job_id"`
	ContactID     int64         `db:"contact_id"`
	PersonaBefore sql.NullInt64 `db:"persona_before"`
	PersonaAfter  sql.NullInt64 `db:"persona_after"`
	Applied       bool          `db:"applied"`
	CreatedAt     time.Time     `db:"created_at"`
}
