package domain

import "time"

// KeywordUsage is a per-keyword count of contacts whose normalized title
// matches it exactly.
type KeywordUsage struct {
	Keyword     string `db:"keyword" json:"keyword"`
	PersonaName string `db:"persona_name" json:"persona_name"`
	Count       int64  `db:"count" json:"count"`
}

// SnapshotDeltas compares a snapshot against the most recent prior one.
// The first snapshot in the series carries no deltas.
type SnapshotDeltas struct {
	TotalContacts int64   `json:"total_contacts"`
	Classified    int64   `json:"classified"`
	ClassifiedPct float64 `json:"classified_pct"`
	Locked        int64   `json:"locked"`
}

// MetricsSnapshot is one immutable coverage measurement. Rows are
// append-only and pruned after the retention window.
type MetricsSnapshot struct {
	ID             int64     `db:"id"`
	TakenAt        time.Time `db:"taken_at"`
	TotalContacts  int64     `db:"total_contacts"`
	ByPersona      []byte    `db:"by_persona"`      // jsonb: persona name -> count
	LockedCount    int64     `db:"locked_count"`
	ManualCount    int64     `db:"manual_count"`
	WithTitlePct   float64   `db:"with_title_pct"`
	NormalizedPct  float64   `db:"normalized_pct"`
	ClassifiedPct  float64   `db:"classified_pct"`
	ClassifiedNum  int64     `db:"classified_count"`
	KeywordUsage   []byte    `db:"keyword_usage"`   // jsonb: []KeywordUsage
	TopKeywords    []byte    `db:"top_keywords"`    // jsonb: []KeywordUsage
	UnusedKeywords []byte    `db:"unused_keywords"` // jsonb: []string
	Deltas         []byte    `db:"deltas"`          // jsonb: SnapshotDeltas
}
