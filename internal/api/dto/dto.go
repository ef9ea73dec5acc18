package dto

import "encoding/json"

// ReclassifyRequest starts a full-collection reclassification job.
// DryRun is a pointer so an omitted field defaults to true: destructive
// runs must be requested explicitly.
type ReclassifyRequest struct {
	DryRun *bool `json:"dry_run"`
}

// ReclassifyByKeywordRequest scans only contacts whose normalized title
// matches the given keyword.
type ReclassifyByKeywordRequest struct {
	KeywordID int64 `json:"keyword_id" binding:"required"`
	DryRun    *bool `json:"dry_run"`
}

// ReclassifyByPersonaRequest scans only contacts currently assigned to
// the given persona.
type ReclassifyByPersonaRequest struct {
	PersonaID int64 `json:"persona_id" binding:"required"`
	DryRun    *bool `json:"dry_run"`
}

// ReclassifyAffectedRequest scans only contacts whose normalized title
// matches one of the given keyword strings, typically after a catalog
// edit changed what those titles map to.
type ReclassifyAffectedRequest struct {
	Keywords []string `json:"keywords" binding:"required,min=1"`
	DryRun   *bool    `json:"dry_run"`
}

// ListJobsRequest filters and paginates the job listing.
type ListJobsRequest struct {
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

// ListJobsResponse is one page of jobs plus the cursor for the next.
type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

// JobDTO is the wire form of a reclassification job.
type JobDTO struct {
	JobID           string   `json:"job_id"`
	Status          string   `json:"status"`
	FilterKind      string   `json:"filter_kind"`
	FilterKeywordID *int64   `json:"filter_keyword_id,omitempty"`
	FilterPersonaID *int64   `json:"filter_persona_id,omitempty"`
	FilterKeywords  []string `json:"filter_keywords,omitempty"`
	DryRun          bool     `json:"dry_run"`
	Scanned         int64    `json:"scanned"`
	Changed         int64    `json:"changed"`
	SkippedLocked   int64    `json:"skipped_locked"`
	Errors          int64    `json:"errors"`
	Attempts        int      `json:"attempts"`
	MaxAttempts     int      `json:"max_attempts"`
	CancelRequested bool     `json:"cancel_requested"`
	WorkerID        string   `json:"worker_id,omitempty"`
	ErrorMessage    string   `json:"error_message,omitempty"`
	StartedAt       string   `json:"started_at,omitempty"`
	CompletedAt     string   `json:"completed_at,omitempty"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
}

// JobDetailResponse is a single job plus the opening page of its change
// log; callers follow /changes with after_id for the rest.
type JobDetailResponse struct {
	JobDTO
	Changes []JobChangeDTO `json:"changes"`
}

// JobChangeDTO is one audit entry from a job's change log.
type JobChangeDTO struct {
	ID            int64  `json:"id"`
	ContactID     int64  `json:"contact_id"`
	PersonaBefore *int64 `json:"persona_before"`
	PersonaAfter  *int64 `json:"persona_after"`
	Applied       bool   `json:"applied"`
	CreatedAt     string `json:"created_at"`
}

// ListChangesResponse is one page of a job's change log. NextAfterID
// feeds the after_id query parameter of the following request.
type ListChangesResponse struct {
	Changes     []JobChangeDTO `json:"changes"`
	NextAfterID int64          `json:"next_after_id,omitempty"`
}

// DiagnoseRequest asks the classifier to explain one job title.
type DiagnoseRequest struct {
	JobTitle string `json:"job_title"`
}

// LockContactRequest sets or clears a contact's persona lock.
type LockContactRequest struct {
	Locked *bool `json:"locked" binding:"required"`
}

// ContactDTO is the wire form of a contact's classification state.
type ContactDTO struct {
	ID                 int64  `json:"id"`
	FullName           string `json:"full_name"`
	JobTitle           string `json:"job_title,omitempty"`
	JobTitleNormalized string `json:"job_title_normalized,omitempty"`
	BuyerPersonaID     *int64 `json:"buyer_persona_id"`
	PersonaLocked      bool   `json:"persona_locked"`
	PersonaSetManually bool   `json:"persona_set_manually"`
}

// PersonaDTO is the wire form of a buyer persona.
type PersonaDTO struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Priority  int    `json:"priority"`
	IsDefault bool   `json:"is_default"`
}

// CreateKeywordRequest registers a keyword under a persona. When
// Reclassify is set, an affected-contacts job is queued for it.
type CreateKeywordRequest struct {
	Keyword    string `json:"keyword" binding:"required"`
	PersonaID  int64  `json:"persona_id" binding:"required"`
	Reclassify bool   `json:"reclassify"`
	DryRun     *bool  `json:"dry_run"`
}

// KeywordDTO is the wire form of a registered keyword.
type KeywordDTO struct {
	ID                int64  `json:"id"`
	Keyword           string `json:"keyword"`
	KeywordNormalized string `json:"keyword_normalized"`
	PersonaID         int64  `json:"persona_id"`
}

// SnapshotDTO is the wire form of one metrics snapshot. The aggregate
// fields are raw JSON straight from storage.
type SnapshotDTO struct {
	ID             int64           `json:"id"`
	TakenAt        string          `json:"taken_at"`
	TotalContacts  int64           `json:"total_contacts"`
	ByPersona      json.RawMessage `json:"by_persona"`
	LockedCount    int64           `json:"locked_count"`
	ManualCount    int64           `json:"manual_count"`
	WithTitlePct   float64         `json:"with_title_pct"`
	NormalizedPct  float64         `json:"normalized_pct"`
	ClassifiedPct  float64         `json:"classified_pct"`
	ClassifiedNum  int64           `json:"classified_count"`
	KeywordUsage   json.RawMessage `json:"keyword_usage"`
	TopKeywords    json.RawMessage `json:"top_keywords"`
	UnusedKeywords json.RawMessage `json:"unused_keywords"`
	Deltas         json.RawMessage `json:"deltas"`
}
