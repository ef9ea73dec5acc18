package domain

// Event kinds published by the API service and consumed by workers.
const (
	// EventCatalogChanged signals that keywords or persona priorities
	// were mutated; consumers must invalidate their classifier cache.
	EventCatalogChanged = "catalog.changed"

	// EventJobCreated signals that a reclassification job was inserted;
	// consumers may poll immediately instead of waiting an interval.
	EventJobCreated = "job.created"
)

// Event is the broadcast message format on the event exchange.
type Event struct {
	Kind     string   `json:"kind"`
	Keywords []string `json:"keywords,omitempty"`
	JobID    string   `json:"job_id,omitempty"`
}
