package domain

import "time"

// BuyerPersona is a named category contacts are classified into.
// Personas are created and ordered by administrators; the classifier
// treats them as read-only. Lower priority numbers are evaluated first.
// Exactly one persona is the designated fallback and always sorts last
// regardless of its stored priority.
type BuyerPersona struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Priority  int       `db:"priority"`
	IsDefault bool      `db:"is_default"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// JobKeyword maps one keyword string to its owning persona. Lookups key
// on the normalized form; the raw form is kept for display and audit.
type JobKeyword struct {
	ID                int64     `db:"id"`
	Keyword           string    `db:"keyword"`
	KeywordNormalized string    `db:"keyword_normalized"`
	BuyerPersonaID    int64     `db:"buyer_persona_id"`
	CreatedAt         time.Time `db:"created_at"`
}
