package domain

import (
	"database/sql"
	"time"
)

// Contact carries the subset of contact fields this service owns.
// The record itself is created by upstream import flows; this service
// only ever writes the persona assignment and the cached normalized
// title, and only when the contact is not locked.
type Contact struct {
	ID                  int64          `db:"id"`
	FullName            string         `db:"full_name"`
	JobTitle            sql.NullString `db:"job_title"`
	JobTitleNormalized  sql.NullString `db:"job_title_normalized"`
	BuyerPersonaID      sql.NullInt64  `db:"buyer_persona_id"`
	PersonaLocked       bool           `db:"buyer_persona_locked"`
	PersonaSetManually  bool           `db:"buyer_persona_assigned_manually"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
}

// CurrentPersonaID returns the assigned persona id, or 0 when unassigned.
func (c *Contact) CurrentPersonaID() int64 {
	if c.BuyerPersonaID.Valid {
		return c.BuyerPersonaID.Int64
	}
	return 0
}
