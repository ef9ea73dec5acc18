package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/leadwise/persona-service/internal/domain"
)

// ContactStore handles the contact fields owned by this service.
type ContactStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewContactStore creates a new ContactStore instance
func NewContactStore(db *sqlx.DB, logger *slog.Logger) *ContactStore {
	return &ContactStore{
		db:     db,
		logger: logger,
	}
}

const contactColumns = `
	id, full_name, job_title, job_title_normalized,
	buyer_persona_id, buyer_persona_locked, buyer_persona_assigned_manually,
	created_at, updated_at
`

// GetContactByID returns one contact record.
func (s *ContactStore) GetContactByID(ctx context.Context, id int64) (*domain.Contact, error) {
	var c domain.Contact
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id = $1`

	err := s.db.GetContext(ctx, &c, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrContactNotFound
		}
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return &c, nil
}

// ListBatch returns the next batch of contacts matching a job filter,
// in stable id order. The cursor is the last contact id of the previous
// batch, so a restarted scan re-covers the whole set deterministically.
//
// The by-keyword and affected filters match on the cached
// job_title_normalized column, so contacts never touched by a scan
// (NULL in that column) are invisible to scoped jobs. A full scan
// backfills the column for everything it visits; run one after bulk
// imports before relying on scoped reclassification.
func (s *ContactStore) ListBatch(ctx context.Context, filter domain.JobFilter, afterID int64, limit int) ([]domain.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id > $1`
	args := []interface{}{afterID}
	argIdx := 2

	switch filter.Kind {
	case domain.FilterAll:
		// No additional predicate.
	case domain.FilterByKeyword:
		query += fmt.Sprintf(` AND job_title_normalized = (
			SELECT keyword_normalized FROM job_keywords WHERE id = $%d
		)`, argIdx)
		args = append(args, filter.KeywordID)
		argIdx++
	case domain.FilterByPersona:
		query += fmt.Sprintf(" AND buyer_persona_id = $%d", argIdx)
		args = append(args, filter.PersonaID)
		argIdx++
	case domain.FilterAffected:
		query += fmt.Sprintf(" AND job_title_normalized = ANY($%d)", argIdx)
		args = append(args, pq.Array(filter.Keywords))
		argIdx++
	default:
		return nil, fmt.Errorf("unknown job filter kind: %q", filter.Kind)
	}

	query += fmt.Sprintf(" ORDER BY id LIMIT $%d", argIdx)
	args = append(args, limit)

	var contacts []domain.Contact
	if err := s.db.SelectContext(ctx, &contacts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}

	return contacts, nil
}

// ApplyClassification writes a persona assignment and the cached
// normalized title. The lock predicate is repeated here so a contact
// locked after the batch was read still cannot be overwritten.
func (s *ContactStore) ApplyClassification(ctx context.Context, contactID, personaID int64, normalizedTitle string) error {
	query := `
		UPDATE contacts
		SET buyer_persona_id = $1,
		    job_title_normalized = $2,
		    buyer_persona_assigned_manually = FALSE,
		    updated_at = NOW()
		WHERE id = $3
		  AND NOT buyer_persona_locked
	`

	_, err := s.db.ExecContext(ctx, query, personaID, normalizedTitle, contactID)
	if err != nil {
		return fmt.Errorf("failed to apply classification: %w", err)
	}

	return nil
}

// SetLock flips the manual-override protection flag. A locked contact
// is never touched by the worker or the classifier.
func (s *ContactStore) SetLock(ctx context.Context, contactID int64, locked bool) (*domain.Contact, error) {
	query := `
		UPDATE contacts
		SET buyer_persona_locked = $1,
		    updated_at = NOW()
		WHERE id = $2
		RETURNING ` + contactColumns

	var c domain.Contact
	err := s.db.QueryRowxContext(ctx, query, locked, contactID).StructScan(&c)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrContactNotFound
		}
		return nil, fmt.Errorf("failed to set contact lock: %w", err)
	}

	s.logger.Info("Contact lock updated",
		slog.Int64("contact_id", contactID),
		slog.Bool("locked", locked),
	)

	return &c, nil
}
