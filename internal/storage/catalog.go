package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/leadwise/persona-service/internal/domain"
)

// CatalogStore reads and mutates the persona/keyword catalog.
type CatalogStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewCatalogStore creates a new CatalogStore instance
func NewCatalogStore(db *sqlx.DB, logger *slog.Logger) *CatalogStore {
	return &CatalogStore{
		db:     db,
		logger: logger,
	}
}

// LoadCatalog reads all personas and all keywords in one pass. The
// classifier cache calls this on every refresh.
func (s *CatalogStore) LoadCatalog(ctx context.Context) ([]domain.BuyerPersona, []domain.JobKeyword, error) {
	var personas []domain.BuyerPersona
	query := `
		SELECT id, name, priority, is_default, created_at, updated_at
		FROM buyer_personas
		ORDER BY priority, id
	`
	if err := s.db.SelectContext(ctx, &personas, query); err != nil {
		return nil, nil, fmt.Errorf("failed to load personas: %w", err)
	}

	var keywords []domain.JobKeyword
	query = `
		SELECT id, keyword, keyword_normalized, buyer_persona_id, created_at
		FROM job_keywords
		ORDER BY id
	`
	if err := s.db.SelectContext(ctx, &keywords, query); err != nil {
		return nil, nil, fmt.Errorf("failed to load keywords: %w", err)
	}

	return personas, keywords, nil
}

// ListPersonas returns all personas ordered by priority.
func (s *CatalogStore) ListPersonas(ctx context.Context) ([]domain.BuyerPersona, error) {
	var personas []domain.BuyerPersona
	query := `
		SELECT id, name, priority, is_default, created_at, updated_at
		FROM buyer_personas
		ORDER BY priority, id
	`
	if err := s.db.SelectContext(ctx, &personas, query); err != nil {
		return nil, fmt.Errorf("failed to list personas: %w", err)
	}
	return personas, nil
}

// GetKeywordByID returns one keyword record.
func (s *CatalogStore) GetKeywordByID(ctx context.Context, id int64) (*domain.JobKeyword, error) {
	var kw domain.JobKeyword
	query := `
		SELECT id, keyword, keyword_normalized, buyer_persona_id, created_at
		FROM job_keywords
		WHERE id = $1
	`
	err := s.db.GetContext(ctx, &kw, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrKeywordNotFound
		}
		return nil, fmt.Errorf("failed to get keyword: %w", err)
	}
	return &kw, nil
}

// CreateKeyword inserts one keyword for a persona. The caller supplies
// the normalized form so lookups and the cache agree on it.
func (s *CatalogStore) CreateKeyword(ctx context.Context, keyword, normalized string, personaID int64) (*domain.JobKeyword, error) {
	query := `
		INSERT INTO job_keywords (keyword, keyword_normalized, buyer_persona_id, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (keyword_normalized) DO UPDATE SET
			keyword = EXCLUDED.keyword,
			buyer_persona_id = EXCLUDED.buyer_persona_id
		RETURNING id, keyword, keyword_normalized, buyer_persona_id, created_at
	`

	var kw domain.JobKeyword
	err := s.db.QueryRowxContext(ctx, query, keyword, normalized, personaID).StructScan(&kw)
	if err != nil {
		return nil, fmt.Errorf("failed to create keyword: %w", err)
	}

	s.logger.Info("Keyword created",
		slog.Int64("keyword_id", kw.ID),
		slog.String("keyword", kw.Keyword),
		slog.Int64("buyer_persona_id", kw.BuyerPersonaID),
	)

	return &kw, nil
}

// DeleteKeyword removes one keyword and returns the deleted record so
// callers can enqueue an affected-keywords reclassification for it.
func (s *CatalogStore) DeleteKeyword(ctx context.Context, id int64) (*domain.JobKeyword, error) {
	query := `
		DELETE FROM job_keywords
		WHERE id = $1
		RETURNING id, keyword, keyword_normalized, buyer_persona_id, created_at
	`

	var kw domain.JobKeyword
	err := s.db.QueryRowxContext(ctx, query, id).StructScan(&kw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrKeywordNotFound
		}
		return nil, fmt.Errorf("failed to delete keyword: %w", err)
	}

	s.logger.Info("Keyword deleted",
		slog.Int64("keyword_id", kw.ID),
		slog.String("keyword", kw.Keyword),
	)

	return &kw, nil
}
