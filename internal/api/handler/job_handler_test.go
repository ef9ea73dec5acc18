package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadwise/persona-service/internal/api/dto"
	"github.com/leadwise/persona-service/internal/domain"
	"github.com/leadwise/persona-service/internal/storage"
)

// stubJobStore serves a single canned job and its change log.
type stubJobStore struct {
	job     *domain.ReclassificationJob
	changes []domain.JobChange
}

func (s *stubJobStore) CreateJob(ctx context.Context, job *domain.ReclassificationJob) error {
	return nil
}

func (s *stubJobStore) GetJobByID(ctx context.Context, jobID string) (*domain.ReclassificationJob, error) {
	if s.job == nil || s.job.ID != jobID {
		return nil, domain.ErrJobNotFound
	}
	return s.job, nil
}

func (s *stubJobStore) ListJobs(ctx context.Context, filter storage.JobListFilter) ([]domain.ReclassificationJob, error) {
	return nil, nil
}

func (s *stubJobStore) RequestCancel(ctx context.Context, jobID string) (*domain.ReclassificationJob, error) {
	return nil, domain.ErrJobNotFound
}

func (s *stubJobStore) Retry(ctx context.Context, jobID string) (*domain.ReclassificationJob, error) {
	return nil, domain.ErrJobNotFound
}

func (s *stubJobStore) ListChanges(ctx context.Context, jobID string, afterID int64, limit int) ([]domain.JobChange, error) {
	out := make([]domain.JobChange, 0, len(s.changes))
	for _, ch := range s.changes {
		if ch.JobID != jobID || ch.ID <= afterID {
			continue
		}
		out = append(out, ch)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func newJobRouter(store jobStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &Handler{logger: slog.Default(), jobs: store}
	r := gin.New()
	r.GET("/api/v1/jobs/:job_id", h.GetJob)
	return r
}

func TestGetJobEmbedsChangeLog(t *testing.T) {
	jobID := "7b9315a6-0000-4000-8000-0000000000aa"
	now := time.Now().UTC()

	store := &stubJobStore{
		job: &domain.ReclassificationJob{
			ID:          jobID,
			Status:      domain.JobStatusCompleted,
			FilterKind:  domain.FilterAll,
			Scanned:     2,
			Changed:     2,
			MaxAttempts: domain.DefaultMaxAttempts,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		changes: []domain.JobChange{
			{ID: 1, JobID: jobID, ContactID: 10, PersonaAfter: sql.NullInt64{Int64: 1, Valid: true}, Applied: true, CreatedAt: now},
			{ID: 2, JobID: jobID, ContactID: 11, PersonaBefore: sql.NullInt64{Int64: 9, Valid: true}, PersonaAfter: sql.NullInt64{Int64: 2, Valid: true}, Applied: true, CreatedAt: now},
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+jobID, nil)
	newJobRouter(store).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.JobDetailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, jobID, resp.JobID)
	assert.Equal(t, domain.JobStatusCompleted, resp.Status)

	// The first page of the audit log rides along with the job itself.
	require.Len(t, resp.Changes, 2)
	assert.Equal(t, int64(10), resp.Changes[0].ContactID)
	require.NotNil(t, resp.Changes[0].PersonaAfter)
	assert.Equal(t, int64(1), *resp.Changes[0].PersonaAfter)
	assert.Nil(t, resp.Changes[0].PersonaBefore)
	require.NotNil(t, resp.Changes[1].PersonaBefore)
	assert.Equal(t, int64(9), *resp.Changes[1].PersonaBefore)
}

func TestGetJobWithEmptyChangeLog(t *testing.T) {
	jobID := "7b9315a6-0000-4000-8000-0000000000ab"
	now := time.Now().UTC()

	store := &stubJobStore{
		job: &domain.ReclassificationJob{
			ID:          jobID,
			Status:      domain.JobStatusPending,
			FilterKind:  domain.FilterAll,
			MaxAttempts: domain.DefaultMaxAttempts,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+jobID, nil)
	newJobRouter(store).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.JobDetailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Changes)
}

func TestGetJobUnknownID(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/7b9315a6-0000-4000-8000-0000000000ff", nil)
	newJobRouter(&stubJobStore{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetJobRejectsMalformedID(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/not-a-uuid", nil)
	newJobRouter(&stubJobStore{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
