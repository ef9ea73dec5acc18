package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leadwise/persona-service/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "persona-api-service",
		})
	})

	h := handler.New(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		reclassify := v1.Group("/reclassify")
		{
			// POST /api/v1/reclassify - Rescan every contact
			reclassify.POST("", h.ReclassifyAll)

			// POST /api/v1/reclassify/by-keyword - Rescan one keyword's matches
			reclassify.POST("/by-keyword", h.ReclassifyByKeyword)

			// POST /api/v1/reclassify/by-persona - Rescan one persona's contacts
			reclassify.POST("/by-persona", h.ReclassifyByPersona)

			// POST /api/v1/reclassify/affected - Rescan titles matching given keywords
			reclassify.POST("/affected", h.ReclassifyAffected)
		}

		jobs := v1.Group("/jobs")
		{
			// GET /api/v1/jobs - List jobs with filtering and pagination
			jobs.GET("", h.ListJobs)

			// GET /api/v1/jobs/:job_id - Get job details
			jobs.GET("/:job_id", h.GetJob)

			// POST /api/v1/jobs/:job_id/cancel - Request cancellation
			jobs.POST("/:job_id/cancel", h.CancelJob)

			// POST /api/v1/jobs/:job_id/retry - Reset a failed job
			jobs.POST("/:job_id/retry", h.RetryJob)

			// GET /api/v1/jobs/:job_id/changes - Page through the audit log
			jobs.GET("/:job_id/changes", h.ListJobChanges)
		}

		contacts := v1.Group("/contacts")
		{
			// GET /api/v1/contacts/:contact_id - Classification state
			contacts.GET("/:contact_id", h.GetContact)

			// POST /api/v1/contacts/:contact_id/lock - Set or clear the persona lock
			contacts.POST("/:contact_id/lock", h.LockContact)
		}

		// POST /api/v1/classify/diagnose - Explain one title's classification
		v1.POST("/classify/diagnose", h.Diagnose)

		// GET /api/v1/personas - Catalog personas in evaluation order
		v1.GET("/personas", h.ListPersonas)

		keywords := v1.Group("/keywords")
		{
			// POST /api/v1/keywords - Register a keyword
			keywords.POST("", h.CreateKeyword)

			// DELETE /api/v1/keywords/:keyword_id - Remove a keyword
			keywords.DELETE("/:keyword_id", h.DeleteKeyword)
		}

		metricsGroup := v1.Group("/metrics")
		{
			// GET /api/v1/metrics/latest - Most recent coverage snapshot
			metricsGroup.GET("/latest", h.LatestSnapshot)

			// GET /api/v1/metrics/history - Snapshots over the last N days
			metricsGroup.GET("/history", h.SnapshotHistory)
		}
	}

	return r
}
