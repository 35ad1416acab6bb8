package api

import (
	"alcyxob/coach-ai/internal/config"
	"alcyxob/coach-ai/internal/repository"
	"alcyxob/coach-ai/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	orchestrator service.Orchestrator,
	jobService service.JobService,
	programs repository.ProgramRepository,
	limiter *RateLimiter,
) {
	generationHandler := NewGenerationHandler(orchestrator, programs)
	jobHandler := NewJobHandler(jobService)

	authMiddleware := AuthMiddleware(cfg.JWT.Secret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		// --- Program Generation Routes ---
		programGroup := protected.Group("/programs")
		{
			// POST /api/v1/programs/generate - synchronous pipeline run
			programGroup.POST("/generate",
				limiter.Limit("generate", cfg.Pipeline.GenerateLimit, cfg.Pipeline.GenerateWindow),
				generationHandler.GenerateProgram)

			// GET /api/v1/programs/:generationId
			programGroup.GET("/:generationId", generationHandler.GetProgram)
		}

		// --- AI Job Routes (queued, streamed surfaces) ---
		jobGroup := protected.Group("/ai/jobs")
		{
			// POST /api/v1/ai/jobs - create a chat_program or analytics job
			jobGroup.POST("",
				limiter.Limit("ai_jobs", cfg.Pipeline.ChatLimit, cfg.Pipeline.ChatWindow),
				jobHandler.CreateJob)

			// GET /api/v1/ai/jobs/:id - poll status and result
			jobGroup.GET("/:id", jobHandler.GetJob)

			// GET /api/v1/ai/jobs/:id/chunks?after=N - resumable chunk replay
			jobGroup.GET("/:id/chunks", jobHandler.ListChunks)

			// GET /api/v1/ai/jobs/:id/stream - live SSE stream
			jobGroup.GET("/:id/stream", jobHandler.StreamJob)
		}
	}
}
