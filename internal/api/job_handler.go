package api

import (
	"alcyxob/coach-ai/internal/domain"
	"alcyxob/coach-ai/internal/service"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// streamPollInterval is how often the SSE endpoint polls the chunk log.
const streamPollInterval = 500 * time.Millisecond

// JobHandler holds the job service dependency.
type JobHandler struct {
	jobService service.JobService
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(jobService service.JobService) *JobHandler {
	return &JobHandler{jobService: jobService}
}

// --- DTOs for API (Data Transfer Objects) ---

// CreateJobRequest defines the expected JSON for creating an AI job.
type CreateJobRequest struct {
	Type      domain.JobType `json:"type" binding:"required"`
	SessionID string         `json:"sessionId" binding:"required"`
	Message   string         `json:"message"`
	ClientID  string         `json:"clientId"`
}

// JobResponse is the DTO for returning job details.
type JobResponse struct {
	ID          string           `json:"id"`
	Type        domain.JobType   `json:"type"`
	Status      domain.JobStatus `json:"status"`
	Result      map[string]any   `json:"result,omitempty"`
	Error       string           `json:"error,omitempty"`
	ChunkCount  int              `json:"chunkCount"`
	CreatedAt   time.Time        `json:"createdAt"`
	StartedAt   *time.Time       `json:"startedAt,omitempty"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
}

// MapJobToResponse converts a domain.AiJob to JobResponse DTO.
func MapJobToResponse(job *domain.AiJob) JobResponse {
	if job == nil {
		return JobResponse{}
	}
	return JobResponse{
		ID:          job.ID.Hex(),
		Type:        job.Type,
		Status:      job.Status,
		Result:      job.Result,
		Error:       job.Error,
		ChunkCount:  job.ChunkCount,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}
}

// --- Handler Methods ---

// CreateJob godoc
// @Summary Create an AI job
// @Description Creates a queued AI job (chat program building or admin analytics) and returns its id for polling or streaming.
// @Tags Jobs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateJobRequest true "Job parameters"
// @Success 202 {object} JobResponse "Job accepted"
// @Failure 400 {object} gin.H "Invalid input (validation error)"
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 403 {object} gin.H "Forbidden"
// @Failure 429 {object} gin.H "Rate limit exceeded"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /ai/jobs [post]
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}

	var job *domain.AiJob
	switch req.Type {
	case domain.JobTypeChatProgram:
		job, err = h.jobService.CreateChatProgramJob(c.Request.Context(), userID, service.ChatProgramPayload{
			SessionID: req.SessionID,
			Message:   req.Message,
			ClientID:  req.ClientID,
		})
	case domain.JobTypeAnalytics:
		roleRaw, _ := c.Get(ContextUserRoleKey)
		if role, ok := roleRaw.(string); !ok || role != RoleAdmin {
			abortWithError(c, http.StatusForbidden, "Analytics jobs require the admin role.")
			return
		}
		job, err = h.jobService.CreateAnalyticsJob(c.Request.Context(), userID, service.AnalyticsPayload{
			SessionID: req.SessionID,
			Question:  req.Message,
		})
	default:
		abortWithError(c, http.StatusBadRequest, "Unknown job type.")
		return
	}

	if err != nil {
		if errors.Is(err, service.ErrEmptyMessage) {
			abortWithError(c, http.StatusBadRequest, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to create job.")
		}
		return
	}

	c.JSON(http.StatusAccepted, MapJobToResponse(job))
}

// GetJob godoc
// @Summary Get an AI job
// @Description Retrieves job status and, once completed, the result.
// @Tags Jobs
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Success 200 {object} JobResponse "Job"
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 404 {object} gin.H "Not found"
// @Router /ai/jobs/{id} [get]
func (h *JobHandler) GetJob(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}

	job, err := h.jobService.GetJob(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.abortJobError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapJobToResponse(job))
}

// ListChunks godoc
// @Summary List job chunks
// @Description Returns durably logged chunks with index greater than the "after" query parameter. Lets a disconnected client resume without gaps.
// @Tags Jobs
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Param after query int false "Return chunks with index greater than this" default(-1)
// @Success 200 {array} domain.AiJobChunk "Chunks in index order"
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 404 {object} gin.H "Not found"
// @Router /ai/jobs/{id}/chunks [get]
func (h *JobHandler) ListChunks(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}

	after := -1
	if raw := c.Query("after"); raw != "" {
		parsed, parseErr := strconv.Atoi(raw)
		if parseErr != nil {
			abortWithError(c, http.StatusBadRequest, "Query parameter 'after' must be an integer.")
			return
		}
		after = parsed
	}

	chunks, err := h.jobService.ListChunks(c.Request.Context(), c.Param("id"), userID, after)
	if err != nil {
		h.abortJobError(c, err)
		return
	}
	if chunks == nil {
		chunks = []domain.AiJobChunk{}
	}
	c.JSON(http.StatusOK, chunks)
}

// StreamJob godoc
// @Summary Stream job output
// @Description Streams job chunks as Server-Sent Events, replaying from the "after" index. The stream ends after a done or error chunk.
// @Tags Jobs
// @Produce text/event-stream
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Param after query int false "Resume after this chunk index" default(-1)
// @Success 200 {string} string "SSE stream"
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 404 {object} gin.H "Not found"
// @Router /ai/jobs/{id}/stream [get]
func (h *JobHandler) StreamJob(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}
	jobID := c.Param("id")

	// Ownership check before switching the response to a stream.
	if _, err := h.jobService.GetJob(c.Request.Context(), jobID, userID); err != nil {
		h.abortJobError(c, err)
		return
	}

	after := -1
	if raw := c.Query("after"); raw != "" {
		if parsed, parseErr := strconv.Atoi(raw); parseErr == nil {
			after = parsed
		}
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()

	for {
		chunks, err := h.jobService.ListChunks(c.Request.Context(), jobID, userID, after)
		if err != nil {
			writeSSE(c.Writer, string(domain.ChunkError), map[string]any{"message": "failed to read job output"})
			return
		}

		for _, chunk := range chunks {
			after = chunk.Index
			writeSSE(c.Writer, string(chunk.Type), chunk.Data)
			if chunk.Type == domain.ChunkDone || chunk.Type == domain.ChunkError {
				return
			}
		}
		c.Writer.Flush()

		// No terminal chunk yet; if the job died without writing one, end
		// the stream instead of polling forever.
		if len(chunks) == 0 {
			job, err := h.jobService.GetJob(c.Request.Context(), jobID, userID)
			if err != nil {
				return
			}
			if job.Status.Terminal() {
				if job.Status == domain.JobStatusFailed {
					writeSSE(c.Writer, string(domain.ChunkError), map[string]any{"message": job.Error})
				} else {
					writeSSE(c.Writer, string(domain.ChunkDone), nil)
				}
				return
			}
		}

		select {
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

// writeSSE emits one Server-Sent Event and flushes it immediately.
func writeSSE(w gin.ResponseWriter, event string, data map[string]any) {
	payload, err := json.Marshal(data)
	if err != nil {
		payload = []byte("{}")
	}
	io.WriteString(w, "event: "+event+"\n")
	io.WriteString(w, "data: "+string(payload)+"\n\n")
	w.Flush()
}

func (h *JobHandler) abortJobError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrJobNotFound):
		abortWithError(c, http.StatusNotFound, "Job not found.")
	case errors.Is(err, service.ErrJobAccessDenied):
		// 404 rather than 403 so job ids are not probeable.
		abortWithError(c, http.StatusNotFound, "Job not found.")
	default:
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve job.")
	}
}
