package api

import (
	"alcyxob/coach-ai/internal/domain"
	"alcyxob/coach-ai/internal/repository"
	"alcyxob/coach-ai/internal/service"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// GenerationHandler holds the orchestrator dependency.
type GenerationHandler struct {
	orchestrator service.Orchestrator
	programs     repository.ProgramRepository
}

// NewGenerationHandler creates a new GenerationHandler.
func NewGenerationHandler(orchestrator service.Orchestrator, programs repository.ProgramRepository) *GenerationHandler {
	return &GenerationHandler{orchestrator: orchestrator, programs: programs}
}

// --- DTOs for API (Data Transfer Objects) ---

// GenerationResponse is the DTO for a completed generation request.
type GenerationResponse struct {
	GenerationID string                       `json:"generationId"`
	ProgramID    string                       `json:"programId"`
	Passed       bool                         `json:"passed"`
	Validation   domain.ValidationResult      `json:"validation"`
	Retries      int                          `json:"retries"`
	DurationMs   int64                        `json:"durationMs"`
	StepUsage    map[string]domain.TokenUsage `json:"stepUsage"`
	TotalUsage   domain.TokenUsage            `json:"totalUsage"`
}

// MapResultToResponse converts a domain.OrchestrationResult to the DTO.
func MapResultToResponse(res *domain.OrchestrationResult) GenerationResponse {
	if res == nil {
		return GenerationResponse{}
	}
	return GenerationResponse{
		GenerationID: res.GenerationID,
		ProgramID:    res.ProgramID,
		Passed:       res.Validation.Pass,
		Validation:   res.Validation,
		Retries:      res.Retries,
		DurationMs:   res.Duration.Milliseconds(),
		StepUsage:    res.StepUsage,
		TotalUsage:   res.TotalUsage,
	}
}

// --- Handler Methods ---

// GenerateProgram godoc
// @Summary Generate a workout program
// @Description Runs the full generation pipeline synchronously and returns the program reference with its validation verdict.
// @Tags Programs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body domain.GenerationRequest true "Generation parameters"
// @Success 200 {object} GenerationResponse "Program generated"
// @Failure 400 {object} gin.H "Invalid input (validation error)"
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 404 {object} gin.H "Client profile not found"
// @Failure 429 {object} gin.H "Rate limit exceeded"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /programs/generate [post]
func (h *GenerationHandler) GenerateProgram(c *gin.Context) {
	var req domain.GenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}

	result, err := h.orchestrator.Generate(c.Request.Context(), req, userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyGoals):
			abortWithError(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrProfileNotFound):
			abortWithError(c, http.StatusNotFound, "Client profile not found.")
		default:
			abortWithError(c, http.StatusInternalServerError, "Program generation failed.")
		}
		return
	}

	c.JSON(http.StatusOK, MapResultToResponse(result))
}

// GetProgram godoc
// @Summary Get a generated program
// @Description Retrieves a generated program by its generation id.
// @Tags Programs
// @Produce json
// @Security BearerAuth
// @Param generationId path string true "Generation ID"
// @Success 200 {object} domain.GeneratedProgram "Program"
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 403 {object} gin.H "Forbidden"
// @Failure 404 {object} gin.H "Not found"
// @Router /programs/{generationId} [get]
func (h *GenerationHandler) GetProgram(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}

	program, err := h.programs.GetByGenerationID(c.Request.Context(), c.Param("generationId"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			abortWithError(c, http.StatusNotFound, "Program not found.")
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to retrieve program.")
		}
		return
	}

	if !program.IsPublic && program.OwnerUserID != userID {
		abortWithError(c, http.StatusForbidden, "Access denied.")
		return
	}

	c.JSON(http.StatusOK, program)
}
