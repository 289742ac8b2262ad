package generationhttp

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/uniedit/imagegen/internal/domain/generation"
	"github.com/uniedit/imagegen/internal/model"
	"github.com/uniedit/imagegen/internal/port/inbound"
	apperrors "github.com/uniedit/imagegen/internal/utils/errors"
)

// Handler handles generation HTTP requests.
type Handler struct {
	domain inbound.GenerationDomain
}

// NewHandler creates a new generation handler.
func NewHandler(domain inbound.GenerationDomain) *Handler {
	return &Handler{domain: domain}
}

// RegisterRoutes registers generation routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	generations := r.Group("/generations")
	{
		generations.POST("", h.CreateGeneration)
		generations.GET("/:id", h.GetGeneration)
		generations.GET("/:id/wait", h.WaitGeneration)
		generations.GET("/:id/artifact", h.GetArtifact)
	}
}

// CreateGeneration handles generation requests.
// Synchronous requests block until the task is terminal. Async requests
// return 202 with the submitted task.
func (h *Handler) CreateGeneration(c *gin.Context) {
	var input inbound.GenerationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, apperrors.BadRequest(err.Error()))
		return
	}

	req := input.ToRequest()

	if input.Async {
		rec, err := h.domain.Enqueue(c.Request.Context(), req)
		if err != nil {
			respondTaskError(c, rec, err)
			return
		}
		c.JSON(http.StatusAccepted, inbound.NewGenerationTaskOutput(rec, false))
		return
	}

	rec, err := h.domain.Generate(c.Request.Context(), req, 0, 0)
	if err != nil {
		respondTaskError(c, rec, err)
		return
	}
	if rec.State == model.TaskStateFailed {
		respondTaskError(c, rec, failure(rec))
		return
	}

	c.JSON(http.StatusOK, inbound.NewGenerationTaskOutput(rec, true))
}

// GetGeneration handles task retrieval requests.
func (h *Handler) GetGeneration(c *gin.Context) {
	rec, err := h.domain.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, apperrors.FromGenerationError(err))
		return
	}

	c.JSON(http.StatusOK, inbound.NewGenerationTaskOutput(rec, false))
}

// WaitGeneration handles blocking wait requests.
// interval and timeout are Go durations; absent values use the configured defaults.
func (h *Handler) WaitGeneration(c *gin.Context) {
	interval, err := durationQuery(c, "interval")
	if err != nil {
		respondError(c, apperrors.BadRequest("invalid interval"))
		return
	}
	timeout, err := durationQuery(c, "timeout")
	if err != nil {
		respondError(c, apperrors.BadRequest("invalid timeout"))
		return
	}

	rec, err := h.domain.WaitTask(c.Request.Context(), c.Param("id"), interval, timeout)
	if err != nil {
		respondTaskError(c, rec, err)
		return
	}

	c.JSON(http.StatusOK, inbound.NewGenerationTaskOutput(rec, false))
}

// GetArtifact handles artifact download requests.
// The task is released once its artifact has been read.
func (h *Handler) GetArtifact(c *gin.Context) {
	artifact, err := h.domain.TakeArtifact(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, apperrors.FromGenerationError(err))
		return
	}

	c.Data(http.StatusOK, artifact.MimeType, artifact.Data)
}

// --- Helpers ---

func durationQuery(c *gin.Context, key string) (time.Duration, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, errors.New("negative duration")
	}
	return d, nil
}

// failure restores the classified error of a failed task.
func failure(rec *model.GenerationTaskRecord) error {
	if rec.Error == nil {
		return generation.NewProviderError(nil)
	}
	return generation.FromTaskError(rec.Error)
}

func respondTaskError(c *gin.Context, rec *model.GenerationTaskRecord, err error) {
	appErr := apperrors.FromGenerationError(err)
	if rec != nil {
		if appErr.Details == nil {
			appErr.Details = map[string]any{}
		}
		appErr.Details["task_id"] = rec.ID
		appErr.Details["state"] = rec.State.String()
	}
	respondError(c, appErr)
}

func respondError(c *gin.Context, appErr *apperrors.AppError) {
	_ = c.Error(appErr)
	c.AbortWithStatusJSON(appErr.StatusCode, appErr.ToResponse())
}

// Compile-time interface check
var _ inbound.GenerationHttpPort = (*Handler)(nil)
