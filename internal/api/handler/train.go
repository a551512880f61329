package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/exponent-ml/exponent/internal/api/middleware"
	"github.com/exponent-ml/exponent/internal/core"
	"github.com/exponent-ml/exponent/internal/domain"
)

// TrainHandler exposes training submission and job inspection.
type TrainHandler struct {
	orchestrator *core.Orchestrator
}

// NewTrainHandler creates a new train handler.
func NewTrainHandler(orchestrator *core.Orchestrator) *TrainHandler {
	return &TrainHandler{orchestrator: orchestrator}
}

type trainRequest struct {
	ProjectID string `json:"project_id" binding:"required"`
	Dataset   string `json:"dataset"`
}

// Submit handles POST /api/v1/train. Only cloud submission is exposed over
// HTTP; local training blocks for as long as the script runs and belongs in
// the CLI.
func (h *TrainHandler) Submit(c *gin.Context) {
	var req trainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	job, err := h.orchestrator.TrainCloud(c.Request.Context(), req.ProjectID, req.Dataset)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrProjectNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrAuthentication):
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		default:
			middleware.GetLogger(c).WithError(err).Error("Training submission failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusAccepted, job)
}

// ListJobs handles GET /api/v1/jobs.
func (h *TrainHandler) ListJobs(c *gin.Context) {
	jobs, err := h.orchestrator.Jobs(c.Request.Context())
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to list jobs")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

// GetJob handles GET /api/v1/jobs/:id.
func (h *TrainHandler) GetJob(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Job ID is required",
		})
		return
	}

	job, err := h.orchestrator.JobStatus(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, job)
}
