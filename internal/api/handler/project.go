package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/exponent-ml/exponent/internal/api/middleware"
	"github.com/exponent-ml/exponent/internal/core"
	"github.com/exponent-ml/exponent/internal/domain"
)

// ProjectHandler exposes stored projects and the analyze/generate flow.
type ProjectHandler struct {
	orchestrator *core.Orchestrator
}

// NewProjectHandler creates a new project handler.
// Parameters:
//   - orchestrator: assembled pipeline.
// Returns:
//   - *ProjectHandler: initialized handler.
func NewProjectHandler(orchestrator *core.Orchestrator) *ProjectHandler {
	return &ProjectHandler{orchestrator: orchestrator}
}

// ListProjects handles GET /api/v1/projects.
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	projects, err := h.orchestrator.Projects()
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to list projects")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list projects: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"projects": projects,
		"total":    len(projects),
	})
}

// GetProject handles GET /api/v1/projects/:id.
func (h *ProjectHandler) GetProject(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Project ID is required",
		})
		return
	}

	proj, err := h.orchestrator.Project(id)
	if err != nil {
		if errors.Is(err, domain.ErrProjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, proj)
}

type analyzeRequest struct {
	Path string `json:"path" binding:"required"`
}

// Analyze handles POST /api/v1/analyze. The path must be readable by the
// server process; this endpoint serves local front ends, not remote upload.
func (h *ProjectHandler) Analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	summary, err := h.orchestrator.AnalyzeDataset(c.Request.Context(), req.Path)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrFileNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrUnsupportedFormat), errors.Is(err, domain.ErrMalformedData):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, summary)
}

type generateRequest struct {
	Task    string `json:"task" binding:"required"`
	Dataset string `json:"dataset"`
}

// Generate handles POST /api/v1/projects.
func (h *ProjectHandler) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	proj, err := h.orchestrator.GenerateProject(c.Request.Context(), req.Task, req.Dataset)
	if err != nil {
		var genErr *domain.GenerationError
		switch {
		case errors.Is(err, domain.ErrEmptyTask):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrFileNotFound),
			errors.Is(err, domain.ErrUnsupportedFormat),
			errors.Is(err, domain.ErrMalformedData):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		case errors.As(err, &genErr):
			middleware.GetLogger(c).WithError(err).Error("Code generation failed")
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		default:
			middleware.GetLogger(c).WithError(err).Error("Project generation failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, proj)
}
