package api

import (
	"github.com/gin-gonic/gin"

	"github.com/exponent-ml/exponent/internal/api/handler"
	"github.com/exponent-ml/exponent/internal/api/middleware"
	"github.com/exponent-ml/exponent/internal/core"
	"github.com/exponent-ml/exponent/internal/logger"
)

// RouterConfig carries the server options the router needs.
type RouterConfig struct {
	Mode string
	CORS middleware.CORSConfig
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(orchestrator *core.Orchestrator, cfg RouterConfig) *gin.Engine {
	// Set Gin mode
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(logger.GetDefault()))
	r.Use(middleware.CORS(cfg.CORS))

	// Create handlers
	healthHandler := handler.NewHealthHandler()
	projectHandler := handler.NewProjectHandler(orchestrator)
	trainHandler := handler.NewTrainHandler(orchestrator)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Dataset analysis
		v1.POST("/analyze", projectHandler.Analyze)

		// Projects
		v1.GET("/projects", projectHandler.ListProjects)
		v1.GET("/projects/:id", projectHandler.GetProject)
		v1.POST("/projects", projectHandler.Generate)

		// Training
		v1.POST("/train", trainHandler.Submit)
		v1.GET("/jobs", trainHandler.ListJobs)
		v1.GET("/jobs/:id", trainHandler.GetJob)
	}

	return r
}
