package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/exponent-ml/exponent/internal/api"
	"github.com/exponent-ml/exponent/internal/api/middleware"
	"github.com/exponent-ml/exponent/internal/logger"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local HTTP API",
	Long: `Start an HTTP server exposing projects, dataset analysis, and cloud
training over a JSON API. Intended for local front ends; the server reads
datasets from the local filesystem.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (default: server.port from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext()
	defer stop()

	cfg, orch, err := buildOrchestrator(ctx)
	if err != nil {
		return err
	}

	router := api.SetupRouter(orch, api.RouterConfig{
		Mode: cfg.Server.Mode,
		CORS: middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
	})

	port := servePort
	if port == 0 {
		port = cfg.Server.Port
	}

	addr := fmt.Sprintf(":%d", port)
	logger.CtxInfo(ctx, "API server listening on %s", addr)
	return router.Run(addr)
}
