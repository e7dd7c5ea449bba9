package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/difyvoice/pkg/logger"
	"github.com/papercomputeco/difyvoice/pkg/storage"
)

// Server is the API server for inspecting completion metrics.
type Server struct {
	config Config
	driver storage.Driver
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
// The driver is injected so it can be shared with a running agent.
func NewServer(config Config, driver storage.Driver, log *slog.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		driver: driver,
		logger: log,
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/v1/metrics", s.handleListMetrics)
	app.Get("/v1/metrics/stats", s.handleMetricsStats)
	app.Get("/v1/metrics/:request_id", s.handleGetMetrics)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
