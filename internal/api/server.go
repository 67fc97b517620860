package api

import (
	"context"
	"net/http"
	"time"

	"example.com/swiftcheck/config"
	"example.com/swiftcheck/internal/api/handlers"
	"example.com/swiftcheck/internal/metrics"
	"example.com/swiftcheck/internal/services"
	"example.com/swiftcheck/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Server represents the HTTP server
type Server struct {
	config         config.Config
	router         *gin.Engine
	httpServer     *http.Server
	checkInService *services.CheckInService
	issuance       *services.IssuanceService
	importer       *services.ImportService
	metrics        *metrics.Metrics
	tracer         tracing.Tracer
}

// NewServer creates a new HTTP server
func NewServer(
	cfg config.Config,
	checkInService *services.CheckInService,
	issuance *services.IssuanceService,
	importer *services.ImportService,
	collector *metrics.Metrics,
	tracer tracing.Tracer,
) *Server {
	server := &Server{
		config:         cfg,
		checkInService: checkInService,
		issuance:       issuance,
		importer:       importer,
		metrics:        collector,
		tracer:         tracer,
	}

	server.router = server.setupRouter()
	server.httpServer = &http.Server{
		Addr:    cfg.Server.Address,
		Handler: server.router,
	}

	return server
}

// setupRouter configures the HTTP router
func (s *Server) setupRouter() *gin.Engine {
	if s.config.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.Use(gin.Recovery())

	checkInHandler := handlers.NewCheckInHandler(s.checkInService, s.tracer)
	checkInHandler.RegisterRoutes(router)

	eventHandler := handlers.NewEventHandler(s.importer)
	eventHandler.RegisterRoutes(router)

	ticketHandler := handlers.NewTicketHandler(s.issuance, s.importer, s.config.Ticket.BaseURL)
	ticketHandler.RegisterRoutes(router)

	metricsHandler := handlers.NewMetricsHandler(s.metrics)
	metricsHandler.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.config.Server.Address).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("HTTP server shut down successfully")
	return nil
}
