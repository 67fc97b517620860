package handlers

import (
	"net/http"

	"example.com/swiftcheck/internal/models"
	"example.com/swiftcheck/internal/services"
	"example.com/swiftcheck/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// EventHandler handles event import and dashboard HTTP requests
type EventHandler struct {
	importer *services.ImportService
}

// NewEventHandler creates a new event handler
func NewEventHandler(importer *services.ImportService) *EventHandler {
	return &EventHandler{importer: importer}
}

// ImportRequest installs a new active event, either inline or fetched from a
// URL. Exactly one of the two fields must be set.
type ImportRequest struct {
	URL   string                `json:"url,omitempty"`
	Event *services.EventImport `json:"event,omitempty"`
}

// HandleImport replaces the active event and clears all check-ins
func (h *EventHandler) HandleImport(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if (req.URL == "") == (req.Event == nil) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provide either url or event"})
		return
	}

	ctx := c.Request.Context()
	var (
		event models.Event
		err   error
	)
	if req.URL != "" {
		event, err = h.importer.ImportFromURL(ctx, req.URL)
	} else {
		event, err = h.importer.Import(ctx, *req.Event)
	}
	if err != nil {
		if errors.Is(err, services.ErrInvalidEventPayload) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		log.Error().Err(err).Msg("Event import failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, event)
}

// HandleGetEvent returns the active event
func (h *EventHandler) HandleGetEvent(c *gin.Context) {
	event, err := h.importer.ActiveEvent(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to load active event")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load active event"})
		return
	}
	if event == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active event"})
		return
	}
	c.JSON(http.StatusOK, event)
}

// HandleStats returns seat occupancy for the active event
func (h *EventHandler) HandleStats(c *gin.Context) {
	stats, err := h.importer.Stats(c.Request.Context())
	if err != nil {
		if errors.Is(err, store.ErrNoActiveEvent) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active event"})
			return
		}
		log.Error().Err(err).Msg("Failed to compute event stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// RegisterRoutes registers the handler's routes
func (h *EventHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	api.POST("/event/import", h.HandleImport)
	api.GET("/event", h.HandleGetEvent)
	api.GET("/event/stats", h.HandleStats)
}
