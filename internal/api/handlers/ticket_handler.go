package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"example.com/swiftcheck/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// TicketHandler mints tokens over HTTP. The response carries the raw token
// string plus a display URL; rendering the QR image itself is the client's
// business.
type TicketHandler struct {
	issuance *services.IssuanceService
	importer *services.ImportService
	baseURL  string
}

// NewTicketHandler creates a new ticket handler
func NewTicketHandler(issuance *services.IssuanceService, importer *services.ImportService, baseURL string) *TicketHandler {
	return &TicketHandler{
		issuance: issuance,
		importer: importer,
		baseURL:  baseURL,
	}
}

// HandleGenerate mints a token for a ticket of the active event
func (h *TicketHandler) HandleGenerate(c *gin.Context) {
	eventNumber, err := strconv.ParseInt(c.Query("eventNumber"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "eventNumber is required and must be an integer"})
		return
	}
	ticketNumber, err := strconv.ParseInt(c.Query("ticketNumber"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ticketNumber is required and must be an integer"})
		return
	}

	// Refuse to mint for anything but the active event; a token for a
	// stale event would only ever scan as a mismatch.
	event, err := h.importer.ActiveEvent(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to load active event")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load active event"})
		return
	}
	if event == nil || event.ID != eventNumber {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event number does not match current event"})
		return
	}

	tokenString, err := h.issuance.Issue(eventNumber, ticketNumber)
	if err != nil {
		if errors.Is(err, services.ErrInvalidTicketRef) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Error().Err(err).Msg("Token issuance failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}

	displayURL := h.baseURL + "/display-qr?" + url.Values{
		"data":         {tokenString},
		"eventName":    {event.Name},
		"ticketNumber": {strconv.FormatInt(ticketNumber, 10)},
	}.Encode()

	c.JSON(http.StatusOK, gin.H{
		"data":       tokenString,
		"displayUrl": displayURL,
	})
}

// RegisterRoutes registers the handler's routes
func (h *TicketHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	api.GET("/tickets/qrcode", h.HandleGenerate)
}
