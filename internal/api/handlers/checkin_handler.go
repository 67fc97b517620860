package handlers

import (
	"net/http"

	"example.com/swiftcheck/internal/services"
	"example.com/swiftcheck/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// CheckInHandler handles scan and check-in log HTTP requests
type CheckInHandler struct {
	checkInService *services.CheckInService
	tracer         tracing.Tracer
}

// NewCheckInHandler creates a new check-in handler
func NewCheckInHandler(checkInService *services.CheckInService, tracer tracing.Tracer) *CheckInHandler {
	return &CheckInHandler{
		checkInService: checkInService,
		tracer:         tracer,
	}
}

// ScanRequest carries the raw decoded QR string. The handler does not care
// whether a camera, a file decoder or a test produced it.
type ScanRequest struct {
	Data string `json:"data" binding:"required"`
}

// HandleScan runs the check-in pipeline for a presented token
func (h *CheckInHandler) HandleScan(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-scan")
	defer h.tracer.EndTransaction(txn)

	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("Invalid scan request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		h.tracer.RecordError(txn, err)
		return
	}

	result, err := h.checkInService.AttemptCheckIn(c.Request.Context(), req.Data)
	if err != nil {
		log.Error().Err(err).Msg("Check-in attempt failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "check-in temporarily unavailable"})
		h.tracer.RecordError(txn, err)
		return
	}

	h.tracer.AddAttribute(txn, "kind", string(result.Kind))
	c.JSON(statusForKind(result.Kind), result)
}

// HandleListCheckIns returns the active event's check-in log, newest first
func (h *CheckInHandler) HandleListCheckIns(c *gin.Context) {
	checkIns, err := h.checkInService.ListCheckIns(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list check-ins")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list check-ins"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkIns": checkIns, "count": len(checkIns)})
}

// statusForKind maps scan outcomes onto HTTP statuses. Rejections still
// carry the full result body; status codes exist for API clients that only
// look at the code.
func statusForKind(kind services.ResultKind) int {
	switch kind {
	case services.KindAdmitted:
		return http.StatusCreated
	case services.KindMalformedToken:
		return http.StatusBadRequest
	case services.KindSignatureMismatch:
		return http.StatusUnauthorized
	case services.KindTokenExpired:
		return http.StatusGone
	case services.KindEventMismatch, services.KindNoActiveEvent, services.KindDuplicateCheckIn:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// RegisterRoutes registers the handler's routes
func (h *CheckInHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	api.POST("/checkins/scan", h.HandleScan)
	api.GET("/checkins", h.HandleListCheckIns)
}
