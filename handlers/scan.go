package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gatescan/models"
)

// ScanPublisher feeds accepted scans to the live view. A nil publisher
// disables the feed; publish failures never fail the scan itself.
type ScanPublisher interface {
	PublishScan(ctx context.Context, req models.RecordScanRequest, res models.ScanResult) error
}

type ScanHandler struct {
	store     ScanStore
	publisher ScanPublisher
	logger    *zap.Logger
}

func NewScanHandler(store ScanStore, publisher ScanPublisher, logger *zap.Logger) *ScanHandler {
	return &ScanHandler{store: store, publisher: publisher, logger: logger}
}

// RecordScan is the single authoritative recording operation. The response
// body is always the discriminated ScanResult; HTTP errors are reserved for
// malformed requests and server faults, so the client can tell a rejection
// from a transport failure.
func (h *ScanHandler) RecordScan(c *gin.Context) {
	var req models.RecordScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	if !models.ValidIdentifier(req.Identifier) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Identifier must be exactly 8 digits"})
		return
	}

	operatorID := c.GetInt64(ctxOperatorID)

	res, err := h.store.RecordScan(c.Request.Context(), req, operatorID)
	if err != nil {
		h.logger.Error("recording scan failed",
			zap.String("identifier", req.Identifier),
			zap.Int64("event_location_id", req.EventLocationID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to record scan"})
		return
	}

	h.logger.Info("scan recorded",
		zap.String("identifier", req.Identifier),
		zap.Int64("event_location_id", req.EventLocationID),
		zap.Int64("record_id", res.RecordID),
		zap.Bool("allowed", res.Allowed),
		zap.Bool("duplicate", res.Duplicate))

	if h.publisher != nil && res.Allowed {
		if err := h.publisher.PublishScan(c.Request.Context(), req, res); err != nil {
			h.logger.Warn("publishing scan failed", zap.Int64("record_id", res.RecordID), zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, res)
}

// LastSeen resolves the most recent prior accepted scan for an identifier
// at a location, excluding the record the caller just created.
func (h *ScanHandler) LastSeen(c *gin.Context) {
	identifier := c.Query("identifier")
	if !models.ValidIdentifier(identifier) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Identifier must be exactly 8 digits"})
		return
	}

	eventLocationID, err := strconv.ParseInt(c.Query("event_location_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid event_location_id"})
		return
	}

	var excludeID int64
	if v := c.Query("exclude_id"); v != "" {
		excludeID, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid exclude_id"})
			return
		}
	}

	res, err := h.store.LastSeen(c.Request.Context(), identifier, eventLocationID, excludeID)
	if err != nil {
		h.logger.Error("last-seen lookup failed", zap.String("identifier", identifier), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to look up prior scans"})
		return
	}

	c.JSON(http.StatusOK, res)
}

// ListScans returns the scan log for an event location, newest first.
func (h *ScanHandler) ListScans(c *gin.Context) {
	eventLocationID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid event location ID"})
		return
	}

	limit := 200
	if v := c.Query("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 1 || limit > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid limit"})
			return
		}
	}

	scans, err := h.store.ScansForLocation(c.Request.Context(), eventLocationID, limit)
	if err != nil {
		h.logger.Error("listing scans failed", zap.Int64("event_location_id", eventLocationID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to list scans"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"scans": scans, "count": len(scans)})
}
