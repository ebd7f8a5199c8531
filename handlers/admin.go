package handlers

import (
	"errors"
	"net/http"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"civiceye/database"
	"civiceye/service"
)

// StatusUpdateRequest is the payload for moderation status changes
type StatusUpdateRequest struct {
	ReportID string `json:"report_id"`
	Status   string `json:"status"`
}

// GetDetectionInfo handles GET /api/v3/admin/detection/info
func (h *Handlers) GetDetectionInfo(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.DetectionInfo())
}

// UpdateReportStatus handles POST /api/v3/admin/reports/status
func (h *Handlers) UpdateReportStatus(c *gin.Context) {
	var req StatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if req.ReportID == "" || req.Status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "report_id and status are required"})
		return
	}

	if err := h.svc.SetStatus(req.ReportID, req.Status); err != nil {
		switch {
		case errors.Is(err, service.ErrBadStatus):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status. Must be one of submitted, reviewing, resolved, rejected."})
		case errors.Is(err, database.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
		default:
			log.Errorf("Failed to update status for report %s: %v", req.ReportID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update report status"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"report_id": req.ReportID,
		"status":    req.Status,
	})
}

// GetFlaggedReports handles GET /api/v3/admin/reports/flagged
func (h *Handlers) GetFlaggedReports(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		return
	}

	reports, err := h.svc.Flagged(limit)
	if err != nil {
		log.Errorf("Failed to get flagged reports: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve reports"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reports": reports,
		"count":   len(reports),
	})
}
