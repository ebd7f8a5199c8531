package handlers

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	geojson "github.com/paulmach/go.geojson"

	"civiceye/database"
	"civiceye/geo"
	"civiceye/models"
	"civiceye/service"
	ws "civiceye/websocket"
)

const (
	// MaxReportsLimit is the maximum number of reports that can be requested in a single query
	MaxReportsLimit = 100
)

var allowedImageExt = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// Handlers contains all HTTP handlers
type Handlers struct {
	svc       *service.Service
	hub       *ws.Hub
	maxUpload int64
}

// NewHandlers creates a new handlers instance
func NewHandlers(svc *service.Service, hub *ws.Hub, maxUpload int64) *Handlers {
	return &Handlers{
		svc:       svc,
		hub:       hub,
		maxUpload: maxUpload,
	}
}

// SubmitReport handles POST /api/v3/reports. The submission is multipart
// form data with an optional image part named "image".
func (h *Handlers) SubmitReport(c *gin.Context) {
	sub := service.Submission{
		IssueType: c.PostForm("issue_type"),
		Text:      c.PostForm("description"),
		VoiceText: c.PostForm("voice_text"),
		Latitude:  c.PostForm("latitude"),
		Longitude: c.PostForm("longitude"),
	}

	if file, err := c.FormFile("image"); err == nil {
		if file.Size > h.maxUpload {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Image exceeds the maximum upload size"})
			return
		}
		if !allowedImageExt[strings.ToLower(filepath.Ext(file.Filename))] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported image type. Must be png, jpg, jpeg, gif or webp."})
			return
		}

		src, err := file.Open()
		if err != nil {
			log.Errorf("Failed to open uploaded image: %v", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable image upload"})
			return
		}
		data, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			log.Errorf("Failed to read uploaded image: %v", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable image upload"})
			return
		}

		sub.ImageName = file.Filename
		sub.ImageData = data
	}

	resp, err := h.svc.Submit(c.Request.Context(), sub)
	if err != nil {
		if errors.Is(err, service.ErrInvalidImage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image data"})
			return
		}
		log.Errorf("Failed to process report submission: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store report"})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// GetRecentReports handles GET /api/v3/reports/recent
func (h *Handlers) GetRecentReports(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		return
	}

	reports, err := h.svc.Recent(limit)
	if err != nil {
		log.Errorf("Failed to get recent reports: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve reports"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reports": reports,
		"count":   len(reports),
	})
}

// GetReportStatus handles GET /api/v3/reports/status
func (h *Handlers) GetReportStatus(c *gin.Context) {
	reportID := c.Query("report_id")
	if reportID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing 'report_id' parameter"})
		return
	}

	report, err := h.svc.Report(reportID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
			return
		}
		log.Errorf("Failed to get report %s: %v", reportID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve report"})
		return
	}

	c.JSON(http.StatusOK, report)
}

// GetReportImage handles GET /api/v3/reports/image. It serves the stored
// (compressed) image file for a report.
func (h *Handlers) GetReportImage(c *gin.Context) {
	reportID := c.Query("report_id")
	if reportID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing 'report_id' parameter"})
		return
	}

	path, err := h.svc.ImageFile(reportID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) || errors.Is(err, service.ErrNoImage) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
			return
		}
		log.Errorf("Failed to resolve image for report %s: %v", reportID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve image"})
		return
	}

	c.File(path)
}

// GetHotspots handles GET /api/v3/reports/hotspots. It clusters the flagged
// reports inside the requested viewport and returns them as a GeoJSON
// FeatureCollection of weighted points.
func (h *Handlers) GetHotspots(c *gin.Context) {
	latMinStr, hasLatMin := c.GetQuery("sw_lat")
	lonMinStr, hasLonMin := c.GetQuery("sw_lon")
	latMaxStr, hasLatMax := c.GetQuery("ne_lat")
	lonMaxStr, hasLonMax := c.GetQuery("ne_lon")
	if !hasLatMin || !hasLonMin || !hasLatMax || !hasLonMax {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing viewport parameters. Requires sw_lat, sw_lon, ne_lat, ne_lon."})
		return
	}

	var vp geo.Viewport
	var err error
	if vp.LatMin, err = strconv.ParseFloat(latMinStr, 64); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'sw_lat' parameter. Must be a valid number."})
		return
	}
	if vp.LonMin, err = strconv.ParseFloat(lonMinStr, 64); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'sw_lon' parameter. Must be a valid number."})
		return
	}
	if vp.LatMax, err = strconv.ParseFloat(latMaxStr, 64); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'ne_lat' parameter. Must be a valid number."})
		return
	}
	if vp.LonMax, err = strconv.ParseFloat(lonMaxStr, 64); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'ne_lon' parameter. Must be a valid number."})
		return
	}

	reports, err := h.svc.FlaggedWithin(vp)
	if err != nil {
		log.Errorf("Failed to get flagged reports for viewport: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve hotspots"})
		return
	}

	clusterer := geo.NewClusterer(vp)
	for i := range reports {
		if loc := reports[i].Location; loc != nil {
			clusterer.AddPoint(loc.Latitude, loc.Longitude)
		}
	}

	fc := geojson.NewFeatureCollection()
	for _, p := range clusterer.Points() {
		feature := geojson.NewPointFeature([]float64{p.Longitude, p.Latitude})
		feature.SetProperty("count", p.Count)
		fc.AddFeature(feature)
	}

	c.JSON(http.StatusOK, fc)
}

// WebSocket upgrader
var upgrader = gorilla.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for now
		// In production, you should implement proper origin checking
		return true
	},
}

// ListenFlagged handles WebSocket connections for the flagged-report feed
func (h *Handlers) ListenFlagged(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Errorf("Failed to upgrade connection to WebSocket: %v", err)
		return
	}

	client := ws.NewClient(h.hub, conn)
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()

	log.Info("WebSocket connection established")
}

// HealthCheck returns the service health status
func (h *Handlers) HealthCheck(c *gin.Context) {
	connectedClients, lastFlaggedID := h.hub.GetStats()

	response := models.HealthResponse{
		Status:           "healthy",
		Service:          "civiceye",
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		ConnectedClients: connectedClients,
		LastFlaggedID:    lastFlaggedID,
	}

	c.JSON(http.StatusOK, response)
}

// limitParam reads the 'n' query parameter, defaulting to 10 and clamping
// to MaxReportsLimit. It writes the error response on invalid input.
func limitParam(c *gin.Context) (int, bool) {
	limitStr := c.DefaultQuery("n", "10")

	limit := 10
	if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
		limit = parsedLimit
	} else {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'n' parameter. Must be a positive integer."})
		return 0, false
	}

	if limit > MaxReportsLimit {
		limit = MaxReportsLimit
	}
	return limit, true
}
