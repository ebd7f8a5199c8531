package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	geojson "github.com/paulmach/go.geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civiceye/config"
	"civiceye/database"
	"civiceye/detector"
	"civiceye/imagestore"
	"civiceye/models"
	"civiceye/service"
	ws "civiceye/websocket"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestHandlers(t *testing.T) (*Handlers, sqlmock.Sqlmock, *imagestore.Store) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	store, err := imagestore.New(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{
		RecentLimit:   50,
		RedetectBatch: 10,
	}
	det := detector.New(detector.DefaultConfig(), store)
	svc := service.New(cfg, database.New(sqlDB), det, store, nil, nil, nil, nil)
	t.Cleanup(svc.Stop)

	return NewHandlers(svc, ws.NewHub(), 16<<20), mock, store
}

func reportRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"seq", "report_id", "issue_type", "text", "voice_text", "image_path",
		"latitude", "longitude", "status", "fake", "fake_score", "created_at"})
}

func doRequest(h gin.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	h(c)
	return w
}

func TestSubmitReport(t *testing.T) {
	h, mock, _ := newTestHandlers(t)

	mock.ExpectQuery("SELECT (.+) FROM reports ORDER BY created_at DESC").
		WithArgs(50).
		WillReturnRows(reportRows())
	mock.ExpectExec("INSERT INTO reports").
		WithArgs(sqlmock.AnyArg(), "streetlight", "Streetlight out on the main crossing", nil, nil,
			nil, nil, "submitted", false, 0.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	writer.WriteField("description", "Streetlight out on the main crossing")
	writer.WriteField("issue_type", "streetlight")
	writer.Close()

	req := httptest.NewRequest("POST", "/api/v3/reports", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := doRequest(h.SubmitReport, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp models.SubmitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ReportID)
	assert.Equal(t, "submitted", resp.Status)
	assert.Equal(t, "streetlight", resp.IssueType)
	assert.False(t, resp.IsFake)
}

func TestSubmitReportOversizeImage(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	h.maxUpload = 4

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", "big.jpg")
	require.NoError(t, err)
	part.Write([]byte("way more than four bytes"))
	writer.Close()

	req := httptest.NewRequest("POST", "/api/v3/reports", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := doRequest(h.SubmitReport, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestSubmitReportBadImageType(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", "payload.exe")
	require.NoError(t, err)
	part.Write([]byte("not an image"))
	writer.Close()

	req := httptest.NewRequest("POST", "/api/v3/reports", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := doRequest(h.SubmitReport, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRecentReports(t *testing.T) {
	h, mock, _ := newTestHandlers(t)

	now := time.Now().UTC()
	rows := reportRows().
		AddRow(2, "bb22cc33dd44ee55ff660011223344aa", "garbage", "Trash pile behind the market", nil, nil,
			18.5204, 73.8567, "submitted", false, 0.1, now).
		AddRow(1, "aa11bb22cc33dd44ee55ff6600112233", "pothole", "Deep pothole by the school gate", nil, nil,
			nil, nil, "submitted", false, 0.0, now.Add(-time.Hour))
	mock.ExpectQuery("SELECT (.+) FROM reports ORDER BY created_at DESC").
		WithArgs(5).
		WillReturnRows(rows)

	req := httptest.NewRequest("GET", "/api/v3/reports/recent?n=5", nil)
	w := doRequest(h.GetRecentReports, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Reports []models.Report `json:"reports"`
		Count   int             `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "bb22cc33dd44ee55ff660011223344aa", resp.Reports[0].ReportID)
}

func TestGetRecentReportsClampsLimit(t *testing.T) {
	h, mock, _ := newTestHandlers(t)

	mock.ExpectQuery("SELECT (.+) FROM reports ORDER BY created_at DESC").
		WithArgs(MaxReportsLimit).
		WillReturnRows(reportRows())

	req := httptest.NewRequest("GET", "/api/v3/reports/recent?n=100000", nil)
	w := doRequest(h.GetRecentReports, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetRecentReportsBadLimit(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	req := httptest.NewRequest("GET", "/api/v3/reports/recent?n=abc", nil)
	w := doRequest(h.GetRecentReports, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetReportStatus(t *testing.T) {
	h, mock, _ := newTestHandlers(t)

	rows := reportRows().
		AddRow(3, "cc33dd44ee55ff66001122334455aabb", "pothole", "Deep pothole by the school gate", nil, nil,
			nil, nil, "reviewing", true, 0.82, time.Now().UTC())
	mock.ExpectQuery("SELECT (.+) FROM reports WHERE report_id = ?").
		WithArgs("cc33dd44ee55ff66001122334455aabb").
		WillReturnRows(rows)

	req := httptest.NewRequest("GET", "/api/v3/reports/status?report_id=cc33dd44ee55ff66001122334455aabb", nil)
	w := doRequest(h.GetReportStatus, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var report models.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, "reviewing", report.Status)
	require.NotNil(t, report.Fake)
	assert.True(t, *report.Fake)
}

func TestGetReportStatusNotFound(t *testing.T) {
	h, mock, _ := newTestHandlers(t)

	mock.ExpectQuery("SELECT (.+) FROM reports WHERE report_id = ?").
		WithArgs("missing0000000000000000000000000").
		WillReturnRows(reportRows())

	req := httptest.NewRequest("GET", "/api/v3/reports/status?report_id=missing0000000000000000000000000", nil)
	w := doRequest(h.GetReportStatus, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetReportStatusMissingParam(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	req := httptest.NewRequest("GET", "/api/v3/reports/status", nil)
	w := doRequest(h.GetReportStatus, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetReportImage(t *testing.T) {
	h, mock, store := newTestHandlers(t)

	imageData := []byte("raw jpeg bytes")
	ref, err := store.Save("pothole.jpg", imageData)
	require.NoError(t, err)

	rows := reportRows().
		AddRow(4, "dd44ee55ff660011223344556677aabb", "pothole", "Deep pothole by the school gate", nil, ref,
			nil, nil, "submitted", false, 0.0, time.Now().UTC())
	mock.ExpectQuery("SELECT (.+) FROM reports WHERE report_id = ?").
		WithArgs("dd44ee55ff660011223344556677aabb").
		WillReturnRows(rows)

	req := httptest.NewRequest("GET", "/api/v3/reports/image?report_id=dd44ee55ff660011223344556677aabb", nil)
	w := doRequest(h.GetReportImage, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, imageData, w.Body.Bytes())
}

func TestGetReportImageMissing(t *testing.T) {
	h, mock, _ := newTestHandlers(t)

	rows := reportRows().
		AddRow(5, "ee55ff66001122334455667788aabbcc", "garbage", "Trash pile behind the market", nil, nil,
			nil, nil, "submitted", false, 0.0, time.Now().UTC())
	mock.ExpectQuery("SELECT (.+) FROM reports WHERE report_id = ?").
		WithArgs("ee55ff66001122334455667788aabbcc").
		WillReturnRows(rows)

	req := httptest.NewRequest("GET", "/api/v3/reports/image?report_id=ee55ff66001122334455667788aabbcc", nil)
	w := doRequest(h.GetReportImage, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetHotspots(t *testing.T) {
	h, mock, _ := newTestHandlers(t)

	now := time.Now().UTC()
	rows := reportRows().
		AddRow(1, "aa11bb22cc33dd44ee55ff6600112233", "garbage", "Trash pile behind the market", nil, nil,
			18.5204, 73.8567, "submitted", true, 0.9, now).
		AddRow(2, "bb22cc33dd44ee55ff660011223344aa", "garbage", "Trash pile behind the market", nil, nil,
			18.5204, 73.8567, "submitted", true, 0.85, now).
		AddRow(3, "cc33dd44ee55ff66001122334455aabb", "pothole", "Deep pothole by the school gate", nil, nil,
			18.65, 73.95, "submitted", true, 0.75, now)
	mock.ExpectQuery("WHERE fake = TRUE\\s+AND latitude BETWEEN").
		WithArgs(18.4, 18.7, 73.7, 74.0).
		WillReturnRows(rows)

	req := httptest.NewRequest("GET", "/api/v3/reports/hotspots?sw_lat=18.4&sw_lon=73.7&ne_lat=18.7&ne_lon=74.0", nil)
	w := doRequest(h.GetHotspots, req)

	assert.Equal(t, http.StatusOK, w.Code)

	fc, err := geojson.UnmarshalFeatureCollection(w.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)

	total := 0
	for _, f := range fc.Features {
		total += f.PropertyMustInt("count", 0)
	}
	assert.Equal(t, 3, total)
}

func TestGetHotspotsMissingViewport(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	req := httptest.NewRequest("GET", "/api/v3/reports/hotspots?sw_lat=18.4&sw_lon=73.7", nil)
	w := doRequest(h.GetHotspots, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetHotspotsBadCoordinate(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	req := httptest.NewRequest("GET", "/api/v3/reports/hotspots?sw_lat=x&sw_lon=73.7&ne_lat=18.7&ne_lon=74.0", nil)
	w := doRequest(h.GetHotspots, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateReportStatus(t *testing.T) {
	h, mock, _ := newTestHandlers(t)

	mock.ExpectExec("UPDATE reports SET status = \\?").
		WithArgs("reviewing", "cc33dd44ee55ff66001122334455aabb").
		WillReturnResult(sqlmock.NewResult(0, 1))

	payload, _ := json.Marshal(StatusUpdateRequest{
		ReportID: "cc33dd44ee55ff66001122334455aabb",
		Status:   "reviewing",
	})
	req := httptest.NewRequest("POST", "/api/v3/admin/reports/status", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	w := doRequest(h.UpdateReportStatus, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpdateReportStatusInvalid(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	payload, _ := json.Marshal(StatusUpdateRequest{
		ReportID: "cc33dd44ee55ff66001122334455aabb",
		Status:   "vanished",
	})
	req := httptest.NewRequest("POST", "/api/v3/admin/reports/status", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	w := doRequest(h.UpdateReportStatus, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateReportStatusNotFound(t *testing.T) {
	h, mock, _ := newTestHandlers(t)

	mock.ExpectExec("UPDATE reports SET status = \\?").
		WithArgs("resolved", "missing0000000000000000000000000").
		WillReturnResult(sqlmock.NewResult(0, 0))

	payload, _ := json.Marshal(StatusUpdateRequest{
		ReportID: "missing0000000000000000000000000",
		Status:   "resolved",
	})
	req := httptest.NewRequest("POST", "/api/v3/admin/reports/status", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	w := doRequest(h.UpdateReportStatus, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetDetectionInfo(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	req := httptest.NewRequest("GET", "/api/v3/admin/detection/info", nil)
	w := doRequest(h.GetDetectionInfo, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var info map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, true, info["vectorizer_available"])
	assert.Equal(t, 100.0, info["proximity_threshold_m"])
	assert.Equal(t, 0.7, info["similarity_threshold"])
	assert.Equal(t, 30.0, info["temporal_window_minutes"])
	assert.Equal(t, 10.0, info["min_text_length"])
}

func TestHealthCheck(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	req := httptest.NewRequest("GET", "/api/v3/reports/health", nil)
	w := doRequest(h.HealthCheck, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "civiceye", resp.Service)
	assert.Equal(t, 0, resp.ConnectedClients)
}
