package database

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jknair0/beforeeach"

	"civiceye/geo"
	"civiceye/models"
)

var (
	db   *Database
	mock sqlmock.Sqlmock
)

func setUp() {
	sqlDB, sqlMock, err := sqlmock.New()
	if err != nil {
		panic(err)
	}
	db = New(sqlDB)
	mock = sqlMock
}

func tearDown() {
	db.Close()
}

var it = beforeeach.Create(setUp, tearDown)

func reportRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"seq", "report_id", "issue_type", "text", "voice_text", "image_path",
		"latitude", "longitude", "status", "fake", "fake_score", "created_at"})
}

func TestSaveReport(t *testing.T) {
	it(func() {
		created := time.Date(2025, 8, 25, 10, 0, 0, 0, time.UTC)
		mock.ExpectExec("INSERT INTO reports").
			WithArgs("ab12cd34", "pothole", "Deep pothole on the service road", nil, "pothole_ab12cd34.jpg",
				18.5204, 73.8567, "submitted", nil, nil, created).
			WillReturnResult(sqlmock.NewResult(7, 1))

		r := &models.Report{
			ReportID:  "ab12cd34",
			IssueType: "pothole",
			Text:      "Deep pothole on the service road",
			ImagePath: "pothole_ab12cd34.jpg",
			Location:  &models.Location{Latitude: 18.5204, Longitude: 73.8567},
			Status:    "submitted",
			CreatedAt: "2025-08-25T10:00:00Z",
		}
		if err := db.SaveReport(r); err != nil {
			t.Fatalf("SaveReport: %v", err)
		}
		if r.Seq != 7 {
			t.Errorf("expected seq 7, got %d", r.Seq)
		}
	})
}

func TestSaveReportWithoutLocation(t *testing.T) {
	it(func() {
		created := time.Date(2025, 8, 25, 10, 0, 0, 0, time.UTC)
		mock.ExpectExec("INSERT INTO reports").
			WithArgs("ff00aa11", "garbage", "Garbage pile near the vegetable market", nil, nil,
				nil, nil, "submitted", nil, nil, created).
			WillReturnResult(sqlmock.NewResult(8, 1))

		r := &models.Report{
			ReportID:  "ff00aa11",
			IssueType: "garbage",
			Text:      "Garbage pile near the vegetable market",
			Status:    "submitted",
			CreatedAt: "2025-08-25T10:00:00Z",
		}
		if err := db.SaveReport(r); err != nil {
			t.Fatalf("SaveReport: %v", err)
		}
	})
}

func TestSaveReportBadTimestamp(t *testing.T) {
	it(func() {
		r := &models.Report{
			ReportID:  "ab12cd34",
			IssueType: "pothole",
			Status:    "submitted",
			CreatedAt: "yesterday",
		}
		if err := db.SaveReport(r); err == nil {
			t.Error("expected error for unparsable timestamp")
		}
	})
}

func TestGetReport(t *testing.T) {
	it(func() {
		created := time.Date(2025, 8, 25, 10, 0, 0, 0, time.UTC)
		rows := reportRows().AddRow(3, "ab12cd34", "pothole", "Deep pothole", nil, "pothole_ab12cd34.jpg",
			18.5204, 73.8567, "submitted", true, 0.86, created)
		mock.ExpectQuery("SELECT (.+) FROM reports WHERE report_id").
			WithArgs("ab12cd34").
			WillReturnRows(rows)

		r, err := db.GetReport("ab12cd34")
		if err != nil {
			t.Fatalf("GetReport: %v", err)
		}
		if r.Seq != 3 || r.ReportID != "ab12cd34" || r.IssueType != "pothole" {
			t.Errorf("unexpected report: %+v", r)
		}
		if r.VoiceText != "" {
			t.Errorf("expected empty voice text, got %q", r.VoiceText)
		}
		if r.Location == nil || r.Location.Latitude != 18.5204 || r.Location.Longitude != 73.8567 {
			t.Errorf("unexpected location: %+v", r.Location)
		}
		if r.Fake == nil || !*r.Fake {
			t.Error("expected report to be marked fake")
		}
		if r.FakeScore == nil || *r.FakeScore != 0.86 {
			t.Errorf("unexpected fake score: %+v", r.FakeScore)
		}
		if r.CreatedAt != "2025-08-25T10:00:00Z" {
			t.Errorf("unexpected created_at: %q", r.CreatedAt)
		}
	})
}

func TestGetReportNotFound(t *testing.T) {
	it(func() {
		mock.ExpectQuery("SELECT (.+) FROM reports WHERE report_id").
			WithArgs("missing0").
			WillReturnError(sql.ErrNoRows)

		_, err := db.GetReport("missing0")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestListRecent(t *testing.T) {
	it(func() {
		created := time.Date(2025, 8, 25, 10, 0, 0, 0, time.UTC)
		rows := reportRows().
			AddRow(2, "bb22cc33", "garbage", "Overflowing bin", nil, nil, nil, nil, "submitted", nil, nil, created).
			AddRow(1, "aa11bb22", "pothole", nil, "Pothole reported by voice", nil, 18.52, 73.85, "submitted", false, 0.1, created.Add(-time.Hour))
		mock.ExpectQuery("SELECT (.+) FROM reports ORDER BY created_at DESC").
			WithArgs(5).
			WillReturnRows(rows)

		reports, err := db.ListRecent(5)
		if err != nil {
			t.Fatalf("ListRecent: %v", err)
		}
		if len(reports) != 2 {
			t.Fatalf("expected 2 reports, got %d", len(reports))
		}
		if reports[0].ReportID != "bb22cc33" || reports[1].ReportID != "aa11bb22" {
			t.Errorf("unexpected order: %s, %s", reports[0].ReportID, reports[1].ReportID)
		}
		if reports[1].Text != "" || reports[1].VoiceText != "Pothole reported by voice" {
			t.Errorf("unexpected text fields: %+v", reports[1])
		}
		if reports[1].Location == nil {
			t.Error("expected second report to carry a location")
		}
	})
}

func TestListRecentEmpty(t *testing.T) {
	it(func() {
		mock.ExpectQuery("SELECT (.+) FROM reports ORDER BY created_at DESC").
			WithArgs(50).
			WillReturnRows(reportRows())

		reports, err := db.ListRecent(50)
		if err != nil {
			t.Fatalf("ListRecent: %v", err)
		}
		if len(reports) != 0 {
			t.Errorf("expected no reports, got %d", len(reports))
		}
	})
}

func TestListUndetected(t *testing.T) {
	it(func() {
		created := time.Date(2025, 8, 25, 10, 0, 0, 0, time.UTC)
		rows := reportRows().
			AddRow(4, "cc44dd55", "streetlight", "Streetlight out", nil, nil, nil, nil, "submitted", nil, nil, created)
		mock.ExpectQuery("SELECT (.+) FROM reports WHERE fake_score IS NULL").
			WithArgs(10).
			WillReturnRows(rows)

		reports, err := db.ListUndetected(10)
		if err != nil {
			t.Fatalf("ListUndetected: %v", err)
		}
		if len(reports) != 1 {
			t.Fatalf("expected 1 report, got %d", len(reports))
		}
		if reports[0].Fake != nil || reports[0].FakeScore != nil {
			t.Errorf("expected no verdict on undetected report: %+v", reports[0])
		}
	})
}

func TestListFlagged(t *testing.T) {
	it(func() {
		created := time.Date(2025, 8, 25, 10, 0, 0, 0, time.UTC)
		rows := reportRows().
			AddRow(6, "ee66ff77", "garbage", "Click here for free stuff", nil, nil, nil, nil, "submitted", true, 0.83, created)
		mock.ExpectQuery("SELECT (.+) FROM reports WHERE fake = TRUE ORDER BY created_at DESC").
			WithArgs(10).
			WillReturnRows(rows)

		reports, err := db.ListFlagged(10)
		if err != nil {
			t.Fatalf("ListFlagged: %v", err)
		}
		if len(reports) != 1 || reports[0].ReportID != "ee66ff77" {
			t.Errorf("unexpected reports: %+v", reports)
		}
		if reports[0].Fake == nil || !*reports[0].Fake {
			t.Error("expected flagged report to be marked fake")
		}
	})
}

func TestListFlaggedWithin(t *testing.T) {
	it(func() {
		created := time.Date(2025, 8, 25, 10, 0, 0, 0, time.UTC)
		rows := reportRows().
			AddRow(9, "dd55ee66", "garbage", "Fake burst report", nil, nil, 18.52, 73.85, "submitted", true, 0.9, created)
		mock.ExpectQuery("WHERE fake = TRUE\\s+AND latitude BETWEEN").
			WithArgs(18.4, 18.7, 73.7, 74.0).
			WillReturnRows(rows)

		reports, err := db.ListFlaggedWithin(geo.Viewport{LatMin: 18.4, LonMin: 73.7, LatMax: 18.7, LonMax: 74.0})
		if err != nil {
			t.Fatalf("ListFlaggedWithin: %v", err)
		}
		if len(reports) != 1 || reports[0].ReportID != "dd55ee66" {
			t.Errorf("unexpected reports: %+v", reports)
		}
	})
}

func TestUpdateDetection(t *testing.T) {
	it(func() {
		mock.ExpectExec("UPDATE reports SET fake = \\?, fake_score = \\?").
			WithArgs(true, 0.86, "ab12cd34").
			WillReturnResult(sqlmock.NewResult(0, 1))

		if err := db.UpdateDetection("ab12cd34", true, 0.86); err != nil {
			t.Fatalf("UpdateDetection: %v", err)
		}
	})
}

func TestUpdateDetectionMissing(t *testing.T) {
	it(func() {
		mock.ExpectExec("UPDATE reports SET fake = \\?, fake_score = \\?").
			WithArgs(false, 0.1, "missing0").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := db.UpdateDetection("missing0", false, 0.1)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestUpdateStatus(t *testing.T) {
	it(func() {
		mock.ExpectExec("UPDATE reports SET status = \\?").
			WithArgs("resolved", "ab12cd34").
			WillReturnResult(sqlmock.NewResult(0, 1))

		if err := db.UpdateStatus("ab12cd34", "resolved"); err != nil {
			t.Fatalf("UpdateStatus: %v", err)
		}
	})
}

func TestMigrateReportsTable(t *testing.T) {
	it(func() {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\)").
			WithArgs("reports", "voice_text").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).FromCSVString("1"))
		mock.ExpectQuery("SELECT COUNT\\(\\*\\)").
			WithArgs("reports", "fake_index").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).FromCSVString("0"))
		mock.ExpectExec("ALTER TABLE reports ADD INDEX fake_index").
			WillReturnResult(sqlmock.NewResult(0, 0))

		if err := db.MigrateReportsTable(); err != nil {
			t.Fatalf("MigrateReportsTable: %v", err)
		}
	})
}
