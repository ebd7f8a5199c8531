package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/apex/log"
	_ "github.com/go-sql-driver/mysql"

	"civiceye/config"
	"civiceye/geo"
	"civiceye/models"
)

// ErrNotFound is returned when a report does not exist.
var ErrNotFound = errors.New("report not found")

const reportColumns = "seq, report_id, issue_type, text, voice_text, image_path, latitude, longitude, status, fake, fake_score, created_at"

// Database handles report persistence.
type Database struct {
	db *sql.DB
}

// New wraps an existing connection. Used by tests.
func New(db *sql.DB) *Database {
	return &Database{db: db}
}

// NewDatabase creates a new database connection and waits until it is reachable.
func NewDatabase(cfg *config.Config) (*Database, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	waitInterval := 1 * time.Second
	for {
		if err := db.Ping(); err == nil {
			break
		}
		log.Warnf("failed to ping database, retrying in %v", waitInterval)
		time.Sleep(waitInterval)
		waitInterval *= 2
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Database{db: db}, nil
}

// CreateReportsTable creates the reports table if it doesn't exist.
func (d *Database) CreateReportsTable() error {
	createTableQuery := `
	CREATE TABLE IF NOT EXISTS reports (
		seq INT NOT NULL AUTO_INCREMENT,
		report_id VARCHAR(32) NOT NULL,
		issue_type VARCHAR(64) NOT NULL DEFAULT 'unknown',
		text TEXT,
		voice_text TEXT,
		image_path VARCHAR(255),
		latitude DOUBLE,
		longitude DOUBLE,
		status VARCHAR(32) NOT NULL DEFAULT 'submitted',
		fake BOOLEAN,
		fake_score DOUBLE,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (seq),
		UNIQUE INDEX report_id_index (report_id),
		INDEX created_at_index (created_at)
	)`

	if _, err := d.db.Exec(createTableQuery); err != nil {
		return fmt.Errorf("failed to create reports table: %w", err)
	}
	return nil
}

// MigrateReportsTable adds columns and indexes introduced after the initial schema.
func (d *Database) MigrateReportsTable() error {
	exists, err := d.columnExists("reports", "voice_text")
	if err != nil {
		return err
	}
	if !exists {
		if _, err := d.db.Exec(`ALTER TABLE reports ADD COLUMN voice_text TEXT AFTER text`); err != nil {
			return fmt.Errorf("failed to add voice_text column: %w", err)
		}
		log.Info("added voice_text column to reports table")
	} else {
		log.Debug("voice_text column already exists in reports table")
	}

	exists, err = d.indexExists("reports", "fake_index")
	if err != nil {
		return err
	}
	if !exists {
		if _, err := d.db.Exec(`ALTER TABLE reports ADD INDEX fake_index (fake)`); err != nil {
			return fmt.Errorf("failed to add fake index: %w", err)
		}
		log.Info("added fake index to reports table")
	} else {
		log.Debug("fake index already exists on reports table")
	}

	return nil
}

// columnExists checks whether a column exists on a table in the current schema.
func (d *Database) columnExists(tableName, columnName string) (bool, error) {
	var count int
	err := d.db.QueryRow(`
		SELECT COUNT(*)
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE()
		AND TABLE_NAME = ?
		AND COLUMN_NAME = ?`, tableName, columnName).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check column existence: %w", err)
	}
	return count > 0, nil
}

// indexExists checks whether an index exists on a table in the current schema.
func (d *Database) indexExists(tableName, indexName string) (bool, error) {
	var count int
	err := d.db.QueryRow(`
		SELECT COUNT(*)
		FROM INFORMATION_SCHEMA.STATISTICS
		WHERE TABLE_SCHEMA = DATABASE()
		AND TABLE_NAME = ?
		AND INDEX_NAME = ?`, tableName, indexName).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check index existence: %w", err)
	}
	return count > 0, nil
}

// SaveReport inserts a report and fills in its sequence number.
func (d *Database) SaveReport(r *models.Report) error {
	createdAt, err := time.Parse(time.RFC3339, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to parse report timestamp: %w", err)
	}

	var latitude, longitude interface{}
	if r.Location != nil {
		latitude = r.Location.Latitude
		longitude = r.Location.Longitude
	}
	var fake interface{}
	if r.Fake != nil {
		fake = *r.Fake
	}
	var fakeScore interface{}
	if r.FakeScore != nil {
		fakeScore = *r.FakeScore
	}

	result, err := d.db.Exec(`
		INSERT INTO reports (report_id, issue_type, text, voice_text, image_path, latitude, longitude, status, fake, fake_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ReportID, r.IssueType, nullString(r.Text), nullString(r.VoiceText), nullString(r.ImagePath),
		latitude, longitude, r.Status, fake, fakeScore, createdAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get report sequence: %w", err)
	}
	r.Seq = int(seq)
	return nil
}

// GetReport fetches a single report by its public identifier.
func (d *Database) GetReport(reportID string) (models.Report, error) {
	row := d.db.QueryRow(`SELECT `+reportColumns+` FROM reports WHERE report_id = ?`, reportID)
	r, err := scanReport(row)
	if err == sql.ErrNoRows {
		return models.Report{}, fmt.Errorf("report %s: %w", reportID, ErrNotFound)
	}
	if err != nil {
		return models.Report{}, fmt.Errorf("failed to get report: %w", err)
	}
	return r, nil
}

// ListRecent returns the newest reports, most recent first.
func (d *Database) ListRecent(limit int) ([]models.Report, error) {
	rows, err := d.db.Query(`SELECT `+reportColumns+` FROM reports ORDER BY created_at DESC, seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent reports: %w", err)
	}
	defer rows.Close()
	return collectReports(rows)
}

// ListUndetected returns reports without a detection verdict, oldest first.
func (d *Database) ListUndetected(limit int) ([]models.Report, error) {
	rows, err := d.db.Query(`SELECT `+reportColumns+` FROM reports WHERE fake_score IS NULL ORDER BY seq ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list undetected reports: %w", err)
	}
	defer rows.Close()
	return collectReports(rows)
}

// ListFlagged returns reports marked as fake, most recent first.
func (d *Database) ListFlagged(limit int) ([]models.Report, error) {
	rows, err := d.db.Query(`SELECT `+reportColumns+` FROM reports WHERE fake = TRUE ORDER BY created_at DESC, seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list flagged reports: %w", err)
	}
	defer rows.Close()
	return collectReports(rows)
}

// ListFlaggedWithin returns flagged reports located inside a viewport.
func (d *Database) ListFlaggedWithin(vp geo.Viewport) ([]models.Report, error) {
	rows, err := d.db.Query(`
		SELECT `+reportColumns+`
		FROM reports
		WHERE fake = TRUE
		AND latitude BETWEEN ? AND ?
		AND longitude BETWEEN ? AND ?`,
		vp.LatMin, vp.LatMax, vp.LonMin, vp.LonMax)
	if err != nil {
		return nil, fmt.Errorf("failed to list flagged reports in viewport: %w", err)
	}
	defer rows.Close()
	return collectReports(rows)
}

// UpdateDetection records the detector verdict for a report.
func (d *Database) UpdateDetection(reportID string, fake bool, score float64) error {
	result, err := d.db.Exec(`UPDATE reports SET fake = ?, fake_score = ? WHERE report_id = ?`,
		fake, score, reportID)
	if err != nil {
		return fmt.Errorf("failed to update detection result: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("report %s: %w", reportID, ErrNotFound)
	}
	return nil
}

// UpdateStatus sets the moderation status of a report.
func (d *Database) UpdateStatus(reportID, status string) error {
	result, err := d.db.Exec(`UPDATE reports SET status = ? WHERE report_id = ?`, status, reportID)
	if err != nil {
		return fmt.Errorf("failed to update report status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("report %s: %w", reportID, ErrNotFound)
	}
	return nil
}

// Ping verifies the database connection is alive.
func (d *Database) Ping() error {
	return d.db.Ping()
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(row rowScanner) (models.Report, error) {
	var (
		r         models.Report
		text      sql.NullString
		voiceText sql.NullString
		imagePath sql.NullString
		latitude  sql.NullFloat64
		longitude sql.NullFloat64
		fake      sql.NullBool
		fakeScore sql.NullFloat64
		createdAt time.Time
	)

	err := row.Scan(&r.Seq, &r.ReportID, &r.IssueType, &text, &voiceText, &imagePath,
		&latitude, &longitude, &r.Status, &fake, &fakeScore, &createdAt)
	if err != nil {
		return models.Report{}, err
	}

	r.Text = text.String
	r.VoiceText = voiceText.String
	r.ImagePath = imagePath.String
	if latitude.Valid && longitude.Valid {
		r.Location = &models.Location{Latitude: latitude.Float64, Longitude: longitude.Float64}
	}
	if fake.Valid {
		f := fake.Bool
		r.Fake = &f
	}
	if fakeScore.Valid {
		s := fakeScore.Float64
		r.FakeScore = &s
	}
	r.CreatedAt = createdAt.UTC().Format(time.RFC3339)
	return r, nil
}

func collectReports(rows *sql.Rows) ([]models.Report, error) {
	var reports []models.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reports: %w", err)
	}
	return reports, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
