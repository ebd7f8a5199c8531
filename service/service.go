// Package service runs the report intake pipeline: it feeds submissions
// through the fake detector, persists the verdict, and fans flagged
// reports out to RabbitMQ, WebSocket subscribers, and the moderator inbox.
package service

import (
	"context"
	"errors"
	"sync"

	"github.com/apex/log"

	"civiceye/cache"
	"civiceye/config"
	"civiceye/database"
	"civiceye/detector"
	"civiceye/geo"
	"civiceye/imagestore"
	"civiceye/models"
	"civiceye/notifier"
	"civiceye/rabbitmq"
	"civiceye/websocket"
)

// ErrInvalidImage marks image payloads that cannot be decoded.
var ErrInvalidImage = errors.New("invalid image data")

// ErrNoImage marks reports without a stored image.
var ErrNoImage = errors.New("report has no image")

// ErrBadStatus marks unsupported moderation statuses.
var ErrBadStatus = errors.New("unsupported report status")

var allowedStatuses = map[string]bool{
	"submitted": true,
	"reviewing": true,
	"resolved":  true,
	"rejected":  true,
}

// Service wires the detector to storage and the flagged-report fan-out.
type Service struct {
	cfg       *config.Config
	db        *database.Database
	det       *detector.Detector
	images    *imagestore.Store
	cache     *cache.Cache
	publisher *rabbitmq.Publisher
	hub       *websocket.Hub
	alerts    *notifier.Notifier

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates the report service.
func New(cfg *config.Config, db *database.Database, det *detector.Detector, images *imagestore.Store,
	recentCache *cache.Cache, publisher *rabbitmq.Publisher, hub *websocket.Hub, alerts *notifier.Notifier) *Service {
	return &Service{
		cfg:       cfg,
		db:        db,
		det:       det,
		images:    images,
		cache:     recentCache,
		publisher: publisher,
		hub:       hub,
		alerts:    alerts,
		stopChan:  make(chan struct{}),
	}
}

// Report returns a stored report by its public identifier.
func (s *Service) Report(reportID string) (models.Report, error) {
	return s.db.GetReport(reportID)
}

// Recent returns the newest reports, most recent first.
func (s *Service) Recent(limit int) ([]models.Report, error) {
	return s.db.ListRecent(limit)
}

// Flagged returns reports marked as fake for the review queue.
func (s *Service) Flagged(limit int) ([]models.Report, error) {
	return s.db.ListFlagged(limit)
}

// FlaggedWithin returns flagged reports inside a map viewport.
func (s *Service) FlaggedWithin(vp geo.Viewport) ([]models.Report, error) {
	return s.db.ListFlaggedWithin(vp)
}

// SetStatus updates the moderation status of a report.
func (s *Service) SetStatus(reportID, status string) error {
	if !allowedStatuses[status] {
		return ErrBadStatus
	}
	return s.db.UpdateStatus(reportID, status)
}

// ImageFile resolves the stored image of a report to a filesystem path.
func (s *Service) ImageFile(reportID string) (string, error) {
	report, err := s.db.GetReport(reportID)
	if err != nil {
		return "", err
	}
	if report.ImagePath == "" || !s.images.Exists(report.ImagePath) {
		return "", ErrNoImage
	}
	return s.images.Path(report.ImagePath), nil
}

// DetectionInfo exposes the active detector configuration.
func (s *Service) DetectionInfo() detector.Info {
	return s.det.Info()
}

// Ping verifies the backing database is reachable.
func (s *Service) Ping() error {
	return s.db.Ping()
}

// Stop terminates background work and waits for in-flight goroutines.
func (s *Service) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}

// recentWindow loads the detector's report history, preferring the cache.
// Any failure degrades to an empty window so detection still runs.
func (s *Service) recentWindow(ctx context.Context) []models.Report {
	if reports, ok := s.cache.RecentReports(ctx, s.cfg.RecentLimit); ok {
		return reports
	}

	reports, err := s.db.ListRecent(s.cfg.RecentLimit)
	if err != nil {
		log.WithError(err).Warn("failed to load recent reports, scoring without history")
		return nil
	}
	s.cache.StoreRecent(ctx, s.cfg.RecentLimit, reports)
	return reports
}
