package service

import (
	"context"
	"time"

	"github.com/apex/log"

	"civiceye/metrics"
	"civiceye/models"
)

// Start launches the background re-detection loop. It picks up rows that
// never received a verdict, typically after a crash mid-submission or an
// externally inserted backlog.
func (s *Service) Start() {
	s.wg.Add(1)
	go s.redetectLoop()
}

func (s *Service) redetectLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.RedetectInterval)
	defer ticker.Stop()

	log.Infof("re-detection loop started, interval %v, batch %d", s.cfg.RedetectInterval, s.cfg.RedetectBatch)
	for {
		select {
		case <-s.stopChan:
			log.Info("re-detection loop stopped")
			return
		case <-ticker.C:
			if err := s.RedetectPending(context.Background()); err != nil {
				log.WithError(err).Warn("re-detection pass failed")
			}
		}
	}
}

// RedetectPending scores reports whose fake_score is still NULL.
func (s *Service) RedetectPending(ctx context.Context) error {
	pending, err := s.db.ListUndetected(s.cfg.RedetectBatch)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	recent := s.recentWindow(ctx)
	for _, report := range pending {
		// The row under scoring is part of the stored history; scoring it
		// against itself would read as a guaranteed duplicate.
		window := excludeReport(recent, report.ReportID)
		latitude, longitude := coordinateStrings(report.Location)

		start := time.Now()
		isFake, score := s.det.IsFake(report.Text, report.ImagePath, latitude, longitude, window)
		verdict := verdictLabel(isFake)
		metrics.DetectionDurationSeconds.WithLabelValues(verdict).Observe(time.Since(start).Seconds())
		metrics.DetectionsTotal.WithLabelValues(verdict).Inc()
		metrics.FakeScore.Observe(score)
		metrics.RedetectionsTotal.Inc()

		if err := s.db.UpdateDetection(report.ReportID, isFake, score); err != nil {
			log.WithError(err).Warnf("failed to record verdict for report %s", report.ReportID)
			continue
		}
		log.Infof("re-detected report %s: %s (score: %.3f)", report.ReportID, verdict, score)

		if isFake {
			report.Fake = &isFake
			report.FakeScore = &score
			s.fanoutFlagged(report, score)
		}
	}

	s.cache.Invalidate(ctx, s.cfg.RecentLimit)
	return nil
}

func excludeReport(reports []models.Report, reportID string) []models.Report {
	filtered := make([]models.Report, 0, len(reports))
	for _, r := range reports {
		if r.ReportID != reportID {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

func coordinateStrings(loc *models.Location) (string, string) {
	if loc == nil {
		return "", ""
	}
	return formatCoord(loc.Latitude), formatCoord(loc.Longitude)
}
