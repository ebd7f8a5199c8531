package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"

	"civiceye/geo"
	"civiceye/imagestore"
	"civiceye/metrics"
	"civiceye/models"
)

// Submission carries one incoming report before validation.
type Submission struct {
	IssueType string
	Text      string
	VoiceText string
	Latitude  string
	Longitude string
	ImageName string
	ImageData []byte
}

// Submit scores a submission, stores it, and triggers the flagged fan-out.
// Detection never rejects a report; a fake verdict is recorded, not refused.
func (s *Service) Submit(ctx context.Context, sub Submission) (models.SubmitResponse, error) {
	recent := s.recentWindow(ctx)

	imageRef := ""
	latitude, longitude := sub.Latitude, sub.Longitude
	if len(sub.ImageData) > 0 {
		compressed, err := imagestore.Compress(sub.ImageData)
		if err != nil {
			return models.SubmitResponse{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
		imageRef, err = s.images.Save(sub.ImageName, compressed)
		if err != nil {
			return models.SubmitResponse{}, fmt.Errorf("failed to store report image: %w", err)
		}

		// Fall back to the photo's EXIF position when the client sent none.
		if latitude == "" || longitude == "" {
			if loc := imagestore.ExtractGPS(sub.ImageData); loc != nil {
				latitude = formatCoord(loc.Latitude)
				longitude = formatCoord(loc.Longitude)
				log.Infof("using EXIF GPS position for submission: %s, %s", latitude, longitude)
			}
		}
	}

	s.recordSkippedSignals(sub.Text, latitude, longitude, recent)

	start := time.Now()
	isFake, score := s.det.IsFake(sub.Text, imageRef, latitude, longitude, recent)
	verdict := verdictLabel(isFake)
	metrics.DetectionDurationSeconds.WithLabelValues(verdict).Observe(time.Since(start).Seconds())
	metrics.DetectionsTotal.WithLabelValues(verdict).Inc()
	metrics.FakeScore.Observe(score)

	issueType := sub.IssueType
	if issueType == "" {
		issueType = "unknown"
	}

	report := models.Report{
		ReportID:  newReportID(),
		IssueType: issueType,
		Text:      sub.Text,
		VoiceText: sub.VoiceText,
		ImagePath: imageRef,
		Location:  geo.NormalizeLocation(latitude, longitude),
		Status:    "submitted",
		Fake:      &isFake,
		FakeScore: &score,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	if err := s.db.SaveReport(&report); err != nil {
		return models.SubmitResponse{}, fmt.Errorf("failed to save report: %w", err)
	}
	s.cache.Invalidate(ctx, s.cfg.RecentLimit)

	if isFake {
		s.fanoutFlagged(report, score)
	}

	return models.SubmitResponse{
		ReportID:  report.ReportID,
		Status:    report.Status,
		IssueType: report.IssueType,
		IsFake:    isFake,
		FakeScore: score,
		Location:  report.Location,
		CreatedAt: report.CreatedAt,
	}, nil
}

// fanoutFlagged pushes a flagged report to every notification channel.
// Failures are logged and counted, the submission has already succeeded.
func (s *Service) fanoutFlagged(report models.Report, score float64) {
	event := models.FlaggedEvent{
		Report:    report,
		FakeScore: score,
		FlaggedAt: time.Now().UTC().Format(time.RFC3339),
	}

	metrics.FlaggedTotal.Inc()

	if s.hub != nil {
		s.hub.BroadcastFlagged(event)
	}

	if err := s.publisher.PublishFlagged(event); err != nil {
		log.WithError(err).Warn("failed to publish flagged report")
		metrics.FanoutErrorTotal.WithLabelValues("rabbitmq").Inc()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.alerts.NotifyFlagged(event); err != nil {
			log.WithError(err).Warn("failed to email flagged report alert")
			metrics.FanoutErrorTotal.WithLabelValues("email").Inc()
		}
	}()
}

// recordSkippedSignals mirrors the detector's gating so operators can see
// how often similarity and proximity run without their inputs.
func (s *Service) recordSkippedSignals(text, latitude, longitude string, recent []models.Report) {
	if text == "" || !hasCorpus(recent) {
		metrics.SignalsSkippedTotal.WithLabelValues("similarity").Inc()
	}
	if latitude == "" || longitude == "" || len(recent) == 0 {
		metrics.SignalsSkippedTotal.WithLabelValues("proximity").Inc()
	}
}

func hasCorpus(recent []models.Report) bool {
	for i := range recent {
		if recent[i].CorpusText() != "" {
			return true
		}
	}
	return false
}

func verdictLabel(isFake bool) string {
	if isFake {
		return "fake"
	}
	return "genuine"
}

func newReportID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

func formatCoord(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
