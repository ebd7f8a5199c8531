package detector

import (
	"time"

	"github.com/apex/log"

	"civiceye/models"
)

// timestampLayouts accepts RFC3339 with or without fractional seconds plus
// naive ISO-8601; naive values are taken as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// burstScore counts reports created within the temporal window of now and
// maps the count to a suspicion tier. Unparsable timestamps are skipped;
// future timestamps still count.
func (d *Detector) burstScore(recent []models.Report) float64 {
	if len(recent) == 0 {
		return 0.0
	}

	now := time.Now().UTC()
	count := 0
	for i := range recent {
		created := recent[i].CreatedAt
		if created == "" {
			continue
		}
		t, ok := parseTimestamp(created)
		if !ok {
			log.Debugf("error parsing timestamp %q", created)
			continue
		}
		if now.Sub(t) <= d.cfg.TemporalWindow {
			count++
		}
	}

	switch {
	case count >= 5:
		return 0.8
	case count >= 3:
		return 0.5
	case count >= 2:
		return 0.3
	}
	return 0.0
}
