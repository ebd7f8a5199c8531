// Package detector scores civic report submissions for fake or duplicate
// content. It fuses four signals: content quality heuristics, text
// similarity against recent reports, location proximity, and temporal
// submission bursts. Every signal degrades instead of failing, so a
// detection always produces a verdict.
package detector

import (
	"time"

	"github.com/apex/log"

	"civiceye/models"
)

// ImageChecker resolves image references during content validation.
type ImageChecker interface {
	Exists(ref string) bool
	Size(ref string) (int64, error)
}

// Config holds the detection weights and thresholds. Start from
// DefaultConfig; the zero value disables every signal.
type Config struct {
	ContentWeight    float64
	SimilarityWeight float64
	ProximityWeight  float64
	TemporalWeight   float64

	// Threshold is the decision boundary on the final score.
	Threshold float64

	// ProximityKm is the distance to a recent report treated as suspicious.
	ProximityKm float64

	// NearScore is the proximity signal value when a nearby report exists.
	NearScore float64

	TemporalWindow time.Duration
	MinTextLength  int
	MinImageBytes  int64
	MaxFeatures    int

	// DisableVectorizer forces the heuristic similarity path.
	DisableVectorizer bool
}

// DefaultConfig returns the stock detection parameters.
func DefaultConfig() Config {
	return Config{
		ContentWeight:    0.3,
		SimilarityWeight: 0.4,
		ProximityWeight:  0.2,
		TemporalWeight:   0.1,
		Threshold:        0.7,
		ProximityKm:      0.1,
		NearScore:        0.7,
		TemporalWindow:   30 * time.Minute,
		MinTextLength:    10,
		MinImageBytes:    1024,
		MaxFeatures:      5000,
	}
}

// Detector fuses the detection signals into one verdict. All state is fixed
// at construction, so a single instance is safe for concurrent use.
type Detector struct {
	cfg    Config
	images ImageChecker
	scorer scorer
	vector bool
}

// New builds a detector. When the vector backend cannot be constructed the
// detector permanently falls back to heuristic similarity.
func New(cfg Config, images ImageChecker) *Detector {
	d := &Detector{cfg: cfg, images: images}

	if cfg.DisableVectorizer {
		log.Warn("vector backend disabled, using heuristic similarity")
		d.scorer = overlapScorer{}
		return d
	}

	vec, err := newVectorizer(cfg.MaxFeatures)
	if err != nil {
		log.WithError(err).Warn("vector backend unavailable, using heuristic similarity")
		d.scorer = overlapScorer{}
		return d
	}

	log.Info("vector backend initialized")
	d.scorer = &vectorScorer{vec: vec}
	d.vector = true
	return d
}

// IsFake scores one submission against the recent report window. Signals
// whose inputs are missing contribute no weight; the final score is the
// weighted average of the signals that ran.
func (d *Detector) IsFake(text, imageRef, latitude, longitude string, recent []models.Report) (bool, float64) {
	totalScore := 0.0
	weightSum := 0.0

	contentValid, contentScore := d.validateContent(text, imageRef)
	if !contentValid {
		log.Warn("content validation failed")
	}
	totalScore += contentScore * d.cfg.ContentWeight
	weightSum += d.cfg.ContentWeight

	if text != "" && len(recent) > 0 {
		corpus := make([]string, 0, len(recent))
		for i := range recent {
			if ct := recent[i].CorpusText(); ct != "" {
				corpus = append(corpus, ct)
			}
		}
		if len(corpus) > 0 {
			similarity := d.scorer.Score(text, corpus)
			totalScore += similarity * d.cfg.SimilarityWeight
			weightSum += d.cfg.SimilarityWeight

			if similarity > 0.8 {
				log.Warnf("high text similarity detected: %.3f", similarity)
			}
		}
	}

	if latitude != "" && longitude != "" && len(recent) > 0 {
		proximityScore := 0.0
		if d.isNear(latitude, longitude, recent) {
			proximityScore = d.cfg.NearScore
			log.Warn("report location is very close to recent reports")
		}
		totalScore += proximityScore * d.cfg.ProximityWeight
		weightSum += d.cfg.ProximityWeight
	}

	temporalScore := d.burstScore(recent)
	totalScore += temporalScore * d.cfg.TemporalWeight
	weightSum += d.cfg.TemporalWeight

	finalScore := 0.0
	if weightSum > 0 {
		finalScore = totalScore / weightSum
	}

	isFake := finalScore >= d.cfg.Threshold

	verdict := "GENUINE"
	if isFake {
		verdict = "FAKE"
	}
	log.Infof("fake detection result: %s (score: %.3f)", verdict, finalScore)

	return isFake, finalScore
}

// Info describes the active detection parameters.
type Info struct {
	VectorizerAvailable   bool    `json:"vectorizer_available"`
	ProximityThresholdM   float64 `json:"proximity_threshold_m"`
	SimilarityThreshold   float64 `json:"similarity_threshold"`
	TemporalWindowMinutes float64 `json:"temporal_window_minutes"`
	MinTextLength         int     `json:"min_text_length"`
}

// Info returns the detector's runtime parameters for the admin surface.
func (d *Detector) Info() Info {
	return Info{
		VectorizerAvailable:   d.vector,
		ProximityThresholdM:   d.cfg.ProximityKm * 1000,
		SimilarityThreshold:   d.cfg.Threshold,
		TemporalWindowMinutes: d.cfg.TemporalWindow.Minutes(),
		MinTextLength:         d.cfg.MinTextLength,
	}
}
