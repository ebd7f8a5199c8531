package models

import (
	"time"
)

// Report represents a row of the reports table and the unit of detection.
type Report struct {
	Seq       int       `json:"seq" db:"seq"`
	ReportID  string    `json:"report_id" db:"report_id"`
	IssueType string    `json:"issue_type" db:"issue_type"`
	Text      string    `json:"text,omitempty" db:"text"`
	VoiceText string    `json:"voice_text,omitempty" db:"voice_text"`
	ImagePath string    `json:"image_path,omitempty" db:"image_path"`
	Location  *Location `json:"location,omitempty"`
	Status    string    `json:"status" db:"status"`
	Fake      *bool     `json:"fake,omitempty" db:"fake"`
	FakeScore *float64  `json:"fake_score,omitempty" db:"fake_score"`
	CreatedAt string    `json:"created_at" db:"created_at"`
}

// CorpusText returns the text used when the report participates in a
// similarity corpus: the description, falling back to the voice transcript.
func (r *Report) CorpusText() string {
	if r.Text != "" {
		return r.Text
	}
	return r.VoiceText
}

// Location is a validated WGS84 point.
type Location struct {
	Latitude  float64 `json:"latitude" db:"latitude"`
	Longitude float64 `json:"longitude" db:"longitude"`
}

// SubmitResponse is returned to the client after a submission is scored and stored.
type SubmitResponse struct {
	ReportID  string    `json:"report_id"`
	Status    string    `json:"status"`
	IssueType string    `json:"issue_type"`
	IsFake    bool      `json:"is_fake"`
	FakeScore float64   `json:"fake_score"`
	Location  *Location `json:"location,omitempty"`
	CreatedAt string    `json:"created_at"`
}

// FlaggedEvent is the payload published and broadcast when a report is flagged.
type FlaggedEvent struct {
	Report    Report  `json:"report"`
	FakeScore float64 `json:"fake_score"`
	FlaggedAt string  `json:"flagged_at"`
}

// BroadcastMessage represents a message sent to WebSocket clients.
type BroadcastMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// HealthResponse represents the detailed health check response.
type HealthResponse struct {
	Status           string `json:"status"`
	Service          string `json:"service"`
	Timestamp        string `json:"timestamp"`
	ConnectedClients int    `json:"connected_clients"`
	LastFlaggedID    string `json:"last_flagged_id,omitempty"`
}
