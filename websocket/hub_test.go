package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"civiceye/models"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestHubBroadcastFlagged(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := NewClient(hub, nil)
	hub.Register <- client
	waitFor(t, func() bool {
		clients, _ := hub.GetStats()
		return clients == 1
	})

	score := 0.86
	hub.BroadcastFlagged(models.FlaggedEvent{
		Report:    models.Report{ReportID: "ab12cd34", IssueType: "garbage"},
		FakeScore: score,
		FlaggedAt: "2025-08-25T10:00:00Z",
	})

	select {
	case data := <-client.send:
		var message models.BroadcastMessage
		if err := json.Unmarshal(data, &message); err != nil {
			t.Fatalf("unmarshal broadcast: %v", err)
		}
		if message.Type != "flagged_report" {
			t.Errorf("unexpected message type %q", message.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no broadcast received")
	}

	_, lastFlagged := hub.GetStats()
	if lastFlagged != "ab12cd34" {
		t.Errorf("expected last flagged id ab12cd34, got %q", lastFlagged)
	}

	hub.Unregister <- client
	waitFor(t, func() bool {
		clients, _ := hub.GetStats()
		return clients == 0
	})
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	slow := NewClient(hub, nil)
	slow.send = make(chan []byte) // no buffer, never read
	hub.Register <- slow
	waitFor(t, func() bool {
		clients, _ := hub.GetStats()
		return clients == 1
	})

	hub.BroadcastFlagged(models.FlaggedEvent{
		Report: models.Report{ReportID: "ff00aa11"},
	})

	waitFor(t, func() bool {
		clients, _ := hub.GetStats()
		return clients == 0
	})
}
