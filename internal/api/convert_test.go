package api

import (
	"testing"
	"time"

	"dailybrief/internal/credentials"
	"dailybrief/internal/generation"
	"dailybrief/internal/workflow"
)

func TestFromLog(t *testing.T) {
	started := time.Date(2026, 3, 10, 6, 0, 1, 0, time.UTC)
	log := &generation.Log{
		ID:          "gen-1",
		UserID:      "alice",
		Status:      generation.StatusComplete,
		ScheduledAt: started.Add(-time.Second),
		StartedAt:   &started,
		NotebookID:  "nb-1",
		AudioURL:    "https://audio/1",
		SourcesUsed: &generation.SourcesUsed{Priority: 1, Feeds: 2, Items: 3, FailedSources: []string{"feed:Broken"}},
	}
	dto := FromLog(log)
	if dto.Status != "complete" || dto.NotebookID != "nb-1" || dto.AudioURL != "https://audio/1" {
		t.Fatalf("unexpected dto %#v", dto)
	}
	if dto.StartedAt != "2026-03-10T06:00:01.000Z" {
		t.Fatalf("unexpected started_at %q", dto.StartedAt)
	}
	if dto.CompletedAt != "" {
		t.Fatalf("expected empty completed_at, got %q", dto.CompletedAt)
	}
	if dto.SourcesUsed == nil || dto.SourcesUsed.Items != 3 || dto.SourcesUsed.FailedSources[0] != "feed:Broken" {
		t.Fatalf("unexpected sources %#v", dto.SourcesUsed)
	}
	if got := ParseTime(dto.StartedAt); !got.Equal(started) {
		t.Fatalf("ParseTime round trip: %v", got)
	}
}

func TestFromMetadata(t *testing.T) {
	if status := FromMetadata(nil); status.Authenticated || status.Credentials != nil {
		t.Fatalf("nil metadata should be unauthenticated, got %#v", status)
	}
	status := FromMetadata(&credentials.Metadata{
		UserID:          "alice",
		AuthenticatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		CredentialsPath: "/creds/alice.json",
		Partial:         true,
	})
	if !status.Authenticated || status.Credentials.CredentialsPath != "/creds/alice.json" || !status.Credentials.Partial {
		t.Fatalf("unexpected status %#v", status)
	}
}

func TestFromStatusSummaryFillsEveryStatus(t *testing.T) {
	wf := FromStatusSummary(workflow.StatusSummary{
		Running: true,
		Counts:  map[generation.Status]int{generation.StatusFailed: 2},
	})
	if len(wf.Counts) != len(generation.AllStatuses()) {
		t.Fatalf("expected a count per status, got %#v", wf.Counts)
	}
	if wf.Counts["failed"] != 2 || wf.Counts["complete"] != 0 {
		t.Fatalf("unexpected counts %#v", wf.Counts)
	}
	if wf.ActiveRuns == nil {
		t.Fatal("active runs should encode as an empty list")
	}
}
