// internal/state/tracking_test.go
package state

import (
	"path/filepath"
	"testing"
	"time"
)

func TestTrackingStore(t *testing.T) {
	store := NewTrackingStore(filepath.Join(t.TempDir(), "submissions.json"))

	sub := &Submission{
		TrackingID:  "COM-123",
		SessionKey:  "telegram:42",
		LastStatus:  "received",
		SubmittedAt: time.Now(),
	}
	if err := store.Add(sub); err != nil {
		t.Fatal(err)
	}
	if err := store.Add(sub); err == nil {
		t.Error("expected duplicate tracking ID to be rejected")
	}

	open, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 1 || open[0].TrackingID != "COM-123" {
		t.Fatalf("expected one open submission, got %+v", open)
	}

	if err := store.SetStatus("COM-123", "resolved", true); err != nil {
		t.Fatal(err)
	}
	open, err = store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 0 {
		t.Errorf("expected closed submission to be excluded, got %+v", open)
	}

	if err := store.SetStatus("COM-999", "x", false); err == nil {
		t.Error("expected error for unknown tracking ID")
	}
}
