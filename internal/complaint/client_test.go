package complaint

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/certassist/internal/gateway"
	"github.com/user/certassist/internal/report"
)

func fastRetry() *gateway.RetryPolicy {
	return &gateway.RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		Multiplier:   1.0,
		MaxDelay:     time.Millisecond,
	}
}

func TestSubmit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}

		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatal(err)
		}
		if payload["name"] != "Asha Rao" {
			t.Errorf("payload missing reporter name: %v", payload)
		}
		if _, ok := payload["evidences"]; !ok {
			t.Error("payload missing evidences list")
		}

		json.NewEncoder(w).Encode(map[string]any{
			"complaintId": "COM-7",
			"status":      "received",
			"message":     "Complaint submitted successfully.",
		})
	}))
	defer server.Close()

	client := New(server.URL)

	d := report.NewDraft()
	d.Set("name", "Asha Rao")

	ack, err := client.Submit(context.Background(), d.Payload())
	if err != nil {
		t.Fatal(err)
	}
	if ack.TrackingID != "COM-7" {
		t.Errorf("expected tracking ID COM-7, got %q", ack.TrackingID)
	}
}

func TestSubmitRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "backend down", http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"complaintId": "COM-8", "status": "received"})
	}))
	defer server.Close()

	client := New(server.URL)
	client.retry = fastRetry()

	ack, err := client.Submit(context.Background(), report.NewDraft().Payload())
	if err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
	if ack.TrackingID != "COM-8" {
		t.Errorf("unexpected tracking ID %q", ack.TrackingID)
	}
}

func TestStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/COM-7" {
			t.Errorf("expected path /COM-7, got %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{"status": "under review"})
	}))
	defer server.Close()

	client := New(server.URL)

	result, err := client.Status(context.Background(), "COM-7")
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != "under review" {
		t.Errorf("expected 'under review', got %q", result.Status)
	}
}

func TestStatusRejectsEmptyTrackingID(t *testing.T) {
	client := New("http://127.0.0.1:1")
	if _, err := client.Status(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty tracking ID")
	}
}
