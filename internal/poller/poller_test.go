package poller

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/user/certassist/internal/complaint"
	"github.com/user/certassist/internal/state"
	"github.com/user/certassist/internal/types"
)

type scriptedClient struct {
	statuses map[string]string
	errs     map[string]error
}

func (c *scriptedClient) Status(_ context.Context, id string) (*complaint.StatusResult, error) {
	if err, ok := c.errs[id]; ok {
		return nil, err
	}
	return &complaint.StatusResult{TrackingID: id, Status: c.statuses[id]}, nil
}

func setup(t *testing.T) (*Poller, *state.TrackingStore, *state.SessionStore, *state.TranscriptStore, *scriptedClient, *[]string) {
	t.Helper()
	dir := t.TempDir()
	tracker := state.NewTrackingStore(filepath.Join(dir, "tracking.json"))
	sessions := state.NewSessionStore(dir)
	transcripts := state.NewTranscriptStore(dir)
	client := &scriptedClient{statuses: map[string]string{}, errs: map[string]error{}}

	var notified []string
	notify := func(_ types.SessionKey, text string) {
		notified = append(notified, text)
	}
	p := New(tracker, client, sessions, transcripts, notify, nil)
	return p, tracker, sessions, transcripts, client, &notified
}

func TestSweepNotifiesOnChange(t *testing.T) {
	p, tracker, sessions, transcripts, client, notified := setup(t)
	ctx := context.Background()

	key := types.SessionKey("telegram:100")
	sessionID, err := sessions.ResolveOrCreate(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if err := tracker.Add(&state.Submission{
		TrackingID: "COM-1", SessionKey: key, LastStatus: "Submitted", SubmittedAt: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}
	client.statuses["COM-1"] = "In Review"

	if err := p.Sweep(ctx); err != nil {
		t.Fatalf("Sweep() error: %v", err)
	}

	msgs, err := transcripts.Tail(ctx, sessionID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected one transcript update, got %d", len(msgs))
	}
	if msgs[0].Sender != types.SenderAssistant {
		t.Errorf("update sender = %s", msgs[0].Sender)
	}
	if len(*notified) != 1 {
		t.Fatalf("expected one notification, got %d", len(*notified))
	}

	subs, err := tracker.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 1 || subs[0].LastStatus != "In Review" {
		t.Fatalf("tracked status not updated: %+v", subs)
	}
}

func TestSweepUnchangedStatusIsSilent(t *testing.T) {
	p, tracker, sessions, _, client, notified := setup(t)
	ctx := context.Background()

	key := types.SessionKey("telegram:100")
	if _, err := sessions.ResolveOrCreate(ctx, key); err != nil {
		t.Fatal(err)
	}
	if err := tracker.Add(&state.Submission{
		TrackingID: "COM-1", SessionKey: key, LastStatus: "Submitted", SubmittedAt: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}
	client.statuses["COM-1"] = "Submitted"

	if err := p.Sweep(ctx); err != nil {
		t.Fatalf("Sweep() error: %v", err)
	}
	if len(*notified) != 0 {
		t.Fatalf("unchanged status must not notify, got %v", *notified)
	}
}

func TestSweepClosesResolvedSubmissions(t *testing.T) {
	p, tracker, sessions, _, client, _ := setup(t)
	ctx := context.Background()

	key := types.SessionKey("telegram:100")
	if _, err := sessions.ResolveOrCreate(ctx, key); err != nil {
		t.Fatal(err)
	}
	if err := tracker.Add(&state.Submission{
		TrackingID: "COM-1", SessionKey: key, LastStatus: "In Review", SubmittedAt: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}
	client.statuses["COM-1"] = "Resolved"

	if err := p.Sweep(ctx); err != nil {
		t.Fatalf("Sweep() error: %v", err)
	}
	subs, err := tracker.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 0 {
		t.Fatalf("resolved submission still open: %+v", subs)
	}
}

func TestSweepSkipsFailingLookups(t *testing.T) {
	p, tracker, sessions, _, client, notified := setup(t)
	ctx := context.Background()

	key := types.SessionKey("telegram:100")
	if _, err := sessions.ResolveOrCreate(ctx, key); err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"COM-1", "COM-2"} {
		if err := tracker.Add(&state.Submission{
			TrackingID: id, SessionKey: key, LastStatus: "Submitted", SubmittedAt: time.Now(),
		}); err != nil {
			t.Fatal(err)
		}
	}
	client.errs["COM-1"] = fmt.Errorf("backend timeout")
	client.statuses["COM-2"] = "In Review"

	if err := p.Sweep(ctx); err != nil {
		t.Fatalf("Sweep() error: %v", err)
	}
	if len(*notified) != 1 {
		t.Fatalf("healthy lookup must still run, notifications: %v", *notified)
	}
}
