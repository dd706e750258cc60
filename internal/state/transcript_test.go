// internal/state/transcript_test.go
package state

import (
	"context"
	"testing"
	"time"

	"github.com/user/certassist/internal/types"
)

func TestTranscriptStore(t *testing.T) {
	dir := t.TempDir()
	store := NewTranscriptStore(dir)
	ctx := context.Background()

	sessionID := types.NewSessionID()

	msg := &types.Message{
		ID:        types.NewMessageID(),
		SessionID: sessionID,
		Sender:    types.SenderUser,
		Text:      "hello",
		At:        time.Now(),
	}
	if err := store.Append(ctx, msg); err != nil {
		t.Fatal(err)
	}

	msgs, err := store.Tail(ctx, sessionID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Seq != 1 {
		t.Errorf("expected seq 1, got %d", msgs[0].Seq)
	}
	if msgs[0].Sender != types.SenderUser {
		t.Errorf("expected user sender, got %s", msgs[0].Sender)
	}

	count, err := store.Count(ctx, sessionID)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}
}

func TestTranscriptTailWindow(t *testing.T) {
	dir := t.TempDir()
	store := NewTranscriptStore(dir)
	ctx := context.Background()

	sessionID := types.NewSessionID()

	for i := 0; i < 12; i++ {
		sender := types.SenderUser
		if i%2 == 1 {
			sender = types.SenderAssistant
		}
		msg := &types.Message{
			ID:        types.NewMessageID(),
			SessionID: sessionID,
			Sender:    sender,
			Text:      "turn",
			At:        time.Now(),
		}
		if err := store.Append(ctx, msg); err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := store.Tail(ctx, sessionID, 8)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 8 {
		t.Fatalf("expected 8 messages, got %d", len(msgs))
	}
	if msgs[0].Seq != 5 || msgs[7].Seq != 12 {
		t.Errorf("expected seqs 5..12, got %d..%d", msgs[0].Seq, msgs[7].Seq)
	}
}

func TestTranscriptAttachmentsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewTranscriptStore(dir)
	ctx := context.Background()

	sessionID := types.NewSessionID()
	msg := &types.Message{
		ID:        types.NewMessageID(),
		SessionID: sessionID,
		Sender:    types.SenderUser,
		Text:      "Evidence: screenshot.png",
		At:        time.Now(),
		Attachments: []types.AttachmentRef{
			{ID: "att-1", Kind: types.AttachmentImage, Name: "screenshot.png", ByteSize: 100, MimeType: "image/png"},
		},
	}
	if err := store.Append(ctx, msg); err != nil {
		t.Fatal(err)
	}

	msgs, err := store.Tail(ctx, sessionID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || len(msgs[0].Attachments) != 1 {
		t.Fatalf("expected 1 message with 1 attachment, got %+v", msgs)
	}
	att := msgs[0].Attachments[0]
	if att.Name != "screenshot.png" || att.ByteSize != 100 || att.MimeType != "image/png" {
		t.Errorf("attachment metadata mangled: %+v", att)
	}
}
