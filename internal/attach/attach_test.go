package attach

import (
	"context"
	"testing"

	"github.com/user/certassist/internal/state"
	"github.com/user/certassist/internal/types"
)

func TestToAttachmentsPreservesOrderAndKinds(t *testing.T) {
	store := state.NewEvidenceStore(t.TempDir())
	ctx := context.Background()
	sessionID := types.NewSessionID()

	uploads := []types.Upload{
		{Name: "shot.png", MimeType: "image/png", Data: []byte("png")},
		{Name: "log.txt", MimeType: "text/plain", Data: []byte("log line")},
	}

	refs, err := ToAttachments(ctx, store, sessionID, uploads)
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 refs, got %d", len(refs))
	}
	if refs[0].Name != "shot.png" || refs[1].Name != "log.txt" {
		t.Errorf("upload order not preserved: %+v", refs)
	}
	if refs[0].Kind != types.AttachmentImage {
		t.Errorf("expected image kind, got %s", refs[0].Kind)
	}
	if refs[1].Kind != types.AttachmentFile {
		t.Errorf("expected file kind, got %s", refs[1].Kind)
	}
}

func TestCaption(t *testing.T) {
	one := []types.AttachmentRef{{Name: "a.png"}}
	if Caption(one) != "Evidence: a.png" {
		t.Errorf("unexpected caption %q", Caption(one))
	}
	two := []types.AttachmentRef{{Name: "a"}, {Name: "b"}}
	if Caption(two) != "2 files uploaded" {
		t.Errorf("unexpected caption %q", Caption(two))
	}
}
