// Package attach converts raw uploads into attachment references.
package attach

import (
	"context"
	"fmt"

	"github.com/user/certassist/internal/types"
)

// ToAttachments materializes each upload through the evidence store and
// returns the references in upload order. No hashing, no remote transfer:
// reference creation stays cheap so transports never stall on it.
func ToAttachments(ctx context.Context, store types.EvidenceStore, sessionID types.SessionID, uploads []types.Upload) ([]types.AttachmentRef, error) {
	refs := make([]types.AttachmentRef, 0, len(uploads))
	for _, up := range uploads {
		ref, err := store.Put(ctx, sessionID, up)
		if err != nil {
			return nil, fmt.Errorf("store upload %q: %w", up.Name, err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// Caption builds the transcript text for an attachment-bearing message.
func Caption(refs []types.AttachmentRef) string {
	if len(refs) == 1 {
		return "Evidence: " + refs[0].Name
	}
	return fmt.Sprintf("%d files uploaded", len(refs))
}
