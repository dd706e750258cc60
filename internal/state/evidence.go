// internal/state/evidence.go
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/user/certassist/internal/types"
)

// EvidenceStore writes uploaded evidence bytes to disk and hands back
// attachment references. Bytes live at
// sessions/<sessionID>/evidence/<attachmentID> with a sibling .json
// metadata file. The stored path is the attachment's only materialization
// handle; nothing else in the system keeps raw bytes.
type EvidenceStore struct {
	root string
}

// NewEvidenceStore creates a new file-backed EvidenceStore rooted at the given directory.
func NewEvidenceStore(root string) *EvidenceStore {
	return &EvidenceStore{root: root}
}

func (e *EvidenceStore) evidenceDir(sessionID types.SessionID) string {
	return filepath.Join(e.root, "sessions", string(sessionID), "evidence")
}

func (e *EvidenceStore) dataPath(sessionID types.SessionID, id types.AttachmentID) string {
	return filepath.Join(e.evidenceDir(sessionID), string(id))
}

func (e *EvidenceStore) metaPath(sessionID types.SessionID, id types.AttachmentID) string {
	return filepath.Join(e.evidenceDir(sessionID), string(id)+".json")
}

// classify maps a MIME type onto an attachment kind by prefix.
func classify(mimeType string) types.AttachmentKind {
	if strings.HasPrefix(mimeType, "image/") {
		return types.AttachmentImage
	}
	return types.AttachmentFile
}

// Put stores one upload and returns its attachment reference.
func (e *EvidenceStore) Put(_ context.Context, sessionID types.SessionID, upload types.Upload) (types.AttachmentRef, error) {
	id := types.NewAttachmentID()

	if err := os.MkdirAll(e.evidenceDir(sessionID), 0o755); err != nil {
		return types.AttachmentRef{}, fmt.Errorf("create evidence dir: %w", err)
	}

	target := e.dataPath(sessionID, id)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, upload.Data, 0o644); err != nil {
		return types.AttachmentRef{}, fmt.Errorf("write temp evidence: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return types.AttachmentRef{}, fmt.Errorf("rename temp evidence: %w", err)
	}

	ref := types.AttachmentRef{
		ID:        id,
		Kind:      classify(upload.MimeType),
		Name:      upload.Name,
		ByteSize:  int64(len(upload.Data)),
		MimeType:  upload.MimeType,
		LocalPath: target,
	}

	meta, err := json.MarshalIndent(ref, "", "  ")
	if err != nil {
		return types.AttachmentRef{}, fmt.Errorf("marshal evidence meta: %w", err)
	}
	if err := os.WriteFile(e.metaPath(sessionID, id), meta, 0o644); err != nil {
		return types.AttachmentRef{}, fmt.Errorf("write evidence meta: %w", err)
	}

	return ref, nil
}

// findMeta locates an attachment's metadata file by ID across all sessions.
func (e *EvidenceStore) findMeta(id types.AttachmentID) (string, error) {
	pattern := filepath.Join(e.root, "sessions", "*", "evidence", string(id)+".json")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("glob evidence: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("attachment not found: %s", id)
	}
	return matches[0], nil
}

// Open returns a reader over the stored bytes plus the attachment reference.
func (e *EvidenceStore) Open(_ context.Context, id types.AttachmentID) (io.ReadCloser, *types.AttachmentRef, error) {
	metaPath, err := e.findMeta(id)
	if err != nil {
		return nil, nil, err
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read evidence meta: %w", err)
	}
	var ref types.AttachmentRef
	if err := json.Unmarshal(data, &ref); err != nil {
		return nil, nil, fmt.Errorf("unmarshal evidence meta: %w", err)
	}

	f, err := os.Open(ref.LocalPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open evidence bytes: %w", err)
	}
	return f, &ref, nil
}
