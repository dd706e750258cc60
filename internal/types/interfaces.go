// internal/types/interfaces.go
package types

import (
	"context"
	"io"
)

type SessionStore interface {
	ResolveOrCreate(ctx context.Context, key SessionKey) (SessionID, error)
	Get(ctx context.Context, id SessionID) (*SessionIndex, error)
	Lookup(ctx context.Context, key SessionKey) (SessionID, bool, error)
	List(ctx context.Context) ([]*SessionIndex, error)
	Update(ctx context.Context, session *SessionIndex) error
}

// TranscriptStore is the append-only message log for a session.
type TranscriptStore interface {
	Append(ctx context.Context, msg *Message) error
	Tail(ctx context.Context, sessionID SessionID, limit int) ([]*Message, error)
	Count(ctx context.Context, sessionID SessionID) (int64, error)
}

// EvidenceStore materializes uploaded bytes and hands back attachment
// references. Open is the only way to get the bytes back.
type EvidenceStore interface {
	Put(ctx context.Context, sessionID SessionID, upload Upload) (AttachmentRef, error)
	Open(ctx context.Context, id AttachmentID) (io.ReadCloser, *AttachmentRef, error)
}
