// internal/types/models.go
package types

import (
	"time"
)

// Sender identifies which side of the conversation authored a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// AttachmentKind classifies an upload by its MIME prefix.
type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentFile  AttachmentKind = "file"
)

// AttachmentRef is the lightweight record kept for an uploaded file.
// LocalPath points at the bytes in the evidence store; it is scoped to
// this host and not portable.
type AttachmentRef struct {
	ID        AttachmentID   `json:"id"`
	Kind      AttachmentKind `json:"kind"`
	Name      string         `json:"name"`
	ByteSize  int64          `json:"size"`
	MimeType  string         `json:"mime_type"`
	LocalPath string         `json:"local_path,omitempty"`
}

// Message is one transcript entry. Messages are append-only; Seq is the
// ordering, At is display-only.
type Message struct {
	ID          MessageID       `json:"id"`
	SessionID   SessionID       `json:"session_id"`
	Seq         int64           `json:"seq"`
	Sender      Sender          `json:"sender"`
	Text        string          `json:"text"`
	At          time.Time       `json:"at"`
	Attachments []AttachmentRef `json:"attachments,omitempty"`
}

type SessionIndex struct {
	SessionID  SessionID  `json:"session_id"`
	SessionKey SessionKey `json:"session_key"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	LastSeq    int64      `json:"last_seq"`
}

// Upload carries the raw bytes of a single file handed over by a transport.
type Upload struct {
	Name     string
	MimeType string
	Data     []byte
}

// InboundEvent is what a transport delivers to the gateway: either a text
// turn, an action selection, or a batch of file uploads.
type InboundEvent struct {
	Source     string     `json:"source"`
	SessionKey SessionKey `json:"session_key"`
	UserID     string     `json:"user_id"`
	Text       string     `json:"text"`
	Action     string     `json:"action,omitempty"`
	Files      []Upload   `json:"-"`
}
