package gateway

import (
	"context"
	"time"

	"github.com/user/certassist/internal/types"
)

// RunStatus represents the lifecycle state of a Run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run tracks a single execution of an inbound event against a session.
// OnReply is invoked once per assistant message the turn produces; a
// single turn may emit several (praise plus the next question, say).
type Run struct {
	ID        types.RunID
	SessionID types.SessionID
	Event     *types.InboundEvent
	Status    RunStatus
	CreatedAt time.Time
	StartedAt *time.Time
	EndedAt   *time.Time
	Error     error
	Ctx       context.Context
	OnReply   func(text string)
	OnDone    func()
}

// NewRun creates a Run in the Queued state for the given session and event.
func NewRun(sessionID types.SessionID, event *types.InboundEvent) *Run {
	return &Run{
		ID:        types.NewRunID(),
		SessionID: sessionID,
		Event:     event,
		Status:    RunStatusQueued,
		CreatedAt: time.Now(),
	}
}

// Reply forwards one assistant message to the transport, if it asked for
// replies.
func (r *Run) Reply(text string) {
	if r.OnReply != nil {
		r.OnReply(text)
	}
}

// done signals the transport that no further replies will arrive for this
// run. Synchronous transports block on it.
func (r *Run) done() {
	if r.OnDone != nil {
		r.OnDone()
	}
}
