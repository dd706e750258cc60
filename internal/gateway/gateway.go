// Package gateway turns inbound transport events into queued runs against
// the conversation processor.
package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/user/certassist/internal/types"
)

// Gateway orchestrates inbound events into runs. It resolves (or creates)
// sessions, wraps each event in a Run, and enqueues the run for processing.
// Because runs within a session are strictly serialized by the queue, a
// user can never have two model calls outstanding for the same session.
type Gateway struct {
	sessions types.SessionStore
	Queue    *Queue

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Gateway wired to the session store with the given
// concurrency limit for simultaneous run processing.
func New(sessions types.SessionStore, maxConcurrent ...int64) *Gateway {
	var concurrency int64 = 2
	if len(maxConcurrent) > 0 && maxConcurrent[0] > 0 {
		concurrency = maxConcurrent[0]
	}
	return &Gateway{
		sessions: sessions,
		Queue:    NewQueue(concurrency),
	}
}

// Start initialises the gateway's context and starts the internal queue.
func (g *Gateway) Start(ctx context.Context) {
	g.ctx, g.cancel = context.WithCancel(ctx)
	g.Queue.Start(g.ctx)
}

// Stop cancels the gateway context, stops the queue, and waits for any
// outstanding work to finish.
func (g *Gateway) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.Queue.Stop()
	g.wg.Wait()
}

// RunOption configures optional behavior on a Run.
type RunOption func(*Run)

// WithOnReply sets a callback invoked for each assistant message the run
// produces.
func WithOnReply(fn func(string)) RunOption {
	return func(r *Run) { r.OnReply = fn }
}

// WithOnDone sets a callback invoked once the run has finished processing,
// after its final reply. Synchronous transports use it to know when to
// respond.
func WithOnDone(fn func()) RunOption {
	return func(r *Run) { r.OnDone = fn }
}

// HandleInbound resolves or creates a session for the event, wraps it in a
// Run, and enqueues it for processing.
func (g *Gateway) HandleInbound(ctx context.Context, event *types.InboundEvent, opts ...RunOption) error {
	sessionID, err := g.sessions.ResolveOrCreate(ctx, event.SessionKey)
	if err != nil {
		return fmt.Errorf("resolve session: %w", err)
	}
	run := NewRun(sessionID, event)
	for _, opt := range opts {
		opt(run)
	}
	return g.Queue.Enqueue(run)
}
