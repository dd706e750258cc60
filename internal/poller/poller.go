// Package poller periodically checks the complaint backend for status
// changes on tracked submissions and pushes updates into the owning
// session's transcript.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/user/certassist/internal/complaint"
	"github.com/user/certassist/internal/state"
	"github.com/user/certassist/internal/types"
)

// StatusClient is the slice of the complaint client the poller needs.
type StatusClient interface {
	Status(ctx context.Context, trackingID string) (*complaint.StatusResult, error)
}

// Notifier pushes a status-change message to the session's transport, on
// top of the transcript append. Optional.
type Notifier func(sessionKey types.SessionKey, text string)

// closedStatuses end polling for a submission.
var closedStatuses = map[string]bool{
	"resolved": true,
	"closed":   true,
	"rejected": true,
}

// Poller drives the periodic status sweep on a cron schedule.
type Poller struct {
	tracker     *state.TrackingStore
	client      StatusClient
	sessions    types.SessionStore
	transcripts types.TranscriptStore
	notify      Notifier
	logger      *slog.Logger

	cron    *cron.Cron
	entryID cron.EntryID
}

// New creates a Poller. notify may be nil.
func New(tracker *state.TrackingStore, client StatusClient, sessions types.SessionStore, transcripts types.TranscriptStore, notify Notifier, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		tracker:     tracker,
		client:      client,
		sessions:    sessions,
		transcripts: transcripts,
		notify:      notify,
		logger:      logger,
		cron:        cron.New(),
	}
}

// Start schedules the sweep. schedule is a standard cron expression, e.g.
// "*/15 * * * *" for every 15 minutes.
func (p *Poller) Start(ctx context.Context, schedule string) error {
	id, err := p.cron.AddFunc(schedule, func() {
		if err := p.Sweep(ctx); err != nil {
			p.logger.Error("status sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule status poll: %w", err)
	}
	p.entryID = id
	p.cron.Start()
	p.logger.Info("status poller started", "schedule", schedule)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (p *Poller) Stop() {
	stopCtx := p.cron.Stop()
	<-stopCtx.Done()
}

// Sweep checks every open submission once. A changed status is appended
// to the owning session's transcript and forwarded to the notifier.
// Backend errors on individual lookups are logged and skipped so one bad
// tracking ID never stalls the rest.
func (p *Poller) Sweep(ctx context.Context) error {
	subs, err := p.tracker.List()
	if err != nil {
		return fmt.Errorf("list submissions: %w", err)
	}

	for _, sub := range subs {
		res, err := p.client.Status(ctx, sub.TrackingID)
		if err != nil {
			p.logger.Warn("status check failed", "tracking_id", sub.TrackingID, "error", err)
			continue
		}
		if res.Status == sub.LastStatus {
			if err := p.tracker.SetStatus(sub.TrackingID, res.Status, false); err != nil {
				p.logger.Warn("record check time", "tracking_id", sub.TrackingID, "error", err)
			}
			continue
		}

		closed := closedStatuses[strings.ToLower(res.Status)]
		if err := p.tracker.SetStatus(sub.TrackingID, res.Status, closed); err != nil {
			p.logger.Warn("record status", "tracking_id", sub.TrackingID, "error", err)
			continue
		}

		text := fmt.Sprintf("Update on complaint %s: status changed from %q to %q.", sub.TrackingID, sub.LastStatus, res.Status)
		p.deliver(ctx, sub.SessionKey, text)
		p.logger.Info("complaint status changed",
			"tracking_id", sub.TrackingID, "from", sub.LastStatus, "to", res.Status, "closed", closed)
	}
	return nil
}

func (p *Poller) deliver(ctx context.Context, key types.SessionKey, text string) {
	sessionID, found, err := p.sessions.Lookup(ctx, key)
	if err != nil || !found {
		p.logger.Warn("no session for status update", "session_key", key, "error", err)
	} else {
		msg := &types.Message{
			ID:        types.NewMessageID(),
			SessionID: sessionID,
			Sender:    types.SenderAssistant,
			Text:      text,
			At:        time.Now(),
		}
		if err := p.transcripts.Append(ctx, msg); err != nil {
			p.logger.Warn("append status update", "session_id", sessionID, "error", err)
		}
	}
	if p.notify != nil {
		p.notify(key, text)
	}
}
