// Package flow is the conversation engine: it owns per-session mode
// state and turns inbound events into assistant replies.
package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/user/certassist/internal/attach"
	"github.com/user/certassist/internal/complaint"
	llmcontext "github.com/user/certassist/internal/context"
	"github.com/user/certassist/internal/fetch"
	"github.com/user/certassist/internal/gateway"
	"github.com/user/certassist/internal/llmx"
	"github.com/user/certassist/internal/report"
	"github.com/user/certassist/internal/state"
	"github.com/user/certassist/internal/types"
	"github.com/user/certassist/pkg/llm"
)

// historyWindow is how many recent transcript messages free chat sends
// to the model.
const historyWindow = 8

// ComplaintService submits finalized reports and looks up their status.
// *complaint.Client implements it.
type ComplaintService interface {
	Submit(ctx context.Context, payload report.Payload) (*complaint.Ack, error)
	Status(ctx context.Context, trackingID string) (*complaint.StatusResult, error)
}

// Tracker records submitted complaints for background status polling.
// *state.TrackingStore implements it.
type Tracker interface {
	Add(sub *state.Submission) error
}

// PageCapturer snapshots a URL given as evidence. *fetch.Capturer
// implements it.
type PageCapturer interface {
	Capture(ctx context.Context, pageURL string) (types.Upload, error)
}

// conversation is the per-session mutable state. It is ephemeral on
// purpose: the transcript persists, the half-filled draft does not.
type conversation struct {
	mode       Mode
	draft      *report.Draft
	sessionKey types.SessionKey
}

// Deps wires the engine's collaborators. Provider, Transcripts and
// Evidence are required; the rest degrade gracefully when nil.
type Deps struct {
	Provider    llm.Provider
	Budget      *llmcontext.Engine
	Transcripts types.TranscriptStore
	Evidence    types.EvidenceStore
	Complaints  ComplaintService
	Tracker     Tracker
	Capturer    PageCapturer
	Logger      *slog.Logger
}

// Engine routes each inbound event through the active conversation mode.
type Engine struct {
	provider    llm.Provider
	budget      *llmcontext.Engine
	transcripts types.TranscriptStore
	evidence    types.EvidenceStore
	complaints  ComplaintService
	tracker     Tracker
	capturer    PageCapturer
	logger      *slog.Logger

	mu    sync.Mutex
	convs map[types.SessionID]*conversation
}

// NewEngine creates a conversation engine from its dependencies.
func NewEngine(d Deps) *Engine {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		provider:    d.Provider,
		budget:      d.Budget,
		transcripts: d.Transcripts,
		evidence:    d.Evidence,
		complaints:  d.Complaints,
		tracker:     d.Tracker,
		capturer:    d.Capturer,
		logger:      logger,
		convs:       make(map[types.SessionID]*conversation),
	}
}

// ProcessRun adapts the engine to the gateway queue's processor signature.
func (e *Engine) ProcessRun(run *gateway.Run) error {
	return e.Handle(run.Ctx, run.SessionID, run.Event, run.Reply)
}

// conv returns the conversation state for a session, creating it in the
// idle mode on first contact.
func (e *Engine) conv(sessionID types.SessionID, key types.SessionKey) *conversation {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.convs[sessionID]
	if !ok {
		c = &conversation{
			mode:       Mode{Kind: ModeIdle},
			draft:      report.NewDraft(),
			sessionKey: key,
		}
		e.convs[sessionID] = c
	}
	return c
}

// Handle processes one inbound event for a session. Assistant replies go
// through emit; every reply is also appended to the transcript. The
// gateway queue serializes calls per session, so conversation state needs
// no further locking inside the handlers.
func (e *Engine) Handle(ctx context.Context, sessionID types.SessionID, event *types.InboundEvent, emit func(string)) error {
	c := e.conv(sessionID, event.SessionKey)
	say := e.sayFn(ctx, sessionID, emit)

	if event.Action != "" {
		return e.handleAction(c, event.Action, say)
	}
	if len(event.Files) > 0 {
		return e.handleFiles(ctx, c, sessionID, event, say)
	}

	text := strings.TrimSpace(event.Text)
	if text == "" {
		return nil
	}
	if err := e.recordUser(ctx, sessionID, text, nil); err != nil {
		return err
	}

	switch c.mode.Kind {
	case ModeGuidedReport:
		return e.handleFieldAnswer(c, text, say)
	case ModeEvidence:
		return e.handleEvidence(ctx, c, sessionID, text, say)
	case ModeRiskAnalysis:
		return e.handleRiskAnalysis(ctx, text, say)
	case ModePlaybook:
		return e.handlePlaybook(ctx, text, say)
	case ModeStatusLookup:
		return e.handleStatusLookup(ctx, c, text, say)
	default:
		return e.handleChat(ctx, sessionID, say)
	}
}

// sayFn wraps emit so every assistant reply also lands in the transcript.
func (e *Engine) sayFn(ctx context.Context, sessionID types.SessionID, emit func(string)) func(string) {
	return func(text string) {
		msg := &types.Message{
			ID:        types.NewMessageID(),
			SessionID: sessionID,
			Sender:    types.SenderAssistant,
			Text:      text,
			At:        time.Now(),
		}
		if err := e.transcripts.Append(ctx, msg); err != nil {
			e.logger.Error("append assistant message", "session_id", sessionID, "error", err)
		}
		if emit != nil {
			emit(text)
		}
	}
}

func (e *Engine) recordUser(ctx context.Context, sessionID types.SessionID, text string, attachments []types.AttachmentRef) error {
	msg := &types.Message{
		ID:          types.NewMessageID(),
		SessionID:   sessionID,
		Sender:      types.SenderUser,
		Text:        text,
		At:          time.Now(),
		Attachments: attachments,
	}
	if err := e.transcripts.Append(ctx, msg); err != nil {
		return fmt.Errorf("append user message: %w", err)
	}
	return nil
}

// handleAction switches the conversation into the requested mode.
// Entering the guided report always starts from a clean draft.
func (e *Engine) handleAction(c *conversation, action string, say func(string)) error {
	switch action {
	case ActionFileReport:
		c.draft.Reset()
		c.mode = Mode{Kind: ModeGuidedReport, Step: 0}
		say("Let's file your cyber incident complaint. " + report.Fields[0].Prompt)
	case ActionRiskAnalysis:
		c.mode = Mode{Kind: ModeRiskAnalysis}
		say("Paste the scanner report JSON you want analyzed.")
	case ActionPlaybook:
		c.mode = Mode{Kind: ModePlaybook}
		say("Paste the risk analysis JSON to generate an incident response playbook.")
	case ActionCheckStatus:
		c.mode = Mode{Kind: ModeStatusLookup}
		say("Enter your complaint tracking ID (e.g. COM-1234).")
	case ActionNewChat:
		c.draft.Reset()
		c.mode = Mode{Kind: ModeIdle}
		say("Started a fresh conversation. " + WelcomeMessage)
	default:
		say("I don't recognize that action.")
	}
	return nil
}

// handleFieldAnswer advances the guided interview by one field. A
// rejected answer keeps the step, an accepted one earns a short
// acknowledgement before the next question.
func (e *Engine) handleFieldAnswer(c *conversation, text string, say func(string)) error {
	f := report.Fields[c.mode.Step]
	ok, reason := report.Validate(f, text)
	if !ok {
		say(reason)
		return nil
	}

	c.draft.Set(f.Key, text)
	if f.Key == "name" {
		say("Nice to meet you, " + text + ".")
	} else {
		say(praiseMessages[rand.IntN(len(praiseMessages))])
	}

	if c.mode.Step+1 < len(report.Fields) {
		c.mode.Step++
		say(report.Fields[c.mode.Step].Prompt)
		return nil
	}

	c.mode = Mode{Kind: ModeEvidence}
	say(evidencePrompt)
	return nil
}

// handleEvidence reacts to text during evidence collection: "done"
// finalizes the report, a bare URL is captured as a page snapshot, and
// anything else gets a reminder.
func (e *Engine) handleEvidence(ctx context.Context, c *conversation, sessionID types.SessionID, text string, say func(string)) error {
	if strings.EqualFold(text, "done") {
		return e.finalize(ctx, c, say)
	}

	if e.capturer != nil && fetch.IsCaptureURL(text) {
		upload, err := e.capturer.Capture(ctx, text)
		if err != nil {
			e.logger.Warn("page capture failed", "url", text, "error", err)
			say("Couldn't capture that page. You can upload a screenshot instead.")
			return nil
		}
		ref, err := e.evidence.Put(ctx, sessionID, upload)
		if err != nil {
			return fmt.Errorf("store page snapshot: %w", err)
		}
		c.draft.AddEvidence(ref)
		say("Page snapshot saved as evidence: " + ref.Name)
		return nil
	}

	say(evidenceReminder)
	return nil
}

// finalize renders the draft, submits it to the complaint backend when
// one is configured, registers the tracking ID for polling, and returns
// the conversation to the idle mode.
func (e *Engine) finalize(ctx context.Context, c *conversation, say func(string)) error {
	say("Your complaint has been recorded:\n\n" + c.draft.Render())

	if e.complaints != nil {
		ack, err := e.complaints.Submit(ctx, c.draft.Payload())
		if err != nil {
			e.logger.Error("complaint submission failed", "session_key", c.sessionKey, "error", err)
			say("Submission to the complaint service failed. Your report is saved; please try 'done' again later.")
			return nil
		}
		say(ack.Message + " Tracking ID: " + ack.TrackingID)
		if e.tracker != nil {
			sub := &state.Submission{
				TrackingID:  ack.TrackingID,
				SessionKey:  c.sessionKey,
				LastStatus:  ack.Status,
				SubmittedAt: time.Now(),
			}
			if err := e.tracker.Add(sub); err != nil {
				e.logger.Warn("track submission", "tracking_id", ack.TrackingID, "error", err)
			}
		}
	} else {
		say("Thank you. Our CERT team will review your complaint.")
	}

	c.draft.Reset()
	c.mode = Mode{Kind: ModeIdle}
	return nil
}

// handleFiles stores uploads and, during report building, attaches them
// to the draft.
func (e *Engine) handleFiles(ctx context.Context, c *conversation, sessionID types.SessionID, event *types.InboundEvent, say func(string)) error {
	refs, err := attach.ToAttachments(ctx, e.evidence, sessionID, event.Files)
	if err != nil {
		return err
	}
	if err := e.recordUser(ctx, sessionID, attach.Caption(refs), refs); err != nil {
		return err
	}

	switch c.mode.Kind {
	case ModeGuidedReport, ModeEvidence:
		for _, ref := range refs {
			c.draft.AddEvidence(ref)
		}
	}

	if c.mode.Kind == ModeEvidence {
		say(evidenceReceived)
	} else {
		say(attach.Caption(refs) + " received.")
	}
	return nil
}

// handleRiskAnalysis relays a scanner report to the model as a one-shot
// exchange with no conversation history. The mode is sticky: the user can
// paste another report right after, and a bad answer never ejects them.
func (e *Engine) handleRiskAnalysis(ctx context.Context, text string, say func(string)) error {
	payload, ok := prepareRelayPayload(text)
	if !ok {
		say("Please paste a valid JSON scanner report to analyze.")
		return nil
	}

	resp, err := e.provider.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: riskAnalysisSystemPrompt},
		{Role: llm.RoleUser, Content: riskRelayPrefix + payload},
	})
	if err != nil {
		e.logger.Error("risk analysis call failed", "error", err)
		say("Risk analysis failed. Please try again.")
		return nil
	}

	objText, found := llmx.ExtractObject(resp.Content)
	if !found {
		say("The analysis engine returned an unreadable answer. Please try again.")
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(objText), &obj); err != nil {
		say("The analysis engine returned an unreadable answer. Please try again.")
		return nil
	}
	if missing := missingFields(obj, riskRequiredFields); len(missing) > 0 {
		say("Analysis incomplete, missing: " + strings.Join(missing, ", ") + ". Please try again.")
		return nil
	}

	say(formatRiskResult(obj))
	return nil
}

// handlePlaybook checks that the pasted risk analysis carries the fields
// the playbook prompt interpolates, then relays it and returns the
// model's prose verbatim.
func (e *Engine) handlePlaybook(ctx context.Context, text string, say func(string)) error {
	raw, found := llmx.ExtractObject(text)
	if !found {
		say("Please paste the risk analysis JSON to build a playbook from.")
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		say("Please paste the risk analysis JSON to build a playbook from.")
		return nil
	}
	if missing := missingFields(obj, playbookRequiredFields); len(missing) > 0 {
		say("The risk analysis JSON is missing: " + strings.Join(missing, ", ") + ".")
		return nil
	}

	resp, err := e.provider.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: playbookSystemPrompt},
		{Role: llm.RoleUser, Content: llmx.Truncate(raw, maxRelayPayload, truncationMarker)},
	})
	if err != nil {
		e.logger.Error("playbook call failed", "error", err)
		say("Playbook generation failed. Please try again.")
		return nil
	}

	playbook := strings.TrimSpace(resp.Content)
	if playbook == "" {
		say("Playbook generation failed. Please try again.")
		return nil
	}
	say(playbook)
	return nil
}

// handleStatusLookup resolves a tracking ID against the complaint
// backend. A successful answer ends the lookup; a failed one keeps the
// mode so the user can correct the ID.
func (e *Engine) handleStatusLookup(ctx context.Context, c *conversation, text string, say func(string)) error {
	if e.complaints == nil {
		c.mode = Mode{Kind: ModeIdle}
		say("Status lookup is not configured on this deployment.")
		return nil
	}

	res, err := e.complaints.Status(ctx, text)
	if err != nil {
		e.logger.Warn("status lookup failed", "tracking_id", text, "error", err)
		say("Couldn't fetch status for " + text + ". Check the tracking ID and try again.")
		return nil
	}

	say("Complaint " + res.TrackingID + ": " + res.Status)
	c.mode = Mode{Kind: ModeIdle}
	return nil
}

// handleChat answers an idle-mode message with the model, using the most
// recent transcript messages as context. The user's message is already in
// the transcript, so the tail includes it.
func (e *Engine) handleChat(ctx context.Context, sessionID types.SessionID, say func(string)) error {
	history, err := e.transcripts.Tail(ctx, sessionID, historyWindow)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	msgs := make([]llm.Message, 0, len(history))
	for _, m := range history {
		role := llm.RoleUser
		if m.Sender == types.SenderAssistant {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: m.Text})
	}
	if e.budget != nil {
		msgs = e.budget.Fit(msgs)
	}
	msgs = append([]llm.Message{{Role: llm.RoleSystem, Content: chatSystemPrompt}}, msgs...)

	resp, err := e.provider.Complete(ctx, msgs)
	if err != nil {
		e.logger.Error("chat call failed", "session_id", sessionID, "error", err)
		say("Sorry, I couldn't generate a response.")
		return nil
	}
	content := strings.TrimSpace(resp.Content)
	if content == "" {
		content = "Sorry, I couldn't generate a response."
	}
	say(content)
	return nil
}
