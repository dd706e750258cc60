// internal/webhook/server.go
package webhook

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/user/certassist/internal/gateway"
	"github.com/user/certassist/internal/types"
)

// replyTimeout bounds how long a synchronous chat request waits for the
// conversation engine.
const replyTimeout = 120 * time.Second

// maxUploadBytes caps a multipart evidence upload.
const maxUploadBytes = 25 << 20

// Server exposes the conversation engine over HTTP for browser clients.
type Server struct {
	gateway     *gateway.Gateway
	sessions    types.SessionStore
	transcripts types.TranscriptStore
	evidence    types.EvidenceStore
	mux         *http.ServeMux
}

// NewServer creates the HTTP front for the gateway and stores.
func NewServer(gw *gateway.Gateway, sessions types.SessionStore, transcripts types.TranscriptStore, evidence types.EvidenceStore) *Server {
	s := &Server{
		gateway:     gw,
		sessions:    sessions,
		transcripts: transcripts,
		evidence:    evidence,
		mux:         http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /chat", s.handleChat)
	s.mux.HandleFunc("POST /chat/action", s.handleAction)
	s.mux.HandleFunc("POST /chat/files", s.handleFiles)
	s.mux.HandleFunc("GET /api/sessions", s.handleAPISessions)
	s.mux.HandleFunc("GET /api/sessions/", s.handleAPISessionMessages)
	s.mux.HandleFunc("GET /api/evidence/", s.handleAPIEvidence)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// chatRequest is the JSON body for POST /chat and POST /chat/action.
type chatRequest struct {
	SessionKey string `json:"session_key"`
	Message    string `json:"message"`
	Action     string `json:"action"`
}

// chatResponse carries the assistant messages produced by one turn, in
// order.
type chatResponse struct {
	Replies []string `json:"replies"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Message == "" || req.SessionKey == "" {
		http.Error(w, `{"error":"message and session_key are required"}`, http.StatusBadRequest)
		return
	}

	event := &types.InboundEvent{
		Source:     "webhook",
		SessionKey: types.SessionKey(req.SessionKey),
		Text:       req.Message,
	}
	s.runTurn(w, r, event)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Action == "" || req.SessionKey == "" {
		http.Error(w, `{"error":"action and session_key are required"}`, http.StatusBadRequest)
		return
	}

	event := &types.InboundEvent{
		Source:     "webhook",
		SessionKey: types.SessionKey(req.SessionKey),
		Action:     req.Action,
	}
	s.runTurn(w, r, event)
}

// handleFiles accepts multipart evidence uploads. Form fields:
// session_key plus one or more "file" parts.
func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, `{"error":"invalid multipart body"}`, http.StatusBadRequest)
		return
	}
	sessionKey := r.FormValue("session_key")
	if sessionKey == "" {
		http.Error(w, `{"error":"session_key is required"}`, http.StatusBadRequest)
		return
	}
	if r.MultipartForm == nil || len(r.MultipartForm.File["file"]) == 0 {
		http.Error(w, `{"error":"at least one file is required"}`, http.StatusBadRequest)
		return
	}

	var uploads []types.Upload
	for _, header := range r.MultipartForm.File["file"] {
		f, err := header.Open()
		if err != nil {
			http.Error(w, `{"error":"unreadable file part"}`, http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
		f.Close()
		if err != nil {
			http.Error(w, `{"error":"unreadable file part"}`, http.StatusBadRequest)
			return
		}
		mime := header.Header.Get("Content-Type")
		if mime == "" {
			mime = "application/octet-stream"
		}
		uploads = append(uploads, types.Upload{Name: header.Filename, MimeType: mime, Data: data})
	}

	event := &types.InboundEvent{
		Source:     "webhook",
		SessionKey: types.SessionKey(sessionKey),
		Files:      uploads,
	}
	s.runTurn(w, r, event)
}

// runTurn enqueues the event and blocks until the engine finishes the
// turn, then returns every reply it produced.
func (s *Server) runTurn(w http.ResponseWriter, r *http.Request, event *types.InboundEvent) {
	var (
		mu      sync.Mutex
		replies []string
	)
	done := make(chan struct{})

	err := s.gateway.HandleInbound(r.Context(), event,
		gateway.WithOnReply(func(text string) {
			mu.Lock()
			replies = append(replies, text)
			mu.Unlock()
		}),
		gateway.WithOnDone(func() {
			close(done)
		}),
	)
	if err != nil {
		slog.Error("webhook inbound failed", "session_key", event.SessionKey, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	select {
	case <-done:
	case <-time.After(replyTimeout):
		http.Error(w, `{"error":"timed out waiting for reply"}`, http.StatusGatewayTimeout)
		return
	case <-r.Context().Done():
		return
	}

	mu.Lock()
	resp := chatResponse{Replies: append([]string(nil), replies...)}
	mu.Unlock()
	if resp.Replies == nil {
		resp.Replies = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

type sessionResponse struct {
	SessionID    string `json:"session_id"`
	SessionKey   string `json:"session_key"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
	MessageCount int64  `json:"message_count"`
}

func (s *Server) handleAPISessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessions, err := s.sessions.List(ctx)
	if err != nil {
		slog.Error("list sessions failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	result := make([]sessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		count, err := s.transcripts.Count(ctx, sess.SessionID)
		if err != nil {
			slog.Warn("count messages failed", "session_id", sess.SessionID, "error", err)
		}
		result = append(result, sessionResponse{
			SessionID:    string(sess.SessionID),
			SessionKey:   string(sess.SessionKey),
			Status:       sess.Status,
			CreatedAt:    sess.CreatedAt.Format(time.RFC3339),
			UpdatedAt:    sess.UpdatedAt.Format(time.RFC3339),
			MessageCount: count,
		})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt > result[j].UpdatedAt
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (s *Server) handleAPISessionMessages(w http.ResponseWriter, r *http.Request) {
	// Path: /api/sessions/{id}/messages
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) < 2 || parts[1] != "messages" {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}
	sessionID := types.SessionID(parts[0])

	limit := 200
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}

	messages, err := s.transcripts.Tail(r.Context(), sessionID, limit)
	if err != nil {
		slog.Error("tail messages failed", "session_id", sessionID, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []*types.Message{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(messages)
}

// handleAPIEvidence streams stored evidence bytes back out, e.g. for the
// browser to preview an uploaded screenshot.
func (s *Server) handleAPIEvidence(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/evidence/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	rc, ref, err := s.evidence.Open(r.Context(), types.AttachmentID(id))
	if err != nil {
		http.Error(w, `{"error":"evidence not found"}`, http.StatusNotFound)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", ref.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", ref.Name))
	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("stream evidence failed", "attachment_id", id, "error", err)
	}
}
