// internal/state/tracking.go
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/user/certassist/internal/types"
)

// Submission records a complaint that was forwarded to the backend, so the
// status poller can watch it and notify the owning session on changes.
type Submission struct {
	TrackingID  string           `json:"tracking_id"`
	SessionKey  types.SessionKey `json:"session_key"`
	LastStatus  string           `json:"last_status"`
	SubmittedAt time.Time        `json:"submitted_at"`
	CheckedAt   time.Time        `json:"checked_at,omitempty"`
	Closed      bool             `json:"closed"`
}

// TrackingStore is a JSON-file-backed registry of submitted complaints.
type TrackingStore struct {
	path string
	mu   sync.RWMutex
}

// NewTrackingStore creates a new file-backed TrackingStore at the given file path.
func NewTrackingStore(path string) *TrackingStore {
	return &TrackingStore{path: path}
}

func (s *TrackingStore) load() ([]*Submission, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read tracking store: %w", err)
	}
	var subs []*Submission
	if err := json.Unmarshal(data, &subs); err != nil {
		return nil, fmt.Errorf("unmarshal tracking store: %w", err)
	}
	return subs, nil
}

func (s *TrackingStore) save(subs []*Submission) error {
	data, err := json.MarshalIndent(subs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tracking store: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create tracking dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp tracking store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp tracking store: %w", err)
	}
	return nil
}

// List returns all open submissions.
func (s *TrackingStore) List() ([]*Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subs, err := s.load()
	if err != nil {
		return nil, err
	}
	open := make([]*Submission, 0, len(subs))
	for _, sub := range subs {
		if !sub.Closed {
			open = append(open, sub)
		}
	}
	return open, nil
}

// Add registers a new submission.
func (s *TrackingStore) Add(sub *Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.load()
	if err != nil {
		return err
	}
	for _, existing := range subs {
		if existing.TrackingID == sub.TrackingID {
			return fmt.Errorf("submission already tracked: %s", sub.TrackingID)
		}
	}
	subs = append(subs, sub)
	return s.save(subs)
}

// SetStatus records the latest observed status for a tracking ID. Closed
// submissions are kept in the file but skipped by List.
func (s *TrackingStore) SetStatus(trackingID, status string, closed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.load()
	if err != nil {
		return err
	}
	for _, sub := range subs {
		if sub.TrackingID == trackingID {
			sub.LastStatus = status
			sub.CheckedAt = time.Now()
			sub.Closed = closed
			return s.save(subs)
		}
	}
	return fmt.Errorf("submission not tracked: %s", trackingID)
}
