package rte

import (
	"time"

	"github.com/google/uuid"
)

type State string

const (
	StateNotInitialized State = "NotInitialized"
	StateRunning        State = "Running"
	StateTerminated     State = "Terminated"
)

// Run-time flavours; they pick data-model defaults and vocabularies.
const (
	Version12   = "1.2"
	Version2004 = "2004"
)

const (
	EntryAbInitio = "ab-initio"
	EntryResume   = "resume"
)

// Session is one SCO attempt. Elements is the flat CMI store keyed by
// canonical (SCORM 2004) element names.
type Session struct {
	ID          string    `json:"id"`
	LearnerID   uuid.UUID `json:"learner_id"`
	LearnerName string    `json:"learner_name,omitempty"`
	PackageID   uuid.UUID `json:"package_id"`
	LessonID    uuid.UUID `json:"lesson_id"`
	Version     string    `json:"version"`
	Entry       string    `json:"entry"`

	// InteractionBase offsets this session's interaction indices into the
	// learner's stored interaction log.
	InteractionBase int `json:"interaction_base"`

	State          State             `json:"state"`
	Elements       map[string]string `json:"elements"`
	Dirty          bool              `json:"dirty"`
	LastError      ErrorCode         `json:"last_error"`
	LastDiagnostic string            `json:"last_diagnostic,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	CommittedAt *time.Time `json:"committed_at,omitempty"`
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Clone deep-copies s so stores never share element maps with callers.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Elements = make(map[string]string, len(s.Elements))
	for k, v := range s.Elements {
		cp.Elements[k] = v
	}
	if s.CommittedAt != nil {
		t := *s.CommittedAt
		cp.CommittedAt = &t
	}
	return &cp
}

// Snapshot copies the element map for a flush.
func (s *Session) Snapshot() map[string]string {
	out := make(map[string]string, len(s.Elements))
	for k, v := range s.Elements {
		out[k] = v
	}
	return out
}

func (s *Session) is2004() bool {
	return s.Version == Version2004
}

func (s *Session) fail(code ErrorCode, diag string) {
	s.LastError = code
	s.LastDiagnostic = diag
}

func (s *Session) ok() {
	s.LastError = NoError
	s.LastDiagnostic = ""
}
