package entity

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "PENDING"
	SessionStatusProcessing SessionStatus = "PROCESSING"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
	SessionStatusFailed     SessionStatus = "FAILED"
	SessionStatusCancelled  SessionStatus = "CANCELLED"
)

// Session is one analysis run. Its ID namespaces every artifact the run produces.
type Session struct {
	ID             uuid.UUID
	UserID         string
	VideoKey       string
	Status         SessionStatus
	FrameCount     int
	FramesAnalyzed int
	FramesSkipped  int
	Totals         *GameTotals
	ArtifactPrefix string
	FileSize       int64
	Attempt        int
	MaxAttempts    int
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
}

func NewSession(userID, videoKey string, fileSize int64, maxAttempts int) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:          uuid.New(),
		UserID:      userID,
		VideoKey:    videoKey,
		FileSize:    fileSize,
		Status:      SessionStatusPending,
		Attempt:     0,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s *Session) MarkProcessing() {
	s.Status = SessionStatusProcessing
	s.Attempt++
	s.ErrorMessage = ""
	s.UpdatedAt = time.Now().UTC()
}

func (s *Session) MarkCompleted(totals *GameTotals, frameCount, analyzed, skipped int, artifactPrefix string) {
	now := time.Now().UTC()
	s.Status = SessionStatusCompleted
	s.Totals = totals
	s.FrameCount = frameCount
	s.FramesAnalyzed = analyzed
	s.FramesSkipped = skipped
	s.ArtifactPrefix = artifactPrefix
	s.UpdatedAt = now
	s.CompletedAt = &now
}

func (s *Session) MarkFailed(errMsg string) {
	s.Status = SessionStatusFailed
	s.ErrorMessage = errMsg
	s.UpdatedAt = time.Now().UTC()
}

// MarkCancelled drops any totals so a cancelled run is never read as a finished one.
// An interrupted run does not count against the retry budget.
func (s *Session) MarkCancelled(reason string) {
	s.Status = SessionStatusCancelled
	if s.Attempt > 0 {
		s.Attempt--
	}
	s.Totals = nil
	s.ErrorMessage = reason
	s.UpdatedAt = time.Now().UTC()
}

func (s *Session) CanRetry() bool {
	return s.Attempt < s.MaxAttempts
}
