package entity

import "github.com/google/uuid"

// AnalysisRequestMessage is the inbound message from the analysis request queue.
type AnalysisRequestMessage struct {
	SessionID uuid.UUID `json:"session_id"`
	UserID    string    `json:"user_id"`
	VideoKey  string    `json:"video_key"`
	FileSize  int64     `json:"file_size"`
	UserEmail string    `json:"user_email"`
}

// AnalysisStatusMessage is the outbound message published to the analysis status queue.
type AnalysisStatusMessage struct {
	SessionID      uuid.UUID     `json:"session_id"`
	UserID         string        `json:"user_id"`
	Status         SessionStatus `json:"status"`
	VideoKey       string        `json:"video_key"`
	ArtifactPrefix string        `json:"artifact_prefix,omitempty"`
	FrameCount     int           `json:"frame_count,omitempty"`
	FramesAnalyzed int           `json:"frames_analyzed,omitempty"`
	FramesSkipped  int           `json:"frames_skipped,omitempty"`
	Totals         *GameTotals   `json:"totals,omitempty"`
	ErrorMessage   string        `json:"error_message,omitempty"`
	Attempt        int           `json:"attempt"`
	MaxAttempts    int           `json:"max_attempts"`
}
