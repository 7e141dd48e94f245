package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pavithragopisetty/GirlsNav4/internal/domain/entity"
	"github.com/pavithragopisetty/GirlsNav4/internal/domain/port"
	"github.com/pavithragopisetty/GirlsNav4/internal/usecase"
	"go.uber.org/zap"
)

var allowedExtensions = []string{".mp4", ".mov", ".avi"}

// Analyzer runs or queues the analysis of an uploaded game video.
type Analyzer interface {
	AnalyzeUpload(ctx context.Context, req usecase.UploadRequest) (*usecase.AnalysisOutcome, error)
	Submit(ctx context.Context, req usecase.UploadRequest) (*entity.Session, error)
}

// Sessions answers questions about analyses that already ran.
type Sessions interface {
	Get(ctx context.Context, id uuid.UUID) (*entity.Session, error)
	Totals(ctx context.Context, id uuid.UUID) (*entity.GameTotals, string, error)
	Frames(ctx context.Context, id uuid.UUID) ([]entity.FrameEventRecord, error)
	OpenArtifact(ctx context.Context, id uuid.UUID, name string) (io.ReadCloser, *port.ArtifactInfo, error)
	Cleanup(ctx context.Context, id uuid.UUID) error
}

// HealthCheck reports whether a backing service answers.
type HealthCheck func(ctx context.Context) error

type Handler struct {
	analyzer  Analyzer
	sessions  Sessions
	checks    map[string]HealthCheck
	maxUpload int64
	logger    *zap.Logger
}

func NewHandler(analyzer Analyzer, sessions Sessions, checks map[string]HealthCheck, maxUploadBytes int64, logger *zap.Logger) *Handler {
	return &Handler{
		analyzer:  analyzer,
		sessions:  sessions,
		checks:    checks,
		maxUpload: maxUploadBytes,
		logger:    logger,
	}
}

type analyzeResponse struct {
	SessionID      string         `json:"session_id"`
	Points         map[string]int `json:"points"`
	TotalPasses    int            `json:"total_passes"`
	Rebounds       map[string]int `json:"rebounds"`
	FramesAnalyzed int            `json:"frames_analyzed"`
	FramesSkipped  int            `json:"frames_skipped"`
	Artifacts      []string       `json:"artifacts"`
	Warnings       []string       `json:"warnings,omitempty"`
}

type sessionResponse struct {
	SessionID      string             `json:"session_id"`
	UserID         string             `json:"user_id"`
	Status         string             `json:"status"`
	VideoKey       string             `json:"video_key"`
	FrameCount     int                `json:"frame_count"`
	FramesAnalyzed int                `json:"frames_analyzed"`
	FramesSkipped  int                `json:"frames_skipped"`
	Totals         *entity.GameTotals `json:"totals,omitempty"`
	Attempt        int                `json:"attempt"`
	MaxAttempts    int                `json:"max_attempts"`
	ErrorMessage   string             `json:"error_message,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
	CompletedAt    *time.Time         `json:"completed_at,omitempty"`
}

func toSessionResponse(s *entity.Session) sessionResponse {
	return sessionResponse{
		SessionID:      s.ID.String(),
		UserID:         s.UserID,
		Status:         string(s.Status),
		VideoKey:       s.VideoKey,
		FrameCount:     s.FrameCount,
		FramesAnalyzed: s.FramesAnalyzed,
		FramesSkipped:  s.FramesSkipped,
		Totals:         s.Totals,
		Attempt:        s.Attempt,
		MaxAttempts:    s.MaxAttempts,
		ErrorMessage:   s.ErrorMessage,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
		CompletedAt:    s.CompletedAt,
	}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.respondError(w, http.StatusServiceUnavailable, name+" unhealthy", err)
			return
		}
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "girlsnav-api",
	})
}

// Analyze stores the upload and answers with the game totals once every frame was classified.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	req, cleanup, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	defer cleanup()

	outcome, err := h.analyzer.AnalyzeUpload(r.Context(), req)
	if err != nil {
		h.respondError(w, analysisStatus(err), analysisMessage(err), err)
		return
	}

	resp := analyzeResponse{
		SessionID:      outcome.Session.ID.String(),
		Points:         outcome.Totals.Points,
		TotalPasses:    outcome.Totals.Passes,
		Rebounds:       outcome.Totals.Rebounds,
		FramesAnalyzed: outcome.Session.FramesAnalyzed,
		FramesSkipped:  outcome.Session.FramesSkipped,
		Artifacts:      outcome.Artifacts,
	}
	for _, p := range outcome.Problems {
		resp.Warnings = append(resp.Warnings, p.Error())
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// Submit stores the upload and queues it; the client polls the session afterwards.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	req, cleanup, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	defer cleanup()

	session, err := h.analyzer.Submit(r.Context(), req)
	if err != nil {
		h.respondError(w, http.StatusBadGateway, "failed to queue analysis", err)
		return
	}

	w.Header().Set("Location", "/api/v1/sessions/"+session.ID.String())
	h.respondJSON(w, http.StatusAccepted, toSessionResponse(session))
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	session, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		h.respondLookupError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toSessionResponse(session))
}

func (h *Handler) GetTotals(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	totals, source, err := h.sessions.Totals(r.Context(), id)
	if errors.Is(err, entity.ErrIncomplete) {
		h.respondError(w, http.StatusConflict, "analysis has not completed", err)
		return
	}
	if err != nil {
		h.respondLookupError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"session_id":   id.String(),
		"points":       totals.Points,
		"total_passes": totals.Passes,
		"rebounds":     totals.Rebounds,
		"source":       source,
	})
}

func (h *Handler) GetFrames(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	records, err := h.sessions.Frames(r.Context(), id)
	if err != nil {
		h.respondLookupError(w, err)
		return
	}
	if records == nil {
		records = []entity.FrameEventRecord{}
	}
	h.respondJSON(w, http.StatusOK, map[string]any{
		"session_id": id.String(),
		"frames":     records,
		"count":      len(records),
	})
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "filename")

	rc, info, err := h.sessions.OpenArtifact(r.Context(), id, name)
	switch {
	case errors.Is(err, usecase.ErrUnknownArtifact), errors.Is(err, entity.ErrSourceUnavailable):
		h.respondError(w, http.StatusNotFound, "file not found", err)
		return
	case err != nil:
		h.respondError(w, http.StatusBadGateway, "failed to read file", err)
		return
	}
	defer rc.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, name))
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("download interrupted", zap.String("session_id", id.String()), zap.String("file", name), zap.Error(err))
	}
}

func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	if err := h.sessions.Cleanup(r.Context(), id); err != nil {
		if errors.Is(err, entity.ErrSessionNotFound) {
			h.respondLookupError(w, err)
			return
		}
		h.respondError(w, http.StatusInternalServerError, "cleanup failed", err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"message": "Cleanup successful"})
}

// readUpload validates the multipart "video" field. On failure it has already responded.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (usecase.UploadRequest, func(), bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	file, header, err := r.FormFile("video")
	if err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			h.respondError(w, http.StatusRequestEntityTooLarge, "video exceeds maximum upload size", err)
		case errors.Is(err, http.ErrMissingFile):
			h.respondError(w, http.StatusBadRequest, "No video file provided", err)
		default:
			h.respondError(w, http.StatusBadRequest, "invalid multipart upload", err)
		}
		return usecase.UploadRequest{}, nil, false
	}

	cleanup := func() {
		file.Close()
		if r.MultipartForm != nil {
			r.MultipartForm.RemoveAll()
		}
	}

	if header.Filename == "" {
		cleanup()
		h.respondError(w, http.StatusBadRequest, "No selected file", nil)
		return usecase.UploadRequest{}, nil, false
	}
	if !allowedFile(header.Filename) {
		cleanup()
		h.respondError(w, http.StatusBadRequest, "Invalid file type", fmt.Errorf("rejected upload %q", header.Filename))
		return usecase.UploadRequest{}, nil, false
	}

	return usecase.UploadRequest{
		UserID:      r.Header.Get("X-User-ID"),
		UserEmail:   r.FormValue("email"),
		Filename:    header.Filename,
		ContentType: uploadContentType(header),
		Size:        header.Size,
		Body:        file,
	}, cleanup, true
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid session id", err)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, entity.ErrSessionNotFound) {
		h.respondError(w, http.StatusNotFound, "session not found", err)
		return
	}
	h.respondError(w, http.StatusInternalServerError, "failed to load session", err)
}

func allowedFile(name string) bool {
	return slices.Contains(allowedExtensions, strings.ToLower(filepath.Ext(name)))
}

func uploadContentType(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func analysisStatus(err error) int {
	switch {
	case errors.Is(err, entity.ErrSourceUnavailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, entity.ErrIncomplete):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func analysisMessage(err error) string {
	switch {
	case errors.Is(err, entity.ErrSourceUnavailable):
		return "video could not be read"
	case errors.Is(err, entity.ErrIncomplete):
		return "analysis was interrupted"
	default:
		return "analysis failed"
	}
}
