package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/pavithragopisetty/GirlsNav4/internal/domain/entity"
	"github.com/pavithragopisetty/GirlsNav4/internal/domain/port"
	"github.com/pavithragopisetty/GirlsNav4/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockAnalyzer struct {
	got     usecase.UploadRequest
	body    string
	outcome *usecase.AnalysisOutcome
	session *entity.Session
	err     error
}

func (m *mockAnalyzer) AnalyzeUpload(_ context.Context, req usecase.UploadRequest) (*usecase.AnalysisOutcome, error) {
	m.got = req
	data, _ := io.ReadAll(req.Body)
	m.body = string(data)
	return m.outcome, m.err
}

func (m *mockAnalyzer) Submit(_ context.Context, req usecase.UploadRequest) (*entity.Session, error) {
	m.got = req
	return m.session, m.err
}

type mockSessions struct {
	sessions  map[uuid.UUID]*entity.Session
	totals    *entity.GameTotals
	totalsErr error
	artifacts map[string]string
	cleaned   []uuid.UUID
	cleanErr  error
}

func (m *mockSessions) Get(_ context.Context, id uuid.UUID) (*entity.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, entity.ErrSessionNotFound
	}
	return s, nil
}

func (m *mockSessions) Totals(_ context.Context, id uuid.UUID) (*entity.GameTotals, string, error) {
	if _, ok := m.sessions[id]; !ok {
		return nil, "", entity.ErrSessionNotFound
	}
	if m.totalsErr != nil {
		return nil, "", m.totalsErr
	}
	return m.totals, "cache", nil
}

func (m *mockSessions) Frames(_ context.Context, id uuid.UUID) ([]entity.FrameEventRecord, error) {
	if _, ok := m.sessions[id]; !ok {
		return nil, entity.ErrSessionNotFound
	}
	return nil, nil
}

func (m *mockSessions) OpenArtifact(_ context.Context, id uuid.UUID, name string) (io.ReadCloser, *port.ArtifactInfo, error) {
	if name != "summary.csv" && name != "summary.json" {
		return nil, nil, fmt.Errorf("%w: %q", usecase.ErrUnknownArtifact, name)
	}
	data, ok := m.artifacts[id.String()+"/"+name]
	if !ok {
		return nil, nil, entity.ErrSourceUnavailable
	}
	return io.NopCloser(strings.NewReader(data)), &port.ArtifactInfo{Size: int64(len(data)), ContentType: "text/csv"}, nil
}

func (m *mockSessions) Cleanup(_ context.Context, id uuid.UUID) error {
	if _, ok := m.sessions[id]; !ok {
		return entity.ErrSessionNotFound
	}
	m.cleaned = append(m.cleaned, id)
	return m.cleanErr
}

func newTestServer(t *testing.T, a *mockAnalyzer, s *mockSessions, checks map[string]HealthCheck) *httptest.Server {
	t.Helper()
	h := NewHandler(a, s, checks, 1<<20, zap.NewNop())
	srv := httptest.NewServer(NewRouter(h, RouterConfig{CORSOrigins: []string{"*"}}, zap.NewNop()))
	t.Cleanup(srv.Close)
	return srv
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.WriteField("email", "coach@example.com"))
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func completedOutcome() *usecase.AnalysisOutcome {
	s := entity.NewSession("coach-1", "coach-1/x.mp4", 4, 1)
	totals := entity.NewGameTotals()
	totals.AddPoints(map[string]int{"23": 5})
	totals.AddPasses(1)
	totals.AddRebounds(map[string]int{"11": 1})
	s.MarkProcessing()
	s.MarkCompleted(totals, 3, 3, 0, s.ID.String())
	return &usecase.AnalysisOutcome{Session: s, Totals: totals, Artifacts: []string{s.ID.String() + "/summary.csv"}}
}

func TestAnalyzeReturnsTotals(t *testing.T) {
	a := &mockAnalyzer{outcome: completedOutcome()}
	srv := newTestServer(t, a, &mockSessions{}, nil)

	body, ct := multipartBody(t, "video", "game.MP4", "mp4 bytes")
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/analyze", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("X-User-ID", "coach-1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got analyzeResponse
	decode(t, resp, &got)
	assert.Equal(t, a.outcome.Session.ID.String(), got.SessionID)
	assert.Equal(t, map[string]int{"23": 5}, got.Points)
	assert.Equal(t, 1, got.TotalPasses)
	assert.Equal(t, map[string]int{"11": 1}, got.Rebounds)
	assert.Equal(t, 3, got.FramesAnalyzed)

	assert.Equal(t, "coach-1", a.got.UserID)
	assert.Equal(t, "coach@example.com", a.got.UserEmail)
	assert.Equal(t, "game.MP4", a.got.Filename)
	assert.Equal(t, "mp4 bytes", a.body)
}

func TestAnalyzeRejectsBadUploads(t *testing.T) {
	srv := newTestServer(t, &mockAnalyzer{}, &mockSessions{}, nil)

	tests := []struct {
		name     string
		field    string
		filename string
		status   int
		message  string
	}{
		{"missing field", "", "", http.StatusBadRequest, "No video file provided"},
		{"wrong field", "file", "game.mp4", http.StatusBadRequest, "No video file provided"},
		{"bad extension", "video", "notes.txt", http.StatusBadRequest, "Invalid file type"},
		{"no extension", "video", "video", http.StatusBadRequest, "Invalid file type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartBody(t, tt.field, tt.filename, "x")
			resp, err := http.Post(srv.URL+"/api/v1/analyze", ct, body)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			var e errorResponse
			decode(t, resp, &e)
			assert.Equal(t, tt.message, e.Error)
		})
	}
}

func TestAnalyzeRejectsOversizedUpload(t *testing.T) {
	a := &mockAnalyzer{}
	h := NewHandler(a, &mockSessions{}, nil, 1<<20, zap.NewNop())
	router := NewRouter(h, RouterConfig{}, zap.NewNop())

	body, ct := multipartBody(t, "video", "game.mp4", strings.Repeat("x", 2<<20))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, a.got.Filename)
}

func TestAnalyzeMapsFailures(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("extract frames: %w", entity.ErrSourceUnavailable), http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: cancelled", entity.ErrIncomplete), http.StatusServiceUnavailable},
		{errors.New("database down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		srv := newTestServer(t, &mockAnalyzer{err: tt.err}, &mockSessions{}, nil)
		body, ct := multipartBody(t, "video", "game.avi", "x")
		resp, err := http.Post(srv.URL+"/api/v1/analyze", ct, body)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, tt.status, resp.StatusCode, tt.err.Error())
	}
}

func TestSubmitReturnsAccepted(t *testing.T) {
	session := entity.NewSession("coach-1", "coach-1/x.mov", 1, 3)
	srv := newTestServer(t, &mockAnalyzer{session: session}, &mockSessions{}, nil)

	body, ct := multipartBody(t, "video", "game.mov", "x")
	resp, err := http.Post(srv.URL+"/api/v1/sessions", ct, body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "/api/v1/sessions/"+session.ID.String(), resp.Header.Get("Location"))

	var got sessionResponse
	decode(t, resp, &got)
	assert.Equal(t, "PENDING", got.Status)
}

func TestSessionEndpoints(t *testing.T) {
	outcome := completedOutcome()
	id := outcome.Session.ID
	sessions := &mockSessions{
		sessions:  map[uuid.UUID]*entity.Session{id: outcome.Session},
		totals:    outcome.Totals,
		artifacts: map[string]string{id.String() + "/summary.csv": "frame,points,passes,rebounds\n"},
	}
	srv := newTestServer(t, &mockAnalyzer{}, sessions, nil)

	resp, err := http.Get(srv.URL + "/api/v1/sessions/" + id.String())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var s sessionResponse
	decode(t, resp, &s)
	assert.Equal(t, "COMPLETED", s.Status)
	assert.Equal(t, 5, s.Totals.Points["23"])

	resp, err = http.Get(srv.URL + "/api/v1/sessions/" + id.String() + "/totals")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var totals map[string]any
	decode(t, resp, &totals)
	assert.Equal(t, float64(1), totals["total_passes"])
	assert.Equal(t, "cache", totals["source"])

	resp, err = http.Get(srv.URL + "/api/v1/sessions/" + id.String() + "/frames")
	require.NoError(t, err)
	var frames map[string]any
	decode(t, resp, &frames)
	assert.Equal(t, []any{}, frames["frames"])

	resp, err = http.Get(srv.URL + "/api/v1/download/" + id.String() + "/summary.csv")
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "frame,points,passes,rebounds\n", string(data))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `filename="summary.csv"`)

	resp, err = http.Post(srv.URL+"/api/v1/cleanup/"+id.String(), "", nil)
	require.NoError(t, err)
	var msg map[string]string
	decode(t, resp, &msg)
	assert.Equal(t, "Cleanup successful", msg["message"])
	assert.Equal(t, []uuid.UUID{id}, sessions.cleaned)
}

func TestSessionLookupErrors(t *testing.T) {
	id := uuid.New()
	pending := entity.NewSession("coach-1", "k", 1, 3)
	sessions := &mockSessions{
		sessions:  map[uuid.UUID]*entity.Session{pending.ID: pending},
		totalsErr: fmt.Errorf("%w: PENDING", entity.ErrIncomplete),
	}
	srv := newTestServer(t, &mockAnalyzer{}, sessions, nil)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/api/v1/sessions/not-a-uuid", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/sessions/" + id.String(), http.StatusNotFound},
		{http.MethodGet, "/api/v1/sessions/" + pending.ID.String() + "/totals", http.StatusConflict},
		{http.MethodGet, "/api/v1/download/" + pending.ID.String() + "/summary.json", http.StatusNotFound},
		{http.MethodGet, "/api/v1/download/" + pending.ID.String() + "/secrets.txt", http.StatusNotFound},
		{http.MethodPost, "/api/v1/cleanup/" + id.String(), http.StatusNotFound},
	}
	for _, tt := range tests {
		req, err := http.NewRequest(tt.method, srv.URL+tt.path, nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, tt.status, resp.StatusCode, tt.path)
	}
}

func TestHealthCheck(t *testing.T) {
	healthy := newTestServer(t, &mockAnalyzer{}, &mockSessions{}, map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
	})
	resp, err := http.Get(healthy.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	broken := newTestServer(t, &mockAnalyzer{}, &mockSessions{}, map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("refused") },
	})
	resp, err = http.Get(broken.URL + "/health")
	require.NoError(t, err)
	var e errorResponse
	decode(t, resp, &e)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "redis unhealthy", e.Error)
}
