package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/pavithragopisetty/GirlsNav4/internal/domain/entity"
	"github.com/pavithragopisetty/GirlsNav4/internal/infra/ffmpeg"
	"github.com/pavithragopisetty/GirlsNav4/internal/infra/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type harness struct {
	uc         *AnalyzeVideoUseCase
	repo       *fakeRepo
	storage    *fakeStorage
	extractor  *fakeExtractor
	classifier *fakeClassifier
	cache      *fakeCache
	status     *fakePublisher
	requests   *fakePublisher
	dlq        *fakePublisher
	notifier   *fakeNotifier
	tempDir    string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		repo:       newFakeRepo(),
		storage:    newFakeStorage(),
		extractor:  &fakeExtractor{frames: 3},
		classifier: &fakeClassifier{results: threeFrameGame()},
		cache:      newFakeCache(),
		status:     &fakePublisher{},
		requests:   &fakePublisher{},
		dlq:        &fakePublisher{},
		notifier:   &fakeNotifier{},
		tempDir:    t.TempDir(),
	}
	logger := zap.NewNop()
	h.uc = NewAnalyzeVideoUseCase(AnalyzeVideoDeps{
		Repo:       h.repo,
		Videos:     h.storage,
		Artifacts:  h.storage,
		Extractor:  h.extractor,
		Aggregator: NewFrameAggregator(h.classifier, nil, 1, logger),
		Reports:    report.NewWriter(logger),
		Zipper:     ffmpeg.NewZipCreator(),
		Cache:      h.cache,
		Status:     h.status,
		Requests:   h.requests,
		DLQ:        h.dlq,
		Notifier:   h.notifier,
	}, logger, AnalyzeVideoConfig{TempDir: h.tempDir, MaxRetries: 3})
	return h
}

func (h *harness) request(t *testing.T, email string) (entity.AnalysisRequestMessage, []byte) {
	t.Helper()
	msg := entity.AnalysisRequestMessage{
		SessionID: uuid.New(),
		UserID:    "coach-1",
		VideoKey:  "coach-1/game.mp4",
		FileSize:  4,
		UserEmail: email,
	}
	h.storage.videos[msg.VideoKey] = []byte("mp4!")
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	return msg, raw
}

func (h *harness) lastStatus(t *testing.T) entity.AnalysisStatusMessage {
	t.Helper()
	require.NotEmpty(t, h.status.messages)
	var st entity.AnalysisStatusMessage
	require.NoError(t, json.Unmarshal(h.status.messages[len(h.status.messages)-1], &st))
	return st
}

func TestExecuteCompletesSession(t *testing.T) {
	h := newHarness(t)
	msg, raw := h.request(t, "")

	require.NoError(t, h.uc.Execute(t.Context(), raw))

	s := h.repo.get(msg.SessionID)
	assert.Equal(t, entity.SessionStatusCompleted, s.Status)
	assert.Equal(t, 1, s.Attempt)
	assert.Equal(t, 3, s.FrameCount)
	assert.Equal(t, 3, s.FramesAnalyzed)
	assert.Equal(t, 0, s.FramesSkipped)
	assert.Equal(t, msg.SessionID.String(), s.ArtifactPrefix)
	require.NotNil(t, s.Totals)
	assert.Equal(t, map[string]int{"23": 5}, s.Totals.Points)
	assert.Equal(t, 1, s.Totals.Passes)
	assert.NotNil(t, s.CompletedAt)

	assert.Len(t, h.repo.records[msg.SessionID], 3)

	prefix := msg.SessionID.String() + "/"
	assert.ElementsMatch(t, []string{
		prefix + report.SummaryJSON,
		prefix + report.SummaryCSV,
		prefix + report.TotalsJSON,
		prefix + ReportArchive,
	}, h.storage.artifactKeys())

	cached, err := h.cache.ReadTotals(t.Context(), msg.SessionID)
	require.NoError(t, err)
	assert.True(t, s.Totals.Equal(cached))

	st := h.lastStatus(t)
	assert.Equal(t, entity.SessionStatusCompleted, st.Status)
	assert.Equal(t, 3, st.FramesAnalyzed)
	assert.Empty(t, h.dlq.dlq)

	entries, err := os.ReadDir(h.tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "work dir must be removed")
}

func TestExecuteUploadedCSVReproducesTotals(t *testing.T) {
	h := newHarness(t)
	msg, raw := h.request(t, "")
	require.NoError(t, h.uc.Execute(t.Context(), raw))

	csvData := h.storage.artifacts[msg.SessionID.String()+"/"+report.SummaryCSV]
	totals, _, err := report.NewStatsReader(zap.NewNop()).RecomputeFrom(bytes.NewReader(csvData))
	require.NoError(t, err)
	assert.True(t, h.repo.get(msg.SessionID).Totals.Equal(totals))
}

func TestExecuteMalformedMessageGoesToDLQ(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.uc.Execute(t.Context(), []byte("{not json")))

	require.Len(t, h.dlq.dlq, 1)
	assert.True(t, strings.HasPrefix(h.dlq.dlq[0], "unmarshal_error"))
	assert.Empty(t, h.repo.sessions)
}

func TestExecuteSourceUnavailableIsPermanent(t *testing.T) {
	h := newHarness(t)
	h.extractor.err = fmt.Errorf("%w: ffmpeg produced no frames", entity.ErrSourceUnavailable)
	msg, raw := h.request(t, "coach@example.com")

	require.NoError(t, h.uc.Execute(t.Context(), raw))

	s := h.repo.get(msg.SessionID)
	assert.Equal(t, entity.SessionStatusFailed, s.Status)
	assert.Contains(t, s.ErrorMessage, "source unavailable")
	assert.Len(t, h.dlq.dlq, 1)
	assert.Equal(t, []string{"coach@example.com:" + msg.SessionID.String()}, h.notifier.calls)
	assert.Empty(t, h.storage.artifactKeys())
	assert.Equal(t, entity.SessionStatusFailed, h.lastStatus(t).Status)
}

func TestExecuteTransientFailureAsksForRetry(t *testing.T) {
	h := newHarness(t)
	h.storage.downloadErr = errors.New("connection reset")
	msg, raw := h.request(t, "coach@example.com")

	err := h.uc.Execute(t.Context(), raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attempt 1/3")

	s := h.repo.get(msg.SessionID)
	assert.Equal(t, entity.SessionStatusFailed, s.Status)
	assert.Empty(t, h.dlq.dlq)
	assert.Empty(t, h.notifier.calls)
}

func TestExecuteLastAttemptGoesToDLQ(t *testing.T) {
	h := newHarness(t)
	h.storage.downloadErr = errors.New("connection reset")
	msg, raw := h.request(t, "coach@example.com")

	for i := 0; i < 2; i++ {
		require.Error(t, h.uc.Execute(t.Context(), raw))
	}
	require.NoError(t, h.uc.Execute(t.Context(), raw))

	s := h.repo.get(msg.SessionID)
	assert.Equal(t, 3, s.Attempt)
	assert.Equal(t, entity.SessionStatusFailed, s.Status)
	assert.Len(t, h.dlq.dlq, 1)
	assert.Len(t, h.notifier.calls, 1)
}

func TestExecuteRedeliveredCompletedSessionIsNoop(t *testing.T) {
	h := newHarness(t)
	msg, raw := h.request(t, "")
	require.NoError(t, h.uc.Execute(t.Context(), raw))
	published := len(h.status.messages)

	require.NoError(t, h.uc.Execute(t.Context(), raw))

	assert.Equal(t, 1, h.repo.get(msg.SessionID).Attempt)
	assert.Len(t, h.status.messages, published)
}

func TestExecuteCancellationMarksSessionCancelled(t *testing.T) {
	h := newHarness(t)
	msg, raw := h.request(t, "")
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	h.classifier.onCall = func(frame entity.Frame) {
		if frame.Index == 1 {
			cancel()
		}
	}

	err := h.uc.Execute(ctx, raw)
	require.ErrorIs(t, err, entity.ErrIncomplete)

	s := h.repo.get(msg.SessionID)
	assert.Equal(t, entity.SessionStatusCancelled, s.Status)
	assert.Nil(t, s.Totals)
	assert.Empty(t, h.storage.artifactKeys())
	assert.Empty(t, h.repo.records[msg.SessionID])
	assert.Empty(t, h.cache.totals)
	assert.Equal(t, entity.SessionStatusCancelled, h.lastStatus(t).Status)
}

func TestExecuteCancelledDuringExtractionIsNotAFailure(t *testing.T) {
	h := newHarness(t)
	msg, raw := h.request(t, "coach@example.com")
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	h.extractor.onExtract = cancel

	err := h.uc.Execute(ctx, raw)
	require.ErrorIs(t, err, entity.ErrIncomplete)
	require.ErrorIs(t, err, context.Canceled)

	s := h.repo.get(msg.SessionID)
	assert.Equal(t, entity.SessionStatusCancelled, s.Status)
	assert.Equal(t, 0, s.Attempt)
	assert.Empty(t, h.dlq.dlq)
	assert.Empty(t, h.notifier.calls)
	assert.Empty(t, h.storage.artifactKeys())
	assert.Equal(t, entity.SessionStatusCancelled, h.lastStatus(t).Status)
}

func TestExecuteCancelledOnLastAttemptStaysQueued(t *testing.T) {
	h := newHarness(t)
	msg, raw := h.request(t, "coach@example.com")
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	h.extractor.onExtract = cancel

	// two earlier attempts already failed
	s := entity.NewSession(msg.UserID, msg.VideoKey, msg.FileSize, 3)
	s.ID = msg.SessionID
	s.Attempt = 2
	s.Status = entity.SessionStatusFailed
	require.NoError(t, h.repo.Create(t.Context(), s))

	require.ErrorIs(t, h.uc.Execute(ctx, raw), entity.ErrIncomplete)
	assert.Empty(t, h.dlq.dlq)
	assert.Empty(t, h.notifier.calls)

	// the redelivery after restart still has its last attempt
	h.extractor.onExtract = nil
	require.NoError(t, h.uc.Execute(t.Context(), raw))
	assert.Equal(t, entity.SessionStatusCompleted, h.repo.get(msg.SessionID).Status)
}

func TestAnalyzeUploadCancelledDuringExtraction(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	h.extractor.onExtract = cancel

	_, err := h.uc.AnalyzeUpload(ctx, UploadRequest{
		Filename: "game.mp4",
		Size:     4,
		Body:     strings.NewReader("mp4!"),
	})
	require.ErrorIs(t, err, entity.ErrIncomplete)

	require.Len(t, h.repo.sessions, 1)
	for _, s := range h.repo.sessions {
		assert.Equal(t, entity.SessionStatusCancelled, s.Status)
	}
}

func TestAnalyzeArtifactUploadFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	msg, raw := h.request(t, "")
	h.storage.uploadErr[msg.SessionID.String()+"/"+report.SummaryCSV] = errBoom

	require.NoError(t, h.uc.Execute(t.Context(), raw))

	s := h.repo.get(msg.SessionID)
	assert.Equal(t, entity.SessionStatusCompleted, s.Status)
	assert.Len(t, h.storage.artifactKeys(), 3)
}

func TestAnalyzePersistFailureIsRetryable(t *testing.T) {
	h := newHarness(t)
	h.repo.saveErr = errBoom
	msg, raw := h.request(t, "")

	err := h.uc.Execute(t.Context(), raw)
	require.Error(t, err)
	assert.Equal(t, entity.SessionStatusFailed, h.repo.get(msg.SessionID).Status)
}

func TestAnalyzeUploadRunsInline(t *testing.T) {
	h := newHarness(t)

	outcome, err := h.uc.AnalyzeUpload(t.Context(), UploadRequest{
		UserID:      "coach-2",
		Filename:    "Semifinal.MOV",
		ContentType: "video/quicktime",
		Size:        4,
		Body:        strings.NewReader("mov!"),
	})
	require.NoError(t, err)

	s := outcome.Session
	assert.Equal(t, entity.SessionStatusCompleted, s.Status)
	assert.Equal(t, "coach-2/"+s.ID.String()+".mov", s.VideoKey)
	assert.Equal(t, []byte("mov!"), h.storage.videos[s.VideoKey])
	assert.Equal(t, 3, len(outcome.Records))
	assert.Equal(t, map[string]int{"11": 1}, outcome.Totals.Rebounds)
	assert.Len(t, outcome.Artifacts, 4)
	assert.Empty(t, outcome.Problems)
}

func TestAnalyzeUploadFailureMarksSessionFailed(t *testing.T) {
	h := newHarness(t)
	h.extractor.err = fmt.Errorf("%w: corrupt container", entity.ErrSourceUnavailable)

	_, err := h.uc.AnalyzeUpload(t.Context(), UploadRequest{
		Filename: "game.mp4",
		Size:     4,
		Body:     strings.NewReader("mp4!"),
	})
	require.ErrorIs(t, err, entity.ErrSourceUnavailable)

	require.Len(t, h.repo.sessions, 1)
	for _, s := range h.repo.sessions {
		assert.Equal(t, entity.SessionStatusFailed, s.Status)
		assert.Equal(t, "anonymous", s.UserID)
	}
}

func TestSubmitQueuesRequest(t *testing.T) {
	h := newHarness(t)

	session, err := h.uc.Submit(t.Context(), UploadRequest{
		UserID:    "coach-3",
		UserEmail: "coach3@example.com",
		Filename:  "game.avi",
		Size:      4,
		Body:      strings.NewReader("avi!"),
	})
	require.NoError(t, err)
	assert.Equal(t, entity.SessionStatusPending, h.repo.get(session.ID).Status)

	require.Len(t, h.requests.messages, 1)
	var msg entity.AnalysisRequestMessage
	require.NoError(t, json.Unmarshal(h.requests.messages[0], &msg))
	assert.Equal(t, session.ID, msg.SessionID)
	assert.Equal(t, "coach3@example.com", msg.UserEmail)
	assert.Equal(t, ".avi", filepath.Ext(msg.VideoKey))

	// the queued request is exactly what the worker consumes
	require.NoError(t, h.uc.Execute(t.Context(), h.requests.messages[0]))
	assert.Equal(t, entity.SessionStatusCompleted, h.repo.get(session.ID).Status)
}
