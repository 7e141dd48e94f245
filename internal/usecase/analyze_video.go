package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pavithragopisetty/GirlsNav4/internal/domain/entity"
	"github.com/pavithragopisetty/GirlsNav4/internal/domain/port"
	"github.com/pavithragopisetty/GirlsNav4/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// ReportArchive bundles every written report plus the annotated frames.
const ReportArchive = "report.zip"

type AnalyzeVideoDeps struct {
	Repo       port.SessionRepository
	Videos     port.VideoStorage
	Artifacts  port.ArtifactStorage
	Extractor  port.FrameExtractor
	Aggregator *FrameAggregator
	Reports    port.ReportWriter
	Zipper     port.Zipper
	Cache      port.TotalsCache
	Status     port.StatusPublisher
	Requests   port.RequestPublisher
	DLQ        port.DLQPublisher
	Notifier   port.FailureNotifier
}

type AnalyzeVideoConfig struct {
	TempDir    string
	MaxRetries int
}

type AnalyzeVideoUseCase struct {
	deps     AnalyzeVideoDeps
	logger   *zap.Logger
	tempDir  string
	maxRetry int
}

// AnalysisOutcome is what a completed analysis hands back to its caller.
type AnalysisOutcome struct {
	Session   *entity.Session
	Totals    *entity.GameTotals
	Records   []entity.FrameEventRecord
	Artifacts []string
	Problems  []error
}

// UploadRequest is a game video received from a client.
type UploadRequest struct {
	UserID      string
	UserEmail   string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

func NewAnalyzeVideoUseCase(deps AnalyzeVideoDeps, logger *zap.Logger, cfg AnalyzeVideoConfig) *AnalyzeVideoUseCase {
	return &AnalyzeVideoUseCase{
		deps:     deps,
		logger:   logger,
		tempDir:  cfg.TempDir,
		maxRetry: cfg.MaxRetries,
	}
}

// Execute handles one message from the analysis request queue. A returned error asks the
// consumer to requeue; permanent failures are routed to the DLQ and return nil.
func (uc *AnalyzeVideoUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	ctx, span := otel.Tracer("usecase").Start(ctx, "AnalyzeVideoUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	var msg entity.AnalysisRequestMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.deps.DLQ.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}

	span.SetAttributes(
		attribute.String("session.id", msg.SessionID.String()),
		attribute.String("session.video_key", msg.VideoKey),
	)
	log := uc.logger.With(zap.String("session_id", msg.SessionID.String()), zap.String("video_key", msg.VideoKey))

	session, err := uc.deps.Repo.FindByID(ctx, msg.SessionID)
	switch {
	case errors.Is(err, entity.ErrSessionNotFound):
		session = entity.NewSession(msg.UserID, msg.VideoKey, msg.FileSize, uc.maxRetry)
		session.ID = msg.SessionID
		if err := uc.deps.Repo.Create(ctx, session); err != nil {
			log.Error("failed to create session record", zap.Error(err))
			return fmt.Errorf("create session: %w", err)
		}
	case err != nil:
		log.Error("failed to load session", zap.Error(err))
		return fmt.Errorf("load session: %w", err)
	}

	if session.Status == entity.SessionStatusCompleted {
		log.Info("session already completed, dropping redelivered request")
		return nil
	}

	if !session.CanRetry() {
		log.Warn("session exhausted retries, sending to DLQ")
		return uc.handlePermanentFailure(ctx, session, msg, rawMsg, "max retries exceeded")
	}

	session.MarkProcessing()
	if err := uc.deps.Repo.Update(ctx, session); err != nil {
		log.Error("failed to update session to PROCESSING", zap.Error(err))
		return fmt.Errorf("update session: %w", err)
	}

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	_, err = uc.Analyze(ctx, session)
	switch {
	case errors.Is(err, entity.ErrIncomplete):
		// shutdown in progress; the consumer hands the message back
		return err
	case isPermanent(err):
		log.Error("analysis failed permanently", zap.Error(err))
		return uc.handlePermanentFailure(ctx, session, msg, rawMsg, err.Error())
	case err != nil:
		log.Error("analysis failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, session, msg, rawMsg, err.Error(), log)
	}

	metrics.SessionsProcessedTotal.WithLabelValues("completed").Inc()
	metrics.StageDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())
	return nil
}

// Analyze runs the whole pipeline for a session that is already PROCESSING. On success the
// session is COMPLETED, persisted, cached and announced. On cancellation it is CANCELLED and no
// artifacts are uploaded. Any other error leaves the session state to the caller.
func (uc *AnalyzeVideoUseCase) Analyze(ctx context.Context, session *entity.Session) (*AnalysisOutcome, error) {
	log := uc.logger.With(zap.String("session_id", session.ID.String()))

	workDir := filepath.Join(uc.tempDir, session.ID.String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	videoPath := filepath.Join(workDir, "input"+videoExt(session.VideoKey))
	err := uc.stage(ctx, "download", func(ctx context.Context) error {
		return uc.deps.Videos.DownloadVideo(ctx, session.VideoKey, videoPath)
	})
	if err != nil {
		if ierr := uc.interrupted(ctx, session, "download", err, log); ierr != nil {
			return nil, ierr
		}
		return nil, fmt.Errorf("download video: %w", err)
	}

	var extracted *port.FrameExtractionResult
	err = uc.stage(ctx, "extract", func(ctx context.Context) error {
		framesDir := filepath.Join(workDir, "frames")
		if err := os.MkdirAll(framesDir, 0755); err != nil {
			return fmt.Errorf("create frames dir: %w", err)
		}
		var err error
		extracted, err = uc.deps.Extractor.ExtractFrames(ctx, videoPath, framesDir)
		return err
	})
	if err != nil {
		if ierr := uc.interrupted(ctx, session, "extract", err, log); ierr != nil {
			return nil, ierr
		}
		return nil, fmt.Errorf("extract frames: %w", err)
	}
	metrics.FramesExtractedTotal.Add(float64(extracted.FrameCount))
	log.Info("frames extracted", zap.Int("frame_count", extracted.FrameCount), zap.Float64("duration_secs", extracted.VideoDuration))

	annotatedDir := filepath.Join(workDir, "annotated")
	var agg *AggregationResult
	err = uc.stage(ctx, "aggregate", func(ctx context.Context) error {
		var err error
		agg, err = uc.deps.Aggregator.Run(ctx, extracted.Frames, annotatedDir)
		return err
	})
	if err != nil {
		if ierr := uc.interrupted(ctx, session, "aggregate", err, log); ierr != nil {
			return nil, ierr
		}
		return nil, fmt.Errorf("aggregate frames: %w", err)
	}

	outcome := &AnalysisOutcome{Session: session, Totals: agg.Totals, Records: agg.Records}

	outputDir := filepath.Join(workDir, "output")
	var written map[string]string
	_ = uc.stage(ctx, "report", func(ctx context.Context) error {
		res := uc.deps.Reports.Write(agg.Records, agg.Totals, outputDir)
		for _, werr := range res.Errors {
			metrics.ArtifactWriteFailuresTotal.WithLabelValues("report").Inc()
			outcome.Problems = append(outcome.Problems, werr)
		}
		written = res.Written
		if written == nil {
			written = make(map[string]string)
		}
		return errors.Join(res.Errors...)
	})

	err = uc.stage(ctx, "bundle", func(ctx context.Context) error {
		files := sortedValues(written)
		if annotated, err := filepath.Glob(filepath.Join(annotatedDir, "*")); err == nil {
			sort.Strings(annotated)
			files = append(files, annotated...)
		}
		if len(files) == 0 {
			return nil
		}
		zipPath := filepath.Join(workDir, ReportArchive)
		if err := uc.deps.Zipper.CreateZip(ctx, workDir, files, zipPath); err != nil {
			return err
		}
		written[ReportArchive] = zipPath
		return nil
	})
	if err != nil {
		log.Error("report archive failed", zap.Error(err))
		metrics.ArtifactWriteFailuresTotal.WithLabelValues(ReportArchive).Inc()
		outcome.Problems = append(outcome.Problems, fmt.Errorf("%w: %s: %v", entity.ErrWrite, ReportArchive, err))
	}

	prefix := session.ID.String()
	_ = uc.stage(ctx, "upload", func(ctx context.Context) error {
		names := make([]string, 0, len(written))
		for name := range written {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			key := prefix + "/" + name
			if err := uc.deps.Artifacts.UploadArtifact(ctx, key, written[name]); err != nil {
				log.Error("artifact upload failed", zap.String("artifact", name), zap.Error(err))
				metrics.ArtifactWriteFailuresTotal.WithLabelValues(name).Inc()
				outcome.Problems = append(outcome.Problems, err)
				continue
			}
			outcome.Artifacts = append(outcome.Artifacts, key)
		}
		return nil
	})

	err = uc.stage(ctx, "persist", func(ctx context.Context) error {
		if err := uc.deps.Repo.SaveFrameRecords(ctx, session.ID, agg.Records); err != nil {
			return err
		}
		session.MarkCompleted(agg.Totals, extracted.FrameCount, agg.Analyzed(), len(agg.Skipped), prefix)
		return uc.deps.Repo.Update(ctx, session)
	})
	if err != nil {
		if ierr := uc.interrupted(ctx, session, "persist", err, log); ierr != nil {
			return nil, ierr
		}
		return nil, fmt.Errorf("persist session: %w", err)
	}

	if uc.deps.Cache != nil {
		if err := uc.deps.Cache.WriteTotals(ctx, session.ID, agg.Totals); err != nil {
			log.Warn("failed to cache totals", zap.Error(err))
		}
	}

	uc.publishStatus(ctx, session, log)

	log.Info("session completed",
		zap.Int("frame_count", extracted.FrameCount),
		zap.Int("frames_analyzed", agg.Analyzed()),
		zap.Int("frames_skipped", len(agg.Skipped)),
		zap.Int("artifacts", len(outcome.Artifacts)),
		zap.Int("problems", len(outcome.Problems)),
	)
	return outcome, nil
}

// AnalyzeUpload stores the video under a new session and analyzes it in the caller's goroutine.
func (uc *AnalyzeVideoUseCase) AnalyzeUpload(ctx context.Context, req UploadRequest) (*AnalysisOutcome, error) {
	session, err := uc.createSession(ctx, req, 1)
	if err != nil {
		return nil, err
	}
	log := uc.logger.With(zap.String("session_id", session.ID.String()))

	session.MarkProcessing()
	if err := uc.deps.Repo.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	outcome, err := uc.Analyze(ctx, session)
	if errors.Is(err, entity.ErrIncomplete) {
		metrics.SessionsProcessedTotal.WithLabelValues("cancelled").Inc()
		return nil, err
	}
	if err != nil {
		session.MarkFailed(err.Error())
		if uerr := uc.deps.Repo.Update(context.WithoutCancel(ctx), session); uerr != nil {
			log.Error("failed to update session to FAILED", zap.Error(uerr))
		}
		uc.publishStatus(ctx, session, log)
		metrics.SessionsProcessedTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	metrics.SessionsProcessedTotal.WithLabelValues("completed").Inc()
	return outcome, nil
}

// Submit stores the video under a new session and queues it for a worker.
func (uc *AnalyzeVideoUseCase) Submit(ctx context.Context, req UploadRequest) (*entity.Session, error) {
	session, err := uc.createSession(ctx, req, uc.maxRetry)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(entity.AnalysisRequestMessage{
		SessionID: session.ID,
		UserID:    session.UserID,
		VideoKey:  session.VideoKey,
		FileSize:  session.FileSize,
		UserEmail: req.UserEmail,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	if err := uc.deps.Requests.PublishRequest(ctx, data); err != nil {
		return nil, fmt.Errorf("queue analysis: %w", err)
	}

	uc.logger.Info("analysis queued", zap.String("session_id", session.ID.String()), zap.String("video_key", session.VideoKey))
	return session, nil
}

func (uc *AnalyzeVideoUseCase) createSession(ctx context.Context, req UploadRequest, maxAttempts int) (*entity.Session, error) {
	userID := req.UserID
	if userID == "" {
		userID = "anonymous"
	}
	session := entity.NewSession(userID, "", req.Size, maxAttempts)
	session.VideoKey = fmt.Sprintf("%s/%s%s", userID, session.ID, videoExt(req.Filename))

	if err := uc.deps.Videos.UploadVideo(ctx, session.VideoKey, req.Body, req.Size, req.ContentType); err != nil {
		return nil, fmt.Errorf("store video: %w", err)
	}
	if err := uc.deps.Repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// interrupted reports a stage failure caused by cancellation as entity.ErrIncomplete and
// marks the session CANCELLED. It returns nil when the failure is a real one.
func (uc *AnalyzeVideoUseCase) interrupted(ctx context.Context, session *entity.Session, stage string, err error, log *zap.Logger) error {
	switch {
	case errors.Is(err, entity.ErrIncomplete):
	case ctx.Err() != nil:
		err = fmt.Errorf("%w: %s interrupted: %w", entity.ErrIncomplete, stage, err)
	default:
		return nil
	}
	uc.cancelSession(ctx, session, err, log)
	return err
}

func (uc *AnalyzeVideoUseCase) cancelSession(ctx context.Context, session *entity.Session, cause error, log *zap.Logger) {
	log.Warn("analysis cancelled, discarding partial results", zap.Error(cause))
	session.MarkCancelled(cause.Error())

	// ctx is already done; the bookkeeping still has to land
	ctx = context.WithoutCancel(ctx)
	if err := uc.deps.Repo.Update(ctx, session); err != nil {
		log.Error("failed to update session to CANCELLED", zap.Error(err))
	}
	uc.publishStatus(ctx, session, log)
}

// stage wraps one pipeline step in a span and records its duration.
func (uc *AnalyzeVideoUseCase) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := otel.Tracer("usecase").Start(ctx, name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (uc *AnalyzeVideoUseCase) handleRetryableFailure(
	ctx context.Context,
	session *entity.Session,
	msg entity.AnalysisRequestMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	session.MarkFailed(errMsg)
	_ = uc.deps.Repo.Update(ctx, session)

	if !session.CanRetry() {
		return uc.handlePermanentFailure(ctx, session, msg, rawMsg, errMsg)
	}

	metrics.RetryTotal.WithLabelValues(strconv.Itoa(session.Attempt)).Inc()
	uc.publishStatus(ctx, session, log)

	return fmt.Errorf("retryable failure (attempt %d/%d): %s", session.Attempt, session.MaxAttempts, errMsg)
}

func (uc *AnalyzeVideoUseCase) handlePermanentFailure(
	ctx context.Context,
	session *entity.Session,
	msg entity.AnalysisRequestMessage,
	rawMsg []byte,
	errMsg string,
) error {
	session.MarkFailed(errMsg)
	_ = uc.deps.Repo.Update(ctx, session)

	_ = uc.deps.DLQ.PublishToDLQ(ctx, rawMsg, errMsg)

	uc.publishStatus(ctx, session, uc.logger)

	metrics.SessionsProcessedTotal.WithLabelValues("dlq").Inc()

	if msg.UserEmail != "" && uc.deps.Notifier != nil {
		_ = uc.deps.Notifier.NotifyFailure(ctx, msg.UserEmail, session.ID.String(), msg.VideoKey, errMsg)
	}

	return nil
}

func (uc *AnalyzeVideoUseCase) publishStatus(ctx context.Context, session *entity.Session, log *zap.Logger) {
	if uc.deps.Status == nil {
		return
	}
	statusMsg := entity.AnalysisStatusMessage{
		SessionID:      session.ID,
		UserID:         session.UserID,
		Status:         session.Status,
		VideoKey:       session.VideoKey,
		ArtifactPrefix: session.ArtifactPrefix,
		FrameCount:     session.FrameCount,
		FramesAnalyzed: session.FramesAnalyzed,
		FramesSkipped:  session.FramesSkipped,
		Totals:         session.Totals,
		ErrorMessage:   session.ErrorMessage,
		Attempt:        session.Attempt,
		MaxAttempts:    session.MaxAttempts,
	}
	data, _ := json.Marshal(statusMsg)
	if err := uc.deps.Status.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}

// isPermanent reports failures no retry can fix.
func isPermanent(err error) bool {
	return errors.Is(err, entity.ErrSourceUnavailable) || errors.Is(err, entity.ErrConfiguration)
}

func videoExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return ".mp4"
	}
	return ext
}

func sortedValues(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
