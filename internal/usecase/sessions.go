package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/google/uuid"
	"github.com/pavithragopisetty/GirlsNav4/internal/domain/entity"
	"github.com/pavithragopisetty/GirlsNav4/internal/domain/port"
	"github.com/pavithragopisetty/GirlsNav4/internal/infra/report"
	"go.uber.org/zap"
)

// ErrUnknownArtifact is returned for artifact names a session never produces.
var ErrUnknownArtifact = errors.New("unknown artifact")

// DownloadableArtifacts lists what a client may fetch for a completed session.
var DownloadableArtifacts = []string{report.SummaryJSON, report.SummaryCSV, report.TotalsJSON, ReportArchive}

// SessionService answers read and cleanup requests about past analyses.
type SessionService struct {
	repo      port.SessionRepository
	videos    port.VideoStorage
	artifacts port.ArtifactStorage
	cache     port.TotalsCache
	logger    *zap.Logger
}

func NewSessionService(repo port.SessionRepository, videos port.VideoStorage, artifacts port.ArtifactStorage, cache port.TotalsCache, logger *zap.Logger) *SessionService {
	return &SessionService{repo: repo, videos: videos, artifacts: artifacts, cache: cache, logger: logger}
}

func (s *SessionService) Get(ctx context.Context, id uuid.UUID) (*entity.Session, error) {
	return s.repo.FindByID(ctx, id)
}

// Totals prefers the cache and falls back to the stored session. The second return value
// names where the totals came from. A session that has not completed has no totals.
func (s *SessionService) Totals(ctx context.Context, id uuid.UUID) (*entity.GameTotals, string, error) {
	if s.cache != nil {
		totals, err := s.cache.ReadTotals(ctx, id)
		if err != nil {
			s.logger.Warn("totals cache read failed", zap.String("session_id", id.String()), zap.Error(err))
		}
		if totals != nil {
			return totals, "cache", nil
		}
	}

	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if session.Status != entity.SessionStatusCompleted || session.Totals == nil {
		return nil, "", fmt.Errorf("%w: session %s is %s", entity.ErrIncomplete, id, session.Status)
	}

	if s.cache != nil {
		if err := s.cache.WriteTotals(ctx, id, session.Totals); err != nil {
			s.logger.Warn("failed to refill totals cache", zap.String("session_id", id.String()), zap.Error(err))
		}
	}
	return session.Totals, "database", nil
}

func (s *SessionService) Frames(ctx context.Context, id uuid.UUID) ([]entity.FrameEventRecord, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.FrameRecords(ctx, id)
}

func (s *SessionService) OpenArtifact(ctx context.Context, id uuid.UUID, name string) (io.ReadCloser, *port.ArtifactInfo, error) {
	if !slices.Contains(DownloadableArtifacts, name) {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownArtifact, name)
	}
	return s.artifacts.OpenArtifact(ctx, id.String()+"/"+name)
}

// Cleanup removes everything stored for a session except its database record.
// Every step is attempted; the failures are joined.
func (s *SessionService) Cleanup(ctx context.Context, id uuid.UUID) error {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	var errs []error
	if err := s.artifacts.DeletePrefix(ctx, id.String()); err != nil {
		errs = append(errs, fmt.Errorf("delete artifacts: %w", err))
	}
	if session.VideoKey != "" {
		if err := s.videos.DeleteVideo(ctx, session.VideoKey); err != nil {
			errs = append(errs, fmt.Errorf("delete video: %w", err))
		}
	}
	if s.cache != nil {
		if err := s.cache.DeleteTotals(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("delete cached totals: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	s.logger.Info("session cleaned up", zap.String("session_id", id.String()))
	return nil
}
