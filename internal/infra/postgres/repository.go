package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pavithragopisetty/GirlsNav4/internal/domain/entity"
)

type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) Create(ctx context.Context, s *entity.Session) error {
	query := `
		INSERT INTO analysis_sessions (
			id, user_id, video_key, status, frame_count, frames_analyzed,
			frames_skipped, totals, artifact_prefix, file_size, attempt,
			max_attempts, error_message, created_at, updated_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`

	_, err := r.pool.Exec(ctx, query,
		s.ID, s.UserID, s.VideoKey, string(s.Status), s.FrameCount, s.FramesAnalyzed,
		s.FramesSkipped, s.Totals, s.ArtifactPrefix, s.FileSize, s.Attempt,
		s.MaxAttempts, s.ErrorMessage, s.CreatedAt, s.UpdatedAt, s.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Update(ctx context.Context, s *entity.Session) error {
	query := `
		UPDATE analysis_sessions SET
			status=$2, frame_count=$3, frames_analyzed=$4, frames_skipped=$5,
			totals=$6, artifact_prefix=$7, attempt=$8, error_message=$9,
			updated_at=$10, completed_at=$11
		WHERE id=$1`

	tag, err := r.pool.Exec(ctx, query,
		s.ID, string(s.Status), s.FrameCount, s.FramesAnalyzed, s.FramesSkipped,
		s.Totals, s.ArtifactPrefix, s.Attempt, s.ErrorMessage,
		s.UpdatedAt, s.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update session %s: %w", s.ID, entity.ErrSessionNotFound)
	}
	return nil
}

func (r *SessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Session, error) {
	query := `
		SELECT id, user_id, video_key, status, frame_count, frames_analyzed,
			frames_skipped, totals, artifact_prefix, file_size, attempt,
			max_attempts, error_message, created_at, updated_at, completed_at
		FROM analysis_sessions WHERE id=$1`

	s := &entity.Session{}
	var status string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.UserID, &s.VideoKey, &status, &s.FrameCount, &s.FramesAnalyzed,
		&s.FramesSkipped, &s.Totals, &s.ArtifactPrefix, &s.FileSize, &s.Attempt,
		&s.MaxAttempts, &s.ErrorMessage, &s.CreatedAt, &s.UpdatedAt, &s.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("find session %s: %w", id, entity.ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find session by id: %w", err)
	}
	s.Status = entity.SessionStatus(status)
	return s, nil
}

// SaveFrameRecords replaces the stored per-frame events of a session, keeping record order.
func (r *SessionRepository) SaveFrameRecords(ctx context.Context, sessionID uuid.UUID, records []entity.FrameEventRecord) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM frame_events WHERE session_id=$1`, sessionID); err != nil {
			return fmt.Errorf("clear frame events: %w", err)
		}

		batch := &pgx.Batch{}
		for i, rec := range records {
			batch.Queue(`
				INSERT INTO frame_events (session_id, position, frame, points, passes, rebounds)
				VALUES ($1,$2,$3,$4,$5,$6)`,
				sessionID, i, rec.Frame, nonNil(rec.Points), rec.Passes, nonNil(rec.Rebounds),
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert frame events: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save frame records: %w", err)
	}
	return nil
}

// FrameRecords returns the stored events in their original order.
func (r *SessionRepository) FrameRecords(ctx context.Context, sessionID uuid.UUID) ([]entity.FrameEventRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT frame, points, passes, rebounds
		FROM frame_events WHERE session_id=$1 ORDER BY position`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query frame events: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.FrameEventRecord, error) {
		var rec entity.FrameEventRecord
		err := row.Scan(&rec.Frame, &rec.Points, &rec.Passes, &rec.Rebounds)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan frame events: %w", err)
	}
	return records, nil
}

// Ping lets the readiness probe check the pool.
func (r *SessionRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func nonNil(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}
