package port

import (
	"context"

	"github.com/google/uuid"
	"github.com/pavithragopisetty/GirlsNav4/internal/domain/entity"
)

type SessionRepository interface {
	Create(ctx context.Context, session *entity.Session) error
	Update(ctx context.Context, session *entity.Session) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Session, error)
	SaveFrameRecords(ctx context.Context, sessionID uuid.UUID, records []entity.FrameEventRecord) error
	FrameRecords(ctx context.Context, sessionID uuid.UUID) ([]entity.FrameEventRecord, error)
}
