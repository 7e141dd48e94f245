package port

import (
	"context"

	"github.com/google/uuid"
	"github.com/pavithragopisetty/GirlsNav4/internal/domain/entity"
)

// TotalsCache returns (nil, nil) on a miss.
type TotalsCache interface {
	WriteTotals(ctx context.Context, sessionID uuid.UUID, totals *entity.GameTotals) error
	ReadTotals(ctx context.Context, sessionID uuid.UUID) (*entity.GameTotals, error)
	DeleteTotals(ctx context.Context, sessionID uuid.UUID) error
}
