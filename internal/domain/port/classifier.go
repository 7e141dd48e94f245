package port

import (
	"context"

	"github.com/pavithragopisetty/GirlsNav4/internal/domain/entity"
)

// FrameClassifier returns errors wrapping entity.ErrTransport or entity.ErrParse.
type FrameClassifier interface {
	Classify(ctx context.Context, frame entity.Frame) (*entity.FrameEventRecord, error)
}

type FrameAnnotator interface {
	Annotate(ctx context.Context, frame entity.Frame, record entity.FrameEventRecord, outputPath string) error
}
