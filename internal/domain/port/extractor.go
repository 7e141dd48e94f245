package port

import (
	"context"

	"github.com/pavithragopisetty/GirlsNav4/internal/domain/entity"
)

type FrameExtractionResult struct {
	Frames        []entity.Frame
	FrameCount    int
	VideoDuration float64
}

type FrameExtractor interface {
	ExtractFrames(ctx context.Context, videoPath string, outputDir string) (*FrameExtractionResult, error)
}
