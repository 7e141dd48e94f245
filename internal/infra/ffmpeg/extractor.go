package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pavithragopisetty/GirlsNav4/internal/domain/entity"
	"github.com/pavithragopisetty/GirlsNav4/internal/domain/port"
	"go.uber.org/zap"
)

// Extractor keeps every step-th decoded frame, writing frame_0000.<format>, frame_0001.<format>, ...
type Extractor struct {
	step   int
	format string
	logger *zap.Logger
}

func NewExtractor(step int, format string, logger *zap.Logger) *Extractor {
	if step <= 0 {
		step = 30
	}
	return &Extractor{step: step, format: format, logger: logger}
}

func (e *Extractor) ExtractFrames(ctx context.Context, videoPath string, outputDir string) (*port.FrameExtractionResult, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return nil, fmt.Errorf("%w: open video: %v", entity.ErrSourceUnavailable, err)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create frames dir: %w", err)
	}

	duration, err := e.getVideoDuration(ctx, videoPath)
	if err != nil {
		e.logger.Warn("could not get video duration", zap.Error(err))
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", e.extractArgs(videoPath, outputDir)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: ffmpeg error: %v, output: %s", entity.ErrSourceUnavailable, err, tail(string(output), 2048))
	}

	frames, err := ListFrames(outputDir, e.format)
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: no frames extracted from video", entity.ErrSourceUnavailable)
	}

	e.logger.Info("frames extracted",
		zap.Int("count", len(frames)),
		zap.Int("step", e.step),
		zap.Float64("video_duration", duration),
	)

	return &port.FrameExtractionResult{
		Frames:        frames,
		FrameCount:    len(frames),
		VideoDuration: duration,
	}, nil
}

func (e *Extractor) extractArgs(videoPath, outputDir string) []string {
	framePattern := filepath.Join(outputDir, fmt.Sprintf("frame_%%04d.%s", e.format))
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", videoPath,
		"-vf", fmt.Sprintf("select=not(mod(n\\,%d))", e.step),
		"-vsync", "vfr",
		"-start_number", "0",
	}
	if e.format == "jpg" || e.format == "jpeg" {
		args = append(args, "-q:v", "2")
	}
	return append(args, "-y", framePattern)
}

func (e *Extractor) getVideoDuration(ctx context.Context, videoPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	durationStr := strings.TrimSpace(string(output))
	duration, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return duration, nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
