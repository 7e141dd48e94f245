package usecase

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/pavithragopisetty/GirlsNav4/internal/domain/entity"
	"github.com/pavithragopisetty/GirlsNav4/internal/domain/port"
	"github.com/pavithragopisetty/GirlsNav4/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// AggregationResult is the outcome of one complete engine run.
type AggregationResult struct {
	Totals  *entity.GameTotals
	Records []entity.FrameEventRecord
	Skipped []error
}

func (r *AggregationResult) Analyzed() int { return len(r.Records) }

type FrameAggregator struct {
	classifier port.FrameClassifier
	annotator  port.FrameAnnotator
	workers    int
	logger     *zap.Logger
}

// NewFrameAggregator builds the engine. annotator may be nil; workers below 1 means sequential.
func NewFrameAggregator(classifier port.FrameClassifier, annotator port.FrameAnnotator, workers int, logger *zap.Logger) *FrameAggregator {
	if workers < 1 {
		workers = 1
	}
	return &FrameAggregator{
		classifier: classifier,
		annotator:  annotator,
		workers:    workers,
		logger:     logger,
	}
}

type frameOutcome struct {
	record *entity.FrameEventRecord
	err    error
	done   bool
}

// Run classifies every frame and folds the successful records in frame order.
// A frame that fails classification is skipped and never touches the totals.
// If ctx is cancelled before every frame was attempted, no result is returned and
// the error wraps entity.ErrIncomplete.
func (a *FrameAggregator) Run(ctx context.Context, frames []entity.Frame, annotatedDir string) (*AggregationResult, error) {
	ctx, span := otel.Tracer("usecase").Start(ctx, "FrameAggregator.Run")
	defer span.End()
	span.SetAttributes(
		attribute.Int("frames.total", len(frames)),
		attribute.Int("workers", a.workers),
	)

	ordered := slices.Clone(frames)
	slices.SortStableFunc(ordered, func(x, y entity.Frame) int { return cmp.Compare(x.Index, y.Index) })

	annotate := a.annotator != nil && annotatedDir != ""
	if annotate {
		if err := os.MkdirAll(annotatedDir, 0755); err != nil {
			a.logger.Warn("annotation disabled, cannot create directory", zap.String("dir", annotatedDir), zap.Error(err))
			annotate = false
		}
	}

	outcomes := make([]frameOutcome, len(ordered))

	var g errgroup.Group
	g.SetLimit(a.workers)
	for i, frame := range ordered {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			record, err := a.classify(ctx, frame)
			if err != nil && ctx.Err() != nil {
				// the call was cut short; the frame was never really attempted
				return nil
			}
			outcomes[i] = frameOutcome{record: record, err: err, done: true}
			if err == nil && annotate {
				a.annotateFrame(ctx, frame, *record, annotatedDir)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		attempted := 0
		for _, o := range outcomes {
			if o.done {
				attempted++
			}
		}
		a.logger.Warn("aggregation cancelled",
			zap.Int("frames_attempted", attempted),
			zap.Int("frames_total", len(ordered)),
		)
		span.SetAttributes(attribute.Bool("cancelled", true))
		return nil, fmt.Errorf("%w: %d of %d frames attempted: %w", entity.ErrIncomplete, attempted, len(ordered), err)
	}

	result := &AggregationResult{
		Totals:  entity.NewGameTotals(),
		Records: make([]entity.FrameEventRecord, 0, len(ordered)),
	}
	for i, o := range outcomes {
		frame := ordered[i]
		if o.err != nil {
			kind := entity.FailureKind(o.err)
			a.logger.Error("frame skipped",
				zap.String("frame", frame.ID),
				zap.Int("index", frame.Index),
				zap.String("kind", kind),
				zap.Error(o.err),
			)
			metrics.FramesClassifiedTotal.WithLabelValues(kind).Inc()
			result.Skipped = append(result.Skipped, o.err)
			continue
		}
		metrics.FramesClassifiedTotal.WithLabelValues("success").Inc()
		result.Records = append(result.Records, *o.record)
		result.Totals.Fold(*o.record)
	}

	span.SetAttributes(
		attribute.Int("frames.analyzed", len(result.Records)),
		attribute.Int("frames.skipped", len(result.Skipped)),
	)
	a.logger.Info("aggregation finished",
		zap.Int("frames_total", len(ordered)),
		zap.Int("frames_analyzed", len(result.Records)),
		zap.Int("frames_skipped", len(result.Skipped)),
		zap.Int("passes", result.Totals.Passes),
	)
	return result, nil
}

func (a *FrameAggregator) classify(ctx context.Context, frame entity.Frame) (*entity.FrameEventRecord, error) {
	start := time.Now()
	record, err := a.classifier.Classify(ctx, frame)
	metrics.ClassificationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	// the record is always labelled with the frame it came from
	record.Frame = frame.ID
	a.logger.Debug("frame classified",
		zap.String("frame", frame.ID),
		zap.Any("points", record.Points),
		zap.Int("passes", record.Passes),
		zap.Any("rebounds", record.Rebounds),
	)
	return record, nil
}

func (a *FrameAggregator) annotateFrame(ctx context.Context, frame entity.Frame, record entity.FrameEventRecord, dir string) {
	out := filepath.Join(dir, entity.AnnotatedName(frame.ID))
	if err := a.annotator.Annotate(ctx, frame, record, out); err != nil {
		a.logger.Warn("frame annotation failed", zap.String("frame", frame.ID), zap.Error(err))
	}
}
