package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pavithragopisetty/GirlsNav4/internal/domain/entity"
	"github.com/pavithragopisetty/GirlsNav4/internal/domain/port"
	"github.com/pavithragopisetty/GirlsNav4/internal/infra/config"
	"github.com/pavithragopisetty/GirlsNav4/internal/infra/ffmpeg"
	"github.com/pavithragopisetty/GirlsNav4/internal/infra/openai"
	"github.com/pavithragopisetty/GirlsNav4/internal/infra/report"
	"github.com/pavithragopisetty/GirlsNav4/internal/usecase"
	"go.uber.org/zap"
)

func runAnalyze() {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	framesDir := fs.String("frames", "frames", "Directory of sampled frames")
	out := fs.String("out", "output", "Directory for summary.json, summary.csv and totals.json")
	annotate := fs.Bool("annotate", false, "Write annotated copies of classified frames (requires ffmpeg)")
	fs.Parse(os.Args[1:])

	cfg, err := config.Load()
	if err != nil {
		fatalf("load config: %v", err)
	}

	log := newLogger(cfg.LogLevel)
	defer log.Sync()

	frames, err := ffmpeg.ListFrames(*framesDir, cfg.FrameFormat)
	if err != nil {
		fatalf("%v", err)
	}
	if len(frames) == 0 {
		fmt.Fprintf(os.Stderr, "gamestats: no .%s frames in %s\n", cfg.FrameFormat, *framesDir)
	}

	classifier, err := openai.NewClassifier(openai.ClientConfig{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		Model:      cfg.OpenAIModel,
		MaxTokens:  cfg.OpenAIMaxTokens,
		Timeout:    cfg.ClassifierTimeout,
		RatePerSec: cfg.ClassifierRatePerSec,
	}, log)
	if err != nil {
		fatalf("create classifier: %v", err)
	}

	var annotator port.FrameAnnotator
	annotatedDir := ""
	if *annotate {
		annotator = ffmpeg.NewAnnotator(cfg.FontFile, log)
		annotatedDir = filepath.Join(*out, "annotated")
	}

	ctx, cancel := signalContext()
	defer cancel()

	engine := usecase.NewFrameAggregator(classifier, annotator, cfg.ClassifierConcurrency, log)
	result, err := engine.Run(ctx, frames, annotatedDir)
	if err != nil {
		if errors.Is(err, entity.ErrIncomplete) {
			fatalf("analysis interrupted, nothing written: %v", err)
		}
		fatalf("analysis failed: %v", err)
	}

	written := report.NewWriter(log).Write(result.Records, result.Totals, *out)
	for _, werr := range written.Errors {
		fmt.Fprintf(os.Stderr, "gamestats: %v\n", werr)
	}

	fmt.Printf("Analyzed %d of %d frames (%d skipped)\n", result.Analyzed(), len(frames), len(result.Skipped))
	for _, name := range []string{report.SummaryJSON, report.SummaryCSV, report.TotalsJSON} {
		if path, ok := written.Written[name]; ok {
			fmt.Printf("  wrote %s\n", path)
		}
	}
	fmt.Println()

	csvPath, ok := written.Written[report.SummaryCSV]
	if !ok {
		printTotals(result.Totals)
		os.Exit(1)
	}
	totals, err := report.NewStatsReader(log).Recompute(csvPath)
	if err != nil {
		log.Warn("re-aggregating summary failed, printing in-memory totals", zap.Error(err))
		totals = result.Totals
	}
	printTotals(totals)
}
