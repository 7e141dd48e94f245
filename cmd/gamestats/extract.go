package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pavithragopisetty/GirlsNav4/internal/infra/ffmpeg"
	"go.uber.org/zap"
)

func runExtract() {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	video := fs.String("video", "", "Input video file (required)")
	out := fs.String("out", "frames", "Directory for the sampled frames")
	step := fs.Int("step", 30, "Keep every Nth frame")
	format := fs.String("format", "jpg", "Frame image format")
	fs.Parse(os.Args[1:])

	if *video == "" {
		fs.Usage()
		os.Exit(2)
	}
	if *step <= 0 {
		fatalf("-step must be positive, got %d", *step)
	}
	if err := os.MkdirAll(*out, 0755); err != nil {
		fatalf("create frames dir: %v", err)
	}

	log := newLogger(envOr("LOG_LEVEL", "info"))
	defer log.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	res, err := ffmpeg.NewExtractor(*step, *format, log).ExtractFrames(ctx, *video, *out)
	if err != nil {
		log.Error("frame extraction failed", zap.Error(err))
		os.Exit(1)
	}
	fmt.Printf("Extracted %d frames from %.1fs of video into %s\n", res.FrameCount, res.VideoDuration, *out)
}
