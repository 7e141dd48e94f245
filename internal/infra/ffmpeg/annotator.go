package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pavithragopisetty/GirlsNav4/internal/domain/entity"
	"go.uber.org/zap"
)

// Annotator burns a frame's detected events into a copy of the frame with the drawtext filter.
type Annotator struct {
	fontFile string
	logger   *zap.Logger
}

func NewAnnotator(fontFile string, logger *zap.Logger) *Annotator {
	return &Annotator{fontFile: fontFile, logger: logger}
}

func (a *Annotator) Annotate(ctx context.Context, frame entity.Frame, record entity.FrameEventRecord, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create annotation dir: %w", err)
	}

	labelPath := outputPath + ".labels.txt"
	if err := os.WriteFile(labelPath, []byte(annotationLabels(record)), 0644); err != nil {
		return fmt.Errorf("write labels: %w", err)
	}
	defer os.Remove(labelPath)

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", frame.Path,
		"-vf", drawTextFilter(labelPath, a.fontFile),
		"-frames:v", "1",
		outputPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg drawtext: %w, output: %s", err, tail(string(output), 1024))
	}

	a.logger.Debug("annotated frame saved", zap.String("frame", frame.ID), zap.String("path", outputPath))
	return nil
}

func annotationLabels(r entity.FrameEventRecord) string {
	return fmt.Sprintf("Points: %s\nPasses: %d\nRebounds: %s", compactJSON(r.Points), r.Passes, compactJSON(r.Rebounds))
}

func compactJSON(m map[string]int) string {
	if m == nil {
		m = map[string]int{}
	}
	b, _ := json.Marshal(m)
	return string(b)
}

func drawTextFilter(labelPath, fontFile string) string {
	opts := []string{
		"textfile=" + escapeFilterValue(labelPath),
		"expansion=none",
		"x=10",
		"y=30",
		"fontsize=20",
		"fontcolor=0x00FF00",
		"line_spacing=8",
		"borderw=2",
		"bordercolor=black",
	}
	if fontFile != "" {
		opts = append(opts, "fontfile="+escapeFilterValue(fontFile))
	}
	return "drawtext=" + strings.Join(opts, ":")
}

var filterEscaper = strings.NewReplacer(
	`\`, `\\`,
	`:`, `\:`,
	`'`, `\'`,
	`,`, `\,`,
	`;`, `\;`,
	`[`, `\[`,
	`]`, `\]`,
)

func escapeFilterValue(s string) string {
	return filterEscaper.Replace(s)
}
