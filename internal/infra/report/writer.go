package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pavithragopisetty/GirlsNav4/internal/domain/entity"
	"github.com/pavithragopisetty/GirlsNav4/internal/domain/port"
	"go.uber.org/zap"
)

const (
	SummaryJSON = "summary.json"
	SummaryCSV  = "summary.csv"
	TotalsJSON  = "totals.json"
)

var csvHeader = []string{"frame", "points", "passes", "rebounds"}

// Writer persists a run's records and totals. Each artifact is written independently.
type Writer struct {
	logger *zap.Logger
}

func NewWriter(logger *zap.Logger) *Writer {
	return &Writer{logger: logger}
}

func (w *Writer) Write(records []entity.FrameEventRecord, totals *entity.GameTotals, outputDir string) *port.ReportResult {
	result := &port.ReportResult{Written: make(map[string]string)}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		err = fmt.Errorf("%w: create output dir: %v", entity.ErrWrite, err)
		w.logger.Error("failed to create output directory", zap.String("dir", outputDir), zap.Error(err))
		result.Errors = append(result.Errors, err)
		return result
	}

	artifacts := []struct {
		name  string
		write func(path string) error
	}{
		{SummaryJSON, func(path string) error { return writeJSON(path, nonNilRecords(records)) }},
		{SummaryCSV, func(path string) error { return writeCSV(path, records) }},
		{TotalsJSON, func(path string) error { return writeJSON(path, totals) }},
	}

	for _, a := range artifacts {
		path := filepath.Join(outputDir, a.name)
		if err := a.write(path); err != nil {
			err = fmt.Errorf("%w: %s: %v", entity.ErrWrite, a.name, err)
			w.logger.Error("failed to save artifact", zap.String("artifact", a.name), zap.Error(err))
			result.Errors = append(result.Errors, err)
			continue
		}
		result.Written[a.name] = path
		w.logger.Info("artifact saved", zap.String("artifact", a.name), zap.String("path", path))
	}

	return result
}

func nonNilRecords(records []entity.FrameEventRecord) []entity.FrameEventRecord {
	if records == nil {
		return []entity.FrameEventRecord{}
	}
	return records
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

func writeCSV(path string, records []entity.FrameEventRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		row, err := summaryRow(r)
		if err != nil {
			return fmt.Errorf("encode row %s: %w", r.Frame, err)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return f.Close()
}

// summaryRow encodes a record as frame, points JSON, passes, rebounds JSON.
func summaryRow(r entity.FrameEventRecord) ([]string, error) {
	points, err := encodeCounts(r.Points)
	if err != nil {
		return nil, err
	}
	rebounds, err := encodeCounts(r.Rebounds)
	if err != nil {
		return nil, err
	}
	return []string{r.Frame, points, strconv.Itoa(r.Passes), rebounds}, nil
}

func encodeCounts(m map[string]int) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
