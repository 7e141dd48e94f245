package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pavithragopisetty/GirlsNav4/internal/domain/entity"
	"go.uber.org/zap"
)

// RecomputeStats counts what happened while re-reading a summary.
type RecomputeStats struct {
	Rows        int
	CellErrors  int
	RowsSkipped int
}

// StatsReader rebuilds GameTotals from a summary.csv written by Writer.
type StatsReader struct {
	logger *zap.Logger
}

func NewStatsReader(logger *zap.Logger) *StatsReader {
	return &StatsReader{logger: logger}
}

func (r *StatsReader) Recompute(path string) (*entity.GameTotals, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open summary: %w", err)
	}
	defer f.Close()

	totals, stats, err := r.RecomputeFrom(f)
	if err != nil {
		return nil, err
	}
	r.logger.Info("summary re-aggregated",
		zap.String("path", path),
		zap.Int("rows", stats.Rows),
		zap.Int("cell_errors", stats.CellErrors),
		zap.Int("rows_skipped", stats.RowsSkipped),
	)
	return totals, nil
}

// RecomputeFrom folds every valid cell. An invalid cell is logged and contributes nothing;
// the other cells of its row are still folded.
func (r *StatsReader) RecomputeFrom(src io.Reader) (*entity.GameTotals, *RecomputeStats, error) {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := columnIndex(header)
	if err != nil {
		return nil, nil, err
	}

	totals := entity.NewGameTotals()
	stats := &RecomputeStats{}

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			stats.RowsSkipped++
			r.logger.Error("malformed summary row", zap.Int("line", parseErr.Line), zap.Error(err))
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read summary: %w", err)
		}

		stats.Rows++
		if len(row) < len(csvHeader) {
			stats.RowsSkipped++
			r.logger.Error("summary row has too few fields", zap.Int("fields", len(row)), zap.Strings("row", row))
			continue
		}

		frame := row[cols["frame"]]
		log := r.logger.With(zap.String("frame", frame))

		if points, err := ParseCountsCell(row[cols["points"]]); err != nil {
			stats.CellErrors++
			log.Error("error parsing points cell", zap.Error(err))
		} else {
			totals.AddPoints(points)
		}

		if rebounds, err := ParseCountsCell(row[cols["rebounds"]]); err != nil {
			stats.CellErrors++
			log.Error("error parsing rebounds cell", zap.Error(err))
		} else {
			totals.AddRebounds(rebounds)
		}

		if passes, err := ParsePassesCell(row[cols["passes"]]); err != nil {
			stats.CellErrors++
			log.Error("error parsing passes cell", zap.Error(err))
		} else {
			totals.AddPasses(passes)
		}
	}

	return totals, stats, nil
}

func columnIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, want := range csvHeader {
		if _, ok := cols[want]; !ok {
			return nil, fmt.Errorf("summary header missing column %q", want)
		}
	}
	return cols, nil
}

// ParseCountsCell decodes a JSON object of jersey to non-negative count. An empty cell is {}.
func ParseCountsCell(cell string) (map[string]int, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return map[string]int{}, nil
	}

	var counts map[string]int
	if err := json.Unmarshal([]byte(cell), &counts); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrParse, err)
	}
	if counts == nil {
		return nil, fmt.Errorf("%w: not a JSON object: %q", entity.ErrParse, cell)
	}
	for jersey, n := range counts {
		if n < 0 {
			return nil, fmt.Errorf("%w: negative count for jersey %q", entity.ErrParse, jersey)
		}
	}
	return counts, nil
}

// ParsePassesCell accepts only a plain run of ASCII digits, surrounding spaces ignored.
func ParsePassesCell(cell string) (int, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, fmt.Errorf("%w: empty passes", entity.ErrParse)
	}
	for _, c := range cell {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: passes %q is not a non-negative integer", entity.ErrParse, cell)
		}
	}
	n, err := strconv.Atoi(cell)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", entity.ErrParse, err)
	}
	return n, nil
}
