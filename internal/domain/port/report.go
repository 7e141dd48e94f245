package port

import "github.com/pavithragopisetty/GirlsNav4/internal/domain/entity"

// ReportResult lists the artifacts that were written and the ones that failed.
type ReportResult struct {
	Written map[string]string
	Errors  []error
}

type ReportWriter interface {
	Write(records []entity.FrameEventRecord, totals *entity.GameTotals, outputDir string) *ReportResult
}
