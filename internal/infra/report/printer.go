package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/pavithragopisetty/GirlsNav4/internal/domain/entity"
)

// Printer renders the three-section final stats report.
type Printer struct {
	// Heading decorates section titles; nil prints them as is.
	Heading func(string) string
}

func (p Printer) heading(s string) string {
	if p.Heading == nil {
		return s
	}
	return p.Heading(s)
}

func (p Printer) Print(w io.Writer, totals *entity.GameTotals) error {
	if totals == nil {
		totals = entity.NewGameTotals()
	}
	pw := &printWriter{w: w}

	pw.printf("\n%s\n", p.heading("🏀 Final Game Stats from Video Analysis"))

	pw.printf("\n%s\n", p.heading("1️⃣ Total Points Scored by Jersey:"))
	if len(totals.Points) == 0 {
		pw.printf("   - No points detected.\n")
	}
	for _, jersey := range SortedJerseys(totals.Points) {
		pw.printf("   - Jersey #%s: %d point(s)\n", jersey, totals.Points[jersey])
	}

	pw.printf("\n%s\n", p.heading("2️⃣ Total Passes:"))
	pw.printf("   - %d pass(es) detected.\n", totals.Passes)

	pw.printf("\n%s\n", p.heading("3️⃣ Total Rebounds by Jersey:"))
	if len(totals.Rebounds) == 0 {
		pw.printf("   - No rebounds detected.\n")
	}
	for _, jersey := range SortedJerseys(totals.Rebounds) {
		pw.printf("   - Jersey #%s: %d rebound(s)\n", jersey, totals.Rebounds[jersey])
	}

	return pw.err
}

// PrintTotals prints the report without decoration.
func PrintTotals(w io.Writer, totals *entity.GameTotals) error {
	return Printer{}.Print(w, totals)
}

// SortedJerseys orders numeric jerseys numerically ("4" before "23") and the rest lexically after them.
func SortedJerseys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		switch {
		case errA == nil && errB == nil:
			if a != b {
				return a < b
			}
			return keys[i] < keys[j]
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
	return keys
}

type printWriter struct {
	w   io.Writer
	err error
}

func (p *printWriter) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
