package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/pavithragopisetty/GirlsNav4/internal/domain/entity"
	"github.com/pavithragopisetty/GirlsNav4/internal/infra/report"
	"github.com/pavithragopisetty/GirlsNav4/pkg/logger"
	"go.uber.org/zap"
)

var headingStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#d29922"))

// newLogger builds the stderr logger or exits.
func newLogger(level string) *zap.Logger {
	log, err := logger.New(level)
	if err != nil {
		fatalf("init logger: %v", err)
	}
	return log
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func printTotals(totals *entity.GameTotals) {
	p := report.Printer{Heading: func(s string) string { return headingStyle.Render(s) }}
	if err := p.Print(os.Stdout, totals); err != nil {
		fatalf("print report: %v", err)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "gamestats: "+format+"\n", args...)
	os.Exit(1)
}
