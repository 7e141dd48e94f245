package main

import (
	"fmt"
	"os"

	"github.com/pavithragopisetty/GirlsNav4/internal/infra/report"
)

func runReport() {
	if len(os.Args) < 2 || os.Args[1] == "-h" || os.Args[1] == "--help" {
		fmt.Fprintln(os.Stderr, "usage: gamestats report <summary.csv>")
		os.Exit(2)
	}

	log := newLogger(envOr("LOG_LEVEL", "info"))
	defer log.Sync()

	totals, err := report.NewStatsReader(log).Recompute(os.Args[1])
	if err != nil {
		fatalf("%v", err)
	}
	printTotals(totals)
}
