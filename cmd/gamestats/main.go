// Command gamestats runs the game analysis pipeline locally, without the queue or the API.
//
// Usage:
//
//	gamestats extract -video game.mp4 -out frames    Sample frames from a video
//	gamestats analyze -frames frames -out output     Classify frames and write reports
//	gamestats report output/summary.csv              Re-aggregate a summary and print it
package main

import (
	"fmt"
	"os"
)

const usage = `gamestats - youth basketball game stats from video

Usage:
  gamestats <command> [flags]

Commands:
  extract     Sample every Nth frame of a video into a directory (requires ffmpeg)
  analyze     Classify a frame directory and write summary.json, summary.csv, totals.json
  report      Re-aggregate a summary.csv and print the final stats

Environment:
  OPENAI_API_KEY          API key for the frame classifier (required for analyze)
  OPENAI_MODEL            Vision model (default: gpt-4o)
  CLASSIFIER_CONCURRENCY  Frames classified in parallel (default: 1)
  LOG_LEVEL               zap log level (default: info)

Run 'gamestats <command> -h' for command-specific help.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(0)
	}

	cmd := os.Args[1]
	// Strip the program name so flag sets see only their flags
	os.Args = os.Args[1:]

	switch cmd {
	case "extract":
		runExtract()
	case "analyze":
		runAnalyze()
	case "report":
		runReport()
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "gamestats: unknown command %q\n\n", cmd)
		fmt.Print(usage)
		os.Exit(1)
	}
}
