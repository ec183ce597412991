// Package cmd contains the DocChat command line entry points.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/docchat/docchat/internal/log"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

// Execute is the main entry point. It routes the first argument to a
// command; the default is running the server.
func Execute() error {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			printVersion()
			return nil
		case "help", "--help", "-h":
			printHelp()
			return nil
		case "serve":
			// fall through to default behavior
		default:
			printHelp()
			return fmt.Errorf("unknown command %q", os.Args[1])
		}
	}

	logger := initLogger()
	slog.SetDefault(logger)

	if err := checkRequiredEnv(); err != nil {
		return err
	}

	return runServe(logger)
}

// initLogger builds the process logger. DEBUG in the environment (any
// value) enables debug level; DOCCHAT_LOG_JSON switches to JSON output.
func initLogger() log.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	if os.Getenv("DOCCHAT_LOG_JSON") != "" {
		cfg.JSON = true
	}
	return log.New(cfg)
}

// checkRequiredEnv verifies required environment variables.
func checkRequiredEnv() error {
	if os.Getenv("GEMINI_API_KEY") == "" {
		fmt.Fprintln(os.Stderr, "Error: GEMINI_API_KEY environment variable not set")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "DocChat requires a Gemini API key to embed and answer questions.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "To set your API key:")
		fmt.Fprintln(os.Stderr, "  export GEMINI_API_KEY=your-api-key")
		return fmt.Errorf("missing GEMINI_API_KEY")
	}
	return nil
}

func printVersion() {
	fmt.Printf("DocChat %s\n", AppVersion)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}

func printHelp() {
	fmt.Println(`DocChat - ask questions about your PDF documents

Usage:
  docchat [command]

Commands:
  serve     Start the HTTP server (default)
  version   Show version information
  help      Show this help

Environment:
  GEMINI_API_KEY     Gemini API key (required)
  DATABASE_URL       PostgreSQL connection URL
  DOCCHAT_ADDR       HTTP listen address (overrides config)
  DEBUG              Enable debug logging
  DOCCHAT_LOG_JSON   JSON log output`)
}
