package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/ekisa-team/stylus/internal/backend"
	"github.com/ekisa-team/stylus/internal/backend/command"
	"github.com/ekisa-team/stylus/internal/backend/wasm"
	"github.com/ekisa-team/stylus/internal/config"
	"github.com/ekisa-team/stylus/internal/env"
	"github.com/ekisa-team/stylus/internal/envvar"
	"github.com/ekisa-team/stylus/internal/logger"
)

const usage = `usage: stylus <command> [flags]

commands:
  serve   load the configured models and serve them over HTTP and gRPC
  run     load a single model and forward one input
`

func main() {
	config.LoadDotEnv()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		setupLogger(true)
		err = serve(os.Args[2:])
	case "run":
		setupLogger(false)
		err = run(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		slog.Error("stylus failed", "error", err)
		os.Exit(1)
	}
}

func setupLogger(logToFile bool) {
	logFile := os.Getenv(envvar.StylusLogFile)
	if logFile == "" {
		logFile = "logs/stylus.log"
	}

	slog.SetDefault(
		logger.New(env.FromEnv(),
			logger.WithLogToFile(logToFile),
			logger.WithLogFile(logFile),
		),
	)
}

func newBackends() *backend.Registry {
	backends := backend.NewRegistry()
	// Registration only fails on duplicates.
	_ = backends.Register(backend.ProviderWASM, wasm.Builder)
	_ = backends.Register(backend.ProviderCommand, command.Builder)
	return backends
}
