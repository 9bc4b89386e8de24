// Package cli implements the one-shot "stylus run" flow: load a model,
// forward a single input and report progress on the terminal.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/ekisa-team/stylus/internal/module"
	"github.com/ekisa-team/stylus/internal/resource"
)

// progressStep is the granularity of plain progress logging.
const progressStep = 0.25

// Job loads Source into Module and forwards Input once.
type Job struct {
	Module *module.Module[string, string]
	Source resource.Source
	Input  string
}

// Run executes the job, logging progress through slog.
func (j Job) Run(ctx context.Context) (string, error) {
	next := 0.0
	onProgress := func(p float64) {
		if p < next {
			return
		}
		slog.Info("Download progress", "source", j.Source.String(), "percent", int(p*100))
		for next <= p {
			next += progressStep
		}
	}

	if err := j.Module.Load(ctx, j.Source, onProgress); err != nil {
		return "", fmt.Errorf("load %s: %w", j.Source, err)
	}
	slog.Info("Model loaded", "source", j.Source.String())

	return j.Module.Forward(ctx, j.Input)
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
