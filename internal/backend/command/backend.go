// Package command runs style-transfer models through an external binary.
//
// Each Generate call runs
//
//	<binary> --model <path> --input <input> --output <file> [args...]
//
// and returns the path of the output file.
package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ekisa-team/stylus/internal/backend"
	"github.com/ekisa-team/stylus/internal/errcat"
	"github.com/ekisa-team/stylus/internal/mapsafe"
	"github.com/ekisa-team/stylus/internal/runner"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultOutputExt = ".png"
)

// Config holds the command backend parameters.
type Config struct {
	Binary    string
	OutputDir string
	OutputExt string
	Args      []string
	Timeout   time.Duration
}

// ConfigFromParams reads a Config from backend parameters.
func ConfigFromParams(params map[string]any) (Config, error) {
	cfg := Config{
		Binary:    mapsafe.Get(params, "binary", ""),
		OutputDir: mapsafe.Get(params, "output_dir", os.TempDir()),
		OutputExt: mapsafe.Get(params, "output_ext", defaultOutputExt),
		Args:      mapsafe.Strings(params, "args"),
		Timeout:   mapsafe.Duration(params, "timeout", defaultTimeout),
	}

	if cfg.Binary == "" {
		return Config{}, fmt.Errorf("%w: command backend requires \"binary\"", backend.ErrInvalidParams)
	}
	return cfg, nil
}

// Builder returns the backend.Builder for command models.
func Builder(params map[string]any) (backend.Factory, error) {
	cfg, err := ConfigFromParams(params)
	if err != nil {
		return nil, err
	}

	executor, err := runner.NewExecutor(cfg.Binary, cfg.Timeout)
	if err != nil {
		return nil, err
	}

	return NewFactory(executor, cfg), nil
}

// NewFactory returns a factory producing handles that run executor.
func NewFactory(executor *runner.Executor, cfg Config) backend.Factory {
	return func(path string) (backend.Handle, error) {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("command: model file: %w", err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("command: model path %s is a directory", path)
		}

		return &Handle{
			executor:  executor,
			modelPath: path,
			cfg:       cfg,
		}, nil
	}
}

// Handle is a model run by an external binary.
type Handle struct {
	executor  *runner.Executor
	modelPath string
	cfg       Config
}

// Generate runs the binary on input and returns the output file path.
func (h *Handle) Generate(ctx context.Context, input string) (string, error) {
	if input == "" {
		return "", errcat.Wrap(errcat.InvalidUserInput, errors.New("empty input"))
	}

	if err := os.MkdirAll(h.cfg.OutputDir, 0o755); err != nil {
		return "", errcat.Wrap(errcat.FileWriteFailed, err)
	}
	output := filepath.Join(h.cfg.OutputDir, "stylus-"+uuid.NewString()+h.cfg.OutputExt)

	args := h.buildArgs(input, output)
	_, stderr, err := h.executor.Execute(ctx, args, nil)
	if err != nil {
		return "", fmt.Errorf("execution failed: %w\nstderr: %s", err, stderr)
	}

	if _, err := os.Stat(output); err != nil {
		return "", errcat.Wrap(errcat.FileWriteFailed, fmt.Errorf("binary produced no output at %s: %w", output, err))
	}

	return output, nil
}

// buildArgs builds the command-line arguments.
func (h *Handle) buildArgs(input, output string) []string {
	args := []string{
		"--model", h.modelPath,
		"--input", input,
		"--output", output,
	}
	return append(args, h.cfg.Args...)
}

// Close cleans up resources. The command backend holds none between calls.
func (h *Handle) Close() error {
	return nil
}
