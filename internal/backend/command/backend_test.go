package command

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/stylus/internal/backend"
	"github.com/ekisa-team/stylus/internal/errcat"
	"github.com/ekisa-team/stylus/internal/runner"
)

type MockCommandRunner struct {
	mock.Mock
}

func (m *MockCommandRunner) Run(ctx context.Context, name string, args []string, stdin io.Reader) (stdout, stderr []byte, err error) {
	a := m.Called(ctx, name, args, stdin)
	out, _ := a.Get(0).([]byte)
	errOut, _ := a.Get(1).([]byte)
	return out, errOut, a.Error(2)
}

func modelFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "candy.onnx")
	require.NoError(t, os.WriteFile(path, []byte("model"), 0o644))
	return path
}

// argValue returns the value following flag in args.
func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func TestConfigFromParams(t *testing.T) {
	cfg, err := ConfigFromParams(map[string]any{
		"binary":     "/usr/local/bin/stylize",
		"timeout":    "2m",
		"args":       []any{"--tile", 256},
		"output_ext": ".jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/stylize", cfg.Binary)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)
	assert.Equal(t, []string{"--tile", "256"}, cfg.Args)
	assert.Equal(t, ".jpg", cfg.OutputExt)

	_, err = ConfigFromParams(map[string]any{})
	assert.ErrorIs(t, err, backend.ErrInvalidParams)
}

func TestFactory_RejectsMissingModel(t *testing.T) {
	factory := NewFactory(runner.NewExecutorWithRunner("/bin/stylize", time.Second, new(MockCommandRunner)), Config{})

	_, err := factory("")
	assert.Error(t, err)

	_, err = factory(t.TempDir())
	assert.ErrorContains(t, err, "is a directory")
}

func TestHandle_Generate(t *testing.T) {
	model := modelFile(t)
	outDir := t.TempDir()
	r := new(MockCommandRunner)

	r.On("Run", mock.Anything, "/bin/stylize", mock.MatchedBy(func(args []string) bool {
		return argValue(args, "--model") == model &&
			argValue(args, "--input") == "/tmp/img.png" &&
			strings.HasPrefix(argValue(args, "--output"), outDir) &&
			args[len(args)-1] == "--fast"
	}), nil).
		Run(func(a mock.Arguments) {
			out := argValue(a.Get(2).([]string), "--output")
			require.NoError(t, os.WriteFile(out, []byte("png"), 0o644))
		}).
		Return([]byte(""), []byte(""), nil).Once()

	cfg := Config{OutputDir: outDir, OutputExt: ".png", Args: []string{"--fast"}}
	factory := NewFactory(runner.NewExecutorWithRunner("/bin/stylize", time.Second, r), cfg)

	h, err := factory(model)
	require.NoError(t, err)

	out, err := h.Generate(context.Background(), "/tmp/img.png")
	require.NoError(t, err)
	assert.Equal(t, ".png", filepath.Ext(out))
	assert.FileExists(t, out)
	assert.NoError(t, h.Close())
	r.AssertExpectations(t)
}

func TestHandle_GenerateErrors(t *testing.T) {
	model := modelFile(t)
	r := new(MockCommandRunner)
	r.On("Run", mock.Anything, "/bin/stylize", mock.Anything, nil).
		Return(nil, []byte("segfault"), assert.AnError).Once()
	r.On("Run", mock.Anything, "/bin/stylize", mock.Anything, nil).
		Return(nil, nil, nil).Once()

	factory := NewFactory(runner.NewExecutorWithRunner("/bin/stylize", time.Second, r), Config{OutputDir: t.TempDir()})
	h, err := factory(model)
	require.NoError(t, err)

	_, err = h.Generate(context.Background(), "")
	assert.ErrorIs(t, err, errcat.New(errcat.InvalidUserInput))

	_, err = h.Generate(context.Background(), "/tmp/img.png")
	assert.ErrorIs(t, err, assert.AnError)
	assert.ErrorContains(t, err, "segfault")

	// The binary exits cleanly but writes nothing.
	_, err = h.Generate(context.Background(), "/tmp/img.png")
	assert.ErrorIs(t, err, errcat.New(errcat.FileWriteFailed))
}
