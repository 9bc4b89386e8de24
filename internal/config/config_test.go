package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/stylus/internal/backend"
	"github.com/ekisa-team/stylus/internal/envvar"
	"github.com/ekisa-team/stylus/internal/resource"
)

const validConfig = `
version: "1"
storage:
  models_dir: /tmp/stylus-models
  assets:
    candy: /opt/stylus/candy.wasm
server:
  http_port: 8181
models:
  candy:
    backend: wasm
    source:
      uri: asset://candy
    params:
      memory_limit_pages: 256
  mosaic:
    backend: command
    tags: [style]
    source:
      huggingface:
        repo: ekisa/fast-style
        file: mosaic.onnx
        revision: main
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "stylus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAndValidate(t *testing.T) {
	t.Setenv(envvar.StylusModelsPath, "")
	t.Setenv(envvar.StylusServerHTTPPort, "")
	t.Setenv(envvar.StylusServerGRPCPort, "")

	cfg, err := LoadAndValidate(writeConfig(t, validConfig), "")
	require.NoError(t, err)

	assert.Equal(t, "1", cfg.Version)
	assert.Equal(t, "/tmp/stylus-models", cfg.Storage.ModelsDir)
	assert.Equal(t, 8181, cfg.Server.HTTPPort)
	assert.Equal(t, DefaultGRPCPort(), cfg.Server.GRPCPort)
	require.Len(t, cfg.Models, 2)

	candy := cfg.Models["candy"]
	assert.Equal(t, backend.ProviderWASM, candy.Provider())
	src, err := candy.GetSource()
	require.NoError(t, err)
	assert.Equal(t, resource.AssetSource{ID: "candy"}, src)

	mosaic := cfg.Models["mosaic"]
	assert.Equal(t, backend.ProviderCommand, mosaic.Provider())
	assert.Equal(t, []string{"style"}, mosaic.Tags)
	src, err = mosaic.GetSource()
	require.NoError(t, err)
	assert.Equal(t, resource.HuggingFaceSource{Repo: "ekisa/fast-style", File: "mosaic.onnx", Revision: "main"}, src)
}

func TestLoadAndValidate_EnvOverrides(t *testing.T) {
	t.Setenv(envvar.StylusModelsPath, "/var/cache/stylus")
	t.Setenv(envvar.StylusServerHTTPPort, "9000")
	t.Setenv(envvar.StylusServerGRPCPort, "9001")

	cfg, err := LoadAndValidate(writeConfig(t, validConfig), "")
	require.NoError(t, err)

	assert.Equal(t, "/var/cache/stylus", cfg.Storage.ModelsDir)
	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, 9001, cfg.Server.GRPCPort)
}

func TestLoadAndValidate_InvalidPortEnv(t *testing.T) {
	t.Setenv(envvar.StylusServerHTTPPort, "not-a-port")

	_, err := LoadAndValidate(writeConfig(t, validConfig), "")
	assert.ErrorContains(t, err, envvar.StylusServerHTTPPort)
}

func TestLoadAndValidate_SchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "missing version", content: "models: {}\n"},
		{name: "unknown backend", content: "version: \"1\"\nmodels:\n  x:\n    backend: onnx\n    source: {uri: /m}\n"},
		{name: "missing source", content: "version: \"1\"\nmodels:\n  x:\n    backend: wasm\n"},
		{name: "two sources", content: "version: \"1\"\nmodels:\n  x:\n    backend: wasm\n    source:\n      uri: /m\n      huggingface: {repo: a/b, file: c}\n"},
		{name: "bad repo", content: "version: \"1\"\nmodels:\n  x:\n    backend: wasm\n    source:\n      huggingface: {repo: nope, file: c}\n"},
		{name: "unknown key", content: "version: \"1\"\nmodels: {}\nextra: true\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadAndValidate(writeConfig(t, tt.content), "")
			assert.ErrorContains(t, err, "validation failed")
		})
	}
}

func TestLoadAndValidate_Errors(t *testing.T) {
	_, err := LoadAndValidate(filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.ErrorContains(t, err, "failed to read config")

	_, err = LoadAndValidate(writeConfig(t, "version: [\n"), "")
	assert.ErrorContains(t, err, "invalid YAML")
}

func TestLoadAndValidate_ExternalSchema(t *testing.T) {
	schema := filepath.Join(t.TempDir(), "schema.json")
	require.NoError(t, os.WriteFile(schema, []byte(`{"type":"object","required":["owner"]}`), 0o644))

	_, err := LoadAndValidate(writeConfig(t, validConfig), schema)
	assert.ErrorContains(t, err, "validation failed")
}

func TestGetSource_Empty(t *testing.T) {
	m := ModelConfig{Backend: "wasm"}
	_, err := m.GetSource()
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("STYLUS_TEST_DOTENV=loaded\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("STYLUS_TEST_DOTENV") })

	LoadDotEnv(path, filepath.Join(dir, "missing.env"))
	assert.Equal(t, "loaded", os.Getenv("STYLUS_TEST_DOTENV"))
}
