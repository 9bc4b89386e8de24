package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.yaml.in/yaml/v3"

	"github.com/ekisa-team/stylus/internal/envvar"
	"github.com/ekisa-team/stylus/internal/xfs"
)

const embeddedSchemaURL = "stylus.v1.schema.json"

//go:embed stylus.v1.schema.json
var embeddedSchema string

// LoadDotEnv loads variables from .env files into the process environment.
// Missing files are ignored; variables already set are not overridden.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		_ = godotenv.Load()
		return
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// LoadAndValidate loads and validates the configuration. An empty schemaPath
// validates against the embedded schema.
func LoadAndValidate(path, schemaPath string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read config: %w", err)
	}

	return Parse(data, schemaPath)
}

// Parse validates and decodes configuration data.
func Parse(data []byte, schemaPath string) (*Config, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	schema, err := compileSchema(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("config: failed to compile schema: %w", err)
	}

	if err := schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("config: config validation failed: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal into Config struct: %w", err)
	}

	if err := applyEnv(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func compileSchema(schemaPath string) (*jsonschema.Schema, error) {
	if schemaPath != "" {
		return jsonschema.Compile(schemaPath)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(embeddedSchemaURL, strings.NewReader(embeddedSchema)); err != nil {
		return nil, err
	}
	return c.Compile(embeddedSchemaURL)
}

// applyEnv applies environment overrides and fills defaults.
func applyEnv(cfg *Config) error {
	if p := os.Getenv(envvar.StylusModelsPath); p != "" {
		cfg.Storage.ModelsDir = p
	}
	if cfg.Storage.ModelsDir == "" {
		cfg.Storage.ModelsDir = DefaultModelsPath()
	}
	cfg.Storage.ModelsDir = xfs.ExpandTilde(cfg.Storage.ModelsDir)

	for id, path := range cfg.Storage.Assets {
		cfg.Storage.Assets[id] = xfs.ExpandTilde(path)
	}

	port, err := envPort(envvar.StylusServerHTTPPort, cfg.Server.HTTPPort, DefaultHTTPPort())
	if err != nil {
		return err
	}
	cfg.Server.HTTPPort = port

	port, err = envPort(envvar.StylusServerGRPCPort, cfg.Server.GRPCPort, DefaultGRPCPort())
	if err != nil {
		return err
	}
	cfg.Server.GRPCPort = port

	return nil
}

// envPort resolves a port. Precedence: environment, configured value, fallback.
func envPort(name string, configured, fallback int) (int, error) {
	if v := os.Getenv(name); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 1 || port > 65535 {
			return 0, fmt.Errorf("config: invalid %s=%q", name, v)
		}
		return port, nil
	}
	if configured != 0 {
		return configured, nil
	}
	return fallback, nil
}
