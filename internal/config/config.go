package config

import (
	"errors"
	"strings"

	"github.com/ekisa-team/stylus/internal/backend"
	"github.com/ekisa-team/stylus/internal/resource"
)

// Config holds the main configuration for the application.
type Config struct {
	Models  map[string]ModelConfig `json:"models"            yaml:"models"`
	Version string                 `json:"version"           yaml:"version"`
	Storage StorageConfig          `json:"storage,omitempty" yaml:"storage,omitempty"`
	Server  ServerConfig           `json:"server,omitempty"  yaml:"server,omitempty"`
}

// StorageConfig holds configuration for the download cache and bundled assets.
type StorageConfig struct {
	Assets    map[string]string `json:"assets,omitempty"     yaml:"assets,omitempty"`
	ModelsDir string            `json:"models_dir,omitempty" yaml:"models_dir,omitempty"`
}

// ServerConfig holds the listening ports.
type ServerConfig struct {
	HTTPPort int `json:"http_port,omitempty" yaml:"http_port,omitempty"`
	GRPCPort int `json:"grpc_port,omitempty" yaml:"grpc_port,omitempty"`
}

// ModelConfig holds configuration for a specific model.
type ModelConfig struct {
	Params  map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	Source  SourceConfig   `json:"source"           yaml:"source"`
	Backend string         `json:"backend"          yaml:"backend"`
	Tags    []string       `json:"tags,omitempty"   yaml:"tags,omitempty"`
}

// SourceConfig wraps the model source. Exactly one field should be set.
type SourceConfig struct {
	HuggingFace *HuggingFaceSource `json:"huggingface,omitempty" yaml:"huggingface,omitempty"`
	URI         string             `json:"uri,omitempty"         yaml:"uri,omitempty"`
}

// HuggingFaceSource represents a file in a Hugging Face model repository.
type HuggingFaceSource struct {
	Repo     string `json:"repo"               yaml:"repo"`
	File     string `json:"file"               yaml:"file"`
	Revision string `json:"revision,omitempty" yaml:"revision,omitempty"`
	Token    string `json:"token,omitempty"    yaml:"token,omitempty"`
}

// GetSource returns the resource source of the model.
func (m *ModelConfig) GetSource() (resource.Source, error) {
	if hf := m.Source.HuggingFace; hf != nil {
		return resource.HuggingFaceSource{
			Repo:     hf.Repo,
			File:     hf.File,
			Revision: hf.Revision,
			Token:    hf.Token,
		}, nil
	}

	if strings.TrimSpace(m.Source.URI) != "" {
		return resource.ParseSource(m.Source.URI)
	}

	return nil, errors.New("no source configured for model")
}

// Provider returns the backend provider of the model.
func (m *ModelConfig) Provider() backend.Provider {
	return backend.Provider(m.Backend)
}
