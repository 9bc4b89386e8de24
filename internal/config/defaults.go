package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// DefaultHTTPPort returns the default HTTP port.
func DefaultHTTPPort() int {
	return 8080
}

// DefaultGRPCPort returns the default gRPC port.
func DefaultGRPCPort() int {
	return 9090
}

// DefaultConfigPath returns the default path for the stylus config directory.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "stylus", "config")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "stylus")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "stylus")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "stylus")
		}
		return filepath.Join(home, ".config", "stylus")
	}
}

// DefaultModelsPath returns the default path for the stylus models directory.
func DefaultModelsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "stylus", "models")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Local", "stylus", "models")
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "stylus", "models")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
			return filepath.Join(xdg, "stylus", "models")
		}
		return filepath.Join(home, ".cache", "stylus", "models")
	}
}
