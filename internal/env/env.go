// Package env resolves the runtime environment.
package env

import (
	"os"
	"strings"

	"github.com/ekisa-team/stylus/internal/envvar"
)

// Environment is the runtime environment.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// FromEnv reads the environment from STYLUS_ENV. Anything other than
// "production" (case-insensitive) is development.
func FromEnv() Environment {
	return Parse(os.Getenv(envvar.StylusEnv))
}

// Parse converts a string into an Environment.
func Parse(s string) Environment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "production", "prod":
		return Production
	default:
		return Development
	}
}

// IsProduction reports whether e is the production environment.
func (e Environment) IsProduction() bool {
	return e == Production
}

func (e Environment) String() string {
	return string(e)
}
