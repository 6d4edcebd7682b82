package env

import (
	"os"
	"strings"

	"github.com/ekisa-team/scribepod/internal/envvar"
)

// Environment is the deployment environment the process runs in.
type Environment string

const (
	// Development is the default environment.
	Development Environment = "development"

	// Production enables JSON logs and quieter defaults.
	Production Environment = "production"

	// Test is used by test binaries.
	Test Environment = "test"
)

// FromEnv reads the environment from SCRIBEPOD_ENV, defaulting to Development.
func FromEnv() Environment {
	return Parse(os.Getenv(envvar.ScribepodEnv))
}

// Parse converts a raw value into an Environment. Unknown values map to Development.
func Parse(s string) Environment {
	switch Environment(strings.ToLower(strings.TrimSpace(s))) {
	case Production, "prod":
		return Production
	case Test:
		return Test
	default:
		return Development
	}
}

// IsProduction reports whether e is Production.
func (e Environment) IsProduction() bool {
	return e == Production
}
