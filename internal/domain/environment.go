package domain

import (
	"fmt"
	"strings"
)

// Environment identifies an underwriting service deployment.
type Environment string

const (
	EnvironmentTest       Environment = "TEST"
	EnvironmentProduction Environment = "PRODUCTION"
)

// ParseEnvironment accepts the canonical names plus the short PROD alias.
func ParseEnvironment(raw string) (Environment, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "TEST":
		return EnvironmentTest, nil
	case "PRODUCTION", "PROD":
		return EnvironmentProduction, nil
	default:
		return "", fmt.Errorf("unknown environment %q", raw)
	}
}

// Label returns the human readable environment name.
func (e Environment) Label() string {
	switch e {
	case EnvironmentTest:
		return "Test"
	case EnvironmentProduction:
		return "Production"
	default:
		return string(e)
	}
}
