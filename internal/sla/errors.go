package sla

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedTimestamp marks ticket timestamps that cannot be measured.
var ErrMalformedTimestamp = errors.New("malformed ticket timestamp")

// ConfigError describes SLA configuration that is missing or invalid.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("sla config %s: %s", e.Field, e.Reason)
}

// PolicyConfigError collects every problem found in a set of policy definitions.
type PolicyConfigError struct {
	Problems []string
}

func (e *PolicyConfigError) Error() string {
	return "sla policy config: " + strings.Join(e.Problems, "; ")
}
