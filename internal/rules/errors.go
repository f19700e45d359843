package rules

import (
	"fmt"
	"strings"
)

// ConfigurationError reports missing or invalid rule engine configuration:
// an unresolvable environment, a malformed document, an inconsistent
// min/max length, or an unknown normalization mode. It is fatal to the
// resolution phase.
type ConfigurationError struct {
	File    string
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	parts := make([]string, 0, 3)
	if e.File != "" {
		parts = append(parts, e.File)
	}
	if e.Field != "" {
		parts = append(parts, e.Field)
	}
	parts = append(parts, e.Message)
	return "configuration error: " + strings.Join(parts, ": ")
}

// RuleCompilationError reports a regex that failed to compile, naming the
// entity type and the offending pattern. A malformed pattern fails the
// whole load; a silently dropped recognizer would mean a PII type silently
// stops being detected.
type RuleCompilationError struct {
	Entity  string
	Pattern string
	Err     error
}

func (e *RuleCompilationError) Error() string {
	return fmt.Sprintf("rule compilation failed for entity %q: pattern %q: %v", e.Entity, e.Pattern, e.Err)
}

func (e *RuleCompilationError) Unwrap() error {
	return e.Err
}
