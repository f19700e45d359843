package rules

import (
	"os"
	"strings"
)

// ResolveEnvironment determines the active environment name. Precedence,
// first non-empty wins: the explicit caller-supplied value, the process
// environment variable named by envVarName, the configured environment
// literal, the configured default environment.
func ResolveEnvironment(explicit, envVarName, environment, defaultEnvironment string) (string, error) {
	candidates := []string{explicit}
	if envVarName = strings.TrimSpace(envVarName); envVarName != "" {
		candidates = append(candidates, os.Getenv(envVarName))
	}
	candidates = append(candidates, environment, defaultEnvironment)

	for _, candidate := range candidates {
		if name := normalizeEnvironmentName(candidate); name != "" {
			return name, nil
		}
	}

	return "", &ConfigurationError{
		Field:   "rule_engine.environment",
		Message: "no environment name resolved from CLI override, environment variable, or configuration",
	}
}

// normalizeEnvironmentName trims the value and treats unresolved ${VAR}
// placeholders as unset.
func normalizeEnvironmentName(value string) string {
	normalized := strings.TrimSpace(value)
	if strings.HasPrefix(normalized, "${") && strings.HasSuffix(normalized, "}") {
		return ""
	}
	return normalized
}
