package rules

import (
	"errors"
	"testing"
)

func TestResolveEnvironment(t *testing.T) {
	t.Run("ExplicitOverrideWins", func(t *testing.T) {
		t.Setenv("TEST_RULES_ENV", "qa")

		env, err := ResolveEnvironment("prod", "TEST_RULES_ENV", "dev", "default")
		if err != nil {
			t.Fatalf("ResolveEnvironment failed: %v", err)
		}
		if env != "prod" {
			t.Errorf("Expected explicit override to win, got %q", env)
		}
	})

	t.Run("EnvironmentVariableBeatsConfiguration", func(t *testing.T) {
		t.Setenv("TEST_RULES_ENV", "qa")

		env, err := ResolveEnvironment("", "TEST_RULES_ENV", "dev", "default")
		if err != nil {
			t.Fatalf("ResolveEnvironment failed: %v", err)
		}
		if env != "qa" {
			t.Errorf("Expected environment variable to win, got %q", env)
		}
	})

	t.Run("ConfiguredEnvironmentBeatsDefault", func(t *testing.T) {
		env, err := ResolveEnvironment("", "TEST_RULES_ENV_UNSET", "dev", "default")
		if err != nil {
			t.Fatalf("ResolveEnvironment failed: %v", err)
		}
		if env != "dev" {
			t.Errorf("Expected configured environment to win, got %q", env)
		}
	})

	t.Run("FallsBackToDefault", func(t *testing.T) {
		env, err := ResolveEnvironment("", "TEST_RULES_ENV_UNSET", "", "default")
		if err != nil {
			t.Fatalf("ResolveEnvironment failed: %v", err)
		}
		if env != "default" {
			t.Errorf("Expected default environment, got %q", env)
		}
	})

	t.Run("UnresolvedPlaceholderTreatedAsUnset", func(t *testing.T) {
		env, err := ResolveEnvironment("${RULES_ENV}", "", "   ", "default")
		if err != nil {
			t.Fatalf("ResolveEnvironment failed: %v", err)
		}
		if env != "default" {
			t.Errorf("Expected placeholder to be skipped, got %q", env)
		}
	})

	t.Run("NothingResolvesIsConfigurationError", func(t *testing.T) {
		_, err := ResolveEnvironment("", "", "", "")
		if err == nil {
			t.Fatal("Expected an error when no source yields an environment")
		}
		var cerr *ConfigurationError
		if !errors.As(err, &cerr) {
			t.Errorf("Expected ConfigurationError, got %T", err)
		}
	})
}
