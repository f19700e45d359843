package rules

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dpdplabs/pii-scanner/internal/config"
)

func writeRuleFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write rule file: %v", err)
	}
	return path
}

func TestLoadDocument(t *testing.T) {
	t.Run("MissingFileIsConfigurationError", func(t *testing.T) {
		_, err := LoadDocument(filepath.Join(t.TempDir(), "absent.json"))
		if err == nil {
			t.Fatal("Expected error for missing rule file")
		}
		var cerr *ConfigurationError
		if !errors.As(err, &cerr) {
			t.Fatalf("Expected ConfigurationError, got %T", err)
		}
		if cerr.File == "" {
			t.Error("Error should name the offending file")
		}
	})

	t.Run("MalformedJSONIsConfigurationError", func(t *testing.T) {
		path := writeRuleFile(t, t.TempDir(), "broken.json", `{"entities": [`)
		_, err := LoadDocument(path)
		if err == nil {
			t.Fatal("Expected error for malformed JSON")
		}
		var cerr *ConfigurationError
		if !errors.As(err, &cerr) {
			t.Errorf("Expected ConfigurationError, got %T", err)
		}
	})

	t.Run("ParsesDocumentFields", func(t *testing.T) {
		path := writeRuleFile(t, t.TempDir(), "rules.json", `{
			"name": "india_base",
			"version": "1.2.0",
			"include_entities": ["IN_PAN"],
			"entities": {
				"IN_PAN": {"score_threshold": 0.55, "required_context": ["PAN"]}
			}
		}`)
		doc, err := LoadDocument(path)
		if err != nil {
			t.Fatalf("LoadDocument failed: %v", err)
		}
		if doc.Name != "india_base" || doc.Version != "1.2.0" {
			t.Errorf("Unexpected document identity: %q %q", doc.Name, doc.Version)
		}
		rule, ok := doc.Entities["IN_PAN"]
		if !ok {
			t.Fatal("Expected IN_PAN entity rule")
		}
		if rule.ScoreThreshold == nil || *rule.ScoreThreshold != 0.55 {
			t.Errorf("Unexpected score threshold: %v", rule.ScoreThreshold)
		}
		if rule.Enabled != nil {
			t.Error("Absent enabled key must stay nil so the base value is inherited")
		}
	})

	t.Run("ExplicitEmptyListStaysNonNil", func(t *testing.T) {
		path := writeRuleFile(t, t.TempDir(), "rules.json", `{
			"entities": {"IN_PAN": {"required_context": []}}
		}`)
		doc, err := LoadDocument(path)
		if err != nil {
			t.Fatalf("LoadDocument failed: %v", err)
		}
		rc := doc.Entities["IN_PAN"].RequiredContext
		if rc == nil {
			t.Fatal("Explicitly-empty list must be distinguishable from an absent key")
		}
		if len(*rc) != 0 {
			t.Errorf("Expected empty list, got %v", *rc)
		}
	})
}

func loaderFixture(t *testing.T) config.RuleEngineConfig {
	t.Helper()
	dir := t.TempDir()
	base := writeRuleFile(t, dir, "base_rules.json", `{
		"name": "india_base",
		"include_entities": ["IN_PAN", "PERSON"],
		"entities": {
			"PERSON": {"score_threshold": 0.3},
			"IN_PAN": {"score_threshold": 0.55}
		}
	}`)
	defaultEnv := writeRuleFile(t, dir, "default_rules.json", `{"name": "india_default"}`)
	dev := writeRuleFile(t, dir, "dev_rules.json", `{
		"name": "india_dev",
		"entities": {"PERSON": {"score_threshold": 0.1}}
	}`)

	return config.RuleEngineConfig{
		Enabled:             true,
		Region:              "india",
		EnvironmentVariable: "TEST_DPDP_RULES_ENV",
		DefaultEnvironment:  "default",
		BaseRulesFile:       base,
		EnvironmentRules: map[string]string{
			"default": defaultEnv,
			"dev":     dev,
		},
	}
}

func TestLoader(t *testing.T) {
	t.Run("LoadsDefaultEnvironment", func(t *testing.T) {
		loader := NewLoader(loaderFixture(t), nil, nil)
		rs, err := loader.Load("")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if rs.Environment != "default" {
			t.Errorf("Expected default environment, got %q", rs.Environment)
		}
		if rs.Region != "india" {
			t.Errorf("Expected region india, got %q", rs.Region)
		}
		if len(rs.FilesLoaded) != 2 {
			t.Errorf("Expected base and environment files recorded, got %v", rs.FilesLoaded)
		}
		if rs.Entities["PERSON"].ScoreThreshold != 0.3 {
			t.Errorf("Expected base PERSON threshold, got %f", rs.Entities["PERSON"].ScoreThreshold)
		}
	})

	t.Run("EnvironmentVariableSelectsRules", func(t *testing.T) {
		cfg := loaderFixture(t)
		t.Setenv(cfg.EnvironmentVariable, "dev")

		rs, err := NewLoader(cfg, nil, nil).Load("")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if rs.Environment != "dev" {
			t.Errorf("Expected dev environment, got %q", rs.Environment)
		}
		if rs.Entities["PERSON"].ScoreThreshold != 0.1 {
			t.Errorf("Expected dev PERSON threshold, got %f", rs.Entities["PERSON"].ScoreThreshold)
		}
	})

	t.Run("ExplicitEnvironmentBeatsVariable", func(t *testing.T) {
		cfg := loaderFixture(t)
		t.Setenv(cfg.EnvironmentVariable, "default")

		rs, err := NewLoader(cfg, nil, nil).Load("dev")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if rs.Environment != "dev" {
			t.Errorf("Expected explicit environment, got %q", rs.Environment)
		}
	})

	t.Run("UnmappedEnvironmentFails", func(t *testing.T) {
		_, err := NewLoader(loaderFixture(t), nil, nil).Load("staging")
		if err == nil {
			t.Fatal("Expected error for environment with no rule file mapping")
		}
		var cerr *ConfigurationError
		if !errors.As(err, &cerr) {
			t.Errorf("Expected ConfigurationError, got %T", err)
		}
	})

	t.Run("MissingBaseFileFails", func(t *testing.T) {
		cfg := loaderFixture(t)
		cfg.BaseRulesFile = filepath.Join(t.TempDir(), "gone.json")

		_, err := NewLoader(cfg, nil, nil).Load("")
		if err == nil {
			t.Fatal("Expected error for missing base rules file")
		}
	})

	t.Run("DisabledEngineYieldsEmptyRuleSet", func(t *testing.T) {
		cfg := loaderFixture(t)
		cfg.Enabled = false

		rs, err := NewLoader(cfg, nil, nil).Load("")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if len(rs.Entities) != 0 || len(rs.Recognizers) != 0 {
			t.Error("Disabled engine should carry no rules")
		}
	})
}
