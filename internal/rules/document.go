package rules

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dpdplabs/pii-scanner/internal/config"
	"github.com/dpdplabs/pii-scanner/internal/logger"
	"go.uber.org/zap"
)

// LoadDocument reads and parses one rule document from disk.
func LoadDocument(path string) (*RuleDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ConfigurationError{File: path, Message: "rule file not found"}
		}
		return nil, &ConfigurationError{File: path, Message: fmt.Sprintf("failed to read rule file: %v", err)}
	}

	var doc RuleDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigurationError{File: path, Message: fmt.Sprintf("malformed rule document: %v", err)}
	}
	return &doc, nil
}

// Loader performs the one-time rule resolution for a scan run: environment
// selection, document loading, and merge. It runs single-threaded before
// any scanning begins; the result is immutable afterwards.
type Loader struct {
	cfg    config.RuleEngineConfig
	merger *Merger
	logger *logger.Logger
}

// NewLoader creates a loader over the rule engine configuration. A nil
// compiler gets a private pattern cache.
func NewLoader(cfg config.RuleEngineConfig, compiler *Compiler, log *logger.Logger) *Loader {
	if log == nil {
		log = logger.NewNop()
	}
	return &Loader{
		cfg:    cfg,
		merger: NewMerger(compiler),
		logger: log,
	}
}

// Load resolves the active environment (explicitEnv, when non-empty, is the
// CLI override) and returns the merged rule set. Any failure is fatal: the
// scan must not proceed on a partially-resolved rule set.
func (l *Loader) Load(explicitEnv string) (*ResolvedRuleSet, error) {
	if !l.cfg.Enabled {
		l.logger.Info("Rule engine disabled, using built-in defaults")
		return NewEmptyRuleSet(), nil
	}

	environment, err := ResolveEnvironment(
		explicitEnv,
		l.cfg.EnvironmentVariable,
		l.cfg.Environment,
		l.cfg.DefaultEnvironment,
	)
	if err != nil {
		return nil, err
	}

	envFile, ok := l.cfg.EnvironmentRules[environment]
	if !ok || envFile == "" {
		return nil, &ConfigurationError{
			Field:   "rule_engine.environment_rules",
			Message: fmt.Sprintf("no rule file mapped for environment %q", environment),
		}
	}

	base, err := LoadDocument(l.cfg.BaseRulesFile)
	if err != nil {
		return nil, err
	}
	override, err := LoadDocument(envFile)
	if err != nil {
		return nil, err
	}

	rs, err := l.merger.Merge(base, override)
	if err != nil {
		return nil, err
	}

	rs.Region = l.cfg.Region
	rs.Environment = environment
	rs.FilesLoaded = []string{l.cfg.BaseRulesFile, envFile}

	l.logger.Info("Rule set resolved",
		zap.String("region", rs.Region),
		zap.String("environment", environment),
		zap.Strings("files", rs.FilesLoaded),
		zap.Int("entity_rules", len(rs.Entities)),
		zap.Int("recognizers", len(rs.Recognizers)),
		zap.Int("include_entities", len(rs.IncludeEntities)),
		zap.Int("exclude_entities", len(rs.ExcludeEntities)),
	)

	return rs, nil
}
