package config

import "time"

// Config represents the main configuration structure
type Config struct {
	Scan       ScanConfig       `yaml:"scan" mapstructure:"scan"`
	RuleEngine RuleEngineConfig `yaml:"rule_engine" mapstructure:"rule_engine"`
	Detector   DetectorConfig   `yaml:"detector" mapstructure:"detector"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
}

// ScanConfig controls file discovery and reading
type ScanConfig struct {
	InputPaths        []string `yaml:"input_paths" mapstructure:"input_paths"`
	Recursive         bool     `yaml:"recursive" mapstructure:"recursive"`
	IncludeExtensions []string `yaml:"include_extensions" mapstructure:"include_extensions"`
	ExcludeDirs       []string `yaml:"exclude_dirs" mapstructure:"exclude_dirs"`
	ExcludeFileGlobs  []string `yaml:"exclude_file_globs" mapstructure:"exclude_file_globs"`
	MaxFileSizeMB     int      `yaml:"max_file_size_mb" mapstructure:"max_file_size_mb"`
	Workers           int      `yaml:"workers" mapstructure:"workers"`
}

// RuleEngineConfig selects and locates the rule documents to resolve
type RuleEngineConfig struct {
	Enabled             bool              `yaml:"enabled" mapstructure:"enabled"`
	Region              string            `yaml:"region" mapstructure:"region"`
	EnvironmentVariable string            `yaml:"environment_variable" mapstructure:"environment_variable"`
	Environment         string            `yaml:"environment" mapstructure:"environment"`
	DefaultEnvironment  string            `yaml:"default_environment" mapstructure:"default_environment"`
	BaseRulesFile       string            `yaml:"base_rules_file" mapstructure:"base_rules_file"`
	EnvironmentRules    map[string]string `yaml:"environment_rules" mapstructure:"environment_rules"`
}

// CustomRecognizersConfig tunes the built-in India-specific recognizers
type CustomRecognizersConfig struct {
	EnableIndianIdentifiers   bool     `yaml:"enable_indian_identifiers" mapstructure:"enable_indian_identifiers"`
	AadhaarChecksumValidation bool     `yaml:"aadhaar_checksum_validation" mapstructure:"aadhaar_checksum_validation"`
	UPIGenericPattern         bool     `yaml:"upi_generic_pattern" mapstructure:"upi_generic_pattern"`
	UPIHandleDomains          []string `yaml:"upi_handle_domains" mapstructure:"upi_handle_domains"`
}

// DetectorConfig tunes the pattern detector
type DetectorConfig struct {
	ScoreThreshold        float64                 `yaml:"score_threshold" mapstructure:"score_threshold"`
	Entities              []string                `yaml:"entities" mapstructure:"entities"`
	EntityScoreThresholds map[string]float64      `yaml:"entity_score_thresholds" mapstructure:"entity_score_thresholds"`
	ContextWords          []string                `yaml:"context_words" mapstructure:"context_words"`
	CustomRecognizers     CustomRecognizersConfig `yaml:"custom_recognizers" mapstructure:"custom_recognizers"`
}

// OutputConfig controls report serialization
type OutputConfig struct {
	Path                string `yaml:"path" mapstructure:"path"`
	Pretty              bool   `yaml:"pretty" mapstructure:"pretty"`
	IncludeTextSnippet  bool   `yaml:"include_text_snippet" mapstructure:"include_text_snippet"`
	SnippetContextChars int    `yaml:"snippet_context_chars" mapstructure:"snippet_context_chars"`
	IncludeFileHash     bool   `yaml:"include_file_hash" mapstructure:"include_file_hash"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
		Path     string `yaml:"path" mapstructure:"path"`
		MaxSize  int    `yaml:"max_size" mapstructure:"max_size"`
		MaxAge   int    `yaml:"max_age" mapstructure:"max_age"`
		Compress bool   `yaml:"compress" mapstructure:"compress"`
	} `yaml:"file" mapstructure:"file"`
}

// ServerConfig contains the analyze API server configuration
type ServerConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	Port           int           `yaml:"port" mapstructure:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RequestsPerMin int           `yaml:"requests_per_min" mapstructure:"requests_per_min"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	return &Config{
		Scan: ScanConfig{
			InputPaths: []string{"."},
			Recursive:  true,
			IncludeExtensions: []string{
				".txt", ".csv", ".json", ".log", ".md", ".xml", ".yaml", ".yml",
			},
			ExcludeDirs: []string{
				".git", ".idea", ".venv", "venv", "__pycache__", "node_modules", "dist", "build",
			},
			ExcludeFileGlobs: []string{"*.pyc", "*.pyo", "*.DS_Store"},
			MaxFileSizeMB:    20,
			Workers:          4,
		},
		RuleEngine: RuleEngineConfig{
			Enabled:             true,
			Region:              "india",
			EnvironmentVariable: "DPDP_RULES_ENV",
			Environment:         "default",
			DefaultEnvironment:  "default",
			BaseRulesFile:       "configs/pii_rules/india/base_rules.json",
			EnvironmentRules: map[string]string{
				"default": "configs/pii_rules/india/default_rules.json",
				"dev":     "configs/pii_rules/india/dev_rules.json",
				"qa":      "configs/pii_rules/india/qa_rules.json",
				"prod":    "configs/pii_rules/india/prod_rules.json",
			},
		},
		Detector: DetectorConfig{
			ScoreThreshold: 0.35,
			Entities: []string{
				"IN_AADHAAR", "IN_PAN", "IN_IFSC", "IN_UPI_ID", "IN_PASSPORT",
				"IN_BANK_ACCOUNT", "EMAIL_ADDRESS", "PHONE_NUMBER", "CREDIT_CARD",
				"IP_ADDRESS",
			},
			EntityScoreThresholds: map[string]float64{
				"PHONE_NUMBER":    0.55,
				"EMAIL_ADDRESS":   0.6,
				"IN_BANK_ACCOUNT": 0.45,
			},
			CustomRecognizers: CustomRecognizersConfig{
				EnableIndianIdentifiers:   true,
				AadhaarChecksumValidation: true,
				UPIGenericPattern:         false,
				UPIHandleDomains: []string{
					"upi", "ybl", "ibl", "axl", "paytm", "okhdfcbank", "okicici", "oksbi", "okaxis",
				},
			},
		},
		Output: OutputConfig{
			Path:                "pii_output.json",
			Pretty:              true,
			IncludeTextSnippet:  true,
			SnippetContextChars: 24,
			IncludeFileHash:     true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			Enabled:        false,
			Port:           8080,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxBodyBytes:   4 << 20,
			RequestsPerMin: 120,
		},
	}
}
