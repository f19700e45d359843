package rules

import "regexp"

// Normalization is the canonicalization applied to matched text before
// value and length comparisons.
type Normalization string

const (
	NormalizationRaw    Normalization = "raw"
	NormalizationDigits Normalization = "digits"
	NormalizationLower  Normalization = "lower"
)

// Built-in defaults used when neither document sets a field.
const (
	DefaultScoreThreshold     = 0.5
	DefaultContextWindowChars = 50
)

// EntityRule is the per-entity policy as written in a rule document.
// Optional fields are pointers so that an absent key inherits the base
// value while an explicitly-set empty list clears it.
type EntityRule struct {
	Enabled            *bool     `json:"enabled,omitempty"`
	ScoreThreshold     *float64  `json:"score_threshold,omitempty"`
	Normalization      *string   `json:"normalization,omitempty"`
	IncludeValues      *[]string `json:"include_values,omitempty"`
	ExcludeValues      *[]string `json:"exclude_values,omitempty"`
	IncludePatterns    *[]string `json:"include_patterns,omitempty"`
	ExcludePatterns    *[]string `json:"exclude_patterns,omitempty"`
	RequiredContext    *[]string `json:"required_context,omitempty"`
	ForbiddenContext   *[]string `json:"forbidden_context,omitempty"`
	MinLength          *int      `json:"min_length,omitempty"`
	MaxLength          *int      `json:"max_length,omitempty"`
	ContextWindowChars *int      `json:"context_window_chars,omitempty"`
}

// PatternRecognizerDef declares a custom regex recognizer for one entity type.
type PatternRecognizerDef struct {
	Entity   string   `json:"entity"`
	Patterns []string `json:"patterns"`
	Score    *float64 `json:"score,omitempty"`
	Context  []string `json:"context,omitempty"`
}

// PresidioOverrides carries global tuning for the underlying detector.
type PresidioOverrides struct {
	Entities              *[]string          `json:"entities,omitempty"`
	ScoreThreshold        *float64           `json:"score_threshold,omitempty"`
	EntityScoreThresholds map[string]float64 `json:"entity_score_thresholds,omitempty"`
	ContextWords          []string           `json:"context_words,omitempty"`
}

// CustomRecognizersOverrides toggles the built-in custom recognizers.
type CustomRecognizersOverrides struct {
	EnableIndianIdentifiers   *bool     `json:"enable_indian_identifiers,omitempty"`
	AadhaarChecksumValidation *bool     `json:"aadhaar_checksum_validation,omitempty"`
	UPIGenericPattern         *bool     `json:"upi_generic_pattern,omitempty"`
	UPIHandleDomains          *[]string `json:"upi_handle_domains,omitempty"`
}

// RuleDocument is one named, versionable rule bundle as stored on disk.
// Entity type names are case-sensitive, globally unique keys.
type RuleDocument struct {
	Name                         string                     `json:"name,omitempty"`
	Version                      string                     `json:"version,omitempty"`
	PresidioOverrides            PresidioOverrides          `json:"presidio_overrides,omitempty"`
	CustomRecognizersOverrides   CustomRecognizersOverrides `json:"custom_recognizers_overrides,omitempty"`
	IncludeEntities              []string                   `json:"include_entities,omitempty"`
	ExcludeEntities              []string                   `json:"exclude_entities,omitempty"`
	Entities                     map[string]EntityRule      `json:"entities,omitempty"`
	AdditionalPatternRecognizers []PatternRecognizerDef     `json:"additional_pattern_recognizers,omitempty"`
}

// ResolvedEntityRule is the effective, fully-defaulted policy for one
// entity type after merging. Value lists are stored pre-normalized and
// context keywords pre-lowercased so evaluation does no per-call setup.
type ResolvedEntityRule struct {
	Enabled            bool
	ScoreThreshold     float64
	Normalization      Normalization
	IncludeValues      []string
	ExcludeValues      []string
	IncludePatterns    []*regexp.Regexp
	ExcludePatterns    []*regexp.Regexp
	RequiredContext    []string
	ForbiddenContext   []string
	MinLength          *int
	MaxLength          *int
	ContextWindowChars int
}

// CompiledRecognizer is a PatternRecognizerDef with its patterns compiled.
type CompiledRecognizer struct {
	Entity   string
	Patterns []CompiledPattern
	Score    float64
	Context  []string
}

// CompiledPattern pairs a pattern's source text with its compiled form.
type CompiledPattern struct {
	Expr   string
	Regexp *regexp.Regexp
}

// ResolvedPresidio is the merged global detector tuning.
type ResolvedPresidio struct {
	Entities              []string
	ScoreThreshold        *float64
	EntityScoreThresholds map[string]float64
	ContextWords          []string
}

// ResolvedCustom is the merged custom recognizer tuning. Fields stay
// pointers so callers can tell "no override" from an explicit false.
type ResolvedCustom struct {
	EnableIndianIdentifiers   *bool
	AadhaarChecksumValidation *bool
	UPIGenericPattern         *bool
	UPIHandleDomains          []string
}

// ResolvedRuleSet is the immutable result of merging a base document with
// an environment document. It is built once per scan run and may be shared
// read-only across concurrent workers.
type ResolvedRuleSet struct {
	Region          string
	Environment     string
	FilesLoaded     []string
	IncludeEntities map[string]struct{}
	ExcludeEntities map[string]struct{}
	Entities        map[string]ResolvedEntityRule
	Presidio        ResolvedPresidio
	Custom          ResolvedCustom
	Recognizers     []CompiledRecognizer
}

// NewEmptyRuleSet returns a rule set that gates nothing beyond the built-in
// defaults, for runs with the rule engine disabled.
func NewEmptyRuleSet() *ResolvedRuleSet {
	return &ResolvedRuleSet{
		Environment:     "disabled",
		IncludeEntities: map[string]struct{}{},
		ExcludeEntities: map[string]struct{}{},
		Entities:        map[string]ResolvedEntityRule{},
	}
}

// Candidate is a single raw detection occurrence produced by the detector.
// The evaluator never mutates the caller's copy.
type Candidate struct {
	EntityType string
	Matched    string
	Start      int
	End        int
	Score      float64
}

// Reason identifies why a candidate was accepted or rejected. The values
// and the order in which checks produce them are an externally-observable
// contract used in audit trails.
type Reason int

const (
	Accepted Reason = iota
	RejectedEntityTypeExcluded
	RejectedDisabled
	RejectedLength
	RejectedExcludedValue
	RejectedNoIncludeMatch
	RejectedMissingRequiredContext
	RejectedForbiddenContextPresent
	RejectedScoreBelowThreshold
)

var reasonNames = map[Reason]string{
	Accepted:                        "accepted",
	RejectedEntityTypeExcluded:      "rejected_entity_type_excluded",
	RejectedDisabled:                "rejected_disabled",
	RejectedLength:                  "rejected_length",
	RejectedExcludedValue:           "rejected_excluded_value",
	RejectedNoIncludeMatch:          "rejected_no_include_match",
	RejectedMissingRequiredContext:  "rejected_missing_required_context",
	RejectedForbiddenContextPresent: "rejected_forbidden_context_present",
	RejectedScoreBelowThreshold:     "rejected_score_below_threshold",
}

func (r Reason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return "unknown"
}

// Decision is the evaluator's verdict for one candidate. Score carries the
// accepted score; the evaluator only gates, it never invents a new score.
type Decision struct {
	Reason Reason
	Score  float64
}
