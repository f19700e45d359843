package rules

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Merger resolves a base rule document and an environment override document
// into one immutable ResolvedRuleSet. Merging is field-by-field: a field
// missing from the override inherits the base value, while an explicitly-set
// empty list clears it.
type Merger struct {
	compiler *Compiler
}

// NewMerger creates a merger that compiles patterns through the given compiler.
func NewMerger(compiler *Compiler) *Merger {
	if compiler == nil {
		compiler = NewCompiler(nil)
	}
	return &Merger{compiler: compiler}
}

// Merge produces the resolved rule set. It has no side effects beyond
// invoking the pattern compiler on the combined recognizer list.
func (m *Merger) Merge(base, override *RuleDocument) (*ResolvedRuleSet, error) {
	if base == nil {
		base = &RuleDocument{}
	}
	if override == nil {
		override = &RuleDocument{}
	}

	rs := &ResolvedRuleSet{
		IncludeEntities: stringSet(base.IncludeEntities, override.IncludeEntities),
		ExcludeEntities: stringSet(base.ExcludeEntities, override.ExcludeEntities),
		Entities:        make(map[string]ResolvedEntityRule),
		Presidio:        mergePresidio(base.PresidioOverrides, override.PresidioOverrides),
		Custom:          mergeCustom(base.CustomRecognizersOverrides, override.CustomRecognizersOverrides),
	}

	for _, name := range entityNames(base.Entities, override.Entities) {
		overlaid := overlayEntityRule(base.Entities[name], override.Entities[name])
		resolved, err := m.finalizeEntityRule(name, overlaid)
		if err != nil {
			return nil, err
		}
		rs.Entities[name] = resolved
	}

	recognizers, err := m.compiler.Compile(mergeRecognizers(
		base.AdditionalPatternRecognizers,
		override.AdditionalPatternRecognizers,
	))
	if err != nil {
		return nil, err
	}
	rs.Recognizers = recognizers

	return rs, nil
}

// overlayEntityRule takes the override's value for every field it sets and
// the base's value otherwise.
func overlayEntityRule(base, override EntityRule) EntityRule {
	out := base
	if override.Enabled != nil {
		out.Enabled = override.Enabled
	}
	if override.ScoreThreshold != nil {
		out.ScoreThreshold = override.ScoreThreshold
	}
	if override.Normalization != nil {
		out.Normalization = override.Normalization
	}
	if override.IncludeValues != nil {
		out.IncludeValues = override.IncludeValues
	}
	if override.ExcludeValues != nil {
		out.ExcludeValues = override.ExcludeValues
	}
	if override.IncludePatterns != nil {
		out.IncludePatterns = override.IncludePatterns
	}
	if override.ExcludePatterns != nil {
		out.ExcludePatterns = override.ExcludePatterns
	}
	if override.RequiredContext != nil {
		out.RequiredContext = override.RequiredContext
	}
	if override.ForbiddenContext != nil {
		out.ForbiddenContext = override.ForbiddenContext
	}
	if override.MinLength != nil {
		out.MinLength = override.MinLength
	}
	if override.MaxLength != nil {
		out.MaxLength = override.MaxLength
	}
	if override.ContextWindowChars != nil {
		out.ContextWindowChars = override.ContextWindowChars
	}
	return out
}

// finalizeEntityRule applies built-in defaults, validates the merged rule,
// pre-normalizes value lists, lowercases context keywords, and compiles the
// entity-level patterns.
func (m *Merger) finalizeEntityRule(name string, rule EntityRule) (ResolvedEntityRule, error) {
	resolved := ResolvedEntityRule{
		Enabled:            true,
		ScoreThreshold:     DefaultScoreThreshold,
		Normalization:      NormalizationRaw,
		ContextWindowChars: DefaultContextWindowChars,
		MinLength:          rule.MinLength,
		MaxLength:          rule.MaxLength,
	}

	if rule.Enabled != nil {
		resolved.Enabled = *rule.Enabled
	}
	if rule.ScoreThreshold != nil {
		resolved.ScoreThreshold = *rule.ScoreThreshold
	}
	if rule.Normalization != nil {
		switch mode := Normalization(strings.ToLower(strings.TrimSpace(*rule.Normalization))); mode {
		case NormalizationRaw, NormalizationDigits, NormalizationLower:
			resolved.Normalization = mode
		default:
			return ResolvedEntityRule{}, &ConfigurationError{
				Field:   fmt.Sprintf("entities.%s.normalization", name),
				Message: fmt.Sprintf("unknown normalization mode %q (must be raw, digits, or lower)", *rule.Normalization),
			}
		}
	}
	if rule.ContextWindowChars != nil {
		resolved.ContextWindowChars = *rule.ContextWindowChars
		if resolved.ContextWindowChars < 0 {
			resolved.ContextWindowChars = 0
		}
	}

	if rule.MinLength != nil && rule.MaxLength != nil && *rule.MinLength > *rule.MaxLength {
		return ResolvedEntityRule{}, &ConfigurationError{
			Field: fmt.Sprintf("entities.%s", name),
			Message: fmt.Sprintf("min_length %d exceeds max_length %d after merge",
				*rule.MinLength, *rule.MaxLength),
		}
	}

	if rule.IncludeValues != nil {
		resolved.IncludeValues = normalizeValues(*rule.IncludeValues, resolved.Normalization)
	}
	if rule.ExcludeValues != nil {
		resolved.ExcludeValues = normalizeValues(*rule.ExcludeValues, resolved.Normalization)
	}
	if rule.RequiredContext != nil {
		resolved.RequiredContext = lowerAll(*rule.RequiredContext)
	}
	if rule.ForbiddenContext != nil {
		resolved.ForbiddenContext = lowerAll(*rule.ForbiddenContext)
	}

	var err error
	if rule.IncludePatterns != nil {
		if resolved.IncludePatterns, err = m.compileEntityPatterns(name, *rule.IncludePatterns); err != nil {
			return ResolvedEntityRule{}, err
		}
	}
	if rule.ExcludePatterns != nil {
		if resolved.ExcludePatterns, err = m.compileEntityPatterns(name, *rule.ExcludePatterns); err != nil {
			return ResolvedEntityRule{}, err
		}
	}

	return resolved, nil
}

// compileEntityPatterns compiles entity-level include/exclude patterns.
// These match case-insensitively; compilation errors name the pattern as
// written in the document.
func (m *Merger) compileEntityPatterns(entity string, patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := m.compiler.cache.Compile(entity, "(?i)"+pattern)
		if err != nil {
			var cerr *RuleCompilationError
			if errors.As(err, &cerr) {
				return nil, &RuleCompilationError{Entity: entity, Pattern: pattern, Err: cerr.Err}
			}
			return nil, err
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// mergePresidio shallow-merges two levels deep: top-level fields take the
// override when set, the per-entity score map merges key-by-key, and
// context words form an order-preserving union.
func mergePresidio(base, override PresidioOverrides) ResolvedPresidio {
	out := ResolvedPresidio{}

	switch {
	case override.Entities != nil:
		out.Entities = append([]string(nil), (*override.Entities)...)
	case base.Entities != nil:
		out.Entities = append([]string(nil), (*base.Entities)...)
	}

	switch {
	case override.ScoreThreshold != nil:
		threshold := *override.ScoreThreshold
		out.ScoreThreshold = &threshold
	case base.ScoreThreshold != nil:
		threshold := *base.ScoreThreshold
		out.ScoreThreshold = &threshold
	}

	if len(base.EntityScoreThresholds) > 0 || len(override.EntityScoreThresholds) > 0 {
		out.EntityScoreThresholds = make(map[string]float64, len(base.EntityScoreThresholds)+len(override.EntityScoreThresholds))
		for entity, threshold := range base.EntityScoreThresholds {
			out.EntityScoreThresholds[entity] = threshold
		}
		for entity, threshold := range override.EntityScoreThresholds {
			out.EntityScoreThresholds[entity] = threshold
		}
	}

	out.ContextWords = mergeUniqueList(base.ContextWords, override.ContextWords)
	return out
}

// mergeCustom takes the override's value for every field it sets.
func mergeCustom(base, override CustomRecognizersOverrides) ResolvedCustom {
	out := ResolvedCustom{
		EnableIndianIdentifiers:   base.EnableIndianIdentifiers,
		AadhaarChecksumValidation: base.AadhaarChecksumValidation,
		UPIGenericPattern:         base.UPIGenericPattern,
	}
	if base.UPIHandleDomains != nil {
		out.UPIHandleDomains = append([]string(nil), (*base.UPIHandleDomains)...)
	}

	if override.EnableIndianIdentifiers != nil {
		out.EnableIndianIdentifiers = override.EnableIndianIdentifiers
	}
	if override.AadhaarChecksumValidation != nil {
		out.AadhaarChecksumValidation = override.AadhaarChecksumValidation
	}
	if override.UPIGenericPattern != nil {
		out.UPIGenericPattern = override.UPIGenericPattern
	}
	if override.UPIHandleDomains != nil {
		out.UPIHandleDomains = append([]string(nil), (*override.UPIHandleDomains)...)
	}
	return out
}

// mergeRecognizers concatenates base and override definitions, deduplicating
// exact (entity type, pattern string) pairs. A duplicate that differs only
// in score keeps the override's score.
func mergeRecognizers(base, override []PatternRecognizerDef) []PatternRecognizerDef {
	type pairKey struct {
		entity  string
		pattern string
	}

	claimed := make(map[pairKey]struct{})
	for _, def := range override {
		for _, pattern := range def.Patterns {
			claimed[pairKey{def.Entity, pattern}] = struct{}{}
		}
	}

	merged := make([]PatternRecognizerDef, 0, len(base)+len(override))
	for _, def := range base {
		kept := def
		kept.Patterns = nil
		for _, pattern := range def.Patterns {
			if _, dup := claimed[pairKey{def.Entity, pattern}]; dup {
				continue
			}
			kept.Patterns = append(kept.Patterns, pattern)
		}
		if len(kept.Patterns) > 0 {
			merged = append(merged, kept)
		}
	}

	seen := make(map[pairKey]struct{})
	for _, def := range override {
		kept := def
		kept.Patterns = nil
		for _, pattern := range def.Patterns {
			key := pairKey{def.Entity, pattern}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			kept.Patterns = append(kept.Patterns, pattern)
		}
		if len(kept.Patterns) > 0 {
			merged = append(merged, kept)
		}
	}
	return merged
}

// entityNames returns the union of entity type names across both documents,
// sorted for deterministic validation errors.
func entityNames(base, override map[string]EntityRule) []string {
	names := make([]string, 0, len(base)+len(override))
	seen := make(map[string]struct{}, len(base)+len(override))
	for name := range base {
		names = append(names, name)
		seen[name] = struct{}{}
	}
	for name := range override {
		if _, ok := seen[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// stringSet builds a set from one or more lists, skipping blank entries.
func stringSet(lists ...[]string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, list := range lists {
		for _, value := range list {
			if value = strings.TrimSpace(value); value != "" {
				set[value] = struct{}{}
			}
		}
	}
	return set
}

// mergeUniqueList concatenates lists preserving first-seen order and
// dropping blanks and duplicates.
func mergeUniqueList(lists ...[]string) []string {
	var merged []string
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, value := range list {
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			if _, dup := seen[value]; dup {
				continue
			}
			seen[value] = struct{}{}
			merged = append(merged, value)
		}
	}
	return merged
}

// normalizeValues applies the rule's normalization to configured literals
// so evaluation compares like with like.
func normalizeValues(values []string, mode Normalization) []string {
	normalized := make([]string, 0, len(values))
	for _, value := range values {
		normalized = append(normalized, Normalize(value, mode))
	}
	return normalized
}

func lowerAll(values []string) []string {
	lowered := make([]string, 0, len(values))
	for _, value := range values {
		lowered = append(lowered, strings.ToLower(value))
	}
	return lowered
}
