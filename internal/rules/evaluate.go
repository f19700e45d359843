package rules

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Normalize canonicalizes matched text per the rule's normalization mode:
// digits strips all non-digit characters, lower lowercases, raw is unchanged.
func Normalize(value string, mode Normalization) string {
	switch mode {
	case NormalizationDigits:
		return strings.Map(func(r rune) rune {
			if r < '0' || r > '9' {
				return -1
			}
			return r
		}, value)
	case NormalizationLower:
		return strings.ToLower(value)
	default:
		return value
	}
}

// defaultEntityRule is applied to entity types no document mentions.
func defaultEntityRule() ResolvedEntityRule {
	return ResolvedEntityRule{
		Enabled:            true,
		ScoreThreshold:     DefaultScoreThreshold,
		Normalization:      NormalizationRaw,
		ContextWindowChars: DefaultContextWindowChars,
	}
}

// Evaluate applies the resolved rule set to one raw detection candidate and
// returns the decision. Checks short-circuit in a fixed order; the rejection
// reason is part of the contract because audit trails report it, so the
// order must not change even where the accept/reject outcome would not.
//
// Evaluate is a pure function of its inputs and is safe to call concurrently
// from many workers sharing one rule set.
func Evaluate(c Candidate, rs *ResolvedRuleSet, sourceText string) Decision {
	// 1. Entity-level include/exclude sets; explicit exclusion wins.
	if _, excluded := rs.ExcludeEntities[c.EntityType]; excluded {
		return Decision{Reason: RejectedEntityTypeExcluded}
	}
	if len(rs.IncludeEntities) > 0 {
		if _, included := rs.IncludeEntities[c.EntityType]; !included {
			return Decision{Reason: RejectedEntityTypeExcluded}
		}
	}

	// 2. Per-entity rule, built-in defaults when absent.
	rule, ok := rs.Entities[c.EntityType]
	if !ok {
		rule = defaultEntityRule()
	}
	if !rule.Enabled {
		return Decision{Reason: RejectedDisabled}
	}

	// 3. Normalize before any length, value, or pattern comparison.
	normalized := Normalize(c.Matched, rule.Normalization)

	// 4. Length bounds on the normalized form.
	length := utf8.RuneCountInString(normalized)
	if rule.MinLength != nil && length < *rule.MinLength {
		return Decision{Reason: RejectedLength}
	}
	if rule.MaxLength != nil && length > *rule.MaxLength {
		return Decision{Reason: RejectedLength}
	}

	// 5. Exclusion by literal value, exact match.
	for _, value := range rule.ExcludeValues {
		if normalized == value {
			return Decision{Reason: RejectedExcludedValue}
		}
	}

	// 6. Positive filter: when any include list is set the candidate must
	// match a literal or a pattern (OR semantics).
	if len(rule.IncludeValues) > 0 || len(rule.IncludePatterns) > 0 {
		if !matchesAnyValue(normalized, rule.IncludeValues) && !matchesAnyPattern(normalized, rule.IncludePatterns) {
			return Decision{Reason: RejectedNoIncludeMatch}
		}
	}

	// 7. Exclusion by pattern.
	if matchesAnyPattern(normalized, rule.ExcludePatterns) {
		return Decision{Reason: RejectedExcludedValue}
	}

	// 8-9. Context keyword checks over the surrounding window.
	if len(rule.RequiredContext) > 0 || len(rule.ForbiddenContext) > 0 {
		before, after := ContextWindow(sourceText, c.Start, c.End, rule.ContextWindowChars)
		before = strings.ToLower(before)
		after = strings.ToLower(after)

		if len(rule.RequiredContext) > 0 && !anyKeywordPresent(before, after, rule.RequiredContext) {
			return Decision{Reason: RejectedMissingRequiredContext}
		}
		if anyKeywordPresent(before, after, rule.ForbiddenContext) {
			return Decision{Reason: RejectedForbiddenContextPresent}
		}
	}

	// 10. Score gate.
	if c.Score < rule.ScoreThreshold {
		return Decision{Reason: RejectedScoreBelowThreshold}
	}

	// 11. Accepted; the evaluator gates, it does not re-score.
	return Decision{Reason: Accepted, Score: c.Score}
}

func matchesAnyValue(value string, values []string) bool {
	for _, candidate := range values {
		if value == candidate {
			return true
		}
	}
	return false
}

func matchesAnyPattern(value string, patterns []*regexp.Regexp) bool {
	for _, pattern := range patterns {
		if pattern != nil && pattern.MatchString(value) {
			return true
		}
	}
	return false
}

func anyKeywordPresent(before, after string, keywords []string) bool {
	for _, keyword := range keywords {
		if keyword == "" {
			continue
		}
		if strings.Contains(before, keyword) || strings.Contains(after, keyword) {
			return true
		}
	}
	return false
}
