package rules

import (
	"errors"
	"strings"
	"testing"
)

func floatPtr(v float64) *float64 { return &v }

func TestCompiler(t *testing.T) {
	t.Run("CompilesAllPatterns", func(t *testing.T) {
		compiler := NewCompiler(NewCache())
		recognizers, err := compiler.Compile([]PatternRecognizerDef{
			{
				Entity:   "IN_PAN",
				Patterns: []string{`\b[A-Z]{5}[0-9]{4}[A-Z]\b`},
				Score:    floatPtr(0.55),
			},
			{
				Entity:   "IN_IFSC",
				Patterns: []string{`\b[A-Z]{4}0[A-Z0-9]{6}\b`},
			},
		})
		if err != nil {
			t.Fatalf("Compile failed: %v", err)
		}
		if len(recognizers) != 2 {
			t.Fatalf("Expected 2 recognizers, got %d", len(recognizers))
		}
		if recognizers[0].Score != 0.55 {
			t.Errorf("Expected explicit score 0.55, got %f", recognizers[0].Score)
		}
		if recognizers[1].Score != DefaultScoreThreshold {
			t.Errorf("Expected default score %f, got %f", DefaultScoreThreshold, recognizers[1].Score)
		}
		if !recognizers[0].Patterns[0].Regexp.MatchString("ABCDE1234F") {
			t.Error("Compiled PAN pattern should match a PAN-shaped string")
		}
	})

	t.Run("MalformedPatternNamesEntityAndPattern", func(t *testing.T) {
		compiler := NewCompiler(NewCache())
		_, err := compiler.Compile([]PatternRecognizerDef{
			{Entity: "IN_ADDRESS", Patterns: []string{"(unclosed"}},
		})
		if err == nil {
			t.Fatal("Expected compilation error for malformed pattern")
		}

		var cerr *RuleCompilationError
		if !errors.As(err, &cerr) {
			t.Fatalf("Expected RuleCompilationError, got %T", err)
		}
		if cerr.Entity != "IN_ADDRESS" {
			t.Errorf("Expected entity IN_ADDRESS in error, got %q", cerr.Entity)
		}
		if cerr.Pattern != "(unclosed" {
			t.Errorf("Expected offending pattern in error, got %q", cerr.Pattern)
		}
		if !strings.Contains(err.Error(), "IN_ADDRESS") || !strings.Contains(err.Error(), "(unclosed") {
			t.Errorf("Error message should name entity and pattern: %v", err)
		}
	})

	t.Run("CacheReusesCompiledPatterns", func(t *testing.T) {
		cache := NewCache()
		compiler := NewCompiler(cache)
		def := []PatternRecognizerDef{
			{Entity: "IN_PAN", Patterns: []string{`\b[A-Z]{5}[0-9]{4}[A-Z]\b`}},
		}

		first, err := compiler.Compile(def)
		if err != nil {
			t.Fatalf("First compile failed: %v", err)
		}
		second, err := compiler.Compile(def)
		if err != nil {
			t.Fatalf("Second compile failed: %v", err)
		}

		if first[0].Patterns[0].Regexp != second[0].Patterns[0].Regexp {
			t.Error("Repeated compilation should return the cached regexp")
		}
		if cache.Len() != 1 {
			t.Errorf("Expected 1 cached entry, got %d", cache.Len())
		}
	})

	t.Run("IndependentCachesAreIsolated", func(t *testing.T) {
		a := NewCache()
		b := NewCache()
		if _, err := a.Compile("X", `\d+`); err != nil {
			t.Fatalf("Compile failed: %v", err)
		}
		if a.Len() != 1 || b.Len() != 0 {
			t.Errorf("Expected isolated caches, got a=%d b=%d", a.Len(), b.Len())
		}
	})
}
