package privacy

import (
	"math"
	"testing"

	"github.com/dpdplabs/pii-scanner/internal/config"
	"github.com/dpdplabs/pii-scanner/internal/rules"
)

func testDetectorConfig() config.DetectorConfig {
	return config.DetectorConfig{
		Entities: []string{
			"IN_AADHAAR", "IN_PAN", "IN_IFSC", "IN_UPI_ID", "IN_PASSPORT",
			"IN_BANK_ACCOUNT", "EMAIL_ADDRESS", "PHONE_NUMBER", "CREDIT_CARD",
			"IP_ADDRESS",
		},
		CustomRecognizers: config.CustomRecognizersConfig{
			EnableIndianIdentifiers:   true,
			AadhaarChecksumValidation: true,
		},
	}
}

func newTestDetector(t *testing.T, cfg config.DetectorConfig, rs *rules.ResolvedRuleSet) *Detector {
	t.Helper()
	if rs == nil {
		rs = rules.NewEmptyRuleSet()
	}
	detector, err := New(cfg, rs, nil, nil)
	if err != nil {
		t.Fatalf("New detector failed: %v", err)
	}
	return detector
}

func candidatesFor(candidates []rules.Candidate, entity string) []rules.Candidate {
	var out []rules.Candidate
	for _, c := range candidates {
		if c.EntityType == entity {
			out = append(out, c)
		}
	}
	return out
}

// validAadhaarNumber builds a twelve-digit number with a passing Verhoeff
// check digit.
func validAadhaarNumber(t *testing.T) string {
	t.Helper()
	const payload = "23456789012"
	for d := byte('0'); d <= '9'; d++ {
		if candidate := payload + string(d); VerhoeffValidate(candidate) {
			return candidate
		}
	}
	t.Fatal("No valid check digit found for payload")
	return ""
}

func TestDetect(t *testing.T) {
	t.Run("FindsPANWithOffsets", func(t *testing.T) {
		detector := newTestDetector(t, testDetectorConfig(), nil)
		text := "Customer PAN: ABCDE1234F registered"

		pans := candidatesFor(detector.Detect(text), "IN_PAN")
		if len(pans) != 1 {
			t.Fatalf("Expected 1 PAN candidate, got %d", len(pans))
		}
		if pans[0].Matched != "ABCDE1234F" {
			t.Errorf("Expected matched text ABCDE1234F, got %q", pans[0].Matched)
		}
		if pans[0].Start != 14 || pans[0].End != 24 {
			t.Errorf("Expected span [14,24), got [%d,%d)", pans[0].Start, pans[0].End)
		}
	})

	t.Run("ContextKeywordBoostsScore", func(t *testing.T) {
		detector := newTestDetector(t, testDetectorConfig(), nil)

		plain := candidatesFor(detector.Detect("ref ABCDE1234F code"), "IN_PAN")
		boosted := candidatesFor(detector.Detect("PAN: ABCDE1234F"), "IN_PAN")
		if len(plain) != 1 || len(boosted) != 1 {
			t.Fatalf("Expected 1 PAN candidate in each text, got %d and %d", len(plain), len(boosted))
		}
		if math.Abs(plain[0].Score-0.55) > 1e-9 {
			t.Errorf("Expected base score 0.55, got %f", plain[0].Score)
		}
		if math.Abs(boosted[0].Score-0.65) > 1e-9 {
			t.Errorf("Expected boosted score 0.65, got %f", boosted[0].Score)
		}
	})

	t.Run("FindsUPIHandle", func(t *testing.T) {
		detector := newTestDetector(t, testDetectorConfig(), nil)

		upis := candidatesFor(detector.Detect("pay rahul.sharma@ybl today"), "IN_UPI_ID")
		if len(upis) != 1 {
			t.Fatalf("Expected 1 UPI candidate, got %d", len(upis))
		}
		if upis[0].Matched != "rahul.sharma@ybl" {
			t.Errorf("Unexpected UPI match %q", upis[0].Matched)
		}
	})

	t.Run("OutOfScopeEntityNotDetected", func(t *testing.T) {
		cfg := testDetectorConfig()
		cfg.Entities = []string{"IN_PAN"}
		detector := newTestDetector(t, cfg, nil)

		candidates := detector.Detect("mail me at rahul@example.org")
		if emails := candidatesFor(candidates, "EMAIL_ADDRESS"); len(emails) != 0 {
			t.Errorf("Expected no email candidates outside detection scope, got %d", len(emails))
		}
	})

	t.Run("RuleSetRecognizersAlwaysRun", func(t *testing.T) {
		rs, err := rules.NewMerger(nil).Merge(&rules.RuleDocument{
			AdditionalPatternRecognizers: []rules.PatternRecognizerDef{
				{Entity: "IN_VOTER_ID", Patterns: []string{`\b[A-Z]{3}[0-9]{7}\b`}},
			},
		}, &rules.RuleDocument{})
		if err != nil {
			t.Fatalf("Merge failed: %v", err)
		}

		cfg := testDetectorConfig()
		cfg.Entities = []string{"IN_PAN"}
		detector := newTestDetector(t, cfg, rs)

		voters := candidatesFor(detector.Detect("voter id ABC1234567 on record"), "IN_VOTER_ID")
		if len(voters) != 1 {
			t.Errorf("Expected rule-set recognizer to run regardless of scope, got %d candidates", len(voters))
		}
	})
}

func TestDetectScoreThresholds(t *testing.T) {
	t.Run("GlobalThresholdGatesCandidates", func(t *testing.T) {
		cfg := testDetectorConfig()
		cfg.ScoreThreshold = 0.6
		detector := newTestDetector(t, cfg, nil)

		pans := candidatesFor(detector.Detect("ref ABCDE1234F code"), "IN_PAN")
		if len(pans) != 0 {
			t.Errorf("Expected PAN at 0.55 dropped below global threshold 0.6, got %d candidates", len(pans))
		}
	})

	t.Run("RuleSetGlobalThresholdOverridesConfiguration", func(t *testing.T) {
		rs, err := rules.NewMerger(nil).Merge(&rules.RuleDocument{
			PresidioOverrides: rules.PresidioOverrides{ScoreThreshold: scoreOf(0.5)},
		}, &rules.RuleDocument{})
		if err != nil {
			t.Fatalf("Merge failed: %v", err)
		}

		cfg := testDetectorConfig()
		cfg.ScoreThreshold = 0.6
		detector := newTestDetector(t, cfg, rs)

		pans := candidatesFor(detector.Detect("ref ABCDE1234F code"), "IN_PAN")
		if len(pans) != 1 {
			t.Errorf("Expected rule-set threshold 0.5 to restore the PAN candidate, got %d", len(pans))
		}
	})

	t.Run("PresidioEntityThresholdGatesOneEntity", func(t *testing.T) {
		rs, err := rules.NewMerger(nil).Merge(&rules.RuleDocument{
			PresidioOverrides: rules.PresidioOverrides{
				EntityScoreThresholds: map[string]float64{"PHONE_NUMBER": 0.9},
			},
		}, &rules.RuleDocument{})
		if err != nil {
			t.Fatalf("Merge failed: %v", err)
		}
		detector := newTestDetector(t, testDetectorConfig(), rs)

		candidates := detector.Detect("ref 98765 43210 and PAN ABCDE1234F")
		if phones := candidatesFor(candidates, "PHONE_NUMBER"); len(phones) != 0 {
			t.Errorf("Expected phone at 0.55 dropped below entity threshold 0.9, got %d candidates", len(phones))
		}
		if pans := candidatesFor(candidates, "IN_PAN"); len(pans) != 1 {
			t.Errorf("Expected other entities unaffected, got %d PAN candidates", len(pans))
		}
	})

	t.Run("ConfiguredEntityThresholdAppliesWithoutOverride", func(t *testing.T) {
		cfg := testDetectorConfig()
		cfg.EntityScoreThresholds = map[string]float64{"PHONE_NUMBER": 0.9}
		detector := newTestDetector(t, cfg, nil)

		phones := candidatesFor(detector.Detect("ref 98765 43210 xyz"), "PHONE_NUMBER")
		if len(phones) != 0 {
			t.Errorf("Expected configured entity threshold to gate, got %d candidates", len(phones))
		}
	})

	t.Run("ConfiguredContextWordsBoost", func(t *testing.T) {
		cfg := testDetectorConfig()
		cfg.ContextWords = []string{"registered"}
		detector := newTestDetector(t, cfg, nil)

		pans := candidatesFor(detector.Detect("ref ABCDE1234F registered"), "IN_PAN")
		if len(pans) != 1 {
			t.Fatalf("Expected 1 PAN candidate, got %d", len(pans))
		}
		if math.Abs(pans[0].Score-0.65) > 1e-9 {
			t.Errorf("Expected configured context word to boost score to 0.65, got %f", pans[0].Score)
		}
	})
}

func TestDetectAadhaarChecksum(t *testing.T) {
	valid := validAadhaarNumber(t)
	invalid := valid[:11] + string('0'+(valid[11]-'0'+1)%10)

	t.Run("ChecksumGateDropsInvalidNumbers", func(t *testing.T) {
		detector := newTestDetector(t, testDetectorConfig(), nil)

		found := candidatesFor(detector.Detect("aadhaar "+valid), "IN_AADHAAR")
		if len(found) != 1 {
			t.Errorf("Expected valid checksum to pass, got %d candidates", len(found))
		}
		found = candidatesFor(detector.Detect("aadhaar "+invalid), "IN_AADHAAR")
		if len(found) != 0 {
			t.Errorf("Expected invalid checksum to be dropped, got %d candidates", len(found))
		}
	})

	t.Run("ChecksumValidationCanBeDisabled", func(t *testing.T) {
		cfg := testDetectorConfig()
		cfg.CustomRecognizers.AadhaarChecksumValidation = false
		detector := newTestDetector(t, cfg, nil)

		found := candidatesFor(detector.Detect("aadhaar "+invalid), "IN_AADHAAR")
		if len(found) != 1 {
			t.Errorf("Expected invalid checksum accepted when validation is off, got %d candidates", len(found))
		}
	})

	t.Run("RuleSetOverridesChecksumToggle", func(t *testing.T) {
		off := false
		rs := rules.NewEmptyRuleSet()
		rs.Custom.AadhaarChecksumValidation = &off

		detector := newTestDetector(t, testDetectorConfig(), rs)

		found := candidatesFor(detector.Detect("aadhaar "+invalid), "IN_AADHAAR")
		if len(found) != 1 {
			t.Errorf("Expected rule-set override to disable the checksum, got %d candidates", len(found))
		}
	})
}
