package privacy

import (
	"strings"

	"github.com/dpdplabs/pii-scanner/internal/config"
	"github.com/dpdplabs/pii-scanner/internal/logger"
	"github.com/dpdplabs/pii-scanner/internal/rules"
	"go.uber.org/zap"
)

// How far around a match to look for recognizer context words, and how much
// a context hit lifts the score.
const (
	contextScanWindow = 64
	contextBoost      = 0.1
)

// Detector finds raw PII candidates using regex recognizers: the built-in
// set plus any additional recognizers from the resolved rule set. It plays
// the collaborator role of the statistical detector; its output is filtered
// by the rule evaluator, never reported directly.
type Detector struct {
	recognizers     []rules.CompiledRecognizer
	globalContext   []string
	minScore        float64
	entityMinScores map[string]float64
	aadhaarChecksum bool
	logger          *logger.Logger
}

// New builds a detector from the detector configuration and the resolved
// rule set. Rule-set overrides win over configuration for the custom
// recognizer toggles and the entity allow-list.
func New(cfg config.DetectorConfig, rs *rules.ResolvedRuleSet, compiler *rules.Compiler, log *logger.Logger) (*Detector, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if compiler == nil {
		compiler = rules.NewCompiler(nil)
	}

	custom := cfg.CustomRecognizers
	if rs.Custom.EnableIndianIdentifiers != nil {
		custom.EnableIndianIdentifiers = *rs.Custom.EnableIndianIdentifiers
	}
	if rs.Custom.AadhaarChecksumValidation != nil {
		custom.AadhaarChecksumValidation = *rs.Custom.AadhaarChecksumValidation
	}
	if rs.Custom.UPIGenericPattern != nil {
		custom.UPIGenericPattern = *rs.Custom.UPIGenericPattern
	}
	if rs.Custom.UPIHandleDomains != nil {
		custom.UPIHandleDomains = rs.Custom.UPIHandleDomains
	}

	defs := builtinGenericDefs()
	if custom.EnableIndianIdentifiers {
		defs = append(defs, builtinIndianDefs(custom)...)
	}

	// Detection scope: rule-set presidio entities override the configured
	// list; include_entities widen it. Excluded entities still get detected
	// so the evaluator can record the rejection reason.
	allowed := make(map[string]struct{})
	entities := cfg.Entities
	if rs.Presidio.Entities != nil {
		entities = rs.Presidio.Entities
	}
	for _, entity := range entities {
		allowed[entity] = struct{}{}
	}
	for entity := range rs.IncludeEntities {
		allowed[entity] = struct{}{}
	}

	scoped := defs[:0]
	for _, def := range defs {
		if _, ok := allowed[def.Entity]; ok || len(allowed) == 0 {
			scoped = append(scoped, def)
		}
	}

	compiled, err := compiler.Compile(scoped)
	if err != nil {
		return nil, err
	}

	// Recognizers declared in rule documents always run; declaring one is an
	// explicit request to detect that entity type.
	recognizers := append(compiled, rs.Recognizers...)

	// Global and per-entity minimum scores gate raw candidates before rule
	// evaluation. Rule-set values win over configuration; the per-entity map
	// merges key-by-key.
	minScore := cfg.ScoreThreshold
	if rs.Presidio.ScoreThreshold != nil {
		minScore = *rs.Presidio.ScoreThreshold
	}
	entityMinScores := make(map[string]float64, len(cfg.EntityScoreThresholds)+len(rs.Presidio.EntityScoreThresholds))
	for entity, threshold := range cfg.EntityScoreThresholds {
		entityMinScores[entity] = threshold
	}
	for entity, threshold := range rs.Presidio.EntityScoreThresholds {
		entityMinScores[entity] = threshold
	}

	globalContext := append(append([]string(nil), cfg.ContextWords...), rs.Presidio.ContextWords...)

	detector := &Detector{
		recognizers:     recognizers,
		globalContext:   lowerAll(globalContext),
		minScore:        minScore,
		entityMinScores: entityMinScores,
		aadhaarChecksum: custom.AadhaarChecksumValidation,
		logger:          log,
	}

	log.Info("Detector initialized",
		zap.Int("recognizers", len(recognizers)),
		zap.Int("entities_in_scope", len(allowed)),
		zap.Float64("min_score", minScore),
		zap.Bool("aadhaar_checksum", detector.aadhaarChecksum),
	)

	return detector, nil
}

// Detect scans the text with every recognizer and returns raw candidates.
// It is safe to call concurrently; the detector holds no mutable state.
func (d *Detector) Detect(text string) []rules.Candidate {
	var candidates []rules.Candidate

	for _, recognizer := range d.recognizers {
		for _, pattern := range recognizer.Patterns {
			for _, span := range pattern.Regexp.FindAllStringIndex(text, -1) {
				matched := text[span[0]:span[1]]

				if recognizer.Entity == "IN_AADHAAR" && !d.validAadhaar(matched) {
					continue
				}

				score := recognizer.Score
				if hasNearbyContext(text, span[0], span[1], recognizer.Context) ||
					hasNearbyContext(text, span[0], span[1], d.globalContext) {
					score += contextBoost
					if score > 1.0 {
						score = 1.0
					}
				}

				if score < d.thresholdFor(recognizer.Entity) {
					continue
				}

				candidates = append(candidates, rules.Candidate{
					EntityType: recognizer.Entity,
					Matched:    matched,
					Start:      span[0],
					End:        span[1],
					Score:      score,
				})
			}
		}
	}

	return candidates
}

// thresholdFor returns the minimum score for an entity type: the per-entity
// threshold when it is stricter than the global one.
func (d *Detector) thresholdFor(entity string) float64 {
	threshold := d.minScore
	if entityMin, ok := d.entityMinScores[entity]; ok && entityMin > threshold {
		threshold = entityMin
	}
	return threshold
}

// validAadhaar requires twelve digits and, when enabled, a passing Verhoeff
// checksum.
func (d *Detector) validAadhaar(matched string) bool {
	digits := rules.Normalize(matched, rules.NormalizationDigits)
	if len(digits) != 12 {
		return false
	}
	if !d.aadhaarChecksum {
		return true
	}
	return VerhoeffValidate(digits)
}

// hasNearbyContext reports whether any keyword appears in the text
// surrounding a match.
func hasNearbyContext(text string, start, end int, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	before, after := rules.ContextWindow(text, start, end, contextScanWindow)
	surrounding := strings.ToLower(before + after)
	for _, keyword := range keywords {
		if keyword != "" && strings.Contains(surrounding, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}

func lowerAll(values []string) []string {
	lowered := make([]string, 0, len(values))
	for _, value := range values {
		lowered = append(lowered, strings.ToLower(value))
	}
	return lowered
}
