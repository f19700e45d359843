package privacy

import (
	"sort"
	"strings"

	"github.com/dpdplabs/pii-scanner/internal/rules"
)

const numericContextWindow = 64

var bankContextKeywords = []string{
	"account", "acct", "a/c", "ifsc", "bank", "beneficiary", "iban",
}

// entityPriority breaks ties when multiple recognizers claim the same span.
// Higher wins.
var entityPriority = map[string]int{
	"IN_AADHAAR":      200,
	"IN_PAN":          190,
	"IN_IFSC":         185,
	"IN_UPI_ID":       180,
	"IN_PASSPORT":     175,
	"CREDIT_CARD":     170,
	"IBAN_CODE":       165,
	"IN_BANK_ACCOUNT": 145,
	"EMAIL_ADDRESS":   140,
	"PHONE_NUMBER":    130,
	"PERSON":          120,
	"LOCATION":        110,
	"IP_ADDRESS":      100,
}

// PostProcess applies precision-focused filtering to raw candidates:
// stricter numeric validation for IN_BANK_ACCOUNT, Indian mobile prefix
// checks for PHONE_NUMBER, and same-span conflict resolution by entity
// priority. The result is sorted by position.
func PostProcess(candidates []rules.Candidate, text string) []rules.Candidate {
	filtered := make([]rules.Candidate, 0, len(candidates))
	for _, c := range candidates {
		switch c.EntityType {
		case "IN_BANK_ACCOUNT":
			if !keepBankAccount(c, text) {
				continue
			}
		case "PHONE_NUMBER":
			if !keepPhoneNumber(c) {
				continue
			}
		}
		filtered = append(filtered, c)
	}

	return resolveSameSpanConflicts(filtered)
}

// keepBankAccount drops bare digit runs that are too short or too long for
// an Indian account number, look like a phone number or an Aadhaar number,
// or lack banking context when short enough to be ambiguous.
func keepBankAccount(c rules.Candidate, text string) bool {
	digits := rules.Normalize(c.Matched, rules.NormalizationDigits)

	if len(digits) < 11 || len(digits) > 18 {
		return false
	}
	if looksLikePhone(digits) {
		return false
	}
	if looksLikeAadhaar(digits) {
		return false
	}

	if len(digits) <= 12 {
		before, after := rules.ContextWindow(text, c.Start, c.End, numericContextWindow)
		surrounding := strings.ToLower(before + after)
		for _, keyword := range bankContextKeywords {
			if strings.Contains(surrounding, keyword) {
				return true
			}
		}
		return false
	}
	return true
}

// keepPhoneNumber tightens +91/91 formats: the local ten-digit part must
// start with 6-9.
func keepPhoneNumber(c rules.Candidate) bool {
	digits := rules.Normalize(c.Matched, rules.NormalizationDigits)
	if strings.HasPrefix(digits, "91") && len(digits) >= 12 {
		local := digits[len(digits)-10:]
		if local[0] < '6' || local[0] > '9' {
			return false
		}
	}
	return true
}

func looksLikePhone(digits string) bool {
	return len(digits) == 10 && digits[0] >= '6' && digits[0] <= '9'
}

func looksLikeAadhaar(digits string) bool {
	return len(digits) == 12 && digits[0] >= '2' && digits[0] <= '9' && VerhoeffValidate(digits)
}

// resolveSameSpanConflicts keeps one candidate per (start, end) span,
// preferring higher entity priority, then higher score.
func resolveSameSpanConflicts(candidates []rules.Candidate) []rules.Candidate {
	type span struct{ start, end int }

	grouped := make(map[span][]rules.Candidate)
	for _, c := range candidates {
		key := span{c.Start, c.End}
		grouped[key] = append(grouped[key], c)
	}

	resolved := make([]rules.Candidate, 0, len(grouped))
	for _, group := range grouped {
		winner := group[0]
		for _, c := range group[1:] {
			if entityPriority[c.EntityType] > entityPriority[winner.EntityType] ||
				(entityPriority[c.EntityType] == entityPriority[winner.EntityType] && c.Score > winner.Score) {
				winner = c
			}
		}
		resolved = append(resolved, winner)
	}

	sort.Slice(resolved, func(i, j int) bool {
		if resolved[i].Start != resolved[j].Start {
			return resolved[i].Start < resolved[j].Start
		}
		if resolved[i].End != resolved[j].End {
			return resolved[i].End < resolved[j].End
		}
		return resolved[i].Score > resolved[j].Score
	})
	return resolved
}
