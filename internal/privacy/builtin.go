package privacy

import (
	"fmt"
	"strings"

	"github.com/dpdplabs/pii-scanner/internal/config"
	"github.com/dpdplabs/pii-scanner/internal/rules"
)

func scoreOf(v float64) *float64 { return &v }

// builtinGenericDefs returns the always-available recognizers for
// region-independent identifiers.
func builtinGenericDefs() []rules.PatternRecognizerDef {
	return []rules.PatternRecognizerDef{
		{
			Entity:   "EMAIL_ADDRESS",
			Patterns: []string{`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`},
			Score:    scoreOf(0.6),
			Context:  []string{"email", "e-mail", "mail"},
		},
		{
			Entity:   "PHONE_NUMBER",
			Patterns: []string{`(?:\+?91[-\s]?)?[6-9]\d{4}[-\s]?\d{5}\b`},
			Score:    scoreOf(0.55),
			Context:  []string{"phone", "mobile", "call", "contact", "tel"},
		},
		{
			Entity:   "CREDIT_CARD",
			Patterns: []string{`\b(?:\d[ -]?){12,15}\d\b`},
			Score:    scoreOf(0.5),
			Context:  []string{"card", "credit", "visa", "mastercard", "cvv", "expiry"},
		},
		{
			Entity:   "IP_ADDRESS",
			Patterns: []string{`\b(?:(?:25[0-5]|2[0-4]\d|[01]?\d?\d)\.){3}(?:25[0-5]|2[0-4]\d|[01]?\d?\d)\b`},
			Score:    scoreOf(0.6),
			Context:  []string{"ip", "address", "host"},
		},
	}
}

// builtinIndianDefs returns pattern recognizers tailored for common
// India-specific identifiers. The Aadhaar checksum is enforced separately
// by the detector because it is a validation step, not a pattern.
func builtinIndianDefs(custom config.CustomRecognizersConfig) []rules.PatternRecognizerDef {
	defs := []rules.PatternRecognizerDef{
		{
			Entity:   "IN_AADHAAR",
			Patterns: []string{`\b[2-9]\d{3}\s?\d{4}\s?\d{4}\b`},
			Score:    scoreOf(0.35),
			Context:  []string{"aadhaar", "uidai", "identity number", "government id"},
		},
		{
			Entity:   "IN_PAN",
			Patterns: []string{`\b[A-Z]{5}[0-9]{4}[A-Z]\b`},
			Score:    scoreOf(0.55),
			Context:  []string{"pan", "income tax", "permanent account number"},
		},
		{
			Entity:   "IN_IFSC",
			Patterns: []string{`\b[A-Z]{4}0[A-Z0-9]{6}\b`},
			Score:    scoreOf(0.6),
			Context:  []string{"ifsc", "bank", "branch", "account"},
		},
		{
			Entity:   "IN_PASSPORT",
			Patterns: []string{`\b[A-PR-WYa-pr-wy][1-9]\d{6}\b`},
			Score:    scoreOf(0.55),
			Context:  []string{"passport", "travel document"},
		},
		{
			Entity:   "IN_BANK_ACCOUNT",
			Patterns: []string{`\b\d{9,18}\b`},
			Score:    scoreOf(0.35),
			Context:  []string{"account", "bank", "ifsc", "branch", "beneficiary"},
		},
	}

	handles := custom.UPIHandleDomains
	if len(handles) == 0 {
		handles = []string{"upi", "ybl", "ibl", "axl", "paytm", "okhdfcbank", "okicici", "oksbi", "okaxis"}
	}
	upi := rules.PatternRecognizerDef{
		Entity: "IN_UPI_ID",
		Patterns: []string{
			fmt.Sprintf(`\b[a-zA-Z0-9._-]{2,}@(%s)\b`, strings.Join(handles, "|")),
		},
		Score:   scoreOf(0.7),
		Context: []string{"upi", "vpa", "gpay", "phonepe", "paytm", "bhim", "payment"},
	}
	if custom.UPIGenericPattern {
		upi.Patterns = append(upi.Patterns, `\b[a-zA-Z0-9._-]{2,}@[a-zA-Z]{2,64}\b`)
	}
	defs = append(defs, upi)

	return defs
}
