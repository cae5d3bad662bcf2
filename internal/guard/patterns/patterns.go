// Package patterns holds the compiled inspection rules applied to request
// payloads. Two categories matter downstream: injection attempts fail the
// request as malicious, and PHI-shaped strings fail it as unencrypted PHI
// appearing where only ciphertext should travel.
package patterns

import "regexp"

// Category separates rejection reasons.
type Category string

const (
	CategoryInjection      Category = "injection"
	CategoryUnencryptedPHI Category = "unencrypted_phi"
)

// Severity grades a match for audit risk tagging.
type Severity string

const (
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Pattern is one compiled inspection rule.
type Pattern struct {
	Name     string
	Category Category
	Severity Severity
	re       *regexp.Regexp
}

// Match reports one rule hit. The matched text is deliberately not carried:
// it may be PHI and must never reach logs or error messages.
type Match struct {
	Name     string
	Category Category
	Severity Severity
}

// Registry scans payloads against an ordered rule set.
type Registry struct {
	patterns []Pattern
}

// Default returns the standard rule set: script/markup injection, SQL
// injection signatures, and PHI-shaped strings (Saudi national ID runs,
// payment card numbers, email addresses).
func Default() *Registry {
	return &Registry{patterns: []Pattern{
		{
			Name:     "script_tag",
			Category: CategoryInjection,
			Severity: SeverityHigh,
			re:       regexp.MustCompile(`(?i)<\s*script[^>]*>|javascript\s*:`),
		},
		{
			Name:     "event_handler",
			Category: CategoryInjection,
			Severity: SeverityHigh,
			re:       regexp.MustCompile(`(?i)\bon(load|error|click|mouseover|focus)\s*=`),
		},
		{
			Name:     "markup_injection",
			Category: CategoryInjection,
			Severity: SeverityMedium,
			re:       regexp.MustCompile(`(?i)<\s*(iframe|object|embed|svg)[^>]*>`),
		},
		{
			Name:     "sql_keywords",
			Category: CategoryInjection,
			Severity: SeverityHigh,
			re:       regexp.MustCompile(`(?i)\b(union\s+select|insert\s+into|drop\s+table|delete\s+from|update\s+\w+\s+set)\b`),
		},
		{
			Name:     "sql_comment",
			Category: CategoryInjection,
			Severity: SeverityMedium,
			re:       regexp.MustCompile(`(--|/\*|\*/|;\s*--)`),
		},
		{
			Name:     "sql_tautology",
			Category: CategoryInjection,
			Severity: SeverityHigh,
			re:       regexp.MustCompile(`(?i)('|")\s*or\s+\1?1\1?\s*=\s*\1?1`),
		},
		{
			// Saudi national IDs are ten digits starting with 1 or 2.
			Name:     "national_id",
			Category: CategoryUnencryptedPHI,
			Severity: SeverityCritical,
			re:       regexp.MustCompile(`\b[12]\d{9}\b`),
		},
		{
			Name:     "card_number",
			Category: CategoryUnencryptedPHI,
			Severity: SeverityCritical,
			re:       regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`),
		},
		{
			Name:     "email_address",
			Category: CategoryUnencryptedPHI,
			Severity: SeverityHigh,
			re:       regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		},
	}}
}

// Scan returns the first match, if any. Inspection stops at the first hit
// because any single match already fails the request.
func (r *Registry) Scan(payload []byte) (Match, bool) {
	for _, p := range r.patterns {
		if p.re.Match(payload) {
			return Match{Name: p.Name, Category: p.Category, Severity: p.Severity}, true
		}
	}
	return Match{}, false
}

// ScanString is Scan over a string without copying.
func (r *Registry) ScanString(payload string) (Match, bool) {
	for _, p := range r.patterns {
		if p.re.MatchString(payload) {
			return Match{Name: p.Name, Category: p.Category, Severity: p.Severity}, true
		}
	}
	return Match{}, false
}
