// Package analytics is the aggregation engine. Every query is a pure
// function of the order set, the name resolution table, the inspection
// index and an explicit date window; nothing here does I/O, logs, or reads
// the clock.
package analytics

import (
	"strings"
)

// rodentKeywords are matched as plain substrings of the lower-cased
// violation description.
var rodentKeywords = []string{"rodent", "rat", "mice", "mouse", "vermin"}

const closureKeyword = "closed"

// Risk categories, in tie-break order for top_violation_category.
const (
	CategoryRodent       = "rodent"
	CategoryCritical     = "critical"
	CategoryClosed       = "closed"
	CategoryGradePending = "grade_pending"
)

var boroughCategories = []string{CategoryRodent, CategoryCritical, CategoryClosed, CategoryGradePending}

// Revenue-at-risk breakdown keys.
const (
	RiskClosed            = "closed"
	RiskGradeC            = "grade_c"
	RiskGradePending      = "grade_pending"
	RiskCriticalViolation = "critical_violation"
)

var riskKeys = []string{RiskClosed, RiskGradeC, RiskGradePending, RiskCriticalViolation}

// IsRodent reports whether a violation description names a rodent or vermin.
func IsRodent(description string) bool {
	d := strings.ToLower(description)
	for _, kw := range rodentKeywords {
		if strings.Contains(d, kw) {
			return true
		}
	}
	return false
}

// IsClosure reports whether an inspection action records a closure or
// re-closure.
func IsClosure(action string) bool {
	return strings.Contains(strings.ToLower(action), closureKeyword)
}
