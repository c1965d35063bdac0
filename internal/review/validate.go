package review

import (
	"fmt"
	"regexp"
	"strings"
)

var injectionPattern = regexp.MustCompile(
	`(?i)(ignore\s+(previous|all|above)|system\s*prompt|you\s+are\s+now|` +
		`forget\s+(everything|all)|new\s+instructions|ignore\s+as\s+instruções)`,
)

// ValidateProposal checks a proposal's shape before it is matched against
// document text. It returns nil when the proposal is usable.
func ValidateProposal(p Proposal, minConfidence float64) error {
	if len(p.missing) > 0 {
		return fmt.Errorf("missing field %q", p.missing[0])
	}
	if strings.TrimSpace(p.Error) == "" || strings.TrimSpace(p.Correction) == "" {
		return fmt.Errorf("empty error or correction")
	}
	if p.Error == p.Correction {
		return fmt.Errorf("correction equals error")
	}
	if p.Confidence != nil && *p.Confidence < minConfidence {
		return fmt.Errorf("confidence %.2f below %.2f", *p.Confidence, minConfidence)
	}
	if injectionPattern.MatchString(p.Correction) {
		return fmt.Errorf("correction looks like an instruction")
	}
	return nil
}
