package extractor

import (
	"context"
	"regexp"
	"strings"

	"github.com/spec-kit/enrollment-service/internal/domain"
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	namePattern  = regexp.MustCompile(`(?:[Ii] am|[Ii]'m|[Mm]y name is|[Tt]his is)\s+([A-Z][A-Za-z'-]*(?:\s+[A-Z][A-Za-z'-]*)*)`)
	// Company names are taken as the capitalized run after a work lead-in;
	// the run stops at the first lowercase word ("as", "and the...").
	companyPattern  = regexp.MustCompile(`(?:[Ww]ork(?:ing)? (?:at|for))\s+([A-Z][A-Za-z0-9&.'-]*(?:\s+[A-Z][A-Za-z0-9&.'-]*)*)`)
	jobPattern      = regexp.MustCompile(`(?:\bas an?\s+|[Mm]y (?:job title|role|title) is\s+)([A-Za-z][A-Za-z -]*?)(?:[,.;]|$)`)
	referralPattern = regexp.MustCompile(`(?:heard about (?:you|us) (?:from|via|through)|referred by)\s+([A-Za-z0-9][A-Za-z0-9 ]*?)(?:[,.;]|$)`)
)

var programTypes = map[string]string{
	"basic":      "Basic",
	"premium":    "Premium",
	"corporate":  "Corporate",
	"enterprise": "Enterprise",
	"individual": "Individual",
}

// RuleExtractor extracts enrollment fields with regular expressions and
// keyword matching. It is the default capability and the test double for the
// remote model implementation.
type RuleExtractor struct{}

// NewRuleExtractor returns the rule-based extractor.
func NewRuleExtractor() *RuleExtractor {
	return &RuleExtractor{}
}

// Extract proposes field values found in the message. When no pattern
// matches, short messages are treated as a direct answer to the field the
// current stage is asking for.
func (e *RuleExtractor) Extract(_ context.Context, message string, current domain.CollectedData, step domain.Step) (domain.FieldUpdates, error) {
	var updates domain.FieldUpdates
	trimmed := strings.TrimSpace(message)

	if m := emailPattern.FindString(trimmed); m != "" {
		updates.Email = m
	}
	if m := namePattern.FindStringSubmatch(trimmed); m != nil {
		updates.Name = strings.TrimSpace(m[1])
	}
	if m := companyPattern.FindStringSubmatch(trimmed); m != nil {
		updates.Company = strings.TrimSpace(m[1])
	}
	if m := jobPattern.FindStringSubmatch(trimmed); m != nil {
		updates.JobTitle = strings.TrimSpace(m[1])
	}
	if m := referralPattern.FindStringSubmatch(trimmed); m != nil {
		updates.ReferralSource = strings.TrimSpace(m[1])
	}
	for keyword, canonical := range programTypes {
		if containsWord(trimmed, keyword) {
			updates.ProgramType = canonical
			break
		}
	}

	if updates.IsZero() {
		updates = answerForStage(trimmed, current, step)
	}
	return updates, nil
}

// answerForStage interprets a short free-form message as the answer to the
// stage's pending question, mirroring the scripted one-question-at-a-time
// flow the assistant drives.
func answerForStage(message string, current domain.CollectedData, step domain.Step) domain.FieldUpdates {
	var updates domain.FieldUpdates
	if message == "" || len(strings.Fields(message)) > 4 || strings.Contains(message, "@") {
		return updates
	}
	switch step {
	case domain.StepCollectingIdentity:
		if current.Name == "" {
			updates.Name = message
		}
	case domain.StepCollectingContext:
		if current.Company == "" {
			updates.Company = message
		} else if current.JobTitle == "" {
			updates.JobTitle = message
		}
	case domain.StepCollectingPreference:
		if current.ProgramType == "" {
			updates.ProgramType = message
		}
	}
	return updates
}

func containsWord(text, word string) bool {
	lower := strings.ToLower(text)
	idx := strings.Index(lower, word)
	if idx < 0 {
		return false
	}
	before := idx == 0 || !isLetter(lower[idx-1])
	afterIdx := idx + len(word)
	after := afterIdx >= len(lower) || !isLetter(lower[afterIdx])
	return before && after
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
