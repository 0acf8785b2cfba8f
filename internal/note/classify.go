package note

import (
	"strings"

	"github.com/spec-kit/handoff-bridge/internal/domain"
)

// Rule pairs a set of trigger keywords with the result they classify to.
// Rules are evaluated in order; the first rule with any matching keyword
// wins.
type Rule[T any] struct {
	Keywords []string
	Result   T
}

// Classify runs text through an ordered rule table. Matching is
// case-insensitive substring containment. When no rule matches, the
// fallback is returned. Same input always yields the same output.
func Classify[T any](text string, rules []Rule[T], fallback T) T {
	lowered := strings.ToLower(text)
	for _, rule := range rules {
		for _, keyword := range rule.Keywords {
			if strings.Contains(lowered, keyword) {
				return rule.Result
			}
		}
	}
	return fallback
}

// Classifier holds the rule tables used to infer classification from free
// text. Tables are replaceable so they can evolve independently.
type Classifier struct {
	CategoryRules []Rule[domain.Category]
	ReasonRules   []Rule[domain.EscalationReason]
}

// NewClassifier returns a classifier with the default rule tables.
func NewClassifier() *Classifier {
	return &Classifier{
		CategoryRules: DefaultCategoryRules(),
		ReasonRules:   DefaultReasonRules(),
	}
}

// InferCategory classifies free text into a category, Unknown when no rule
// matches.
func (c *Classifier) InferCategory(text string) domain.Category {
	return Classify(text, c.CategoryRules, domain.CategoryUnknown)
}

// InferReason classifies free text into an escalation reason, Other when no
// rule matches.
func (c *Classifier) InferReason(text string) domain.EscalationReason {
	return Classify(text, c.ReasonRules, domain.ReasonOther)
}

// DefaultCategoryRules is the priority-ordered category table. Outage ranks
// first: an area outage explains most downstream symptoms.
func DefaultCategoryRules() []Rule[domain.Category] {
	return []Rule[domain.Category]{
		{Keywords: []string{"outage", "no internet", "internet down", "service down", "down in the area", "whole area", "offline since"}, Result: domain.CategoryOutage},
		{Keywords: []string{"cgnat", "port forward", "port forwarding", "public ip", "static ip", "ddns", "nat type"}, Result: domain.CategoryCGNAT},
		{Keywords: []string{"wifi", "wi-fi", "wireless", "router", "ssid", "access point", "weak signal", "cannot connect"}, Result: domain.CategoryWiFi},
		{Keywords: []string{"wiring", "cable", "ethernet", "drop line", "splice", "conduit", "wall jack", "fiber cut"}, Result: domain.CategoryWiring},
		{Keywords: []string{"equipment return", "return the modem", "return the router", "ship back", "return label", "cancel service"}, Result: domain.CategoryEquipmentReturn},
	}
}

// DefaultReasonRules is the priority-ordered reason table. Safety ranks
// first so hazard language is never shadowed by other matches.
func DefaultReasonRules() []Rule[domain.EscalationReason] {
	return []Rule[domain.EscalationReason]{
		{Keywords: []string{"fire", "smoke", "sparks", "burning", "shock", "downed line", "exposed wire", "safety"}, Result: domain.ReasonSafetyRisk},
		{Keywords: []string{"speak to a human", "talk to a person", "real person", "representative", "human agent", "speak with someone"}, Result: domain.ReasonCallerRequested},
		{Keywords: []string{"billing", "bill", "charge", "refund", "payment", "invoice", "account change", "account issue"}, Result: domain.ReasonBillingOrAccount},
		{Keywords: []string{"out of scope", "cannot help with", "not supported", "unsupported request"}, Result: domain.ReasonOutOfScope},
		{Keywords: []string{"already tried", "still not working", "tried twice", "tried everything", "did not work", "didn't work", "no resolution", "after reset"}, Result: domain.ReasonTwoStepsNoResolve},
	}
}
