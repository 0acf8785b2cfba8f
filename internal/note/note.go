// Package note renders and parses the canonical 4-line handoff note and
// infers classification from free text via ordered keyword rule tables.
package note

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spec-kit/handoff-bridge/internal/domain"
	apperrors "github.com/spec-kit/handoff-bridge/pkg/util"
)

// MaxNoteLength bounds the rendered note, labels included.
const MaxNoteLength = 350

// NoteLines is the exact number of lines a canonical note carries.
const NoteLines = 4

const (
	labelCategory   = "Category: "
	labelReason     = "Reason: "
	labelSummary    = "Summary: "
	labelConfidence = "Confidence: "
)

// Components are the semantic parts of a canonical note.
type Components struct {
	Category   domain.Category
	Reason     domain.EscalationReason
	Summary    string
	Confidence float64
}

// CategoryLabel returns the display name used on the note's category line.
func CategoryLabel(c domain.Category) string {
	switch c {
	case domain.CategoryOutage:
		return "Outage"
	case domain.CategoryWiFi:
		return "WiFi"
	case domain.CategoryCGNAT:
		return "CGNAT"
	case domain.CategoryWiring:
		return "Wiring"
	case domain.CategoryEquipmentReturn:
		return "EquipmentReturn"
	default:
		return "Unknown"
	}
}

// ReasonLabel returns the display name used on the note's reason line.
func ReasonLabel(r domain.EscalationReason) string {
	switch r {
	case domain.ReasonCallerRequested:
		return "CallerRequested"
	case domain.ReasonTwoStepsNoResolve:
		return "TwoStepsNoResolve"
	case domain.ReasonOutOfScope:
		return "OutOfScope"
	case domain.ReasonSafetyRisk:
		return "SafetyRisk"
	case domain.ReasonBillingOrAccount:
		return "BillingOrAccount"
	default:
		return "Other"
	}
}

// CategoryFromLabel resolves a note line value back to a category. Accepts
// both display names and enum spellings, case-insensitively.
func CategoryFromLabel(value string) (domain.Category, bool) {
	normalized := normalizeEnum(value)
	for _, c := range domain.Categories() {
		if normalized == normalizeEnum(string(c)) || normalized == normalizeEnum(CategoryLabel(c)) {
			return c, true
		}
	}
	return domain.CategoryUnknown, false
}

// ReasonFromLabel resolves a note line value back to an escalation reason.
func ReasonFromLabel(value string) (domain.EscalationReason, bool) {
	normalized := normalizeEnum(value)
	for _, r := range domain.EscalationReasons() {
		if normalized == normalizeEnum(string(r)) || normalized == normalizeEnum(ReasonLabel(r)) {
			return r, true
		}
	}
	return domain.ReasonOther, false
}

func normalizeEnum(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, "_", "")
	value = strings.ReplaceAll(value, "-", "")
	value = strings.ReplaceAll(value, " ", "")
	return value
}

// Render produces the canonical note. It rejects components that would
// violate the line or length contract.
func Render(c Components) (string, error) {
	if !domain.ValidCategory(c.Category) {
		return "", apperrors.NewValidationError("invalid category", map[string]any{
			"field": "category",
			"value": string(c.Category),
		})
	}
	if !domain.ValidEscalationReason(c.Reason) {
		return "", apperrors.NewValidationError("invalid escalation reason", map[string]any{
			"field": "reason",
			"value": string(c.Reason),
		})
	}
	summary := strings.TrimSpace(c.Summary)
	if summary == "" {
		return "", apperrors.NewValidationError("summary is empty", map[string]any{
			"field": "summary",
			"line":  2,
		})
	}
	if strings.Contains(summary, "\n") {
		return "", apperrors.NewValidationError("summary must be a single line", map[string]any{
			"field": "summary",
			"line":  2,
		})
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return "", apperrors.NewValidationError("confidence must be between 0 and 1", map[string]any{
			"field": "confidence",
			"value": c.Confidence,
		})
	}

	rendered := strings.Join([]string{
		labelCategory + CategoryLabel(c.Category),
		labelReason + ReasonLabel(c.Reason),
		labelSummary + summary,
		labelConfidence + formatConfidence(c.Confidence),
	}, "\n")

	if len(rendered) > MaxNoteLength {
		return "", apperrors.NewValidationError("note exceeds length budget", map[string]any{
			"field":      "summary",
			"characters": len(rendered),
			"max":        MaxNoteLength,
			"lines":      NoteLines,
		})
	}
	return rendered, nil
}

// ClipSummary shortens a free-text summary so the rendered note for the
// given category and reason fits the length budget.
func ClipSummary(summary string, c domain.Category, r domain.EscalationReason) string {
	summary = strings.TrimSpace(strings.ReplaceAll(summary, "\n", " "))
	overhead := len(labelCategory) + len(CategoryLabel(c)) + 1 +
		len(labelReason) + len(ReasonLabel(r)) + 1 +
		len(labelSummary) + 1 +
		len(labelConfidence) + len("0.999")
	budget := MaxNoteLength - overhead
	if budget < 0 {
		budget = 0
	}
	if len(summary) <= budget {
		return summary
	}
	if budget <= 3 {
		return summary[:budget]
	}
	return strings.TrimSpace(summary[:budget-3]) + "..."
}

// Parse validates a pre-rendered note and extracts its components.
func Parse(raw string) (Components, error) {
	if len(raw) > MaxNoteLength {
		return Components{}, apperrors.NewValidationError("note exceeds length budget", map[string]any{
			"characters": len(raw),
			"max":        MaxNoteLength,
			"lines":      strings.Count(raw, "\n") + 1,
		})
	}
	lines := strings.Split(raw, "\n")
	if len(lines) != NoteLines {
		return Components{}, apperrors.NewValidationError("note must have exactly 4 lines", map[string]any{
			"lines":      len(lines),
			"characters": len(raw),
			"expected":   NoteLines,
		})
	}

	var out Components
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			return Components{}, apperrors.NewValidationError("note line is empty", map[string]any{
				"line":       i,
				"lines":      len(lines),
				"characters": len(raw),
			})
		}
	}

	categoryValue, err := lineValue(lines, 0, labelCategory, len(raw))
	if err != nil {
		return Components{}, err
	}
	category, ok := CategoryFromLabel(categoryValue)
	if !ok {
		return Components{}, apperrors.NewValidationError("unrecognized category", map[string]any{
			"line":  0,
			"value": categoryValue,
		})
	}
	out.Category = category

	reasonValue, err := lineValue(lines, 1, labelReason, len(raw))
	if err != nil {
		return Components{}, err
	}
	reason, ok := ReasonFromLabel(reasonValue)
	if !ok {
		return Components{}, apperrors.NewValidationError("unrecognized escalation reason", map[string]any{
			"line":  1,
			"value": reasonValue,
		})
	}
	out.Reason = reason

	summary, err := lineValue(lines, 2, labelSummary, len(raw))
	if err != nil {
		return Components{}, err
	}
	out.Summary = summary

	confidenceValue, err := lineValue(lines, 3, labelConfidence, len(raw))
	if err != nil {
		return Components{}, err
	}
	confidence, parseErr := strconv.ParseFloat(confidenceValue, 64)
	if parseErr != nil || confidence < 0 || confidence > 1 {
		return Components{}, apperrors.NewValidationError("confidence must be a number between 0 and 1", map[string]any{
			"line":  3,
			"value": confidenceValue,
		})
	}
	out.Confidence = confidence

	return out, nil
}

func lineValue(lines []string, index int, label string, totalChars int) (string, error) {
	line := lines[index]
	if !strings.HasPrefix(line, label) {
		return "", apperrors.NewValidationError(fmt.Sprintf("line %d must start with %q", index, strings.TrimSpace(label)), map[string]any{
			"line":       index,
			"lines":      len(lines),
			"characters": totalChars,
		})
	}
	value := strings.TrimSpace(strings.TrimPrefix(line, label))
	if value == "" {
		return "", apperrors.NewValidationError("note line has no value", map[string]any{
			"line":       index,
			"lines":      len(lines),
			"characters": totalChars,
		})
	}
	return value, nil
}

func formatConfidence(c float64) string {
	return strconv.FormatFloat(c, 'f', -1, 64)
}
