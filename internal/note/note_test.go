package note

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/handoff-bridge/internal/domain"
	apperrors "github.com/spec-kit/handoff-bridge/pkg/util"
)

func TestRenderCanonicalNote(t *testing.T) {
	rendered, err := Render(Components{
		Category:   domain.CategoryWiFi,
		Reason:     domain.ReasonTwoStepsNoResolve,
		Summary:    "Customer reports intermittent WiFi drops after router reset",
		Confidence: 0.82,
	})
	require.NoError(t, err)

	lines := strings.Split(rendered, "\n")
	require.Len(t, lines, NoteLines)
	assert.Equal(t, "Category: WiFi", lines[0])
	assert.Equal(t, "Reason: TwoStepsNoResolve", lines[1])
	assert.Equal(t, "Summary: Customer reports intermittent WiFi drops after router reset", lines[2])
	assert.Equal(t, "Confidence: 0.82", lines[3])
	assert.LessOrEqual(t, len(rendered), MaxNoteLength)
}

func TestRenderRejectsInvalidComponents(t *testing.T) {
	valid := Components{
		Category:   domain.CategoryOutage,
		Reason:     domain.ReasonOther,
		Summary:    "Area outage reported",
		Confidence: 0.5,
	}

	tests := []struct {
		name   string
		mutate func(c *Components)
	}{
		{"invalid category", func(c *Components) { c.Category = "LASER" }},
		{"invalid reason", func(c *Components) { c.Reason = "BORED" }},
		{"empty summary", func(c *Components) { c.Summary = "   " }},
		{"multiline summary", func(c *Components) { c.Summary = "first\nsecond" }},
		{"confidence below range", func(c *Components) { c.Confidence = -0.1 }},
		{"confidence above range", func(c *Components) { c.Confidence = 1.01 }},
		{"summary too long", func(c *Components) { c.Summary = strings.Repeat("x", MaxNoteLength) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			components := valid
			tc.mutate(&components)
			_, err := Render(components)
			require.Error(t, err)
			assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
		})
	}
}

func TestRenderLengthErrorCarriesCounts(t *testing.T) {
	_, err := Render(Components{
		Category:   domain.CategoryWiring,
		Reason:     domain.ReasonOutOfScope,
		Summary:    strings.Repeat("a", MaxNoteLength),
		Confidence: 1,
	})
	require.Error(t, err)
	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, MaxNoteLength, domainErr.Details["max"])
	assert.Greater(t, domainErr.Details["characters"].(int), MaxNoteLength)
}

func TestClipSummaryFitsBudget(t *testing.T) {
	long := strings.Repeat("signal drops every evening ", 30)
	clipped := ClipSummary(long, domain.CategoryWiFi, domain.ReasonTwoStepsNoResolve)
	assert.True(t, strings.HasSuffix(clipped, "..."))

	rendered, err := Render(Components{
		Category:   domain.CategoryWiFi,
		Reason:     domain.ReasonTwoStepsNoResolve,
		Summary:    clipped,
		Confidence: 0.999,
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(rendered), MaxNoteLength)
}

func TestClipSummaryFlattensNewlines(t *testing.T) {
	clipped := ClipSummary("line one\nline two", domain.CategoryOutage, domain.ReasonOther)
	assert.Equal(t, "line one line two", clipped)
}

func TestParseRoundTrip(t *testing.T) {
	original := Components{
		Category:   domain.CategoryCGNAT,
		Reason:     domain.ReasonCallerRequested,
		Summary:    "Needs a public IP for a home camera system",
		Confidence: 0.7,
	}
	rendered, err := Render(original)
	require.NoError(t, err)

	parsed, err := Parse(rendered)
	require.NoError(t, err)
	assert.Equal(t, original, parsed)
}

func TestParseAcceptsEnumSpellings(t *testing.T) {
	raw := strings.Join([]string{
		"Category: EQUIPMENT_RETURN",
		"Reason: two_steps_no_resolve",
		"Summary: Modem needs to be shipped back",
		"Confidence: 1",
	}, "\n")

	parsed, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryEquipmentReturn, parsed.Category)
	assert.Equal(t, domain.ReasonTwoStepsNoResolve, parsed.Reason)
	assert.Equal(t, 1.0, parsed.Confidence)
}

func TestParseRejectsMalformedNotes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		line any
	}{
		{
			name: "three lines",
			raw:  "Category: WiFi\nReason: Other\nSummary: missing confidence",
		},
		{
			name: "wrong label",
			raw:  "Kind: WiFi\nReason: Other\nSummary: s\nConfidence: 0.5",
			line: 0,
		},
		{
			name: "unknown category value",
			raw:  "Category: Quantum\nReason: Other\nSummary: s\nConfidence: 0.5",
			line: 0,
		},
		{
			name: "unknown reason value",
			raw:  "Category: WiFi\nReason: Sleepy\nSummary: s\nConfidence: 0.5",
			line: 1,
		},
		{
			name: "empty summary value",
			raw:  "Category: WiFi\nReason: Other\nSummary: \nConfidence: 0.5",
			line: 2,
		},
		{
			name: "confidence not numeric",
			raw:  "Category: WiFi\nReason: Other\nSummary: s\nConfidence: high",
			line: 3,
		},
		{
			name: "confidence out of range",
			raw:  "Category: WiFi\nReason: Other\nSummary: s\nConfidence: 1.5",
			line: 3,
		},
		{
			name: "over length",
			raw:  "Category: WiFi\nReason: Other\nSummary: " + strings.Repeat("z", MaxNoteLength) + "\nConfidence: 0.5",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.raw)
			require.Error(t, err)
			domainErr := apperrors.ToDomainError(err)
			assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)
			if tc.line != nil {
				assert.Equal(t, tc.line, domainErr.Details["line"])
			}
		})
	}
}

func TestConfidenceFormatting(t *testing.T) {
	tests := []struct {
		confidence float64
		want       string
	}{
		{1, "Confidence: 1"},
		{0, "Confidence: 0"},
		{0.5, "Confidence: 0.5"},
		{0.825, "Confidence: 0.825"},
	}
	for _, tc := range tests {
		rendered, err := Render(Components{
			Category:   domain.CategoryUnknown,
			Reason:     domain.ReasonOther,
			Summary:    "short",
			Confidence: tc.confidence,
		})
		require.NoError(t, err)
		lines := strings.Split(rendered, "\n")
		assert.Equal(t, tc.want, lines[3])
	}
}
