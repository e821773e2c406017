package markdown

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/testforge/internal/core/domain"
	"github.com/custodia-labs/testforge/internal/core/ports/driven"
)

func TestSupportedMIMETypes(t *testing.T) {
	n := New()
	assert.Contains(t, n.SupportedMIMETypes(), "text/markdown")
	assert.Equal(t, 50, n.Priority())
}

func TestNormalise_Success(t *testing.T) {
	raw := &domain.RawDocument{
		URI:      "docs/tickets.md",
		MIMEType: "text/markdown",
		Content:  []byte("# Ticket Rules\n\nMax tickets per booking = **6** for `GEN`."),
	}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)

	doc := result.Document
	assert.Equal(t, "Ticket Rules", doc.Title)
	assert.Equal(t, "Ticket Rules\n\nMax tickets per booking = 6 for GEN.", doc.Content)
	assert.Equal(t, "markdown", doc.Metadata["format"])
	assert.Equal(t, "text/markdown", doc.Metadata["mime_type"])
}

func TestNormalise_NilDocument(t *testing.T) {
	_, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Checkout", Title("intro\n# Checkout\n## Details", "x.md"))
	assert.Equal(t, "promo codes", Title("no heading", "/a/promo_codes.md"))
	assert.Equal(t, "release notes", Title("## Only H2", "release-notes.md"))
}

func TestStrip(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"headings", "# Title\n## Subtitle", "Title\nSubtitle"},
		{"bold", "This is **bold** and __strong__", "This is bold and strong"},
		{"emphasis", "An *important* note", "An important note"},
		{"identifiers keep underscores", "Set promo_code field", "Set promo_code field"},
		{"links", "Click [here](https://example.com)", "Click here"},
		{"images keep alt text", "See ![checkout form](form.png)", "See checkout form"},
		{"fenced code kept", "Before\n```json\n{\"max\": 6}\n```\nAfter", "Before\n{\"max\": 6}\nAfter"},
		{"inline code kept", "Use `SAVE10` here", "Use SAVE10 here"},
		{"blockquote", "> A quote", "A quote"},
		{"lists", "- Item 1\n* Item 2\n1. First\n2) Second", "Item 1\nItem 2\nFirst\nSecond"},
		{"horizontal rule", "a\n---\nb", "a\n\nb"},
		{"table", "| Tier | Max |\n|------|-----|\n| GEN | 6 |", "Tier | Max\n\nGEN | 6"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Strip(tc.input))
		})
	}
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.Normaliser = New()
}
