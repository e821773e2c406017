// Package sanitiser provides a text clean-up processor that runs before chunking.
package sanitiser

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/custodia-labs/testforge/internal/core/domain"
)

var (
	spaceRun   = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	newlineRun = regexp.MustCompile(`\n{3,}`)
)

// Processor removes control characters and collapses whitespace runs in
// document content. It rewrites doc.Content and passes chunks through.
type Processor struct{}

// New creates a sanitiser processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "sanitiser"
}

// Process cleans the document content in place.
func (p *Processor) Process(_ context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	doc.Content = Clean(doc.Content)
	return chunks, nil
}

// Clean normalises line endings, drops control characters other than
// newline and tab, collapses horizontal whitespace to one space and caps
// blank lines at one.
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == '\ufeff' {
			return -1
		}
		return r
	}, text)

	text = spaceRun.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")

	return strings.TrimSpace(newlineRun.ReplaceAllString(text, "\n\n"))
}
