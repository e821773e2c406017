package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/testforge/internal/core/domain"
	"github.com/custodia-labs/testforge/internal/core/ports/driven"
	"github.com/custodia-labs/testforge/internal/logger"
)

// Generation policy limits.
const (
	DefaultRequestedCount = 5
	MaxRequestedCount     = 50

	// duplicateThreshold is the scenario overlap at which a case is flagged
	// as restating an earlier one.
	duplicateThreshold = 0.85

	// lowRelevanceThreshold is the prompt-term coverage below which the
	// corpus is reported as unlikely to describe the requested feature.
	lowRelevanceThreshold = 0.3

	tokensPerCase   = 250
	tokenHeadroom   = 100
	minOutputTokens = 200
	defaultFeature  = "General"
)

var requestedCountPattern = regexp.MustCompile(`(?i)(\d+)\s+(?:\w+\s+)?test`)

// GenerationService assembles grounded prompts, invokes the model, parses
// and verifies its output. Each call is all-or-nothing: either a complete
// result is returned or an error, never a partial batch.
type GenerationService struct {
	llm      driven.LLMService
	prompts  driven.PromptStore
	verifier *GroundingVerifier
	settings domain.GenerationSettings
}

// NewGenerationService creates a generation service. prompts may be nil to
// use the built-in templates; embedder may be nil for lexical grounding.
func NewGenerationService(
	llm driven.LLMService,
	embedder driven.EmbeddingService,
	prompts driven.PromptStore,
	settings domain.GenerationSettings,
) *GenerationService {
	return &GenerationService{
		llm:      llm,
		prompts:  prompts,
		verifier: NewGroundingVerifier(embedder, settings.GroundingThreshold),
		settings: settings,
	}
}

// Generate produces test cases for req, grounded against the chunks of
// req.Retrieval resolved through lookup.
//
// Fails with domain.ErrGenerationUnavailable when the model is unreachable
// or times out, and with the context error when the caller cancels.
// Items that fail schema validation are dropped and reported as
// parse_error warnings. An empty retrieval yields only needs_review cases.
func (g *GenerationService) Generate(
	ctx context.Context, req domain.GenerationRequest, lookup domain.ChunkLookup,
) (*domain.GenerationResult, error) {
	logger.Section("Test Case Generation")

	if g.llm == nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrGenerationUnavailable, domain.ErrLLMUnavailable)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", domain.ErrInvalidInput)
	}

	chunks := resolveHits(req.Retrieval, lookup)
	count := req.RequestedCount
	if count <= 0 {
		count = RequestedCount(req.Prompt)
	}
	count = min(count, MaxRequestedCount)

	feature := strings.TrimSpace(req.Feature)
	if feature == "" {
		feature = defaultFeature
	}

	system, user, err := g.buildPrompt(chunks, req, feature, count)
	if err != nil {
		return nil, err
	}
	logger.Debug("Prompt (%d chars): %s", len(user), logger.Redact(truncate(user, 400)))

	opts := driven.GenerateOptions{
		MaxTokens:   g.maxTokens(system+user, count),
		Temperature: g.settings.Temperature,
		TopP:        g.settings.TopP,
		TopK:        g.settings.TopK,
		Seed:        g.settings.Seed,
		StopWords:   []string{driven.StopToken},
	}

	raw, err := g.invoke(ctx, system, user, opts)
	if err != nil {
		return nil, err
	}
	logger.Debug("Model output (%d chars)", len(raw))

	parsed, failures := parseTestCases(raw)
	result := &domain.GenerationResult{
		Model:     g.llm.ModelName(),
		Relevance: relevance(req.Prompt, chunks),
	}
	for _, f := range failures {
		result.Warnings = append(result.Warnings, domain.Warning{
			Kind:    domain.WarningParseError,
			Ref:     fmt.Sprintf("item %d", f.Index),
			Message: f.Error(),
		})
	}

	cases := make([]domain.TestCase, len(parsed))
	for i, pc := range parsed {
		caseFeature := pc.Feature
		if caseFeature == "" {
			caseFeature = feature
		}
		cases[i] = domain.TestCase{
			ID:             domain.TestCaseID(i + 1),
			Feature:        caseFeature,
			Scenario:       pc.Scenario,
			Steps:          pc.Steps,
			ExpectedResult: pc.ExpectedResult,
			Type:           pc.Type,
			Priority:       pc.Priority,
		}
	}

	verified, err := g.verifier.Verify(ctx, cases, chunks)
	if err != nil {
		return nil, fmt.Errorf("grounding cancelled: %w", err)
	}
	result.TestCases = verified

	for _, tc := range verified {
		if !tc.IsGrounded() {
			result.Warnings = append(result.Warnings, domain.Warning{
				Kind:    domain.WarningGroundingLow,
				Ref:     tc.ID,
				Message: "claims not supported by retrieved documentation; review before use",
			})
		}
	}
	result.Warnings = append(result.Warnings, duplicateWarnings(verified)...)

	if len(chunks) > 0 && result.Relevance < lowRelevanceThreshold {
		result.Warnings = append(result.Warnings, domain.Warning{
			Kind: domain.WarningLowRelevance,
			Message: fmt.Sprintf("only %.0f%% of the request terms occur in the retrieved documentation",
				result.Relevance*100),
		})
	}

	logger.Info("Generated %d test cases (%d grounded, %d parse errors)",
		len(verified), len(verified)-domain.CountWarnings(result.Warnings, domain.WarningGroundingLow), len(failures))
	return result, nil
}

// invoke calls the model under the configured timeout.
func (g *GenerationService) invoke(ctx context.Context, system, user string, opts driven.GenerateOptions) (string, error) {
	callCtx := ctx
	if g.settings.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.settings.Timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := g.llm.Chat(callCtx, []driven.ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, opts)
	logger.Debug("Model call took %s", time.Since(start).Round(time.Millisecond))

	switch {
	case err == nil:
		return raw, nil
	case ctx.Err() != nil:
		return "", fmt.Errorf("generation cancelled: %w", ctx.Err())
	case errors.Is(err, domain.ErrGenerationUnavailable):
		return "", err
	default:
		return "", fmt.Errorf("%w: %s: %w", domain.ErrGenerationUnavailable, g.llm.ModelName(), err)
	}
}

// buildPrompt renders the system and user messages.
func (g *GenerationService) buildPrompt(
	chunks []domain.Chunk, req domain.GenerationRequest, feature string, count int,
) (string, string, error) {
	system, err := g.loadPrompt(driven.PromptSystem)
	if err != nil {
		return "", "", err
	}
	tpl, err := g.loadPrompt(driven.PromptTestCases)
	if err != nil {
		return "", "", err
	}

	ctxText := BuildContext(chunks)
	if ctxText == "" {
		ctxText = "(no documentation matched this request)"
	}

	pageSummary := ""
	if s := strings.TrimSpace(req.PageSummary); s != "" {
		pageSummary = "Page under test:\n" + s + "\n"
	}

	return system, fmt.Sprintf(tpl, ctxText, pageSummary, count, feature, strings.TrimSpace(req.Prompt)), nil
}

func (g *GenerationService) loadPrompt(name string) (string, error) {
	if g.prompts != nil {
		tpl, err := g.prompts.Load(name)
		if err != nil {
			return "", fmt.Errorf("load prompt %s: %w", name, err)
		}
		return tpl, nil
	}
	tpl, ok := driven.DefaultPrompts()[name]
	if !ok {
		return "", fmt.Errorf("%w: prompt %s", domain.ErrNotFound, name)
	}
	return tpl, nil
}

// maxTokens derives the completion budget: enough for count cases but
// never more than the context window leaves after the prompt.
func (g *GenerationService) maxTokens(prompt string, count int) int {
	if g.settings.MaxTokens > 0 {
		return g.settings.MaxTokens
	}
	want := tokensPerCase*count + tokenHeadroom
	if g.settings.ContextWindow > 0 {
		promptTokens := utf8.RuneCountInString(prompt) / 4
		want = min(want, g.settings.ContextWindow-promptTokens-tokenHeadroom)
	}
	return max(want, minOutputTokens)
}

// BuildContext concatenates chunk texts with source attribution, skipping
// repeated texts.
func BuildContext(chunks []domain.Chunk) string {
	var sb strings.Builder
	seen := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		text := strings.TrimSpace(c.Text)
		if text == "" || seen[text] {
			continue
		}
		seen[text] = true
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[Source: %s]\n%s", c.Source, text)
	}
	return sb.String()
}

// RequestedCount reads "N test cases" from a prompt, defaulting to 5 and
// capped at 50.
func RequestedCount(prompt string) int {
	m := requestedCountPattern.FindStringSubmatch(prompt)
	if m == nil {
		return DefaultRequestedCount
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return DefaultRequestedCount
	}
	return min(n, MaxRequestedCount)
}

// resolveHits returns the retrieved chunks in rank order.
func resolveHits(result domain.RetrievalResult, lookup domain.ChunkLookup) []domain.Chunk {
	if lookup == nil {
		return nil
	}
	chunks := make([]domain.Chunk, 0, len(result.Hits))
	for _, h := range result.Hits {
		if c, ok := lookup.Chunk(h.ChunkID); ok {
			chunks = append(chunks, c)
		}
	}
	return chunks
}

// duplicateWarnings flags cases whose scenario restates an earlier one.
func duplicateWarnings(cases []domain.TestCase) []domain.Warning {
	var out []domain.Warning
	for i := 1; i < len(cases); i++ {
		for j := 0; j < i; j++ {
			if scenarioOverlap(cases[i].Scenario, cases[j].Scenario) >= duplicateThreshold {
				out = append(out, domain.Warning{
					Kind:    domain.WarningPossibleDuplicate,
					Ref:     cases[i].ID,
					Message: fmt.Sprintf("scenario closely matches %s", cases[j].ID),
				})
				break
			}
		}
	}
	return out
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
