package services

import (
	"context"
	"regexp"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/testforge/internal/core/domain"
	"github.com/custodia-labs/testforge/internal/core/ports/driven"
	"github.com/custodia-labs/testforge/internal/logger"
)

// DefaultGroundingThreshold is the minimum claim/chunk overlap for a claim
// to count as supported.
const DefaultGroundingThreshold = 0.4

// stopwords carry no content for grounding or relevance checks.
var stopwords = wordSet(`a an the and or but if then else of to in on at by for with from into onto
	as is are was were be been being am it its this that these those there here he she they them
	we you your i me my our us not no nor so than too very can could should would will shall may
	might must do does did done has have had having all any each both few more most other some such
	only own same just also about above after before below between during over under again further
	once up down out off via per when where which who whom what why how while until`)

// uiVocabulary names generic interface actions and widgets. Step phrases
// are full of them, but documentation rarely is, so they do not count
// towards grounding.
var uiVocabulary = wordSet(`click clicks clicked tap press enter enters entered type typed input fill
	fills filled select selects selected choose chosen pick check checks checked uncheck tick untick
	submit submits submitted open opens navigate navigates go goes visit verify verifies ensure
	confirm confirms see sees observe displayed display displays shown show shows appear appears
	page pages screen button buttons field fields textbox box dropdown menu link links form forms
	checkbox radio tab modal dialog popup icon label user users test tests should expect expected
	result results successfully valid invalid value values message`)

var (
	pricePattern   = regexp.MustCompile(`[$€£]\s?\d+(?:[.,]\d+)?`)
	percentPattern = regexp.MustCompile(`\d+(?:\.\d+)?\s?%`)
	numberPattern  = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
	codePattern    = regexp.MustCompile(`\b[A-Z][A-Z0-9_-]{3,}\b`)
	quotedPattern  = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
)

// codeBlacklist lists upper-case words that are emphasis, not codes.
var codeBlacklist = wordSet(`NOTE WARNING ERROR TODO TRUE FALSE NULL NONE HTML HTTP HTTPS JSON
	ONLY MUST SHOULD WILL THEN WHEN THAT THIS WITH FROM INTO`)

// GroundingVerifier decides whether test case claims are supported by
// retrieved chunks. It never upgrades a case; it only assigns confidence.
type GroundingVerifier struct {
	embedder  driven.EmbeddingService
	threshold float64
}

// NewGroundingVerifier creates a verifier. embedder may be nil for
// lexical-only verification. A non-positive threshold selects the default.
func NewGroundingVerifier(embedder driven.EmbeddingService, threshold float64) *GroundingVerifier {
	if threshold <= 0 {
		threshold = DefaultGroundingThreshold
	}
	return &GroundingVerifier{embedder: embedder, threshold: threshold}
}

// evidence is one retrieved chunk prepared for claim matching.
type evidence struct {
	source string
	terms  map[string]struct{}
	vector []float32
}

// Verify sets GroundedIn and Confidence on each case. A case is grounded
// only when every claim with content terms is supported by some chunk;
// GroundedIn lists the sources of the supporting chunks. With no chunks
// every case needs review. The input slice is not modified.
func (v *GroundingVerifier) Verify(
	ctx context.Context, cases []domain.TestCase, chunks []domain.Chunk,
) ([]domain.TestCase, error) {
	out := make([]domain.TestCase, len(cases))
	copy(out, cases)

	if len(chunks) == 0 {
		for i := range out {
			out[i].GroundedIn = []string{}
			out[i].Confidence = domain.ConfidenceNeedsReview
		}
		return out, nil
	}

	claims := make([][]string, len(out))
	var allClaims []string
	for i, tc := range out {
		claims[i] = claimsOf(tc)
		allClaims = append(allClaims, claims[i]...)
	}

	ev := make([]evidence, len(chunks))
	for i, c := range chunks {
		ev[i] = evidence{source: c.Source, terms: domain.TermSet(c.Text)}
	}
	claimVectors := v.embed(ctx, chunks, ev, allClaims)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	offset := 0
	for i := range out {
		first := offset
		offset += len(claims[i])

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var vectors [][]float32
			if claimVectors != nil {
				vectors = claimVectors[first : first+len(claims[i])]
			}
			out[i].GroundedIn, out[i].Confidence = v.verifyCase(claims[i], vectors, ev)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// embed computes chunk vectors into ev and returns claim vectors.
// It returns nil, leaving verification lexical, when no embedder is
// configured or the embedding call fails.
func (v *GroundingVerifier) embed(ctx context.Context, chunks []domain.Chunk, ev []evidence, claims []string) [][]float32 {
	if v.embedder == nil || len(claims) == 0 {
		return nil
	}

	texts := make([]string, 0, len(chunks)+len(claims))
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}
	texts = append(texts, claims...)

	vectors, err := v.embedder.EmbedBatch(ctx, texts)
	if err != nil || len(vectors) != len(texts) {
		if err == nil {
			logger.Warn("Grounding embeddings: got %d vectors for %d texts, using lexical overlap", len(vectors), len(texts))
		} else if ctx.Err() == nil {
			logger.Warn("Grounding embeddings failed, using lexical overlap: %v", err)
		}
		return nil
	}

	for i := range ev {
		ev[i].vector = vectors[i]
	}
	return vectors[len(chunks):]
}

// verifyCase checks every claim of one case.
func (v *GroundingVerifier) verifyCase(
	claims []string, vectors [][]float32, ev []evidence,
) ([]string, domain.Confidence) {
	sources := make(map[string]struct{})
	allSupported := true

	for ci, claim := range claims {
		terms := contentTerms(claim)
		if len(terms) == 0 {
			continue
		}
		values := specificValues(claim)

		var claimVec []float32
		if vectors != nil {
			claimVec = vectors[ci]
		}

		supported := false
		for _, e := range ev {
			if !containsValues(e.terms, values) {
				continue
			}
			score := lexicalOverlap(terms, e.terms)
			if claimVec != nil {
				score = max(score, cosine(claimVec, e.vector))
			}
			if score >= v.threshold {
				supported = true
				sources[e.source] = struct{}{}
			}
		}
		if !supported {
			allSupported = false
		}
	}

	groundedIn := make([]string, 0, len(sources))
	for src := range sources {
		groundedIn = append(groundedIn, src)
	}
	sort.Strings(groundedIn)

	if allSupported && len(groundedIn) > 0 {
		return groundedIn, domain.ConfidenceGrounded
	}
	return groundedIn, domain.ConfidenceNeedsReview
}

// claimsOf returns the checkable phrases of a case: its steps and expected result.
func claimsOf(tc domain.TestCase) []string {
	claims := make([]string, 0, len(tc.Steps)+1)
	for _, s := range tc.Steps {
		if strings.TrimSpace(s) != "" {
			claims = append(claims, s)
		}
	}
	if strings.TrimSpace(tc.ExpectedResult) != "" {
		claims = append(claims, tc.ExpectedResult)
	}
	return claims
}

// contentTerms returns the distinct tokens of text that are neither
// stopwords nor generic UI vocabulary. Single letters are dropped.
func contentTerms(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tok := range domain.Tokenize(text) {
		if seen[tok] || stopwords[tok] || uiVocabulary[tok] {
			continue
		}
		if len(tok) == 1 && (tok[0] < '0' || tok[0] > '9') {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

// specificValues extracts the values a claim must not invent: prices,
// percentages, numbers, quoted strings and upper-case codes. Each value is
// returned as the tokens that must all occur in a supporting chunk.
func specificValues(text string) [][]string {
	var out [][]string
	add := func(s string) {
		if toks := domain.Tokenize(s); len(toks) > 0 {
			out = append(out, toks)
		}
	}

	for _, m := range pricePattern.FindAllString(text, -1) {
		add(m)
	}
	for _, m := range percentPattern.FindAllString(text, -1) {
		add(m)
	}
	for _, m := range numberPattern.FindAllString(text, -1) {
		add(m)
	}
	for _, m := range codePattern.FindAllString(text, -1) {
		if !codeBlacklist[m] {
			add(m)
		}
	}
	for _, m := range quotedPattern.FindAllStringSubmatch(text, -1) {
		q := m[1] + m[2]
		if codePattern.MatchString(q) || numberPattern.MatchString(q) {
			add(q)
		}
	}
	return out
}

// containsValues reports whether every value's tokens occur in terms.
func containsValues(terms map[string]struct{}, values [][]string) bool {
	for _, value := range values {
		for _, tok := range value {
			if _, ok := terms[tok]; !ok {
				return false
			}
		}
	}
	return true
}

// lexicalOverlap is the fraction of claim terms present in chunk terms.
func lexicalOverlap(claimTerms []string, chunkTerms map[string]struct{}) float64 {
	if len(claimTerms) == 0 {
		return 0
	}
	hit := 0
	for _, t := range claimTerms {
		if _, ok := chunkTerms[t]; ok {
			hit++
		}
	}
	return float64(hit) / float64(len(claimTerms))
}

// relevance is the fraction of the prompt's content terms found in any chunk.
// A prompt with no content terms is fully relevant.
func relevance(prompt string, chunks []domain.Chunk) float64 {
	terms := contentTerms(prompt)
	if len(terms) == 0 {
		return 1
	}
	corpus := make(map[string]struct{})
	for _, c := range chunks {
		for t := range domain.TermSet(c.Text) {
			corpus[t] = struct{}{}
		}
	}
	found := 0
	for _, t := range terms {
		if _, ok := corpus[t]; ok {
			found++
		}
	}
	return float64(found) / float64(len(terms))
}

// scenarioOverlap is the Jaccard similarity of two scenarios' content terms.
func scenarioOverlap(a, b string) float64 {
	ta, tb := contentTerms(a), contentTerms(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	set := make(map[string]bool, len(ta))
	for _, t := range ta {
		set[t] = true
	}
	inter := 0
	for _, t := range tb {
		if set[t] {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

func wordSet(words string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(words) {
		set[w] = true
	}
	return set
}
