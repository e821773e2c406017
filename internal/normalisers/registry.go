package normalisers

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/testforge/internal/core/domain"
	"github.com/custodia-labs/testforge/internal/core/ports/driven"
	"github.com/custodia-labs/testforge/internal/normalisers/html"
	"github.com/custodia-labs/testforge/internal/normalisers/markdown"
	"github.com/custodia-labs/testforge/internal/normalisers/plaintext"
)

// Verify interface compliance.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry dispatches uploads to the highest-priority normaliser that
// supports their MIME type.
type Registry struct {
	mu          sync.RWMutex
	normalisers []driven.Normaliser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// NewDefaultRegistry creates a registry with the built-in normalisers.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(markdown.New())
	r.Register(html.New())
	r.Register(plaintext.New())
	return r
}

// Register adds a normaliser, keeping the list ordered by priority.
func (r *Registry) Register(n driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.normalisers = append(r.normalisers, n)
	sort.SliceStable(r.normalisers, func(i, j int) bool {
		return r.normalisers[i].Priority() > r.normalisers[j].Priority()
	})
}

// SupportedMIMETypes returns all MIME types that can be normalised, sorted.
func (r *Registry) SupportedMIMETypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, n := range r.normalisers {
		for _, mt := range n.SupportedMIMETypes() {
			seen[mt] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for mt := range seen {
		out = append(out, mt)
	}
	sort.Strings(out)
	return out
}

// Accepts reports whether a file name maps to a supported MIME type.
// Names without a known extension are assumed to be plain text.
func (r *Registry) Accepts(name string) bool {
	mimeType := DetectMIMEType(name, nil)

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, n := range r.normalisers {
		if supports(n, mimeType) {
			return true
		}
	}
	return false
}

// Normalise transforms a raw document using the best matching normaliser.
// An empty MIME type is detected from the file name and content.
func (r *Registry) Normalise(ctx context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	mimeType := baseType(raw.MIMEType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = DetectMIMEType(raw.URI, raw.Content)
	}

	r.mu.RLock()
	var match driven.Normaliser
	for _, n := range r.normalisers {
		if supports(n, mimeType) {
			match = n
			break
		}
	}
	r.mu.RUnlock()

	if match == nil {
		return nil, fmt.Errorf("%w: %s (%s)", domain.ErrUnsupportedType, raw.URI, mimeType)
	}

	typed := *raw
	typed.MIMEType = mimeType
	return match.Normalise(ctx, &typed)
}

func supports(n driven.Normaliser, mimeType string) bool {
	for _, mt := range n.SupportedMIMETypes() {
		if mt == mimeType {
			return true
		}
	}
	return false
}

var extensionTypes = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".html":     "text/html",
	".htm":      "text/html",
	".xhtml":    "application/xhtml+xml",
	".txt":      "text/plain",
	".text":     "text/plain",
	".csv":      "text/csv",
	".json":     "application/json",
	".yaml":     "text/yaml",
	".yml":      "text/yaml",
	".xml":      "application/xml",
}

// DetectMIMEType guesses the MIME type of an upload from its file
// extension, falling back to content sniffing.
func DetectMIMEType(name string, content []byte) string {
	ext := strings.ToLower(filepath.Ext(name))
	if mt, ok := extensionTypes[ext]; ok {
		return mt
	}
	if mt := baseType(mime.TypeByExtension(ext)); mt != "" {
		return mt
	}
	return baseType(http.DetectContentType(content))
}

// baseType drops MIME parameters such as charset.
func baseType(mt string) string {
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return strings.ToLower(strings.TrimSpace(mt))
}
