package driven

import (
	"context"

	"github.com/custodia-labs/testforge/internal/core/domain"
)

// NormaliserRegistry dispatches an uploaded file to the normaliser for its
// MIME type. Unknown types yield domain.ErrUnsupportedType, which the
// indexer records as a skipped document.
type NormaliserRegistry interface {
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)
	Register(normaliser Normaliser)

	// SupportedMIMETypes lists what Normalise accepts.
	SupportedMIMETypes() []string
}
