package mcp

import (
	"context"

	"github.com/custodia-labs/testforge/internal/core/domain"
	"github.com/custodia-labs/testforge/internal/core/ports/driving"
)

// Loader reads local files or directories into raw documents.
type Loader func(ctx context.Context, paths []string) ([]domain.RawDocument, error)

// Ports aggregates the driving ports the MCP server calls.
type Ports struct {
	// Authoring provides the index, generation and synthesis operations.
	Authoring driving.AuthoringService

	// Index exposes the active snapshot for resources. Optional.
	Index driving.IndexService

	// Loader enables the paths argument of build_index. Optional.
	Loader Loader
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Authoring == nil {
		return ErrMissingAuthoringService
	}
	return nil
}
