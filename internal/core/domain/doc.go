// Package domain defines the core business entities for testforge.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Chunk: A span of source document text, the unit of retrieval
//   - IndexSnapshot: Immutable dense and sparse indexes over a corpus
//   - RetrievalResult: Ranked, budget-bounded chunks for one query
//   - TestCase: A structured test case with grounding confidence
//   - DependencyGraph: Interactive page elements and their constraints
//   - Script: A synthesized Page-Object-Model automation script
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
