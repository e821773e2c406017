// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The test-authoring engine is built from:
//
//   - Indexer and IndexService: immutable snapshots and their lifecycle
//   - Retriever: BM25 and cosine scores fused under a token budget
//   - GenerationService: prompt assembly, model invocation, parsing and
//     grounding verification
//   - StructureAnalyzer: interactive elements and dependency edges of a page
//   - ScriptSynthesizer: step matching and Page-Object-Model rendering
//   - AuthoringService: the boundary operations composed from the above
//
// Services are pure Go with no CGO or external processes.
package services
