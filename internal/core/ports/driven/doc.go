// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - Normaliser: Transforms uploaded files into plain text
//   - NormaliserRegistry: Selects the appropriate normaliser
//   - PostProcessorPipeline: Turns documents into chunks
//   - ConfigStore: Application configuration
//   - LLMService: Generative model used to author test cases
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingService: Dense vectors. Without it, retrieval and grounding are lexical only.
//   - SnapshotStore: Snapshot persistence. Without it, the index lives for one process.
//   - PromptStore: Editable prompt templates. Without it, embedded defaults are used.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
