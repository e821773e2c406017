// Package normalisers turns uploaded documentation into plain-text documents
// ready for chunking. Each sub-package handles a family of MIME types; the
// Registry in this package dispatches to the highest-priority match.
package normalisers
