package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// Document is a normalised source document ready for chunking.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// URI is the original location, usually the uploaded file name.
	URI string

	// Title is the human-readable title.
	Title string

	// Content is the full plain text after normalisation.
	Content string

	// Metadata contains arbitrary key-value pairs.
	Metadata map[string]any

	// CreatedAt is when the document was normalised.
	CreatedAt time.Time
}

// SourceName returns the name chunks of this document are attributed to.
func (d *Document) SourceName() string {
	if d.URI != "" {
		return d.URI
	}
	return d.ID
}

// Chunk is the unit of retrieval: a fixed-size, overlapping span of a
// source document. Chunks are immutable once produced.
type Chunk struct {
	// ID is stable for a given corpus: "<source>__<n>".
	ID string `json:"id"`

	// Text is the chunk content.
	Text string `json:"text"`

	// Source is the document of origin.
	Source string `json:"source_document"`

	// Offset is the character offset of Text within the source document.
	Offset int `json:"offset"`

	// Position is the ordinal of the chunk within its document.
	Position int `json:"position"`
}

// ChunkLookup resolves chunk ids to chunks.
type ChunkLookup interface {
	Chunk(id string) (Chunk, bool)
}

// TitleFromURI derives a human-readable title from a file name:
// the extension is dropped and underscores and dashes become spaces.
func TitleFromURI(uri string) string {
	name := filepath.Base(uri)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return strings.NewReplacer("_", " ", "-", " ").Replace(name)
}
