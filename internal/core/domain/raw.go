package domain

// RawDocument represents uploaded bytes before normalisation.
type RawDocument struct {
	// URI is the original location (file path or upload name).
	URI string

	// MIMEType is the content type (e.g., "text/markdown").
	MIMEType string

	// Content is the raw bytes.
	Content []byte

	// Metadata contains caller-supplied key-value pairs.
	Metadata map[string]any
}

// IsEmpty returns true if the document carries no non-whitespace bytes.
func (r *RawDocument) IsEmpty() bool {
	for _, b := range r.Content {
		switch b {
		case ' ', '\t', '\n', '\r', '\f', '\v':
		default:
			return false
		}
	}
	return true
}
