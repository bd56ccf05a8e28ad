// Package search builds the client-side search index and answers queries
// against it.
package search

// Paragraph types.
const (
	TypeParagraph = "p"
	TypeCode      = "code"
)

// Paragraph is one preview entry of a segment. Text is rendered HTML.
type Paragraph struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Segment is the content under one heading, keyed by its heading path.
type Segment struct {
	Path       string      `json:"path"`
	Titles     []string    `json:"titles"`
	Paragraphs []Paragraph `json:"paragraphs"`
}
