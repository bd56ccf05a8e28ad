package search

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
)

// Index holds the segments of every rendered document. It is safe for
// concurrent use.
type Index struct {
	mu   sync.RWMutex
	docs map[string][]Segment
}

func NewIndex() *Index {
	return &Index{docs: make(map[string][]Segment)}
}

// Set replaces the segments of doc.
func (ix *Index) Set(doc string, segs []Segment) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.docs[doc] = segs
}

// Remove drops doc from the index.
func (ix *Index) Remove(doc string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.docs, doc)
}

// Segments returns all segments ordered by document path, then document
// order.
func (ix *Index) Segments() []Segment {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	paths := make([]string, 0, len(ix.docs))
	for p := range ix.docs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	out := []Segment{}
	for _, p := range paths {
		out = append(out, ix.docs[p]...)
	}
	return out
}

// WriteScript writes the index as a script assigning window.SEARCH_SEGMENTS.
func (ix *Index) WriteScript(w io.Writer) error {
	data, err := json.MarshalIndent(ix.Segments(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode segments: %w", err)
	}
	if _, err := io.WriteString(w, "window.SEARCH_SEGMENTS = "); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
