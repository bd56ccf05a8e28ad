package render

import (
	"github.com/dgallion1/docsite/internal/diag"
	"github.com/dgallion1/docsite/internal/doctree"
	"github.com/dgallion1/docsite/internal/query"
	"github.com/dgallion1/docsite/internal/search"
)

// Mode is the kind of the current notebook cell.
type Mode int

const (
	ModeNone Mode = iota
	ModeMarkdown
	ModeQuery
)

// LinkStyle distinguishes links written in markdown syntax from anchor tags
// found in raw HTML.
type LinkStyle string

const (
	StyleMarkdown LinkStyle = "md"
	StyleHTML     LinkStyle = "html"
)

// Link is a link target found while rendering.
type Link struct {
	Target string        `json:"link"`
	Style  LinkStyle     `json:"style"`
	Range  doctree.Range `json:"position"`
}

// Title is one entry of the title stack.
type Title struct {
	Level int
	HTML  string
}

// State is threaded through one sequential render of a document.
type State struct {
	Titles []Title
	Model  query.Model
	Models map[string]string
	Mode   Mode
	Cell   int

	Links    []Link
	Anchors  []string
	Segments []search.Segment
	Errors   []diag.Error
}

func newState() *State {
	return &State{Models: make(map[string]string)}
}

// pushTitle pops every title whose level is at least level, pushes the new
// one and opens a search segment for the resulting path.
func (st *State) pushTitle(path string, level int, html string) {
	for len(st.Titles) > 0 && st.Titles[len(st.Titles)-1].Level >= level {
		st.Titles = st.Titles[:len(st.Titles)-1]
	}
	st.Titles = append(st.Titles, Title{Level: level, HTML: html})

	titles := make([]string, len(st.Titles))
	for i, t := range st.Titles {
		titles[i] = t.HTML
	}
	st.Segments = append(st.Segments, search.Segment{
		Path:       path,
		Titles:     titles,
		Paragraphs: []search.Paragraph{},
	})
}

// addPreview appends to the open segment, if any.
func (st *State) addPreview(typ, text string) {
	if len(st.Segments) == 0 {
		return
	}
	seg := &st.Segments[len(st.Segments)-1]
	seg.Paragraphs = append(seg.Paragraphs, search.Paragraph{Type: typ, Text: text})
}

// advance updates the cell counter for the next top-level node of a
// notebook.
func (st *State) advance(isQuery bool) {
	switch {
	case isQuery:
		st.Cell++
		st.Mode = ModeQuery
	case st.Mode != ModeMarkdown:
		st.Cell++
		st.Mode = ModeMarkdown
	}
}

func (st *State) addError(file string, kind diag.Kind, msg, snippet string, r doctree.Range) {
	st.Errors = append(st.Errors, diag.Error{
		File:    file,
		Kind:    kind,
		Message: msg,
		Snippet: snippet,
		Range:   r,
	})
}
