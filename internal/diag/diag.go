// Package diag holds the diagnostics reported by rendering and link
// validation.
package diag

import (
	"fmt"
	"sort"

	"github.com/dgallion1/docsite/internal/doctree"
)

// Kind classifies a diagnostic.
type Kind string

const (
	KindSnippetExecution  Kind = "snippet-execution-error"
	KindSnippetWhitespace Kind = "snippet-whitespace"
	KindUndefinedModel    Kind = "undefined-model-reference"
	KindLinkInvalid       Kind = "link-invalid"
	KindHashInvalid       Kind = "hash-invalid"
)

// Error is a problem tied to a file and a source range.
type Error struct {
	File    string        `json:"file"`
	Kind    Kind          `json:"kind"`
	Message string        `json:"message"`
	Snippet string        `json:"snippet,omitempty"`
	Range   doctree.Range `json:"range"`
}

func (e Error) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Range.Start.Line, e.Range.Start.Column, e.Message)
}

// Sort orders errors by file, then position.
func Sort(errs []Error) {
	sort.SliceStable(errs, func(i, j int) bool {
		if errs[i].File != errs[j].File {
			return errs[i].File < errs[j].File
		}
		return errs[i].Range.Start.Before(errs[j].Range.Start)
	})
}

// Count returns how many errors have the given kind.
func Count(errs []Error, kind Kind) int {
	n := 0
	for _, e := range errs {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
