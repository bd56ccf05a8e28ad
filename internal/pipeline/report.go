package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/dgallion1/docsite/internal/diag"
)

// Failure is a document that could not be built at all.
type Failure struct {
	Doc   string `json:"doc"`
	Error string `json:"error"`
}

// Report summarizes the current state of the build.
type Report struct {
	Docs     int          `json:"docs"`
	Cells    int          `json:"cells"`
	Errors   []diag.Error `json:"errors"`
	Failed   []Failure    `json:"failed"`
	BuiltAt  time.Time    `json:"built_at"`
	Duration string       `json:"duration"`
}

// OK reports whether the build produced no diagnostics and no failures.
func (r *Report) OK() bool {
	return len(r.Errors) == 0 && len(r.Failed) == 0
}

// Print writes one line per problem.
func (r *Report) Print(w io.Writer) {
	for _, f := range r.Failed {
		fmt.Fprintf(w, "Error compiling %s: %s\n", f.Doc, f.Error)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(w, "Error in file %s:%d:%d: %s\n", e.File, e.Range.Start.Line, e.Range.Start.Column, e.Message)
	}
}
