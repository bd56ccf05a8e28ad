package parser

import (
	"testing"

	"github.com/dgallion1/docsite/internal/doctree"
)

func TestNotebookParser_SplicesInOrder(t *testing.T) {
	src := "# Notebook\n\nIntro.\n>>>sql\nSELECT 1\n>>>markdown\n## Next\n>>>data json\n{\"a\": 1}\n"
	p := &NotebookParser{}
	doc, err := p.Parse([]byte(src), "/nb.sqlnb")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !doc.Notebook {
		t.Error("expected document to be flagged as notebook")
	}

	got := doc.Root.Children
	want := []struct {
		kind doctree.Kind
		lang string
	}{
		{doctree.KindHeading, ""},
		{doctree.KindParagraph, ""},
		{doctree.KindCode, doctree.LangQueryCell},
		{doctree.KindHeading, ""},
		{doctree.KindCode, doctree.LangDataCell},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d nodes, got %v", len(want), kinds(got))
	}
	for i, w := range want {
		if got[i].Kind != w.kind || got[i].Lang != w.lang {
			t.Errorf("node %d: got %s/%q, want %s/%q", i, got[i].Kind, got[i].Lang, w.kind, w.lang)
		}
	}
	if got[4].Meta != "json" {
		t.Errorf("expected data cell format json, got %q", got[4].Meta)
	}

	// Positions of re-parsed markdown are relative to the whole file.
	if line := got[3].Range.Start.Line; line != 7 {
		t.Errorf("expected second heading on line 7, got %d", line)
	}
	if line := got[2].Range.Start.Line; line != 4 {
		t.Errorf("expected query cell to start on line 4, got %d", line)
	}
}

func TestNotebookParser_SplitError(t *testing.T) {
	p := &NotebookParser{}
	if _, err := p.Parse([]byte(">>>bogus\nx\n"), "/nb.sqlnb"); err == nil {
		t.Fatal("expected error for unknown statement kind")
	}
}
