package search

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTextContent(t *testing.T) {
	got := TextContent(`<pre class="chroma"><code><span class="k">SELECT</span> a &amp; b</code></pre>`)
	if got != "SELECT a & b" {
		t.Errorf("unexpected text %q", got)
	}
}

func TestSearch_Scoring(t *testing.T) {
	segs := []Segment{
		{Path: "/a.md", Titles: []string{"Joins"}, Paragraphs: []Paragraph{
			{Type: TypeParagraph, Text: "nothing here"},
		}},
		{Path: "/b.md", Titles: []string{"Intro"}, Paragraphs: []Paragraph{
			{Type: TypeParagraph, Text: "a <em>join</em> of tables"},
			{Type: TypeParagraph, Text: "unrelated"},
			{Type: TypeParagraph, Text: "more unrelated"},
			{Type: TypeCode, Text: "<pre>SELECT * FROM t JOIN u</pre>"},
			{Type: TypeParagraph, Text: "trailing"},
		}},
		{Path: "/c.md", Titles: []string{"Other"}, Paragraphs: []Paragraph{
			{Type: TypeParagraph, Text: "no match"},
		}},
	}
	hits := Search(segs, "JOIN tables")
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %+v", hits)
	}
	if hits[0].Segment.Path != "/a.md" || hits[0].Score != 100 {
		t.Errorf("expected title hit first with score 100, got %+v", hits[0])
	}
	if hits[1].Segment.Path != "/b.md" || hits[1].Score != 20 {
		t.Errorf("expected /b.md with score 20, got %+v", hits[1])
	}

	var texts []string
	for _, p := range hits[1].Segment.Paragraphs {
		texts = append(texts, p.Text)
	}
	want := []string{"a <em>join</em> of tables", "...", "<pre>SELECT * FROM t JOIN u</pre>"}
	if diff := cmp.Diff(want, texts); diff != "" {
		t.Errorf("paragraphs mismatch (-want +got):\n%s", diff)
	}
	if len(hits[0].Segment.Paragraphs) != 0 {
		t.Errorf("expected no paragraphs for title-only hit, got %+v", hits[0].Segment.Paragraphs)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	if hits := Search([]Segment{{Titles: []string{"x"}}}, "   "); hits != nil {
		t.Errorf("expected no hits, got %+v", hits)
	}
}

func TestIndex_WriteScript(t *testing.T) {
	ix := NewIndex()
	ix.Set("/b.md", []Segment{{Path: "/b.md", Titles: []string{"B"}, Paragraphs: []Paragraph{}}})
	ix.Set("/a.md", []Segment{{Path: "/a.md", Titles: []string{"A"}, Paragraphs: []Paragraph{{Type: "p", Text: "x"}}}})

	var buf bytes.Buffer
	if err := ix.WriteScript(&buf); err != nil {
		t.Fatalf("WriteScript: %v", err)
	}
	out := buf.String()
	const prefix = "window.SEARCH_SEGMENTS = "
	if !strings.HasPrefix(out, prefix) {
		t.Fatalf("unexpected prefix: %q", out)
	}
	var segs []Segment
	if err := json.Unmarshal([]byte(strings.TrimPrefix(out, prefix)), &segs); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if len(segs) != 2 || segs[0].Path != "/a.md" || segs[1].Path != "/b.md" {
		t.Errorf("expected segments ordered by path, got %+v", segs)
	}
	if !strings.Contains(out, "\n  {") {
		t.Error("expected two-space indentation")
	}

	ix.Remove("/a.md")
	if n := len(ix.Segments()); n != 1 {
		t.Errorf("expected 1 segment after remove, got %d", n)
	}
}
