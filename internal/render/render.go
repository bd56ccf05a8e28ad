// Package render turns document trees into HTML. Rendering a document is a
// sequential fold over its nodes: headings update the title stack, code
// cells run in order and thread the notebook model, and every link and
// anchor is recorded with its source range.
package render

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"

	"github.com/dgallion1/docsite/internal/diag"
	"github.com/dgallion1/docsite/internal/doctree"
	"github.com/dgallion1/docsite/internal/query"
	"github.com/dgallion1/docsite/internal/search"
)

// Executor runs code cells. *query.Service implements it.
type Executor interface {
	RunCell(ctx context.Context, req query.CellRequest) (query.CellResult, error)
	RunSnippet(ctx context.Context, req query.SnippetRequest) (string, error)
	ResolveModel(doc, name string, models map[string]string) (string, error)
}

// Highlighter renders code as HTML. *highlight.Highlighter implements it.
type Highlighter interface {
	Highlight(code, lang string, inline bool) string
}

// Config holds the settings of a Renderer.
type Config struct {
	BaseURL     string // prefixed to site-rooted link targets
	QueryLang   string // fence tag of runnable code in markdown documents
	InlineLang  string // language used to highlight inline code
	EditBaseURL string // when set, notebook cells link to their source
}

// Renderer is immutable and safe for concurrent use; all per-document
// state lives in the State of a single Render call.
type Renderer struct {
	cfg  Config
	exec Executor
	hl   Highlighter
	log  *slog.Logger
}

func New(cfg Config, exec Executor, hl Highlighter, log *slog.Logger) *Renderer {
	if cfg.QueryLang == "" {
		cfg.QueryLang = "sql"
	}
	if cfg.InlineLang == "" {
		cfg.InlineLang = cfg.QueryLang
	}
	return &Renderer{cfg: cfg, exec: exec, hl: hl, log: log}
}

// Result is everything one render pass produces.
type Result struct {
	HTML     string
	Links    []Link
	Anchors  []string
	Segments []search.Segment
	Errors   []diag.Error
	Cells    int
}

// Render renders doc. Snippet failures are recorded in Result.Errors and do
// not stop rendering; an error is returned only for trees the renderer
// cannot handle.
func (r *Renderer) Render(ctx context.Context, doc *doctree.Document) (*Result, error) {
	st := newState()
	w := &walker{r: r, doc: doc, st: st, log: r.log.With("doc", doc.Path)}

	var sb strings.Builder
	sb.WriteString(`<div class="document">`)
	for _, child := range doc.Root.Children {
		if doc.Notebook {
			st.advance(w.isQueryCell(child))
		}
		out, err := w.node(ctx, child)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", doc.Path, err)
		}
		sb.WriteString(out)
	}
	sb.WriteString(`</div>`)

	return &Result{
		HTML:     sb.String(),
		Links:    st.Links,
		Anchors:  st.Anchors,
		Segments: st.Segments,
		Errors:   st.Errors,
		Cells:    st.Cell,
	}, nil
}

type walker struct {
	r   *Renderer
	doc *doctree.Document
	st  *State
	log *slog.Logger
}

func (w *walker) children(ctx context.Context, n *doctree.Node) (string, error) {
	var sb strings.Builder
	for _, c := range n.Children {
		out, err := w.node(ctx, c)
		if err != nil {
			return "", err
		}
		sb.WriteString(out)
	}
	return sb.String(), nil
}

func (w *walker) node(ctx context.Context, n *doctree.Node) (string, error) {
	switch n.Kind {
	case doctree.KindText:
		return html.EscapeString(n.Value), nil
	case doctree.KindHeading:
		return w.heading(ctx, n)
	case doctree.KindParagraph:
		text, err := w.children(ctx, n)
		if err != nil {
			return "", err
		}
		w.st.addPreview(search.TypeParagraph, text)
		return "<p>" + text + "</p>\n", nil
	case doctree.KindEmphasis:
		return w.wrap(ctx, n, "<em>", "</em>")
	case doctree.KindStrong:
		return w.wrap(ctx, n, "<strong>", "</strong>")
	case doctree.KindDelete:
		return w.wrap(ctx, n, "<del>", "</del>")
	case doctree.KindBlockquote:
		return w.wrap(ctx, n, "<blockquote>\n", "</blockquote>\n")
	case doctree.KindLink:
		return w.link(ctx, n)
	case doctree.KindImage:
		return w.image(n), nil
	case doctree.KindList:
		return w.list(ctx, n)
	case doctree.KindTable:
		return w.table(ctx, n)
	case doctree.KindInlineCode:
		return w.r.hl.Highlight(n.Value, w.r.cfg.InlineLang, true), nil
	case doctree.KindCode:
		return w.code(ctx, n), nil
	case doctree.KindHTML:
		w.st.Links = append(w.st.Links, scanHTMLLinks(n.Value, n.Range)...)
		return n.Value, nil
	case doctree.KindThematicBreak:
		return "<hr/>\n", nil
	case doctree.KindBreak:
		return "<br/>", nil
	}
	return "", fmt.Errorf("unexpected %s node at %d:%d", n.Kind, n.Range.Start.Line, n.Range.Start.Column)
}

func (w *walker) wrap(ctx context.Context, n *doctree.Node, open, close string) (string, error) {
	text, err := w.children(ctx, n)
	if err != nil {
		return "", err
	}
	return open + text + close, nil
}

func (w *walker) heading(ctx context.Context, n *doctree.Node) (string, error) {
	text, err := w.children(ctx, n)
	if err != nil {
		return "", err
	}
	w.st.pushTitle(w.doc.Path, n.Level, text)
	slug := Slug(n.PlainText())
	w.st.Anchors = append(w.st.Anchors, slug)

	return fmt.Sprintf("<h%d><a id=\"%s\" class=\"header-link anchor\" href=\"#%s\">%s</a></h%d>\n",
		n.Level, slug, slug, text, n.Level), nil
}

func (w *walker) link(ctx context.Context, n *doctree.Node) (string, error) {
	text, err := w.children(ctx, n)
	if err != nil {
		return "", err
	}
	if n.URL == "" {
		return text, nil
	}
	w.st.Links = append(w.st.Links, Link{Target: n.URL, Style: StyleMarkdown, Range: n.Range})

	var sb strings.Builder
	sb.WriteString(`<a href="` + html.EscapeString(hrefFor(n.URL, w.r.cfg.BaseURL)) + `"`)
	if n.Title != "" {
		sb.WriteString(` title="` + html.EscapeString(n.Title) + `"`)
	}
	sb.WriteString(">" + text + "</a>")
	return sb.String(), nil
}

func (w *walker) image(n *doctree.Node) string {
	if n.URL == "" {
		return html.EscapeString(n.Alt)
	}
	var sb strings.Builder
	sb.WriteString(`<img src="` + html.EscapeString(n.URL) + `" alt="` + html.EscapeString(n.Alt) + `"`)
	if n.Title != "" {
		sb.WriteString(` title="` + html.EscapeString(n.Title) + `"`)
	}
	sb.WriteString("/>")
	return sb.String()
}

func (w *walker) list(ctx context.Context, n *doctree.Node) (string, error) {
	items := make([]string, 0, len(n.Children))
	for _, item := range n.Children {
		if item.Kind != doctree.KindListItem {
			return "", fmt.Errorf("unexpected %s node in list", item.Kind)
		}
		text, err := w.children(ctx, item)
		if err != nil {
			return "", err
		}
		if item.Checked != nil {
			checked := ""
			if *item.Checked {
				checked = "checked "
			}
			items = append(items, `<li class="task"><input `+checked+`disabled="" type="checkbox"/>`+text+`</li>`)
		} else {
			items = append(items, "<li>"+text+"</li>")
		}
	}

	tag, start := "ul", ""
	if n.Ordered {
		tag = "ol"
		if n.Start != 1 {
			start = ` start="` + strconv.Itoa(n.Start) + `"`
		}
	}
	return "<" + tag + start + ">\n" + strings.Join(items, "\n") + "</" + tag + ">\n", nil
}

func (w *walker) table(ctx context.Context, n *doctree.Node) (string, error) {
	rows := make([]string, 0, len(n.Children))
	for i, row := range n.Children {
		if row.Kind != doctree.KindTableRow {
			return "", fmt.Errorf("unexpected %s node in table", row.Kind)
		}
		cellTag := "td"
		if i == 0 {
			cellTag = "th"
		}
		var sb strings.Builder
		sb.WriteString("<tr>\n")
		for j, cell := range row.Children {
			text, err := w.children(ctx, cell)
			if err != nil {
				return "", err
			}
			if j < len(n.Align) && n.Align[j] != doctree.AlignNone {
				sb.WriteString("<" + cellTag + ` align="` + string(n.Align[j]) + `">`)
			} else {
				sb.WriteString("<" + cellTag + ">")
			}
			sb.WriteString(text + "</" + cellTag + ">\n")
		}
		sb.WriteString("</tr>\n")
		rows = append(rows, sb.String())
	}
	if len(rows) == 0 {
		return "<table>\n</table>\n", nil
	}
	return "<table>\n<thead>\n" + rows[0] + "</thead>\n<tbody>" + strings.Join(rows[1:], "\n") + "</tbody></table>\n", nil
}
