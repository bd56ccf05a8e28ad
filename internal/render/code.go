package render

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/dgallion1/docsite/internal/diag"
	"github.com/dgallion1/docsite/internal/doctree"
	"github.com/dgallion1/docsite/internal/highlight"
	"github.com/dgallion1/docsite/internal/query"
	"github.com/dgallion1/docsite/internal/search"
)

func (w *walker) isQueryCell(n *doctree.Node) bool {
	return w.doc.Notebook && n.Kind == doctree.KindCode && n.Lang == doctree.LangQueryCell
}

// code renders a code block. Execution failures become an inline error
// block and a diagnostic; they never fail the render.
func (w *walker) code(ctx context.Context, n *doctree.Node) string {
	switch {
	case w.isQueryCell(n):
		return w.queryCell(ctx, n)
	case n.Lang == doctree.LangDataCell:
		lang := n.Meta
		if lang == "" {
			lang = highlight.PlainLang
		}
		return w.inert(n, n.Value, lang)
	case n.Lang == w.r.cfg.QueryLang && strings.HasPrefix(n.Value, query.MagicPrefix):
		return w.snippet(ctx, n)
	}
	lang := n.Lang
	if lang == "" {
		lang = highlight.PlainLang
	}
	return w.inert(n, n.Value, lang)
}

func (w *walker) inert(n *doctree.Node, code, lang string) string {
	w.lintWhitespace(n, code)
	highlighted := w.r.hl.Highlight(code, lang, false)
	w.st.addPreview(search.TypeCode, highlighted)
	return highlighted
}

// queryCell runs a notebook query cell on top of the running model.
func (w *walker) queryCell(ctx context.Context, n *doctree.Node) string {
	visible, _ := query.SplitDirectives(n.Value)
	w.lintWhitespace(n, visible)

	var result string
	hidden := false
	res, err := w.r.exec.RunCell(ctx, query.CellRequest{
		Doc:   w.doc.Path,
		Code:  n.Value,
		Model: w.st.Model,
	})
	if err != nil {
		result = w.failed(n, err)
	} else {
		w.st.Model = res.Model
		result = res.HTML
		hidden = res.Hidden
	}

	highlighted := w.r.hl.Highlight(visible, w.r.cfg.QueryLang, false)
	w.st.addPreview(search.TypeCode, highlighted)

	cell := w.st.Cell
	var sb strings.Builder
	fmt.Fprintf(&sb, `<div class="cell" id="cell-%d" data-cell="%d">`, cell, cell)
	if !hidden {
		sb.WriteString(highlighted)
		if w.r.cfg.EditBaseURL != "" {
			href := fmt.Sprintf("%s%s#cell-%d", strings.TrimSuffix(w.r.cfg.EditBaseURL, "/"), w.doc.Path, cell)
			sb.WriteString(`<a class="edit-cell" href="` + html.EscapeString(href) + `">Edit</a>`)
		}
	}
	sb.WriteString(result)
	sb.WriteString(`</div>`)
	return sb.String()
}

// snippet handles a markdown code block whose first line holds run options.
func (w *walker) snippet(ctx context.Context, n *doctree.Node) string {
	opts, code, _, err := query.ParseMagic(n.Value)
	w.lintWhitespace(n, code)

	var result string
	switch {
	case err != nil:
		result = w.failed(n, err)
	case opts.IsRunnable:
		result, err = w.r.exec.RunSnippet(ctx, query.SnippetRequest{
			Doc:     w.doc.Path,
			Code:    code,
			Options: opts,
			Models:  w.st.Models,
		})
		if err != nil {
			result = w.failed(n, err)
		}
	case opts.IsModel:
		model := code
		if opts.Source != "" {
			prefix, err := w.r.exec.ResolveModel(w.doc.Path, opts.Source, w.st.Models)
			if err != nil {
				result = w.failed(n, err)
				break
			}
			model = prefix + "\n" + code
		}
		w.st.Models[opts.ModelPath] = model
	}

	highlighted := w.r.hl.Highlight(code, n.Lang, false)
	w.st.addPreview(search.TypeCode, highlighted)
	if opts.IsHidden {
		return result
	}
	return highlighted + result
}

// failed records err against n and returns the inline error block.
func (w *walker) failed(n *doctree.Node, err error) string {
	kind := diag.KindSnippetExecution
	var undef *query.UndefinedModelError
	if errors.As(err, &undef) {
		kind = diag.KindUndefinedModel
	}
	w.log.Error("snippet failed", "kind", kind, "line", n.Range.Start.Line, "err", err)
	w.st.addError(w.doc.Path, kind, err.Error(), n.Value, n.Range)
	return `<div class="error">Error: ` + html.EscapeString(err.Error()) + `</div>`
}

// lintWhitespace flags visible code that starts or ends with a blank line.
func (w *walker) lintWhitespace(n *doctree.Node, code string) {
	code = strings.TrimSuffix(code, "\n")
	if strings.TrimSpace(code) == "" {
		return
	}
	lines := strings.Split(code, "\n")
	if strings.TrimSpace(lines[0]) != "" && strings.TrimSpace(lines[len(lines)-1]) != "" {
		return
	}
	w.st.addError(w.doc.Path, diag.KindSnippetWhitespace,
		"Code snippet should not start or end with a blank line", code, n.Range)
}
