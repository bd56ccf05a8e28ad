package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/dgallion1/docsite/internal/doctree"
	"github.com/dgallion1/docsite/internal/parser"
	"github.com/dgallion1/docsite/internal/render"
	"github.com/dgallion1/docsite/internal/search"
	"github.com/dgallion1/docsite/internal/site"
)

// Worker builds single documents.
type Worker struct {
	b    *Builder
	site *siteState
	log  *slog.Logger
}

func NewWorker(b *Builder, st *siteState, log *slog.Logger) *Worker {
	return &Worker{b: b, site: st, log: log}
}

// Process runs parse, render and write for a job. Rendering diagnostics
// do not fail the job; anything that prevents the page from being written
// does.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc", job.Doc)
	start := time.Now()

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	src, err := os.ReadFile(w.b.sourcePath(job.Doc))
	if err != nil {
		w.failed(log, job, "parsing", fmt.Errorf("read: %w", err))
		return
	}
	p, err := parser.ForFile(job.Doc)
	if err != nil {
		w.failed(log, job, "parsing", err)
		return
	}
	doc, err := p.Parse(src, job.Doc)
	if err != nil {
		w.failed(log, job, "parsing", err)
		return
	}

	// Phase 2: Render
	job.SetStatus(StatusRendering, "rendering")
	res, err := w.b.renderer.Render(ctx, doc)
	if err != nil {
		w.failed(log, job, "rendering", err)
		return
	}
	job.SetDiagnostics(res.Errors, res.Cells)
	for _, e := range res.Errors {
		log.Warn("snippet problem", "kind", e.Kind, "line", e.Range.Start.Line, "error", e.Message)
	}
	for _, e := range w.b.checkLinks(job.Doc, res.Links) {
		log.Warn("invalid link", "line", e.Range.Start.Line, "column", e.Range.Start.Column, "error", e.Message)
	}

	// Phase 3: Write
	job.SetStatus(StatusWriting, "writing")
	page, err := w.page(doc, res)
	if err != nil {
		w.failed(log, job, "writing", err)
		return
	}
	hash, err := w.b.out.Write(site.CompiledPath(doc.Path), page)
	if err != nil {
		w.failed(log, job, "writing", err)
		return
	}
	job.SetContentHash(hash)

	w.b.record(job.Doc, res)
	job.SetStatus(StatusCompleted, "done")
	log.Info("compiled document", "cells", res.Cells, "errors", len(res.Errors), "duration", time.Since(start))
}

func (w *Worker) failed(log *slog.Logger, job *Job, phase string, err error) {
	log.Error("build failed", "phase", phase, "error", err)
	job.AddError(fmt.Sprintf("%s: %s", phase, err))
	job.SetStatus(StatusFailed, phase)
	w.b.fail(job.Doc, err)
}

// page executes the document's layout.
func (w *Worker) page(doc *doctree.Document, res *render.Result) ([]byte, error) {
	url := site.CompiledPath(doc.Path)
	footer, err := w.site.contents.Footer(doc.Path, w.b.cfg.BaseURL).HTML()
	if err != nil {
		return nil, fmt.Errorf("footer: %w", err)
	}

	pg := Page{
		Site: w.siteData(),
		Page: PageData{
			URL:    url,
			Source: doc.Path,
			Title:  w.title(doc, res, url),
			Layout: doc.FrontMatter.Layout,
			Cells:  res.Cells,
			Meta:   doc.FrontMatter.Extra,
		},
		Content: template.HTML(res.HTML),
		Footer:  footer,
	}
	if nav, ok := w.site.blog.Nav(doc.Path); ok {
		pg.Post = &nav
	}

	return w.execute(pg)
}

func (w *Worker) siteData() SiteData {
	return SiteData{
		BaseURL: w.b.cfg.BaseURL,
		Prefix:  w.b.cfg.Prefix,
		Posts:   w.site.blog.Posts,
	}
}

func (w *Worker) execute(pg Page) ([]byte, error) {
	name := pg.Page.Layout
	if name == "" {
		name = DefaultLayout
	}
	t, err := w.site.layouts.Get(name)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, pg); err != nil {
		return nil, fmt.Errorf("execute layout %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// title picks the front matter title, then the contents entry, then the
// first heading.
func (w *Worker) title(doc *doctree.Document, res *render.Result, url string) string {
	if doc.FrontMatter.Title != "" {
		return doc.FrontMatter.Title
	}
	if t, ok := w.site.contents.Titles()[url]; ok {
		return t
	}
	if len(res.Segments) > 0 && len(res.Segments[0].Titles) > 0 {
		return search.TextContent(res.Segments[0].Titles[0])
	}
	return strings.TrimSuffix(path.Base(url), ".html")
}

// templated lists the static file types whose front matter may select a
// layout.
var templated = map[string]bool{".html": true, ".js": true, ".css": true}

// CopyStatic copies a non-document file to the output directory. HTML,
// JS and CSS files with front matter have it removed and, when it names a
// layout, are wrapped in that layout.
func (b *Builder) CopyStatic(rel string) error {
	data, err := os.ReadFile(b.sourcePath(rel))
	if err != nil {
		return err
	}
	if templated[strings.ToLower(path.Ext(rel))] && bytes.HasPrefix(data, []byte("---\n")) {
		fm, body, err := parser.ExtractFrontMatter(data)
		if err != nil {
			return fmt.Errorf("%s: %w", rel, err)
		}
		data = bytes.TrimLeft(body, " \n")
		if fm.Layout != "" {
			b.mu.Lock()
			st := b.site
			b.mu.Unlock()
			w := NewWorker(b, st, b.log)
			pg := Page{
				Site: w.siteData(),
				Page: PageData{
					URL:    rel,
					Source: rel,
					Title:  fm.Title,
					Layout: fm.Layout,
					Meta:   fm.Extra,
				},
				Content: template.HTML(data),
			}
			if data, err = w.execute(pg); err != nil {
				return fmt.Errorf("%s: %w", rel, err)
			}
		}
	}
	if _, err := b.out.Write(rel, data); err != nil {
		return err
	}
	b.log.Debug("copied static file", "file", rel)
	return nil
}
