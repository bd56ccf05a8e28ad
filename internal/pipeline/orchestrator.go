package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/docsite/internal/config"
	"github.com/dgallion1/docsite/internal/diag"
	"github.com/dgallion1/docsite/internal/highlight"
	"github.com/dgallion1/docsite/internal/linkcheck"
	"github.com/dgallion1/docsite/internal/parser"
	"github.com/dgallion1/docsite/internal/query"
	"github.com/dgallion1/docsite/internal/render"
	"github.com/dgallion1/docsite/internal/search"
	"github.com/dgallion1/docsite/internal/site"
)

const (
	searchIndexPath  = "/js/generated/search_segments.js"
	highlightCSSPath = "/css/highlight.css"
)

// siteState is the parsed site configuration. It is replaced as a whole
// when the configuration files change.
type siteState struct {
	contents *site.Contents
	blog     *site.Blog
	layouts  *Layouts
}

// Builder runs the two build phases: every document is rendered and
// written independently, then links are validated against the complete
// set of documents and anchors.
type Builder struct {
	cfg      config.Config
	exec     *query.Service
	hl       *highlight.Highlighter
	renderer *render.Renderer
	out      *Output
	jobs     *JobStore
	index    *search.Index
	log      *slog.Logger

	mu       sync.Mutex
	site     *siteState
	docs     map[string]bool
	results  map[string]*render.Result
	failed   map[string]string
	linkErrs []diag.Error
	builtAt  time.Time
	took     time.Duration

	// buildMu serializes full builds and rebuilds.
	buildMu sync.Mutex

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewBuilder(cfg config.Config, exec *query.Service, hl *highlight.Highlighter, log *slog.Logger) *Builder {
	return &Builder{
		cfg:  cfg,
		exec: exec,
		hl:   hl,
		renderer: render.New(render.Config{
			BaseURL:     cfg.BaseURL,
			InlineLang:  cfg.InlineCodeLang,
			EditBaseURL: cfg.EditBaseURL,
		}, exec, hl, log),
		out:     NewOutput(cfg.OutDir),
		jobs:    NewJobStore(time.Hour),
		index:   search.NewIndex(),
		log:     log,
		site:    &siteState{contents: &site.Contents{}, blog: &site.Blog{}},
		docs:    make(map[string]bool),
		results: make(map[string]*render.Result),
		failed:  make(map[string]string),
	}
}

// Start launches background maintenance.
func (b *Builder) Start(ctx context.Context) {
	bgCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-bgCtx.Done():
				return
			case <-ticker.C:
				b.jobs.Cleanup()
			}
		}
	}()
}

// Stop waits for background work to finish.
func (b *Builder) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
}

func (b *Builder) Jobs() *JobStore          { return b.jobs }
func (b *Builder) Index() *search.Index     { return b.index }
func (b *Builder) Output() *Output          { return b.out }
func (b *Builder) Config() config.Config    { return b.cfg }
func (b *Builder) Executor() *query.Service { return b.exec }

// Build scans the source directory and builds everything.
func (b *Builder) Build(ctx context.Context) (*Report, error) {
	b.buildMu.Lock()
	defer b.buildMu.Unlock()
	start := time.Now()
	if err := b.LoadSite(); err != nil {
		b.log.Error("site configuration", "error", err)
	}
	docs, statics, err := b.Scan()
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.docs = make(map[string]bool, len(docs))
	for _, d := range docs {
		b.docs[d] = true
	}
	b.mu.Unlock()

	for _, s := range statics {
		if err := b.CopyStatic(s); err != nil {
			b.log.Error("static file", "file", s, "error", err)
		}
	}
	b.Compile(ctx, docs)
	if err := b.Finish(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.took = time.Since(start)
	b.mu.Unlock()
	b.log.Info("build complete", "docs", len(docs), "static", len(statics), "duration", time.Since(start))
	return b.Report(), nil
}

// LoadSite reads the contents file, the blog registry and the layouts.
// On error the previous configuration is replaced by an empty one so the
// build can go on.
func (b *Builder) LoadSite() error {
	var errs []error

	contents, err := site.LoadContents(b.cfg.ContentsFile)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		contents = &site.Contents{}
	case err != nil:
		errs = append(errs, err)
		contents = &site.Contents{}
	}

	blog, err := site.LoadBlog(b.cfg.BlogFile)
	if err != nil {
		errs = append(errs, err)
		blog = &site.Blog{}
	}

	layouts, err := NewLayouts(b.cfg.LayoutsDir, contents.SidebarTemplate(b.cfg.Prefix))
	if err != nil {
		errs = append(errs, err)
		if layouts, err = NewLayouts(b.cfg.LayoutsDir, ""); err != nil {
			return errors.Join(append(errs, err)...)
		}
	}

	b.mu.Lock()
	b.site = &siteState{contents: contents, blog: blog, layouts: layouts}
	b.mu.Unlock()
	b.log.Info("site configuration loaded", "items", len(contents.Flatten()), "posts", len(blog.Posts))
	return errors.Join(errs...)
}

// Scan lists the documents and static files of the source directory as
// rooted slash paths. Dot files are skipped.
func (b *Builder) Scan() (docs, statics []string, err error) {
	err = filepath.WalkDir(b.cfg.SrcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && p != b.cfg.SrcDir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := b.Rel(p)
		if err != nil {
			return err
		}
		if parser.IsDocument(rel) {
			docs = append(docs, rel)
		} else {
			statics = append(statics, rel)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("scan %s: %w", b.cfg.SrcDir, err)
	}
	sort.Strings(docs)
	sort.Strings(statics)
	return docs, statics, nil
}

// Rel converts a file path under the source directory to a rooted slash
// path.
func (b *Builder) Rel(p string) (string, error) {
	rel, err := filepath.Rel(b.cfg.SrcDir, p)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%s is outside %s", p, b.cfg.SrcDir)
	}
	return path.Join("/", filepath.ToSlash(rel)), nil
}

func (b *Builder) sourcePath(rel string) string {
	return filepath.Join(b.cfg.SrcDir, filepath.FromSlash(rel))
}

// AddDocument registers doc as part of the corpus.
func (b *Builder) AddDocument(doc string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.docs[doc] = true
}

// Documents returns every known document.
func (b *Builder) Documents() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.documentsLocked()
}

func (b *Builder) documentsLocked() []string {
	out := make([]string, 0, len(b.docs))
	for d := range b.docs {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// RemoveDocument forgets doc and deletes its compiled page.
func (b *Builder) RemoveDocument(doc string) error {
	b.mu.Lock()
	delete(b.docs, doc)
	delete(b.results, doc)
	delete(b.failed, doc)
	b.mu.Unlock()
	b.index.Remove(doc)
	return b.out.Remove(site.CompiledPath(doc))
}

// Compile renders and writes docs with a pool of workers. Documents are
// independent; the nodes of one document are rendered in order by a
// single worker.
func (b *Builder) Compile(ctx context.Context, docs []string) {
	b.mu.Lock()
	st := b.site
	b.mu.Unlock()

	queue := make(chan *Job, len(docs))
	for _, d := range docs {
		job := NewJob(d)
		b.jobs.Put(job)
		queue <- job
	}
	close(queue)

	workers := min(max(b.cfg.WorkerCount, 1), len(docs))
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := NewWorker(b, st, b.log)
			for job := range queue {
				if ctx.Err() != nil {
					job.AddError(ctx.Err().Error())
					job.SetStatus(StatusFailed, "queued")
					continue
				}
				w.Process(ctx, job)
			}
		}()
	}
	wg.Wait()
}

// Rebuild recompiles docs and runs the validation phase again.
func (b *Builder) Rebuild(ctx context.Context, docs []string) error {
	b.buildMu.Lock()
	defer b.buildMu.Unlock()
	b.Compile(ctx, docs)
	return b.Finish()
}

// Finish runs the validation phase and writes the corpus-wide assets.
func (b *Builder) Finish() error {
	b.Validate()

	var buf bytes.Buffer
	if err := b.index.WriteScript(&buf); err != nil {
		return err
	}
	if _, err := b.out.Write(searchIndexPath, buf.Bytes()); err != nil {
		return err
	}

	buf.Reset()
	if err := b.hl.WriteCSS(&buf); err != nil {
		return fmt.Errorf("highlight css: %w", err)
	}
	if _, err := b.out.Write(highlightCSSPath, buf.Bytes()); err != nil {
		return err
	}

	b.mu.Lock()
	b.builtAt = time.Now()
	b.mu.Unlock()
	return nil
}

// Validate checks the links of every rendered document against all
// documents and, unless disabled, their anchors.
func (b *Builder) Validate() []diag.Error {
	b.mu.Lock()
	in := linkcheck.Input{
		Links: make(map[string][]render.Link, len(b.results)),
		Docs:  b.documentsLocked(),
	}
	if b.cfg.ValidateAnchors {
		in.Anchors = make(map[string][]string, len(b.results))
	}
	for doc, res := range b.results {
		in.Links[doc] = res.Links
		if in.Anchors != nil {
			in.Anchors[doc] = res.Anchors
		}
	}
	b.mu.Unlock()

	errs := linkcheck.Validate(in, linkcheck.Options{AllowList: b.cfg.AbsoluteLinkAllowList})

	b.mu.Lock()
	b.linkErrs = errs
	b.mu.Unlock()
	return errs
}

// checkLinks validates the links of one freshly rendered document without
// anchors, so problems show up before the whole corpus is done.
func (b *Builder) checkLinks(doc string, links []render.Link) []diag.Error {
	return linkcheck.Validate(linkcheck.Input{
		Links: map[string][]render.Link{doc: links},
		Docs:  b.Documents(),
	}, linkcheck.Options{AllowList: b.cfg.AbsoluteLinkAllowList})
}

func (b *Builder) record(doc string, res *render.Result) {
	b.mu.Lock()
	b.results[doc] = res
	delete(b.failed, doc)
	b.mu.Unlock()
	b.index.Set(doc, res.Segments)
}

func (b *Builder) fail(doc string, err error) {
	b.mu.Lock()
	delete(b.results, doc)
	b.failed[doc] = err.Error()
	b.mu.Unlock()
	b.index.Remove(doc)
}

// Dependents returns the documents that read the model file at rel,
// relative to the models directory.
func (b *Builder) Dependents(rel string) []string {
	return b.exec.Dependencies().Dependents(path.Join("/", rel))
}

// Report returns the diagnostics of the current build state.
func (b *Builder) Report() *Report {
	b.mu.Lock()
	defer b.mu.Unlock()

	r := &Report{
		Docs:     len(b.docs),
		Errors:   []diag.Error{},
		Failed:   []Failure{},
		BuiltAt:  b.builtAt,
		Duration: b.took.String(),
	}
	for _, res := range b.results {
		r.Cells += res.Cells
		r.Errors = append(r.Errors, res.Errors...)
	}
	r.Errors = append(r.Errors, b.linkErrs...)
	diag.Sort(r.Errors)
	for doc, msg := range b.failed {
		r.Failed = append(r.Failed, Failure{Doc: doc, Error: msg})
	}
	sort.Slice(r.Failed, func(i, j int) bool { return r.Failed[i].Doc < r.Failed[j].Doc })
	return r
}

// RemoveStatic deletes the copy of a static file.
func (b *Builder) RemoveStatic(rel string) error {
	return b.out.Remove(rel)
}
