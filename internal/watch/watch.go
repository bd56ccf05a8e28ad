// Package watch rebuilds the site when source files change. Events are
// collected into a change set and applied once no further event arrived
// for the debounce window.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dgallion1/docsite/internal/parser"
)

// Target is the build the watcher drives.
type Target interface {
	Rel(file string) (string, error)
	LoadSite() error
	Documents() []string
	AddDocument(doc string)
	RemoveDocument(doc string) error
	CopyStatic(rel string) error
	RemoveStatic(rel string) error
	Dependents(model string) []string
	Rebuild(ctx context.Context, docs []string) error
}

// Paths lists what is watched. SiteFiles are the contents and blog files;
// a change to any of them, or to a layout, rebuilds every document.
type Paths struct {
	SrcDir     string
	ModelsDir  string
	LayoutsDir string
	SiteFiles  []string
}

// Options tunes the watcher behaviour.
type Options struct {
	// Debounce is the quiet period after an event before changes are
	// applied. Default: 300ms.
	Debounce time.Duration
	Logger   *slog.Logger
}

func (o *Options) defaults() {
	if o.Debounce <= 0 {
		o.Debounce = 300 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Changes is a pending change set.
type Changes struct {
	Docs           map[string]bool
	RemovedDocs    map[string]bool
	Statics        map[string]bool
	RemovedStatics map[string]bool
	Models         map[string]bool
	Site           bool
}

func newChanges() *Changes {
	return &Changes{
		Docs:           make(map[string]bool),
		RemovedDocs:    make(map[string]bool),
		Statics:        make(map[string]bool),
		RemovedStatics: make(map[string]bool),
		Models:         make(map[string]bool),
	}
}

// Empty reports whether nothing is pending.
func (c *Changes) Empty() bool {
	return !c.Site && len(c.Docs)+len(c.RemovedDocs)+len(c.Statics)+len(c.RemovedStatics)+len(c.Models) == 0
}

// Watcher turns file system events into rebuilds.
type Watcher struct {
	target Target
	paths  Paths
	opts   Options
	site   map[string]bool

	events   atomic.Int64
	rebuilds atomic.Int64
	errors   atomic.Int64
	buildNs  atomic.Int64
}

// Stats are point-in-time counters.
type Stats struct {
	Events         int64         `json:"events"`
	Rebuilds       int64         `json:"rebuilds"`
	Errors         int64         `json:"errors"`
	AvgRebuildTime time.Duration `json:"avg_rebuild_time"`
}

func New(target Target, paths Paths, opts Options) *Watcher {
	opts.defaults()
	site := make(map[string]bool, len(paths.SiteFiles))
	for _, f := range paths.SiteFiles {
		site[filepath.Clean(f)] = true
	}
	return &Watcher{target: target, paths: paths, opts: opts, site: site}
}

// Stats returns the current counters.
func (w *Watcher) Stats() Stats {
	s := Stats{
		Events:   w.events.Load(),
		Rebuilds: w.rebuilds.Load(),
		Errors:   w.errors.Load(),
	}
	if s.Rebuilds > 0 {
		s.AvgRebuildTime = time.Duration(w.buildNs.Load() / s.Rebuilds)
	}
	return s
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	for _, dir := range []string{w.paths.SrcDir, w.paths.ModelsDir, w.paths.LayoutsDir} {
		if dir == "" {
			continue
		}
		if err := addTree(fsw, dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	// Site files are watched through their directories so editors that
	// replace files by rename keep being seen.
	for f := range w.site {
		if err := fsw.Add(filepath.Dir(f)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("watch %s: %w", f, err)
		}
	}

	log := w.opts.Logger
	log.Info("watch: started", "src", w.paths.SrcDir, "debounce", w.opts.Debounce)

	pending := newChanges()
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			log.Info("watch: stopped")
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
					if err := addTree(fsw, ev.Name); err != nil {
						log.Warn("watch: add directory", "dir", ev.Name, "error", err)
					}
					w.addCreatedTree(ev.Name, pending)
				}
			}
			if !w.Classify(ev, pending) {
				continue
			}
			w.events.Add(1)
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.opts.Debounce)
			fire = timer.C

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.errors.Add(1)
			log.Warn("watch: error", "error", err)

		case <-fire:
			fire = nil
			changes := pending
			pending = newChanges()
			w.Apply(ctx, changes)
		}
	}
}

// addCreatedTree queues the files of a directory that appeared after its
// parent was already watched.
func (w *Watcher) addCreatedTree(dir string, ch *Changes) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			w.Classify(fsnotify.Event{Name: p, Op: fsnotify.Create}, ch)
		}
		return nil
	})
}

// Classify records ev in ch and reports whether it is relevant.
func (w *Watcher) Classify(ev fsnotify.Event, ch *Changes) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	name := filepath.Clean(ev.Name)
	if strings.HasPrefix(filepath.Base(name), ".") {
		return false
	}
	removed := ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)

	switch {
	case w.site[name]:
		ch.Site = true
		return true
	case within(w.paths.LayoutsDir, name):
		ch.Site = true
		return true
	case within(w.paths.ModelsDir, name):
		rel, err := filepath.Rel(w.paths.ModelsDir, name)
		if err != nil {
			return false
		}
		ch.Models[filepath.ToSlash(rel)] = true
		return true
	case within(w.paths.SrcDir, name):
		rel, err := w.target.Rel(name)
		if err != nil {
			return false
		}
		if st, err := os.Stat(name); err == nil && st.IsDir() {
			return false
		}
		doc := parser.IsDocument(rel)
		switch {
		case doc && removed:
			delete(ch.Docs, rel)
			ch.RemovedDocs[rel] = true
		case doc:
			delete(ch.RemovedDocs, rel)
			ch.Docs[rel] = true
		case removed:
			delete(ch.Statics, rel)
			ch.RemovedStatics[rel] = true
		default:
			delete(ch.RemovedStatics, rel)
			ch.Statics[rel] = true
		}
		return true
	}
	return false
}

// Apply performs a change set: the site configuration is reloaded first,
// then static files are synced, then the affected documents are rebuilt
// and all links validated again.
func (w *Watcher) Apply(ctx context.Context, ch *Changes) {
	if ch.Empty() {
		return
	}
	log := w.opts.Logger
	start := time.Now()

	docs := make(map[string]bool)
	if ch.Site {
		if err := w.target.LoadSite(); err != nil {
			w.errors.Add(1)
			log.Error("watch: site configuration", "error", err)
		}
		for _, d := range w.target.Documents() {
			docs[d] = true
		}
	}

	for rel := range ch.RemovedStatics {
		if err := w.target.RemoveStatic(rel); err != nil {
			w.errors.Add(1)
			log.Error("watch: remove static", "file", rel, "error", err)
		}
	}
	for rel := range ch.Statics {
		if err := w.target.CopyStatic(rel); err != nil {
			w.errors.Add(1)
			log.Error("watch: copy static", "file", rel, "error", err)
		}
	}
	for rel := range ch.RemovedDocs {
		if err := w.target.RemoveDocument(rel); err != nil {
			w.errors.Add(1)
			log.Error("watch: remove document", "doc", rel, "error", err)
		}
		delete(docs, rel)
	}
	for model := range ch.Models {
		for _, d := range w.target.Dependents(model) {
			docs[d] = true
		}
	}
	for rel := range ch.Docs {
		w.target.AddDocument(rel)
		docs[rel] = true
	}

	list := make([]string, 0, len(docs))
	for d := range docs {
		list = append(list, d)
	}
	sort.Strings(list)

	if err := w.target.Rebuild(ctx, list); err != nil {
		w.errors.Add(1)
		log.Error("watch: rebuild failed", "error", err)
		return
	}
	elapsed := time.Since(start)
	w.rebuilds.Add(1)
	w.buildNs.Add(int64(elapsed))
	log.Info("watch: rebuilt", "docs", len(list), "duration", elapsed)
}

func addTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := fsw.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
}

// within reports whether name is dir or lies below it.
func within(dir, name string) bool {
	if dir == "" {
		return false
	}
	rel, err := filepath.Rel(filepath.Clean(dir), name)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
