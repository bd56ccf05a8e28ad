package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/go-cmp/cmp"
)

type fakeTarget struct {
	src string

	mu        sync.Mutex
	docs      []string
	loaded    int
	added     []string
	removed   []string
	copied    []string
	unlinked  []string
	rebuilt   [][]string
	dependent map[string][]string
}

func (f *fakeTarget) Rel(file string) (string, error) {
	rel, err := filepath.Rel(f.src, file)
	if err != nil {
		return "", err
	}
	return path.Join("/", filepath.ToSlash(rel)), nil
}

func (f *fakeTarget) LoadSite() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loaded++
	return nil
}

func (f *fakeTarget) Documents() []string { return f.docs }

func (f *fakeTarget) AddDocument(doc string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, doc)
}

func (f *fakeTarget) RemoveDocument(doc string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, doc)
	return nil
}

func (f *fakeTarget) CopyStatic(rel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.copied = append(f.copied, rel)
	return nil
}

func (f *fakeTarget) RemoveStatic(rel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unlinked = append(f.unlinked, rel)
	return nil
}

func (f *fakeTarget) Dependents(model string) []string { return f.dependent[model] }

func (f *fakeTarget) Rebuild(_ context.Context, docs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rebuilt = append(f.rebuilt, docs)
	return nil
}

func (f *fakeTarget) rebuilds() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.rebuilt...)
}

func newTestWatcher(t *testing.T) (*Watcher, *fakeTarget, Paths) {
	t.Helper()
	root := t.TempDir()
	paths := Paths{
		SrcDir:     filepath.Join(root, "src"),
		ModelsDir:  filepath.Join(root, "models"),
		LayoutsDir: filepath.Join(root, "layouts"),
		SiteFiles:  []string{filepath.Join(root, "contents.json")},
	}
	for _, d := range []string{paths.SrcDir, paths.ModelsDir, paths.LayoutsDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	target := &fakeTarget{
		src:       paths.SrcDir,
		docs:      []string{"/a.md", "/b.sqlnb"},
		dependent: map[string][]string{"flights.sql": {"/b.sqlnb"}},
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(target, paths, Options{Debounce: 20 * time.Millisecond, Logger: log}), target, paths
}

func TestClassify(t *testing.T) {
	w, _, paths := newTestWatcher(t)
	ch := newChanges()

	tests := []struct {
		ev   fsnotify.Event
		want bool
	}{
		{fsnotify.Event{Name: filepath.Join(paths.SrcDir, "guide", "a.md"), Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: filepath.Join(paths.SrcDir, "old.md"), Op: fsnotify.Remove}, true},
		{fsnotify.Event{Name: filepath.Join(paths.SrcDir, "img", "x.png"), Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: filepath.Join(paths.SrcDir, "gone.css"), Op: fsnotify.Rename}, true},
		{fsnotify.Event{Name: filepath.Join(paths.ModelsDir, "flights.sql"), Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: filepath.Join(paths.SrcDir, ".a.md.swp"), Op: fsnotify.Write}, false},
		{fsnotify.Event{Name: filepath.Join(paths.SrcDir, "a.md"), Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: "/elsewhere/file.md", Op: fsnotify.Write}, false},
	}
	for _, tt := range tests {
		if got := w.Classify(tt.ev, ch); got != tt.want {
			t.Errorf("Classify(%s) = %v, want %v", tt.ev, got, tt.want)
		}
	}

	if !ch.Docs["/guide/a.md"] || !ch.RemovedDocs["/old.md"] {
		t.Errorf("unexpected document changes %v %v", ch.Docs, ch.RemovedDocs)
	}
	if !ch.Statics["/img/x.png"] || !ch.RemovedStatics["/gone.css"] {
		t.Errorf("unexpected static changes %v %v", ch.Statics, ch.RemovedStatics)
	}
	if !ch.Models["flights.sql"] {
		t.Errorf("expected model change, got %v", ch.Models)
	}
	if ch.Site {
		t.Error("expected no site change")
	}

	w.Classify(fsnotify.Event{Name: paths.SiteFiles[0], Op: fsnotify.Write}, ch)
	if !ch.Site {
		t.Error("expected contents change to mark the site")
	}
}

func TestClassify_RecreatedDocument(t *testing.T) {
	w, _, paths := newTestWatcher(t)
	ch := newChanges()
	name := filepath.Join(paths.SrcDir, "a.md")
	w.Classify(fsnotify.Event{Name: name, Op: fsnotify.Remove}, ch)
	w.Classify(fsnotify.Event{Name: name, Op: fsnotify.Create}, ch)
	if ch.RemovedDocs["/a.md"] || !ch.Docs["/a.md"] {
		t.Errorf("expected the latest event to win, got docs=%v removed=%v", ch.Docs, ch.RemovedDocs)
	}
}

func TestApply_ModelRecompilesDependents(t *testing.T) {
	w, target, _ := newTestWatcher(t)
	ch := newChanges()
	ch.Models["flights.sql"] = true
	ch.Docs["/c.md"] = true
	ch.Statics["/img/x.png"] = true

	w.Apply(context.Background(), ch)

	got := target.rebuilds()
	if len(got) != 1 {
		t.Fatalf("expected one rebuild, got %v", got)
	}
	if diff := cmp.Diff([]string{"/b.sqlnb", "/c.md"}, got[0]); diff != "" {
		t.Errorf("rebuilt docs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"/c.md"}, target.added); diff != "" {
		t.Errorf("added docs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"/img/x.png"}, target.copied); diff != "" {
		t.Errorf("copied files mismatch (-want +got):\n%s", diff)
	}
	if s := w.Stats(); s.Rebuilds != 1 || s.Errors != 0 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestApply_SiteRebuildsEverything(t *testing.T) {
	w, target, _ := newTestWatcher(t)
	ch := newChanges()
	ch.Site = true
	ch.RemovedDocs["/a.md"] = true

	w.Apply(context.Background(), ch)

	if target.loaded != 1 {
		t.Errorf("expected site reload, got %d", target.loaded)
	}
	got := target.rebuilds()
	if len(got) != 1 {
		t.Fatalf("expected one rebuild, got %v", got)
	}
	if diff := cmp.Diff([]string{"/b.sqlnb"}, got[0]); diff != "" {
		t.Errorf("rebuilt docs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"/a.md"}, target.removed); diff != "" {
		t.Errorf("removed docs mismatch (-want +got):\n%s", diff)
	}
}

func TestApply_Empty(t *testing.T) {
	w, target, _ := newTestWatcher(t)
	w.Apply(context.Background(), newChanges())
	if len(target.rebuilds()) != 0 {
		t.Error("expected no rebuild for an empty change set")
	}
}

func TestRun_DebouncesWrites(t *testing.T) {
	w, target, paths := newTestWatcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Run(ctx); err != nil {
			t.Errorf("Run: %v", err)
		}
	}()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher time to register its directories.
	time.Sleep(100 * time.Millisecond)
	for i := range 3 {
		name := filepath.Join(paths.SrcDir, "a.md")
		if err := os.WriteFile(name, []byte{byte('a' + i)}, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if got := target.rebuilds(); len(got) > 0 {
			docs := append([]string(nil), got[0]...)
			sort.Strings(docs)
			if diff := cmp.Diff([]string{"/a.md"}, docs); diff != "" {
				t.Errorf("rebuilt docs mismatch (-want +got):\n%s", diff)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for rebuild")
}
