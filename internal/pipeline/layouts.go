package pipeline

import (
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/dgallion1/docsite/internal/site"
)

// DefaultLayout is used by documents without a layout key. When the
// layouts directory has no such file a built-in page is used.
const DefaultLayout = "documentation.html"

// SidebarTemplate is the name the sidebar is registered under.
const SidebarTemplate = "toc.html"

// ErrLayoutNotFound is returned for a layout that has no template file.
var ErrLayoutNotFound = errors.New("layout not found")

const builtinLayout = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Page.Title}}</title>
<link rel="stylesheet" href="{{.Site.BaseURL}}/css/highlight.css">
<script src="{{.Site.BaseURL}}/js/generated/search_segments.js"></script>
</head>
<body>
{{template "toc.html" .}}
<main>
{{.Content}}
{{.Footer}}
</main>
</body>
</html>
`

// SiteData is the site-wide part of a page's template data.
type SiteData struct {
	BaseURL string
	Prefix  string
	Posts   []site.Post
}

// PageData is the per-page part of a page's template data.
type PageData struct {
	URL    string // compiled path, e.g. "/guide/intro.html"
	Source string
	Title  string
	Layout string
	Cells  int
	Meta   map[string]any
}

// Page is what a layout is executed with.
type Page struct {
	Site    SiteData
	Page    PageData
	Content template.HTML
	Footer  template.HTML
	Post    *site.PostNav
}

// Layouts parses layout files on first use. Every layout can call the
// sidebar as {{template "toc.html" .}}.
type Layouts struct {
	dir  string
	base *template.Template

	mu    sync.Mutex
	cache map[string]*template.Template
}

// NewLayouts registers sidebar as the toc.html template shared by all
// layouts in dir.
func NewLayouts(dir, sidebar string) (*Layouts, error) {
	base, err := template.New(SidebarTemplate).Parse(sidebar)
	if err != nil {
		return nil, fmt.Errorf("parse sidebar: %w", err)
	}
	return &Layouts{dir: dir, base: base, cache: make(map[string]*template.Template)}, nil
}

// Get returns the parsed layout called name.
func (l *Layouts) Get(name string) (*template.Template, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t, ok := l.cache[name]; ok {
		return t, nil
	}

	src, err := os.ReadFile(filepath.Join(l.dir, filepath.FromSlash(name)))
	switch {
	case errors.Is(err, fs.ErrNotExist) && name == DefaultLayout:
		src = []byte(builtinLayout)
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", ErrLayoutNotFound, name)
	case err != nil:
		return nil, fmt.Errorf("read layout %s: %w", name, err)
	}

	t, err := l.base.Clone()
	if err != nil {
		return nil, err
	}
	if t, err = t.New(name).Parse(string(src)); err != nil {
		return nil, fmt.Errorf("parse layout %s: %w", name, err)
	}
	l.cache[name] = t
	return t, nil
}
