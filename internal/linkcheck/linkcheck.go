// Package linkcheck validates the links collected while rendering against
// the set of documents and heading anchors of the whole corpus.
//
// Validation runs after every document has been rendered. Without anchors
// only link targets are checked; with anchors, hashes are checked too.
package linkcheck

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/dgallion1/docsite/internal/diag"
	"github.com/dgallion1/docsite/internal/render"
)

// Input is the output of the render phase for the whole corpus. Paths are
// corpus-rooted, e.g. "/guide/intro.md".
type Input struct {
	Links   map[string][]render.Link
	Docs    []string
	Anchors map[string][]string // nil skips hash validation
}

// Options configure validation.
type Options struct {
	// AllowList holds site-rooted link prefixes that are accepted even
	// though they cannot be resolved in a dev build.
	AllowList []string
}

var scheme = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:`)

const (
	extMarkdown = ".md"
	extNotebook = ".sqlnb"
	extHTML     = ".html"
)

type checker struct {
	opts    Options
	docs    map[string]bool
	anchors map[string]map[string]bool
	errs    []diag.Error
}

// Validate returns one error per invalid link, ordered by file and
// position.
func Validate(in Input, opts Options) []diag.Error {
	c := &checker{opts: opts, docs: make(map[string]bool, len(in.Docs))}
	for _, d := range in.Docs {
		c.docs[d] = true
	}
	if in.Anchors != nil {
		c.anchors = make(map[string]map[string]bool, len(in.Anchors))
		for doc, list := range in.Anchors {
			set := make(map[string]bool, len(list))
			for _, a := range list {
				set[a] = true
			}
			c.anchors[doc] = set
		}
	}

	files := make([]string, 0, len(in.Links))
	for f := range in.Links {
		files = append(files, f)
	}
	sort.Strings(files)
	for _, file := range files {
		for _, l := range in.Links[file] {
			c.check(file, l)
		}
	}
	diag.Sort(c.errs)
	return c.errs
}

func (c *checker) check(file string, l render.Link) {
	target := l.Target
	switch {
	case scheme.MatchString(target), strings.HasPrefix(target, "//"):
		return
	case strings.HasPrefix(target, "/"):
		for _, prefix := range c.opts.AllowList {
			if strings.HasPrefix(target, prefix) {
				return
			}
		}
		c.fail(file, l, diag.KindLinkInvalid,
			fmt.Sprintf("HTML Link '%s' is invalid (absolute links can't be followed in dev environments)", target))
	case strings.HasPrefix(target, "#"):
		c.hash(file, l, file, target)
	default:
		c.relative(file, l, path.Join(path.Dir(file), target))
	}
}

// relative checks a link resolved against the directory of file.
func (c *checker) relative(file string, l render.Link, rooted string) {
	withoutHash, hash, _ := strings.Cut(rooted, "#")
	if hash != "" {
		hash = "#" + hash
	}
	hasExt := hasExtension(withoutHash)
	withExt := withoutHash
	if !hasExt {
		withExt = c.sourceFor(withoutHash)
	}

	switch {
	case !c.docs[withExt]:
		suffix := ""
		if strings.HasSuffix(withExt, extHTML) && c.docs[c.sourceFor(strings.TrimSuffix(withExt, extHTML))] {
			if l.Style == render.StyleHTML {
				suffix = " (remove .html extension)"
			} else {
				suffix = " (use .md instead)"
			}
		}
		c.fail(file, l, diag.KindLinkInvalid, fmt.Sprintf("Link '%s' is invalid%s.", l.Target, suffix))
	case hasExt && l.Style == render.StyleHTML:
		c.fail(file, l, diag.KindLinkInvalid,
			fmt.Sprintf("HTML Link '%s' should not end with file extension.", l.Target))
	case l.Style == render.StyleMarkdown && !isSource(withoutHash):
		c.fail(file, l, diag.KindLinkInvalid,
			fmt.Sprintf("Markdown Link '%s' should end with .md", l.Target))
	case hash != "":
		c.hash(file, l, withExt, hash)
	}
}

// hash checks that hash names an anchor of doc.
func (c *checker) hash(file string, l render.Link, doc, hash string) {
	if c.anchors == nil {
		return
	}
	if c.anchors[doc][strings.TrimPrefix(hash, "#")] {
		return
	}
	c.fail(file, l, diag.KindHashInvalid,
		fmt.Sprintf("Link %s is invalid: hash %s doesn't exist in doc %s", l.Target, hash, doc))
}

// sourceFor returns the document path for an extensionless link, preferring
// a notebook when only the notebook exists.
func (c *checker) sourceFor(p string) string {
	if !c.docs[p+extMarkdown] && c.docs[p+extNotebook] {
		return p + extNotebook
	}
	return p + extMarkdown
}

func (c *checker) fail(file string, l render.Link, kind diag.Kind, msg string) {
	c.errs = append(c.errs, diag.Error{
		File:    file,
		Kind:    kind,
		Message: msg,
		Snippet: l.Target,
		Range:   l.Range,
	})
}

func hasExtension(p string) bool {
	return isSource(p) || strings.HasSuffix(p, extHTML)
}

func isSource(p string) bool {
	return strings.HasSuffix(p, extMarkdown) || strings.HasSuffix(p, extNotebook)
}
