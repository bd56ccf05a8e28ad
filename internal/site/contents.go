// Package site derives the sidebar, prev/next footers and blog navigation
// from the site configuration files.
package site

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/tailscale/hujson"
)

// Entry is a node of the section tree: a section when Items is set, a
// leaf item when Link is set.
type Entry struct {
	Title string  `json:"title"`
	Link  string  `json:"link,omitempty"`
	Items []Entry `json:"items,omitempty"`
}

func (e Entry) IsItem() bool { return e.Link != "" }

// Contents is the table of contents file.
type Contents struct {
	Sections []Entry `json:"contents"`
}

// LoadContents reads a table of contents file. Comments and trailing
// commas are allowed.
func LoadContents(file string) (*Contents, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read contents: %w", err)
	}
	return ParseContents(data)
}

func ParseContents(data []byte) (*Contents, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("invalid JSONC: %w", err)
	}
	var c Contents
	if err := json.Unmarshal(standardized, &c); err != nil {
		return nil, fmt.Errorf("invalid contents: %w", err)
	}
	if err := validateEntries(c.Sections, "contents"); err != nil {
		return nil, err
	}
	return &c, nil
}

func validateEntries(entries []Entry, where string) error {
	for i, e := range entries {
		at := fmt.Sprintf("%s[%d]", where, i)
		if e.Title == "" {
			return fmt.Errorf("%s: missing title", at)
		}
		if e.IsItem() && len(e.Items) > 0 {
			return fmt.Errorf("%s: entry has both link and items", at)
		}
		if err := validateEntries(e.Items, at+".items"); err != nil {
			return err
		}
	}
	return nil
}

// Flatten returns the leaf items depth-first, in order.
func Flatten(entries []Entry) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.IsItem() {
			out = append(out, e)
			continue
		}
		out = append(out, Flatten(e.Items)...)
	}
	return out
}

// Flatten returns the leaf items of the whole tree.
func (c *Contents) Flatten() []Entry { return Flatten(c.Sections) }

// Neighbors returns the items before and after the item whose compiled
// path is docPath. Either may be nil; both are nil when docPath is not in
// the tree.
func (c *Contents) Neighbors(docPath string) (prev, next *Entry) {
	items := c.Flatten()
	want := CompiledPath(docPath)
	for i := range items {
		if CompiledPath(items[i].Link) != want {
			continue
		}
		if i > 0 {
			prev = &items[i-1]
		}
		if i+1 < len(items) {
			next = &items[i+1]
		}
		return prev, next
	}
	return nil, nil
}

// Titles maps the compiled path of every item to its title.
func (c *Contents) Titles() map[string]string {
	out := make(map[string]string)
	for _, it := range c.Flatten() {
		out[CompiledPath(it.Link)] = it.Title
	}
	return out
}

var sourceExtensions = []string{".md", ".sqlnb"}

// CompiledPath returns the rooted output path of a document path: a
// leading slash is added and a source extension becomes ".html".
func CompiledPath(p string) string {
	p = path.Join("/", p)
	for _, ext := range sourceExtensions {
		if strings.HasSuffix(p, ext) {
			return strings.TrimSuffix(p, ext) + ".html"
		}
	}
	return p
}

// relative returns the path of target relative to the directory of from.
func relative(from, target string) string {
	fromParts := strings.Split(strings.Trim(path.Dir(from), "/"), "/")
	toParts := strings.Split(strings.Trim(target, "/"), "/")
	if len(fromParts) == 1 && fromParts[0] == "" {
		fromParts = nil
	}
	i := 0
	for i < len(fromParts) && i < len(toParts)-1 && fromParts[i] == toParts[i] {
		i++
	}
	var parts []string
	for range fromParts[i:] {
		parts = append(parts, "..")
	}
	parts = append(parts, toParts[i:]...)
	return strings.Join(parts, "/")
}
