package render

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docsite/internal/doctree"
)

var nonWord = regexp.MustCompile(`[^\w]+`)

// Slug returns the anchor id for a heading's visible text.
func Slug(text string) string {
	return nonWord.ReplaceAllString(strings.ToLower(text), "-")
}

// Anchor tags in raw HTML are found by pattern, not parsed.
var anchorHref = regexp.MustCompile(`<a\s+href=["']([^"']*)["']`)

// scanHTMLLinks returns the href of every anchor tag in raw, positioned
// relative to r, the range of the node raw came from.
func scanHTMLLinks(raw string, r doctree.Range) []Link {
	var out []Link
	for _, m := range anchorHref.FindAllStringSubmatchIndex(raw, -1) {
		out = append(out, Link{
			Target: raw[m[2]:m[3]],
			Style:  StyleHTML,
			Range: doctree.Range{
				Start: shift(r.Start, raw[:m[0]]),
				End:   shift(r.Start, raw[:m[1]]),
			},
		})
	}
	return out
}

// shift advances p over prefix.
func shift(p doctree.Position, prefix string) doctree.Position {
	p.Offset += len(prefix)
	nl := strings.Count(prefix, "\n")
	if nl == 0 {
		p.Column += utf8.RuneCountInString(prefix)
		return p
	}
	p.Line += nl
	p.Column = utf8.RuneCountInString(prefix[strings.LastIndexByte(prefix, '\n')+1:]) + 1
	return p
}

var docExtensions = []string{".md", ".sqlnb"}

// hrefFor strips a source extension from target and prefixes site-rooted
// targets with the base URL.
func hrefFor(target, baseURL string) string {
	p, suffix := target, ""
	if i := strings.IndexAny(target, "?#"); i >= 0 {
		p, suffix = target[:i], target[i:]
	}
	for _, ext := range docExtensions {
		if strings.HasSuffix(p, ext) {
			p = strings.TrimSuffix(p, ext)
			break
		}
	}
	href := p + suffix
	if strings.HasPrefix(href, "/") {
		href = strings.TrimSuffix(baseURL, "/") + href
	}
	return href
}
