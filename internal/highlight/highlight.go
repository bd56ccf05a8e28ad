// Package highlight renders code as class-annotated HTML using chroma.
package highlight

import (
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// PlainLang is the language reported for code whose tag has no lexer.
const PlainLang = "txt"

// A doc-variable such as <<source>> is shown as an italic meta-variable
// without its angle brackets.
var docVar = regexp.MustCompile(`<<([^()>]*)>>`)

// Highlighter is safe for concurrent use.
type Highlighter struct {
	style     *chroma.Style
	formatter *chtml.Formatter
}

// New returns a highlighter using the named chroma style. Unknown names fall
// back to chroma's default style.
func New(styleName string) *Highlighter {
	return &Highlighter{
		style: styles.Get(styleName),
		formatter: chtml.New(
			chtml.WithClasses(true),
			chtml.PreventSurroundingPre(true),
		),
	}
}

// Highlight returns code as HTML. Block code is wrapped in a pre element,
// inline code in a code element. The language class on the wrapper is the
// resolved language, or "txt" when lang is unknown.
func (h *Highlighter) Highlight(code, lang string, inline bool) string {
	lexer, resolved := lexerFor(lang)

	var sb strings.Builder
	if inline {
		sb.WriteString(`<code class="chroma language-` + html.EscapeString(resolved) + `">`)
	} else {
		sb.WriteString(`<pre class="chroma language-` + html.EscapeString(resolved) + `"><code>`)
	}

	if err := h.format(&sb, lexer, code); err != nil {
		sb.WriteString(html.EscapeString(code))
	}

	if inline {
		sb.WriteString(`</code>`)
	} else {
		sb.WriteString(`</code></pre>`)
	}
	return sb.String()
}

func (h *Highlighter) format(w io.Writer, lexer chroma.Lexer, code string) error {
	it, err := lexer.Tokenise(nil, code)
	if err != nil {
		return err
	}
	tokens := markDocVars(it.Tokens())
	return h.formatter.Format(w, h.style, chroma.Literator(tokens...))
}

// WriteCSS writes the stylesheet for the classes Highlight emits.
func (h *Highlighter) WriteCSS(w io.Writer) error {
	return h.formatter.WriteCSS(w, h.style)
}

func lexerFor(lang string) (chroma.Lexer, string) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return lexers.Fallback, PlainLang
	}
	if l := lexers.Get(lang); l != nil {
		return chroma.Coalesce(l), lang
	}
	return lexers.Fallback, PlainLang
}

// markDocVars replaces every <<name>> occurrence in the token stream with a
// single emphasized token holding the bare name. Matches may span tokens.
func markDocVars(tokens []chroma.Token) []chroma.Token {
	var sb strings.Builder
	for _, t := range tokens {
		sb.WriteString(t.Value)
	}
	joined := sb.String()
	matches := docVar.FindAllStringSubmatchIndex(joined, -1)
	if len(matches) == 0 {
		return tokens
	}

	out := make([]chroma.Token, 0, len(tokens)+len(matches))
	pos, m := 0, 0
	for _, t := range tokens {
		start, end := pos, pos+len(t.Value)
		pos = end
		for cur := start; cur < end; {
			if m < len(matches) && cur >= matches[m][0] {
				if cur == matches[m][0] {
					out = append(out, chroma.Token{
						Type:  chroma.GenericEmph,
						Value: joined[matches[m][2]:matches[m][3]],
					})
				}
				stop := min(end, matches[m][1])
				if stop == matches[m][1] {
					m++
				}
				cur = stop
				continue
			}
			stop := end
			if m < len(matches) && matches[m][0] < stop {
				stop = matches[m][0]
			}
			out = append(out, chroma.Token{Type: t.Type, Value: t.Value[cur-start : stop-start]})
			cur = stop
		}
	}
	return out
}
