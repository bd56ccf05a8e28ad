package site

import (
	"bytes"
	"html/template"
)

var footerTmpl = template.Must(template.New("footer").Parse(`<div class="linear-navigation">
  <div class="item">
    {{- with .Previous }}
    <a href="{{ .Relative }}"><img src="{{ $.BaseURL }}/img/previous.svg" alt="previous"/>{{ .Title }}</a>
    {{- end }}
  </div>
  <div class="item">
    {{- with .Next }}
    <a href="{{ .Relative }}">{{ .Title }}<img src="{{ $.BaseURL }}/img/next.svg" alt="next"/></a>
    {{- end }}
  </div>
</div>`))

// NavLink is one side of a prev/next pair.
type NavLink struct {
	Title    string
	Relative string
}

// Footer is the prev/next navigation of one document.
type Footer struct {
	BaseURL  string
	Previous *NavLink
	Next     *NavLink
}

// Footer returns the navigation for docPath. Links are relative to the
// compiled page.
func (c *Contents) Footer(docPath, baseURL string) Footer {
	f := Footer{BaseURL: baseURL}
	page := CompiledPath(docPath)
	prev, next := c.Neighbors(docPath)
	if prev != nil {
		f.Previous = &NavLink{Title: prev.Title, Relative: relative(page, CompiledPath(prev.Link))}
	}
	if next != nil {
		f.Next = &NavLink{Title: next.Title, Relative: relative(page, CompiledPath(next.Link))}
	}
	return f
}

// HTML renders the footer fragment.
func (f Footer) HTML() (template.HTML, error) {
	var buf bytes.Buffer
	if err := footerTmpl.Execute(&buf, f); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
