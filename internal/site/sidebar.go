package site

import (
	"fmt"
	"html"
	"path"
	"strconv"
	"strings"
)

// SidebarTemplate renders the section tree as the source of an
// html/template. Leaves compare their compiled path with .Page.URL when the
// page is executed, so one sidebar serves every page.
func (c *Contents) SidebarTemplate(prefix string) string {
	var sb strings.Builder
	sb.WriteString(`<div class="sidebar" id="sidebar">` + "\n")
	for _, s := range c.Sections {
		writeEntry(&sb, s, prefix)
	}
	sb.WriteString(`</div>`)
	return sb.String()
}

func writeEntry(sb *strings.Builder, e Entry, prefix string) {
	if e.IsItem() {
		compare := CompiledPath(e.Link)
		fmt.Fprintf(sb, `<div class="sidebar-item{{if eq .Page.URL %s}} active{{end}}">`, strconv.Quote(compare))
		fmt.Fprintf(sb, `<a href="{{.Site.BaseURL}}%s">`, html.EscapeString(htmlLink(prefix, e.Link)))
		sb.WriteString(`<img src="{{.Site.BaseURL}}/img/article_icon.svg" alt="document"/>`)
		sb.WriteString(templateText(e.Title))
		sb.WriteString("</a></div>\n")
		return
	}
	fmt.Fprintf(sb, `<div class="sidebar-section"><div id="%s" class="sidebar-section-title">`, sectionID(e.Title))
	sb.WriteString(templateText(e.Title))
	sb.WriteString(`<img class="chevron-open" src="{{.Site.BaseURL}}/img/section_open.svg" alt="section open"/>`)
	sb.WriteString(`<img class="chevron-closed" src="{{.Site.BaseURL}}/img/section_close.svg" alt="section closed"/>`)
	sb.WriteString("</div>\n<div class=\"sidebar-section-item-group\">\n")
	for _, it := range e.Items {
		writeEntry(sb, it, prefix)
	}
	sb.WriteString("</div></div>\n")
}

// htmlLink is the served URL of a leaf: the source extension is dropped
// and the index page maps to the prefix itself.
func htmlLink(prefix, link string) string {
	link = strings.TrimPrefix(CompiledPath(link), "/")
	link = strings.TrimSuffix(link, ".html")
	full := path.Join("/", prefix, link)
	if link == "index" {
		if prefix == "" || prefix == "/" {
			return ""
		}
		return path.Join("/", prefix)
	}
	return full
}

func sectionID(title string) string {
	return html.EscapeString(strings.ReplaceAll(strings.ToLower(title), " ", "_"))
}

// templateText escapes s for HTML and keeps template delimiters literal.
func templateText(s string) string {
	s = html.EscapeString(s)
	return strings.ReplaceAll(s, "{{", `{{"{{"}}`)
}
