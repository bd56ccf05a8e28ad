package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/dgallion1/docsite/internal/doctree"
)

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// MarkdownParser handles Markdown files using goldmark.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(src []byte, path string) (*doctree.Document, error) {
	fm, body, err := ExtractFrontMatter(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	li := doctree.NewLineIndex(src)
	root, err := parseMarkdown(body, 0, li)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	root.Range = li.Range(0, len(src))
	return &doctree.Document{
		Path:        path,
		Root:        root,
		FrontMatter: fm,
	}, nil
}

// parseMarkdown parses src, a slice of a larger file starting at byte base,
// and returns a root node whose ranges are expressed against li.
func parseMarkdown(src []byte, base int, li *doctree.LineIndex) (*doctree.Node, error) {
	doc := md.Parser().Parse(text.NewReader(src))
	c := &converter{src: src, base: base, li: li}
	children, err := c.children(doc)
	if err != nil {
		return nil, err
	}
	return &doctree.Node{
		Kind:     doctree.KindRoot,
		Range:    li.Range(base, base+len(src)),
		Children: children,
	}, nil
}

// converter maps goldmark nodes onto document tree nodes. It walks in
// source order and remembers the last known offset so nodes that goldmark
// does not locate can be placed after their predecessor.
type converter struct {
	src  []byte
	base int
	li   *doctree.LineIndex
	last int
}

func (c *converter) rangeOf(start, end int) doctree.Range {
	if end < start {
		end = start
	}
	if start > c.last {
		c.last = start
	}
	return c.li.Range(c.base+start, c.base+end)
}

func (c *converter) children(n ast.Node) ([]*doctree.Node, error) {
	var out []*doctree.Node
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		nodes, err := c.convert(child)
		if err != nil {
			return nil, err
		}
		out = append(out, nodes...)
	}
	return out, nil
}

func (c *converter) convert(n ast.Node) ([]*doctree.Node, error) {
	start, end, ok := c.span(n)
	if !ok {
		start, end = c.last, c.last
	}

	node := &doctree.Node{}
	switch n := n.(type) {
	case *ast.Text:
		value := unescape(n.Segment.Value(c.src))
		if n.SoftLineBreak() {
			value += "\n"
		}
		node.Kind = doctree.KindText
		node.Value = value
		node.Range = c.rangeOf(start, end)
		c.last = end
		if n.HardLineBreak() {
			brk := &doctree.Node{Kind: doctree.KindBreak, Range: c.rangeOf(end, end)}
			return []*doctree.Node{node, brk}, nil
		}
		return []*doctree.Node{node}, nil

	case *ast.String:
		node.Kind = doctree.KindText
		node.Value = string(n.Value)
		node.Range = c.rangeOf(start, end)
		return []*doctree.Node{node}, nil

	case *ast.Heading:
		node.Kind = doctree.KindHeading
		node.Level = n.Level
		start = c.local(c.li.LineStart(c.base + start))

	case *ast.Paragraph, *ast.TextBlock:
		node.Kind = doctree.KindParagraph

	case *ast.Emphasis:
		node.Kind = doctree.KindEmphasis
		if n.Level >= 2 {
			node.Kind = doctree.KindStrong
		}
		start, end = c.widen(start, end, '*', '_')

	case *east.Strikethrough:
		node.Kind = doctree.KindDelete
		start, end = c.widen(start, end, '~')

	case *ast.CodeSpan:
		node.Kind = doctree.KindInlineCode
		node.Value = codeSpanText(n, c.src)
		start, end = c.widen(start, end, '`')
		node.Range = c.rangeOf(start, end)
		c.last = end
		return []*doctree.Node{node}, nil

	case *ast.Link:
		node.Kind = doctree.KindLink
		node.URL = string(n.Destination)
		node.Title = string(n.Title)
		start, end = c.bracketed(start, end, ok, false)

	case *ast.AutoLink:
		label := n.Label(c.src)
		if i := bytes.Index(c.src[c.last:], label); i >= 0 {
			start, end = c.last+i, c.last+i+len(label)
			start, end = c.widen(start, end, '<', '>')
		}
		node.Kind = doctree.KindLink
		node.URL = string(n.URL(c.src))
		node.Range = c.rangeOf(start, end)
		node.Children = []*doctree.Node{{Kind: doctree.KindText, Value: string(label), Range: node.Range}}
		c.last = end
		return []*doctree.Node{node}, nil

	case *ast.Image:
		node.Kind = doctree.KindImage
		node.URL = string(n.Destination)
		node.Title = string(n.Title)
		start, end = c.bracketed(start, end, ok, true)
		kids, err := c.children(n)
		if err != nil {
			return nil, err
		}
		node.Alt = (&doctree.Node{Children: kids}).PlainText()
		node.Range = c.rangeOf(start, end)
		c.last = end
		return []*doctree.Node{node}, nil

	case *ast.List:
		node.Kind = doctree.KindList
		node.Ordered = n.IsOrdered()
		node.Start = n.Start

	case *ast.ListItem:
		node.Kind = doctree.KindListItem
		node.Checked = taskState(n)

	case *east.TaskCheckBox:
		// Folded into the enclosing list item.
		return nil, nil

	case *east.Table:
		node.Kind = doctree.KindTable
		for _, a := range n.Alignments {
			node.Align = append(node.Align, alignOf(a))
		}

	case *east.TableHeader, *east.TableRow:
		node.Kind = doctree.KindTableRow

	case *east.TableCell:
		node.Kind = doctree.KindTableCell

	case *ast.FencedCodeBlock:
		node.Kind = doctree.KindCode
		node.Value = linesText(n, c.src)
		if n.Info != nil {
			info := strings.TrimSpace(string(n.Info.Segment.Value(c.src)))
			lang, meta, _ := strings.Cut(info, " ")
			node.Lang = lang
			node.Meta = strings.TrimSpace(meta)
		}
		start, end = c.fence(n, start, end, ok)
		node.Range = c.rangeOf(start, end)
		c.last = end
		return []*doctree.Node{node}, nil

	case *ast.CodeBlock:
		node.Kind = doctree.KindCode
		node.Value = linesText(n, c.src)
		node.Range = c.rangeOf(start, end)
		c.last = end
		return []*doctree.Node{node}, nil

	case *ast.Blockquote:
		node.Kind = doctree.KindBlockquote

	case *ast.HTMLBlock:
		var sb strings.Builder
		sb.WriteString(linesText(n, c.src))
		if n.HasClosure() {
			sb.Write(n.ClosureLine.Value(c.src))
		}
		node.Kind = doctree.KindHTML
		node.Value = sb.String()
		node.Range = c.rangeOf(start, end)
		c.last = end
		return []*doctree.Node{node}, nil

	case *ast.RawHTML:
		var sb strings.Builder
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			sb.Write(seg.Value(c.src))
		}
		node.Kind = doctree.KindHTML
		node.Value = sb.String()
		node.Range = c.rangeOf(start, end)
		c.last = end
		return []*doctree.Node{node}, nil

	case *ast.ThematicBreak:
		start = c.nextContent(c.last)
		end = c.local(c.li.LineEnd(c.base + start))
		for end > start && (c.src[end-1] == '\n' || c.src[end-1] == '\r') {
			end--
		}
		node.Kind = doctree.KindThematicBreak
		node.Range = c.rangeOf(start, end)
		c.last = end
		return []*doctree.Node{node}, nil

	default:
		return nil, fmt.Errorf("unexpected markdown node %s", n.Kind())
	}

	node.Range = c.rangeOf(start, end)
	kids, err := c.children(n)
	if err != nil {
		return nil, err
	}
	node.Children = kids
	if end > c.last {
		c.last = end
	}
	return []*doctree.Node{node}, nil
}

// local converts a file offset back into an offset within c.src.
func (c *converter) local(off int) int {
	off -= c.base
	return max(0, min(off, len(c.src)))
}

// span returns the source extent of n, computed from the segments of n
// and its descendants.
func (c *converter) span(n ast.Node) (int, int, bool) {
	start, end, ok := 0, 0, false
	add := func(s text.Segment) {
		if s.Start == s.Stop && s.Start == 0 {
			return
		}
		if !ok || s.Start < start {
			start = s.Start
		}
		if !ok || s.Stop > end {
			end = s.Stop
		}
		ok = true
	}
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		switch n := n.(type) {
		case *ast.Text:
			add(n.Segment)
		case *ast.RawHTML:
			for i := 0; i < n.Segments.Len(); i++ {
				add(n.Segments.At(i))
			}
		case *ast.FencedCodeBlock:
			if n.Info != nil {
				add(n.Info.Segment)
			}
		}
		if n.Type() == ast.TypeBlock {
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				add(lines.At(i))
			}
			if h, isHTML := n.(*ast.HTMLBlock); isHTML && h.HasClosure() {
				add(h.ClosureLine)
			}
		}
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			walk(child)
		}
	}
	walk(n)
	if ok {
		for end > start && (c.src[end-1] == '\n' || c.src[end-1] == '\r') {
			end--
		}
	}
	return start, end, ok
}

// widen extends [start, end) over any surrounding delimiter characters.
func (c *converter) widen(start, end int, delims ...byte) (int, int) {
	is := func(b byte) bool { return bytes.IndexByte(delims, b) >= 0 }
	for start > 0 && is(c.src[start-1]) {
		start--
	}
	for end < len(c.src) && is(c.src[end]) {
		end++
	}
	return start, end
}

// bracketed extends the span of a link or image label to cover the whole
// "[label](destination)" construct.
func (c *converter) bracketed(start, end int, ok, image bool) (int, int) {
	if !ok {
		if i := bytes.IndexByte(c.src[c.last:], '['); i >= 0 {
			start = c.last + i + 1
			end = start
		}
	}
	if start > 0 && c.src[start-1] == '[' {
		start--
		if image && start > 0 && c.src[start-1] == '!' {
			start--
		}
	}
	if end < len(c.src) && c.src[end] == ']' {
		end++
		if end < len(c.src) && c.src[end] == '(' {
			depth := 0
			for i := end; i < len(c.src); i++ {
				switch c.src[i] {
				case '\\':
					i++
				case '(':
					depth++
				case ')':
					depth--
					if depth == 0 {
						return start, i + 1
					}
				}
			}
		} else if end < len(c.src) && c.src[end] == '[' {
			if close := bytes.IndexByte(c.src[end:], ']'); close >= 0 {
				end += close + 1
			}
		}
	}
	return start, end
}

// fence extends a fenced code block span over its opening and closing fence
// lines.
func (c *converter) fence(n *ast.FencedCodeBlock, start, end int, ok bool) (int, int) {
	if !ok {
		start = c.nextContent(c.last)
		end = start
	}
	if n.Info == nil && n.Lines().Len() > 0 {
		// The span starts at the first content line; the fence is the line
		// before it.
		if start > 0 {
			start = c.local(c.li.LineStart(c.base + start - 1))
		}
	} else {
		start = c.local(c.li.LineStart(c.base + start))
	}
	closing := end
	if n.Lines().Len() > 0 {
		last := n.Lines().At(n.Lines().Len() - 1)
		closing = last.Stop
	} else {
		closing = c.local(c.li.LineEnd(c.base + end))
	}
	if closing < len(c.src) {
		line := c.local(c.li.LineEnd(c.base + closing))
		if fence := bytes.TrimSpace(c.src[closing:line]); bytes.HasPrefix(fence, []byte("```")) || bytes.HasPrefix(fence, []byte("~~~")) {
			end = closing + bytes.Index(c.src[closing:line], fence) + len(fence)
		}
	}
	return start, end
}

// nextContent returns the offset of the first non-blank byte at or after off.
func (c *converter) nextContent(off int) int {
	for off < len(c.src) && (c.src[off] == ' ' || c.src[off] == '\n' || c.src[off] == '\r' || c.src[off] == '\t') {
		off++
	}
	return off
}

func linesText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(src))
	}
	return buf.String()
}

func codeSpanText(n *ast.CodeSpan, src []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			v := t.Segment.Value(src)
			if bytes.HasSuffix(v, []byte("\n")) {
				v = append(v[:len(v)-1:len(v)-1], ' ')
			}
			buf.Write(v)
		case *ast.String:
			buf.Write(t.Value)
		}
	}
	return buf.String()
}

func unescape(v []byte) string {
	return string(util.UnescapePunctuations(util.ResolveNumericReferences(util.ResolveEntityNames(v))))
}

func taskState(item *ast.ListItem) *bool {
	first := item.FirstChild()
	if first == nil {
		return nil
	}
	box, ok := first.FirstChild().(*east.TaskCheckBox)
	if !ok {
		return nil
	}
	checked := box.IsChecked
	return &checked
}

func alignOf(a east.Alignment) doctree.Align {
	switch a {
	case east.AlignLeft:
		return doctree.AlignLeft
	case east.AlignRight:
		return doctree.AlignRight
	case east.AlignCenter:
		return doctree.AlignCenter
	}
	return doctree.AlignNone
}
