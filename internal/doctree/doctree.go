package doctree

import "strings"

// Kind identifies the type of a document tree node.
type Kind int

const (
	KindRoot Kind = iota
	KindHeading
	KindText
	KindParagraph
	KindEmphasis
	KindStrong
	KindDelete
	KindLink
	KindImage
	KindList
	KindListItem
	KindTable
	KindTableRow
	KindTableCell
	KindInlineCode
	KindCode
	KindBlockquote
	KindHTML
	KindThematicBreak
	KindBreak
)

var kindNames = [...]string{
	KindRoot:          "root",
	KindHeading:       "heading",
	KindText:          "text",
	KindParagraph:     "paragraph",
	KindEmphasis:      "emphasis",
	KindStrong:        "strong",
	KindDelete:        "delete",
	KindLink:          "link",
	KindImage:         "image",
	KindList:          "list",
	KindListItem:      "listItem",
	KindTable:         "table",
	KindTableRow:      "tableRow",
	KindTableCell:     "tableCell",
	KindInlineCode:    "inlineCode",
	KindCode:          "code",
	KindBlockquote:    "blockquote",
	KindHTML:          "html",
	KindThematicBreak: "thematicBreak",
	KindBreak:         "break",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Align is a table column alignment.
type Align string

const (
	AlignNone   Align = ""
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// Language markers given to code nodes produced from notebook statements.
const (
	LangQueryCell = "sql-cell"
	LangDataCell  = "data-cell"
)

// Node is one element of a parsed document. Which fields are meaningful
// depends on Kind.
type Node struct {
	Kind     Kind
	Range    Range
	Children []*Node

	Level int    // heading
	Value string // text, inlineCode, code, html

	Lang string // code
	Meta string // code: rest of the info string

	URL   string // link, image
	Title string // link, image
	Alt   string // image

	Ordered bool  // list
	Start   int   // list
	Checked *bool // listItem: nil when not a task item

	Align []Align // table
}

// PlainText returns the concatenated text of the node and its descendants.
func (n *Node) PlainText() string {
	var sb strings.Builder
	var walk func(*Node)
	walk = func(n *Node) {
		switch n.Kind {
		case KindText, KindInlineCode:
			sb.WriteString(n.Value)
		case KindImage:
			sb.WriteString(n.Alt)
		case KindBreak:
			sb.WriteByte('\n')
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// FrontMatter is the leading metadata block of a source file.
type FrontMatter struct {
	Layout string         `yaml:"layout"`
	Title  string         `yaml:"title"`
	Extra  map[string]any `yaml:",inline"`
}

// Document is one source file assembled into a single tree.
type Document struct {
	Path        string // corpus-rooted, e.g. "/guide/intro.md"
	Notebook    bool
	Root        *Node
	FrontMatter FrontMatter
}
