package parser

import (
	"fmt"

	"github.com/dgallion1/docsite/internal/doctree"
	"github.com/dgallion1/docsite/internal/notebook"
)

// NotebookParser handles notebook files. Markdown statements are parsed
// with goldmark and spliced into the root in place; query and data
// statements become single code nodes carrying a cell language marker.
type NotebookParser struct{}

func (p *NotebookParser) Parse(src []byte, path string) (*doctree.Document, error) {
	fm, body, err := ExtractFrontMatter(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	stmts, err := notebook.Split(body, path)
	if err != nil {
		return nil, err
	}

	li := doctree.NewLineIndex(src)
	root := &doctree.Node{Kind: doctree.KindRoot, Range: li.Range(0, len(src))}
	for _, st := range stmts {
		switch st.Kind {
		case notebook.KindMarkdown:
			sub, err := parseMarkdown([]byte(st.Text), st.Body.Start.Offset, li)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			root.Children = append(root.Children, sub.Children...)
		case notebook.KindQuery:
			root.Children = append(root.Children, &doctree.Node{
				Kind:  doctree.KindCode,
				Lang:  doctree.LangQueryCell,
				Value: st.Text,
				Range: st.Range,
			})
		case notebook.KindData:
			root.Children = append(root.Children, &doctree.Node{
				Kind:  doctree.KindCode,
				Lang:  doctree.LangDataCell,
				Meta:  st.Format,
				Value: st.Text,
				Range: st.Range,
			})
		}
	}

	return &doctree.Document{
		Path:        path,
		Notebook:    true,
		Root:        root,
		FrontMatter: fm,
	}, nil
}
