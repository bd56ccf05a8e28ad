package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docsite/internal/doctree"
	"github.com/dgallion1/docsite/internal/notebook"
)

// Parser converts raw source bytes into a Document.
type Parser interface {
	Parse(src []byte, path string) (*doctree.Document, error)
}

// SupportedExtensions lists file extensions that are compiled as documents.
var SupportedExtensions = map[string]bool{
	".md":              true,
	notebook.Extension: true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case notebook.Extension:
		return &NotebookParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsDocument checks if a file is compiled as a document rather than
// copied as a static file.
func IsDocument(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// IsNotebook checks if a file is a notebook document.
func IsNotebook(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), notebook.Extension)
}
