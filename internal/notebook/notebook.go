// Package notebook splits notebook source files into statements.
//
// A notebook interleaves markdown prose with SQL and literal data cells.
// Each statement starts at a delimiter line:
//
//	>>>markdown
//	>>>sql
//	>>>data [format]
//
// Text before the first delimiter is a markdown statement.
package notebook

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dgallion1/docsite/internal/doctree"
)

// Kind is the type of a notebook statement.
type Kind string

const (
	KindMarkdown Kind = "markdown"
	KindQuery    Kind = "query-cell"
	KindData     Kind = "data-cell"
)

// Extension is the file extension of notebook documents.
const Extension = ".sqlnb"

const delimiter = ">>>"

// Statement is one contiguous section of a notebook.
type Statement struct {
	Kind   Kind
	Text   string        // body without the delimiter line
	Format string        // data cells: optional format word from the delimiter
	Range  doctree.Range // delimiter line plus body
	Body   doctree.Range // span of Text within the file
}

// SplitError reports a malformed delimiter line.
type SplitError struct {
	Path string
	Line int
	Word string
}

func (e *SplitError) Error() string {
	return fmt.Sprintf("%s:%d: unknown notebook statement kind %q", e.Path, e.Line, e.Word)
}

type span struct {
	kind      Kind
	format    string
	start     int // offset of the delimiter line (or 0)
	bodyStart int
}

// Split parses src into statements. Statement ranges tile src without gaps.
func Split(src []byte, path string) ([]Statement, error) {
	li := doctree.NewLineIndex(src)

	var spans []span
	cur := span{kind: KindMarkdown}
	off := 0
	lineNo := 0
	for off < len(src) {
		lineNo++
		end := bytes.IndexByte(src[off:], '\n')
		next := len(src)
		if end >= 0 {
			next = off + end + 1
		}
		line := strings.TrimRight(string(src[off:next]), "\r\n")
		if rest, ok := strings.CutPrefix(line, delimiter); ok {
			fields := strings.Fields(rest)
			word := ""
			if len(fields) > 0 {
				word = fields[0]
			}
			kind, err := kindFor(word)
			if err != nil {
				return nil, &SplitError{Path: path, Line: lineNo, Word: word}
			}
			if off > 0 || cur.bodyStart != 0 {
				spans = append(spans, cur)
			}
			cur = span{kind: kind, start: off, bodyStart: next}
			if kind == KindData && len(fields) > 1 {
				cur.format = fields[1]
			}
		}
		off = next
	}
	spans = append(spans, cur)

	stmts := make([]Statement, 0, len(spans))
	for i, sp := range spans {
		end := len(src)
		if i+1 < len(spans) {
			end = spans[i+1].start
		}
		bodyStart, bodyEnd := sp.bodyStart, end
		if sp.kind != KindMarkdown {
			bodyStart, bodyEnd = trimBlankLines(src, bodyStart, bodyEnd)
		}
		if sp.kind == KindMarkdown && bodyStart == bodyEnd && sp.start == sp.bodyStart {
			// Empty leading markdown before a delimiter on the first line.
			continue
		}
		stmts = append(stmts, Statement{
			Kind:   sp.kind,
			Text:   string(src[bodyStart:bodyEnd]),
			Format: sp.format,
			Range:  li.Range(sp.start, end),
			Body:   li.Range(bodyStart, bodyEnd),
		})
	}
	return stmts, nil
}

func kindFor(word string) (Kind, error) {
	switch word {
	case "markdown", "md":
		return KindMarkdown, nil
	case "sql":
		return KindQuery, nil
	case "data":
		return KindData, nil
	}
	return "", fmt.Errorf("unknown kind %q", word)
}

// trimBlankLines narrows [start, end) to exclude whitespace-only lines at
// either end, and the final newline.
func trimBlankLines(src []byte, start, end int) (int, int) {
	for start < end {
		nl := bytes.IndexByte(src[start:end], '\n')
		if nl < 0 || len(bytes.TrimSpace(src[start:start+nl])) != 0 {
			break
		}
		start += nl + 1
	}
	for end > start {
		prev := bytes.LastIndexByte(src[start:end-1], '\n')
		lineStart := start
		if prev >= 0 {
			lineStart = start + prev + 1
		}
		if len(bytes.TrimSpace(src[lineStart:end])) != 0 {
			break
		}
		end = lineStart
	}
	for end > start && (src[end-1] == '\n' || src[end-1] == '\r') {
		end--
	}
	return start, end
}
