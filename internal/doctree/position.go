package doctree

import (
	"sort"
	"unicode/utf8"
)

// Position is a point in a source file. Line and Column are 1-based,
// Offset is a 0-based byte offset.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
	Offset int `json:"offset"`
}

// Before reports whether p sorts before q by (line, column).
func (p Position) Before(q Position) bool {
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Column < q.Column
}

// Range is a span of source text.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Valid reports whether Start <= End.
func (r Range) Valid() bool {
	return !r.End.Before(r.Start)
}

// LineIndex converts byte offsets of one source file into positions.
type LineIndex struct {
	src    []byte
	starts []int // byte offset of each line start
}

// NewLineIndex indexes src.
func NewLineIndex(src []byte) *LineIndex {
	starts := []int{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{src: src, starts: starts}
}

// Position returns the position of byte offset off. Columns count runes.
func (li *LineIndex) Position(off int) Position {
	if off < 0 {
		off = 0
	}
	if off > len(li.src) {
		off = len(li.src)
	}
	line := sort.Search(len(li.starts), func(i int) bool { return li.starts[i] > off }) - 1
	start := li.starts[line]
	return Position{
		Line:   line + 1,
		Column: utf8.RuneCount(li.src[start:off]) + 1,
		Offset: off,
	}
}

// Range returns the range covering byte offsets [start, end).
func (li *LineIndex) Range(start, end int) Range {
	if end < start {
		end = start
	}
	return Range{Start: li.Position(start), End: li.Position(end)}
}

// LineStart returns the offset of the start of the line containing off.
func (li *LineIndex) LineStart(off int) int {
	return li.starts[li.Position(off).Line-1]
}

// LineEnd returns the offset just past the line containing off, including
// its newline.
func (li *LineIndex) LineEnd(off int) int {
	line := li.Position(off).Line
	if line < len(li.starts) {
		return li.starts[line]
	}
	return len(li.src)
}

// Len returns the indexed source length.
func (li *LineIndex) Len() int { return len(li.src) }
