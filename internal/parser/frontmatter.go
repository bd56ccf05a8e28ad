package parser

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/dgallion1/docsite/internal/doctree"
)

var fmFence = []byte("---\n")

// ExtractFrontMatter parses a leading "---" delimited YAML block. The
// returned body has the block blanked out byte-for-byte so offsets into it
// still match the file on disk.
func ExtractFrontMatter(src []byte) (doctree.FrontMatter, []byte, error) {
	var fm doctree.FrontMatter
	if !bytes.HasPrefix(src, fmFence) {
		return fm, src, nil
	}
	rest := src[len(fmFence):]

	var raw []byte
	var blockLen int
	switch {
	case bytes.HasPrefix(rest, fmFence):
		blockLen = 2 * len(fmFence)
	default:
		end := bytes.Index(rest, []byte("\n---\n"))
		if end < 0 {
			if !bytes.HasSuffix(rest, []byte("\n---")) {
				return fm, src, nil
			}
			end = len(rest) - len("\n---")
		}
		raw = rest[:end+1]
		blockLen = min(len(fmFence)+end+len("\n---\n"), len(src))
	}

	if err := yaml.Unmarshal(raw, &fm); err != nil {
		return fm, src, fmt.Errorf("front matter: %w", err)
	}

	body := make([]byte, len(src))
	copy(body, src)
	for i := range blockLen {
		if body[i] != '\n' {
			body[i] = ' '
		}
	}
	return fm, body, nil
}
