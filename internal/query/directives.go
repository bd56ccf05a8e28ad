package query

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Options are the run options of a code block, read from a "--! {json}"
// first line in markdown documents or from directive lines in notebook
// cells.
type Options struct {
	IsHidden   bool   `json:"isHidden"`
	IsRunnable bool   `json:"isRunnable"`
	IsModel    bool   `json:"isModel"`
	ModelPath  string `json:"modelPath"`
	Source     string `json:"source"`
	Size       string `json:"size"`
	PageSize   int    `json:"pageSize"`
	ShowAs     string `json:"showAs"`
}

// MagicPrefix starts the options line of a markdown code block.
const MagicPrefix = "--!"

// ParseMagic reads the options line at the top of code. It returns the
// options, the code without that line, and whether a line was present.
func ParseMagic(code string) (Options, string, bool, error) {
	var opts Options
	if !strings.HasPrefix(code, MagicPrefix) {
		return opts, code, false, nil
	}
	first, rest, _ := strings.Cut(code, "\n")
	raw := strings.TrimSpace(strings.TrimPrefix(first, MagicPrefix))
	if err := json.Unmarshal([]byte(raw), &opts); err != nil {
		return opts, rest, true, fmt.Errorf("invalid options %q: %w", raw, err)
	}
	return opts, rest, true, nil
}

// Directive lines hold space separated tags, e.g. "-- #(docs) hidden limit=10".
var directiveLine = regexp.MustCompile(`^\s*--\s*#{1,2}\(docs\)(.*)$`)

// Tags are the settings parsed from notebook directive lines.
type Tags struct {
	Hidden bool
	Limit  int
	Size   string
	ShowAs string
}

// SplitDirectives removes directive lines from code and returns the
// visible code together with the tags they carried.
func SplitDirectives(code string) (string, Tags) {
	var tags Tags
	lines := strings.Split(code, "\n")
	visible := lines[:0:0]
	for _, line := range lines {
		m := directiveLine.FindStringSubmatch(line)
		if m == nil {
			visible = append(visible, line)
			continue
		}
		for _, tag := range strings.Fields(m[1]) {
			key, value, _ := strings.Cut(tag, "=")
			switch key {
			case "hidden":
				tags.Hidden = true
			case "limit":
				if n, err := strconv.Atoi(value); err == nil && n > 0 {
					tags.Limit = n
				}
			case "size":
				tags.Size = value
			case "html", "json", "sql":
				if tags.ShowAs == "" {
					tags.ShowAs = key
				}
			}
		}
	}
	return strings.Join(visible, "\n"), tags
}
