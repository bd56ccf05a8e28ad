package query

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/google/uuid"
)

// Result is the first page of rows of an executed query.
type Result struct {
	SQL       string
	Columns   []string
	Rows      [][]any
	Truncated bool
}

// scan reads at most limit rows.
func scan(rows *sql.Rows, limit int) (*Result, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	res := &Result{Columns: cols}
	for rows.Next() {
		if len(res.Rows) == limit {
			res.Truncated = true
			break
		}
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Objects returns the rows keyed by column name.
func (r *Result) Objects() []map[string]any {
	out := make([]map[string]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		obj := make(map[string]any, len(r.Columns))
		for i, c := range r.Columns {
			obj[c] = row[i]
		}
		out = append(out, obj)
	}
	return out
}

func (r *Result) tableHTML() string {
	var sb strings.Builder
	sb.WriteString(`<table class="result-table"><thead><tr>`)
	for _, c := range r.Columns {
		sb.WriteString("<th>" + html.EscapeString(c) + "</th>")
	}
	sb.WriteString("</tr></thead><tbody>")
	for _, row := range r.Rows {
		sb.WriteString("<tr>")
		for _, v := range row {
			if v == nil {
				sb.WriteString(`<td class="null">∅</td>`)
				continue
			}
			sb.WriteString("<td>" + html.EscapeString(fmt.Sprint(v)) + "</td>")
		}
		sb.WriteString("</tr>")
	}
	sb.WriteString("</tbody></table>")
	return sb.String()
}

func selected(showAs, kind string) string {
	if showAs == kind {
		return "selected"
	}
	return ""
}

// render builds the tabbed result block with HTML, JSON and SQL views.
func (s *Service) render(res *Result, size, showAs string) (string, error) {
	if size == "" {
		size = "small"
	}
	if showAs == "" {
		showAs = "html"
	}
	data, err := json.MarshalIndent(res.Objects(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	jsonHTML := s.hl.Highlight(string(data), "json", false)
	sqlHTML := s.hl.Highlight(res.SQL, "sql", false)
	id := uuid.NewString()

	h, j, q := selected(showAs, "html"), selected(showAs, "json"), selected(showAs, "sql")

	var sb strings.Builder
	fmt.Fprintf(&sb, `<div class="result-outer %s">`, html.EscapeString(size))
	sb.WriteString(`<div class="result-controls-bar"><span class="result-label">QUERY RESULTS</span><div class="result-controls">`)
	fmt.Fprintf(&sb, `<button class="result-control" %s data-result-kind="html">HTML</button>`, h)
	fmt.Fprintf(&sb, `<button class="result-control" %s data-result-kind="json">JSON</button>`, j)
	fmt.Fprintf(&sb, `<button class="result-control" %s data-result-kind="sql">SQL</button>`, q)
	sb.WriteString(`</div></div>`)
	fmt.Fprintf(&sb, `<div class="result-middle" data-result-kind="html" %s><div class="result-inner" id="%s">%s</div></div>`, h, id, res.tableHTML())
	fmt.Fprintf(&sb, `<div class="result-middle" data-result-kind="json" %s><div class="result-inner">%s</div></div>`, j, jsonHTML)
	fmt.Fprintf(&sb, `<div class="result-middle" data-result-kind="sql" %s><div class="result-inner">%s</div></div>`, q, sqlHTML)
	sb.WriteString(`</div>`)
	return sb.String(), nil
}
