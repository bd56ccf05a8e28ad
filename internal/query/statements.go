package query

import (
	"strings"
	"unicode"
)

// SplitStatements splits a SQL script on top-level semicolons. Quoted
// strings, quoted identifiers and comments are skipped over. Empty
// statements are dropped.
func SplitStatements(script string) []string {
	var out []string
	start := 0
	emit := func(end int) {
		if stmt := strings.TrimSpace(script[start:end]); stripComments(stmt) != "" {
			out = append(out, stmt)
		}
	}
	for i := 0; i < len(script); i++ {
		switch c := script[i]; c {
		case '\'', '"', '`':
			i = skipQuoted(script, i, c)
		case '[':
			if j := strings.IndexByte(script[i:], ']'); j >= 0 {
				i += j
			}
		case '-':
			if strings.HasPrefix(script[i:], "--") {
				if j := strings.IndexByte(script[i:], '\n'); j >= 0 {
					i += j
				} else {
					i = len(script)
				}
			}
		case '/':
			if strings.HasPrefix(script[i:], "/*") {
				if j := strings.Index(script[i+2:], "*/"); j >= 0 {
					i += j + 3
				} else {
					i = len(script)
				}
			}
		case ';':
			emit(i)
			start = i + 1
		}
	}
	if start < len(script) {
		emit(len(script))
	}
	return out
}

// skipQuoted returns the index of the closing quote for the quote at i.
// Doubled quotes are escapes.
func skipQuoted(s string, i int, q byte) int {
	for j := i + 1; j < len(s); j++ {
		if s[j] == q {
			if j+1 < len(s) && s[j+1] == q {
				j++
				continue
			}
			return j
		}
	}
	return len(s)
}

// stripComments removes leading comments and whitespace.
func stripComments(stmt string) string {
	for {
		stmt = strings.TrimLeftFunc(stmt, unicode.IsSpace)
		switch {
		case strings.HasPrefix(stmt, "--"):
			j := strings.IndexByte(stmt, '\n')
			if j < 0 {
				return ""
			}
			stmt = stmt[j+1:]
		case strings.HasPrefix(stmt, "/*"):
			j := strings.Index(stmt, "*/")
			if j < 0 {
				return ""
			}
			stmt = stmt[j+2:]
		default:
			return stmt
		}
	}
}

// IsQuery reports whether stmt produces rows.
func IsQuery(stmt string) bool {
	body := stripComments(stmt)
	end := strings.IndexFunc(body, func(r rune) bool { return !unicode.IsLetter(r) })
	if end < 0 {
		end = len(body)
	}
	switch strings.ToUpper(body[:end]) {
	case "SELECT", "WITH", "VALUES":
		return true
	}
	return false
}

// Partition separates a script into definitions and an optional trailing
// query. Row-producing statements that are not last are dropped.
func Partition(script string) (defs []string, query string) {
	stmts := SplitStatements(script)
	if n := len(stmts); n > 0 && IsQuery(stmts[n-1]) {
		query = stmts[n-1]
		stmts = stmts[:n-1]
	}
	for _, s := range stmts {
		if !IsQuery(s) {
			defs = append(defs, s)
		}
	}
	return defs, query
}
