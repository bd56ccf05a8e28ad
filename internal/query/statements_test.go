package query

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{
			name:   "simple",
			script: "CREATE TABLE t(a); INSERT INTO t VALUES (1);\nSELECT * FROM t",
			want:   []string{"CREATE TABLE t(a)", "INSERT INTO t VALUES (1)", "SELECT * FROM t"},
		},
		{
			name:   "semicolon in string",
			script: "SELECT 'a;b'; SELECT 2;",
			want:   []string{"SELECT 'a;b'", "SELECT 2"},
		},
		{
			name:   "escaped quote",
			script: "SELECT 'it''s; fine'",
			want:   []string{"SELECT 'it''s; fine'"},
		},
		{
			name:   "comments",
			script: "-- a; comment\nSELECT 1; /* x; y */ SELECT 2",
			want:   []string{"-- a; comment\nSELECT 1", "/* x; y */ SELECT 2"},
		},
		{
			name:   "comment only",
			script: "-- nothing here\n;",
			want:   nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitStatements(tt.script)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("SplitStatements mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIsQuery(t *testing.T) {
	tests := []struct {
		stmt string
		want bool
	}{
		{"SELECT 1", true},
		{"select 1", true},
		{"-- #(docs) hidden\nWITH x AS (SELECT 1) SELECT * FROM x", true},
		{"VALUES (1)", true},
		{"CREATE VIEW v AS SELECT 1", false},
		{"INSERT INTO t SELECT 1", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsQuery(tt.stmt); got != tt.want {
			t.Errorf("IsQuery(%q) = %v, want %v", tt.stmt, got, tt.want)
		}
	}
}

func TestPartition(t *testing.T) {
	defs, q := Partition("CREATE TABLE t(a); SELECT 1; INSERT INTO t VALUES (1); SELECT a FROM t")
	if diff := cmp.Diff([]string{"CREATE TABLE t(a)", "INSERT INTO t VALUES (1)"}, defs); diff != "" {
		t.Errorf("defs mismatch (-want +got):\n%s", diff)
	}
	if q != "SELECT a FROM t" {
		t.Errorf("expected trailing query, got %q", q)
	}

	defs, q = Partition("CREATE TABLE t(a)")
	if len(defs) != 1 || q != "" {
		t.Errorf("expected one definition and no query, got %v %q", defs, q)
	}
}

func TestParseMagic(t *testing.T) {
	opts, rest, ok, err := ParseMagic("--! {\"isRunnable\": true, \"source\": \"m.sql\", \"pageSize\": 3}\nSELECT 1")
	if err != nil || !ok {
		t.Fatalf("expected options, got ok=%v err=%v", ok, err)
	}
	if !opts.IsRunnable || opts.Source != "m.sql" || opts.PageSize != 3 {
		t.Errorf("unexpected options %+v", opts)
	}
	if rest != "SELECT 1" {
		t.Errorf("expected options line removed, got %q", rest)
	}

	_, rest, ok, _ = ParseMagic("SELECT 1")
	if ok || rest != "SELECT 1" {
		t.Errorf("expected no options, got ok=%v rest=%q", ok, rest)
	}

	if _, _, _, err := ParseMagic("--! {not json}\nSELECT 1"); err == nil {
		t.Error("expected error for malformed options")
	}
}

func TestSplitDirectives(t *testing.T) {
	code := "-- #(docs) hidden limit=10 size=large json\nSELECT 1\n  --##(docs) sql\n-- plain comment"
	visible, tags := SplitDirectives(code)
	if visible != "SELECT 1\n-- plain comment" {
		t.Errorf("unexpected visible code %q", visible)
	}
	want := Tags{Hidden: true, Limit: 10, Size: "large", ShowAs: "json"}
	if diff := cmp.Diff(want, tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
}
