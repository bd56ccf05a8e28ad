package notebook

import (
	"errors"
	"testing"
)

func TestSplit_Kinds(t *testing.T) {
	src := "# Intro\n\nSome text.\n>>>sql\nSELECT 1;\n\n>>>markdown\nMore prose.\n>>>data csv\na,b\n1,2\n"
	stmts, err := Split([]byte(src), "/nb.sqlnb")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []struct {
		kind   Kind
		text   string
		format string
	}{
		{KindMarkdown, "# Intro\n\nSome text.\n", ""},
		{KindQuery, "SELECT 1;", ""},
		{KindMarkdown, "More prose.\n", ""},
		{KindData, "a,b\n1,2", "csv"},
	}
	if len(stmts) != len(want) {
		t.Fatalf("expected %d statements, got %d: %+v", len(want), len(stmts), stmts)
	}
	for i, w := range want {
		if stmts[i].Kind != w.kind {
			t.Errorf("statement %d: kind %q, want %q", i, stmts[i].Kind, w.kind)
		}
		if stmts[i].Text != w.text {
			t.Errorf("statement %d: text %q, want %q", i, stmts[i].Text, w.text)
		}
		if stmts[i].Format != w.format {
			t.Errorf("statement %d: format %q, want %q", i, stmts[i].Format, w.format)
		}
	}
}

func TestSplit_RangesTileInput(t *testing.T) {
	src := ">>>markdown\n# A\n>>>sql\nSELECT 1\n>>>sql\n\nSELECT 2\n\n"
	stmts, err := Split([]byte(src), "/nb.sqlnb")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stmts) != 3 {
		t.Fatalf("expected 3 statements, got %d", len(stmts))
	}
	if stmts[0].Range.Start.Offset != 0 {
		t.Errorf("first statement starts at %d, want 0", stmts[0].Range.Start.Offset)
	}
	for i := 1; i < len(stmts); i++ {
		if stmts[i].Range.Start.Offset != stmts[i-1].Range.End.Offset {
			t.Errorf("gap between statement %d and %d", i-1, i)
		}
	}
	if last := stmts[len(stmts)-1]; last.Range.End.Offset != len(src) {
		t.Errorf("last statement ends at %d, want %d", last.Range.End.Offset, len(src))
	}
	if stmts[2].Text != "SELECT 2" {
		t.Errorf("expected blank lines trimmed, got %q", stmts[2].Text)
	}
	if stmts[2].Body.Start.Line != 7 {
		t.Errorf("expected body to start on line 7, got %d", stmts[2].Body.Start.Line)
	}
}

func TestSplit_PlainMarkdown(t *testing.T) {
	stmts, err := Split([]byte("just prose\n"), "/nb.sqlnb")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stmts) != 1 || stmts[0].Kind != KindMarkdown {
		t.Fatalf("expected one markdown statement, got %+v", stmts)
	}
}

func TestSplit_Empty(t *testing.T) {
	stmts, err := Split(nil, "/nb.sqlnb")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stmts) != 0 {
		t.Errorf("expected no statements, got %d", len(stmts))
	}
}

func TestSplit_UnknownKind(t *testing.T) {
	_, err := Split([]byte("intro\n>>>python\nprint(1)\n"), "/nb.sqlnb")
	var splitErr *SplitError
	if !errors.As(err, &splitErr) {
		t.Fatalf("expected SplitError, got %v", err)
	}
	if splitErr.Line != 2 || splitErr.Word != "python" {
		t.Errorf("unexpected error details: %+v", splitErr)
	}
}
