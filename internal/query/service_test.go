package query

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/dgallion1/docsite/internal/highlight"
)

func newTestService(t *testing.T, modelsDir string) *Service {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(Config{
		SrcDir:    t.TempDir(),
		ModelsDir: modelsDir,
		RowLimit:  5,
	}, highlight.New("github"), log)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestRunCell_ThreadsModel(t *testing.T) {
	svc := newTestService(t, "")
	ctx := context.Background()

	first, err := svc.RunCell(ctx, CellRequest{
		Doc:  "/nb/a.sqlnb",
		Code: "-- #(docs) hidden\nCREATE TABLE t(a INTEGER);\nINSERT INTO t VALUES (1), (2);",
	})
	if err != nil {
		t.Fatalf("first cell: %v", err)
	}
	if !first.Hidden {
		t.Error("expected first cell hidden")
	}
	if first.HTML != "" {
		t.Errorf("expected no output without a query, got %q", first.HTML)
	}
	if len(first.Model) != 2 {
		t.Fatalf("expected 2 model statements, got %v", first.Model)
	}

	second, err := svc.RunCell(ctx, CellRequest{
		Doc:   "/nb/a.sqlnb",
		Code:  "SELECT sum(a) AS total FROM t",
		Model: first.Model,
	})
	if err != nil {
		t.Fatalf("second cell: %v", err)
	}
	if !strings.Contains(second.HTML, "<td>3</td>") {
		t.Errorf("expected total 3 in result, got %s", second.HTML)
	}
	if !strings.Contains(second.HTML, `data-result-kind="json"`) {
		t.Error("expected tabbed result block")
	}
}

func TestRunCell_NothingPersists(t *testing.T) {
	svc := newTestService(t, "")
	ctx := context.Background()

	if _, err := svc.RunCell(ctx, CellRequest{Doc: "/a.sqlnb", Code: "CREATE TABLE t(a)"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := svc.RunCell(ctx, CellRequest{Doc: "/a.sqlnb", Code: "SELECT * FROM t"})
	if err == nil || !strings.Contains(err.Error(), "no such table") {
		t.Fatalf("expected missing table without model, got %v", err)
	}
}

func TestRunCell_RowLimit(t *testing.T) {
	svc := newTestService(t, "")
	res, err := svc.RunCell(context.Background(), CellRequest{
		Doc:  "/a.sqlnb",
		Code: "-- #(docs) limit=2\nWITH RECURSIVE n(x) AS (SELECT 1 UNION ALL SELECT x+1 FROM n WHERE x < 10) SELECT x FROM n",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.Count(res.HTML, "<tr><td>"); got != 2 {
		t.Errorf("expected 2 rows, got %d", got)
	}
}

func TestRunSnippet_Models(t *testing.T) {
	modelsDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(modelsDir, "nums.sql"), []byte("CREATE TABLE nums(n); INSERT INTO nums VALUES (7);"), 0o644); err != nil {
		t.Fatal(err)
	}
	svc := newTestService(t, modelsDir)
	ctx := context.Background()

	out, err := svc.RunSnippet(ctx, SnippetRequest{
		Doc:     "/guide/q.md",
		Code:    "SELECT n FROM nums",
		Options: Options{IsRunnable: true, Source: "nums.sql"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "<td>7</td>") {
		t.Errorf("expected model row in result, got %s", out)
	}
	if deps := svc.Dependencies().Dependents("/nums.sql"); len(deps) != 1 || deps[0] != "/guide/q.md" {
		t.Errorf("expected dependency recorded, got %v", deps)
	}

	out, err = svc.RunSnippet(ctx, SnippetRequest{
		Doc:     "/guide/q.md",
		Code:    "SELECT n FROM inline",
		Options: Options{IsRunnable: true, Source: "mine"},
		Models:  map[string]string{"mine": "CREATE TABLE inline(n); INSERT INTO inline VALUES (9);"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "<td>9</td>") {
		t.Errorf("expected inline model row, got %s", out)
	}
}

func TestRunSnippet_UndefinedModel(t *testing.T) {
	svc := newTestService(t, t.TempDir())
	_, err := svc.RunSnippet(context.Background(), SnippetRequest{
		Doc:     "/q.md",
		Code:    "SELECT 1",
		Options: Options{IsRunnable: true, Source: "missing.sql"},
	})
	var undef *UndefinedModelError
	if !errors.As(err, &undef) {
		t.Fatalf("expected UndefinedModelError, got %v", err)
	}
	if undef.Name != "missing.sql" {
		t.Errorf("unexpected model name %q", undef.Name)
	}
}

func TestConnections_OnePerDirectory(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	conns := NewConnections("data.db", 1000, log)
	defer conns.Close()

	dir := t.TempDir()
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := conns.Get(dir); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if _, err := conns.Get(filepath.Join(dir, "sub")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conns.Len() != 2 {
		t.Errorf("expected 2 handles, got %d", conns.Len())
	}
}

func TestIsBusy(t *testing.T) {
	if !IsBusy(errors.New("database is locked (5) (SQLITE_BUSY)")) {
		t.Error("expected busy message to be detected")
	}
	if IsBusy(errors.New("no such table: t")) {
		t.Error("expected other errors not busy")
	}
	if !IsRetryable(classify(errors.New("database is locked"))) {
		t.Error("expected busy error classified retryable")
	}
}
