package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgallion1/docsite/internal/config"
	"github.com/dgallion1/docsite/internal/highlight"
	"github.com/dgallion1/docsite/internal/pipeline"
	"github.com/dgallion1/docsite/internal/query"
)

func newTestServer(t *testing.T, baseURL string) *Server {
	t.Helper()
	root := t.TempDir()
	src := filepath.Join(root, "src")
	files := map[string]string{
		"index.md":       "# Welcome\n\nStart with the [intro](guide/intro.md).\n",
		"guide/intro.md": "# Intro\n\n## Joins\n\nHow to join tables.\n\n[broken](nowhere.md)\n",
	}
	for name, content := range files {
		p := filepath.Join(src, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := config.Config{
		SrcDir:          src,
		OutDir:          filepath.Join(root, "out"),
		LayoutsDir:      filepath.Join(root, "layouts"),
		ContentsFile:    filepath.Join(root, "contents.json"),
		BlogFile:        filepath.Join(root, "blog.json"),
		BaseURL:         baseURL,
		WorkerCount:     2,
		ValidateAnchors: true,
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	hl := highlight.New("github")
	exec := query.NewService(query.Config{SrcDir: src}, hl, log)
	t.Cleanup(func() { exec.Close() })

	b := pipeline.NewBuilder(cfg, exec, hl, log)
	if _, err := b.Build(context.Background()); err != nil {
		t.Fatalf("Build: %v", err)
	}
	return NewServer(b, nil, log, cfg)
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, "")
	rec := get(t, s, "/health")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
}

func TestReport(t *testing.T) {
	s := newTestServer(t, "")
	rec := get(t, s, "/api/report")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var report pipeline.Report
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Docs != 2 || len(report.Errors) != 1 {
		t.Errorf("expected 2 docs and 1 error, got %+v", report)
	}
	if report.Errors[0].Snippet != "nowhere.md" {
		t.Errorf("unexpected error %+v", report.Errors[0])
	}
}

func TestJobs(t *testing.T) {
	s := newTestServer(t, "")
	rec := get(t, s, "/api/jobs")
	var body struct {
		Jobs []pipeline.JobSnapshot `json:"jobs"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(body.Jobs))
	}

	rec = get(t, s, "/api/jobs/"+body.Jobs[0].ID)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for known job, got %d", rec.Code)
	}
	if rec = get(t, s, "/api/jobs/missing"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown job, got %d", rec.Code)
	}
}

func TestSearch(t *testing.T) {
	s := newTestServer(t, "")
	rec := get(t, s, "/api/search?query=join")
	var body struct {
		Results []struct {
			Score   int `json:"score"`
			Segment struct {
				Path string `json:"path"`
			} `json:"segment"`
		} `json:"results"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Results) == 0 || body.Results[0].Segment.Path != "/guide/intro.md" || body.Results[0].Score < 100 {
		t.Errorf("expected the Joins section first, got %+v", body.Results)
	}

	if rec := get(t, s, "/api/search"); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without query, got %d", rec.Code)
	}
}

func TestQueryStats(t *testing.T) {
	s := newTestServer(t, "")
	if rec := get(t, s, "/api/stats/queries"); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec := get(t, s, "/api/stats/watch"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without watcher, got %d", rec.Code)
	}
}

func TestSiteHandler(t *testing.T) {
	s := newTestServer(t, "/docs")

	tests := []struct {
		target string
		code   int
		want   string
	}{
		{"/docs/", http.StatusOK, "Welcome"},
		{"/docs/guide/intro", http.StatusOK, "Joins"},
		{"/docs/guide/intro.html", http.StatusOK, "Joins"},
		{"/docs/js/generated/search_segments.js", http.StatusOK, "window.SEARCH_SEGMENTS"},
		{"/docs/missing", http.StatusNotFound, ""},
		{"/guide/intro", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		rec := get(t, s, tt.target)
		if rec.Code != tt.code {
			t.Errorf("%s: expected %d, got %d", tt.target, tt.code, rec.Code)
			continue
		}
		if tt.want != "" && !strings.Contains(rec.Body.String(), tt.want) {
			t.Errorf("%s: expected body to contain %q", tt.target, tt.want)
		}
	}
}
