package pipeline

import (
	"testing"
	"time"

	"github.com/dgallion1/docsite/internal/diag"
)

func TestContentHashHex_Consistency(t *testing.T) {
	data := []byte("hello world")
	h1 := ContentHashHex(data)
	h2 := ContentHashHex(data)
	if h1 != h2 {
		t.Errorf("expected identical hashes, got %q and %q", h1, h2)
	}
	// SHA-256 of "hello world" is well-known.
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if h1 != want {
		t.Errorf("expected hash %q, got %q", want, h1)
	}
}

func TestNewJob(t *testing.T) {
	a, b := NewJob("/a.md"), NewJob("/a.md")
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("expected distinct non-empty ids, got %q and %q", a.ID, b.ID)
	}
	if a.Status != StatusQueued {
		t.Errorf("expected status %q, got %q", StatusQueued, a.Status)
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := NewJob("/doc.md")

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusParsing, "parsing"},
		{StatusRendering, "rendering"},
		{StatusWriting, "writing"},
		{StatusCompleted, "done"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
}

func TestJob_ErrorsAndDiagnostics(t *testing.T) {
	job := NewJob("/doc.md")
	job.AddError("parsing: bad delimiter")
	job.SetDiagnostics([]diag.Error{{File: "/doc.md", Kind: diag.KindSnippetWhitespace}}, 3)

	snap := job.Snapshot()
	if len(snap.Errors) != 1 || snap.Errors[0] != "parsing: bad delimiter" {
		t.Errorf("unexpected errors %v", snap.Errors)
	}
	if len(snap.Diagnostics) != 1 || snap.Cells != 3 {
		t.Errorf("unexpected diagnostics %v cells %d", snap.Diagnostics, snap.Cells)
	}
}

func TestJob_SnapshotSlicesNotNil(t *testing.T) {
	snap := NewJob("/doc.md").Snapshot()
	if snap.Errors == nil || snap.Diagnostics == nil {
		t.Error("expected non-nil slices in snapshot")
	}
}

func TestJobStore_LatestReplacesPrevious(t *testing.T) {
	store := NewJobStore(time.Hour)
	first := NewJob("/a.md")
	second := NewJob("/a.md")
	store.Put(first)
	store.Put(second)

	if store.Get(first.ID) != nil {
		t.Error("expected first job to be replaced")
	}
	if got := store.Latest("/a.md"); got != second {
		t.Errorf("expected latest job to be the second one, got %v", got)
	}
	if n := len(store.List()); n != 1 {
		t.Errorf("expected 1 job, got %d", n)
	}
}

func TestJobStore_GetMissing(t *testing.T) {
	store := NewJobStore(time.Hour)
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := NewJob("/old.md")
	store.Put(expired)

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	fresh := NewJob("/new.md")
	store.Put(fresh)

	store.Cleanup()

	if store.Get(expired.ID) != nil || store.Latest("/old.md") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get(fresh.ID) == nil {
		t.Error("expected fresh job to survive cleanup")
	}
}
