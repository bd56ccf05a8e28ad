package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/docsite/internal/diag"
)

// JobStatus represents the state of a document build.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusParsing   JobStatus = "parsing"
	StatusRendering JobStatus = "rendering"
	StatusWriting   JobStatus = "writing"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Job tracks the build of a single document.
type Job struct {
	mu sync.Mutex

	ID  string `json:"job_id"`
	Doc string `json:"doc"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Cells       int       `json:"cells"`
	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	errors []string
	diags  []diag.Error
}

// NewJob returns a queued job for doc.
func NewJob(doc string) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		Doc:       doc,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
// Only the latest job of each document is kept.
type JobStore struct {
	mu    sync.Mutex
	jobs  map[string]*Job
	byDoc map[string]string
	ttl   time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs:  make(map[string]*Job),
		byDoc: make(map[string]string),
		ttl:   ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.byDoc[job.Doc]; ok {
		delete(s.jobs, prev)
	}
	s.jobs[job.ID] = job
	s.byDoc[job.Doc] = job.ID
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Latest returns the most recent job of doc.
func (s *JobStore) Latest(doc string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[s.byDoc[doc]]
}

// List returns snapshots of all jobs ordered by document.
func (s *JobStore) List() []JobSnapshot {
	s.mu.Lock()
	jobs := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.Unlock()

	out := make([]JobSnapshot, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Snapshot())
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Doc < out[k].Doc })
	return out
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
			if s.byDoc[job.Doc] == id {
				delete(s.byDoc, job.Doc)
			}
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error that stopped the build.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.UpdatedAt = time.Now()
}

// SetContentHash records the hash of the written output.
func (j *Job) SetContentHash(h string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ContentHash = h
}

// SetDiagnostics records the rendering diagnostics of the document.
func (j *Job) SetDiagnostics(errs []diag.Error, cells int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.diags = errs
	j.Cells = cells
	j.UpdatedAt = time.Now()
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string       `json:"job_id"`
	Doc         string       `json:"doc"`
	Status      JobStatus    `json:"status"`
	Phase       string       `json:"phase"`
	Cells       int          `json:"cells"`
	ContentHash string       `json:"content_hash,omitempty"`
	Errors      []string     `json:"errors"`
	Diagnostics []diag.Error `json:"diagnostics"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := append([]string{}, j.errors...)
	diags := append([]diag.Error{}, j.diags...)
	return JobSnapshot{
		ID:          j.ID,
		Doc:         j.Doc,
		Status:      j.Status,
		Phase:       j.Phase,
		Cells:       j.Cells,
		ContentHash: j.ContentHash,
		Errors:      errs,
		Diagnostics: diags,
		UpdatedAt:   j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
