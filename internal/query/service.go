// Package query executes SQL code cells against per-directory SQLite
// databases and renders their results.
package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/docsite/internal/highlight"
)

// Model is the running model of a notebook: the definition statements of
// every cell executed so far, in order.
type Model []string

// UndefinedModelError reports a model source that is neither defined
// earlier in the document nor present in the models directory.
type UndefinedModelError struct {
	Name string
}

func (e *UndefinedModelError) Error() string {
	return fmt.Sprintf("can't find source %s", e.Name)
}

// CellRequest runs one notebook query cell on top of Model.
type CellRequest struct {
	Doc   string // corpus-rooted document path
	Code  string // full cell text including directive lines
	Model Model
}

// CellResult is the outcome of a notebook cell.
type CellResult struct {
	HTML   string
	Model  Model
	Hidden bool
}

// SnippetRequest runs one code block of a markdown document.
type SnippetRequest struct {
	Doc     string
	Code    string // code without the options line
	Options Options
	Models  map[string]string // models defined earlier in the document
}

// Config holds the settings of a Service.
type Config struct {
	SrcDir      string
	ModelsDir   string
	DataFile    string
	RowLimit    int
	Timeout     time.Duration
	BusyTimeout time.Duration
}

// Service runs code against the database of the document's directory.
// It is safe for concurrent use.
type Service struct {
	cfg   Config
	conns *Connections
	hl    *highlight.Highlighter
	stats *Stats
	deps  *Dependencies
	log   *slog.Logger
}

func NewService(cfg Config, hl *highlight.Highlighter, log *slog.Logger) *Service {
	if cfg.RowLimit <= 0 {
		cfg.RowLimit = 5
	}
	if cfg.DataFile == "" {
		cfg.DataFile = "data.db"
	}
	return &Service{
		cfg:   cfg,
		conns: NewConnections(cfg.DataFile, int(cfg.BusyTimeout.Milliseconds()), log),
		hl:    hl,
		stats: NewStats(time.Hour),
		deps:  NewDependencies(),
		log:   log,
	}
}

func (s *Service) Stats() *Stats               { return s.stats }
func (s *Service) Dependencies() *Dependencies { return s.deps }
func (s *Service) Close() error                { return s.conns.Close() }
func (s *Service) Connections() int            { return s.conns.Len() }

// RunCell executes a notebook query cell. Definitions in the cell extend
// the model; a trailing query is run and rendered. Nothing is persisted.
func (s *Service) RunCell(ctx context.Context, req CellRequest) (CellResult, error) {
	_, tags := SplitDirectives(req.Code)
	defs, q := Partition(req.Code)

	out := CellResult{Hidden: tags.Hidden}
	stmts := append(append([]string(nil), req.Model...), defs...)
	res, err := s.execute(ctx, req.Doc, stmts, q, cmpLimit(tags.Limit, s.cfg.RowLimit))
	if err != nil {
		return out, err
	}
	out.Model = stmts
	if res == nil {
		return out, nil
	}
	out.HTML, err = s.render(res, tags.Size, tags.ShowAs)
	return out, err
}

// RunSnippet executes a runnable markdown code block. When Options.Source
// names a model, its definitions run first.
func (s *Service) RunSnippet(ctx context.Context, req SnippetRequest) (string, error) {
	script := req.Code
	if src := req.Options.Source; src != "" {
		model, err := s.ResolveModel(req.Doc, src, req.Models)
		if err != nil {
			return "", err
		}
		script = model + "\n" + script
	}
	defs, q := Partition(script)
	res, err := s.execute(ctx, req.Doc, defs, q, cmpLimit(req.Options.PageSize, s.cfg.RowLimit))
	if err != nil || res == nil {
		return "", err
	}
	return s.render(res, req.Options.Size, req.Options.ShowAs)
}

// ResolveModel returns the code of the named model. Models defined in the
// document win over files in the models directory; reading a file records
// doc as its dependent.
func (s *Service) ResolveModel(doc, name string, models map[string]string) (string, error) {
	if code, ok := models[name]; ok {
		return code, nil
	}
	if s.cfg.ModelsDir == "" {
		return "", &UndefinedModelError{Name: name}
	}
	rel := path.Clean("/" + name)
	data, err := os.ReadFile(filepath.Join(s.cfg.ModelsDir, filepath.FromSlash(rel)))
	if errors.Is(err, fs.ErrNotExist) {
		return "", &UndefinedModelError{Name: name}
	}
	if err != nil {
		return "", fmt.Errorf("read model %s: %w", name, err)
	}
	s.deps.Add(rel, doc)
	return string(data), nil
}

// execute replays stmts then runs q inside a transaction that is always
// rolled back. A nil result means there was no query.
func (s *Service) execute(ctx context.Context, doc string, stmts []string, q string, limit int) (*Result, error) {
	db, err := s.conns.Get(filepath.Join(s.cfg.SrcDir, filepath.FromSlash(path.Dir(doc))))
	if err != nil {
		return nil, err
	}
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	log := s.log.With("doc", doc)
	start := time.Now()
	var res *Result
	for attempt := 0; ; attempt++ {
		res, err = s.executeOnce(ctx, db, stmts, q, limit)
		if err == nil || !IsRetryable(err) || attempt >= MaxRetries {
			break
		}
		delay := Backoff(attempt)
		log.Warn("database busy, retrying", "attempt", attempt+1, "delay", delay)
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(delay):
			continue
		}
		break
	}
	s.stats.Record(time.Since(start), err)
	if err != nil {
		return nil, err
	}
	if q != "" {
		log.Info("ran query", "query", summary(q), "rows", len(res.Rows), "duration", time.Since(start))
	}
	return res, nil
}

func (s *Service) executeOnce(ctx context.Context, db *sql.DB, stmts []string, q string, limit int) (*Result, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify(fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback()

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return nil, classify(err)
		}
	}
	if q == "" {
		return nil, nil
	}
	rows, err := tx.QueryContext(ctx, q)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	res, err := scan(rows, limit)
	if err != nil {
		return nil, classify(err)
	}
	res.SQL = q
	return res, nil
}

func cmpLimit(requested, fallback int) int {
	if requested > 0 {
		return requested
	}
	return fallback
}

func summary(q string) string {
	q = strings.Join(strings.Fields(q), " ")
	if len(q) > 50 {
		q = q[:50] + "..."
	}
	return q
}

// Dependencies records which documents read which model files.
type Dependencies struct {
	mu   sync.Mutex
	docs map[string][]string
}

func NewDependencies() *Dependencies {
	return &Dependencies{docs: make(map[string][]string)}
}

// Add records doc as a dependent of model.
func (d *Dependencies) Add(model, doc string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, existing := range d.docs[model] {
		if existing == doc {
			return
		}
	}
	d.docs[model] = append(d.docs[model], doc)
}

// Dependents returns the documents that read model, sorted.
func (d *Dependencies) Dependents(model string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := append([]string(nil), d.docs[model]...)
	sort.Strings(out)
	return out
}
