package query

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// Connections hands out one database handle per source directory. A
// directory containing the data file gets that file opened; any other
// directory gets a private in-memory database.
type Connections struct {
	dataFile    string
	busyTimeout int
	log         *slog.Logger

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

func NewConnections(dataFile string, busyTimeoutMs int, log *slog.Logger) *Connections {
	return &Connections{
		dataFile:    dataFile,
		busyTimeout: busyTimeoutMs,
		log:         log,
		dbs:         make(map[string]*sql.DB),
	}
}

// Get returns the handle for dir, opening it on first use.
func (c *Connections) Get(dir string) (*sql.DB, error) {
	dir = filepath.Clean(dir)

	c.mu.Lock()
	defer c.mu.Unlock()

	if db, ok := c.dbs[dir]; ok {
		return db, nil
	}
	db, err := c.open(dir)
	if err != nil {
		return nil, err
	}
	c.dbs[dir] = db
	return db, nil
}

func (c *Connections) open(dir string) (*sql.DB, error) {
	path := filepath.Join(dir, c.dataFile)
	_, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", path, c.busyTimeout)
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping %s: %w", path, err)
		}
		c.log.Info("opened data file", "dir", dir, "path", path)
		return db, nil

	case errors.Is(statErr, fs.ErrNotExist):
		db, err := sql.Open("sqlite", ":memory:")
		if err != nil {
			return nil, fmt.Errorf("open memory database: %w", err)
		}
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
		c.log.Debug("opened in-memory database", "dir", dir)
		return db, nil

	default:
		return nil, fmt.Errorf("stat %s: %w", path, statErr)
	}
}

// Close closes every handle.
func (c *Connections) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for dir, db := range c.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", dir, err))
		}
		delete(c.dbs, dir)
	}
	return errors.Join(errs...)
}

// Len reports how many handles are open.
func (c *Connections) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.dbs)
}
