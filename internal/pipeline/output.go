package pipeline

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"
)

// Output writes files under the output directory. Files whose content is
// unchanged since the last write are left alone so watchers of the output
// see only real changes.
type Output struct {
	dir string

	mu     sync.Mutex
	hashes map[string]string
}

func NewOutput(dir string) *Output {
	return &Output{dir: dir, hashes: make(map[string]string)}
}

// Dir returns the output root.
func (o *Output) Dir() string { return o.dir }

// Path maps a rooted slash path to its location on disk.
func (o *Output) Path(rel string) string {
	return filepath.Join(o.dir, filepath.FromSlash(rel))
}

// Write atomically replaces the file at rel and returns the content hash.
func (o *Output) Write(rel string, data []byte) (string, error) {
	hash := ContentHashHex(data)
	dst := o.Path(rel)

	o.mu.Lock()
	same := o.hashes[dst] == hash
	o.mu.Unlock()
	if same {
		if _, err := os.Stat(dst); err == nil {
			return hash, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}
	if err := atomic.WriteFile(dst, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("write %s: %w", rel, err)
	}
	if err := os.Chmod(dst, 0o644); err != nil {
		return "", fmt.Errorf("chmod %s: %w", rel, err)
	}

	o.mu.Lock()
	o.hashes[dst] = hash
	o.mu.Unlock()
	return hash, nil
}

// Remove deletes the file at rel. A missing file is not an error.
func (o *Output) Remove(rel string) error {
	dst := o.Path(rel)
	o.mu.Lock()
	delete(o.hashes, dst)
	o.mu.Unlock()
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
