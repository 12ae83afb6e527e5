package counter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// lockRetry is how often a contended file lock is retried.
const lockRetry = 5 * time.Millisecond

type fileData struct {
	Current int `json:"current"`
}

// FileCounter stores the count as {"current": n} in a JSON file.
//
// Updates hold an in-process mutex and an advisory lock on <path>.lock, and
// replace the file with a rename, so readers never see a partial write and
// concurrent processes never lose an increment.
type FileCounter struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
}

// NewFileCounter creates a counter backed by path. The file is created on
// first write; a missing file reads as zero.
func NewFileCounter(path string) (*FileCounter, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	return &FileCounter{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

// Path returns the counter file path.
func (c *FileCounter) Path() string {
	return c.path
}

// Increment adds one under the file lock.
func (c *FileCounter) Increment(ctx context.Context) (int, error) {
	var n int
	err := c.update(ctx, func(cur int) int {
		n = cur + 1
		return n
	})
	return n, err
}

// Reset writes zero under the file lock.
func (c *FileCounter) Reset(ctx context.Context) error {
	return c.update(ctx, func(int) int { return 0 })
}

// Read returns the current value under a shared lock.
func (c *FileCounter) Read(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	locked, err := c.lock.TryRLockContext(ctx, lockRetry)
	if err != nil {
		return 0, fmt.Errorf("lock counter: %w", err)
	}
	if !locked {
		return 0, fmt.Errorf("lock counter: not acquired")
	}
	defer c.lock.Unlock()

	return c.load()
}

func (c *FileCounter) update(ctx context.Context, fn func(int) int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	locked, err := c.lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return fmt.Errorf("lock counter: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock counter: not acquired")
	}
	defer c.lock.Unlock()

	cur, err := c.load()
	if err != nil {
		return err
	}
	return c.save(fn(cur))
}

// load reads the file. Callers hold the lock.
func (c *FileCounter) load() (int, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read counter: %w", err)
	}
	if len(data) == 0 {
		return 0, nil
	}

	var stored fileData
	if err := json.Unmarshal(data, &stored); err != nil {
		return 0, fmt.Errorf("failed to parse counter %s: %w", c.path, err)
	}
	return stored.Current, nil
}

// save writes the file. Callers hold the lock.
func (c *FileCounter) save(n int) error {
	data, err := json.Marshal(fileData{Current: n})
	if err != nil {
		return fmt.Errorf("failed to marshal counter: %w", err)
	}

	// Write to temp file first, then rename (atomic write)
	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

var _ Counter = (*FileCounter)(nil)
