package workflowy

import (
	"fmt"
	"os"
	"path/filepath"
)

// Cache is a flat file cache for raw API responses. It lets a sync pass
// be replayed without touching the network (sync --cached).
type Cache struct {
	dir string
}

// NewCache creates the cache directory if needed.
func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory %s: %w", dir, err)
	}
	return &Cache{dir: dir}, nil
}

// Load returns the cached payload by name, or ok=false when absent.
func (c *Cache) Load(name string) ([]byte, bool) {
	data, err := os.ReadFile(filepath.Join(c.dir, name))
	if err != nil {
		return nil, false
	}
	return data, true
}

// Save writes a payload under name, replacing any previous entry.
func (c *Cache) Save(name string, data []byte) error {
	path := filepath.Join(c.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing cache entry %s: %w", path, err)
	}
	return nil
}
