package workflowy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// snapshotLayout orders snapshot filenames chronologically when sorted
// lexicographically.
const snapshotLayout = "2006.01.02.15.04.05"

// ErrNoSnapshots is returned when the history directory holds no
// snapshots yet.
var ErrNoSnapshots = errors.New("no tree snapshots recorded")

// History keeps timestamped snapshots of raw tree exports so past states
// of the outline can be replayed through the pipeline.
type History struct {
	dir string
}

// NewHistory creates the history directory if needed.
func NewHistory(dir string) (*History, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory %s: %w", dir, err)
	}
	return &History{dir: dir}, nil
}

// Save records a raw tree export under a timestamped filename and
// returns the path written.
func (h *History) Save(raw []byte, now time.Time) (string, error) {
	path := filepath.Join(h.dir, now.Format(snapshotLayout)+".json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("writing snapshot %s: %w", path, err)
	}
	return path, nil
}

// Latest returns the most recent snapshot's raw payload.
func (h *History) Latest() ([]byte, error) {
	names, err := h.List()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, ErrNoSnapshots
	}

	path := filepath.Join(h.dir, names[len(names)-1])
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", path, err)
	}
	return data, nil
}

// List returns snapshot filenames in chronological order.
func (h *History) List() ([]string, error) {
	entries, err := os.ReadDir(h.dir)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots in %s: %w", h.dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	return names, nil
}
