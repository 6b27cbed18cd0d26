package app

import (
	"sort"
	"sync"

	"vinec/internal/engine/modgraph"
)

// FileState is the dev session's knowledge of one host file.
type FileState int

const (
	StateUnknown FileState = iota
	StateTracked
)

func (s FileState) String() string {
	if s == StateTracked {
		return "tracked"
	}
	return "unknown"
}

// FileTracker records which host files have a published compile and which
// relative imports of theirs did not resolve yet.
type FileTracker struct {
	mu      sync.RWMutex
	tracked map[string]bool
	pending map[string][]string
}

func NewFileTracker() *FileTracker {
	return &FileTracker{
		tracked: make(map[string]bool),
		pending: make(map[string][]string),
	}
}

func (t *FileTracker) State(fileID string) FileState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.tracked[fileID] {
		return StateTracked
	}
	return StateUnknown
}

// Track marks fileID tracked and replaces its unresolved import bases.
func (t *FileTracker) Track(fileID string, pending []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracked[fileID] = true
	if len(pending) == 0 {
		delete(t.pending, fileID)
		return
	}
	t.pending[fileID] = append([]string(nil), pending...)
}

func (t *FileTracker) Untrack(fileID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tracked, fileID)
	delete(t.pending, fileID)
}

// Waiting returns the tracked files with an unresolved import that path
// would now satisfy.
func (t *FileTracker) Waiting(path string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []string
	for file, bases := range t.pending {
		for _, base := range bases {
			if modgraph.Satisfies(base, path) {
				out = append(out, file)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// Files returns the tracked files in sorted order.
func (t *FileTracker) Files() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.tracked))
	for f := range t.tracked {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func (t *FileTracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.tracked)
}
