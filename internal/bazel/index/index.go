// Package index builds and maintains the workspace target index.
//
// The index owns the target trie plus a per-file record of extracted
// targets, so a single changed BUILD file can be reindexed without
// re-reading the rest of the workspace. Reads and writes follow a
// single-writer/multiple-reader discipline.
package index

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/albertocavalcante/bzl/internal/bazel"
	"github.com/albertocavalcante/bzl/internal/bazel/trie"
)

// Index is the session-scoped target index for one workspace.
type Index struct {
	mu   sync.RWMutex
	root string

	// files maps a BUILD file path to the target names extracted from it.
	// Kept so one file's edit can rebuild the trie from cached state.
	files map[string][]string

	trie *trie.TargetTrie
}

// New creates an empty index for the workspace rooted at root.
func New(root string) *Index {
	return &Index{
		root:  root,
		files: make(map[string][]string),
		trie:  trie.New(),
	}
}

// Root returns the workspace root this index was built for.
func (ix *Index) Root() string { return ix.root }

// Build populates the index from the given BUILD files. Files that cannot
// be read or parsed are logged and skipped; indexing never fails as a unit.
func (ix *Index) Build(buildFiles []string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, file := range buildFiles {
		if err := ix.addFileLocked(file); err != nil {
			log.Printf("index: skipping %s: %v", file, err)
		}
	}
	ix.rebuildLocked()
}

// UpdateFile re-extracts one BUILD file and rebuilds the trie. Used after
// saves and watcher events. A file that fails to parse keeps its previous
// entries until it parses again.
func (ix *Index) UpdateFile(path string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.addFileLocked(path); err != nil {
		return err
	}
	ix.rebuildLocked()
	return nil
}

// RemoveFile drops a deleted BUILD file's targets from the index.
func (ix *Index) RemoveFile(path string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, ok := ix.files[path]; !ok {
		return
	}
	delete(ix.files, path)
	ix.rebuildLocked()
}

// Search returns the trie rule groups matching prefix. Safe for concurrent
// callers; never fails, an unknown prefix yields an empty result.
func (ix *Index) Search(prefix string) [][]trie.RuleInfo {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.trie.StartsWith(prefix)
}

// TargetCount returns the number of indexed targets, counting duplicates.
func (ix *Index) TargetCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	n := 0
	for _, names := range ix.files {
		n += len(names)
	}
	return n
}

func (ix *Index) addFileLocked(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading build file: %w", err)
	}
	targets, err := bazel.ExtractTargets(content)
	if err != nil {
		return fmt.Errorf("extracting targets: %w", err)
	}

	names := make([]string, 0, len(targets))
	for _, t := range targets {
		names = append(names, t.Name)
	}
	ix.files[path] = names
	return nil
}

// rebuildLocked reconstructs the trie from the cached per-file targets.
// The trie has no delete operation, so updates rebuild it wholesale;
// cost is bounded by workspace size and no file I/O is involved.
func (ix *Index) rebuildLocked() {
	t := trie.New()
	for file, names := range ix.files {
		pkg := bazel.PackagePath(file, ix.root)
		for _, name := range names {
			key := name
			if pkg != "" {
				key = pkg + ":" + name
			}
			t.Insert(key, trie.RuleInfo{
				Name:          name,
				FullBuildPath: fmt.Sprintf("//%s:%s", pkg, name),
			})
		}
	}
	ix.trie = t
}
