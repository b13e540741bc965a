// Package bazel provides workspace discovery and structural extraction for
// Bazel BUILD files.
package bazel

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Workspace marker files, checked in order.
var workspaceMarkers = []string{"WORKSPACE", "WORKSPACE.bazel", "MODULE.bazel"}

// IsWorkspaceDir reports whether dir is the root of a Bazel workspace,
// i.e. contains a WORKSPACE, WORKSPACE.bazel or MODULE.bazel file.
func IsWorkspaceDir(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	for _, marker := range workspaceMarkers {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

// FindWorkspaceRoot walks up from path until it finds a workspace root.
// It returns the root and true, or "" and false if none is found.
func FindWorkspaceRoot(path string) (string, bool) {
	dir := path
	for {
		if IsWorkspaceDir(dir) {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// PackagePath returns the package path of a BUILD file relative to the
// workspace root: the file's parent directory with '/' separators, or ""
// for the root package.
func PackagePath(buildFile, root string) string {
	rel, err := filepath.Rel(root, filepath.Dir(buildFile))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	return filepath.ToSlash(rel)
}

// IsBuildFile reports whether name is a BUILD file name.
func IsBuildFile(name string) bool {
	return name == "BUILD" || name == "BUILD.bazel"
}

// FindBuildFiles walks dir and returns every BUILD and BUILD.bazel file,
// skipping hidden directories and bazel-* output/convenience directories.
// Unreadable directories are skipped, not fatal.
func FindBuildFiles(dir string) []string {
	return FindBuildFilesExcluding(dir, nil)
}

// FindBuildFilesExcluding is FindBuildFiles with additional directory
// names to skip, on top of the dotdir and bazel-* exclusions.
func FindBuildFilesExcluding(dir string, exclude []string) []string {
	var buildFiles []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if path != dir && skipDir(name, exclude) {
				return filepath.SkipDir
			}
			return nil
		}
		if IsBuildFile(name) {
			buildFiles = append(buildFiles, path)
		}
		return nil
	})
	return buildFiles
}

func skipDir(name string, exclude []string) bool {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "bazel-") {
		return true
	}
	return slices.Contains(exclude, name)
}
