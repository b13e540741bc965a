// Package bzldeps implements the bzldeps deps formatter command.
package bzldeps

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/albertocavalcante/bzl/internal/bazel"
	"github.com/albertocavalcante/bzl/internal/bazel/depsort"
	"github.com/albertocavalcante/bzl/internal/version"
)

// Exit codes
const (
	exitOK          = 0
	exitNeedsFormat = 1 // --check mode: files need formatting
	exitError       = 2 // error occurred
)

// Run executes bzldeps with the given arguments.
func Run(args []string) int {
	return RunWithIO(args, os.Stdin, os.Stdout, os.Stderr)
}

// RunWithIO allows custom IO for embedding/testing.
func RunWithIO(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var (
		writeFlag   bool
		diffFlag    bool
		checkFlag   bool
		versionFlag bool
	)

	fs := flag.NewFlagSet("bzldeps", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&writeFlag, "w", false, "write result to file instead of stdout")
	fs.BoolVar(&diffFlag, "d", false, "display diff instead of formatted output")
	fs.BoolVar(&checkFlag, "check", false, "exit with non-zero status if files need formatting")
	fs.BoolVar(&versionFlag, "version", false, "print version and exit")

	fs.Usage = func() {
		writeln(stderr, "Usage: bzldeps [flags] [path ...]")
		writeln(stderr)
		writeln(stderr, "Sorts and deduplicates deps attributes in BUILD files.")
		writeln(stderr, "With no paths, reads from stdin and writes to stdout.")
		writeln(stderr, "Directories are searched recursively for BUILD files.")
		writeln(stderr)
		writeln(stderr, "Flags:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		return exitError
	}

	if versionFlag {
		writef(stdout, "bzldeps %s\n", version.String())
		return exitOK
	}

	if writeFlag && diffFlag {
		writeln(stderr, "bzldeps: cannot use -w and -d together")
		return exitError
	}
	if writeFlag && checkFlag {
		writeln(stderr, "bzldeps: cannot use -w and --check together")
		return exitError
	}

	paths := fs.Args()
	if len(paths) == 0 {
		return formatStdin(stdin, stdout, stderr, checkFlag, diffFlag)
	}
	return formatPaths(paths, stdout, stderr, writeFlag, diffFlag, checkFlag)
}

func formatStdin(stdin io.Reader, stdout, stderr io.Writer, checkFlag, diffFlag bool) int {
	src, err := io.ReadAll(stdin)
	if err != nil {
		writef(stderr, "bzldeps: reading stdin: %v\n", err)
		return exitError
	}

	formatted, err := depsort.Format(src)
	if err != nil {
		writef(stderr, "bzldeps: %v\n", err)
		return exitError
	}

	if checkFlag {
		if !bytes.Equal(src, formatted) {
			writeln(stderr, "<stdin>")
			return exitNeedsFormat
		}
		return exitOK
	}

	if diffFlag {
		write(stdout, computeDiff("<stdin>", src, formatted))
		return exitOK
	}

	writeBytes(stdout, formatted)
	return exitOK
}

func formatPaths(paths []string, stdout, stderr io.Writer, writeFlag, diffFlag, checkFlag bool) int {
	var files []string
	for _, path := range paths {
		expanded, err := expandPath(path)
		if err != nil {
			writef(stderr, "bzldeps: %v\n", err)
			return exitError
		}
		files = append(files, expanded...)
	}

	if len(files) == 0 {
		writeln(stderr, "bzldeps: no files to format")
		return exitOK
	}

	needsFormat := false
	hasError := false

	for _, path := range files {
		src, err := os.ReadFile(path)
		if err != nil {
			writef(stderr, "bzldeps: %s: %v\n", path, err)
			hasError = true
			continue
		}

		formatted, err := depsort.Format(src)
		if err != nil {
			writef(stderr, "bzldeps: %s: %v\n", path, err)
			hasError = true
			continue
		}

		if bytes.Equal(src, formatted) {
			continue
		}
		needsFormat = true

		switch {
		case checkFlag:
			writeln(stdout, path)
		case writeFlag:
			if err := os.WriteFile(path, formatted, 0644); err != nil {
				writef(stderr, "bzldeps: %s: %v\n", path, err)
				hasError = true
			}
		case diffFlag:
			write(stdout, computeDiff(path, src, formatted))
		default:
			writef(stdout, "==> %s <==\n", path)
			writeBytes(stdout, formatted)
		}
	}

	if hasError {
		return exitError
	}
	if checkFlag && needsFormat {
		return exitNeedsFormat
	}
	return exitOK
}

// expandPath expands a path to a list of files to format. Directories
// are walked recursively for BUILD files, skipping hidden and bazel
// output directories.
func expandPath(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if p != path && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "bazel-")) {
				return filepath.SkipDir
			}
			return nil
		}
		if bazel.IsBuildFile(name) {
			files = append(files, p)
		}
		return nil
	})
	return files, err
}

// computeDiff returns a unified diff between original and formatted content.
func computeDiff(path string, original, formatted []byte) string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(original)),
		B:        difflib.SplitLines(string(formatted)),
		FromFile: path + ".orig",
		ToFile:   path,
		Context:  3,
	})
	if err != nil {
		return ""
	}
	return diff
}

// Helper functions for writing output. Write errors to stdout/stderr
// are ignored; the exit code still reflects the operation status.
func writef(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}

func writeln(w io.Writer, args ...any) {
	_, _ = fmt.Fprintln(w, args...)
}

func write(w io.Writer, s string) {
	_, _ = io.WriteString(w, s)
}

func writeBytes(w io.Writer, b []byte) {
	_, _ = w.Write(b)
}
