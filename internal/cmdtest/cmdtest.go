// Package cmdtest provides a testscript-based test harness for the bzl
// CLI tools.
//
// Test cases are txtar files that set up a file tree, run a tool, and
// assert on its output and exit status:
//
//	# deps lists get sorted in place
//	exec bzldeps -w BUILD
//	exec bzldeps -check BUILD
//
//	-- BUILD --
//	cc_library(
//	    name = "lib",
//	    deps = ["//b", "//a"],
//	)
package cmdtest

import (
	"os"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"

	"github.com/albertocavalcante/bzl/internal/cmd/bzldeps"
	"github.com/albertocavalcante/bzl/internal/cmd/bzls"
)

// Run executes the testscript tests in the given directory.
func Run(t *testing.T, dir string) {
	testscript.Run(t, testscript.Params{
		Dir: dir,
	})
}

// Main is the TestMain function that should be called from test files.
// It registers the CLI tools as testscript commands.
func Main(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"bzldeps": wrapRun(bzldeps.Run),
		"bzls":    wrapRun(bzls.Run),
	}))
}

// wrapRun adapts a Run(args []string) int entry point to the func() int
// shape testscript expects. Args come from os.Args[1:].
func wrapRun(run func(args []string) int) func() int {
	return func() int {
		return run(os.Args[1:])
	}
}
