package runner

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"
	"testing"
)

type captureOutput struct {
	mu     sync.Mutex
	stdout []string
	stderr []string
}

func (c *captureOutput) Stdout(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stdout = append(c.stdout, line)
}

func (c *captureOutput) Stderr(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stderr = append(c.stderr, line)
}

func TestRunRejectsUnknownSubcommand(t *testing.T) {
	r := &Runner{}
	err := r.Run(context.Background(), "query", "//:all", &captureOutput{})
	if err == nil {
		t.Fatal("Run() with unsupported subcommand: want error")
	}
}

func TestRunStreamsOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake bazel script requires a POSIX shell")
	}

	// Stand in for bazel with a script that writes to both streams.
	dir := t.TempDir()
	fake := filepath.Join(dir, "bazel")
	script := "#!/bin/sh\necho building \"$2\"\necho warning: slow >&2\n"
	if err := os.WriteFile(fake, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	r := &Runner{Bazel: fake, Dir: dir}
	out := &captureOutput{}
	if err := r.Run(context.Background(), "build", "//a:b", out); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if want := []string{"building //a:b"}; !slices.Equal(out.stdout, want) {
		t.Errorf("stdout = %v, want %v", out.stdout, want)
	}
	if want := []string{"warning: slow"}; !slices.Equal(out.stderr, want) {
		t.Errorf("stderr = %v, want %v", out.stderr, want)
	}
}

func TestRunReportsExitFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake bazel script requires a POSIX shell")
	}

	dir := t.TempDir()
	fake := filepath.Join(dir, "bazel")
	if err := os.WriteFile(fake, []byte("#!/bin/sh\nexit 3\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	r := &Runner{Bazel: fake, Dir: dir}
	if err := r.Run(context.Background(), "test", "//a:b", &captureOutput{}); err == nil {
		t.Fatal("Run() with failing process: want error")
	}
}

func TestRunMissingBinary(t *testing.T) {
	r := &Runner{Bazel: "definitely-not-a-real-binary-1234"}
	err := r.Run(context.Background(), "build", "//:x", &captureOutput{})
	if err == nil {
		t.Fatal("Run() with missing binary: want error")
	}
}
