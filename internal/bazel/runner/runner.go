// Package runner executes bazel subcommands on behalf of editor actions.
package runner

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"sync"
)

// Output receives the subprocess streams line by line while the command
// is still running. Implementations must be safe for concurrent calls;
// stdout and stderr arrive from separate goroutines.
type Output interface {
	Stdout(line string)
	Stderr(line string)
}

// Runner invokes bazel inside a workspace.
type Runner struct {
	// Bazel is the binary to invoke, "bazel" when empty.
	Bazel string
	// Dir is the working directory for every invocation.
	Dir string
}

// allowed subcommands; anything else is rejected before spawning.
var subcommands = map[string]bool{
	"build": true,
	"test":  true,
	"run":   true,
}

// Run invokes `bazel <subcommand> <label>` and streams both output
// channels to out. It blocks until the process exits or ctx is
// canceled, and returns the process error, if any.
func (r *Runner) Run(ctx context.Context, subcommand, label string, out Output) error {
	if !subcommands[subcommand] {
		return fmt.Errorf("unsupported bazel subcommand %q", subcommand)
	}

	bin := r.Bazel
	if bin == "" {
		bin = "bazel"
	}
	cmd := exec.CommandContext(ctx, bin, subcommand, label)
	cmd.Dir = r.Dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("connecting stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("connecting stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", bin, err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			out.Stdout(scanner.Text())
		}
	}()
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			out.Stderr(scanner.Text())
		}
	}()

	// Both pipes must drain before Wait closes them.
	wg.Wait()
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%s %s %s: %w", bin, subcommand, label, err)
	}
	return nil
}
