// Package bzls implements the bzls language server command.
package bzls

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/albertocavalcante/bzl/internal/bzlconfig"
	"github.com/albertocavalcante/bzl/internal/lsp"
	"github.com/albertocavalcante/bzl/internal/version"
)

// Exit codes
const (
	exitOK    = 0
	exitError = 1
)

// Run executes bzls with the given arguments.
func Run(args []string) int {
	return RunWithIO(context.Background(), args, os.Stdin, os.Stdout, os.Stderr)
}

// RunWithIO allows custom IO for testing.
func RunWithIO(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var (
		versionFlag bool
		verboseFlag bool
		configFlag  string
	)

	fs := flag.NewFlagSet("bzls", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&versionFlag, "version", false, "print version and exit")
	fs.BoolVar(&verboseFlag, "v", false, "verbose logging to stderr")
	fs.StringVar(&configFlag, "config", "", "path to bzl.toml (default: discovered)")

	fs.Usage = func() {
		writeln(stderr, "Usage: bzls [flags]")
		writeln(stderr)
		writeln(stderr, "Language server for Bazel BUILD files.")
		writeln(stderr)
		writeln(stderr, "The server communicates over stdio using JSON-RPC 2.0.")
		writeln(stderr, "Configure your editor to launch this binary as an LSP server.")
		writeln(stderr)
		writeln(stderr, "Features:")
		writeln(stderr, "  - Target label completion inside deps")
		writeln(stderr, "  - Deps formatting (via bzldeps)")
		writeln(stderr, "  - Build/Test/Run code lenses")
		writeln(stderr, "  - Semantic highlighting")
		writeln(stderr, "  - Parse diagnostics")
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
		writef(stdout, "bzls %s\n", version.String())
		return exitOK
	}

	// Setup logging
	if verboseFlag {
		log.SetOutput(stderr)
		log.SetFlags(log.Ltime | log.Lshortfile)
	} else {
		log.SetOutput(io.Discard)
	}

	var (
		cfg *bzlconfig.Config
		err error
	)
	if configFlag != "" {
		cfg, err = bzlconfig.LoadConfig(configFlag)
	} else {
		cfg, _, err = bzlconfig.DiscoverConfig("")
	}
	if err != nil {
		writef(stderr, "bzls: %v\n", err)
		return exitError
	}

	// Create context with cancellation for clean shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	server := lsp.NewServerWithConfig(cancel, cfg)

	rwc := &stdioConn{
		Reader: stdin,
		Writer: stdout,
	}

	conn := lsp.NewConn(rwc, server)
	server.SetConn(conn)

	log.Printf("bzls: starting server")

	if err := conn.Run(ctx); err != nil && ctx.Err() == nil {
		writef(stderr, "bzls: %v\n", err)
		return exitError
	}

	log.Printf("bzls: server stopped")
	return exitOK
}

// stdioConn wraps stdin/stdout as an io.ReadWriteCloser.
type stdioConn struct {
	io.Reader
	io.Writer
}

func (s *stdioConn) Close() error {
	return nil
}

func writef(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}

func writeln(w io.Writer, args ...any) {
	_, _ = fmt.Fprintln(w, args...)
}
