package bzls

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := RunWithIO(context.Background(), []string{"-version"}, nil, &stdout, &stderr)

	if code != exitOK {
		t.Errorf("RunWithIO(-version) returned %d, want 0", code)
	}
	if !strings.HasPrefix(stdout.String(), "bzls ") {
		t.Errorf("RunWithIO(-version) output = %q", stdout.String())
	}
}

func TestRun_Help(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := RunWithIO(context.Background(), []string{"-help"}, nil, &stdout, &stderr)

	if code != exitOK {
		t.Errorf("RunWithIO(-help) returned %d, want 0", code)
	}
	if !strings.Contains(stderr.String(), "Usage: bzls") {
		t.Error("help output missing usage")
	}
}

func TestRun_BadConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := RunWithIO(context.Background(), []string{"-config", "/nonexistent/bzl.toml"}, nil, &stdout, &stderr)

	if code != exitError {
		t.Errorf("RunWithIO(bad -config) returned %d, want %d", code, exitError)
	}
}

func frame(body string) string {
	return fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body)
}

// syncBuffer guards a buffer written from handler goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRun_InitializeSession(t *testing.T) {
	// One initialize request, then EOF. The server must answer with its
	// capabilities and exit cleanly.
	stdin := strings.NewReader(frame(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`))
	var stdout syncBuffer
	var stderr bytes.Buffer

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	code := RunWithIO(ctx, nil, stdin, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("RunWithIO(session) returned %d\nstderr: %s", code, stderr.String())
	}

	// The response is written from a handler goroutine; give it a moment.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(stdout.String(), `"capabilities"`) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !strings.Contains(stdout.String(), `"capabilities"`) {
		t.Errorf("no initialize response on stdout: %q", stdout.String())
	}
	if !strings.Contains(stdout.String(), `"bzls"`) {
		t.Errorf("initialize response missing server info: %q", stdout.String())
	}
}
