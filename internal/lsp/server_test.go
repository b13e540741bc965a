package lsp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go.lsp.dev/protocol"
)

func request(t *testing.T, method string, params any) *Request {
	t.Helper()
	req := &Request{JSONRPC: "2.0", Method: method}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			t.Fatal(err)
		}
		req.Params = data
	}
	id := json.RawMessage(`1`)
	req.ID = &id
	return req
}

func TestHandleRejectsBeforeInitialize(t *testing.T) {
	s := NewServer(nil)

	_, err := s.Handle(context.Background(), request(t, "textDocument/completion", nil))
	rpcErr, ok := err.(*ResponseError)
	if !ok || rpcErr.Code != CodeInvalidRequest {
		t.Errorf("pre-initialize request error = %v, want invalid request", err)
	}
}

func TestHandleRejectsAfterShutdown(t *testing.T) {
	s := NewServer(nil)
	s.initialized = true
	s.shutdown = true

	_, err := s.Handle(context.Background(), request(t, "textDocument/completion", nil))
	rpcErr, ok := err.(*ResponseError)
	if !ok || rpcErr.Code != CodeInvalidRequest {
		t.Errorf("post-shutdown request error = %v, want invalid request", err)
	}
}

func TestHandleUnknownMethod(t *testing.T) {
	s := NewServer(nil)
	s.initialized = true

	_, err := s.Handle(context.Background(), request(t, "textDocument/definitelyNot", nil))
	if err != ErrMethodNotFound {
		t.Errorf("unknown method error = %v, want ErrMethodNotFound", err)
	}
}

func TestInitializeIndexesWorkspace(t *testing.T) {
	root := t.TempDir()
	for name, content := range map[string]string{
		"WORKSPACE": "",
		"a/BUILD":   "cc_library(name = \"x\")\n",
	} {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	s := NewServer(nil)
	// Watching is irrelevant here and keeps the test free of fsnotify.
	s.cfg.Index.Watch = false

	result, err := s.Handle(context.Background(), request(t, "initialize", protocol.InitializeParams{
		RootURI: protocol.DocumentURI("file://" + root),
	}))
	if err != nil {
		t.Fatalf("initialize error = %v", err)
	}

	if s.workspaceRoot != root {
		t.Errorf("workspaceRoot = %q, want %q", s.workspaceRoot, root)
	}
	if s.index == nil || s.index.TargetCount() != 1 {
		t.Error("workspace was not indexed")
	}

	init, ok := result.(*protocol.InitializeResult)
	if !ok {
		t.Fatalf("initialize result type = %T", result)
	}
	if init.ServerInfo == nil || init.ServerInfo.Name != "bzls" {
		t.Error("missing server info")
	}
	if init.Capabilities.CompletionProvider == nil {
		t.Error("missing completion capability")
	}
	if init.Capabilities.ExecuteCommandProvider == nil {
		t.Error("missing execute command capability")
	}
}

func TestInitializeSingleFileMode(t *testing.T) {
	// A root without workspace markers stays un-indexed.
	s := NewServer(nil)
	s.cfg.Index.Watch = false

	_, err := s.Handle(context.Background(), request(t, "initialize", protocol.InitializeParams{
		RootURI: protocol.DocumentURI("file://" + t.TempDir()),
	}))
	if err != nil {
		t.Fatalf("initialize error = %v", err)
	}
	if s.workspaceRoot != "" || s.index != nil {
		t.Error("non-workspace root must not be indexed")
	}
}

func TestLifecycle(t *testing.T) {
	exited := false
	s := NewServer(func() { exited = true })

	if _, err := s.Handle(context.Background(), request(t, "initialize", protocol.InitializeParams{})); err != nil {
		t.Fatalf("initialize error = %v", err)
	}
	if _, err := s.Handle(context.Background(), request(t, "initialized", struct{}{})); err != nil {
		t.Fatalf("initialized error = %v", err)
	}
	if !s.initialized {
		t.Error("server not marked initialized")
	}

	if _, err := s.Handle(context.Background(), request(t, "shutdown", nil)); err != nil {
		t.Fatalf("shutdown error = %v", err)
	}
	if _, err := s.Handle(context.Background(), request(t, "exit", nil)); err != nil {
		t.Fatalf("exit error = %v", err)
	}
	if !exited {
		t.Error("exit callback not invoked")
	}
}

func TestDidOpenAndClose(t *testing.T) {
	s := singleFileServer(t)
	uri := protocol.DocumentURI("file:///tmp/BUILD")

	_, err := s.Handle(context.Background(), request(t, "textDocument/didOpen", protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: uri, Version: 1, Text: depsDoc},
	}))
	if err != nil {
		t.Fatalf("didOpen error = %v", err)
	}
	if content, ok := s.documentContent(uri); !ok || content != depsDoc {
		t.Error("document not tracked after didOpen")
	}

	_, err = s.Handle(context.Background(), request(t, "textDocument/didClose", protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	}))
	if err != nil {
		t.Fatalf("didClose error = %v", err)
	}
	if _, ok := s.documentContent(uri); ok {
		t.Error("document still tracked after didClose")
	}
}

// didChangeParams mirrors the didChange wire shape, with the optional
// range kept as a pointer.
type didChangeParams struct {
	TextDocument   protocol.VersionedTextDocumentIdentifier `json:"textDocument"`
	ContentChanges []contentChange                          `json:"contentChanges"`
}

func TestDidChangeIncremental(t *testing.T) {
	s := singleFileServer(t)
	uri := protocol.DocumentURI("file:///tmp/BUILD")
	openDoc(s, uri, "cc_library(name = \"old\")\n")

	rng := &protocol.Range{
		Start: protocol.Position{Line: 0, Character: 19},
		End:   protocol.Position{Line: 0, Character: 22},
	}
	_, err := s.Handle(context.Background(), request(t, "textDocument/didChange", didChangeParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: uri},
			Version:                2,
		},
		ContentChanges: []contentChange{
			{Range: rng, Text: "new"},
		},
	}))
	if err != nil {
		t.Fatalf("didChange error = %v", err)
	}

	content, _ := s.documentContent(uri)
	if want := "cc_library(name = \"new\")\n"; content != want {
		t.Errorf("content = %q, want %q", content, want)
	}
}

func TestDidChangeFullReplace(t *testing.T) {
	s := singleFileServer(t)
	uri := protocol.DocumentURI("file:///tmp/BUILD")
	openDoc(s, uri, "old content")

	_, err := s.Handle(context.Background(), request(t, "textDocument/didChange", didChangeParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: uri},
			Version:                2,
		},
		ContentChanges: []contentChange{
			{Text: "replaced"},
		},
	}))
	if err != nil {
		t.Fatalf("didChange error = %v", err)
	}

	if content, _ := s.documentContent(uri); content != "replaced" {
		t.Errorf("content = %q, want full replacement", content)
	}
}

func TestDidSaveReindexes(t *testing.T) {
	s := workspaceServer(t)
	buildFile := filepath.Join(s.workspaceRoot, "a", "BUILD")
	uri := protocol.DocumentURI("file://" + buildFile)

	if err := os.WriteFile(buildFile, []byte("cc_library(name = \"renamed\")\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := s.Handle(context.Background(), request(t, "textDocument/didSave", protocol.DidSaveTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	}))
	if err != nil {
		t.Fatalf("didSave error = %v", err)
	}

	if got := s.index.Search("a:renamed"); len(got) != 1 {
		t.Errorf("index not refreshed after didSave: %v", got)
	}
}

func TestFormatting(t *testing.T) {
	s := singleFileServer(t)
	uri := protocol.DocumentURI("file:///tmp/BUILD")
	openDoc(s, uri, "cc_library(\n    name = \"lib\",\n    deps = [\n        \"//b\",\n        \"//a\",\n    ],\n)\n")

	result, err := s.Handle(context.Background(), request(t, "textDocument/formatting", protocol.DocumentFormattingParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	}))
	if err != nil {
		t.Fatalf("formatting error = %v", err)
	}

	edits, ok := result.([]protocol.TextEdit)
	if !ok || len(edits) != 1 {
		t.Fatalf("formatting result = %#v, want one edit", result)
	}
	want := "cc_library(\n    name = \"lib\",\n    deps = [\n        \"//a\",\n        \"//b\",\n    ],\n)\n"
	if edits[0].NewText != want {
		t.Errorf("formatted text:\n%s\nwant:\n%s", edits[0].NewText, want)
	}
	if edits[0].Range.Start != (protocol.Position{}) {
		t.Error("edit must start at the top of the document")
	}
	if edits[0].Range.End.Line != 7 {
		t.Errorf("edit end line = %d, want 7", edits[0].Range.End.Line)
	}
}

func TestFormattingUnparsableDocument(t *testing.T) {
	s := singleFileServer(t)
	uri := protocol.DocumentURI("file:///tmp/BUILD")
	openDoc(s, uri, "cc_library(name = \n")

	_, err := s.Handle(context.Background(), request(t, "textDocument/formatting", protocol.DocumentFormattingParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	}))
	rpcErr, ok := err.(*ResponseError)
	if !ok || rpcErr.Code != CodeInternalError {
		t.Errorf("formatting broken document error = %v, want internal error", err)
	}
}

func TestCommandTarget(t *testing.T) {
	tests := []struct {
		name string
		args []interface{}
		want string
		ok   bool
	}{
		{
			name: "valid",
			args: []interface{}{map[string]interface{}{"target": "//a:b"}},
			want: "//a:b",
			ok:   true,
		},
		{name: "empty args", args: nil},
		{name: "wrong shape", args: []interface{}{"//a:b"}},
		{name: "missing key", args: []interface{}{map[string]interface{}{"label": "//a:b"}}},
		{name: "empty target", args: []interface{}{map[string]interface{}{"target": ""}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := commandTarget(tt.args)
			if ok != tt.ok || got != tt.want {
				t.Errorf("commandTarget(%v) = %q, %v; want %q, %v", tt.args, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestExecuteCommandUnknown(t *testing.T) {
	s := singleFileServer(t)

	result, err := s.Handle(context.Background(), request(t, "workspace/executeCommand", protocol.ExecuteCommandParams{
		Command: "bazel.dance",
	}))
	if err != nil {
		t.Fatalf("executeCommand error = %v", err)
	}
	if result != nil {
		t.Errorf("unknown command result = %v, want nil", result)
	}
}

func TestExecuteCommandMissingTarget(t *testing.T) {
	s := singleFileServer(t)

	_, err := s.Handle(context.Background(), request(t, "workspace/executeCommand", protocol.ExecuteCommandParams{
		Command: cmdBuild,
	}))
	rpcErr, ok := err.(*ResponseError)
	if !ok || rpcErr.Code != CodeInvalidParams {
		t.Errorf("executeCommand without target error = %v, want invalid params", err)
	}
}
