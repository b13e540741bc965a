package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"

	"go.lsp.dev/protocol"

	"github.com/albertocavalcante/bzl/internal/bazel"
	"github.com/albertocavalcante/bzl/internal/bazel/depsort"
	"github.com/albertocavalcante/bzl/internal/bazel/index"
	"github.com/albertocavalcante/bzl/internal/bazel/runner"
	"github.com/albertocavalcante/bzl/internal/bzlconfig"
	"github.com/albertocavalcante/bzl/internal/version"
)

// Server handles LSP requests for Bazel BUILD files.
type Server struct {
	conn *Conn

	// State
	mu          sync.RWMutex
	initialized bool
	shutdown    bool
	documents   map[protocol.DocumentURI]*Document
	rootURI     protocol.DocumentURI

	// Workspace state, populated during initialize. workspaceRoot is
	// empty in single-file mode, and the index with it.
	workspaceRoot string
	index         *index.Index
	watcher       *index.Watcher

	cfg    *bzlconfig.Config
	runner *runner.Runner

	// Callbacks
	onExit func()
}

// Document represents an open text document.
type Document struct {
	URI     protocol.DocumentURI
	Version int32
	Content string
}

// NewServer creates a new LSP server with default configuration.
func NewServer(onExit func()) *Server {
	return NewServerWithConfig(onExit, bzlconfig.DefaultConfig())
}

// NewServerWithConfig creates a new LSP server using cfg for the bazel
// binary and indexing behavior.
func NewServerWithConfig(onExit func(), cfg *bzlconfig.Config) *Server {
	if cfg == nil {
		cfg = bzlconfig.DefaultConfig()
	}
	return &Server{
		documents: make(map[protocol.DocumentURI]*Document),
		cfg:       cfg,
		runner:    &runner.Runner{Bazel: cfg.Bazel},
		onExit:    onExit,
	}
}

// SetConn sets the connection for sending notifications.
func (s *Server) SetConn(conn *Conn) {
	s.conn = conn
}

// Handle implements Handler interface - routes requests to methods.
func (s *Server) Handle(ctx context.Context, req *Request) (any, error) {
	s.mu.RLock()
	shutdown := s.shutdown
	initialized := s.initialized
	s.mu.RUnlock()

	// Check shutdown state - only allow exit after shutdown
	if shutdown && req.Method != "exit" {
		return nil, &ResponseError{
			Code:    CodeInvalidRequest,
			Message: "server is shutting down",
		}
	}

	// Check initialization - only lifecycle methods allowed before initialize
	if !initialized {
		switch req.Method {
		case "initialize", "initialized", "shutdown", "exit":
			// Allowed before initialization
		default:
			return nil, &ResponseError{
				Code:    CodeInvalidRequest,
				Message: "server not initialized",
			}
		}
	}

	// Route to method handlers
	switch req.Method {
	// Lifecycle
	case "initialize":
		return s.handleInitialize(ctx, req.Params)
	case "initialized":
		return s.handleInitialized(ctx, req.Params)
	case "shutdown":
		return s.handleShutdown(ctx)
	case "exit":
		return s.handleExit(ctx)

	// Text document sync
	case "textDocument/didOpen":
		return s.handleDidOpen(ctx, req.Params)
	case "textDocument/didChange":
		return s.handleDidChange(ctx, req.Params)
	case "textDocument/didClose":
		return s.handleDidClose(ctx, req.Params)
	case "textDocument/didSave":
		return s.handleDidSave(ctx, req.Params)

	// Language features
	case "textDocument/completion":
		return s.handleCompletion(ctx, req.Params)
	case "textDocument/formatting":
		return s.handleFormatting(ctx, req.Params)
	case "textDocument/codeLens":
		return s.handleCodeLens(ctx, req.Params)
	case "textDocument/semanticTokens/full":
		return s.handleSemanticTokensFull(ctx, req.Params)
	case "textDocument/semanticTokens/range":
		return s.handleSemanticTokensRange(ctx, req.Params)
	case "workspace/executeCommand":
		return s.handleExecuteCommand(ctx, req.Params)

	default:
		log.Printf("unhandled method: %s", req.Method)
		return nil, ErrMethodNotFound
	}
}

// semanticTokensOptions mirrors the SemanticTokensOptions capability
// shape, which go.lsp.dev exposes only as an untyped field.
type semanticTokensOptions struct {
	Legend semanticTokensLegend `json:"legend"`
	Range  bool                 `json:"range"`
	Full   bool                 `json:"full"`
}

type semanticTokensLegend struct {
	TokenTypes     []string `json:"tokenTypes"`
	TokenModifiers []string `json:"tokenModifiers"`
}

// --- Lifecycle methods ---

func (s *Server) handleInitialize(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.InitializeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("parsing initialize params: %w", err)
	}

	s.mu.Lock()
	if len(p.WorkspaceFolders) > 0 {
		s.rootURI = protocol.DocumentURI(p.WorkspaceFolders[0].URI)
	} else if p.RootURI != "" {
		s.rootURI = p.RootURI
	}
	root := uriToPath(s.rootURI)
	if root != "" && bazel.IsWorkspaceDir(root) {
		s.workspaceRoot = root
		s.runner.Dir = root
		s.index = index.New(root)
		s.index.Build(bazel.FindBuildFilesExcluding(root, s.cfg.Index.Exclude))
		if s.cfg.Index.Watch {
			w, err := index.NewWatcher(s.index)
			if err != nil {
				log.Printf("initialize: watcher: %v", err)
			} else {
				s.watcher = w
			}
		}
	}
	s.mu.Unlock()

	if s.workspaceRoot != "" {
		log.Printf("initialize: workspace=%s targets=%d", s.workspaceRoot, s.index.TargetCount())
	} else {
		log.Printf("initialize: single-file mode, root=%s", s.rootURI)
	}

	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncKindIncremental,
				Save: &protocol.SaveOptions{
					IncludeText: true,
				},
			},
			CompletionProvider: &protocol.CompletionOptions{
				TriggerCharacters: []string{":", "/"},
			},
			DocumentFormattingProvider: true,
			CodeLensProvider: &protocol.CodeLensOptions{
				ResolveProvider: false,
			},
			SemanticTokensProvider: semanticTokensOptions{
				Legend: semanticTokensLegend{
					TokenTypes:     tokenTypes,
					TokenModifiers: []string{},
				},
				Range: true,
				Full:  true,
			},
			ExecuteCommandProvider: &protocol.ExecuteCommandOptions{
				Commands: []string{cmdBuild, cmdTest, cmdRun},
			},
		},
		ServerInfo: &protocol.ServerInfo{
			Name:    "bzls",
			Version: version.Version,
		},
	}, nil
}

func (s *Server) handleInitialized(ctx context.Context, params json.RawMessage) (any, error) {
	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()

	log.Printf("initialized")
	return nil, nil
}

func (s *Server) handleShutdown(ctx context.Context) (any, error) {
	s.mu.Lock()
	s.shutdown = true
	watcher := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	if watcher != nil {
		if err := watcher.Close(); err != nil {
			log.Printf("shutdown: closing watcher: %v", err)
		}
	}

	log.Printf("shutdown")
	return nil, nil
}

func (s *Server) handleExit(ctx context.Context) (any, error) {
	log.Printf("exit")
	if s.onExit != nil {
		s.onExit()
	}
	return nil, nil
}

// --- Text document sync ---

func (s *Server) handleDidOpen(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.DidOpenTextDocumentParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.documents[p.TextDocument.URI] = &Document{
		URI:     p.TextDocument.URI,
		Version: p.TextDocument.Version,
		Content: p.TextDocument.Text,
	}
	s.mu.Unlock()

	log.Printf("didOpen: %s", p.TextDocument.URI)

	s.publishDiagnostics(ctx, p.TextDocument.URI, p.TextDocument.Text)

	return nil, nil
}

func (s *Server) handleDidChange(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		TextDocument   protocol.VersionedTextDocumentIdentifier `json:"textDocument"`
		ContentChanges []contentChange                          `json:"contentChanges"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	var content string
	s.mu.Lock()
	if doc, ok := s.documents[p.TextDocument.URI]; ok {
		doc.Version = p.TextDocument.Version
		doc.Content = applyChanges(doc.Content, p.ContentChanges)
		content = doc.Content
	}
	s.mu.Unlock()

	log.Printf("didChange: %s v%d", p.TextDocument.URI, p.TextDocument.Version)

	s.publishDiagnostics(ctx, p.TextDocument.URI, content)
	return nil, nil
}

func (s *Server) handleDidClose(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.DidCloseTextDocumentParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	s.mu.Lock()
	delete(s.documents, p.TextDocument.URI)
	s.mu.Unlock()

	log.Printf("didClose: %s", p.TextDocument.URI)

	// Clear diagnostics for closed document
	if s.conn != nil {
		if err := s.conn.Notify(ctx, "textDocument/publishDiagnostics", protocol.PublishDiagnosticsParams{
			URI:         p.TextDocument.URI,
			Diagnostics: []protocol.Diagnostic{},
		}); err != nil {
			log.Printf("failed to clear diagnostics: %v", err)
		}
	}

	return nil, nil
}

func (s *Server) handleDidSave(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.DidSaveTextDocumentParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	log.Printf("didSave: %s", p.TextDocument.URI)

	// Get document content (either from save params or our cache)
	content := p.Text
	if content == "" {
		s.mu.RLock()
		if doc, ok := s.documents[p.TextDocument.URI]; ok {
			content = doc.Content
		}
		s.mu.RUnlock()
	}

	// Saved BUILD files refresh the workspace index.
	path := uriToPath(p.TextDocument.URI)
	if s.inWorkspace(path) && bazel.IsBuildFile(baseName(path)) {
		if err := s.index.UpdateFile(path); err != nil {
			log.Printf("didSave: reindex %s: %v", path, err)
		}
	}

	if content != "" {
		s.publishDiagnostics(ctx, p.TextDocument.URI, content)
	}

	return nil, nil
}

// --- Formatting ---

func (s *Server) handleFormatting(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.DocumentFormattingParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	s.mu.RLock()
	doc, ok := s.documents[p.TextDocument.URI]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}

	formatted, err := depsort.Format([]byte(doc.Content))
	if err != nil {
		return nil, &ResponseError{
			Code:    CodeInternalError,
			Message: fmt.Sprintf("formatting: %v", err),
		}
	}

	log.Printf("formatting: %s", p.TextDocument.URI)

	// One whole-document edit; the range end is the line past the last.
	return []protocol.TextEdit{{
		Range: protocol.Range{
			Start: protocol.Position{Line: 0, Character: 0},
			End:   protocol.Position{Line: lineCount(doc.Content), Character: 0},
		},
		NewText: string(formatted),
	}}, nil
}

// --- Diagnostics ---

func (s *Server) publishDiagnostics(ctx context.Context, uri protocol.DocumentURI, content string) {
	// Guard against nil connection (e.g., in tests)
	if s.conn == nil {
		return
	}

	diagnostics := diagnose(uriToPath(uri), content)

	if err := s.conn.Notify(ctx, "textDocument/publishDiagnostics", protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	}); err != nil {
		log.Printf("failed to publish diagnostics: %v", err)
	}

	log.Printf("published %d diagnostics for %s", len(diagnostics), uri)
}

// --- Helpers ---

// inWorkspace reports whether path is under the indexed workspace root.
func (s *Server) inWorkspace(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.workspaceRoot == "" || s.index == nil {
		return false
	}
	return path == s.workspaceRoot || strings.HasPrefix(path, s.workspaceRoot+"/")
}

// logMessage forwards a message to the client's log channel.
func (s *Server) logMessage(ctx context.Context, typ protocol.MessageType, msg string) {
	if s.conn == nil {
		return
	}
	if err := s.conn.Notify(ctx, "window/logMessage", protocol.LogMessageParams{
		Type:    typ,
		Message: msg,
	}); err != nil {
		log.Printf("failed to send log message: %v", err)
	}
}

func uriToPath(uri protocol.DocumentURI) string {
	s := string(uri)
	if strings.HasPrefix(s, "file://") {
		return s[7:] // Remove "file://"
	}
	return s
}

func baseName(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}
