package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"go.lsp.dev/protocol"

	"github.com/albertocavalcante/bzl/internal/bazel"
)

// Commands surfaced through code lenses.
const (
	cmdBuild = "bazel.build"
	cmdTest  = "bazel.test"
	cmdRun   = "bazel.run"
)

func (s *Server) handleCodeLens(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.CodeLensParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	s.mu.RLock()
	doc, ok := s.documents[p.TextDocument.URI]
	var content string
	if ok {
		content = doc.Content
	}
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}

	path := uriToPath(p.TextDocument.URI)
	var pkg string
	if s.inWorkspace(path) {
		pkg = bazel.PackagePath(path, s.index.Root())
	}

	targets, err := bazel.ExtractTargets([]byte(content))
	if err != nil {
		s.logMessage(ctx, protocol.MessageTypeError, fmt.Sprintf("Failed to extract targets: %v", err))
		return []protocol.CodeLens{}, nil
	}

	log.Printf("codeLens: %s targets=%d", p.TextDocument.URI, len(targets))

	lenses := make([]protocol.CodeLens, 0, len(targets))
	for _, t := range targets {
		label := fmt.Sprintf("//%s:%s", pkg, t.Name)

		// Test and binary rules get an action lens ahead of the
		// build lens every target carries.
		switch {
		case strings.HasSuffix(t.Kind, "_test"):
			lenses = append(lenses, lens(t.KindRange, fmt.Sprintf("Test %s", t.Name), cmdTest, label))
		case strings.HasSuffix(t.Kind, "_binary"):
			lenses = append(lenses, lens(t.KindRange, fmt.Sprintf("▶ Run %s", t.Name), cmdRun, label))
		}
		lenses = append(lenses, lens(t.KindRange, fmt.Sprintf("Build %s", t.Name), cmdBuild, label))
	}

	return lenses, nil
}

func lens(rng protocol.Range, title, command, label string) protocol.CodeLens {
	return protocol.CodeLens{
		Range: rng,
		Command: &protocol.Command{
			Title:     title,
			Command:   command,
			Arguments: []interface{}{map[string]interface{}{"target": label}},
		},
	}
}
