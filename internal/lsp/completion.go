package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"go.lsp.dev/protocol"

	"github.com/albertocavalcante/bzl/internal/bazel"
	"github.com/albertocavalcante/bzl/internal/bazel/trie"
)

// triggerKind distinguishes the two label completion triggers inside a
// string literal.
type triggerKind int

const (
	triggerDoubleSlash triggerKind = iota // "//...
	triggerColon                          // ":...
)

// trigger describes a completion trigger found on the current line.
type trigger struct {
	kind triggerKind
	// pos is the character offset of the first character after the
	// opening quote, where the replacement edit starts.
	pos uint32
	// text is what the user typed after the trigger token.
	text string
}

// findTrigger inspects the line text up to the cursor and reports the
// label trigger in effect, if any. A trigger is the opening quote of a
// string literal immediately followed by "//" or ":".
func findTrigger(lineUpToCursor string) (trigger, bool) {
	quote := strings.LastIndexByte(lineUpToCursor, '"')
	if quote < 0 {
		return trigger{}, false
	}

	afterQuote := lineUpToCursor[quote+1:]
	switch {
	case strings.HasPrefix(afterQuote, "//"):
		return trigger{
			kind: triggerDoubleSlash,
			pos:  uint32(quote + 1),
			text: afterQuote[2:],
		}, true
	case strings.HasPrefix(afterQuote, ":"):
		return trigger{
			kind: triggerColon,
			pos:  uint32(quote + 1),
			text: afterQuote[1:],
		}, true
	default:
		return trigger{}, false
	}
}

func (s *Server) handleCompletion(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.CompletionParams
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

	// Labels are only completed inside a deps list.
	offset := positionToByteIndex(content, p.Position)
	if !bazel.InDepsAttr([]byte(content), offset) {
		return nil, nil
	}

	line := lineAt(content, p.Position.Line)
	cursor := int(p.Position.Character)
	if cursor > len(line) {
		cursor = len(line)
	}

	trig, ok := findTrigger(line[:cursor])
	if !ok {
		return nil, nil
	}

	log.Printf("completion: %s @ %d:%d trigger=%q",
		p.TextDocument.URI, p.Position.Line, p.Position.Character, trig.text)

	if s.inWorkspace(uriToPath(p.TextDocument.URI)) {
		return s.completionInWorkspace(p.Position, trig), nil
	}
	return s.completionInFile(ctx, trig, content), nil
}

// completionInWorkspace serves items from the workspace index. Each
// item carries a text edit replacing everything after the opening
// quote, so accepting an item never mangles a partially typed label.
func (s *Server) completionInWorkspace(pos protocol.Position, trig trigger) *protocol.CompletionList {
	var items []protocol.CompletionItem
	for _, rules := range s.index.Search(trig.text) {
		for _, rule := range rules {
			items = append(items, protocol.CompletionItem{
				Label:         rule.FullBuildPath,
				Kind:          protocol.CompletionItemKindText,
				Detail:        fmt.Sprintf("Target: %s", rule.FullBuildPath),
				Documentation: fmt.Sprintf("Bazel target: %s", rule.FullBuildPath),
				TextEdit: &protocol.TextEdit{
					Range: protocol.Range{
						Start: protocol.Position{Line: pos.Line, Character: trig.pos},
						End:   pos,
					},
					NewText: editText(trig, rule),
				},
			})
		}
	}
	sortItems(items)
	return &protocol.CompletionList{Items: items}
}

// completionInFile serves items from the targets of the current file
// only, for BUILD files opened outside any workspace. Workspace-wide
// "//" completion has nothing to offer here.
func (s *Server) completionInFile(ctx context.Context, trig trigger, content string) *protocol.CompletionList {
	if trig.kind == triggerDoubleSlash {
		return nil
	}

	targets, err := bazel.ExtractTargets([]byte(content))
	if err != nil {
		s.logMessage(ctx, protocol.MessageTypeError, fmt.Sprintf("Failed to extract targets: %v", err))
		return nil
	}

	var items []protocol.CompletionItem
	for _, t := range targets {
		if !strings.HasPrefix(t.Name, trig.text) {
			continue
		}
		items = append(items, protocol.CompletionItem{
			Label:         t.Name,
			Kind:          protocol.CompletionItemKindText,
			Detail:        fmt.Sprintf("Target: %s", t.Name),
			Documentation: fmt.Sprintf("Bazel target: %s", t.Name),
		})
	}
	sortItems(items)
	return &protocol.CompletionList{Items: items}
}

// editText is the replacement for the label under construction: the
// full path when completing across packages, the ":name" shorthand
// when completing within one.
func editText(trig trigger, rule trie.RuleInfo) string {
	if trig.kind == triggerColon {
		return ":" + rule.Name
	}
	return rule.FullBuildPath
}

func sortItems(items []protocol.CompletionItem) {
	sort.Slice(items, func(i, j int) bool { return items[i].Label < items[j].Label })
}
