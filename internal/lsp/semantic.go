package lsp

import (
	"context"
	"encoding/json"
	"log"
	"sort"

	"go.lsp.dev/protocol"

	"github.com/albertocavalcante/bzl/internal/bazel"
)

// tokenTypes is the legend advertised during initialize. Token type
// indices in encoded data point into this slice.
var tokenTypes = []string{"function", "property", "string"}

const (
	tokenFunction uint32 = iota // rule kinds
	tokenProperty               // attribute names
	tokenString                 // string literals
)

// semanticToken is one token before delta encoding.
type semanticToken struct {
	rng protocol.Range
	typ uint32
}

func (s *Server) handleSemanticTokensFull(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.SemanticTokensParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	content, ok := s.documentContent(p.TextDocument.URI)
	if !ok {
		return &protocol.SemanticTokens{Data: []uint32{}}, nil
	}

	log.Printf("semanticTokens/full: %s", p.TextDocument.URI)

	return &protocol.SemanticTokens{
		Data: encodeTokens(tokenize(content)),
	}, nil
}

func (s *Server) handleSemanticTokensRange(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.SemanticTokensRangeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	content, ok := s.documentContent(p.TextDocument.URI)
	if !ok {
		return &protocol.SemanticTokens{Data: []uint32{}}, nil
	}

	log.Printf("semanticTokens/range: %s [%d:%d - %d:%d]",
		p.TextDocument.URI,
		p.Range.Start.Line, p.Range.Start.Character,
		p.Range.End.Line, p.Range.End.Character)

	tokens := tokenize(content)
	filtered := tokens[:0]
	for _, t := range tokens {
		if t.rng.Start.Line >= p.Range.Start.Line && t.rng.Start.Line <= p.Range.End.Line {
			filtered = append(filtered, t)
		}
	}

	return &protocol.SemanticTokens{
		Data: encodeTokens(filtered),
	}, nil
}

func (s *Server) documentContent(uri protocol.DocumentURI) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[uri]
	if !ok {
		return "", false
	}
	return doc.Content, true
}

// tokenize maps the structural elements of a BUILD file to semantic
// tokens: rule kinds, attribute names and string literals. Content
// that fails to parse yields no tokens.
func tokenize(content string) []semanticToken {
	src := []byte(content)
	var tokens []semanticToken

	if targets, err := bazel.ExtractTargets(src); err == nil {
		for _, t := range targets {
			tokens = append(tokens, semanticToken{rng: t.KindRange, typ: tokenFunction})
		}
	}
	if attrs, err := bazel.ExtractAttributes(src); err == nil {
		for _, a := range attrs {
			tokens = append(tokens, semanticToken{rng: a.Range, typ: tokenProperty})
		}
	}
	if strs, err := bazel.ExtractStrings(src); err == nil {
		for _, str := range strs {
			tokens = append(tokens, semanticToken{rng: str.Range, typ: tokenString})
		}
	}

	sort.Slice(tokens, func(i, j int) bool {
		a, b := tokens[i].rng.Start, tokens[j].rng.Start
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Character < b.Character
	})
	return tokens
}

// encodeTokens delta-encodes tokens into the LSP wire format of five
// uint32 values per token. Tokens must already be sorted by position.
// Encoded tokens are single-line; tokens spanning lines (triple-quoted
// strings) are dropped rather than encoded with a wrapped length.
func encodeTokens(tokens []semanticToken) []uint32 {
	data := make([]uint32, 0, len(tokens)*5)

	var prevLine, prevStart uint32
	for _, t := range tokens {
		if t.rng.End.Line != t.rng.Start.Line {
			continue
		}
		line := t.rng.Start.Line
		start := t.rng.Start.Character

		deltaLine := line - prevLine
		deltaStart := start
		if line == prevLine {
			deltaStart = start - prevStart
		}

		data = append(data,
			deltaLine,
			deltaStart,
			t.rng.End.Character-t.rng.Start.Character,
			t.typ,
			0, // no modifiers
		)
		prevLine = line
		prevStart = start
	}
	return data
}
