package lsp

import (
	"strings"

	"go.lsp.dev/protocol"
)

// contentChange is one edit from a didChange notification. The
// protocol package models the range as a value, which cannot tell an
// absent range (full replacement) from an edit at the zero position,
// so changes are decoded into this shape instead.
type contentChange struct {
	Range *protocol.Range `json:"range,omitempty"`
	Text  string          `json:"text"`
}

// applyChanges applies incremental content changes in order. A change
// without a range replaces the whole document.
func applyChanges(content string, changes []contentChange) string {
	for _, change := range changes {
		if change.Range == nil {
			content = change.Text
			continue
		}
		start := positionToByteIndex(content, change.Range.Start)
		end := positionToByteIndex(content, change.Range.End)
		if end < start {
			end = start
		}
		content = content[:start] + change.Text + content[end:]
	}
	return content
}

// positionToByteIndex converts an LSP position to a byte offset into
// content. Positions past the end of a line or the document clamp to
// the nearest valid offset.
func positionToByteIndex(content string, pos protocol.Position) int {
	offset := 0
	line := uint32(0)
	for line < pos.Line {
		nl := strings.IndexByte(content[offset:], '\n')
		if nl < 0 {
			return len(content)
		}
		offset += nl + 1
		line++
	}

	rest := content[offset:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}

	// Character counts runes, offsets count bytes.
	chars := uint32(0)
	for i := range rest {
		if chars >= pos.Character {
			return offset + i
		}
		chars++
	}
	return offset + len(rest)
}

// lineCount counts lines the way editors do for whole-document ranges:
// a trailing newline does not start a new line.
func lineCount(content string) uint32 {
	if content == "" {
		return 0
	}
	n := strings.Count(content, "\n")
	if !strings.HasSuffix(content, "\n") {
		n++
	}
	return uint32(n)
}

// lineAt returns the text of the 0-based line number, without the
// trailing newline. Out-of-range lines yield the empty string.
func lineAt(content string, line uint32) string {
	offset := 0
	for l := uint32(0); l < line; l++ {
		nl := strings.IndexByte(content[offset:], '\n')
		if nl < 0 {
			return ""
		}
		offset += nl + 1
	}
	rest := content[offset:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}
	return rest
}
