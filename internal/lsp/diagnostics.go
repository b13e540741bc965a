package lsp

import (
	"go.lsp.dev/protocol"
	"go.starlark.net/syntax"
)

// diagnose parses content as Starlark and reports syntax errors as
// diagnostics. Valid files produce an empty slice so stale diagnostics
// get cleared on the client.
func diagnose(path, content string) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}

	_, err := syntax.Parse(path, content, syntax.RetainComments)
	if err == nil {
		return diagnostics
	}

	var rng protocol.Range
	message := err.Error()
	if serr, ok := err.(syntax.Error); ok {
		pos := positionFromSyntax(serr.Pos)
		rng = protocol.Range{Start: pos, End: pos}
		message = serr.Msg
	}

	return append(diagnostics, protocol.Diagnostic{
		Range:    rng,
		Severity: protocol.DiagnosticSeverityError,
		Code:     "parse_error",
		Source:   "bzls",
		Message:  message,
	})
}

// positionFromSyntax converts a 1-based Starlark position to an LSP
// position, clamping the unset zero value.
func positionFromSyntax(pos syntax.Position) protocol.Position {
	p := protocol.Position{}
	if pos.Line > 0 {
		p.Line = uint32(pos.Line - 1)
	}
	if pos.Col > 0 {
		p.Character = uint32(pos.Col - 1)
	}
	return p
}
